package transform_test

import (
	"context"
	"testing"

	"shaderpipe/internal/ast"
	"shaderpipe/internal/diag"
	"shaderpipe/internal/symbols"
	"shaderpipe/internal/testkit"
	"shaderpipe/internal/transform"
	"shaderpipe/internal/types"
)

func TestZeroInitScalarIsGuarded(t *testing.T) {
	u := testkit.NewUnit()
	v := u.Global(types.SpaceWorkgroup, "v", u.B.I32)
	u.Compute("main", testkit.Size(1, 1, 1), nil, ast.NewAssign(testkit.Ident(v), ast.NewI32(1)))
	out := rewritten(t, transform.ZeroInitWorkgroupMemory{}, u.MustResolve(t))
	checkDump(t, out, lines(
		"var<workgroup> v : i32;",
		"",
		"fn tint_zero_workgroup_memory(tint_local_idx : u32) {",
		"  if (tint_local_idx < 1u) {",
		"    v = 0i;",
		"  }",
		"}",
		"",
		"@compute @workgroup_size(1i, 1i, 1i)",
		"fn main(@builtin(local_invocation_index) tint_local_invocation_index : u32) {",
		"  tint_zero_workgroup_memory(tint_local_invocation_index);",
		"  workgroupBarrier();",
		"  v = 1i;",
		"}",
	))
	if routine := out.AST.Funcs()[0]; !out.Symbols.Get(routine.Sym).Has(symbols.SymbolZeroInitRoutine) {
		t.Fatalf("%s is not flagged as a zero-init routine", out.Symbols.Name(routine.Sym))
	}

	if (transform.ZeroInitWorkgroupMemory{}).ShouldRun(out) {
		t.Fatalf("ShouldRun on an already zeroed entry point")
	}
	if again := apply(t, transform.ZeroInitWorkgroupMemory{}, out); again.Rewritten {
		t.Fatalf("second run rewrote the program")
	}
}

func TestZeroInitArrayLoops(t *testing.T) {
	u := testkit.NewUnit()
	a := u.Global(types.SpaceWorkgroup, "a", u.Array(u.B.I32, 8))
	u.Compute("main", testkit.Size(1), nil,
		ast.NewAssign(ast.NewIndex(testkit.Ident(a), ast.NewI32(0)), ast.NewI32(1)))
	out := rewritten(t, transform.ZeroInitWorkgroupMemory{}, u.MustResolve(t))
	checkDump(t, out, lines(
		"var<workgroup> a : array<i32, 8>;",
		"",
		"fn tint_zero_workgroup_memory(tint_local_idx : u32) {",
		"  for (var tint_idx : u32 = tint_local_idx; tint_idx < 8u; tint_idx += 1u) {",
		"    a[tint_idx] = 0i;",
		"  }",
		"}",
		"",
		"@compute @workgroup_size(1i)",
		"fn main(@builtin(local_invocation_index) tint_local_invocation_index : u32) {",
		"  tint_zero_workgroup_memory(tint_local_invocation_index);",
		"  workgroupBarrier();",
		"  a[0i] = 1i;",
		"}",
	))
}

func TestZeroInitVolumeBoundary(t *testing.T) {
	tests := []struct {
		name  string
		count uint32
		want  string
	}{
		{
			name:  "equal to volume",
			count: 4,
			want: lines(
				"if (tint_local_idx < 4u) {",
				"  a[tint_local_idx] = 0u;",
				"}",
			),
		},
		{
			name:  "above volume",
			count: 5,
			want: lines(
				"for (var tint_idx : u32 = tint_local_idx; tint_idx < 5u; tint_idx += 4u) {",
				"  a[tint_idx] = 0u;",
				"}",
			),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := testkit.NewUnit()
			a := u.Global(types.SpaceWorkgroup, "a", u.Array(u.B.U32, tt.count))
			idx := u.LocalIndex("idx")
			u.Compute("main", testkit.Size(2, 2), []*ast.Param{idx},
				ast.NewAssign(ast.NewIndex(testkit.Ident(a), testkit.Ident(idx.Sym)), ast.NewU32(1)))
			out := rewritten(t, transform.ZeroInitWorkgroupMemory{}, u.MustResolve(t))
			routine := out.AST.Funcs()[0]
			got := ast.BlockString(routine.Body, out.Symbols, out.Types)
			if got != tt.want {
				t.Fatalf("routine body:\n%s\nwant:\n%s", got, tt.want)
			}
		})
	}
}

func TestZeroInitPacksGroups(t *testing.T) {
	u := testkit.NewUnit()
	a := u.Global(types.SpaceWorkgroup, "a", u.B.I32)
	b := u.Global(types.SpaceWorkgroup, "b", u.Array(u.B.U32, 4))
	c := u.Global(types.SpaceWorkgroup, "c", u.Array(u.B.F32, 10))
	d := u.Global(types.SpaceWorkgroup, "d", u.Atomic(u.B.U32))
	m := u.Global(types.SpaceWorkgroup, "m", u.Array(u.Array(u.B.I32, 3), 2))
	idx := u.LocalIndex("idx")
	u.Compute("main", testkit.Size(4), []*ast.Param{idx},
		ast.NewAssign(testkit.Ident(a), ast.NewI32(1)),
		ast.NewAssign(ast.NewIndex(testkit.Ident(b), ast.NewI32(0)), ast.NewU32(1)),
		ast.NewAssign(ast.NewIndex(testkit.Ident(c), ast.NewI32(0)), ast.NewF32(1)),
		ast.NewExprStmt(ast.NewBuiltinCall(ast.BuiltinAtomicStore, ast.NewAddrOf(testkit.Ident(d)), ast.NewU32(1))),
		ast.NewAssign(ast.NewIndex(ast.NewIndex(testkit.Ident(m), ast.NewI32(0)), ast.NewI32(0)), ast.NewI32(1)),
	)
	out := rewritten(t, transform.ZeroInitWorkgroupMemory{}, u.MustResolve(t))
	routine := out.AST.Funcs()[0]
	want := lines(
		"if (tint_local_idx < 1u) {",
		"  a = 0i;",
		"  atomicStore(&d, 0u);",
		"}",
		"if (tint_local_idx < 4u) {",
		"  b[tint_local_idx] = 0u;",
		"}",
		"for (var tint_idx : u32 = tint_local_idx; tint_idx < 10u; tint_idx += 4u) {",
		"  c[tint_idx] = 0.0f;",
		"}",
		"for (var tint_idx_1 : u32 = tint_local_idx; tint_idx_1 < 6u; tint_idx_1 += 4u) {",
		"  m[tint_idx_1 / 3u][tint_idx_1 % 3u] = 0i;",
		"}",
	)
	if got := ast.BlockString(routine.Body, out.Symbols, out.Types); got != want {
		t.Fatalf("routine body:\n%s\nwant:\n%s", got, want)
	}
	main := out.AST.EntryPoints()[0]
	if len(main.Params) != 1 {
		t.Fatalf("existing local index was not reused: %d params", len(main.Params))
	}
	first := ast.ExprString(main.Body.Stmts[0].Data.(ast.ExprStmtData).Expr, out.Symbols, out.Types)
	if first != "tint_zero_workgroup_memory(idx)" {
		t.Fatalf("first statement calls %s", first)
	}
}

func TestZeroInitStructs(t *testing.T) {
	u := testkit.NewUnit()
	plain := u.Struct("Plain", &ast.Member{Name: "x", Type: u.B.F32}, &ast.Member{Name: "y", Type: u.B.U32})
	mixed := u.Struct("Mixed",
		&ast.Member{Name: "n", Type: u.Atomic(u.B.I32)},
		&ast.Member{Name: "p", Type: plain},
		&ast.Member{Name: "list", Type: u.Array(u.B.U32, 2)},
	)
	s := u.Global(types.SpaceWorkgroup, "s", mixed)
	in := u.Struct("Inputs", &ast.Member{Name: "li", Type: u.B.U32, Builtin: ast.BuiltinLocalInvocationIndex})
	inp := u.Param("inp", in, ast.BuiltinNone)
	u.Compute("main", testkit.Size(2), []*ast.Param{inp},
		ast.NewAssign(ast.NewMember(ast.NewMember(testkit.Ident(s), "p"), "y"), ast.NewMember(testkit.Ident(inp.Sym), "li")),
	)
	out := rewritten(t, transform.ZeroInitWorkgroupMemory{}, u.MustResolve(t))
	want := lines(
		"if (tint_local_idx < 1u) {",
		"  atomicStore(&s.n, 0i);",
		"  s.p = Plain();",
		"}",
		"if (tint_local_idx < 2u) {",
		"  s.list[tint_local_idx] = 0u;",
		"}",
	)
	var routine *ast.Func
	for _, fn := range out.AST.Funcs() {
		if !fn.IsEntryPoint() {
			routine = fn
		}
	}
	if got := ast.BlockString(routine.Body, out.Symbols, out.Types); got != want {
		t.Fatalf("routine body:\n%s\nwant:\n%s", got, want)
	}
	main := out.AST.EntryPoints()[0]
	first := ast.ExprString(main.Body.Stmts[0].Data.(ast.ExprStmtData).Expr, out.Symbols, out.Types)
	if first != "tint_zero_workgroup_memory(inp.li)" || len(main.Params) != 1 {
		t.Fatalf("first statement %s, %d params", first, len(main.Params))
	}
}

func TestZeroInitOverrideSizes(t *testing.T) {
	t.Run("array sized by override", func(t *testing.T) {
		u := testkit.NewUnit()
		n := u.Override("N", u.B.U32, ast.NewU32(16))
		a := u.Global(types.SpaceWorkgroup, "a", u.Types.Intern(types.MakeOverrideArray(u.B.I32, n)))
		idx := u.LocalIndex("idx")
		u.Compute("main", testkit.Size(1), []*ast.Param{idx},
			ast.NewAssign(ast.NewIndex(testkit.Ident(a), ast.NewI32(0)), ast.NewI32(1)))
		out := rewritten(t, transform.ZeroInitWorkgroupMemory{}, u.MustResolve(t))
		got := ast.BlockString(out.AST.Funcs()[0].Body, out.Symbols, out.Types)
		want := lines(
			"for (var tint_idx : u32 = tint_local_idx; tint_idx < N; tint_idx += 1u) {",
			"  a[tint_idx] = 0i;",
			"}",
		)
		if got != want {
			t.Fatalf("routine body:\n%s\nwant:\n%s", got, want)
		}
	})
	t.Run("workgroup size by i32 override", func(t *testing.T) {
		u := testkit.NewUnit()
		w := u.Override("W", u.B.I32, ast.NewI32(64))
		v := u.Global(types.SpaceWorkgroup, "v", u.B.I32)
		idx := u.LocalIndex("idx")
		u.Compute("main", [3]*ast.Expr{testkit.Ident(w)}, []*ast.Param{idx},
			ast.NewAssign(testkit.Ident(v), ast.NewI32(1)))
		out := rewritten(t, transform.ZeroInitWorkgroupMemory{}, u.MustResolve(t))
		got := ast.BlockString(out.AST.Funcs()[0].Body, out.Symbols, out.Types)
		want := lines(
			"for (var tint_idx : u32 = tint_local_idx; tint_idx < 1u; tint_idx += u32(W)) {",
			"  v = 0i;",
			"}",
		)
		if got != want {
			t.Fatalf("routine body:\n%s\nwant:\n%s", got, want)
		}
	})
}

func TestZeroInitFatalSizes(t *testing.T) {
	t.Run("override expression array", func(t *testing.T) {
		u := testkit.NewUnit()
		u.Override("N", u.B.U32, ast.NewU32(4))
		a := u.Global(types.SpaceWorkgroup, "a", u.Types.OverrideExprArray(u.B.I32, "N * 2u"))
		u.Compute("main", testkit.Size(1), nil,
			ast.NewAssign(ast.NewIndex(testkit.Ident(a), ast.NewI32(0)), ast.NewI32(1)))
		_, err := transform.ZeroInitWorkgroupMemory{}.Apply(context.Background(), u.MustResolve(t), env)
		wantCode(t, err, diag.LowOverrideArraySize)
	})
	t.Run("workgroup size expression over override", func(t *testing.T) {
		u := testkit.NewUnit()
		w := u.Override("W", u.B.I32, ast.NewI32(8))
		v := u.Global(types.SpaceWorkgroup, "v", u.B.I32)
		u.Compute("main", [3]*ast.Expr{ast.NewBinary(ast.BinaryAdd, testkit.Ident(w), ast.NewI32(1))}, nil,
			ast.NewAssign(testkit.Ident(v), ast.NewI32(1)))
		_, err := transform.ZeroInitWorkgroupMemory{}.Apply(context.Background(), u.MustResolve(t), env)
		wantCode(t, err, diag.LowUnresolvedSize)
	})
}

func TestZeroInitPerEntryPoint(t *testing.T) {
	u := testkit.NewUnit()
	v := u.Global(types.SpaceWorkgroup, "v", u.B.I32)
	w := u.Global(types.SpaceWorkgroup, "w", u.Array(u.B.I32, 2))
	touch := u.Func(symbols.NoSymbolID, "touch", types.NoTypeID, nil,
		ast.NewAssign(testkit.Ident(v), ast.NewI32(1)))
	u.Compute("first", testkit.Size(1), nil, ast.NewExprStmt(ast.NewCall(touch.Sym)))
	u.Compute("second", testkit.Size(2), nil,
		ast.NewAssign(ast.NewIndex(testkit.Ident(w), ast.NewI32(1)), ast.NewI32(1)))
	u.Compute("untouched", testkit.Size(1), nil)
	out := rewritten(t, transform.ZeroInitWorkgroupMemory{RoutineName: "clear"}, u.MustResolve(t))
	checkDump(t, out, lines(
		"var<workgroup> v : i32;",
		"var<workgroup> w : array<i32, 2>;",
		"",
		"fn touch() {",
		"  v = 1i;",
		"}",
		"",
		"fn tint_clear(tint_local_idx : u32) {",
		"  if (tint_local_idx < 1u) {",
		"    v = 0i;",
		"  }",
		"}",
		"",
		"@compute @workgroup_size(1i)",
		"fn first(@builtin(local_invocation_index) tint_local_invocation_index : u32) {",
		"  tint_clear(tint_local_invocation_index);",
		"  workgroupBarrier();",
		"  touch();",
		"}",
		"",
		"fn tint_clear_1(tint_local_idx_1 : u32) {",
		"  if (tint_local_idx_1 < 2u) {",
		"    w[tint_local_idx_1] = 0i;",
		"  }",
		"}",
		"",
		"@compute @workgroup_size(2i)",
		"fn second(@builtin(local_invocation_index) tint_local_invocation_index_1 : u32) {",
		"  tint_clear_1(tint_local_invocation_index_1);",
		"  workgroupBarrier();",
		"  w[1i] = 1i;",
		"}",
		"",
		"@compute @workgroup_size(1i)",
		"fn untouched() {",
		"}",
	))
}

func TestZeroInitShouldRun(t *testing.T) {
	u := testkit.NewUnit()
	u.Global(types.SpaceWorkgroup, "unused", u.B.I32)
	u.Compute("main", testkit.Size(1), nil)
	if (transform.ZeroInitWorkgroupMemory{}).ShouldRun(u.MustResolve(t)) {
		t.Fatalf("ShouldRun without any entry point using workgroup memory")
	}
}
