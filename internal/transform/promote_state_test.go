package transform_test

import (
	"context"
	"testing"

	"shaderpipe/internal/ast"
	"shaderpipe/internal/diag"
	"shaderpipe/internal/sema"
	"shaderpipe/internal/symbols"
	"shaderpipe/internal/testkit"
	"shaderpipe/internal/transform"
	"shaderpipe/internal/types"
)

func TestPromoteIntoHelper(t *testing.T) {
	u := testkit.NewUnit()
	wgid := u.Global(types.SpacePrivate, "wgid", u.B.Vec3U32)
	inner := u.Func(symbols.NoSymbolID, "inner", u.B.Vec3U32, nil, ast.NewReturn(testkit.Ident(wgid)))
	param := u.Param("wgid_param", u.B.Vec3U32, ast.BuiltinWorkgroupID)
	r := u.Sym(symbols.SymbolLet, "r")
	u.Compute("main", testkit.Size(1), []*ast.Param{param},
		ast.NewAssign(testkit.Ident(wgid), testkit.Ident(param.Sym)),
		ast.NewLet(r, u.B.Vec3U32, ast.NewCall(inner.Sym)),
	)
	out := rewritten(t, transform.PromoteModuleState{}, u.MustResolve(t))
	checkDump(t, out, lines(
		"fn inner(tint_wgid : vec3<u32>) -> vec3<u32> {",
		"  return tint_wgid;",
		"}",
		"",
		"@compute @workgroup_size(1i)",
		"fn main(@builtin(workgroup_id) wgid_param : vec3<u32>) {",
		"  let r : vec3<u32> = inner(wgid_param);",
		"}",
	))
	if (transform.PromoteModuleState{}).ShouldRun(out) {
		t.Fatalf("ShouldRun after promotion")
	}
}

func TestPromoteSharedHelperGetsOneParam(t *testing.T) {
	u := testkit.NewUnit()
	id := u.Global(types.SpacePrivate, "id", u.B.U32)
	leaf := u.Func(symbols.NoSymbolID, "leaf", u.B.U32, nil, ast.NewReturn(testkit.Ident(id)))
	mid := u.Func(symbols.NoSymbolID, "mid", u.B.U32, nil, ast.NewReturn(
		ast.NewBinary(ast.BinaryAdd, ast.NewCall(leaf.Sym), ast.NewCall(leaf.Sym))))
	a := u.LocalIndex("a")
	u.Compute("main1", testkit.Size(1), []*ast.Param{a},
		ast.NewAssign(testkit.Ident(id), testkit.Ident(a.Sym)),
		ast.NewLet(u.Sym(symbols.SymbolLet, "r"), u.B.U32, ast.NewCall(mid.Sym)),
	)
	b := u.LocalIndex("b")
	u.Compute("main2", testkit.Size(1), []*ast.Param{b},
		ast.NewAssign(testkit.Ident(id), testkit.Ident(b.Sym)),
		ast.NewLet(u.Sym(symbols.SymbolLet, "s"), u.B.U32, ast.NewCall(leaf.Sym)),
		ast.NewLet(u.Sym(symbols.SymbolLet, "t"), u.B.U32, ast.NewCall(mid.Sym)),
	)
	out := rewritten(t, transform.PromoteModuleState{}, u.MustResolve(t))
	checkDump(t, out, lines(
		"fn leaf(tint_id : u32) -> u32 {",
		"  return tint_id;",
		"}",
		"",
		"fn mid(tint_id_1 : u32) -> u32 {",
		"  return leaf(tint_id_1) + leaf(tint_id_1);",
		"}",
		"",
		"@compute @workgroup_size(1i)",
		"fn main1(@builtin(local_invocation_index) a : u32) {",
		"  let r : u32 = mid(a);",
		"}",
		"",
		"@compute @workgroup_size(1i)",
		"fn main2(@builtin(local_invocation_index) b : u32) {",
		"  let s : u32 = leaf(b);",
		"  let t : u32 = mid(b);",
		"}",
	))
	for _, fn := range out.AST.Funcs() {
		if len(fn.Params) != 1 {
			t.Errorf("%s has %d params, want 1", out.Symbols.Name(fn.Sym), len(fn.Params))
		}
	}
}

func TestPromoteHoistsExpression(t *testing.T) {
	u := testkit.NewUnit()
	g := u.Global(types.SpacePrivate, "g", u.B.I32)
	helper := u.Func(symbols.NoSymbolID, "helper", u.B.I32, nil, ast.NewReturn(testkit.Ident(g)))
	idx := u.LocalIndex("idx")
	u.Compute("main", testkit.Size(1), []*ast.Param{idx},
		ast.NewAssign(testkit.Ident(g), ast.NewBitcast(u.B.I32, testkit.Ident(idx.Sym))),
		ast.NewLet(u.Sym(symbols.SymbolLet, "r"), u.B.I32, ast.NewCall(helper.Sym)),
	)
	out := rewritten(t, transform.PromoteModuleState{}, u.MustResolve(t))
	checkDump(t, out, lines(
		"fn helper(tint_g : i32) -> i32 {",
		"  return tint_g;",
		"}",
		"",
		"@compute @workgroup_size(1i)",
		"fn main(@builtin(local_invocation_index) idx : u32) {",
		"  let tint_g_value : i32 = bitcast<i32>(idx);",
		"  let r : i32 = helper(tint_g_value);",
		"}",
	))
}

func TestPromoteDeclines(t *testing.T) {
	tests := []struct {
		name string
		body func(u *testkit.Unit, g symbols.SymbolID, idx *ast.Param) []*ast.Stmt
	}{
		{
			name: "written twice",
			body: func(u *testkit.Unit, g symbols.SymbolID, idx *ast.Param) []*ast.Stmt {
				return []*ast.Stmt{
					ast.NewAssign(testkit.Ident(g), testkit.Ident(idx.Sym)),
					ast.NewAssign(testkit.Ident(g), ast.NewU32(2)),
				}
			},
		},
		{
			name: "read before the write",
			body: func(u *testkit.Unit, g symbols.SymbolID, idx *ast.Param) []*ast.Stmt {
				return []*ast.Stmt{
					ast.NewLet(u.Sym(symbols.SymbolLet, "old"), u.B.U32, testkit.Ident(g)),
					ast.NewAssign(testkit.Ident(g), testkit.Ident(idx.Sym)),
				}
			},
		},
		{
			name: "nested write",
			body: func(u *testkit.Unit, g symbols.SymbolID, idx *ast.Param) []*ast.Stmt {
				return []*ast.Stmt{
					ast.NewIf(ast.NewBool(true), ast.NewBlock(
						ast.NewAssign(testkit.Ident(g), testkit.Ident(idx.Sym)),
					), nil),
				}
			},
		},
		{
			name: "compound write",
			body: func(u *testkit.Unit, g symbols.SymbolID, idx *ast.Param) []*ast.Stmt {
				return []*ast.Stmt{
					ast.NewCompoundAssign(ast.BinaryAdd, testkit.Ident(g), testkit.Ident(idx.Sym)),
				}
			},
		},
		{
			name: "value reads module state",
			body: func(u *testkit.Unit, g symbols.SymbolID, idx *ast.Param) []*ast.Stmt {
				other := u.Global(types.SpacePrivate, "other", u.B.U32)
				return []*ast.Stmt{
					ast.NewAssign(testkit.Ident(g), testkit.Ident(other)),
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := testkit.NewUnit()
			g := u.Global(types.SpacePrivate, "g", u.B.U32)
			idx := u.LocalIndex("idx")
			u.Compute("main", testkit.Size(1), []*ast.Param{idx}, tt.body(u, g, idx)...)
			p := u.MustResolve(t)
			before := testkit.Dump(p)

			bag := diag.NewBag(0)
			e := env
			e.Reporter = diag.BagReporter{Bag: bag}
			out, err := transform.PromoteModuleState{}.Apply(context.Background(), p, e)
			if err != nil {
				t.Fatalf("apply: %v", err)
			}
			if out.Rewritten {
				t.Fatalf("declined variable was rewritten:\n%s", testkit.Dump(out.Program))
			}
			checkDump(t, p, before)
			items := bag.Items()
			if len(items) != 1 || items[0].Code != diag.LowPatternDeclined || items[0].Severity != diag.SevInfo {
				t.Fatalf("expected one %s info, got %v", diag.LowPatternDeclined.ID(), items)
			}
		})
	}
}

func TestPromoteEntryPointReadingWithoutWrite(t *testing.T) {
	u := testkit.NewUnit()
	g := u.Global(types.SpacePrivate, "g", u.B.U32)
	a := u.LocalIndex("a")
	u.Compute("writer", testkit.Size(1), []*ast.Param{a},
		ast.NewAssign(testkit.Ident(g), testkit.Ident(a.Sym)),
	)
	u.Compute("reader", testkit.Size(1), nil,
		ast.NewLet(u.Sym(symbols.SymbolLet, "r"), u.B.U32, testkit.Ident(g)),
	)
	bag := diag.NewBag(0)
	e := env
	e.Reporter = diag.BagReporter{Bag: bag}
	out, err := transform.PromoteModuleState{}.Apply(context.Background(), u.MustResolve(t), e)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if out.Rewritten || bag.Len() != 1 {
		t.Fatalf("rewritten=%v, diagnostics=%v", out.Rewritten, bag.Items())
	}
}

// A module-scope use, such as an initializer reading the variable, keeps the
// variable in place.
func TestPromoteDeclinesModuleScopeUse(t *testing.T) {
	u := testkit.NewUnit()
	g := u.Global(types.SpacePrivate, "g", u.B.U32)
	idx := u.LocalIndex("idx")
	u.Compute("main", testkit.Size(1), []*ast.Param{idx},
		ast.NewAssign(testkit.Ident(g), testkit.Ident(idx.Sym)),
	)
	p := u.MustResolve(t)
	v := p.Var(g)
	v.Users = append(v.Users, sema.Use{Expr: testkit.Ident(g), Read: true})
	before := testkit.Dump(p)

	bag := diag.NewBag(0)
	e := env
	e.Reporter = diag.BagReporter{Bag: bag}
	out, err := transform.PromoteModuleState{}.Apply(context.Background(), p, e)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if out.Rewritten {
		t.Fatalf("module-scope use was rewritten:\n%s", testkit.Dump(out.Program))
	}
	checkDump(t, p, before)
	items := bag.Items()
	if len(items) != 1 || items[0].Code != diag.LowPatternDeclined {
		t.Fatalf("expected one %s note, got %v", diag.LowPatternDeclined.ID(), items)
	}
}
