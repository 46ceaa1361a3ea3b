package ast_test

import (
	"strings"
	"testing"

	"shaderpipe/internal/ast"
	"shaderpipe/internal/symbols"
	"shaderpipe/internal/types"
)

func TestPrintComputeEntryPoint(t *testing.T) {
	syms := symbols.NewTable()
	tys := types.NewInterner()
	b := tys.Builtins()

	arr := tys.Intern(types.MakeArray(b.I32, 8))
	a := syms.Declare(symbols.SymbolGlobal, "a", spanZero)
	main := syms.Declare(symbols.SymbolFunc, "main", spanZero)
	idx := syms.Declare(symbols.SymbolParam, "idx", spanZero)
	i := syms.Declare(symbols.SymbolVar, "i", spanZero)

	body := ast.NewBlock(
		ast.NewFor(
			ast.NewVar(i, b.U32, ast.NewIdent(idx)),
			ast.NewBinary(ast.BinaryLt, ast.NewIdent(i), ast.NewU32(8)),
			ast.NewCompoundAssign(ast.BinaryAdd, ast.NewIdent(i), ast.NewU32(1)),
			ast.NewBlock(
				ast.NewAssign(
					ast.NewIndex(ast.NewIdent(a), ast.NewBinary(ast.BinaryDiv,
						ast.NewBinary(ast.BinaryMod, ast.NewIdent(i), ast.NewU32(8)), ast.NewU32(2))),
					ast.NewI32(0)),
			),
		),
		ast.NewExprStmt(ast.NewBuiltinCall(ast.BuiltinWorkgroupBarrier)),
	)
	prog := &ast.Program{Decls: []ast.Decl{
		&ast.GlobalVar{Sym: a, Space: types.SpaceWorkgroup, Type: arr},
		&ast.Func{
			Sym:       main,
			Stage:     ast.StageCompute,
			Workgroup: [3]*ast.Expr{ast.NewI32(1)},
			Params:    []*ast.Param{{Sym: idx, Type: b.U32, Builtin: ast.BuiltinLocalInvocationIndex}},
			Body:      body,
		},
	}}

	want := strings.Join([]string{
		"var<workgroup> a : array<i32, 8>;",
		"",
		"@compute @workgroup_size(1i)",
		"fn main(@builtin(local_invocation_index) idx : u32) {",
		"  for (var i : u32 = idx; i < 8u; i += 1u) {",
		"    a[(i % 8u) / 2u] = 0i;",
		"  }",
		"  workgroupBarrier();",
		"}",
		"",
	}, "\n")
	if got := ast.Format(prog, syms, tys); got != want {
		t.Fatalf("unexpected output:\nwant:\n%s\ngot:\n%s", want, got)
	}
}

func TestLiteralText(t *testing.T) {
	tests := []struct {
		expr *ast.Expr
		want string
	}{
		{ast.NewU32(7), "7u"},
		{ast.NewI32(-3), "-3i"},
		{ast.NewF32(1), "1.0f"},
		{ast.NewF32(0.5), "0.5f"},
		{ast.NewBool(false), "false"},
	}
	for _, tt := range tests {
		if got := ast.ExprString(tt.expr, nil, nil); got != tt.want {
			t.Errorf("ExprString = %q, want %q", got, tt.want)
		}
	}
}

func TestInspectorSkipsChildren(t *testing.T) {
	syms := symbols.NewTable()
	x := syms.Declare(symbols.SymbolLet, "x", spanZero)
	call := ast.NewBinary(ast.BinaryAdd, ast.NewIdent(x), ast.NewBinary(ast.BinaryMul, ast.NewIdent(x), ast.NewI32(2)))

	var seen int
	ast.InspectExpr(call, func(e *ast.Expr) bool {
		seen++
		return e.Kind != ast.ExprBinary || e == call
	})
	// call, x, inner binary (children skipped)
	if seen != 3 {
		t.Fatalf("expected 3 visits, got %d", seen)
	}

	root, ok := ast.RootIdent(ast.NewAddrOf(ast.NewIndex(ast.NewMember(ast.NewIdent(x), "f"), ast.NewI32(0))))
	if !ok {
		t.Fatal("expected root ident")
	}
	if sym, _ := root.Ident(); sym != x {
		t.Fatalf("unexpected root %v", sym)
	}
}
