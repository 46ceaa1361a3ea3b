package transform_test

import (
	"testing"

	"shaderpipe/internal/ast"
	"shaderpipe/internal/symbols"
	"shaderpipe/internal/testkit"
	"shaderpipe/internal/transform"
	"shaderpipe/internal/types"
)

func TestFoldBareIdentifier(t *testing.T) {
	u := testkit.NewUnit()
	v := u.Global(types.SpacePrivate, "v", u.B.I32)
	x := u.Sym(symbols.SymbolLet, "x")
	u.Compute("main", testkit.Size(1), nil,
		ast.NewLet(x, u.B.I32, testkit.Ident(v)),
		ast.NewAssign(testkit.Ident(v), ast.NewBinary(ast.BinaryAdd, testkit.Ident(x), ast.NewI32(1))),
	)
	out := rewritten(t, transform.FoldTrivialLets{}, u.MustResolve(t))
	checkDump(t, out, lines(
		"var<private> v : i32;",
		"",
		"@compute @workgroup_size(1i)",
		"fn main() {",
		"  v = v + 1i;",
		"}",
	))

	if (transform.FoldTrivialLets{}).ShouldRun(out) {
		t.Fatalf("ShouldRun after folding everything")
	}
	if again := apply(t, transform.FoldTrivialLets{}, out); again.Rewritten {
		t.Fatalf("second run rewrote the program")
	}
}

func TestFoldSkipsUsesAfterIntervening(t *testing.T) {
	u := testkit.NewUnit()
	v := u.Global(types.SpacePrivate, "v", u.B.I32)
	x := u.Sym(symbols.SymbolLet, "x")
	a := u.Sym(symbols.SymbolLet, "a")
	b := u.Sym(symbols.SymbolLet, "b")
	u.Compute("main", testkit.Size(1), nil,
		ast.NewLet(x, u.B.I32, testkit.Ident(v)),
		ast.NewLet(a, u.B.I32, testkit.Ident(x)),
		ast.NewAssign(testkit.Ident(v), ast.NewI32(2)),
		ast.NewLet(b, u.B.I32, testkit.Ident(x)),
	)
	out := rewritten(t, transform.FoldTrivialLets{}, u.MustResolve(t))
	want := lines(
		"var<private> v : i32;",
		"",
		"@compute @workgroup_size(1i)",
		"fn main() {",
		"  let x : i32 = v;",
		"  let a : i32 = v;",
		"  v = 2i;",
		"  let b : i32 = x;",
		"}",
	)
	checkDump(t, out, want)

	again := apply(t, transform.FoldTrivialLets{}, out)
	if again.Rewritten {
		t.Fatalf("second run rewrote the program:\n%s", testkit.Dump(again.Program))
	}
	checkDump(t, out, want)
}

func TestFoldBlockedByWrite(t *testing.T) {
	u := testkit.NewUnit()
	v := u.Global(types.SpacePrivate, "v", u.B.I32)
	x := u.Sym(symbols.SymbolLet, "x")
	u.Compute("main", testkit.Size(1), nil,
		ast.NewLet(x, u.B.I32, testkit.Ident(v)),
		ast.NewAssign(testkit.Ident(v), ast.NewI32(2)),
		ast.NewAssign(testkit.Ident(v), testkit.Ident(x)),
	)
	p := u.MustResolve(t)
	before := testkit.Dump(p)
	if out := apply(t, transform.FoldTrivialLets{}, p); out.Rewritten {
		t.Fatalf("fold crossed a write:\n%s", testkit.Dump(out.Program))
	}
	checkDump(t, p, before)
}

func TestFoldSingleUseExpression(t *testing.T) {
	u := testkit.NewUnit()
	v := u.Global(types.SpacePrivate, "v", u.B.I32)
	x := u.Sym(symbols.SymbolLet, "x")
	u.Compute("main", testkit.Size(1), nil,
		ast.NewLet(x, u.B.I32, ast.NewBinary(ast.BinaryAdd, testkit.Ident(v), ast.NewI32(1))),
		ast.NewAssign(testkit.Ident(v), ast.NewBinary(ast.BinaryMul, testkit.Ident(x), ast.NewI32(2))),
	)
	out := rewritten(t, transform.FoldTrivialLets{}, u.MustResolve(t))
	checkDump(t, out, lines(
		"var<private> v : i32;",
		"",
		"@compute @workgroup_size(1i)",
		"fn main() {",
		"  v = (v + 1i) * 2i;",
		"}",
	))
}

func TestFoldKeepsMultiUseExpression(t *testing.T) {
	u := testkit.NewUnit()
	v := u.Global(types.SpacePrivate, "v", u.B.I32)
	x := u.Sym(symbols.SymbolLet, "x")
	u.Compute("main", testkit.Size(1), nil,
		ast.NewLet(x, u.B.I32, ast.NewBinary(ast.BinaryAdd, testkit.Ident(v), ast.NewI32(1))),
		ast.NewAssign(testkit.Ident(v), testkit.Ident(x)),
		ast.NewAssign(testkit.Ident(v), ast.NewBinary(ast.BinaryAdd, testkit.Ident(v), testkit.Ident(x))),
	)
	if out := apply(t, transform.FoldTrivialLets{}, u.MustResolve(t)); out.Rewritten {
		t.Fatalf("multi-use initializer was duplicated:\n%s", testkit.Dump(out.Program))
	}
}

func TestFoldEffectfulInitializer(t *testing.T) {
	gt0 := func(e *ast.Expr) *ast.Expr { return ast.NewBinary(ast.BinaryGt, e, ast.NewI32(0)) }
	tests := []struct {
		name string
		// tail returns the statements after the let; r is an i32 var and
		// c a bool var, both declared before it.
		tail   func(v, r, c, x symbols.SymbolID) []*ast.Stmt
		folded bool
		want   string
	}{
		{
			name: "adjacent",
			tail: func(v, r, c, x symbols.SymbolID) []*ast.Stmt {
				return []*ast.Stmt{ast.NewAssign(testkit.Ident(r), testkit.Ident(x))}
			},
			folded: true,
			want: lines(
				"var<private> v : i32;",
				"",
				"fn f() -> i32 {",
				"  v = 7i;",
				"  return 1i;",
				"}",
				"",
				"@compute @workgroup_size(1i)",
				"fn main() {",
				"  var r : i32;",
				"  var c : bool;",
				"  r = f();",
				"}",
			),
		},
		{
			name: "across a module-scope write",
			tail: func(v, r, c, x symbols.SymbolID) []*ast.Stmt {
				return []*ast.Stmt{
					ast.NewAssign(testkit.Ident(v), ast.NewI32(3)),
					ast.NewAssign(testkit.Ident(r), testkit.Ident(x)),
				}
			},
		},
		{
			name: "right operand of &&",
			tail: func(v, r, c, x symbols.SymbolID) []*ast.Stmt {
				return []*ast.Stmt{ast.NewAssign(testkit.Ident(c),
					ast.NewBinary(ast.BinaryLogicalAnd, gt0(testkit.Ident(r)), gt0(testkit.Ident(x))))}
			},
		},
		{
			name: "right operand of ||",
			tail: func(v, r, c, x symbols.SymbolID) []*ast.Stmt {
				return []*ast.Stmt{ast.NewAssign(testkit.Ident(c),
					ast.NewBinary(ast.BinaryLogicalOr, testkit.Ident(c), gt0(testkit.Ident(x))))}
			},
		},
		{
			name: "left operand of ||",
			tail: func(v, r, c, x symbols.SymbolID) []*ast.Stmt {
				return []*ast.Stmt{ast.NewAssign(testkit.Ident(c),
					ast.NewBinary(ast.BinaryLogicalOr, gt0(testkit.Ident(x)), testkit.Ident(c)))}
			},
			folded: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := testkit.NewUnit()
			v := u.Global(types.SpacePrivate, "v", u.B.I32)
			f := u.Func(symbols.NoSymbolID, "f", u.B.I32, nil,
				ast.NewAssign(testkit.Ident(v), ast.NewI32(7)),
				ast.NewReturn(ast.NewI32(1)))
			r := u.Sym(symbols.SymbolVar, "r")
			c := u.Sym(symbols.SymbolVar, "c")
			x := u.Sym(symbols.SymbolLet, "x")
			body := []*ast.Stmt{
				ast.NewVar(r, u.B.I32, nil),
				ast.NewVar(c, u.B.Bool, nil),
				ast.NewLet(x, u.B.I32, ast.NewCall(f.Sym)),
			}
			body = append(body, tt.tail(v, r, c, x)...)
			u.Compute("main", testkit.Size(1), nil, body...)

			out := apply(t, transform.FoldTrivialLets{}, u.MustResolve(t))
			if !tt.folded {
				if out.Rewritten {
					t.Fatalf("call moved to where it may not run as before:\n%s", testkit.Dump(out.Program))
				}
				return
			}
			if !out.Rewritten {
				t.Fatalf("expected a rewrite")
			}
			if tt.want != "" {
				checkDump(t, out.Program, tt.want)
			}
		})
	}
}

func TestFoldIntoNestedUse(t *testing.T) {
	u := testkit.NewUnit()
	v := u.Global(types.SpacePrivate, "v", u.B.I32)
	x := u.Sym(symbols.SymbolLet, "x")
	u.Compute("main", testkit.Size(1), nil,
		ast.NewLet(x, u.B.I32, testkit.Ident(v)),
		ast.NewIf(ast.NewBinary(ast.BinaryGt, testkit.Ident(v), ast.NewI32(0)), ast.NewBlock(
			ast.NewAssign(testkit.Ident(v), ast.NewI32(0)),
			ast.NewAssign(testkit.Ident(v), testkit.Ident(x)),
		), nil),
	)
	p := u.MustResolve(t)
	if out := apply(t, transform.FoldTrivialLets{}, p); out.Rewritten {
		t.Fatalf("fold crossed the write in the branch prefix:\n%s", testkit.Dump(out.Program))
	}
}
