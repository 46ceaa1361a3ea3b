package rewrite_test

import (
	"context"
	"strings"
	"testing"

	"shaderpipe/internal/ast"
	"shaderpipe/internal/diag"
	"shaderpipe/internal/rewrite"
	"shaderpipe/internal/sema"
	"shaderpipe/internal/symbols"
	"shaderpipe/internal/testkit"
	"shaderpipe/internal/types"
)

type fixture struct {
	u      *testkit.Unit
	prog   *sema.Program
	v      symbols.SymbolID
	let    *ast.Stmt
	init   *ast.Expr
	use    *ast.Expr
	assign *ast.Stmt
	main   *ast.Func
}

// newFixture builds
//
//	var<private> v : i32;
//	fn main() { let x : i32 = v; v = x + 1i; }
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{u: testkit.NewUnit()}
	u := f.u
	f.v = u.Global(types.SpacePrivate, "v", u.B.I32)
	x := u.Sym(symbols.SymbolLet, "x")
	f.init = testkit.Ident(f.v)
	f.let = ast.NewLet(x, u.B.I32, f.init)
	f.use = testkit.Ident(x)
	f.assign = ast.NewAssign(testkit.Ident(f.v), ast.NewBinary(ast.BinaryAdd, f.use, ast.NewI32(1)))
	f.main = u.Compute("main", testkit.Size(1), nil, f.let, f.assign)
	f.prog = u.MustResolve(t)
	return f
}

func lines(ls ...string) string {
	return strings.Join(ls, "\n") + "\n"
}

func commit(t *testing.T, c *rewrite.Context) *sema.Program {
	t.Helper()
	out, err := c.Commit(context.Background())
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := testkit.CheckInvariants(out); err != nil {
		t.Fatalf("invariants: %v", err)
	}
	return out
}

func wantCode(t *testing.T, err error, code diag.Code) *diag.Error {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got success", code.ID())
	}
	de, ok := diag.FromError(err)
	if !ok {
		t.Fatalf("expected *diag.Error, got %T: %v", err, err)
	}
	if de.Primary().Code != code {
		t.Fatalf("expected %s, got %v", code.ID(), err)
	}
	return de
}

func TestCommitIdentity(t *testing.T) {
	f := newFixture(t)
	c := rewrite.New(f.prog, rewrite.Options{})
	if c.Changed() {
		t.Fatalf("fresh context reports changes")
	}
	out := commit(t, c)
	if got, want := testkit.Dump(out), testkit.Dump(f.prog); got != want {
		t.Fatalf("identity clone differs:\n%s\nvs\n%s", got, want)
	}
	if out.AST == f.prog.AST || out.AST.Funcs()[0].Body.Stmts[0] == f.let {
		t.Fatalf("identity clone shares nodes with its source")
	}
}

func TestReplaceAndRemoveLeavesSourceIntact(t *testing.T) {
	f := newFixture(t)
	before := testkit.Dump(f.prog)
	c := rewrite.New(f.prog, rewrite.Options{})
	c.ReplaceExprFunc(f.use, func() *ast.Expr { return c.CloneExpr(f.init) })
	c.RemoveStmt(f.let)
	out := commit(t, c)

	want := lines(
		"var<private> v : i32;",
		"",
		"@compute @workgroup_size(1i)",
		"fn main() {",
		"  v = v + 1i;",
		"}",
	)
	if got := testkit.Dump(out); got != want {
		t.Fatalf("unexpected output:\nwant:\n%s\ngot:\n%s", want, got)
	}
	if got := testkit.Dump(f.prog); got != before {
		t.Fatalf("source program changed:\n%s", got)
	}
}

func TestListInsertions(t *testing.T) {
	f := newFixture(t)
	u := f.u
	c := rewrite.New(f.prog, rewrite.Options{})
	body := f.main.Body
	y := u.Sym(symbols.SymbolLet, "y")

	c.Stmts(body).InsertBack(ast.NewAssign(testkit.Ident(f.v), ast.NewI32(3)))
	c.InsertStmtBefore(f.assign, ast.NewLet(y, u.B.I32, ast.NewI32(2)))
	c.Stmts(body).InsertAfter(f.let, ast.NewAssign(testkit.Ident(f.v), ast.NewI32(4)))
	c.Stmts(body).InsertFront(ast.NewExprStmt(ast.NewBuiltinCall(ast.BuiltinWorkgroupBarrier)))
	c.Stmts(body).InsertFront(ast.NewAssign(testkit.Ident(f.v), ast.NewI32(0)))
	out := commit(t, c)

	want := lines(
		"var<private> v : i32;",
		"",
		"@compute @workgroup_size(1i)",
		"fn main() {",
		"  workgroupBarrier();",
		"  v = 0i;",
		"  let x : i32 = v;",
		"  v = 4i;",
		"  let y : i32 = 2i;",
		"  v = x + 1i;",
		"  v = 3i;",
		"}",
	)
	if got := testkit.Dump(out); got != want {
		t.Fatalf("unexpected output:\nwant:\n%s\ngot:\n%s", want, got)
	}
}

func TestParamsAndArgs(t *testing.T) {
	u := testkit.NewUnit()
	ret := ast.NewI32(0)
	inner := u.Func(symbols.NoSymbolID, "inner", u.B.I32, nil, ast.NewReturn(ret))
	r := u.Sym(symbols.SymbolLet, "r")
	call := ast.NewCall(inner.Sym)
	u.Compute("main", testkit.Size(1), nil, ast.NewLet(r, u.B.I32, call))
	prog := u.MustResolve(t)

	c := rewrite.New(prog, rewrite.Options{SymbolPrefix: "tint_"})
	p := c.Fresh(symbols.SymbolParam, "p")
	c.Params(inner).InsertBack(&ast.Param{Sym: p, Type: u.B.I32})
	c.ReplaceExpr(ret, testkit.Ident(p))
	c.Args(call).InsertBack(ast.NewI32(5))
	out := commit(t, c)

	want := lines(
		"fn inner(tint_p : i32) -> i32 {",
		"  return tint_p;",
		"}",
		"",
		"@compute @workgroup_size(1i)",
		"fn main() {",
		"  let r : i32 = inner(5i);",
		"}",
	)
	if got := testkit.Dump(out); got != want {
		t.Fatalf("unexpected output:\nwant:\n%s\ngot:\n%s", want, got)
	}
}

func TestReplacementClonedTwiceIsCopied(t *testing.T) {
	f := newFixture(t)
	c := rewrite.New(f.prog, rewrite.Options{})
	c.ReplaceExpr(f.use, ast.NewI32(7))
	// The assignment reaches the replaced use both in place and via the copy.
	c.Stmts(f.main.Body).InsertBack(c.CloneStmt(f.assign))
	out := commit(t, c)
	stmts := out.AST.Funcs()[0].Body.Stmts
	if len(stmts) != 3 {
		t.Fatalf("expected 3 statements, got %d", len(stmts))
	}
	if got := ast.BlockString(out.AST.Funcs()[0].Body, out.Symbols, out.Types); !strings.Contains(got, "v = 7i + 1i;\nv = 7i + 1i;") {
		t.Fatalf("unexpected body:\n%s", got)
	}
}

func TestCloneFreshMintsNewBindings(t *testing.T) {
	f := newFixture(t)
	c := rewrite.New(f.prog, rewrite.Options{})
	c.Stmts(f.main.Body).InsertAfter(f.let, c.CloneFreshStmt(f.let))
	out := commit(t, c)
	got := ast.BlockString(out.AST.Funcs()[0].Body, out.Symbols, out.Types)
	if !strings.Contains(got, "let x : i32 = v;\nlet x_1 : i32 = v;\nv = x + 1i;") {
		t.Fatalf("unexpected body:\n%s", got)
	}
}

func TestUnreachableEditIsInternalError(t *testing.T) {
	f := newFixture(t)
	c := rewrite.New(f.prog, rewrite.Options{})
	c.ReplaceExpr(ast.NewI32(9), ast.NewI32(1))
	_, err := c.Commit(context.Background())
	wantCode(t, err, diag.InternalUnreachableEdit)
}

func TestSourceNodeReuseIsInternalError(t *testing.T) {
	f := newFixture(t)
	c := rewrite.New(f.prog, rewrite.Options{})
	c.ReplaceExpr(f.use, f.init)
	_, err := c.Commit(context.Background())
	wantCode(t, err, diag.InternalInvalidRewrite)
}

func TestUnresolvableResultIsInternalError(t *testing.T) {
	f := newFixture(t)
	c := rewrite.New(f.prog, rewrite.Options{})
	c.ReplaceExpr(f.init, ast.NewU32(1))
	_, err := c.Commit(context.Background())
	de := wantCode(t, err, diag.InternalInvalidRewrite)
	notes := de.Primary().Notes
	if len(notes) == 0 || !strings.HasPrefix(notes[0].Msg, diag.SemaTypeMismatch.ID()) {
		t.Fatalf("expected a type mismatch note, got %+v", notes)
	}
}

func TestCommitTwice(t *testing.T) {
	f := newFixture(t)
	c := rewrite.New(f.prog, rewrite.Options{})
	commit(t, c)
	_, err := c.Commit(context.Background())
	wantCode(t, err, diag.InternalInvalidRewrite)
}

func TestAllowDisablingAnalysis(t *testing.T) {
	u := testkit.NewUnit()
	idx := u.LocalIndex("idx")
	then := ast.NewBlock()
	u.Compute("main", testkit.Size(4), []*ast.Param{idx},
		ast.NewIf(ast.NewBinary(ast.BinaryEq, testkit.Ident(idx.Sym), ast.NewU32(0)), then, nil),
	)
	prog := u.MustResolve(t)
	addBarrier := func(opts rewrite.Options) (*sema.Program, error) {
		c := rewrite.New(prog, opts)
		c.Stmts(then).InsertBack(ast.NewExprStmt(ast.NewBuiltinCall(ast.BuiltinWorkgroupBarrier)))
		return c.Commit(context.Background())
	}

	_, err := addBarrier(rewrite.Options{})
	wantCode(t, err, diag.InternalInvalidRewrite)

	out, err := addBarrier(rewrite.Options{AllowDisablingAnalysis: true})
	if err != nil {
		t.Fatalf("commit with analysis disabling allowed: %v", err)
	}
	if !out.AST.DisableUniformity {
		t.Fatalf("expected the uniformity lint to be disabled")
	}
	if !strings.HasPrefix(testkit.Dump(out), "diagnostic(off, derivative_uniformity);") {
		t.Fatalf("missing diagnostic directive:\n%s", testkit.Dump(out))
	}
	if prog.AST.DisableUniformity {
		t.Fatalf("source program was modified")
	}
}
