package sema_test

import (
	"testing"

	"shaderpipe/internal/ast"
	"shaderpipe/internal/diag"
	"shaderpipe/internal/sema"
	"shaderpipe/internal/symbols"
	"shaderpipe/internal/testkit"
	"shaderpipe/internal/types"
)

func TestResolveSideTable(t *testing.T) {
	u := testkit.NewUnit()
	wgid := u.Global(types.SpacePrivate, "wgid", u.B.U32)
	read := testkit.Ident(wgid)
	inner := u.Func(symbols.NoSymbolID, "inner", u.B.U32, nil, ast.NewReturn(read))
	p := u.LocalIndex("wgid_param")
	call := ast.NewCall(inner.Sym)
	x := u.Sym(symbols.SymbolLet, "x")
	assign := ast.NewAssign(testkit.Ident(wgid), testkit.Ident(p.Sym))
	main := u.Compute("main", testkit.Size(1), []*ast.Param{p},
		assign,
		ast.NewLet(x, u.B.U32, call),
	)

	prog := u.MustResolve(t)
	if err := testkit.CheckInvariants(prog); err != nil {
		t.Fatalf("invariants: %v", err)
	}

	v := prog.Var(wgid)
	if v == nil || v.Global == nil {
		t.Fatalf("expected global variable info for wgid")
	}
	var reads, writes int
	for _, use := range v.Users {
		if use.Read {
			reads++
			if use.Func != inner || use.Expr != read {
				t.Errorf("read of wgid attributed to %v", use.Func)
			}
		}
		if use.Write {
			writes++
			if use.Func != main || use.Stmt != assign {
				t.Errorf("write of wgid attributed to wrong statement")
			}
		}
	}
	if reads != 1 || writes != 1 {
		t.Fatalf("reads=%d writes=%d, want 1 and 1", reads, writes)
	}

	sites := prog.Func(inner.Sym).CallSites
	if len(sites) != 1 || sites[0].Caller != main || sites[0].Call != call {
		t.Fatalf("unexpected call sites: %+v", sites)
	}
	if got := prog.TypeOf(call); got != u.B.U32 {
		t.Errorf("call type = %d, want u32", got)
	}
	if got := prog.TransitiveGlobals(main.Sym); len(got) != 1 || got[0] != wgid {
		t.Errorf("TransitiveGlobals(main) = %v", got)
	}
	if !prog.TransitivelyWrites(main.Sym, wgid) || prog.TransitivelyWrites(inner.Sym, wgid) {
		t.Errorf("write summary is wrong")
	}
	if eps := prog.EntryPointsReaching(inner.Sym); len(eps) != 1 || eps[0] != main {
		t.Errorf("EntryPointsReaching(inner) = %v", eps)
	}
	if got := prog.ReachableFuncs(main.Sym); len(got) != 2 || got[0] != inner || got[1] != main {
		t.Errorf("ReachableFuncs(main) = %v", got)
	}
}

func TestResolveParentLinks(t *testing.T) {
	u := testkit.NewUnit()
	idx := u.LocalIndex("idx")
	i := u.Sym(symbols.SymbolVar, "i")
	init := ast.NewVar(i, u.B.U32, testkit.Ident(idx.Sym))
	cont := ast.NewCompoundAssign(ast.BinaryAdd, testkit.Ident(i), ast.NewU32(1))
	brk := ast.NewBreak()
	body := ast.NewBlock(ast.NewIf(ast.NewBinary(ast.BinaryGt, testkit.Ident(i), ast.NewU32(4)), ast.NewBlock(brk), nil))
	loop := ast.NewFor(init, ast.NewBinary(ast.BinaryLt, testkit.Ident(i), ast.NewU32(8)), cont, body)
	main := u.Compute("main", testkit.Size(1), []*ast.Param{idx}, loop)

	prog := u.MustResolve(t)
	if prog.ParentStmt(init) != loop || prog.ParentStmt(cont) != loop {
		t.Fatalf("loop init and continuing must belong to the loop")
	}
	if prog.EnclosingBlock(init) != nil {
		t.Fatalf("loop init is not listed in a block")
	}
	if !prog.IsTopLevel(loop) || prog.IsTopLevel(brk) {
		t.Fatalf("IsTopLevel is wrong")
	}
	if !prog.InLoop(brk) || prog.InLoop(loop) {
		t.Fatalf("InLoop is wrong")
	}
	if prog.BlockOwner(body) != loop || prog.BlockFunc(body) != main {
		t.Fatalf("body block links are wrong")
	}
	if prog.EnclosingFunc(brk) != main {
		t.Fatalf("EnclosingFunc(break) != main")
	}
}

func TestConstEvaluation(t *testing.T) {
	u := testkit.NewUnit()
	n := u.Sym(symbols.SymbolConst, "N")
	m := u.Const("M", u.B.I32, ast.NewBinary(ast.BinaryMul, testkit.Ident(n), ast.NewI32(2)))
	u.Decls = append(u.Decls, &ast.Const{Sym: n, Type: u.B.I32, Value: ast.NewI32(4)})
	size := testkit.Ident(m)
	u.Compute("main", [3]*ast.Expr{size}, nil)

	prog := u.MustResolve(t)
	if v, ok := prog.ConstValue(m); !ok || v != 8 {
		t.Fatalf("ConstValue(M) = %d, %v", v, ok)
	}
	if v, ok := prog.EvalInt(size); !ok || v != 8 {
		t.Fatalf("EvalInt(size) = %d, %v", v, ok)
	}
}

func TestUniformBuiltinGuardsBarrier(t *testing.T) {
	u := testkit.NewUnit()
	wid := u.Param("wid", u.B.Vec3U32, ast.BuiltinWorkgroupID)
	cond := ast.NewBinary(ast.BinaryEq, ast.NewMember(testkit.Ident(wid.Sym), "x"), ast.NewU32(0))
	u.Compute("main", testkit.Size(64), []*ast.Param{wid},
		ast.NewIf(cond, ast.NewBlock(ast.NewExprStmt(ast.NewBuiltinCall(ast.BuiltinWorkgroupBarrier))), nil),
	)
	u.MustResolve(t)
}

func TestDisableUniformitySkipsLint(t *testing.T) {
	u := nonUniformBarrierUnit()
	prog := u.Program()
	prog.DisableUniformity = true
	if _, err := sema.Resolve(prog, u.Syms, u.Types, sema.Options{}); err != nil {
		t.Fatalf("resolve with uniformity disabled: %v", err)
	}
}

func nonUniformBarrierUnit() *testkit.Unit {
	u := testkit.NewUnit()
	idx := u.LocalIndex("idx")
	cond := ast.NewBinary(ast.BinaryEq, testkit.Ident(idx.Sym), ast.NewU32(0))
	u.Compute("main", testkit.Size(64), []*ast.Param{idx},
		ast.NewIf(cond, ast.NewBlock(ast.NewExprStmt(ast.NewBuiltinCall(ast.BuiltinWorkgroupBarrier))), nil),
	)
	return u
}

func TestResolveDiagnostics(t *testing.T) {
	tests := []struct {
		name  string
		build func() *testkit.Unit
		want  diag.Code
	}{
		{"undeclared local", func() *testkit.Unit {
			u := testkit.NewUnit()
			ghost := u.Sym(symbols.SymbolLet, "ghost")
			y := u.Sym(symbols.SymbolLet, "y")
			u.Compute("main", testkit.Size(1), nil, ast.NewLet(y, types.NoTypeID, testkit.Ident(ghost)))
			return u
		}, diag.SemaUnresolvedSymbol},
		{"out of scope", func() *testkit.Unit {
			u := testkit.NewUnit()
			x := u.Sym(symbols.SymbolLet, "x")
			y := u.Sym(symbols.SymbolLet, "y")
			u.Compute("main", testkit.Size(1), nil,
				ast.NewBlockStmt(ast.NewBlock(ast.NewLet(x, u.B.I32, ast.NewI32(1)))),
				ast.NewLet(y, u.B.I32, testkit.Ident(x)),
			)
			return u
		}, diag.SemaUnresolvedSymbol},
		{"duplicate let", func() *testkit.Unit {
			u := testkit.NewUnit()
			x := u.Sym(symbols.SymbolLet, "x")
			u.Compute("main", testkit.Size(1), nil,
				ast.NewLet(x, u.B.I32, ast.NewI32(1)),
				ast.NewLet(x, u.B.I32, ast.NewI32(2)),
			)
			return u
		}, diag.SemaDuplicateSymbol},
		{"let type mismatch", func() *testkit.Unit {
			u := testkit.NewUnit()
			x := u.Sym(symbols.SymbolLet, "x")
			u.Compute("main", testkit.Size(1), nil, ast.NewLet(x, u.B.U32, ast.NewI32(1)))
			return u
		}, diag.SemaTypeMismatch},
		{"assign to let", func() *testkit.Unit {
			u := testkit.NewUnit()
			x := u.Sym(symbols.SymbolLet, "x")
			u.Compute("main", testkit.Size(1), nil,
				ast.NewLet(x, u.B.I32, ast.NewI32(1)),
				ast.NewAssign(testkit.Ident(x), ast.NewI32(2)),
			)
			return u
		}, diag.SemaAssignImmutable},
		{"recursion", func() *testkit.Unit {
			u := testkit.NewUnit()
			g := u.Sym(symbols.SymbolFunc, "g")
			f := u.Func(symbols.NoSymbolID, "f", types.NoTypeID, nil, ast.NewExprStmt(ast.NewCall(g)))
			u.Func(g, "g", types.NoTypeID, nil, ast.NewExprStmt(ast.NewCall(f.Sym)))
			return u
		}, diag.SemaRecursion},
		{"argument count", func() *testkit.Unit {
			u := testkit.NewUnit()
			f := u.Func(symbols.NoSymbolID, "f", types.NoTypeID, []*ast.Param{u.Param("a", u.B.I32, ast.BuiltinNone)})
			u.Compute("main", testkit.Size(1), nil, ast.NewExprStmt(ast.NewCall(f.Sym)))
			return u
		}, diag.SemaArgumentCount},
		{"break outside loop", func() *testkit.Unit {
			u := testkit.NewUnit()
			u.Compute("main", testkit.Size(1), nil, ast.NewBreak())
			return u
		}, diag.SemaMisplacedStatement},
		{"shared expression", func() *testkit.Unit {
			u := testkit.NewUnit()
			x := u.Sym(symbols.SymbolLet, "x")
			y := u.Sym(symbols.SymbolLet, "y")
			one := ast.NewI32(1)
			u.Compute("main", testkit.Size(1), nil,
				ast.NewLet(x, u.B.I32, one),
				ast.NewLet(y, u.B.I32, one),
			)
			return u
		}, diag.SemaSharedNode},
		{"non-uniform barrier", nonUniformBarrierUnit, diag.SemaNonUniformBarrier},
		{"workgroup in fragment", func() *testkit.Unit {
			u := testkit.NewUnit()
			w := u.Global(types.SpaceWorkgroup, "w", u.B.U32)
			x := u.Sym(symbols.SymbolLet, "x")
			u.Decls = append(u.Decls, &ast.Func{
				Sym:   u.Sym(symbols.SymbolFunc, "frag"),
				Stage: ast.StageFragment,
				Body:  ast.NewBlock(ast.NewLet(x, u.B.U32, testkit.Ident(w))),
			})
			return u
		}, diag.SemaWorkgroupOutsideCompute},
		{"missing workgroup size", func() *testkit.Unit {
			u := testkit.NewUnit()
			u.Compute("main", [3]*ast.Expr{}, nil)
			return u
		}, diag.SemaInvalidEntryPoint},
		{"atomic loaded directly", func() *testkit.Unit {
			u := testkit.NewUnit()
			a := u.Global(types.SpaceWorkgroup, "a", u.Atomic(u.B.U32))
			x := u.Sym(symbols.SymbolLet, "x")
			u.Compute("main", testkit.Size(1), nil, ast.NewLet(x, u.B.U32, testkit.Ident(a)))
			return u
		}, diag.SemaTypeMismatch},
		{"calling an entry point", func() *testkit.Unit {
			u := testkit.NewUnit()
			other := u.Compute("other", testkit.Size(1), nil)
			u.Compute("main", testkit.Size(1), nil, ast.NewExprStmt(ast.NewCall(other.Sym)))
			return u
		}, diag.SemaWrongSymbolKind},
		{"private initializer reads a variable", func() *testkit.Unit {
			u := testkit.NewUnit()
			g := u.Global(types.SpacePrivate, "g", u.B.U32)
			u.Global(types.SpacePrivate, "h", u.B.U32)
			u.Decls[len(u.Decls)-1].(*ast.GlobalVar).Init = testkit.Ident(g)
			idx := u.LocalIndex("idx")
			u.Compute("main", testkit.Size(1), []*ast.Param{idx}, ast.NewAssign(testkit.Ident(g), testkit.Ident(idx.Sym)))
			return u
		}, diag.SemaTypeMismatch},
		{"override default reads a variable", func() *testkit.Unit {
			u := testkit.NewUnit()
			g := u.Global(types.SpacePrivate, "g", u.B.U32)
			u.Override("N", u.B.U32, testkit.Ident(g))
			u.Compute("main", testkit.Size(1), nil)
			return u
		}, diag.SemaTypeMismatch},
		{"constant index out of bounds", func() *testkit.Unit {
			u := testkit.NewUnit()
			a := u.Global(types.SpaceWorkgroup, "a", u.Array(u.B.I32, 4))
			u.Compute("main", testkit.Size(1), nil, ast.NewAssign(ast.NewIndex(testkit.Ident(a), ast.NewU32(4)), ast.NewI32(0)))
			return u
		}, diag.SemaInvalidIndex},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build().Resolve()
			if err == nil {
				t.Fatalf("expected %s, resolution succeeded", tt.want.ID())
			}
			de, ok := diag.FromError(err)
			if !ok {
				t.Fatalf("expected *diag.Error, got %T: %v", err, err)
			}
			for _, d := range de.Diags {
				if d.Code == tt.want {
					return
				}
			}
			t.Fatalf("expected %s among %v", tt.want.ID(), err)
		})
	}
}

func TestAtomicBuiltinsRecordAccess(t *testing.T) {
	u := testkit.NewUnit()
	counter := u.Global(types.SpaceWorkgroup, "counter", u.Atomic(u.B.U32))
	x := u.Sym(symbols.SymbolLet, "x")
	u.Compute("main", testkit.Size(1), nil,
		ast.NewExprStmt(ast.NewBuiltinCall(ast.BuiltinAtomicStore, ast.NewAddrOf(testkit.Ident(counter)), ast.NewU32(0))),
		ast.NewLet(x, u.B.U32, ast.NewBuiltinCall(ast.BuiltinAtomicLoad, ast.NewAddrOf(testkit.Ident(counter)))),
	)
	prog := u.MustResolve(t)
	users := prog.Var(counter).Users
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	if !users[0].Write || users[0].Read {
		t.Errorf("atomicStore must be a pure write: %+v", users[0])
	}
	if users[1].Write || !users[1].Read {
		t.Errorf("atomicLoad must be a pure read: %+v", users[1])
	}
}

func TestPrivateInitializerFromConstants(t *testing.T) {
	u := testkit.NewUnit()
	base := u.Const("BASE", u.B.I32, ast.NewI32(2))
	g := u.Global(types.SpacePrivate, "g", u.B.I32)
	u.Decls[len(u.Decls)-1].(*ast.GlobalVar).Init = ast.NewBinary(ast.BinaryMul, testkit.Ident(base), ast.NewI32(3))
	r := u.Sym(symbols.SymbolLet, "r")
	u.Compute("main", testkit.Size(1), nil, ast.NewLet(r, u.B.I32, testkit.Ident(g)))
	p := u.MustResolve(t)
	for _, use := range p.Var(g).Users {
		if use.Func == nil {
			t.Fatalf("use of %s recorded at module scope", p.Symbols.Name(g))
		}
	}
}
