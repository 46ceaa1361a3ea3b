package sema

import (
	"shaderpipe/internal/ast"
	"shaderpipe/internal/diag"
	"shaderpipe/internal/symbols"
	"shaderpipe/internal/types"
)

func (r *resolver) block(b *ast.Block, owner *ast.Stmt) {
	if b == nil {
		return
	}
	if _, seen := r.out.blockFunc[b]; seen {
		r.errorf(diag.SemaSharedNode, b.Span, "block appears more than once in the program")
		return
	}
	r.out.blockFunc[b] = r.fn
	if owner != nil {
		r.out.blockOwner[b] = owner
	}
	r.push()
	for _, s := range b.Stmts {
		if s == nil {
			r.errorf(diag.InternalError, b.Span, "nil statement in block")
			continue
		}
		if _, listed := r.out.stmtBlock[s]; !listed {
			r.out.stmtBlock[s] = b
		}
		r.stmtNode(s)
	}
	r.pop()
}

func (r *resolver) stmtNode(s *ast.Stmt) {
	if r.seenStmt[s] {
		r.errorf(diag.SemaSharedNode, s.Span, "%s statement appears more than once in the program", s.Kind)
		return
	}
	r.seenStmt[s] = true
	r.out.stmtFunc[s] = r.fn
	prev := r.stmt
	r.stmt = s
	defer func() { r.stmt = prev }()

	switch d := s.Data.(type) {
	case ast.LetData:
		r.letStmt(s, d)
	case ast.VarData:
		r.varStmt(s, d)
	case ast.AssignData:
		r.assignStmt(d)
	case ast.IncDecData:
		ty, ok := r.assignTarget(d.Target, accessRead|accessWrite)
		if ok && !r.isIntegerScalar(ty) {
			r.errorf(diag.SemaTypeMismatch, d.Target.Span, "increment needs an integer, not %s", r.label(ty))
		}
	case ast.ExprStmtData:
		if d.Expr == nil || (d.Expr.Kind != ast.ExprCall && d.Expr.Kind != ast.ExprBuiltin) {
			r.errorf(diag.SemaMisplacedStatement, s.Span, "expression statement must be a call")
			if d.Expr != nil {
				r.expr(d.Expr)
			}
			return
		}
		r.expr(d.Expr)
	case ast.ReturnData:
		r.returnStmt(s, d)
	case ast.IfData:
		r.condition(d.Cond)
		r.block(d.Then, s)
		r.block(d.Else, s)
	case ast.ForData:
		r.forStmt(s, d)
	case ast.BreakData, ast.ContinueData:
		if r.loopDepth == 0 {
			r.errorf(diag.SemaMisplacedStatement, s.Span, "%s outside of a loop", s.Kind)
		}
	case ast.BlockStmtData:
		r.block(d.Block, s)
	default:
		r.errorf(diag.InternalError, s.Span, "unknown statement kind %s", s.Kind)
	}
}

func (r *resolver) letStmt(s *ast.Stmt, d ast.LetData) {
	ty, ok := types.NoTypeID, false
	if d.Value == nil {
		r.errorf(diag.SemaTypeMismatch, s.Span, "let %s needs a value", r.name(d.Sym))
	} else {
		ty, ok = r.value(d.Value)
	}
	if ok && d.Type != types.NoTypeID && ty != d.Type {
		r.errorf(diag.SemaTypeMismatch, d.Value.Span, "cannot bind %s to let %s of type %s",
			r.label(ty), r.name(d.Sym), r.label(d.Type))
	}
	if d.Type != types.NoTypeID {
		ty = d.Type
	}
	r.declareLocal(d.Sym, symbols.SymbolLet, ty, s)
}

func (r *resolver) varStmt(s *ast.Stmt, d ast.VarData) {
	ty := d.Type
	if d.Value != nil {
		vt, ok := r.value(d.Value)
		switch {
		case !ok:
		case ty == types.NoTypeID:
			ty = vt
		case vt != ty:
			r.errorf(diag.SemaTypeMismatch, d.Value.Span, "cannot initialize var %s of type %s with %s",
				r.name(d.Sym), r.label(ty), r.label(vt))
		}
	} else if ty == types.NoTypeID {
		r.errorf(diag.SemaInvalidType, s.Span, "var %s needs a type or an initializer", r.name(d.Sym))
	}
	if ty != types.NoTypeID && !r.tys.IsConstructible(ty) {
		r.errorf(diag.SemaInvalidType, s.Span, "var %s cannot have type %s", r.name(d.Sym), r.label(ty))
	}
	r.declareLocal(d.Sym, symbols.SymbolVar, ty, s)
}

func (r *resolver) declareLocal(sym symbols.SymbolID, kind symbols.SymbolKind, ty types.TypeID, s *ast.Stmt) {
	if !r.declareSym(sym, kind, s.Span) {
		return
	}
	r.out.vars[sym] = &Variable{Sym: sym, Kind: kind, Type: ty, Space: types.SpaceFunction, Stmt: s, Func: r.fn}
	r.bind(sym)
}

func (r *resolver) assignStmt(d ast.AssignData) {
	mode := accessWrite
	if d.Op != ast.BinaryNone {
		mode |= accessRead
	}
	tt, tok := r.assignTarget(d.Target, mode)
	if d.Value == nil {
		r.errorf(diag.SemaTypeMismatch, d.Target.Span, "assignment needs a value")
		return
	}
	vt, vok := r.value(d.Value)
	if !tok || !vok {
		return
	}
	if d.Op == ast.BinaryNone {
		if vt != tt {
			r.errorf(diag.SemaTypeMismatch, d.Value.Span, "cannot assign %s to %s", r.label(vt), r.label(tt))
		}
		return
	}
	if d.Op.IsComparison() || d.Op.IsLogical() {
		r.errorf(diag.SemaTypeMismatch, d.Value.Span, "%s= is not a compound assignment", d.Op)
		return
	}
	if res, ok := r.binaryResult(d.Op, tt, vt, d.Value); ok && res != tt {
		r.errorf(diag.SemaTypeMismatch, d.Value.Span, "%s= produces %s, not %s", d.Op, r.label(res), r.label(tt))
	}
}

// assignTarget resolves an assignable reference and checks its root is mutable.
func (r *resolver) assignTarget(e *ast.Expr, mode access) (types.TypeID, bool) {
	if e == nil {
		return types.NoTypeID, false
	}
	switch e.Kind {
	case ast.ExprIdent, ast.ExprIndex, ast.ExprMember:
	default:
		r.errorf(diag.SemaAssignImmutable, e.Span, "cannot assign to a %s expression", e.Kind)
		r.expr(e)
		return types.NoTypeID, false
	}
	ty, ok := r.reference(e, mode)
	if !ok {
		return ty, false
	}
	if !r.checkMutableRoot(e) {
		return ty, false
	}
	if r.tys.Contains(ty, types.KindAtomic) {
		r.errorf(diag.SemaTypeMismatch, e.Span, "atomic values can only be written with atomic builtins")
		return ty, false
	}
	return ty, true
}

func (r *resolver) checkMutableRoot(e *ast.Expr) bool {
	root, ok := ast.RootIdent(e)
	if !ok {
		r.errorf(diag.SemaAssignImmutable, e.Span, "expression is not assignable")
		return false
	}
	sym, _ := root.Ident()
	v := r.out.vars[sym]
	if v == nil {
		return false
	}
	if !v.Kind.IsMutable() {
		r.errorf(diag.SemaAssignImmutable, e.Span, "cannot assign to %s %s", v.Kind, r.name(sym))
		return false
	}
	if g := v.Global; g != nil {
		if g.Space == types.SpaceUniform || (g.Space == types.SpaceStorage && !g.ReadWrite) {
			r.errorf(diag.SemaAssignImmutable, e.Span, "cannot write to read-only %s variable %s", g.Space, r.name(sym))
			return false
		}
	}
	return true
}

func (r *resolver) returnStmt(s *ast.Stmt, d ast.ReturnData) {
	want := r.fn.Result
	if d.Value == nil {
		if want != types.NoTypeID {
			r.errorf(diag.SemaTypeMismatch, s.Span, "missing return value of type %s", r.label(want))
		}
		return
	}
	ty, ok := r.value(d.Value)
	if !ok {
		return
	}
	if want == types.NoTypeID {
		r.errorf(diag.SemaTypeMismatch, d.Value.Span, "function %s does not return a value", r.name(r.fn.Sym))
		return
	}
	if ty != want {
		r.errorf(diag.SemaTypeMismatch, d.Value.Span, "cannot return %s from function returning %s", r.label(ty), r.label(want))
	}
}

func (r *resolver) condition(e *ast.Expr) {
	if e == nil {
		return
	}
	ty, ok := r.value(e)
	if ok && ty != r.b.Bool {
		r.errorf(diag.SemaTypeMismatch, e.Span, "condition must be bool, not %s", r.label(ty))
	}
}

func (r *resolver) forStmt(s *ast.Stmt, d ast.ForData) {
	r.push()
	defer r.pop()
	if d.Init != nil {
		switch d.Init.Kind {
		case ast.StmtLet, ast.StmtVar, ast.StmtAssign, ast.StmtIncDec, ast.StmtExpr:
		default:
			r.errorf(diag.SemaMisplacedStatement, d.Init.Span, "%s statement cannot initialize a loop", d.Init.Kind)
		}
		r.out.stmtOwner[d.Init] = s
		r.stmtNode(d.Init)
	}
	r.stmt = s
	r.condition(d.Cond)
	r.loopDepth++
	defer func() { r.loopDepth-- }()
	if d.Cont != nil {
		switch d.Cont.Kind {
		case ast.StmtAssign, ast.StmtIncDec, ast.StmtExpr:
		default:
			r.errorf(diag.SemaMisplacedStatement, d.Cont.Span, "%s statement cannot continue a loop", d.Cont.Kind)
		}
		r.out.stmtOwner[d.Cont] = s
		r.stmtNode(d.Cont)
	}
	r.block(d.Body, s)
}
