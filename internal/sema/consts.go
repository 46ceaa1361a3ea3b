package sema

import (
	"shaderpipe/internal/ast"
	"shaderpipe/internal/diag"
	"shaderpipe/internal/symbols"
	"shaderpipe/internal/types"
)

type constEvalState uint8

const (
	constStateUnvisited constEvalState = iota
	constStateVisiting
	constStateDone
)

// checkConst resolves a const declaration once. Idents that reach a const
// before its declaration is checked resolve it on demand.
func (r *resolver) checkConst(c *ast.Const) {
	switch r.constState[c.Sym] {
	case constStateDone:
		return
	case constStateVisiting:
		r.errorf(diag.SemaRecursion, c.Span, "const %s depends on itself", r.name(c.Sym))
		return
	}
	r.constState[c.Sym] = constStateVisiting
	defer func() { r.constState[c.Sym] = constStateDone }()

	if c.Value == nil {
		r.errorf(diag.SemaInvalidType, c.Span, "const %s needs a value", r.name(c.Sym))
		return
	}
	savedFn, savedInfo, savedStmt := r.fn, r.info, r.stmt
	r.fn, r.info, r.stmt = nil, nil, nil
	ty, ok := r.value(c.Value)
	r.fn, r.info, r.stmt = savedFn, savedInfo, savedStmt
	if !ok {
		return
	}
	if !r.isModuleConstExpr(c.Value) {
		r.errorf(diag.SemaTypeMismatch, c.Value.Span, "const %s must be initialized from literals and consts", r.name(c.Sym))
		return
	}
	ast.InspectExpr(c.Value, func(e *ast.Expr) bool {
		if sym, isIdent := e.Ident(); isIdent && r.syms.Kind(sym) == symbols.SymbolOverride {
			r.errorf(diag.SemaTypeMismatch, e.Span, "const %s cannot depend on override %s", r.name(c.Sym), r.name(sym))
			ok = false
		}
		return ok
	})
	if !ok {
		return
	}
	if c.Type != types.NoTypeID && ty != c.Type {
		r.errorf(diag.SemaTypeMismatch, c.Value.Span, "const %s of type %s has a value of type %s",
			r.name(c.Sym), r.label(c.Type), r.label(ty))
		return
	}
	r.out.vars[c.Sym].Type = ty
	if v, ok := evalInt(c.Value, r.evalConst); ok {
		r.out.constValues[c.Sym] = v
	}
}

func (r *resolver) evalConst(sym symbols.SymbolID) (int64, bool) {
	if v, ok := r.out.constValues[sym]; ok {
		return v, true
	}
	c, ok := r.out.decls[sym].(*ast.Const)
	if !ok || r.constBusy[sym] {
		return 0, false
	}
	r.constBusy[sym] = true
	defer delete(r.constBusy, sym)
	return evalInt(c.Value, r.evalConst)
}

// EvalInt folds an integer expression built from literals and consts.
// Overrides and everything else are not constant at this stage.
func (p *Program) EvalInt(e *ast.Expr) (int64, bool) {
	return evalInt(e, p.ConstValue)
}

func evalInt(e *ast.Expr, lookup func(symbols.SymbolID) (int64, bool)) (int64, bool) {
	if e == nil {
		return 0, false
	}
	switch d := e.Data.(type) {
	case ast.LiteralData:
		if d.Kind == ast.LiteralI32 || d.Kind == ast.LiteralU32 {
			return d.Int, true
		}
	case ast.IdentData:
		return lookup(d.Sym)
	case ast.ConstructData:
		if len(d.Args) == 1 {
			return evalInt(d.Args[0], lookup)
		}
	case ast.UnaryData:
		v, ok := evalInt(d.Operand, lookup)
		if !ok {
			return 0, false
		}
		switch d.Op {
		case ast.UnaryNeg:
			return -v, true
		case ast.UnaryBitNot:
			return ^v, true
		}
	case ast.BinaryData:
		l, ok := evalInt(d.Left, lookup)
		if !ok {
			return 0, false
		}
		rv, ok := evalInt(d.Right, lookup)
		if !ok {
			return 0, false
		}
		return foldBinary(d.Op, l, rv)
	}
	return 0, false
}

func foldBinary(op ast.BinaryOp, l, r int64) (int64, bool) {
	switch op {
	case ast.BinaryAdd:
		return l + r, true
	case ast.BinarySub:
		return l - r, true
	case ast.BinaryMul:
		return l * r, true
	case ast.BinaryDiv:
		if r == 0 {
			return 0, false
		}
		return l / r, true
	case ast.BinaryMod:
		if r == 0 {
			return 0, false
		}
		return l % r, true
	case ast.BinaryAnd:
		return l & r, true
	case ast.BinaryOr:
		return l | r, true
	case ast.BinaryXor:
		return l ^ r, true
	case ast.BinaryShl:
		if r < 0 || r > 31 {
			return 0, false
		}
		return l << r, true
	case ast.BinaryShr:
		if r < 0 || r > 31 {
			return 0, false
		}
		return l >> r, true
	}
	return 0, false
}
