package sema

import (
	"shaderpipe/internal/ast"
	"shaderpipe/internal/diag"
	"shaderpipe/internal/symbols"
	"shaderpipe/internal/types"
)

// uniformity is a conservative barrier-uniformity lint. A value is
// non-uniform when it may differ between invocations of one workgroup:
// per-invocation builtins, workgroup and read-write storage memory,
// atomics, parameters of helper functions, and locals derived from them or
// assigned under non-uniform control flow. Private variables are uniform.
type uniformity struct {
	r          *resolver
	fn         *ast.Func
	nonUniform map[symbols.SymbolID]bool
	changed    bool
	report     bool
}

const maxUniformityRounds = 64

func (r *resolver) checkUniformity(fn *ast.Func) {
	if fn.Body == nil {
		return
	}
	u := &uniformity{r: r, fn: fn, nonUniform: make(map[symbols.SymbolID]bool)}
	for _, p := range fn.Params {
		if !fn.IsEntryPoint() || !u.paramUniform(p) {
			u.nonUniform[p.Sym] = true
		}
	}
	for round := 0; round < maxUniformityRounds; round++ {
		u.changed = false
		u.block(fn.Body, false)
		if !u.changed {
			break
		}
	}
	u.report = true
	u.block(fn.Body, false)
}

func (u *uniformity) paramUniform(p *ast.Param) bool {
	if p.Builtin != ast.BuiltinNone {
		return p.Builtin.IsUniform()
	}
	sd, ok := u.r.structDecl(p.Type)
	if !ok {
		return false
	}
	for _, m := range sd.Members {
		if !m.Builtin.IsUniform() {
			return false
		}
	}
	return true
}

func (u *uniformity) mark(sym symbols.SymbolID) {
	if !u.nonUniform[sym] {
		u.nonUniform[sym] = true
		u.changed = true
	}
}

// block walks b; cf is true under non-uniform control flow.
func (u *uniformity) block(b *ast.Block, cf bool) {
	if b == nil {
		return
	}
	for _, s := range b.Stmts {
		if u.stmt(s, cf) {
			cf = true
		}
	}
}

// stmt walks s and reports whether control flow after s is non-uniform
// because s may leave the block divergently.
func (u *uniformity) stmt(s *ast.Stmt, cf bool) bool {
	switch d := s.Data.(type) {
	case ast.LetData:
		u.calls(d.Value, cf)
		if u.expr(d.Value) {
			u.mark(d.Sym)
		}
	case ast.VarData:
		u.calls(d.Value, cf)
		if d.Value != nil && u.expr(d.Value) {
			u.mark(d.Sym)
		}
	case ast.AssignData:
		u.calls(d.Target, cf)
		u.calls(d.Value, cf)
		if cf || u.expr(d.Value) || u.indexNonUniform(d.Target) {
			u.markRoot(d.Target)
		}
	case ast.IncDecData:
		u.calls(d.Target, cf)
		if cf || u.indexNonUniform(d.Target) {
			u.markRoot(d.Target)
		}
	case ast.ExprStmtData:
		u.calls(d.Expr, cf)
	case ast.ReturnData:
		u.calls(d.Value, cf)
	case ast.IfData:
		u.calls(d.Cond, cf)
		inner := cf || u.expr(d.Cond)
		u.block(d.Then, inner)
		u.block(d.Else, inner)
		return inner && !cf && (escapes(d.Then) || escapes(d.Else))
	case ast.ForData:
		if d.Init != nil {
			u.stmt(d.Init, cf)
		}
		u.calls(d.Cond, cf)
		inner := cf || (d.Cond != nil && u.expr(d.Cond))
		u.block(d.Body, inner)
		if d.Cont != nil {
			u.stmt(d.Cont, inner)
		}
	case ast.BlockStmtData:
		u.block(d.Block, cf)
	}
	return false
}

func (u *uniformity) markRoot(target *ast.Expr) {
	root, ok := ast.RootIdent(target)
	if !ok {
		return
	}
	sym, _ := root.Ident()
	if v := u.r.out.vars[sym]; v != nil && v.IsLocal() {
		u.mark(sym)
	}
}

func (u *uniformity) indexNonUniform(target *ast.Expr) bool {
	found := false
	for e := target; e != nil && !found; {
		switch d := e.Data.(type) {
		case ast.IndexData:
			found = u.expr(d.Index)
			e = d.Base
		case ast.MemberData:
			e = d.Base
		default:
			e = nil
		}
	}
	return found
}

// calls reports barriers reached from e under non-uniform control flow.
func (u *uniformity) calls(e *ast.Expr, cf bool) {
	if !u.report || !cf || e == nil {
		return
	}
	ast.InspectExpr(e, func(x *ast.Expr) bool {
		switch d := x.Data.(type) {
		case ast.BuiltinCallData:
			if d.Func == ast.BuiltinWorkgroupBarrier {
				u.r.errorf(diag.SemaNonUniformBarrier, x.Span, "workgroupBarrier in %s is reached under non-uniform control flow",
					u.r.name(u.fn.Sym))
			}
		case ast.CallData:
			if u.r.out.TransitiveBarrier(d.Func) {
				u.r.errorf(diag.SemaNonUniformBarrier, x.Span, "call of %s reaches workgroupBarrier under non-uniform control flow",
					u.r.name(d.Func))
			}
		}
		return true
	})
}

func (u *uniformity) expr(e *ast.Expr) bool {
	if e == nil {
		return false
	}
	switch d := e.Data.(type) {
	case ast.LiteralData:
		return false
	case ast.IdentData:
		return u.identNonUniform(d.Sym)
	case ast.MemberData:
		if sym, ok := d.Base.Ident(); ok {
			if v := u.r.out.vars[sym]; v != nil && v.Param != nil && u.fn.IsEntryPoint() && v.Param.Builtin == ast.BuiltinNone {
				if sd, ok := u.r.structDecl(v.Type); ok {
					for _, m := range sd.Members {
						if m.Name == d.Field {
							return !m.Builtin.IsUniform()
						}
					}
				}
			}
		}
	case ast.BuiltinCallData:
		switch d.Func {
		case ast.BuiltinAtomicLoad, ast.BuiltinAtomicAdd:
			return true
		}
	case ast.CallData:
		for _, g := range u.r.out.TransitiveGlobals(d.Func) {
			if nonUniformGlobal(u.r.globals[g]) {
				return true
			}
		}
	}
	for _, c := range ast.ExprChildren(e) {
		if u.expr(c) {
			return true
		}
	}
	return false
}

func (u *uniformity) identNonUniform(sym symbols.SymbolID) bool {
	if u.nonUniform[sym] {
		return true
	}
	v := u.r.out.vars[sym]
	return v != nil && nonUniformGlobal(v.Global)
}

func nonUniformGlobal(g *ast.GlobalVar) bool {
	if g == nil {
		return false
	}
	return g.Space == types.SpaceWorkgroup || (g.Space == types.SpaceStorage && g.ReadWrite)
}

// escapes reports whether b may leave its enclosing construct early.
func escapes(b *ast.Block) bool {
	found := false
	ast.Inspector{Stmt: func(s *ast.Stmt) bool {
		switch s.Kind {
		case ast.StmtReturn, ast.StmtBreak, ast.StmtContinue:
			found = true
		}
		return !found
	}}.WalkBlock(b)
	return found
}
