package transform

import (
	"context"
	"fmt"

	"shaderpipe/internal/ast"
	"shaderpipe/internal/diag"
	"shaderpipe/internal/rewrite"
	"shaderpipe/internal/sema"
	"shaderpipe/internal/symbols"
	"shaderpipe/internal/types"
)

// PromoteModuleState replaces a private module-scope variable that every
// entry point using it assigns exactly once, at the top of its body and
// before any read, by a value threaded through function parameters. The
// assigned value may only depend on the entry point's parameters, literals,
// consts and overrides. Variables that do not match are left alone with an
// informational note.
type PromoteModuleState struct{}

func (PromoteModuleState) isPass() {}

func (PromoteModuleState) Name() string { return "promote_module_state_to_params" }

func (PromoteModuleState) ShouldRun(p *sema.Program) bool {
	for _, g := range p.AST.Globals() {
		if !promotable(p, g) {
			continue
		}
		for _, u := range p.Var(g.Sym).Users {
			if u.Write && u.Func != nil && u.Func.IsEntryPoint() {
				return true
			}
		}
	}
	return false
}

func promotable(p *sema.Program, g *ast.GlobalVar) bool {
	return g.Space == types.SpacePrivate && g.Init == nil &&
		p.Types.IsConstructible(g.Type) && p.Var(g.Sym) != nil
}

func (PromoteModuleState) Apply(ctx context.Context, p *sema.Program, env Env) (Outcome, error) {
	c := rewrite.New(p, env.Options)
	pr := &promoter{p: p, c: c, rep: env.reporter(), params: make(map[promoKey]symbols.SymbolID)}
	for _, g := range p.AST.Globals() {
		if promotable(p, g) {
			pr.promote(g)
		}
	}
	return commitIfChanged(ctx, c)
}

type promoKey struct {
	global symbols.SymbolID
	fn     symbols.SymbolID
}

type promoter struct {
	p   *sema.Program
	c   *rewrite.Context
	rep diag.Reporter
	// params memoizes the parameter added to a function for a variable.
	params map[promoKey]symbols.SymbolID
	// carried holds, per entry point, the symbol carrying the current
	// variable's value.
	carried map[*ast.Func]symbols.SymbolID
}

func (pr *promoter) decline(g *ast.GlobalVar, format string, args ...any) {
	msg := fmt.Sprintf("%s stays module-scope: ", pr.p.Symbols.Name(g.Sym)) + fmt.Sprintf(format, args...)
	diag.ReportInfo(pr.rep, diag.LowPatternDeclined, g.Span, msg).Emit()
}

func (pr *promoter) promote(g *ast.GlobalVar) {
	p := pr.p
	name := func(fn *ast.Func) string { return p.Symbols.Name(fn.Sym) }

	users := p.Var(g.Sym).Users
	for _, u := range users {
		if u.Func == nil {
			pr.decline(g, "it is referenced at module scope")
			return
		}
	}
	writes := make(map[*ast.Func]*ast.Stmt)
	for _, u := range users {
		if !u.Write {
			continue
		}
		if !u.Func.IsEntryPoint() {
			pr.decline(g, "written in %s, which is not an entry point", name(u.Func))
			return
		}
		if _, dup := writes[u.Func]; dup {
			pr.decline(g, "written more than once in %s", name(u.Func))
			return
		}
		d, ok := u.Stmt.Data.(ast.AssignData)
		if !ok || d.Op != ast.BinaryNone || d.Target != u.Expr || !p.IsTopLevel(u.Stmt) {
			pr.decline(g, "the write in %s is not a plain assignment at the top of the body", name(u.Func))
			return
		}
		writes[u.Func] = u.Stmt
	}
	if len(writes) == 0 {
		return
	}
	for _, ep := range p.EntryPoints() {
		s, ok := writes[ep]
		if !ok {
			if p.UsesGlobal(ep.Sym, g.Sym) {
				pr.decline(g, "entry point %s reads it without assigning it", name(ep))
				return
			}
			continue
		}
		if !pr.simpleValue(s.Data.(ast.AssignData).Value, ep) {
			pr.decline(g, "the value assigned in %s does not depend only on parameters and constants", name(ep))
			return
		}
		if pr.readBefore(g, ep, s) {
			pr.decline(g, "%s reads it before assigning it", name(ep))
			return
		}
	}

	c := pr.c
	pr.carried = make(map[*ast.Func]symbols.SymbolID)
	for _, ep := range p.EntryPoints() {
		s, ok := writes[ep]
		if !ok {
			continue
		}
		rhs := s.Data.(ast.AssignData).Value
		if sym, isIdent := rhs.Ident(); isIdent {
			pr.carried[ep] = sym
			c.RemoveStmt(s)
			continue
		}
		value := c.Fresh(symbols.SymbolLet, p.Symbols.Name(g.Sym)+"_value")
		pr.carried[ep] = value
		c.ReplaceStmt(s, ast.NewLet(value, g.Type, c.CloneExpr(rhs)))
	}
	for _, u := range users {
		if u.Write {
			continue
		}
		var sym symbols.SymbolID
		if carried, ok := pr.carried[u.Func]; ok {
			sym = carried
		} else {
			sym = pr.param(g, u.Func)
		}
		c.ReplaceExpr(u.Expr, ast.NewIdent(sym))
	}
	c.RemoveDecl(g)
}

// param returns the parameter carrying g into fn, adding it and the
// matching argument at every call site on first request.
func (pr *promoter) param(g *ast.GlobalVar, fn *ast.Func) symbols.SymbolID {
	key := promoKey{global: g.Sym, fn: fn.Sym}
	if sym, ok := pr.params[key]; ok {
		return sym
	}
	sym := pr.c.Fresh(symbols.SymbolParam, pr.p.Symbols.Name(g.Sym))
	pr.params[key] = sym
	pr.c.Params(fn).InsertBack(&ast.Param{Sym: sym, Type: g.Type, Span: g.Span})
	for _, cs := range pr.p.Func(fn.Sym).CallSites {
		value, ok := pr.carried[cs.Caller]
		if !ok {
			value = pr.param(g, cs.Caller)
		}
		pr.c.Args(cs.Call).InsertBack(ast.NewIdent(value))
	}
	return sym
}

func (pr *promoter) simpleValue(e *ast.Expr, ep *ast.Func) bool {
	ok := true
	ast.InspectExpr(e, func(x *ast.Expr) bool {
		switch d := x.Data.(type) {
		case ast.CallData, ast.BuiltinCallData:
			ok = false
		case ast.UnaryData:
			ok = d.Op != ast.UnaryAddrOf
		case ast.IdentData:
			v := pr.p.Var(d.Sym)
			ok = v != nil && ((v.Param != nil && v.Func == ep) ||
				v.Kind == symbols.SymbolConst || v.Kind == symbols.SymbolOverride)
		}
		return ok
	})
	return ok
}

// readBefore reports whether ep may read g before the statement write.
func (pr *promoter) readBefore(g *ast.GlobalVar, ep *ast.Func, write *ast.Stmt) bool {
	found := false
	for _, s := range ep.Body.Stmts {
		if s == write || found {
			break
		}
		ast.Inspector{Expr: func(e *ast.Expr) bool {
			switch d := e.Data.(type) {
			case ast.IdentData:
				found = found || d.Sym == g.Sym
			case ast.CallData:
				found = found || pr.p.UsesGlobal(d.Func, g.Sym)
			}
			return !found
		}}.WalkStmt(s)
	}
	return found
}
