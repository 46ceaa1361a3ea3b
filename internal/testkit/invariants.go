package testkit

import (
	"fmt"

	"shaderpipe/internal/ast"
	"shaderpipe/internal/sema"
	"shaderpipe/internal/symbols"
)

// CheckInvariants runs the side-table invariants on a resolved program:
// 1) every expression and statement of the tree is known to the side-table
// 2) every identifier is listed among the users of its variable
// 3) every user call is listed among its callee's call sites
// 4) synthesized symbols have distinct names
// 5) the tree resolves again from scratch without diagnostics
func CheckInvariants(p *sema.Program) error {
	if p == nil || p.AST == nil {
		return fmt.Errorf("nil program")
	}
	var failure error
	fail := func(format string, args ...any) {
		if failure == nil {
			failure = fmt.Errorf(format, args...)
		}
	}
	for _, d := range p.AST.Decls {
		fn, isFunc := d.(*ast.Func)
		ast.Inspector{
			Stmt: func(s *ast.Stmt) bool {
				if !p.HasStmt(s) {
					fail("%s statement in %s is not resolved", s.Kind, p.Symbols.Name(d.DeclSym()))
				}
				if isFunc && p.EnclosingFunc(s) != fn {
					fail("%s statement is attributed to the wrong function", s.Kind)
				}
				return true
			},
			Expr: func(e *ast.Expr) bool {
				if !p.IsReachable(e) {
					fail("%s expression in %s is not resolved", e.Kind, p.Symbols.Name(d.DeclSym()))
					return false
				}
				switch data := e.Data.(type) {
				case ast.IdentData:
					if !listsUser(p.Var(data.Sym), e) {
						fail("use of %s is missing from its users", p.Symbols.Name(data.Sym))
					}
				case ast.CallData:
					if !listsCall(p.Func(data.Func), e) {
						fail("call of %s is missing from its call sites", p.Symbols.Name(data.Func))
					}
				}
				return true
			},
		}.WalkDecl(d)
	}
	if failure != nil {
		return failure
	}
	names := make(map[string]symbols.SymbolID)
	for i, s := range p.Symbols.Data() {
		if !s.Has(symbols.SymbolSynthetic) {
			continue
		}
		id := symbols.SymbolID(i + 1)
		if prev, dup := names[s.Name]; dup {
			return fmt.Errorf("synthesized symbols #%d and #%d share the name %s", prev, id, s.Name)
		}
		names[s.Name] = id
	}
	if _, err := sema.Resolve(p.AST, p.Symbols, p.Types, sema.Options{}); err != nil {
		return fmt.Errorf("round-trip resolution: %w", err)
	}
	return nil
}

func listsUser(v *sema.Variable, e *ast.Expr) bool {
	if v == nil {
		return false
	}
	for _, u := range v.Users {
		if u.Expr == e {
			return true
		}
	}
	return false
}

func listsCall(info *sema.FuncInfo, e *ast.Expr) bool {
	if info == nil {
		return false
	}
	for _, cs := range info.CallSites {
		if cs.Call == e {
			return true
		}
	}
	return false
}
