package transform

import (
	"shaderpipe/internal/ast"
	"shaderpipe/internal/sema"
	"shaderpipe/internal/symbols"
	"shaderpipe/internal/types"
)

// effects summarizes what a stretch of code may do to memory.
type effects struct {
	p       *sema.Program
	writes  map[symbols.SymbolID]bool
	calls   bool // user calls and builtins other than min/max
	globals bool // reads or writes a module-scope variable
	barrier bool
}

func newEffects(p *sema.Program) *effects {
	return &effects{p: p, writes: make(map[symbols.SymbolID]bool)}
}

func (ef *effects) writeRoot(target *ast.Expr) {
	root, ok := ast.RootIdent(target)
	if !ok {
		return
	}
	sym, _ := root.Ident()
	ef.writes[sym] = true
	if v := ef.p.Var(sym); v != nil && v.Global != nil {
		ef.globals = true
	}
}

func (ef *effects) call(fn symbols.SymbolID) {
	ef.calls = true
	for _, g := range ef.p.TransitiveGlobals(fn) {
		ef.globals = true
		if ef.p.TransitivelyWrites(fn, g) {
			ef.writes[g] = true
		}
	}
	if ef.p.TransitiveBarrier(fn) {
		ef.barrier = true
	}
}

func (ef *effects) expr(e *ast.Expr) {
	ast.InspectExpr(e, func(x *ast.Expr) bool {
		ef.node(x)
		return true
	})
}

func (ef *effects) node(x *ast.Expr) {
	switch d := x.Data.(type) {
	case ast.IdentData:
		if v := ef.p.Var(d.Sym); v != nil && v.Global != nil {
			ef.globals = true
		}
	case ast.CallData:
		ef.call(d.Func)
	case ast.BuiltinCallData:
		switch d.Func {
		case ast.BuiltinMin, ast.BuiltinMax:
		case ast.BuiltinWorkgroupBarrier:
			ef.calls = true
			ef.barrier = true
		case ast.BuiltinAtomicStore, ast.BuiltinAtomicAdd:
			ef.calls = true
			if len(d.Args) > 0 {
				ef.writeRoot(d.Args[0])
			}
		default:
			ef.calls = true
		}
	}
}

// stmt adds everything s and its nested statements may do.
func (ef *effects) stmt(s *ast.Stmt) {
	ast.Inspector{
		Stmt: func(s *ast.Stmt) bool {
			switch d := s.Data.(type) {
			case ast.AssignData:
				ef.writeRoot(d.Target)
			case ast.IncDecData:
				ef.writeRoot(d.Target)
			}
			return true
		},
		Expr: func(e *ast.Expr) bool {
			ef.node(e)
			return true
		},
	}.WalkStmt(s)
}

// callsBefore adds the module-scope accesses in e and the calls that do not
// contain at. A call containing at runs after at is evaluated.
func (ef *effects) callsBefore(e, at *ast.Expr) {
	ast.InspectExpr(e, func(x *ast.Expr) bool {
		switch x.Kind {
		case ast.ExprIdent:
			ef.node(x)
		case ast.ExprCall, ast.ExprBuiltin:
			if !contains(x, at) {
				ef.expr(x)
				return false
			}
		}
		return true
	})
}

func contains(root, e *ast.Expr) bool {
	found := false
	ast.InspectExpr(root, func(x *ast.Expr) bool {
		if x == e {
			found = true
		}
		return !found
	})
	return found
}

// readSet returns the mutable variables e reads, including module-scope
// variables read by the functions it calls, and whether any of them is
// shared between invocations.
func readSet(p *sema.Program, e *ast.Expr) (reads map[symbols.SymbolID]bool, shared bool) {
	reads = make(map[symbols.SymbolID]bool)
	addGlobal := func(g *ast.GlobalVar) {
		reads[g.Sym] = true
		if g.Space == types.SpaceWorkgroup || g.Space == types.SpaceStorage {
			shared = true
		}
	}
	ast.InspectExpr(e, func(x *ast.Expr) bool {
		switch d := x.Data.(type) {
		case ast.IdentData:
			v := p.Var(d.Sym)
			if v == nil || !v.Kind.IsMutable() {
				return true
			}
			if v.Global != nil {
				addGlobal(v.Global)
			} else {
				reads[d.Sym] = true
			}
		case ast.CallData:
			for _, g := range p.TransitiveGlobals(d.Func) {
				if v := p.Var(g); v != nil && v.Global != nil {
					addGlobal(v.Global)
				}
			}
		}
		return true
	})
	return reads, shared
}

// hasEffects reports expressions that must not be duplicated or reordered.
func hasEffects(e *ast.Expr) bool {
	found := false
	ast.InspectExpr(e, func(x *ast.Expr) bool {
		switch d := x.Data.(type) {
		case ast.CallData:
			found = true
		case ast.BuiltinCallData:
			if d.Func != ast.BuiltinMin && d.Func != ast.BuiltinMax {
				found = true
			}
		}
		return !found
	})
	return found
}
