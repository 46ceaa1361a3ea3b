package transform

import (
	"context"

	"shaderpipe/internal/ast"
	"shaderpipe/internal/diag"
	"shaderpipe/internal/rewrite"
	"shaderpipe/internal/sema"
	"shaderpipe/internal/source"
	"shaderpipe/internal/symbols"
	"shaderpipe/internal/types"
)

// SingleEntryPoint strips a program down to one entry point and what it
// transitively needs. Struct and alias declarations always stay.
type SingleEntryPoint struct {
	EntryPoint string
}

func (SingleEntryPoint) isPass() {}

// SingleEntryPointName is the registry name of SingleEntryPoint.
const SingleEntryPointName = "single_entry_point"

func (SingleEntryPoint) Name() string { return SingleEntryPointName }

// ShouldRun reports a configured entry point that leaves something to strip.
// An unknown name still runs so Apply can report it.
func (s SingleEntryPoint) ShouldRun(p *sema.Program) bool {
	if s.EntryPoint == "" {
		return false
	}
	ep, ok := p.EntryPoint(s.EntryPoint)
	if !ok {
		return true
	}
	keep := liveDecls(p, ep)
	for _, d := range p.AST.Decls {
		if strippable(d) && !keep[d.DeclSym()] {
			return true
		}
	}
	return false
}

func strippable(d ast.Decl) bool {
	switch d.(type) {
	case *ast.StructDecl, *ast.Alias:
		return false
	}
	return true
}

func (s SingleEntryPoint) Apply(ctx context.Context, p *sema.Program, env Env) (Outcome, error) {
	ep, ok := p.EntryPoint(s.EntryPoint)
	if !ok {
		return Outcome{}, diag.Errorf(diag.LowEntryPointNotFound, source.Span{},
			"entry point %q not found", s.EntryPoint)
	}
	keep := liveDecls(p, ep)
	c := rewrite.New(p, env.Options)
	for _, d := range p.AST.Decls {
		if strippable(d) && !keep[d.DeclSym()] {
			c.RemoveDecl(d)
		}
	}
	return commitIfChanged(ctx, c)
}

// liveDecls returns the declarations ep depends on: reachable functions,
// the module-scope variables they use, and the declarations referenced by
// any of those, their types or the initializers of other kept declarations.
func liveDecls(p *sema.Program, ep *ast.Func) map[symbols.SymbolID]bool {
	keep := make(map[symbols.SymbolID]bool)
	var work []ast.Decl
	add := func(sym symbols.SymbolID) {
		if keep[sym] {
			return
		}
		keep[sym] = true
		if d := p.Decl(sym); d != nil {
			work = append(work, d)
		}
	}
	allOverrides := func() {
		for _, d := range p.AST.Decls {
			if o, ok := d.(*ast.Override); ok {
				add(o.Sym)
			}
		}
	}
	var addType func(id types.TypeID)
	seenTypes := make(map[types.TypeID]bool)
	addType = func(id types.TypeID) {
		if seenTypes[id] {
			return
		}
		seenTypes[id] = true
		tt, ok := p.Types.Lookup(id)
		if !ok {
			return
		}
		switch tt.Kind {
		case types.KindArray:
			switch tt.Length {
			case types.ArrayOverride:
				add(tt.Override)
			case types.ArrayOverrideExpr:
				// The size expression is opaque text; keep every override.
				allOverrides()
			}
			addType(tt.Elem)
		case types.KindVector, types.KindAtomic, types.KindPointer:
			addType(tt.Elem)
		case types.KindStruct:
			if info, ok := p.Types.StructInfo(id); ok {
				for _, f := range info.Fields {
					addType(f.Type)
				}
			}
		}
	}
	addExpr := func(e *ast.Expr) {
		ast.InspectExpr(e, func(x *ast.Expr) bool {
			if ty := p.TypeOf(x); ty != types.NoTypeID {
				addType(ty)
			}
			switch d := x.Data.(type) {
			case ast.IdentData:
				switch p.Symbols.Kind(d.Sym) {
				case symbols.SymbolOverride, symbols.SymbolConst, symbols.SymbolGlobal:
					add(d.Sym)
				}
			case ast.BitcastData:
				addType(d.Type)
			case ast.ConstructData:
				addType(d.Type)
			}
			return true
		})
	}

	for _, fn := range p.ReachableFuncs(ep.Sym) {
		add(fn.Sym)
	}
	for _, g := range p.TransitiveGlobals(ep.Sym) {
		add(g)
	}
	for _, d := range p.AST.Decls {
		if sd, ok := d.(*ast.StructDecl); ok {
			addType(sd.Type)
		}
	}
	for len(work) > 0 {
		d := work[len(work)-1]
		work = work[:len(work)-1]
		switch d := d.(type) {
		case *ast.Func:
			for _, e := range d.Workgroup {
				addExpr(e)
			}
			for _, prm := range d.Params {
				addType(prm.Type)
			}
			if d.Result != types.NoTypeID {
				addType(d.Result)
			}
			ast.Inspector{
				Stmt: func(s *ast.Stmt) bool {
					switch sd := s.Data.(type) {
					case ast.LetData:
						addType(sd.Type)
					case ast.VarData:
						addType(sd.Type)
					}
					return true
				},
				Expr: func(e *ast.Expr) bool {
					addExpr(e)
					return false
				},
			}.WalkBlock(d.Body)
		case *ast.GlobalVar:
			addType(d.Type)
			if d.Init != nil {
				addExpr(d.Init)
			}
		case *ast.Override:
			addType(d.Type)
			if d.Default != nil {
				addExpr(d.Default)
			}
		case *ast.Const:
			addType(d.Type)
			addExpr(d.Value)
		}
	}
	return keep
}
