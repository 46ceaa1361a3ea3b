package sema

import (
	"shaderpipe/internal/ast"
	"shaderpipe/internal/diag"
	"shaderpipe/internal/symbols"
	"shaderpipe/internal/types"
)

type visitColor uint8

const (
	colorWhite visitColor = iota
	colorGray
	colorBlack
)

// buildCallGraph rejects recursion and computes the transitive summaries.
func (r *resolver) buildCallGraph() {
	color := make(map[symbols.SymbolID]visitColor, len(r.out.funcs))
	var visit func(sym symbols.SymbolID) bool
	visit = func(sym symbols.SymbolID) bool {
		color[sym] = colorGray
		info := r.out.funcs[sym]
		for _, callee := range info.Callees {
			switch color[callee] {
			case colorGray:
				r.reportRecursion(info.Decl, callee)
				return false
			case colorWhite:
				if !visit(callee) {
					return false
				}
			}
		}
		color[sym] = colorBlack
		return true
	}
	for _, fn := range r.out.AST.Funcs() {
		if color[fn.Sym] == colorWhite && !visit(fn.Sym) {
			return
		}
	}
	for _, fn := range r.out.AST.Funcs() {
		r.out.summarize(fn.Sym)
	}
}

func (r *resolver) reportRecursion(caller *ast.Func, callee symbols.SymbolID) {
	sp := caller.Span
	for _, cs := range r.out.funcs[callee].CallSites {
		if cs.Caller == caller {
			sp = cs.Call.Span
			break
		}
	}
	r.errorf(diag.SemaRecursion, sp, "call of %s from %s forms a recursive cycle", r.name(callee), r.name(caller.Sym))
}

func (p *Program) summarize(sym symbols.SymbolID) *FuncInfo {
	info := p.funcs[sym]
	if info == nil || info.transGlobals != nil {
		return info
	}
	info.transGlobals = make(map[symbols.SymbolID]bool)
	info.transWrites = make(map[symbols.SymbolID]bool)
	for _, g := range info.Globals {
		info.transGlobals[g] = true
	}
	for _, g := range info.Writes {
		info.transWrites[g] = true
	}
	info.transBarrier = info.HasBarrier
	for _, callee := range info.Callees {
		ci := p.summarize(callee)
		for g := range ci.transGlobals {
			info.transGlobals[g] = true
		}
		for g := range ci.transWrites {
			info.transWrites[g] = true
		}
		info.transBarrier = info.transBarrier || ci.transBarrier
	}
	return info
}

func (r *resolver) checkEntryPointGlobals() {
	for _, ep := range r.out.entryPoints {
		if ep.Stage == ast.StageCompute {
			continue
		}
		for _, g := range r.out.TransitiveGlobals(ep.Sym) {
			if r.globals[g].Space == types.SpaceWorkgroup {
				r.errorf(diag.SemaWorkgroupOutsideCompute, ep.Span, "%s entry point %s uses workgroup variable %s",
					ep.Stage, r.name(ep.Sym), r.name(g))
			}
		}
		if r.out.TransitiveBarrier(ep.Sym) {
			r.errorf(diag.SemaWorkgroupOutsideCompute, ep.Span, "%s entry point %s reaches workgroupBarrier",
				ep.Stage, r.name(ep.Sym))
		}
	}
}

// TransitiveGlobals returns the module-scope variables fn or any function it
// calls references, in declaration order.
func (p *Program) TransitiveGlobals(fn symbols.SymbolID) []symbols.SymbolID {
	info := p.funcs[fn]
	if info == nil {
		return nil
	}
	var out []symbols.SymbolID
	for _, g := range p.AST.Globals() {
		if info.transGlobals[g.Sym] {
			out = append(out, g.Sym)
		}
	}
	return out
}

// UsesGlobal reports whether fn transitively references g.
func (p *Program) UsesGlobal(fn, g symbols.SymbolID) bool {
	info := p.funcs[fn]
	return info != nil && info.transGlobals[g]
}

// TransitivelyWrites reports whether fn or a callee writes g.
func (p *Program) TransitivelyWrites(fn, g symbols.SymbolID) bool {
	info := p.funcs[fn]
	return info != nil && info.transWrites[g]
}

// TransitiveBarrier reports whether fn reaches workgroupBarrier.
func (p *Program) TransitiveBarrier(fn symbols.SymbolID) bool {
	info := p.funcs[fn]
	return info != nil && info.transBarrier
}

// ReachableFuncs returns fn and every function it transitively calls, in
// declaration order.
func (p *Program) ReachableFuncs(fn symbols.SymbolID) []*ast.Func {
	seen := make(map[symbols.SymbolID]bool)
	var walk func(symbols.SymbolID)
	walk = func(sym symbols.SymbolID) {
		if seen[sym] {
			return
		}
		seen[sym] = true
		if info := p.funcs[sym]; info != nil {
			for _, c := range info.Callees {
				walk(c)
			}
		}
	}
	walk(fn)
	var out []*ast.Func
	for _, f := range p.AST.Funcs() {
		if seen[f.Sym] {
			out = append(out, f)
		}
	}
	return out
}

// EntryPointsReaching returns the entry points from which fn is reachable.
func (p *Program) EntryPointsReaching(fn symbols.SymbolID) []*ast.Func {
	var out []*ast.Func
	for _, ep := range p.entryPoints {
		for _, f := range p.ReachableFuncs(ep.Sym) {
			if f.Sym == fn {
				out = append(out, ep)
				break
			}
		}
	}
	return out
}
