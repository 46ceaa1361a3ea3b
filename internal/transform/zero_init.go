package transform

import (
	"context"
	"slices"

	"fortio.org/safecast"

	"shaderpipe/internal/ast"
	"shaderpipe/internal/diag"
	"shaderpipe/internal/rewrite"
	"shaderpipe/internal/sema"
	"shaderpipe/internal/symbols"
	"shaderpipe/internal/types"
)

// DefaultZeroRoutine is the base name of the synthesized zeroing function.
const DefaultZeroRoutine = "zero_workgroup_memory"

// ZeroInitWorkgroupMemory makes every compute entry point zero the
// workgroup variables it uses before anything else runs. Each entry point
// gets its own routine, called first and followed by a workgroup barrier.
// The invocations of a workgroup split the zeroing between them so that
// every leaf is written exactly once.
type ZeroInitWorkgroupMemory struct {
	// RoutineName overrides DefaultZeroRoutine.
	RoutineName string
}

func (ZeroInitWorkgroupMemory) isPass() {}

func (ZeroInitWorkgroupMemory) Name() string { return "zero_init_workgroup_memory" }

func (ZeroInitWorkgroupMemory) ShouldRun(p *sema.Program) bool {
	for _, ep := range p.EntryPoints() {
		if ep.Stage == ast.StageCompute && len(workgroupVars(p, ep)) > 0 && !zeroed(p, ep) {
			return true
		}
	}
	return false
}

func (z ZeroInitWorkgroupMemory) Apply(ctx context.Context, p *sema.Program, env Env) (Outcome, error) {
	c := rewrite.New(p, env.Options)
	for _, ep := range p.EntryPoints() {
		if ep.Stage != ast.StageCompute || zeroed(p, ep) {
			continue
		}
		vars := workgroupVars(p, ep)
		if len(vars) == 0 {
			continue
		}
		if err := z.entry(c, ep, vars); err != nil {
			return Outcome{}, err
		}
	}
	return commitIfChanged(ctx, c)
}

func workgroupVars(p *sema.Program, ep *ast.Func) []*ast.GlobalVar {
	var out []*ast.GlobalVar
	for _, sym := range p.TransitiveGlobals(ep.Sym) {
		if v := p.Var(sym); v != nil && v.Global != nil && v.Global.Space == types.SpaceWorkgroup {
			out = append(out, v.Global)
		}
	}
	return out
}

// zeroed reports entry points that already start with a zeroing call.
func zeroed(p *sema.Program, ep *ast.Func) bool {
	if ep.Body == nil || len(ep.Body.Stmts) == 0 {
		return false
	}
	d, ok := ep.Body.Stmts[0].Data.(ast.ExprStmtData)
	if !ok {
		return false
	}
	call, ok := d.Expr.Data.(ast.CallData)
	if !ok {
		return false
	}
	s := p.Symbols.Get(call.Func)
	return s != nil && s.Has(symbols.SymbolZeroInitRoutine)
}

type zeroGroup struct {
	iterations size
	leaves     []zeroLeaf
}

func (z ZeroInitWorkgroupMemory) entry(c *rewrite.Context, ep *ast.Func, vars []*ast.GlobalVar) error {
	p := c.Source()
	u32 := p.Types.Builtins().U32
	volume, err := workgroupVolume(p, ep)
	if err != nil {
		return err
	}

	var groups []*zeroGroup
	byKey := make(map[string]*zeroGroup)
	for _, g := range vars {
		var leaves []zeroLeaf
		if err := collectLeaves(p, g, g.Type, nil, &leaves); err != nil {
			return err
		}
		for _, l := range leaves {
			key := l.iterations.key()
			grp := byKey[key]
			if grp == nil {
				grp = &zeroGroup{iterations: l.iterations}
				byKey[key] = grp
				groups = append(groups, grp)
			}
			grp.leaves = append(grp.leaves, l)
		}
	}

	name := z.RoutineName
	if name == "" {
		name = DefaultZeroRoutine
	}
	routine := c.FreshFlagged(symbols.SymbolFunc, name, symbols.SymbolZeroInitRoutine)
	localIdx := c.Fresh(symbols.SymbolParam, "local_idx")

	guarded := func(n size) bool {
		return n.isConst() && volume.isConst() && n.k <= volume.k
	}
	var body []*ast.Stmt
	for _, grp := range groups {
		if !guarded(grp.iterations) {
			continue
		}
		idx := func() *ast.Expr { return ast.NewIdent(localIdx) }
		body = append(body, ast.NewIf(
			ast.NewBinary(ast.BinaryLt, idx(), grp.iterations.expr(p)),
			ast.NewBlock(grp.stmts(p, idx)...),
			nil,
		))
	}
	for _, grp := range groups {
		if guarded(grp.iterations) {
			continue
		}
		iv := c.Fresh(symbols.SymbolVar, "idx")
		idx := func() *ast.Expr { return ast.NewIdent(iv) }
		body = append(body, ast.NewFor(
			ast.NewVar(iv, u32, ast.NewIdent(localIdx)),
			ast.NewBinary(ast.BinaryLt, idx(), grp.iterations.expr(p)),
			ast.NewCompoundAssign(ast.BinaryAdd, idx(), volume.expr(p)),
			ast.NewBlock(grp.stmts(p, idx)...),
		))
	}
	c.Decls().InsertBefore(ep, &ast.Func{
		Sym:    routine,
		Span:   ep.Span,
		Params: []*ast.Param{{Sym: localIdx, Type: u32}},
		Body:   ast.NewBlock(body...),
	})

	stmts := c.Stmts(ep.Body)
	stmts.InsertFront(ast.NewExprStmt(ast.NewCall(routine, localIndex(c, ep))))
	stmts.InsertFront(ast.NewExprStmt(ast.NewBuiltinCall(ast.BuiltinWorkgroupBarrier)))
	return nil
}

func (grp *zeroGroup) stmts(p *sema.Program, idx func() *ast.Expr) []*ast.Stmt {
	out := make([]*ast.Stmt, len(grp.leaves))
	for i, l := range grp.leaves {
		out[i] = l.stmt(p, idx)
	}
	return out
}

// localIndex returns an expression for the entry point's local invocation
// index, adding a builtin parameter when the entry point has none.
func localIndex(c *rewrite.Context, ep *ast.Func) *ast.Expr {
	p := c.Source()
	for _, prm := range ep.Params {
		if prm.Builtin == ast.BuiltinLocalInvocationIndex {
			return ast.NewIdent(prm.Sym)
		}
	}
	for _, prm := range ep.Params {
		if prm.Builtin != ast.BuiltinNone {
			continue
		}
		for _, d := range p.AST.Decls {
			sd, ok := d.(*ast.StructDecl)
			if !ok || sd.Type != prm.Type {
				continue
			}
			for _, m := range sd.Members {
				if m.Builtin == ast.BuiltinLocalInvocationIndex {
					return ast.NewMember(ast.NewIdent(prm.Sym), m.Name)
				}
			}
		}
	}
	sym := c.Fresh(symbols.SymbolParam, "local_invocation_index")
	c.Params(ep).InsertBack(&ast.Param{
		Sym:     sym,
		Type:    p.Types.Builtins().U32,
		Builtin: ast.BuiltinLocalInvocationIndex,
		Span:    ep.Span,
	})
	return ast.NewIdent(sym)
}

func workgroupVolume(p *sema.Program, ep *ast.Func) (size, error) {
	volume := constSize(1)
	for _, e := range ep.Workgroup {
		if e == nil {
			continue
		}
		dim, err := workgroupDim(p, ep, e)
		if err != nil {
			return size{}, err
		}
		if volume, err = volume.mul(dim); err != nil {
			return size{}, diag.Errorf(diag.LowUnresolvedSize, e.Span, "workgroup volume of %s: %v",
				p.Symbols.Name(ep.Sym), err)
		}
	}
	return volume, nil
}

func workgroupDim(p *sema.Program, ep *ast.Func, e *ast.Expr) (size, error) {
	if sym, ok := e.Ident(); ok && p.Symbols.Kind(sym) == symbols.SymbolOverride {
		return overrideSize(sym), nil
	}
	if v, ok := p.EvalInt(e); ok && v >= 1 {
		if k, err := safecast.Conv[uint32](v); err == nil {
			return constSize(k), nil
		}
	}
	return size{}, diag.Errorf(diag.LowUnresolvedSize, e.Span,
		"workgroup size of %s is neither a constant nor an override", p.Symbols.Name(ep.Sym))
}

// zeroStep is one level of the path from a workgroup variable to a leaf:
// a struct member, or an array index computed as (idx % modulo) / division.
type zeroStep struct {
	member   string
	count    size
	modulo   size
	division size
}

// zeroLeaf is one individually zeroed region. iterations is the number of
// flat indices needed to cover every instance of the leaf.
type zeroLeaf struct {
	global     symbols.SymbolID
	path       []zeroStep
	ty         types.TypeID
	atomic     bool
	iterations size
}

// collectLeaves flattens ty into leaves: atomics are leaves, arrays are
// always decomposed, structs holding arrays or atomics are split by member
// and everything else is zeroed as a whole value.
func collectLeaves(p *sema.Program, g *ast.GlobalVar, ty types.TypeID, path []zeroStep, out *[]zeroLeaf) error {
	tt, ok := p.Types.Lookup(ty)
	if !ok {
		return diag.Errorf(diag.InternalError, g.Span, "workgroup variable %s has an unknown type", p.Symbols.Name(g.Sym))
	}
	path = slices.Clip(path)
	switch {
	case tt.Kind == types.KindArray:
		var count size
		switch tt.Length {
		case types.ArrayConst:
			count = constSize(tt.Count)
		case types.ArrayOverride:
			count = overrideSize(tt.Override)
		case types.ArrayOverrideExpr:
			return diag.Errorf(diag.LowOverrideArraySize, g.Span,
				"workgroup variable %s is sized by the unresolved override expression %s",
				p.Symbols.Name(g.Sym), p.Types.SizeExpr(ty))
		default:
			return diag.Errorf(diag.LowUnresolvedSize, g.Span,
				"workgroup variable %s has a runtime-sized array", p.Symbols.Name(g.Sym))
		}
		return collectLeaves(p, g, tt.Elem, append(path, zeroStep{count: count}), out)
	case tt.Kind == types.KindStruct && (p.Types.Contains(ty, types.KindArray) || p.Types.Contains(ty, types.KindAtomic)):
		info, _ := p.Types.StructInfo(ty)
		for _, f := range info.Fields {
			if err := collectLeaves(p, g, f.Type, append(path, zeroStep{member: f.Name}), out); err != nil {
				return err
			}
		}
		return nil
	}

	leaf := zeroLeaf{global: g.Sym, path: slices.Clone(path), ty: ty, atomic: tt.Kind == types.KindAtomic}
	div := constSize(1)
	for i := len(leaf.path) - 1; i >= 0; i-- {
		s := &leaf.path[i]
		if s.member != "" {
			continue
		}
		mod, err := div.mul(s.count)
		if err != nil {
			return diag.Errorf(diag.LowUnresolvedSize, g.Span, "workgroup variable %s: %v", p.Symbols.Name(g.Sym), err)
		}
		s.division, s.modulo = div, mod
		div = mod
	}
	leaf.iterations = div
	*out = append(*out, leaf)
	return nil
}

func (l zeroLeaf) stmt(p *sema.Program, idx func() *ast.Expr) *ast.Stmt {
	target := ast.NewIdent(l.global)
	for _, s := range l.path {
		if s.member != "" {
			target = ast.NewMember(target, s.member)
			continue
		}
		index := idx()
		if !l.iterations.equal(s.modulo) {
			index = ast.NewBinary(ast.BinaryMod, index, s.modulo.expr(p))
		}
		if !s.division.isOne() {
			index = ast.NewBinary(ast.BinaryDiv, index, s.division.expr(p))
		}
		target = ast.NewIndex(target, index)
	}
	if l.atomic {
		return ast.NewExprStmt(ast.NewBuiltinCall(ast.BuiltinAtomicStore,
			ast.NewAddrOf(target), zeroValue(p, p.Types.ElemOf(l.ty))))
	}
	return ast.NewAssign(target, zeroValue(p, l.ty))
}

func zeroValue(p *sema.Program, ty types.TypeID) *ast.Expr {
	switch p.Types.KindOf(ty) {
	case types.KindBool:
		return ast.NewBool(false)
	case types.KindI32:
		return ast.NewI32(0)
	case types.KindU32:
		return ast.NewU32(0)
	case types.KindF32:
		return ast.NewF32(0)
	}
	return ast.NewConstruct(ty)
}
