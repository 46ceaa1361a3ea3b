package sema

import (
	"fmt"

	"shaderpipe/internal/ast"
	"shaderpipe/internal/diag"
	"shaderpipe/internal/source"
	"shaderpipe/internal/symbols"
	"shaderpipe/internal/types"
)

// Options configures Resolve.
type Options struct {
	// Reporter additionally receives every diagnostic; may be nil.
	Reporter       diag.Reporter
	MaxDiagnostics int
}

// Resolve checks prog against syms and tys and builds its side-table. The
// tables are shared, not copied: symbols and types minted by earlier passes
// stay valid. On failure the returned error is a *diag.Error carrying every
// diagnostic and no Program is returned.
func Resolve(prog *ast.Program, syms *symbols.Table, tys *types.Interner, opts Options) (*Program, error) {
	if prog == nil || syms == nil || tys == nil {
		return nil, fmt.Errorf("sema: missing program, symbol table or type interner")
	}
	r := newResolver(prog, syms, tys, opts)
	r.run()
	if r.bag.HasErrors() {
		r.bag.Sort()
		return nil, diag.AsError(r.bag.Errors()...)
	}
	return r.out, nil
}

type access uint8

const (
	accessRead access = 1 << iota
	accessWrite
)

type resolver struct {
	out      *Program
	syms     *symbols.Table
	tys      *types.Interner
	b        types.Builtins
	bag      *diag.Bag
	reporter diag.Reporter

	globals    map[symbols.SymbolID]*ast.GlobalVar
	declared   map[symbols.SymbolID]bool
	live       map[symbols.SymbolID]bool
	scopes     [][]symbols.SymbolID
	seenStmt   map[*ast.Stmt]bool
	constState map[symbols.SymbolID]constEvalState
	constBusy  map[symbols.SymbolID]bool

	fn        *ast.Func
	info      *FuncInfo
	stmt      *ast.Stmt
	loopDepth int
}

func newResolver(prog *ast.Program, syms *symbols.Table, tys *types.Interner, opts Options) *resolver {
	return &resolver{
		out: &Program{
			AST:         prog,
			Symbols:     syms,
			Types:       tys,
			exprTypes:   make(map[*ast.Expr]types.TypeID),
			exprStmt:    make(map[*ast.Expr]*ast.Stmt),
			exprParent:  make(map[*ast.Expr]*ast.Expr),
			stmtBlock:   make(map[*ast.Stmt]*ast.Block),
			stmtOwner:   make(map[*ast.Stmt]*ast.Stmt),
			stmtFunc:    make(map[*ast.Stmt]*ast.Func),
			blockOwner:  make(map[*ast.Block]*ast.Stmt),
			blockFunc:   make(map[*ast.Block]*ast.Func),
			decls:       make(map[symbols.SymbolID]ast.Decl),
			vars:        make(map[symbols.SymbolID]*Variable),
			funcs:       make(map[symbols.SymbolID]*FuncInfo),
			constValues: make(map[symbols.SymbolID]int64),
		},
		syms:       syms,
		tys:        tys,
		b:          tys.Builtins(),
		bag:        diag.NewBag(opts.MaxDiagnostics),
		reporter:   opts.Reporter,
		globals:    make(map[symbols.SymbolID]*ast.GlobalVar),
		declared:   make(map[symbols.SymbolID]bool),
		live:       make(map[symbols.SymbolID]bool),
		seenStmt:   make(map[*ast.Stmt]bool),
		constState: make(map[symbols.SymbolID]constEvalState),
		constBusy:  make(map[symbols.SymbolID]bool),
	}
}

func (r *resolver) run() {
	prog := r.out.AST
	for _, d := range prog.Decls {
		r.declareModule(d)
	}
	for _, d := range prog.Decls {
		switch d := d.(type) {
		case *ast.GlobalVar:
			r.checkGlobal(d)
		case *ast.Override:
			r.checkOverride(d)
		case *ast.Const:
			r.checkConst(d)
		case *ast.StructDecl:
			r.checkStruct(d)
		case *ast.Alias:
			if _, ok := r.tys.Lookup(d.Target); !ok {
				r.errorf(diag.SemaInvalidType, d.Span, "alias %s has no valid target type", r.name(d.Sym))
			}
		}
	}
	for _, fn := range prog.Funcs() {
		r.checkFunc(fn)
	}
	if r.bag.HasErrors() {
		return
	}
	r.buildCallGraph()
	if r.bag.HasErrors() {
		return
	}
	r.checkEntryPointGlobals()
	if !prog.DisableUniformity {
		for _, fn := range prog.Funcs() {
			r.checkUniformity(fn)
		}
	}
}

func (r *resolver) errorf(code diag.Code, sp source.Span, format string, args ...any) {
	d := diag.NewError(code, sp, fmt.Sprintf(format, args...))
	r.bag.Add(d)
	if r.reporter != nil {
		r.reporter.Report(d.Code, d.Severity, d.Primary, d.Message, d.Notes)
	}
}

func (r *resolver) name(sym symbols.SymbolID) string {
	return r.syms.Name(sym)
}

func (r *resolver) label(id types.TypeID) string {
	return r.tys.Label(id, r.syms)
}

// declareSym records a declaration of sym with the expected kind.
func (r *resolver) declareSym(sym symbols.SymbolID, kind symbols.SymbolKind, sp source.Span) bool {
	s := r.syms.Get(sym)
	if s == nil {
		r.errorf(diag.SemaUnresolvedSymbol, sp, "declaration uses unknown symbol #%d", sym)
		return false
	}
	if r.declared[sym] {
		r.errorf(diag.SemaDuplicateSymbol, sp, "%s %s is declared more than once", kind, s.Name)
		return false
	}
	r.declared[sym] = true
	if s.Kind != kind {
		r.errorf(diag.SemaWrongSymbolKind, sp, "%s is a %s symbol declared as %s", s.Name, s.Kind, kind)
		return false
	}
	return true
}

func (r *resolver) declareModule(d ast.Decl) {
	var kind symbols.SymbolKind
	switch d := d.(type) {
	case *ast.Func:
		kind = symbols.SymbolFunc
		r.out.funcs[d.Sym] = &FuncInfo{Decl: d}
		if d.IsEntryPoint() {
			r.out.entryPoints = append(r.out.entryPoints, d)
		}
	case *ast.GlobalVar:
		kind = symbols.SymbolGlobal
		r.globals[d.Sym] = d
		r.out.vars[d.Sym] = &Variable{Sym: d.Sym, Kind: kind, Type: d.Type, Space: d.Space, Global: d}
	case *ast.Override:
		kind = symbols.SymbolOverride
		r.out.vars[d.Sym] = &Variable{Sym: d.Sym, Kind: kind, Type: d.Type, Space: types.SpacePrivate}
	case *ast.Const:
		kind = symbols.SymbolConst
		r.out.vars[d.Sym] = &Variable{Sym: d.Sym, Kind: kind, Type: d.Type, Space: types.SpacePrivate}
	case *ast.StructDecl:
		kind = symbols.SymbolStruct
	case *ast.Alias:
		kind = symbols.SymbolAlias
	default:
		return
	}
	if r.declareSym(d.DeclSym(), kind, d.DeclSpan()) {
		r.out.decls[d.DeclSym()] = d
	}
}

func (r *resolver) checkGlobal(g *ast.GlobalVar) {
	tt, ok := r.tys.Lookup(g.Type)
	if !ok {
		r.errorf(diag.SemaInvalidType, g.Span, "module-scope variable %s has no type", r.name(g.Sym))
		return
	}
	if tt.Kind == types.KindPointer {
		r.errorf(diag.SemaInvalidType, g.Span, "module-scope variable %s cannot hold a pointer", r.name(g.Sym))
	}
	runtimeSized := tt.Kind == types.KindArray && tt.Length == types.ArrayRuntime
	switch g.Space {
	case types.SpacePrivate:
		if g.Init != nil {
			ty, ok := r.value(g.Init)
			switch {
			case !ok:
			case !r.isModuleConstExpr(g.Init):
				r.errorf(diag.SemaTypeMismatch, g.Init.Span, "%s must be initialized from literals, consts and overrides",
					r.name(g.Sym))
			case ty != g.Type:
				r.errorf(diag.SemaTypeMismatch, g.Init.Span, "cannot initialize %s of type %s with %s",
					r.name(g.Sym), r.label(g.Type), r.label(ty))
			}
		}
		if r.tys.Contains(g.Type, types.KindAtomic) {
			r.errorf(diag.SemaInvalidType, g.Span, "atomic types are only valid in workgroup or storage variables")
		}
	case types.SpaceWorkgroup:
		if g.Init != nil {
			r.errorf(diag.SemaInvalidType, g.Init.Span, "workgroup variable %s cannot have an initializer", r.name(g.Sym))
		}
	case types.SpaceUniform, types.SpaceStorage:
		if g.Init != nil {
			r.errorf(diag.SemaInvalidType, g.Init.Span, "%s variable %s cannot have an initializer", g.Space, r.name(g.Sym))
		}
	default:
		r.errorf(diag.SemaInvalidType, g.Span, "module-scope variable %s cannot use the %s address space", r.name(g.Sym), g.Space)
	}
	if runtimeSized && g.Space != types.SpaceStorage {
		r.errorf(diag.SemaInvalidType, g.Span, "runtime-sized array %s must live in storage", r.name(g.Sym))
	}
	r.checkTypeOverrides(g.Type, g.Span)
}

// checkTypeOverrides verifies that override-sized arrays name overrides.
func (r *resolver) checkTypeOverrides(id types.TypeID, sp source.Span) {
	tt, ok := r.tys.Lookup(id)
	if !ok {
		return
	}
	switch tt.Kind {
	case types.KindArray:
		if tt.Length == types.ArrayOverride {
			if r.syms.Kind(tt.Override) != symbols.SymbolOverride || r.out.decls[tt.Override] == nil {
				r.errorf(diag.SemaUnresolvedSymbol, sp, "array size %s is not an override", r.name(tt.Override))
			}
		}
		r.checkTypeOverrides(tt.Elem, sp)
	case types.KindStruct:
		if info, ok := r.tys.StructInfo(id); ok {
			for _, f := range info.Fields {
				r.checkTypeOverrides(f.Type, sp)
			}
		}
	}
}

func (r *resolver) checkOverride(o *ast.Override) {
	tt, ok := r.tys.Lookup(o.Type)
	if !ok || !tt.IsScalar() {
		r.errorf(diag.SemaInvalidType, o.Span, "override %s must have a scalar type", r.name(o.Sym))
		return
	}
	if o.Default != nil {
		ty, ok := r.value(o.Default)
		if ok && !r.isModuleConstExpr(o.Default) {
			r.errorf(diag.SemaTypeMismatch, o.Default.Span, "override %s must default to literals, consts and overrides",
				r.name(o.Sym))
		} else if ok && ty != o.Type {
			r.errorf(diag.SemaTypeMismatch, o.Default.Span, "override %s of type %s has a default of type %s",
				r.name(o.Sym), r.label(o.Type), r.label(ty))
		}
	}
}

func (r *resolver) checkStruct(s *ast.StructDecl) {
	info, ok := r.tys.StructInfo(s.Type)
	if !ok {
		r.errorf(diag.SemaInvalidType, s.Span, "struct %s has no registered type", r.name(s.Sym))
		return
	}
	if len(info.Fields) != len(s.Members) {
		r.errorf(diag.SemaInvalidType, s.Span, "struct %s declares %d members but its type has %d",
			r.name(s.Sym), len(s.Members), len(info.Fields))
		return
	}
	for i, m := range s.Members {
		f := info.Fields[i]
		if f.Name != m.Name || f.Type != m.Type {
			r.errorf(diag.SemaInvalidType, s.Span, "struct %s member %d is %s: %s in its type",
				r.name(s.Sym), i, f.Name, r.label(f.Type))
		}
		if m.Builtin != ast.BuiltinNone {
			r.checkBuiltinType(m.Builtin, m.Type, s.Span)
		}
	}
}

func (r *resolver) checkBuiltinType(b ast.BuiltinValue, ty types.TypeID, sp source.Span) {
	want := r.b.Vec3U32
	if b == ast.BuiltinLocalInvocationIndex {
		want = r.b.U32
	}
	if ty != want {
		r.errorf(diag.SemaInvalidEntryPoint, sp, "builtin %s must have type %s, not %s", b, r.label(want), r.label(ty))
	}
}

func (r *resolver) checkFunc(fn *ast.Func) {
	r.fn = fn
	r.info = r.out.funcs[fn.Sym]
	r.stmt = nil
	r.loopDepth = 0
	defer func() { r.fn, r.info = nil, nil }()

	r.push()
	for _, p := range fn.Params {
		r.checkParam(fn, p)
	}
	if fn.IsEntryPoint() {
		r.checkEntryPoint(fn)
	} else {
		for _, e := range fn.Workgroup {
			if e != nil {
				r.errorf(diag.SemaInvalidEntryPoint, fn.Span, "workgroup size on non-entry function %s", r.name(fn.Sym))
				break
			}
		}
	}
	if fn.Body == nil {
		r.errorf(diag.SemaMisplacedStatement, fn.Span, "function %s has no body", r.name(fn.Sym))
	} else {
		r.block(fn.Body, nil)
	}
	r.pop()
}

func (r *resolver) checkParam(fn *ast.Func, p *ast.Param) {
	if !r.declareSym(p.Sym, symbols.SymbolParam, p.Span) {
		return
	}
	r.out.vars[p.Sym] = &Variable{Sym: p.Sym, Kind: symbols.SymbolParam, Type: p.Type, Param: p, Func: fn}
	r.bind(p.Sym)
	tt, ok := r.tys.Lookup(p.Type)
	switch {
	case !ok:
		r.errorf(diag.SemaInvalidType, p.Span, "parameter %s has no type", r.name(p.Sym))
	case tt.Kind == types.KindPointer || r.tys.Contains(p.Type, types.KindAtomic):
		r.errorf(diag.SemaInvalidType, p.Span, "parameter %s cannot have type %s", r.name(p.Sym), r.label(p.Type))
	case tt.Kind == types.KindArray && tt.Length != types.ArrayConst:
		r.errorf(diag.SemaInvalidType, p.Span, "parameter %s cannot have type %s", r.name(p.Sym), r.label(p.Type))
	}
	if p.Builtin == ast.BuiltinNone {
		return
	}
	if !fn.IsEntryPoint() {
		r.errorf(diag.SemaInvalidEntryPoint, p.Span, "builtin %s on parameter of non-entry function %s", p.Builtin, r.name(fn.Sym))
		return
	}
	r.checkBuiltinType(p.Builtin, p.Type, p.Span)
}

func (r *resolver) checkEntryPoint(fn *ast.Func) {
	if fn.Stage != ast.StageCompute {
		for _, e := range fn.Workgroup {
			if e != nil {
				r.errorf(diag.SemaInvalidEntryPoint, fn.Span, "%s entry point %s cannot declare a workgroup size", fn.Stage, r.name(fn.Sym))
				break
			}
		}
		return
	}
	if fn.Result != types.NoTypeID {
		r.errorf(diag.SemaInvalidEntryPoint, fn.Span, "compute entry point %s cannot return a value", r.name(fn.Sym))
	}
	if fn.Workgroup[0] == nil {
		r.errorf(diag.SemaInvalidEntryPoint, fn.Span, "compute entry point %s needs a workgroup size", r.name(fn.Sym))
	}
	for _, e := range fn.Workgroup {
		if e == nil {
			continue
		}
		ty, ok := r.value(e)
		if !ok {
			continue
		}
		if !r.isIntegerScalar(ty) {
			r.errorf(diag.SemaInvalidEntryPoint, e.Span, "workgroup size must be an integer, not %s", r.label(ty))
			continue
		}
		if !r.isModuleConstExpr(e) {
			r.errorf(diag.SemaInvalidEntryPoint, e.Span, "workgroup size must be built from literals, consts and overrides")
			continue
		}
		if v, ok := r.out.EvalInt(e); ok && v < 1 {
			r.errorf(diag.SemaInvalidEntryPoint, e.Span, "workgroup size must be at least 1, got %d", v)
		}
	}
	for _, p := range fn.Params {
		if p.Builtin != ast.BuiltinNone {
			continue
		}
		info, ok := r.tys.StructInfo(p.Type)
		valid := ok && len(info.Fields) > 0
		if valid {
			if sd, isStruct := r.structDecl(p.Type); isStruct {
				for _, m := range sd.Members {
					if m.Builtin == ast.BuiltinNone {
						valid = false
					}
				}
			} else {
				valid = false
			}
		}
		if !valid {
			r.errorf(diag.SemaInvalidEntryPoint, p.Span, "compute entry point input %s must be a builtin", r.name(p.Sym))
		}
	}
}

// structDecl finds the declaration of a struct type.
func (r *resolver) structDecl(id types.TypeID) (*ast.StructDecl, bool) {
	for _, d := range r.out.AST.Decls {
		if sd, ok := d.(*ast.StructDecl); ok && sd.Type == id {
			return sd, true
		}
	}
	return nil, false
}

// isModuleConstExpr accepts literals, consts, overrides and operators over them.
func (r *resolver) isModuleConstExpr(e *ast.Expr) bool {
	ok := true
	ast.InspectExpr(e, func(x *ast.Expr) bool {
		switch d := x.Data.(type) {
		case ast.LiteralData, ast.BinaryData, ast.UnaryData:
		case ast.IdentData:
			k := r.syms.Kind(d.Sym)
			if k != symbols.SymbolConst && k != symbols.SymbolOverride {
				ok = false
			}
		case ast.ConstructData:
		default:
			ok = false
		}
		return ok
	})
	return ok
}

func (r *resolver) isIntegerScalar(id types.TypeID) bool {
	return id == r.b.I32 || id == r.b.U32
}

// Scopes ----------------------------------------------------------------------

func (r *resolver) push() {
	r.scopes = append(r.scopes, nil)
}

func (r *resolver) pop() {
	top := r.scopes[len(r.scopes)-1]
	for _, sym := range top {
		delete(r.live, sym)
	}
	r.scopes = r.scopes[:len(r.scopes)-1]
}

func (r *resolver) bind(sym symbols.SymbolID) {
	r.live[sym] = true
	r.scopes[len(r.scopes)-1] = append(r.scopes[len(r.scopes)-1], sym)
}
