package ast

import (
	"shaderpipe/internal/source"
	"shaderpipe/internal/symbols"
	"shaderpipe/internal/types"
)

// Decl is a module-scope declaration.
type Decl interface {
	DeclSym() symbols.SymbolID
	DeclSpan() source.Span
	decl()
}

// Stage is the pipeline stage of an entry point.
type Stage uint8

const (
	StageNone Stage = iota
	StageCompute
	StageVertex
	StageFragment
)

func (s Stage) String() string {
	switch s {
	case StageCompute:
		return "compute"
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	}
	return ""
}

// BuiltinValue is a builtin attribute on a parameter or struct member.
type BuiltinValue uint8

const (
	BuiltinNone BuiltinValue = iota
	BuiltinLocalInvocationIndex
	BuiltinLocalInvocationID
	BuiltinGlobalInvocationID
	BuiltinWorkgroupID
	BuiltinNumWorkgroups
)

func (b BuiltinValue) String() string {
	switch b {
	case BuiltinLocalInvocationIndex:
		return "local_invocation_index"
	case BuiltinLocalInvocationID:
		return "local_invocation_id"
	case BuiltinGlobalInvocationID:
		return "global_invocation_id"
	case BuiltinWorkgroupID:
		return "workgroup_id"
	case BuiltinNumWorkgroups:
		return "num_workgroups"
	}
	return ""
}

// IsUniform reports builtins that hold the same value for every invocation
// of a workgroup.
func (b BuiltinValue) IsUniform() bool {
	return b == BuiltinWorkgroupID || b == BuiltinNumWorkgroups
}

// Func is a function declaration. Entry points have a Stage; compute entry
// points carry up to three workgroup size expressions (nil means 1 for y and z).
type Func struct {
	Sym       symbols.SymbolID
	Span      source.Span
	Params    []*Param
	Result    types.TypeID // NoTypeID for no result
	Body      *Block
	Stage     Stage
	Workgroup [3]*Expr
}

func (f *Func) DeclSym() symbols.SymbolID { return f.Sym }
func (f *Func) DeclSpan() source.Span     { return f.Span }
func (*Func) decl()                       {}

// IsEntryPoint reports whether f has a pipeline stage.
func (f *Func) IsEntryPoint() bool { return f.Stage != StageNone }

// Param is a function parameter.
type Param struct {
	Sym     symbols.SymbolID
	Type    types.TypeID
	Builtin BuiltinValue
	Span    source.Span
}

// GlobalVar is a module-scope variable.
type GlobalVar struct {
	Sym   symbols.SymbolID
	Span  source.Span
	Space types.AddressSpace
	Type  types.TypeID
	Init  *Expr // private only
	// Group and Binding place uniform and storage variables.
	Group     uint32
	Binding   uint32
	ReadWrite bool // storage access mode
}

func (g *GlobalVar) DeclSym() symbols.SymbolID { return g.Sym }
func (g *GlobalVar) DeclSpan() source.Span     { return g.Span }
func (*GlobalVar) decl()                       {}

// Override is a pipeline-overridable constant.
type Override struct {
	Sym     symbols.SymbolID
	Span    source.Span
	Type    types.TypeID
	Default *Expr
}

func (o *Override) DeclSym() symbols.SymbolID { return o.Sym }
func (o *Override) DeclSpan() source.Span     { return o.Span }
func (*Override) decl()                       {}

// Const is a module-scope constant.
type Const struct {
	Sym   symbols.SymbolID
	Span  source.Span
	Type  types.TypeID
	Value *Expr
}

func (c *Const) DeclSym() symbols.SymbolID { return c.Sym }
func (c *Const) DeclSpan() source.Span     { return c.Span }
func (*Const) decl()                       {}

// StructDecl declares the struct type Type.
type StructDecl struct {
	Sym     symbols.SymbolID
	Span    source.Span
	Type    types.TypeID
	Members []*Member
}

func (s *StructDecl) DeclSym() symbols.SymbolID { return s.Sym }
func (s *StructDecl) DeclSpan() source.Span     { return s.Span }
func (*StructDecl) decl()                       {}

// Member is a struct member.
type Member struct {
	Name    string
	Type    types.TypeID
	Builtin BuiltinValue
}

// Alias declares a type alias.
type Alias struct {
	Sym    symbols.SymbolID
	Span   source.Span
	Target types.TypeID
}

func (a *Alias) DeclSym() symbols.SymbolID { return a.Sym }
func (a *Alias) DeclSpan() source.Span     { return a.Span }
func (*Alias) decl()                       {}

// Program is one compilation unit's declarations in source order.
type Program struct {
	Decls []Decl
	// DisableUniformity turns off the barrier uniformity lint, like a
	// module-level diagnostic(off, ...) directive.
	DisableUniformity bool
}

// Funcs returns the function declarations in order.
func (p *Program) Funcs() []*Func {
	var out []*Func
	for _, d := range p.Decls {
		if fn, ok := d.(*Func); ok {
			out = append(out, fn)
		}
	}
	return out
}

// EntryPoints returns the entry point functions in order.
func (p *Program) EntryPoints() []*Func {
	var out []*Func
	for _, fn := range p.Funcs() {
		if fn.IsEntryPoint() {
			out = append(out, fn)
		}
	}
	return out
}

// Globals returns the module-scope variables in order.
func (p *Program) Globals() []*GlobalVar {
	var out []*GlobalVar
	for _, d := range p.Decls {
		if g, ok := d.(*GlobalVar); ok {
			out = append(out, g)
		}
	}
	return out
}

// Lookup returns the declaration of sym.
func (p *Program) Lookup(sym symbols.SymbolID) Decl {
	for _, d := range p.Decls {
		if d.DeclSym() == sym {
			return d
		}
	}
	return nil
}
