package symbols

import "shaderpipe/internal/source"

// SymbolKind classifies what a symbol names.
type SymbolKind uint8

const (
	SymbolInvalid SymbolKind = iota
	SymbolFunc
	SymbolParam
	SymbolLet
	SymbolVar
	// SymbolGlobal is a module-scope variable in any address space.
	SymbolGlobal
	// SymbolOverride is a pipeline-overridable constant, resolved only at specialization time.
	SymbolOverride
	SymbolConst
	SymbolStruct
	SymbolAlias
)

func (k SymbolKind) String() string {
	switch k {
	case SymbolFunc:
		return "fn"
	case SymbolParam:
		return "param"
	case SymbolLet:
		return "let"
	case SymbolVar:
		return "var"
	case SymbolGlobal:
		return "global"
	case SymbolOverride:
		return "override"
	case SymbolConst:
		return "const"
	case SymbolStruct:
		return "struct"
	case SymbolAlias:
		return "alias"
	default:
		return "invalid"
	}
}

// IsValue reports whether an identifier of this kind can appear in an expression.
func (k SymbolKind) IsValue() bool {
	switch k {
	case SymbolParam, SymbolLet, SymbolVar, SymbolGlobal, SymbolOverride, SymbolConst:
		return true
	}
	return false
}

// IsMutable reports whether a binding of this kind may be assigned.
func (k SymbolKind) IsMutable() bool {
	return k == SymbolVar || k == SymbolGlobal
}

// SymbolFlags carries extra bits about a symbol.
type SymbolFlags uint8

const (
	// SymbolSynthetic marks symbols minted by a rewrite rather than declared in source.
	SymbolSynthetic SymbolFlags = 1 << iota
	// SymbolZeroInitRoutine marks functions synthesized to zero workgroup memory.
	SymbolZeroInitRoutine
)

// Symbol is one name binding.
type Symbol struct {
	Name  string
	Kind  SymbolKind
	Span  source.Span
	Flags SymbolFlags
}

func (s *Symbol) Has(f SymbolFlags) bool { return s != nil && s.Flags&f != 0 }
