package types

import (
	"fmt"

	"shaderpipe/internal/symbols"
)

// Namer resolves symbol names for override-sized arrays.
type Namer interface {
	Name(symbols.SymbolID) string
}

// Label renders a type in WGSL-like syntax.
func (in *Interner) Label(id TypeID, names Namer) string {
	if id == NoTypeID {
		return "void"
	}
	tt, ok := in.Lookup(id)
	if !ok {
		return fmt.Sprintf("<type %d>", id)
	}
	switch tt.Kind {
	case KindBool, KindI32, KindU32, KindF32:
		return tt.Kind.String()
	case KindVector:
		return fmt.Sprintf("vec%d<%s>", tt.Count, in.Label(tt.Elem, names))
	case KindAtomic:
		return fmt.Sprintf("atomic<%s>", in.Label(tt.Elem, names))
	case KindPointer:
		return fmt.Sprintf("ptr<%s, %s>", tt.Space, in.Label(tt.Elem, names))
	case KindStruct:
		if info := in.structInfo(id); info != nil {
			return info.Name
		}
	case KindArray:
		elem := in.Label(tt.Elem, names)
		switch tt.Length {
		case ArrayConst:
			return fmt.Sprintf("array<%s, %d>", elem, tt.Count)
		case ArrayRuntime:
			return fmt.Sprintf("array<%s>", elem)
		case ArrayOverride:
			name := fmt.Sprintf("override#%d", tt.Override)
			if names != nil {
				name = names.Name(tt.Override)
			}
			return fmt.Sprintf("array<%s, %s>", elem, name)
		case ArrayOverrideExpr:
			return fmt.Sprintf("array<%s, %s>", elem, in.SizeExpr(id))
		}
	}
	return tt.Kind.String()
}
