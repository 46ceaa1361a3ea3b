package types

import (
	"fmt"

	"shaderpipe/internal/symbols"
)

// TypeID uniquely identifies a type inside the interner.
type TypeID uint32

// NoTypeID marks the absence of a type (also used for "no result").
const NoTypeID TypeID = 0

// Kind enumerates all supported kinds of types.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindI32
	KindU32
	KindF32
	KindVector
	KindArray
	KindStruct
	KindAtomic
	KindPointer
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindBool:
		return "bool"
	case KindI32:
		return "i32"
	case KindU32:
		return "u32"
	case KindF32:
		return "f32"
	case KindVector:
		return "vector"
	case KindArray:
		return "array"
	case KindStruct:
		return "struct"
	case KindAtomic:
		return "atomic"
	case KindPointer:
		return "pointer"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// ArrayLength says how the element count of an array is known.
type ArrayLength uint8

const (
	// ArrayConst arrays have Count elements.
	ArrayConst ArrayLength = iota
	// ArrayRuntime arrays are sized by the bound buffer.
	ArrayRuntime
	// ArrayOverride arrays are sized by a named override (Override).
	ArrayOverride
	// ArrayOverrideExpr arrays are sized by an override expression that is
	// only known after specialization. Payload keeps such types distinct.
	ArrayOverrideExpr
)

// AddressSpace is where a variable or a pointee lives.
type AddressSpace uint8

const (
	SpaceFunction AddressSpace = iota
	SpacePrivate
	SpaceWorkgroup
	SpaceUniform
	SpaceStorage
)

func (s AddressSpace) String() string {
	switch s {
	case SpaceFunction:
		return "function"
	case SpacePrivate:
		return "private"
	case SpaceWorkgroup:
		return "workgroup"
	case SpaceUniform:
		return "uniform"
	case SpaceStorage:
		return "storage"
	default:
		return fmt.Sprintf("AddressSpace(%d)", s)
	}
}

// Type is a compact descriptor for any supported type.
type Type struct {
	Kind     Kind
	Elem     TypeID
	Count    uint32 // vector width or constant array length
	Length   ArrayLength
	Override symbols.SymbolID // for ArrayOverride
	Space    AddressSpace     // for pointers
	Payload  uint32           // struct slot or override-expression slot
}

// Descriptor helpers ---------------------------------------------------------

// MakeVector describes vecN<elem>.
func MakeVector(elem TypeID, n uint32) Type {
	return Type{Kind: KindVector, Elem: elem, Count: n}
}

// MakeArray describes array<elem, count>.
func MakeArray(elem TypeID, count uint32) Type {
	return Type{Kind: KindArray, Elem: elem, Count: count, Length: ArrayConst}
}

// MakeRuntimeArray describes array<elem>.
func MakeRuntimeArray(elem TypeID) Type {
	return Type{Kind: KindArray, Elem: elem, Length: ArrayRuntime}
}

// MakeOverrideArray describes array<elem, N> where N names an override.
func MakeOverrideArray(elem TypeID, override symbols.SymbolID) Type {
	return Type{Kind: KindArray, Elem: elem, Length: ArrayOverride, Override: override}
}

// MakeAtomic describes atomic<elem>.
func MakeAtomic(elem TypeID) Type {
	return Type{Kind: KindAtomic, Elem: elem}
}

// MakePointer describes ptr<space, elem>.
func MakePointer(space AddressSpace, elem TypeID) Type {
	return Type{Kind: KindPointer, Elem: elem, Space: space}
}

// IsScalar reports bool, i32, u32 and f32.
func (t Type) IsScalar() bool {
	switch t.Kind {
	case KindBool, KindI32, KindU32, KindF32:
		return true
	}
	return false
}

// IsInteger reports i32 and u32.
func (t Type) IsInteger() bool {
	return t.Kind == KindI32 || t.Kind == KindU32
}

// IsNumeric reports i32, u32 and f32.
func (t Type) IsNumeric() bool {
	return t.IsInteger() || t.Kind == KindF32
}
