package types

import (
	"fmt"

	"fortio.org/safecast"
)

// Builtins stores TypeIDs for common types.
type Builtins struct {
	Bool    TypeID
	I32     TypeID
	U32     TypeID
	F32     TypeID
	Vec3U32 TypeID
}

// Interner provides stable TypeIDs by hashing structural descriptors.
// Structs are nominal: each RegisterStruct call yields a new type.
type Interner struct {
	types     []Type
	index     map[Type]TypeID
	builtins  Builtins
	structs   []StructInfo
	exprSizes []string
}

// NewInterner constructs an interner seeded with built-in primitives.
func NewInterner() *Interner {
	in := &Interner{
		types:     make([]Type, 1, 32), // index 0 reserved for NoTypeID
		index:     make(map[Type]TypeID, 32),
		structs:   make([]StructInfo, 1, 8),
		exprSizes: make([]string, 1),
	}
	in.builtins.Bool = in.Intern(Type{Kind: KindBool})
	in.builtins.I32 = in.Intern(Type{Kind: KindI32})
	in.builtins.U32 = in.Intern(Type{Kind: KindU32})
	in.builtins.F32 = in.Intern(Type{Kind: KindF32})
	in.builtins.Vec3U32 = in.Intern(MakeVector(in.builtins.U32, 3))
	return in
}

// Builtins returns TypeIDs for primitive types.
func (in *Interner) Builtins() Builtins {
	return in.builtins
}

// Intern ensures the provided descriptor has a stable TypeID.
func (in *Interner) Intern(t Type) TypeID {
	if t.Kind == KindInvalid {
		return NoTypeID
	}
	if id, ok := in.index[t]; ok {
		return id
	}
	return in.internRaw(t)
}

func (in *Interner) internRaw(t Type) TypeID {
	n, err := safecast.Conv[uint32](len(in.types))
	if err != nil {
		panic(fmt.Errorf("len(types) overflow: %w", err))
	}
	id := TypeID(n)
	in.types = append(in.types, t)
	in.index[t] = id
	return id
}

// OverrideExprArray registers array<elem, expr> where expr is an override
// expression kept only as text. Each call yields a distinct type.
func (in *Interner) OverrideExprArray(elem TypeID, expr string) TypeID {
	slot, err := safecast.Conv[uint32](len(in.exprSizes))
	if err != nil {
		panic(fmt.Errorf("override size overflow: %w", err))
	}
	in.exprSizes = append(in.exprSizes, expr)
	return in.internRaw(Type{Kind: KindArray, Elem: elem, Length: ArrayOverrideExpr, Payload: slot})
}

// SizeExpr returns the text of an override-expression array size.
func (in *Interner) SizeExpr(id TypeID) string {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindArray || tt.Length != ArrayOverrideExpr || int(tt.Payload) >= len(in.exprSizes) {
		return ""
	}
	return in.exprSizes[tt.Payload]
}

// Lookup returns the descriptor for a TypeID.
func (in *Interner) Lookup(id TypeID) (Type, bool) {
	if in == nil || id == NoTypeID || int(id) >= len(in.types) {
		return Type{}, false
	}
	return in.types[id], true
}

// MustLookup panics when id is invalid.
func (in *Interner) MustLookup(id TypeID) Type {
	tt, ok := in.Lookup(id)
	if !ok {
		panic("types: invalid TypeID")
	}
	return tt
}

// KindOf returns the kind of id, or KindInvalid.
func (in *Interner) KindOf(id TypeID) Kind {
	tt, _ := in.Lookup(id)
	return tt.Kind
}

// Len reports the number of types excluding the sentinel.
func (in *Interner) Len() int { return len(in.types) - 1 }

// Clone returns an independent copy of the interner.
func (in *Interner) Clone() *Interner {
	out := &Interner{
		types:     append([]Type(nil), in.types...),
		index:     make(map[Type]TypeID, len(in.index)),
		builtins:  in.builtins,
		structs:   make([]StructInfo, len(in.structs)),
		exprSizes: append([]string(nil), in.exprSizes...),
	}
	for k, v := range in.index {
		out.index[k] = v
	}
	for i, s := range in.structs {
		out.structs[i] = StructInfo{Name: s.Name, Fields: cloneStructFields(s.Fields)}
	}
	return out
}
