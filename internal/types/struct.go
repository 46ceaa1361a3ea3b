package types

import (
	"fmt"

	"fortio.org/safecast"
)

// StructField describes a single member of a struct type.
type StructField struct {
	Name string
	Type TypeID
}

// StructInfo stores metadata for a struct type.
type StructInfo struct {
	Name   string
	Fields []StructField
}

// RegisterStruct allocates a nominal struct type slot and returns its TypeID.
func (in *Interner) RegisterStruct(name string) TypeID {
	slot, err := safecast.Conv[uint32](len(in.structs))
	if err != nil {
		panic(fmt.Errorf("struct slots overflow: %w", err))
	}
	in.structs = append(in.structs, StructInfo{Name: name})
	return in.internRaw(Type{Kind: KindStruct, Payload: slot})
}

// SetStructFields stores the member descriptors for the struct type.
func (in *Interner) SetStructFields(typeID TypeID, fields []StructField) {
	if info := in.structInfo(typeID); info != nil {
		info.Fields = cloneStructFields(fields)
	}
}

// StructInfo returns metadata for the provided struct TypeID.
func (in *Interner) StructInfo(typeID TypeID) (*StructInfo, bool) {
	info := in.structInfo(typeID)
	return info, info != nil
}

// Field returns the index and type of a named struct member.
func (in *Interner) Field(typeID TypeID, name string) (int, TypeID, bool) {
	info := in.structInfo(typeID)
	if info == nil {
		return -1, NoTypeID, false
	}
	for i, f := range info.Fields {
		if f.Name == name {
			return i, f.Type, true
		}
	}
	return -1, NoTypeID, false
}

func (in *Interner) structInfo(typeID TypeID) *StructInfo {
	tt, ok := in.Lookup(typeID)
	if !ok || tt.Kind != KindStruct {
		return nil
	}
	if tt.Payload == 0 || int(tt.Payload) >= len(in.structs) {
		return nil
	}
	return &in.structs[tt.Payload]
}

func cloneStructFields(fields []StructField) []StructField {
	if len(fields) == 0 {
		return nil
	}
	out := make([]StructField, len(fields))
	copy(out, fields)
	return out
}
