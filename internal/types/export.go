package types

import "fmt"

// Export is the flat form of an interner used by snapshots.
type Export struct {
	Types     []Type
	Structs   []StructInfo
	SizeExprs []string
}

// Export returns the interner contents without sentinels.
func (in *Interner) Export() Export {
	out := Export{
		Types:     append([]Type(nil), in.types[1:]...),
		SizeExprs: append([]string(nil), in.exprSizes[1:]...),
	}
	for _, s := range in.structs[1:] {
		out.Structs = append(out.Structs, StructInfo{Name: s.Name, Fields: cloneStructFields(s.Fields)})
	}
	return out
}

// Import rebuilds an interner so that Export().Types[i] gets TypeID(i+1) again.
func Import(e Export) (*Interner, error) {
	in := &Interner{
		types:     make([]Type, 1, len(e.Types)+1),
		index:     make(map[Type]TypeID, len(e.Types)),
		structs:   make([]StructInfo, 1, len(e.Structs)+1),
		exprSizes: append([]string{""}, e.SizeExprs...),
	}
	for _, s := range e.Structs {
		in.structs = append(in.structs, StructInfo{Name: s.Name, Fields: cloneStructFields(s.Fields)})
	}
	for i, t := range e.Types {
		id := TypeID(len(in.types))
		switch t.Kind {
		case KindVector, KindArray, KindAtomic, KindPointer:
			if t.Elem == NoTypeID || int(t.Elem) >= int(id) {
				return nil, fmt.Errorf("type %d: element %d is not defined before use", i+1, t.Elem)
			}
		case KindStruct:
			if t.Payload == 0 || int(t.Payload) >= len(in.structs) {
				return nil, fmt.Errorf("type %d: unknown struct slot %d", i+1, t.Payload)
			}
		case KindInvalid:
			return nil, fmt.Errorf("type %d: invalid kind", i+1)
		}
		in.types = append(in.types, t)
		if _, dup := in.index[t]; !dup {
			in.index[t] = id
		}
	}
	for _, s := range in.structs[1:] {
		for _, f := range s.Fields {
			if _, ok := in.Lookup(f.Type); !ok {
				return nil, fmt.Errorf("struct %s: field %s has unknown type %d", s.Name, f.Name, f.Type)
			}
		}
	}
	in.builtins = Builtins{
		Bool: in.Intern(Type{Kind: KindBool}),
		I32:  in.Intern(Type{Kind: KindI32}),
		U32:  in.Intern(Type{Kind: KindU32}),
		F32:  in.Intern(Type{Kind: KindF32}),
	}
	in.builtins.Vec3U32 = in.Intern(MakeVector(in.builtins.U32, 3))
	return in, nil
}
