package types

// Contains reports whether id or any type nested in it has kind k.
func (in *Interner) Contains(id TypeID, k Kind) bool {
	tt, ok := in.Lookup(id)
	if !ok {
		return false
	}
	if tt.Kind == k {
		return true
	}
	switch tt.Kind {
	case KindVector, KindArray, KindAtomic:
		return in.Contains(tt.Elem, k)
	case KindStruct:
		if info := in.structInfo(id); info != nil {
			for _, f := range info.Fields {
				if in.Contains(f.Type, k) {
					return true
				}
			}
		}
	}
	return false
}

// IsConstructible reports whether a value of id can be built with a
// constructor expression, which also yields its zero value when no
// arguments are given.
func (in *Interner) IsConstructible(id TypeID) bool {
	tt, ok := in.Lookup(id)
	if !ok {
		return false
	}
	switch tt.Kind {
	case KindBool, KindI32, KindU32, KindF32, KindVector:
		return true
	case KindArray:
		return tt.Length == ArrayConst && in.IsConstructible(tt.Elem)
	case KindStruct:
		info := in.structInfo(id)
		if info == nil {
			return false
		}
		for _, f := range info.Fields {
			if !in.IsConstructible(f.Type) {
				return false
			}
		}
		return true
	}
	return false
}

// ElemOf returns the element type of vectors, arrays, atomics and pointers.
func (in *Interner) ElemOf(id TypeID) TypeID {
	tt, ok := in.Lookup(id)
	if !ok {
		return NoTypeID
	}
	switch tt.Kind {
	case KindVector, KindArray, KindAtomic, KindPointer:
		return tt.Elem
	}
	return NoTypeID
}
