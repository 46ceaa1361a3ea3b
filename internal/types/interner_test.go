package types

import (
	"testing"

	"shaderpipe/internal/symbols"
)

func TestInternerBuiltins(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	if b.Bool == NoTypeID || b.U32 == NoTypeID || b.Vec3U32 == NoTypeID {
		t.Fatalf("builtins not initialized")
	}
	vec, _ := in.Lookup(b.Vec3U32)
	if vec.Kind != KindVector || vec.Count != 3 || vec.Elem != b.U32 {
		t.Fatalf("unexpected vec3<u32> descriptor %+v", vec)
	}
}

func TestInternerDeduplicatesDescriptors(t *testing.T) {
	in := NewInterner()
	u32 := in.Builtins().U32
	arr1 := in.Intern(MakeArray(u32, 8))
	arr2 := in.Intern(MakeArray(u32, 8))
	if arr1 != arr2 {
		t.Fatalf("array types should be deduplicated")
	}
	if in.Intern(MakeArray(u32, 4)) == arr1 {
		t.Fatalf("arrays of different length must differ")
	}
}

func TestOverrideExprArraysAreDistinct(t *testing.T) {
	in := NewInterner()
	u32 := in.Builtins().U32
	a := in.OverrideExprArray(u32, "N * 2")
	b := in.OverrideExprArray(u32, "N * 2")
	if a == b {
		t.Fatalf("override-expression arrays must be distinct types")
	}
	if got := in.Label(a, nil); got != "array<u32, N * 2>" {
		t.Fatalf("unexpected label %q", got)
	}
}

func TestStructsAreNominal(t *testing.T) {
	in := NewInterner()
	f32 := in.Builtins().F32
	a := in.RegisterStruct("S")
	b := in.RegisterStruct("S")
	if a == b {
		t.Fatalf("struct registration must be nominal")
	}
	in.SetStructFields(a, []StructField{{Name: "x", Type: f32}, {Name: "c", Type: in.Intern(MakeAtomic(in.Builtins().U32))}})
	idx, ty, ok := in.Field(a, "c")
	if !ok || idx != 1 || in.KindOf(ty) != KindAtomic {
		t.Fatalf("field lookup failed: %d %d %v", idx, ty, ok)
	}
	if !in.Contains(a, KindAtomic) || in.IsConstructible(a) {
		t.Fatalf("struct with atomic member must not be constructible")
	}
}

type names map[symbols.SymbolID]string

func (n names) Name(id symbols.SymbolID) string { return n[id] }

func TestExportImportRoundTrip(t *testing.T) {
	in := NewInterner()
	u32 := in.Builtins().U32
	s := in.RegisterStruct("Block")
	arr := in.Intern(MakeOverrideArray(in.Intern(MakeAtomic(u32)), symbols.SymbolID(3)))
	in.SetStructFields(s, []StructField{{Name: "data", Type: arr}})
	expr := in.OverrideExprArray(u32, "N + 1")

	out, err := Import(in.Export())
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if out.Builtins() != in.Builtins() {
		t.Fatalf("builtins differ after import")
	}
	nm := names{3: "N"}
	for _, id := range []TypeID{s, arr, expr} {
		if got, want := out.Label(id, nm), in.Label(id, nm); got != want {
			t.Fatalf("label mismatch for %d: %q vs %q", id, got, want)
		}
	}
	if out.Label(arr, nm) != "array<atomic<u32>, N>" {
		t.Fatalf("unexpected label %q", out.Label(arr, nm))
	}
}
