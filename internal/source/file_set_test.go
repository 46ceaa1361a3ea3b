package source

import "testing"

func TestFileSetResolve(t *testing.T) {
	fs := NewFileSet()
	id := fs.Add("shaders/a.wgsl", []byte("fn a() {}\r\nfn b() {}\n"), FileVirtual)

	f := fs.Get(id)
	if f == nil {
		t.Fatal("file not stored")
	}
	if f.Flags&FileNormalizedCRLF == 0 {
		t.Fatalf("expected CRLF normalization flag, got %v", f.Flags)
	}

	start, end, ok := fs.Resolve(Span{File: id, Start: 10, End: 14})
	if !ok {
		t.Fatal("resolve failed")
	}
	if start.Line != 2 || start.Col != 1 {
		t.Fatalf("unexpected start %+v", start)
	}
	if end.Line != 2 || end.Col != 5 {
		t.Fatalf("unexpected end %+v", end)
	}
}

func TestFileSetUnknownFile(t *testing.T) {
	fs := NewFileSet()
	if _, _, ok := fs.Resolve(Span{File: 3}); ok {
		t.Fatal("expected unknown file to fail resolution")
	}
	if fs.Get(3) != nil {
		t.Fatal("expected nil file")
	}
}

func TestSpanCover(t *testing.T) {
	a := Span{File: 1, Start: 4, End: 8}
	b := Span{File: 1, Start: 2, End: 6}
	got := a.Cover(b)
	if got.Start != 2 || got.End != 8 {
		t.Fatalf("unexpected cover %v", got)
	}
	if c := a.Cover(Span{File: 2, Start: 0, End: 1}); c != a {
		t.Fatalf("cross-file cover must keep receiver, got %v", c)
	}
}
