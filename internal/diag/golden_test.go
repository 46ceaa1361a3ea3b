package diag

import (
	"testing"

	"shaderpipe/internal/source"
)

func TestFormatShort(t *testing.T) {
	fs := source.NewFileSet()
	fs.SetBaseDir("/workspace")
	file := fs.Add("/workspace/shaders/sample.wgsl", []byte("a\nb\n"), source.FileVirtual)

	diags := []Diagnostic{
		{
			Severity: SevError,
			Code:     SemaUnresolvedSymbol,
			Message:  "first line\nsecond",
			Primary:  source.Span{File: file, Start: 0, End: 1},
			Notes: []Note{
				{Span: source.Span{File: file, Start: 2, End: 3}, Msg: "declared here"},
			},
		},
		{
			Severity: SevInfo,
			Code:     LowPatternDeclined,
			Message:  "left alone",
			Primary:  source.Span{File: 7},
		},
	}

	want := "info LOW4004 <unknown>:0:0 left alone\n" +
		"error SEM3003 shaders/sample.wgsl:1:1 first line second\n" +
		"note SEM3003 shaders/sample.wgsl:2:1 declared here"
	if got := FormatShort(diags, fs, true); got != want {
		t.Fatalf("unexpected output:\nwant:\n%s\n\ngot:\n%s", want, got)
	}
}

func TestErrorChain(t *testing.T) {
	inner := Errorf(LowUnresolvedSize, source.Span{}, "workgroup size %s", "N * 2")
	outer := wrapForTest(inner)

	de, ok := FromError(outer)
	if !ok {
		t.Fatal("expected diagnostic error in chain")
	}
	if de.Primary().Code != LowUnresolvedSize {
		t.Fatalf("unexpected code %v", de.Primary().Code)
	}
	if !de.OnlyCodes(LowUnresolvedSize) {
		t.Fatal("OnlyCodes should match the single diagnostic")
	}
	if de.OnlyCodes(SemaTypeMismatch) {
		t.Fatal("OnlyCodes should not match a different code")
	}
}

func TestBagLimitAndSort(t *testing.T) {
	bag := NewBag(2)
	r := BagReporter{Bag: bag}
	ReportError(r, SemaTypeMismatch, source.Span{Start: 9}, "late").Emit()
	ReportInfo(r, LowInfo, source.Span{Start: 1}, "early").Emit()
	ReportError(r, SemaTypeMismatch, source.Span{Start: 5}, "dropped").Emit()

	if bag.Len() != 2 {
		t.Fatalf("expected limit to hold at 2, got %d", bag.Len())
	}
	bag.Sort()
	if bag.Items()[0].Message != "early" {
		t.Fatalf("unexpected order: %+v", bag.Items())
	}
	if !bag.HasErrors() || len(bag.Errors()) != 1 {
		t.Fatal("expected exactly one error")
	}
}

type wrapped struct{ err error }

func (w wrapped) Error() string { return "pass failed: " + w.err.Error() }
func (w wrapped) Unwrap() error { return w.err }

func wrapForTest(err error) error { return wrapped{err: err} }
