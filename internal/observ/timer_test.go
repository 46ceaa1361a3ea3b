package observ

import (
	"strings"
	"testing"
)

func TestTimerReport(t *testing.T) {
	tm := NewTimer()
	a := tm.Begin("fold_trivial_lets")
	tm.End(a, "rewritten")
	b := tm.Begin("zero_init_workgroup_memory")
	tm.End(b, "skipped")
	tm.End(42, "ignored")

	r := tm.Report()
	if len(r.Phases) != 2 {
		t.Fatalf("expected 2 phases, got %d", len(r.Phases))
	}
	if r.Phases[0].Note != "rewritten" || r.Phases[1].Name != "zero_init_workgroup_memory" {
		t.Fatalf("unexpected report %+v", r)
	}
	sum := r.Summary("kernels")
	if !strings.HasPrefix(sum, "kernels:\n") || !strings.Contains(sum, "rewritten") || !strings.Contains(sum, "total") {
		t.Fatalf("unexpected summary:\n%s", sum)
	}
	for _, line := range strings.Split(sum, "\n") {
		if strings.Contains(line, "zero_init_workgroup_memory") && strings.Contains(line, "ms") {
			t.Fatalf("skipped phase has a duration: %q", line)
		}
	}
}

func TestNilTimerReport(t *testing.T) {
	var tm *Timer
	if r := tm.Report(); len(r.Phases) != 0 {
		t.Fatalf("expected empty report")
	}
}
