package transform_test

import (
	"context"
	"strings"
	"testing"

	"shaderpipe/internal/diag"
	"shaderpipe/internal/rewrite"
	"shaderpipe/internal/sema"
	"shaderpipe/internal/testkit"
	"shaderpipe/internal/transform"
)

var env = transform.Env{Options: rewrite.Options{SymbolPrefix: "tint_"}}

func lines(ls ...string) string {
	return strings.Join(ls, "\n") + "\n"
}

// apply runs pass once and checks that its output resolves cleanly.
func apply(t *testing.T, pass transform.Pass, p *sema.Program) transform.Outcome {
	t.Helper()
	out, err := pass.Apply(context.Background(), p, env)
	if err != nil {
		t.Fatalf("%s: %v", pass.Name(), err)
	}
	if out.Rewritten {
		if err := testkit.CheckInvariants(out.Program); err != nil {
			t.Fatalf("%s: invariants: %v", pass.Name(), err)
		}
	}
	return out
}

// rewritten runs pass and requires a new program.
func rewritten(t *testing.T, pass transform.Pass, p *sema.Program) *sema.Program {
	t.Helper()
	if !pass.ShouldRun(p) {
		t.Fatalf("%s: ShouldRun = false", pass.Name())
	}
	out := apply(t, pass, p)
	if !out.Rewritten {
		t.Fatalf("%s: expected a rewrite", pass.Name())
	}
	return out.Program
}

func checkDump(t *testing.T, p *sema.Program, want string) {
	t.Helper()
	if got := testkit.Dump(p); got != want {
		t.Fatalf("unexpected program:\n--- got ---\n%s--- want ---\n%s", got, want)
	}
}

func wantCode(t *testing.T, err error, code diag.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got success", code.ID())
	}
	de, ok := diag.FromError(err)
	if !ok {
		t.Fatalf("expected *diag.Error, got %T: %v", err, err)
	}
	if de.Primary().Code != code {
		t.Fatalf("expected %s, got %v", code.ID(), err)
	}
}
