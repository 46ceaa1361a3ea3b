package transform

import (
	"context"

	"shaderpipe/internal/diag"
	"shaderpipe/internal/rewrite"
	"shaderpipe/internal/sema"
)

// Env carries the global options and the reporter for non-fatal notes.
type Env struct {
	Options  rewrite.Options
	Reporter diag.Reporter
}

func (e Env) reporter() diag.Reporter {
	if e.Reporter == nil {
		return diag.NopReporter{}
	}
	return e.Reporter
}

// Outcome is the result of a pass: either the input unchanged or a new
// program.
type Outcome struct {
	Program   *sema.Program
	Rewritten bool
}

func Unchanged() Outcome { return Outcome{} }

func Rewritten(p *sema.Program) Outcome { return Outcome{Program: p, Rewritten: true} }

// Pass is one lowering step. ShouldRun is a cheap applicability check;
// Apply may still return Unchanged when the pattern it looks for is absent.
// The set of passes is closed.
type Pass interface {
	Name() string
	ShouldRun(p *sema.Program) bool
	Apply(ctx context.Context, p *sema.Program, env Env) (Outcome, error)
	isPass()
}

// commitIfChanged commits c, or reports Unchanged when c has no edits.
func commitIfChanged(ctx context.Context, c *rewrite.Context) (Outcome, error) {
	if !c.Changed() {
		return Unchanged(), nil
	}
	out, err := c.Commit(ctx)
	if err != nil {
		return Outcome{}, err
	}
	return Rewritten(out), nil
}
