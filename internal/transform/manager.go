package transform

import (
	"context"
	"fmt"
	"time"

	"shaderpipe/internal/diag"
	"shaderpipe/internal/observ"
	"shaderpipe/internal/sema"
	"shaderpipe/internal/source"
	"shaderpipe/internal/trace"
)

// Status is what happened to one pass during a run.
type Status string

const (
	StatusSkipped   Status = "skipped"
	StatusUnchanged Status = "unchanged"
	StatusRewritten Status = "rewritten"
	StatusFailed    Status = "failed"
)

// PassResult records one pass of a run.
type PassResult struct {
	Name     string
	Status   Status
	Duration time.Duration
}

// Report summarizes a manager run.
type Report struct {
	Passes  []PassResult
	Timings observ.Report
}

// Rewritten lists the passes that produced a new program.
func (r *Report) Rewritten() []string {
	var out []string
	for _, p := range r.Passes {
		if p.Status == StatusRewritten {
			out = append(out, p.Name)
		}
	}
	return out
}

// Observer is told when each pass starts and how it ended.
type Observer interface {
	PassStarted(name string)
	PassFinished(res PassResult)
}

// Manager runs a fixed list of passes once each, in registration order.
type Manager struct {
	passes   []Pass
	observer Observer
}

func NewManager(passes ...Pass) *Manager {
	return &Manager{passes: passes}
}

func (m *Manager) Passes() []Pass { return m.passes }

// Observe installs o; nil removes the current observer.
func (m *Manager) Observe(o Observer) *Manager {
	m.observer = o
	return m
}

// Run threads prog through every pass. A pass whose ShouldRun is false is
// skipped. The first failing pass aborts the run; the report is returned
// even then, the program is not.
func (m *Manager) Run(ctx context.Context, prog *sema.Program, env Env) (*sema.Program, *Report, error) {
	tracer := trace.FromContext(ctx)
	timer := observ.NewTimer()
	report := &Report{Passes: make([]PassResult, 0, len(m.passes))}
	defer func() { report.Timings = timer.Report() }()

	cur := prog
	for _, pass := range m.passes {
		if err := ctx.Err(); err != nil {
			return nil, report, err
		}
		name := pass.Name()
		idx := timer.Begin(name)
		span := trace.Begin(tracer, trace.ScopePass, name, trace.CurrentSpan(ctx))
		start := time.Now()
		if m.observer != nil {
			m.observer.PassStarted(name)
		}

		status := StatusSkipped
		var err error
		if pass.ShouldRun(cur) {
			var out Outcome
			out, err = runPass(trace.WithSpan(ctx, span), pass, cur, env)
			switch {
			case err != nil:
				status = StatusFailed
			case out.Rewritten:
				status = StatusRewritten
				cur = out.Program
			default:
				status = StatusUnchanged
			}
		}

		span.End(string(status))
		timer.End(idx, string(status))
		res := PassResult{Name: name, Status: status, Duration: time.Since(start)}
		report.Passes = append(report.Passes, res)
		if m.observer != nil {
			m.observer.PassFinished(res)
		}
		if err != nil {
			return nil, report, fmt.Errorf("pass %s: %w", name, err)
		}
	}
	return cur, report, nil
}

func runPass(ctx context.Context, pass Pass, p *sema.Program, env Env) (out Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = diag.Errorf(diag.InternalPassPanic, source.Span{}, "pass %s panicked: %v", pass.Name(), r)
		}
	}()
	out, err = pass.Apply(ctx, p, env)
	if err == nil && out.Rewritten && out.Program == nil {
		err = diag.Errorf(diag.InternalError, source.Span{}, "pass %s reported a rewrite without a program", pass.Name())
	}
	return out, err
}
