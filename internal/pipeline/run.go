package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shaderpipe/internal/ast"
	"shaderpipe/internal/diag"
	"shaderpipe/internal/rewrite"
	"shaderpipe/internal/sema"
	"shaderpipe/internal/symbols"
	"shaderpipe/internal/trace"
	"shaderpipe/internal/transform"
	"shaderpipe/internal/types"
)

// Options configures one lowering run.
type Options struct {
	// Passes lists pass names in run order; empty selects the default list.
	Passes         []string
	Pass           transform.PassConfig
	Rewrite        rewrite.Options
	MaxDiagnostics int
}

// Request is one compilation unit to lower. The symbol table and type
// interner are extended in place by the passes.
type Request struct {
	Name     string
	Program  *ast.Program
	Symbols  *symbols.Table
	Types    *types.Interner
	Options  Options
	Progress ProgressSink
}

// Result captures the lowered program, the pass report and the
// informational diagnostics the passes emitted.
type Result struct {
	Name    string
	Program *sema.Program
	Report  *transform.Report
	Notes   []diag.Diagnostic
	Timings Timings
	// Err is only set by RunAll; Run returns its error directly.
	Err error
}

var errMissingRequest = errors.New("missing lowering request")

func (r *Request) validate() error {
	if r == nil {
		return errMissingRequest
	}
	if r.Program == nil || r.Symbols == nil || r.Types == nil {
		return fmt.Errorf("unit %q: missing program, symbol table or type interner", r.Name)
	}
	return nil
}

// Run resolves the request's program and runs the configured passes over it.
// The result is returned even on failure so callers can show the partial
// pass report.
func Run(ctx context.Context, req *Request) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	emit(req.Progress, Event{Unit: req.Name, Stage: StageResolve, Status: StatusQueued})
	return run(ctx, req)
}

func run(ctx context.Context, req *Request) (*Result, error) {
	res := &Result{Name: req.Name}
	span := trace.Begin(trace.FromContext(ctx), trace.ScopeUnit, "lower", trace.CurrentSpan(ctx)).
		WithExtra("unit", req.Name)
	defer span.End("")
	ctx = trace.WithSpan(ctx, span)

	fail := func(stage Stage, err error) (*Result, error) {
		emit(req.Progress, Event{Unit: req.Name, Stage: stage, Status: StatusError, Err: err})
		return res, err
	}

	passes, err := transform.Build(req.Options.Passes, req.Options.Pass)
	if err != nil {
		return fail(StageResolve, err)
	}

	emit(req.Progress, Event{Unit: req.Name, Stage: StageResolve, Status: StatusWorking})
	start := time.Now()
	prog, err := sema.Resolve(req.Program, req.Symbols, req.Types, sema.Options{MaxDiagnostics: req.Options.MaxDiagnostics})
	res.Timings.Set(StageResolve, time.Since(start))
	if err != nil {
		return fail(StageResolve, fmt.Errorf("resolve %s: %w", req.Name, err))
	}
	emit(req.Progress, Event{Unit: req.Name, Stage: StageResolve, Status: StatusDone, Elapsed: res.Timings.Duration(StageResolve)})

	notes := diag.NewBag(req.Options.MaxDiagnostics)
	env := transform.Env{Options: req.Options.Rewrite, Reporter: diag.BagReporter{Bag: notes}}
	mgr := transform.NewManager(passes...).Observe(passObserver{sink: req.Progress, unit: req.Name})

	start = time.Now()
	out, report, err := mgr.Run(ctx, prog, env)
	res.Timings.Set(StageLower, time.Since(start))
	res.Report = report
	notes.Sort()
	res.Notes = notes.Items()
	if err != nil {
		return fail(StageLower, fmt.Errorf("lower %s: %w", req.Name, err))
	}
	res.Program = out
	emit(req.Progress, Event{Unit: req.Name, Stage: StageLower, Status: StatusDone, Elapsed: res.Timings.Duration(StageLower)})
	return res, nil
}
