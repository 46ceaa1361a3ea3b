package pipeline

import (
	"context"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"

	"shaderpipe/internal/diag"
	"shaderpipe/internal/source"
	"shaderpipe/internal/trace"
	"shaderpipe/internal/transform"
)

// RunAll lowers independent requests concurrently with at most jobs
// workers (GOMAXPROCS when jobs <= 0). Every request runs against its own
// copy of the symbol table and type interner, so requests may share them.
// Per-unit failures land in Result.Err; the returned error is only set when
// ctx ends the batch early.
func RunAll(ctx context.Context, reqs []*Request, jobs int) ([]*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(reqs) == 0 {
		return nil, nil
	}
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	for _, req := range reqs {
		if err := req.validate(); err != nil {
			return nil, err
		}
	}
	for _, req := range reqs {
		emit(req.Progress, Event{Unit: req.Name, Stage: StageResolve, Status: StatusQueued})
	}

	span := trace.Begin(trace.FromContext(ctx), trace.ScopeDriver, "lower_all", trace.CurrentSpan(ctx))
	defer span.End("")
	ctx = trace.WithSpan(ctx, span)

	results := make([]*Result, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(reqs)))
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			local := *req
			local.Symbols = req.Symbols.Clone()
			local.Types = req.Types.Clone()
			res, err := run(gctx, &local)
			res.Err = err
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// SplitEntryPoints derives one request per entry point of req. Each derived
// request keeps only its entry point: the single_entry_point pass is added
// in front of an explicit pass list that lacks it, and the default list
// picks it up from the configured entry point name.
func SplitEntryPoints(req *Request) ([]*Request, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	eps := req.Program.EntryPoints()
	if len(eps) == 0 {
		return nil, diag.Errorf(diag.LowMissingEntryPoints, source.Span{}, "unit %q has no entry points", req.Name)
	}
	out := make([]*Request, 0, len(eps))
	for _, ep := range eps {
		name := req.Symbols.Name(ep.Sym)
		split := *req
		split.Name = req.Name + ":" + name
		split.Options.Pass.EntryPoint = name
		if len(req.Options.Passes) > 0 && !slices.Contains(req.Options.Passes, transform.SingleEntryPointName) {
			split.Options.Passes = append([]string{transform.SingleEntryPointName}, req.Options.Passes...)
		}
		out = append(out, &split)
	}
	return out, nil
}
