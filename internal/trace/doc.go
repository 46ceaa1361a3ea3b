// Package trace records what the pipeline driver and the passes are doing.
//
// Enable tracing from the command line:
//
//	shaderpipe lower --trace=- --trace-level=phase unit.mpk
//
// # Levels
//
//   - LevelOff: no tracing
//   - LevelPhase: driver runs and pass boundaries
//   - LevelDetail: per-unit events in batch runs
//   - LevelDebug: individual rewrites inside passes
//
// # Context propagation
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopePass, "fold_trivial_lets", trace.CurrentSpan(ctx))
//	defer span.End("")
package trace
