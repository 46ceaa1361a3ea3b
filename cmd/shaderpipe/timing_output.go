package main

import (
	"fmt"
	"io"
	"time"

	"shaderpipe/internal/pipeline"
	"shaderpipe/internal/transform"
)

func printStageTimings(out io.Writer, name string, timings pipeline.Timings, report *transform.Report) {
	if out == nil {
		return
	}
	if timings.Has(pipeline.StageResolve) {
		fmt.Fprintf(out, "%s: resolved %.1f ms\n", name, toMillis(timings.Duration(pipeline.StageResolve)))
	}
	if timings.Has(pipeline.StageLower) {
		fmt.Fprintf(out, "%s: lowered %.1f ms\n", name, toMillis(timings.Duration(pipeline.StageLower)))
	}
	if report != nil && len(report.Timings.Phases) > 0 {
		fmt.Fprint(out, report.Timings.Summary(name+" passes"))
	}
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
