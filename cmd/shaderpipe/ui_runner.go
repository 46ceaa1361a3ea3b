package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"shaderpipe/internal/pipeline"
	"shaderpipe/internal/ui"
)

type lowerOutcome struct {
	results []*pipeline.Result
	err     error
}

// runAllWithUI lowers reqs while a progress view reads their events.
func runAllWithUI(ctx context.Context, title string, reqs []*pipeline.Request, passCount, jobs int) ([]*pipeline.Result, error) {
	events := make(chan pipeline.Event, 256)
	outcomeCh := make(chan lowerOutcome, 1)

	units := make([]string, len(reqs))
	withSink := make([]*pipeline.Request, len(reqs))
	for i, req := range reqs {
		units[i] = req.Name
		reqCopy := *req
		reqCopy.Progress = pipeline.ChannelSink{Ch: events}
		withSink[i] = &reqCopy
	}

	go func() {
		res, err := pipeline.RunAll(ctx, withSink, jobs)
		outcomeCh <- lowerOutcome{results: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, units, passCount, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.results, uiErr
	}
	return outcome.results, outcome.err
}
