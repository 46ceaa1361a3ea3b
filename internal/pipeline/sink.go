package pipeline

import (
	"sync"

	"shaderpipe/internal/transform"
)

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

// RecordingSink keeps every event it receives. Safe for concurrent use.
type RecordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *RecordingSink) OnEvent(evt Event) {
	s.mu.Lock()
	s.events = append(s.events, evt)
	s.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (s *RecordingSink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func emit(sink ProgressSink, evt Event) {
	if sink == nil {
		return
	}
	sink.OnEvent(evt)
}

// passObserver turns manager callbacks into lowering events for one unit.
type passObserver struct {
	sink ProgressSink
	unit string
}

func (o passObserver) PassStarted(name string) {
	emit(o.sink, Event{Unit: o.unit, Stage: StageLower, Pass: name, Status: StatusWorking})
}

func (o passObserver) PassFinished(res transform.PassResult) {
	status := StatusDone
	if res.Status == transform.StatusFailed {
		status = StatusError
	}
	emit(o.sink, Event{Unit: o.unit, Stage: StageLower, Pass: res.Name, Status: status, Elapsed: res.Duration})
}
