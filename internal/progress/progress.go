// Package progress delivers pipeline lifecycle events to observers.
// Publishing is best-effort telemetry: a sink may drop an event but must
// never block the pipeline or surface an error into it.
package progress

import (
	"log/slog"
	"sync"

	"github.com/johnliu0/codematic-executor/api"
)

// Sink receives one event per pipeline phase transition, in the order the
// transitions occur.
type Sink interface {
	Publish(ev api.StatusEvent)
}

// SlogSink writes events to a structured logger.
type SlogSink struct {
	log *slog.Logger
}

func NewSlogSink(log *slog.Logger) *SlogSink {
	if log == nil {
		log = slog.Default()
	}
	return &SlogSink{log: log}
}

func (s *SlogSink) Publish(ev api.StatusEvent) {
	s.log.Info(ev.Message, "subm_uuid", ev.SubmUuid, "type", ev.Type, "data", ev.Data)
}

// MultiSink fans one event out to several sinks.
type MultiSink []Sink

func (m MultiSink) Publish(ev api.StatusEvent) {
	for _, s := range m {
		s.Publish(ev)
	}
}

// CaptureSink records events in memory, in publish order.
type CaptureSink struct {
	mu     sync.Mutex
	events []api.StatusEvent
}

func NewCaptureSink() *CaptureSink {
	return &CaptureSink{}
}

func (c *CaptureSink) Publish(ev api.StatusEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

// Events returns a snapshot of everything published so far.
func (c *CaptureSink) Events() []api.StatusEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]api.StatusEvent, len(c.events))
	copy(out, c.events)
	return out
}
