// Package natsgath streams status events to a NATS subject.
package natsgath

import (
	"encoding/json"
	"log/slog"

	"github.com/johnliu0/codematic-executor/api"
	"github.com/nats-io/nats.go"
)

type natsSink struct {
	nc      *nats.Conn
	subject string
}

// New creates a sink that publishes every status event to the given
// subject.
func New(nc *nats.Conn, subject string) *natsSink {
	return &natsSink{
		nc:      nc,
		subject: subject,
	}
}

func (s *natsSink) Publish(ev api.StatusEvent) {
	b, err := json.Marshal(ev)
	if err != nil {
		slog.Warn("failed to marshal status event", "error", err)
		return
	}

	if err := s.nc.Publish(s.subject, b); err != nil {
		slog.Warn("failed to publish status event to NATS", "error", err)
	}
}
