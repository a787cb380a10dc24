// Package wshub forwards status events to connected websocket observers.
package wshub

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/johnliu0/codematic-executor/api"
	"github.com/puzpuzpuz/xsync/v3"
)

const writeTimeout = 5 * time.Second

// Hub routes each submission's events to the observer connected for that
// submission uuid. Events for submissions nobody watches are dropped;
// publishing is telemetry, not a correctness dependency.
type Hub struct {
	conns *xsync.MapOf[string, *conn]
}

type conn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func New() *Hub {
	return &Hub{
		conns: xsync.NewMapOf[string, *conn](),
	}
}

// Register attaches an observer connection for a submission uuid,
// replacing any previous one.
func (h *Hub) Register(submUuid string, ws *websocket.Conn) {
	h.conns.Store(submUuid, &conn{ws: ws})
}

// Unregister detaches the observer for a submission uuid.
func (h *Hub) Unregister(submUuid string) {
	h.conns.Delete(submUuid)
}

func (h *Hub) Publish(ev api.StatusEvent) {
	c, ok := h.conns.Load(ev.SubmUuid)
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.ws.WriteJSON(ev); err != nil {
		slog.Warn("failed to write status event to websocket", "subm_uuid", ev.SubmUuid, "error", err)
	}
}
