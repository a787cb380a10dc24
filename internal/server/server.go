// Package server exposes the HTTP boundary: a submit endpoint that queues
// pipeline runs and a websocket endpoint for observing their progress.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/johnliu0/codematic-executor/api"
	"github.com/johnliu0/codematic-executor/internal/langconf"
	"github.com/johnliu0/codematic-executor/internal/pipeline"
	"github.com/johnliu0/codematic-executor/internal/progress/wshub"
	"github.com/johnliu0/codematic-executor/internal/submission"
)

// Runner executes one submission end to end. The production implementation
// is *pipeline.Pipeline.
type Runner interface {
	Run(ctx context.Context, subm *submission.Submission) (*pipeline.Result, error)
}

type Server struct {
	runner   Runner
	langs    *langconf.Registry
	hub      *wshub.Hub
	upgrader websocket.Upgrader
	log      *slog.Logger
}

func New(runner Runner, langs *langconf.Registry, hub *wshub.Hub, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		runner: runner,
		langs:  langs,
		hub:    hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /executor/run", s.handleRun)
	mux.HandleFunc("GET /executor/ws", s.handleWs)
	return mux
}

type errorBody struct {
	Message string `json:"message"`
}

type queuedBody struct {
	SubmUuid string `json:"subm_uuid"`
	Status   string `json:"status"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req api.ExecReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: "malformed JSON body"})
		return
	}

	if req.Language == "" {
		req.Language = "cpp17"
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: err.Error()})
		return
	}
	if !s.langs.IsSupported(req.Language) {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Message: "unsupported language: " + req.Language +
				" (supported: " + strings.Join(s.langs.Supported(), ", ") + ")",
		})
		return
	}

	req.DecodeEscapes()
	subm := submission.FromRequest(&req)
	uuid := subm.ID.String()

	// The run outlives the request; observers follow it over the websocket.
	go func() {
		if _, err := s.runner.Run(context.Background(), subm); err != nil {
			s.log.Error("queued submission failed", "subm_uuid", uuid, "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, queuedBody{SubmUuid: uuid, Status: "queued"})
}

func (s *Server) handleWs(w http.ResponseWriter, r *http.Request) {
	submUuid := r.URL.Query().Get("subm_uuid")
	if submUuid == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: "missing subm_uuid query parameter"})
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	s.hub.Register(submUuid, ws)
	defer func() {
		s.hub.Unregister(submUuid)
		_ = ws.Close()
	}()

	// Observers only read; the loop exists to notice the close.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("failed to encode response body", "error", err)
	}
}
