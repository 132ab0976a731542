package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/manifesto-ai/bridge/internal/logging"
	"github.com/manifesto-ai/bridge/pkg/domain"
	"github.com/manifesto-ai/bridge/pkg/ports"
)

// Bridge is the part of *bridge.Bridge served over HTTP.
type Bridge interface {
	Execute(ctx context.Context, cmd domain.Command) error
	Get(path string) (any, error)
	Snapshot() (domain.Snapshot, error)
	FieldPolicy(path string) (domain.FieldPolicy, error)
	IsActionAvailable(actionID string) (bool, error)
	Capture() (domain.Snapshot, error)
	Sync() error
	Subscribe(listener ports.SnapshotListener) func()
}

// Server exposes a Bridge as a JSON API with a server-sent event stream of changes.
type Server struct {
	Bridge  Bridge
	Streams *StreamManager

	logger      *slog.Logger
	mux         chi.Router
	unsubscribe func()
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets a custom structured logger for the server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithRoutes mounts extra handlers (e.g. metrics) on the router.
func WithRoutes(fn func(r chi.Router)) Option {
	return func(s *Server) {
		fn(s.mux)
	}
}

// New creates a server and starts relaying bridge changes to event subscribers.
// Call Close to stop relaying.
func New(b Bridge, opts ...Option) *Server {
	s := &Server{
		Bridge: b,
		logger: logging.NewNop(),
		mux:    chi.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams = NewStreamManager(s.logger)
	s.routes()
	s.unsubscribe = b.Subscribe(s.relay)
	return s
}

func (s *Server) routes() {
	r := s.mux
	r.Get("/health", s.GetHealth)
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(rawSpec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(swaggerHTML))
	})

	r.Post("/commands", s.PostCommand)
	r.Get("/snapshot", s.GetSnapshot)
	r.Get("/values/*", s.GetValue)
	r.Get("/policies/*", s.GetPolicy)
	r.Get("/actions/{id}/available", s.GetActionAvailable)
	r.Post("/capture", s.PostCapture)
	r.Post("/sync", s.PostSync)
	r.Get("/events", s.SubscribeEvents)
}

// Handler returns the HTTP handler with CORS enabled.
func (s *Server) Handler() http.Handler {
	return enableCORS(s.mux)
}

// Close stops relaying bridge changes and ends every event stream.
func (s *Server) Close() {
	s.unsubscribe()
	s.Streams.Close()
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Result is the response body of POST /commands.
type Result struct {
	OK    bool          `json:"ok"`
	Error *domain.Error `json:"error,omitempty"`
}

// ChangeEvent is the payload of one server-sent event.
type ChangeEvent struct {
	Paths    []string        `json:"paths"`
	Snapshot domain.Snapshot `json:"snapshot"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "err", err)
	}
}

// writeFailure answers a hard-tier failure.
func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrDisposed) {
		http.Error(w, err.Error(), http.StatusGone)
		return
	}
	s.logger.Error("Request failed", "err", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func statusOf(code domain.ErrorCode) int {
	switch code {
	case domain.CodeValidation:
		return http.StatusUnprocessableEntity
	case domain.CodeExecution:
		return http.StatusConflict
	case domain.CodeAdapter:
		return http.StatusBadGateway
	case domain.CodeDisposed:
		return http.StatusGone
	}
	return http.StatusInternalServerError
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// PostCommand handles the POST /commands request.
func (s *Server) PostCommand(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("PostCommand: Invalid request body", "err", err)
		return
	}

	cmd, err := domain.DecodeCommand(payload)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid command: %v", err), http.StatusBadRequest)
		s.logger.Warn("PostCommand: Invalid command", "err", err)
		return
	}

	if err := s.Bridge.Execute(r.Context(), cmd); err != nil {
		var be *domain.Error
		if !errors.As(err, &be) {
			be = domain.NewExecutionError("command failed", err)
		}
		s.logger.Debug("PostCommand: Command failed", "kind", cmd.Kind(), "code", be.Code)
		s.writeJSON(w, statusOf(be.Code), Result{Error: be})
		return
	}
	s.writeJSON(w, http.StatusOK, Result{OK: true})
}

// GetSnapshot handles the GET /snapshot request.
func (s *Server) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Bridge.Snapshot()
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// GetValue handles the GET /values/{path} request.
func (s *Server) GetValue(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "*")
	v, err := s.Bridge.Get(path)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"path": path, "value": v})
}

// GetPolicy handles the GET /policies/{path} request.
func (s *Server) GetPolicy(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "*")
	p, err := s.Bridge.FieldPolicy(path)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

// GetActionAvailable handles the GET /actions/{id}/available request.
func (s *Server) GetActionAvailable(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ok, err := s.Bridge.IsActionAvailable(id)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"action_id": id, "available": ok})
}

// PostCapture handles the POST /capture request.
func (s *Server) PostCapture(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Bridge.Capture()
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// PostSync handles the POST /sync request.
func (s *Server) PostSync(w http.ResponseWriter, r *http.Request) {
	if err := s.Bridge.Sync(); err != nil {
		s.writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) relay(snapshot domain.Snapshot, changed []string) {
	msg, err := json.Marshal(ChangeEvent{Paths: changed, Snapshot: snapshot})
	if err != nil {
		s.logger.Error("Failed to encode change event", "err", err)
		return
	}
	s.Streams.Broadcast(Message{Paths: changed, Payload: string(msg)})
}

// SubscribeEvents handles the GET /events request (SSE).
// The optional watch parameter keeps only events touching one of the listed path prefixes.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	var watch []string
	if raw := r.URL.Query().Get("watch"); raw != "" {
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				watch = append(watch, p)
			}
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe()
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if !msg.Touches(watch) {
				continue
			}
			fmt.Fprintf(w, "event: change\ndata: %s\n\n", msg.Payload)
			flusher.Flush()
		}
	}
}
