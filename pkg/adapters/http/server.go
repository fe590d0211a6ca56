// Package http exposes sessions of one page graph over a JSON API routed
// with chi. Every mutating call returns the materialized page and pushes a
// snapshot diff to the session event stream.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/aretw0/multipage/internal/logging"
	"github.com/aretw0/multipage/internal/runtime"
	"github.com/aretw0/multipage/pkg/domain"
	"github.com/aretw0/multipage/pkg/monolith"
	"github.com/aretw0/multipage/pkg/session"
)

// maxBodyBytes caps request bodies. Snapshot imports are the largest.
const maxBodyBytes = 8 << 20

// Server handles the session routes.
type Server struct {
	Manager *session.Manager
	Streams *StreamManager

	metrics http.Handler
	app     string
	version string
	logger  *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithMetricsHandler mounts h on GET /metrics (typically promhttp.HandlerFor).
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithInfo sets what GET /info reports.
func WithInfo(app, version string) Option {
	return func(s *Server) {
		s.app = app
		s.version = version
	}
}

// WithLogger configures the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a Server over mgr.
func NewServer(mgr *session.Manager, opts ...Option) *Server {
	s := &Server{
		Manager: mgr,
		app:     "multipage-http",
		version: "dev",
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams = NewStreamManager(s.logger)
	return s
}

// NewHandler creates a new HTTP handler for the session manager.
func NewHandler(mgr *session.Manager, opts ...Option) http.Handler {
	return NewServer(mgr, opts...).Routes()
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	r.Get("/events", s.SubscribeEvents)

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.ListSessions)
		r.Post("/", s.OpenSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.GetView)
			r.Delete("/", s.DeleteSession)
			r.Get("/snapshot", s.GetSnapshot)
			r.Put("/snapshot", s.PutSnapshot)
			r.Get("/export", s.Export)
			r.Post("/values", s.SetValue)
			r.Post("/advance", s.Advance)
			r.Post("/back", s.Back)
			r.Post("/jump", s.Jump)
			r.Post("/wait", s.Wait)
		})
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     s.app,
		"version": strings.TrimSpace(s.version),
	})
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Manager.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"sessions": ids})
}

// OpenRequest is the body of POST /sessions. An empty id creates a new session.
type OpenRequest struct {
	SessionID string `json:"session_id,omitempty"`
}

// OpenSession handles POST /sessions: it resumes or starts a session.
func (s *Server) OpenSession(w http.ResponseWriter, r *http.Request) {
	var body OpenRequest
	if err := s.decode(w, r, &body); err != nil && !errors.Is(err, io.EOF) {
		s.badRequest(w, err)
		return
	}
	id, err := s.Manager.Open(r.Context(), body.SessionID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.respondView(w, r, id, http.StatusCreated)
}

// GetView handles GET /sessions/{id}.
func (s *Server) GetView(w http.ResponseWriter, r *http.Request) {
	s.respondView(w, r, chi.URLParam(r, "sessionID"), http.StatusOK)
}

// DeleteSession handles DELETE /sessions/{id}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.Manager.Delete(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetSnapshot handles GET /sessions/{id}/snapshot.
func (s *Server) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Manager.Snapshot(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// PutSnapshot handles PUT /sessions/{id}/snapshot, replacing the session.
func (s *Server) PutSnapshot(w http.ResponseWriter, r *http.Request) {
	var snap domain.Snapshot
	if err := s.decode(w, r, &snap); err != nil {
		s.badRequest(w, err)
		return
	}
	id := chi.URLParam(r, "sessionID")
	if err := s.Manager.Import(r.Context(), id, snap); err != nil {
		s.writeError(w, err)
		return
	}
	s.respondView(w, r, id, http.StatusOK)
}

// Export handles GET /sessions/{id}/export and returns a monolith blob.
func (s *Server) Export(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	var blob []byte
	err := s.Manager.Do(r.Context(), id, func(_ context.Context, c *runtime.Controller) error {
		var err error
		blob, err = monolith.Export(c.Graph(), c.Snapshot(), monolith.WithName(id), monolith.WithGenerator(s.app))
		return err
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+".mpwm"))
	if _, err := w.Write(blob); err != nil {
		s.logger.Error("Export write failed", "session_id", id, "err", err)
	}
}

// ValueRequest is the body of POST /sessions/{id}/values.
type ValueRequest struct {
	ElementID string `json:"element_id"`
	Value     any    `json:"value"`
}

// SetValue handles POST /sessions/{id}/values.
func (s *Server) SetValue(w http.ResponseWriter, r *http.Request) {
	var body ValueRequest
	if err := s.decode(w, r, &body); err != nil {
		s.badRequest(w, err)
		return
	}
	if body.ElementID == "" {
		s.badRequest(w, errors.New("element_id is required"))
		return
	}
	s.mutate(w, r, func(ctx context.Context, c *runtime.Controller) error {
		return c.SetValue(ctx, body.ElementID, body.Value)
	})
}

// Advance handles POST /sessions/{id}/advance.
func (s *Server) Advance(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(ctx context.Context, c *runtime.Controller) error {
		return c.Advance(ctx)
	})
}

// Back handles POST /sessions/{id}/back.
func (s *Server) Back(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(ctx context.Context, c *runtime.Controller) error {
		return c.Back(ctx)
	})
}

// JumpRequest is the body of POST /sessions/{id}/jump. PageID wins over Index.
type JumpRequest struct {
	PageID      string `json:"page_id,omitempty"`
	Index       *int   `json:"index,omitempty"`
	KeepHistory bool   `json:"keep_history,omitempty"`
}

// Jump handles POST /sessions/{id}/jump.
func (s *Server) Jump(w http.ResponseWriter, r *http.Request) {
	var body JumpRequest
	if err := s.decode(w, r, &body); err != nil {
		s.badRequest(w, err)
		return
	}
	if body.PageID == "" && body.Index == nil {
		s.badRequest(w, errors.New("page_id or index is required"))
		return
	}
	s.mutate(w, r, func(ctx context.Context, c *runtime.Controller) error {
		if body.PageID != "" {
			return c.JumpTo(ctx, body.PageID, body.KeepHistory)
		}
		return c.JumpToIndex(ctx, *body.Index, body.KeepHistory)
	})
}

// Wait handles POST /sessions/{id}/wait: it blocks until the tasks of the
// current page settle or the request is cancelled.
func (s *Server) Wait(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(ctx context.Context, c *runtime.Controller) error {
		return c.Wait(ctx)
	})
}

// mutate runs op under the session lock, broadcasts the snapshot diff and
// answers with the resulting view. A refused Advance still broadcasts.
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, op func(context.Context, *runtime.Controller) error) {
	id := chi.URLParam(r, "sessionID")
	var (
		view domain.PageView
		diff *domain.SnapshotDiff
	)
	err := s.Manager.Do(r.Context(), id, func(ctx context.Context, c *runtime.Controller) error {
		before := c.Snapshot()
		opErr := op(ctx, c)
		after := c.Snapshot()
		diff = domain.Diff(&before, &after)
		var viewErr error
		view, viewErr = c.View()
		return errors.Join(opErr, viewErr)
	})
	s.Streams.Broadcast(id, diff)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) respondView(w http.ResponseWriter, r *http.Request, id string, status int) {
	var view domain.PageView
	err := s.Manager.Do(r.Context(), id, func(_ context.Context, c *runtime.Controller) error {
		var err error
		view, err = c.View()
		return err
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Location", "/sessions/"+id)
	s.writeJSON(w, status, view)
}

// SubscribeEvents handles GET /events?session_id=...&watch=values,history,status.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		s.badRequest(w, errors.New("session_id is required"))
		return
	}
	var fields []string
	if watch := r.URL.Query().Get("watch"); watch != "" {
		fields = strings.Split(watch, ",")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe(sessionID, fields...)
	defer cancel()
	s.logger.Info("sse client subscribed", "session_id", sessionID, "watch", fields)

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("sse client disconnected", "session_id", sessionID)
			return
		case diff, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(diff)
			if err != nil {
				s.logger.Error("sse diff encode failed", "session_id", sessionID, "err", err)
				continue
			}
			fmt.Fprintf(w, "event: diff\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
