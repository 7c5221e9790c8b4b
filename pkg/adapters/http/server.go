// Package http exposes viewer sessions to browser rendering surfaces.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/aretw0/trajview"
	"github.com/aretw0/trajview/internal/logging"
	"github.com/aretw0/trajview/pkg/domain"
	"github.com/aretw0/trajview/pkg/viewer"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Engine is the part of trajview.Engine the server depends on.
type Engine interface {
	Session(id string, opts ...viewer.Option) *viewer.Session
	LookupSession(id string) (*viewer.Session, bool)
	CloseSession(id string) error
	Sessions() []string
}

// Server implements ServerInterface on top of an Engine.
type Server struct {
	Engine Engine

	logger     *slog.Logger
	corsOrigin string
	gatherer   prometheus.Gatherer
}

// Ensure Server implements ServerInterface
var _ ServerInterface = (*Server)(nil)

// Option configures the handler.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCORSOrigin sets Access-Control-Allow-Origin. Empty disables CORS headers.
func WithCORSOrigin(origin string) Option {
	return func(s *Server) {
		s.corsOrigin = origin
	}
}

// WithMetrics serves the collectors of g on /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	server := &Server{
		Engine:     engine,
		logger:     logging.NewNop(),
		corsOrigin: "*",
	}
	for _, opt := range opts {
		opt(server)
	}

	r := chi.NewRouter()
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		doc, err := rawSpec()
		if err != nil {
			http.Error(w, "Failed to load API document", http.StatusInternalServerError)
			server.logger.Error("Failed to load OpenAPI document", "err", err)
			return
		}
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(doc)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(swaggerHTML))
	})
	if server.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(server.gatherer, promhttp.HandlerOpts{}))
	}

	handler := HandlerFromMux(server, r)
	if server.corsOrigin == "" {
		return handler
	}
	return enableCORS(server.corsOrigin, handler)
}

func enableCORS(origin string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>trajview API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if swagger, err := GetSwagger(); err == nil && swagger.Info != nil {
		apiVersion = swagger.Info.Version
	}
	writeJSON(w, s.logger, map[string]string{
		"app":         "trajview-http",
		"version":     strings.TrimSpace(trajview.Version),
		"api_version": apiVersion,
	})
}

// ListSessions handles the GET /sessions request.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, map[string][]string{"sessions": s.Engine.Sessions()})
}

// GetSession handles the GET /sessions/{session} request.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request, session string) {
	sess, ok := s.lookup(w, session)
	if !ok {
		return
	}
	writeJSON(w, s.logger, sess.Snapshot())
}

// CloseSession handles the DELETE /sessions/{session} request.
func (s *Server) CloseSession(w http.ResponseWriter, r *http.Request, session string) {
	if err := s.Engine.CloseSession(session); err != nil {
		s.fail(w, session, "CloseSession", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetSubject handles the PUT /sessions/{session}/subject request.
func (s *Server) SetSubject(w http.ResponseWriter, r *http.Request, session string) {
	var body struct {
		Subject *string `json:"subject"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Subject == nil {
		http.Error(w, "Invalid request body: subject is required", http.StatusBadRequest)
		s.logger.Warn("SetSubject: Invalid request body", "session_id", session, "err", err)
		return
	}

	sess := s.Engine.Session(session)
	if err := sess.SetSubject(r.Context(), domain.Subject(*body.Subject)); err != nil {
		s.fail(w, session, "SetSubject", err)
		return
	}
	writeJSON(w, s.logger, sess.Snapshot())
}

// RequestTrajectory handles the PUT /sessions/{session}/trajectory request.
func (s *Server) RequestTrajectory(w http.ResponseWriter, r *http.Request, session string) {
	sess, ok := s.lookup(w, session)
	if !ok {
		return
	}
	var req domain.TrajectoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("RequestTrajectory: Invalid request body", "session_id", session, "err", err)
		return
	}
	if err := sess.RequestTrajectory(r.Context(), req); err != nil {
		s.fail(w, session, "RequestTrajectory", err)
		return
	}
	writeJSON(w, s.logger, sess.Snapshot())
}

// ClearTrajectory handles the DELETE /sessions/{session}/trajectory request.
func (s *Server) ClearTrajectory(w http.ResponseWriter, r *http.Request, session string) {
	sess, ok := s.lookup(w, session)
	if !ok {
		return
	}
	if err := sess.ClearTrajectory(r.Context()); err != nil {
		s.fail(w, session, "ClearTrajectory", err)
		return
	}
	writeJSON(w, s.logger, sess.Snapshot())
}

// Retry handles the POST /sessions/{session}/retry request.
func (s *Server) Retry(w http.ResponseWriter, r *http.Request, session string, params RetryParams) {
	sess, ok := s.lookup(w, session)
	if !ok {
		return
	}
	target := "trajectory"
	if params.Target != nil {
		target = *params.Target
	}

	var err error
	switch target {
	case "trajectory":
		err = sess.RetryTrajectory()
	case "structure":
		err = sess.RetryStructure()
	default:
		http.Error(w, fmt.Sprintf("Invalid retry target %q", target), http.StatusBadRequest)
		return
	}
	if err != nil {
		s.fail(w, session, "Retry", err)
		return
	}
	writeJSON(w, s.logger, sess.Snapshot())
}

// ReportSurface handles the POST /sessions/{session}/surface request.
func (s *Server) ReportSurface(w http.ResponseWriter, r *http.Request, session string) {
	sess, ok := s.lookup(w, session)
	if !ok {
		return
	}
	var ev domain.StatusEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil || !ev.Status.Valid() {
		http.Error(w, "Invalid request body: status must be idle, loading or error", http.StatusBadRequest)
		s.logger.Warn("ReportSurface: Invalid request body", "session_id", session, "err", err)
		return
	}
	if err := sess.ReportSurface(ev); err != nil {
		s.fail(w, session, "ReportSurface", err)
		return
	}
	writeJSON(w, s.logger, sess.Snapshot())
}

// GetCoordinates handles the GET /sessions/{session}/coordinates request.
func (s *Server) GetCoordinates(w http.ResponseWriter, r *http.Request, session string) {
	sess, ok := s.lookup(w, session)
	if !ok {
		return
	}
	src := sess.Snapshot().Source
	if src.Kind != domain.SourceTrajectory || src.Coordinates == nil {
		http.Error(w, "No trajectory loaded", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(src.Coordinates.Data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", src.Coordinates.Label))
	_, _ = w.Write(src.Coordinates.Data)
}

// GetModel handles the GET /sessions/{session}/model request.
func (s *Server) GetModel(w http.ResponseWriter, r *http.Request, session string) {
	sess, ok := s.lookup(w, session)
	if !ok {
		return
	}
	src := sess.Snapshot().Source
	part := src.Structure
	if src.Kind == domain.SourceTrajectory {
		part = src.Model
	}
	if part == nil {
		http.Error(w, "No structure loaded", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", part.Label))
	_, _ = w.Write([]byte(part.Data))
}

// -- Helpers --

func (s *Server) lookup(w http.ResponseWriter, session string) (*viewer.Session, bool) {
	sess, ok := s.Engine.LookupSession(session)
	if !ok {
		http.Error(w, fmt.Sprintf("Session %q not found", session), http.StatusNotFound)
	}
	return sess, ok
}

func (s *Server) fail(w http.ResponseWriter, session, op string, err error) {
	code := statusCode(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", "session_id", session, "err", err)
	} else {
		s.logger.Debug(op+" rejected", "session_id", session, "err", err)
	}
	http.Error(w, fmt.Sprintf("%s error: %v", op, err), code)
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, trajview.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, viewer.ErrClosed):
		return http.StatusGone
	case errors.Is(err, domain.ErrMissingSubject), errors.Is(err, domain.ErrRequestNotFound):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Response encode failed", "err", err)
	}
}
