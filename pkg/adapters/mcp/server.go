// Package mcp exposes viewer sessions as MCP tools so agents can drive a viewer.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/trajview"
	"github.com/aretw0/trajview/internal/logging"
	"github.com/aretw0/trajview/pkg/domain"
	"github.com/aretw0/trajview/pkg/viewer"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// SessionsURI is the resource listing every open session.
const SessionsURI = "trajview://sessions"

// DefaultWait bounds get_viewer calls that wait for loading to settle.
const DefaultWait = 10 * time.Second

// Engine defines the interface required by the MCP server.
type Engine interface {
	Session(id string, opts ...viewer.Option) *viewer.Session
	LookupSession(id string) (*viewer.Session, bool)
	Sessions() []string
}

// Server wraps the Engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	logger    *slog.Logger
	wait      time.Duration
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithWait bounds how long get_viewer waits for loading to settle.
func WithWait(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.wait = d
		}
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		logger:    logging.NewNop(),
		wait:      DefaultWait,
		mcpServer: server.NewMCPServer("trajview-mcp", strings.TrimSpace(trajview.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the protocol over SSE on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type sessionArgs struct {
	Session string `json:"session"`
}

type subjectArgs struct {
	Session string `json:"session"`
	Subject string `json:"subject"`
}

type trajectoryArgs struct {
	Session    string `json:"session"`
	FrameRange string `json:"frame_range"`
	Selection  string `json:"selection"`
}

type surfaceArgs struct {
	Session string `json:"session"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type retryArgs struct {
	Session string `json:"session"`
	Target  string `json:"target"`
}

type viewerArgs struct {
	Session string `json:"session"`
	Wait    bool   `json:"wait"`
}

func (s *Server) registerTools() {
	session := mcp.WithString("session", mcp.Required(), mcp.Description("Viewer session id"))

	// TOOL: set_subject
	s.mcpServer.AddTool(mcp.NewTool("set_subject",
		mcp.WithDescription("Select the subject shown by a viewer session. Restores the trajectory request last made for that subject."),
		session,
		mcp.WithString("subject", mcp.Required(), mcp.Description("Subject identifier, e.g. an entry accession")),
		mcp.WithOutputSchema[viewer.Snapshot](),
	), mcp.NewStructuredToolHandler(s.handleSetSubject))

	// TOOL: request_trajectory
	s.mcpServer.AddTool(mcp.NewTool("request_trajectory",
		mcp.WithDescription("Load a trajectory segment for the active subject of a session."),
		session,
		mcp.WithString("frame_range", mcp.Description("Frame range such as 0-100 (optional)")),
		mcp.WithString("selection", mcp.Description("Atom selection such as protein (optional)")),
		mcp.WithOutputSchema[viewer.Snapshot](),
	), mcp.NewStructuredToolHandler(s.handleRequestTrajectory))

	// TOOL: clear_trajectory
	s.mcpServer.AddTool(mcp.NewTool("clear_trajectory",
		mcp.WithDescription("Forget the trajectory request of the active subject and show the structure only."),
		session,
		mcp.WithOutputSchema[viewer.Snapshot](),
	), mcp.NewStructuredToolHandler(s.handleClearTrajectory))

	// TOOL: retry
	s.mcpServer.AddTool(mcp.NewTool("retry",
		mcp.WithDescription("Fetch the structure or trajectory of a session again."),
		session,
		mcp.WithString("target", mcp.Enum("trajectory", "structure"), mcp.Description("What to refetch (default trajectory)")),
		mcp.WithOutputSchema[viewer.Snapshot](),
	), mcp.NewStructuredToolHandler(s.handleRetry))

	// TOOL: report_surface
	s.mcpServer.AddTool(mcp.NewTool("report_surface",
		mcp.WithDescription("Report the rendering surface status of a session."),
		session,
		mcp.WithString("status", mcp.Required(), mcp.Enum("idle", "loading", "error"), mcp.Description("Surface status")),
		mcp.WithString("message", mcp.Description("Failure message when status is error")),
		mcp.WithOutputSchema[viewer.Snapshot](),
	), mcp.NewStructuredToolHandler(s.handleReportSurface))

	// TOOL: get_viewer
	s.mcpServer.AddTool(mcp.NewTool("get_viewer",
		mcp.WithDescription("Get the current view of a session: subject, request, composed source and status."),
		session,
		mcp.WithBoolean("wait", mcp.Description("Wait until nothing is loading (bounded)")),
		mcp.WithOutputSchema[viewer.Snapshot](),
	), mcp.NewStructuredToolHandler(s.handleGetViewer))
}

func (s *Server) handleSetSubject(ctx context.Context, request mcp.CallToolRequest, args subjectArgs) (viewer.Snapshot, error) {
	if args.Session == "" {
		return viewer.Snapshot{}, errors.New("session is required")
	}
	sess := s.engine.Session(args.Session)
	if err := sess.SetSubject(ctx, domain.Subject(args.Subject)); err != nil {
		return viewer.Snapshot{}, fmt.Errorf("set subject failed: %w", err)
	}
	return sess.Snapshot(), nil
}

func (s *Server) handleRequestTrajectory(ctx context.Context, request mcp.CallToolRequest, args trajectoryArgs) (viewer.Snapshot, error) {
	sess, err := s.lookup(args.Session)
	if err != nil {
		return viewer.Snapshot{}, err
	}
	req := domain.TrajectoryRequest{FrameRange: args.FrameRange, Selection: args.Selection}
	if err := sess.RequestTrajectory(ctx, req); err != nil {
		return viewer.Snapshot{}, fmt.Errorf("request trajectory failed: %w", err)
	}
	return sess.Snapshot(), nil
}

func (s *Server) handleClearTrajectory(ctx context.Context, request mcp.CallToolRequest, args sessionArgs) (viewer.Snapshot, error) {
	sess, err := s.lookup(args.Session)
	if err != nil {
		return viewer.Snapshot{}, err
	}
	if err := sess.ClearTrajectory(ctx); err != nil {
		return viewer.Snapshot{}, fmt.Errorf("clear trajectory failed: %w", err)
	}
	return sess.Snapshot(), nil
}

func (s *Server) handleRetry(ctx context.Context, request mcp.CallToolRequest, args retryArgs) (viewer.Snapshot, error) {
	sess, err := s.lookup(args.Session)
	if err != nil {
		return viewer.Snapshot{}, err
	}
	switch args.Target {
	case "", "trajectory":
		err = sess.RetryTrajectory()
	case "structure":
		err = sess.RetryStructure()
	default:
		return viewer.Snapshot{}, fmt.Errorf("unknown retry target %q", args.Target)
	}
	if err != nil {
		return viewer.Snapshot{}, fmt.Errorf("retry failed: %w", err)
	}
	return sess.Snapshot(), nil
}

func (s *Server) handleReportSurface(ctx context.Context, request mcp.CallToolRequest, args surfaceArgs) (viewer.Snapshot, error) {
	sess, err := s.lookup(args.Session)
	if err != nil {
		return viewer.Snapshot{}, err
	}
	ev := domain.StatusEvent{Status: domain.Status(args.Status), Message: args.Message}
	if err := sess.ReportSurface(ev); err != nil {
		s.logger.Warn("MCP ReportSurface: Rejected", "session_id", args.Session, "err", err)
		return viewer.Snapshot{}, fmt.Errorf("report surface failed: %w", err)
	}
	return sess.Snapshot(), nil
}

func (s *Server) handleGetViewer(ctx context.Context, request mcp.CallToolRequest, args viewerArgs) (viewer.Snapshot, error) {
	sess, err := s.lookup(args.Session)
	if err != nil {
		return viewer.Snapshot{}, err
	}
	if !args.Wait {
		return sess.Snapshot(), nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.wait)
	defer cancel()
	last := sess.Snapshot()
	for snap := range sess.Watch(ctx) {
		last = snap
		if !snap.StructureLoading && snap.Status.Status != domain.StatusLoading {
			break
		}
	}
	return last, nil
}

func (s *Server) lookup(id string) (*viewer.Session, error) {
	if id == "" {
		return nil, errors.New("session is required")
	}
	sess, ok := s.engine.LookupSession(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", trajview.ErrSessionNotFound, id)
	}
	return sess, nil
}

func (s *Server) registerResources() {
	// EXPOSE: trajview://sessions
	s.mcpServer.AddResource(mcp.NewResource(SessionsURI, "Open viewer sessions",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		snapshots := make([]viewer.Snapshot, 0)
		for _, id := range s.engine.Sessions() {
			if sess, ok := s.engine.LookupSession(id); ok {
				snapshots = append(snapshots, sess.Snapshot())
			}
		}
		jsonBytes, err := json.Marshal(snapshots)
		if err != nil {
			return nil, fmt.Errorf("failed to encode sessions: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      SessionsURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
