package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/nspady/google-calendar-mcp-sub000/internal/instrumentation"
)

// MCPEndpointPath is where the streamable HTTP transport is mounted.
const MCPEndpointPath = "/mcp"

// HTTPServer serves the MCP streamable HTTP transport and health probes.
type HTTPServer struct {
	mcpServer  *mcpserver.MCPServer
	health     *HealthChecker
	metrics    *instrumentation.Metrics
	logger     *slog.Logger
	stateless  bool
	httpServer *http.Server
}

// HTTPServerOption configures an HTTPServer.
type HTTPServerOption func(*HTTPServer)

// WithHealthChecker mounts h's probes next to the MCP endpoint.
func WithHealthChecker(h *HealthChecker) HTTPServerOption {
	return func(s *HTTPServer) { s.health = h }
}

// WithHTTPMetrics records one metric per served request.
func WithHTTPMetrics(m *instrumentation.Metrics) HTTPServerOption {
	return func(s *HTTPServer) { s.metrics = m }
}

// WithHTTPLogger sets the request logger.
func WithHTTPLogger(l *slog.Logger) HTTPServerOption {
	return func(s *HTTPServer) { s.logger = l }
}

// WithStateless disables MCP session tracking.
func WithStateless(stateless bool) HTTPServerOption {
	return func(s *HTTPServer) { s.stateless = stateless }
}

// NewHTTPServer creates an HTTP server around mcpSrv.
func NewHTTPServer(mcpSrv *mcpserver.MCPServer, opts ...HTTPServerOption) *HTTPServer {
	s := &HTTPServer{mcpServer: mcpSrv}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Handler builds the router.
func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.metricsMiddleware)

	if s.health != nil {
		s.health.RegisterHealthEndpoints(r)
	}

	streamable := mcpserver.NewStreamableHTTPServer(s.mcpServer,
		mcpserver.WithEndpointPath(MCPEndpointPath),
		mcpserver.WithStateLess(s.stateless),
	)
	r.Handle(MCPEndpointPath, streamable)

	return r
}

func (s *HTTPServer) metricsMiddleware(next http.Handler) http.Handler {
	if s.metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.RecordHTTPRequest(r.Context(), r.Method, path, status, time.Since(start))
	})
}

// Start listens on addr until Shutdown is called.
func (s *HTTPServer) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.logger.Info("starting MCP HTTP server", "addr", addr, "endpoint", MCPEndpointPath)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
