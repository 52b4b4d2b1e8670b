package api

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/floatrig/floatrig/internal/inspectlog"
	"github.com/floatrig/floatrig/internal/metrics"
)

const apiMaxBodyBytes = 1 << 20

// Server wraps the HTTP server and mux for the floatrig API.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
}

// NewServer creates a new API server wired with all routes.
// An empty adminToken disables authentication on /api/ routes.
// logs may be nil when inspect logging is disabled.
func NewServer(
	listenAddress string,
	port int,
	adminToken string,
	d Dispatcher,
	col *metrics.Collector,
	logs *inspectlog.Service,
	startedAt time.Time,
) *Server {
	mux := http.NewServeMux()

	// Public (no auth)
	mux.Handle("GET /healthz", HandleHealthz())

	// Authenticated routes
	authed := http.NewServeMux()
	authed.Handle("GET /api/v1/status", HandleStatus(d, startedAt))
	authed.Handle("GET /api/v1/metrics", HandleMetrics(col, logs))
	authed.Handle("GET /api/v1/inspect", HandleInspectGet(d, col))
	authed.Handle("POST /api/v1/inspect", HandleInspectPost(d, col))

	if logs != nil {
		authed.Handle("GET /api/v1/inspect-logs", HandleListInspectLogs(logs.Repo()))
		authed.Handle("GET /api/v1/inspect-logs/{log_id}", HandleGetInspectLog(logs.Repo()))
	}

	var protected http.Handler = RequestBodyLimitMiddleware(apiMaxBodyBytes, authed)
	if adminToken != "" {
		protected = AuthMiddleware(adminToken, protected)
	}
	mux.Handle("/api/", protected)

	srv := &http.Server{
		Addr:    net.JoinHostPort(listenAddress, strconv.Itoa(port)),
		Handler: mux,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
	}
}

// ListenAndServe starts the HTTP server. It blocks until the server stops.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.mux
}
