package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xowlabs/expopulse/pkg/buildinfo"
	"github.com/xowlabs/expopulse/pkg/logging"
)

// Server exposes Prometheus metrics and liveness probes on a dedicated
// port, away from the public API.
type Server struct {
	server *http.Server
	addr   string
	logger logging.Logger
}

// NewServer creates the observability HTTP server.
func NewServer(addr string, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/buildinfo", buildinfo.Handler("expopulse"))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return &Server{
		addr:   addr,
		logger: logger.With(logging.F("component", "observability")),
		server: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start runs the server in a goroutine.
func (s *Server) Start() {
	go func() {
		s.logger.Info("Starting observability HTTP server", logging.F("addr", s.addr))
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Observability HTTP server error", logging.Err(err))
		}
	}()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
