package metric

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server serves /metrics and a minimal /health endpoint for the
// ingestion daemon, mirroring the source codebase's metrics server
// shape without its TLS/security-config coupling: this daemon has no
// externally reachable data plane to secure, only a scrape endpoint.
type Server struct {
	addr     string
	registry *Registry
	server   *http.Server
	mu       sync.Mutex
}

// NewServer returns a Server that will listen on addr (e.g. ":9090")
// once Start is called.
func NewServer(addr string, registry *Registry) *Server {
	return &Server{addr: addr, registry: registry}
}

// Start begins serving in the background and returns immediately.
// Errors from a failed listener are delivered on the returned channel.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)

	s.mu.Lock()
	defer s.mu.Unlock()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry.PrometheusRegistry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	s.server = &http.Server{Addr: s.addr, Handler: mux}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	return errCh
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
