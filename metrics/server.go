package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultPort is the registered Prometheus exporter port for AMQP.
const DefaultPort = 9419

// HealthCheck reports why the process is unhealthy, or nil.
type HealthCheck func() error

// Server exposes a gatherer on /metrics and a health check on /health.
type Server struct {
	httpServer *http.Server
	port       int
	health     atomic.Pointer[HealthCheck]
}

// NewServer creates a metrics HTTP server exposing the default registry
func NewServer(port int) *Server {
	return NewServerFor(port, prometheus.DefaultGatherer)
}

// NewServerFor creates a metrics HTTP server exposing gatherer
func NewServerFor(port int, gatherer prometheus.Gatherer) *Server {
	if port == 0 {
		port = DefaultPort
	}
	s := &Server{port: port}
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.mux(gatherer),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
	return s
}

// SetHealthCheck replaces the check behind /health. Without one the server
// reports healthy.
func (s *Server) SetHealthCheck(check HealthCheck) {
	if check == nil {
		s.health.Store(nil)
		return
	}
	s.health.Store(&check)
}

func (s *Server) mux(gatherer prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if check := s.health.Load(); check != nil {
			if err := (*check)(); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

// Start listens until Stop is called
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Stop gracefully stops the metrics HTTP server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Port returns the configured port
func (s *Server) Port() int {
	return s.port
}
