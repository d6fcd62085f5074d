package profiler

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	log "github.com/cloudposse/link-install/pkg/logger"
	"github.com/cloudposse/link-install/pkg/schema"
)

const shutdownTimeout = 5 * time.Second

// DefaultConfig returns the default profiler configuration.
func DefaultConfig() schema.Profiler {
	return schema.Profiler{
		Enabled: false,
		Port:    6060,
		Host:    "localhost",
	}
}

// Server serves pprof endpoints and, when a registry is attached, the live run metrics
// while a link install is running.
type Server struct {
	config   schema.Profiler
	registry *prometheus.Registry

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// New creates a new profiler server with the given configuration.
func New(config schema.Profiler, registry *prometheus.Registry) *Server {
	return &Server{
		config:   config,
		registry: registry,
	}
}

func (p *Server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	if p.registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{}))
	}
	return mux
}

// Start starts the server if enabled. The listener is bound before Start returns.
func (p *Server) Start() error {
	if !p.config.Enabled {
		log.Trace("Profiler is disabled")
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.server != nil {
		log.Warn("Profiler server is already running")
		return nil
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(p.config.Host, fmt.Sprint(p.config.Port)))
	if err != nil {
		return fmt.Errorf("start profiler: %w", err)
	}
	p.listener = ln
	p.server = &http.Server{
		Handler:           p.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	server := p.server
	go func() {
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Error("Profiler server error", "error", err)
		}
	}()

	log.Info("Profiler endpoints available", "url", p.url())
	return nil
}

// Stop stops the server.
func (p *Server) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := p.server.Shutdown(ctx)
	p.server = nil
	p.listener = nil
	if err != nil {
		log.Error("Error shutting down profiler server", "error", err)
		return err
	}
	log.Debug("Profiler server stopped")
	return nil
}

// IsRunning returns true if the server is currently running.
func (p *Server) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.server != nil
}

// Address returns the address the server listens on, or "" when it is not running.
// With port 0 this is the port the system picked.
func (p *Server) Address() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listener == nil {
		return ""
	}
	return p.listener.Addr().String()
}

func (p *Server) url() string {
	return fmt.Sprintf("http://%s/debug/pprof/", p.listener.Addr().String())
}
