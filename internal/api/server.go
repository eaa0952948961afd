package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/brokerlink/internal/infrastructure/logging"
	"github.com/nerrad567/brokerlink/internal/infrastructure/mqtt"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 5 * time.Second

// readHeaderTimeout bounds how long a client may take to send request headers.
const readHeaderTimeout = 5 * time.Second

// StatusSource is the view of the MQTT client the server reports on.
// *mqtt.Client satisfies it.
type StatusSource interface {
	Status() mqtt.Status
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the server.
type Deps struct {
	Listen   string
	Logger   *logging.Logger
	Client   StatusSource
	Gatherer prometheus.Gatherer
	Version  string

	// Registerer receives the HTTP request metrics. Nil disables them.
	Registerer prometheus.Registerer
}

// Server is the operational HTTP server.
//
// It is created with New(), started with Start() and stopped with Close().
// Run combines the three for use under an errgroup.
type Server struct {
	listen   string
	logger   *logging.Logger
	client   StatusSource
	gatherer prometheus.Gatherer
	version  string
	metrics  *httpMetrics

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	serveErr chan error
}

// New creates a server with the given dependencies. It does not listen
// until Start is called.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If a required dependency is missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Client == nil {
		return nil, fmt.Errorf("mqtt client is required")
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	var metrics *httpMetrics
	if deps.Registerer != nil {
		var err error
		if metrics, err = newHTTPMetrics(deps.Registerer); err != nil {
			return nil, err
		}
	}

	return &Server{
		listen:   deps.Listen,
		logger:   deps.Logger,
		client:   deps.Client,
		gatherer: deps.Gatherer,
		version:  deps.Version,
		metrics:  metrics,
	}, nil
}

// Start binds the listen address and serves in a background goroutine.
//
// Binding happens before Start returns, so an address already in use is
// reported here rather than lost in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("api server already started")
	}

	ln, err := net.Listen("tcp", s.listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.listen, err)
	}

	s.listener = ln
	s.serveErr = make(chan error, 1)
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	srv, errCh := s.server, s.serveErr
	go func() {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	s.logger.Info("api server listening", "address", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close gracefully shuts down the server, waiting up to five seconds for
// in-flight requests.
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("api server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down api server: %w", err)
	}
	return nil
}

// Run starts the server, serves until ctx is cancelled and then shuts down.
//
// Returns:
//   - error: nil after a clean shutdown, or the listen/serve failure
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}

	select {
	case err := <-s.serveErr:
		if err != nil {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	return s.Close()
}
