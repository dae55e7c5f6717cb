package masterserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/TheGojiOG/masterserver/internal/config"
	"github.com/TheGojiOG/masterserver/internal/logging"
	"github.com/TheGojiOG/masterserver/internal/server"
)

const shutdownTimeout = 5 * time.Second

// Factory creates master server instances
type Factory struct {
	Settings config.ServiceConfig
}

// NewFactory creates a factory using the given service settings
func NewFactory(settings config.ServiceConfig) *Factory {
	return &Factory{Settings: settings}
}

// Create binds host:port and starts serving. It satisfies server.ServiceFactory.
func (f *Factory) Create(host string, port uint16) (server.Service, error) {
	return Start(host, port, f.Settings)
}

// Server is one running master server instance
type Server struct {
	id       string
	settings config.ServiceConfig
	logger   *slog.Logger

	listener   net.Listener
	httpServer *http.Server
	registry   *Registry
	hub        *Hub
	scheduler  *cron.Cron

	logging  atomic.Bool
	eloRange atomic.Int64
	running  atomic.Bool

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	watchers    sync.WaitGroup
	disposeOnce sync.Once
	disposeErr  error
}

var _ server.Service = (*Server)(nil)

// Start binds a listener on host:port and serves the registry API on it.
// Logging starts disabled and the elo range starts at 0.
func Start(host string, port uint16, settings config.ServiceConfig) (*Server, error) {
	id := uuid.NewString()
	addr := net.JoinHostPort(host, strconv.Itoa(int(port)))

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	logger := logging.Component("masterserver").With("instance_id", id)
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		id:       id,
		settings: settings,
		logger:   logger,
		listener: listener,
		hub:      NewHub(logger),
		cancel:   cancel,
	}
	s.registry = NewRegistry(s.hub.Publish)

	s.scheduler = cron.New()
	if _, err := s.scheduler.AddFunc(settings.PruneSchedule, s.pruneStale); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("invalid prune schedule %q: %w", settings.PruneSchedule, err)
	}

	s.httpServer = &http.Server{
		Handler:      s.router(),
		ReadTimeout:  settings.ReadTimeoutDuration(),
		WriteTimeout: settings.WriteTimeoutDuration(),
		IdleTimeout:  60 * time.Second,
	}

	s.running.Store(true)

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.hub.Run(ctx)
	}()
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("master server stopped serving", "error", err)
			s.running.Store(false)
		}
	}()
	s.scheduler.Start()

	s.logger.Info("master server listening", "addr", listener.Addr().String())
	return s, nil
}

// ID returns the instance id
func (s *Server) ID() string {
	return s.id
}

// Addr returns the bound listener address
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Registry exposes the host registry
func (s *Server) Registry() *Registry {
	return s.registry
}

// ToggleLogging flips request logging and returns the new state
func (s *Server) ToggleLogging() bool {
	for {
		current := s.logging.Load()
		if s.logging.CompareAndSwap(current, !current) {
			return !current
		}
	}
}

// LoggingEnabled reports whether request logging is on
func (s *Server) LoggingEnabled() bool {
	return s.logging.Load()
}

// SetRatingRange sets the elo range used by host listings
func (s *Server) SetRatingRange(rangeValue int) {
	if rangeValue < 0 {
		rangeValue = 0
	}
	s.eloRange.Store(int64(rangeValue))
}

// RatingRange returns the current elo range
func (s *Server) RatingRange() int {
	return int(s.eloRange.Load())
}

// IsRunning reports whether the instance is serving
func (s *Server) IsRunning() bool {
	return s.running.Load()
}

// Dispose stops the scheduler, closes watchers and shuts the HTTP server
// down. Only the first call does any work.
func (s *Server) Dispose() error {
	s.disposeOnce.Do(func() {
		s.running.Store(false)

		cronCtx := s.scheduler.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.disposeErr = fmt.Errorf("failed to shut down http server: %w", err)
			s.httpServer.Close()
		}

		s.cancel()
		s.wg.Wait()
		s.watchers.Wait()

		select {
		case <-cronCtx.Done():
		case <-ctx.Done():
		}

		s.logger.Info("master server disposed", "hosts_dropped", s.registry.Len())
	})
	return s.disposeErr
}

func (s *Server) pruneStale() {
	cutoff := time.Now().Add(-s.settings.StaleAfterDuration())
	pruned := s.registry.Prune(cutoff)
	if len(pruned) > 0 {
		s.logger.Info("pruned stale hosts", "count", len(pruned))
	}
}
