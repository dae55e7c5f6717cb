package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/TheGojiOG/masterserver/internal/config"
	"github.com/TheGojiOG/masterserver/internal/logging"
)

var (
	// ErrTerminated is returned once the supervisor has quit.
	ErrTerminated = errors.New("supervisor terminated")
	// ErrNotRunning is returned by operations that need a live service.
	ErrNotRunning = errors.New("server is not running")
)

// Supervisor owns the single live Service handle and sequences its lifecycle.
// Every read or replacement of the handle happens under mu.
type Supervisor struct {
	mu      sync.Mutex
	factory ServiceFactory
	out     io.Writer
	logger  *slog.Logger

	host         string
	port         uint16
	daemon       bool
	initialRange int

	handle         Service
	loggingEnabled bool
	ratingRange    int
	state          State
}

// NewSupervisor creates a stopped supervisor for cfg. Operator-facing
// acknowledgements are written to out.
func NewSupervisor(cfg *config.Configuration, factory ServiceFactory, out io.Writer) *Supervisor {
	if out == nil {
		out = io.Discard
	}
	return &Supervisor{
		factory:      factory,
		out:          out,
		logger:       logging.Component("supervisor"),
		host:         cfg.Host,
		port:         cfg.Port,
		daemon:       cfg.Daemon,
		initialRange: cfg.RatingRange,
		state:        StateStopped,
	}
}

// Start creates the first service instance, enables logging on it and
// applies the configured elo range.
func (s *Supervisor) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateTerminated:
		return ErrTerminated
	case StateRunning:
		s.reply("Server is already running.")
		return nil
	}

	s.reply("Hosting ip [%s] on port [%d]", s.host, s.port)
	if err := s.createLocked(); err != nil {
		return err
	}

	s.handle.SetRatingRange(s.initialRange)
	s.ratingRange = s.initialRange
	s.loggingEnabled = s.handle.ToggleLogging()

	logging.LogServerActivity(s.handle.ID(), logging.ActivityServerStart, "service started", true, nil)
	return nil
}

// Stop disposes the live service. Stopping a stopped service only reports it.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateTerminated {
		return ErrTerminated
	}
	if s.handle == nil {
		s.reply("Server is not running.")
		return nil
	}

	s.reply("Server stopped.")
	return s.disposeLocked(logging.ActivityServerStop)
}

// Restart disposes the live service, if any, and creates a fresh one on the
// same host and port. Logging and elo range start from the service defaults.
// Dispose and create share one critical section so two instances are never live.
func (s *Supervisor) Restart() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateTerminated {
		return ErrTerminated
	}

	if s.handle != nil {
		if s.handle.IsRunning() {
			s.reply("Server stopped.")
		}
		if err := s.disposeLocked(logging.ActivityServerRestart); err != nil {
			s.logger.Warn("dispose before restart failed", "error", err)
		}
	}

	s.reply("Restarting...")
	s.reply("Hosting ip [%s] on port [%d]", s.host, s.port)
	if err := s.createLocked(); err != nil {
		return err
	}

	logging.LogServerActivity(s.handle.ID(), logging.ActivityServerRestart, "service restarted", true, nil)
	return nil
}

// Quit disposes the live service, if any, and retires the supervisor.
// Calling Quit again is a no-op.
func (s *Supervisor) Quit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateTerminated {
		return nil
	}

	s.reply("Quitting...")
	err := s.disposeLocked(logging.ActivityServerQuit)
	s.state = StateTerminated
	return err
}

// ToggleLogging flips request logging on the live service.
func (s *Supervisor) ToggleLogging() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireRunningLocked(); err != nil {
		return false, err
	}

	s.loggingEnabled = s.handle.ToggleLogging()
	if s.loggingEnabled {
		s.reply("Logging has been enabled")
	} else {
		s.reply("Logging has been disabled")
	}

	logging.LogActivity(logging.Activity{
		InstanceID:   s.handle.ID(),
		ActivityType: logging.ActivityLoggingToggle,
		Description:  "request logging toggled",
		Metadata:     map[string]any{"enabled": s.loggingEnabled},
		Success:      true,
	})
	return s.loggingEnabled, nil
}

// SetRatingRange sets the elo range on the live service. 0 turns filtering off.
func (s *Supervisor) SetRatingRange(rangeValue int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireRunningLocked(); err != nil {
		return err
	}

	s.reply("Elo range set to %d", rangeValue)
	if rangeValue == 0 {
		s.reply("Elo turned off")
	}
	s.handle.SetRatingRange(rangeValue)
	s.ratingRange = rangeValue

	logging.LogActivity(logging.Activity{
		InstanceID:   s.handle.ID(),
		ActivityType: logging.ActivityRatingRange,
		Description:  "elo range changed",
		Metadata:     map[string]any{"elo_range": rangeValue},
		Success:      true,
	})
	return nil
}

// PrintHelp writes the command list
func (s *Supervisor) PrintHelp() {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprint(s.out, HelpText())
}

// IsRunning reports whether a live service exists and is serving.
// It takes the supervisor lock, so a service must not call it from code that
// its own Dispose waits on.
func (s *Supervisor) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle != nil && s.handle.IsRunning()
}

// Snapshot returns the current supervisor state
func (s *Supervisor) Snapshot() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		State:          s.state,
		Host:           s.host,
		Port:           s.port,
		LoggingEnabled: s.loggingEnabled,
		RatingRange:    s.ratingRange,
	}
	if s.handle != nil {
		status.InstanceID = s.handle.ID()
	}
	return status
}

// createLocked creates a new handle. The caller holds mu and has disposed any
// previous handle.
func (s *Supervisor) createLocked() error {
	handle, err := s.factory.Create(s.host, s.port)
	if err != nil {
		s.reply("Failed to start server: %v", err)
		logging.LogServerActivity("", logging.ActivityServerStart, "service start failed", false, err)
		return fmt.Errorf("failed to start server on %s:%d: %w", s.host, s.port, err)
	}

	s.handle = handle
	s.state = StateRunning
	s.loggingEnabled = false
	s.ratingRange = 0
	s.logger.Info("service created", "instance_id", handle.ID(), "host", s.host, "port", s.port)
	return nil
}

// disposeLocked disposes the live handle exactly once. The handle reference is
// cleared before Dispose runs, so a failing or panicking Dispose can never be
// retried on the same handle.
func (s *Supervisor) disposeLocked(activity string) error {
	if s.handle == nil {
		return nil
	}

	handle := s.handle
	s.handle = nil
	s.state = StateStopped
	s.loggingEnabled = false
	s.ratingRange = 0

	if err := handle.Dispose(); err != nil {
		s.reply("Failed to stop server cleanly: %v", err)
		logging.LogServerActivity(handle.ID(), activity, "service dispose failed", false, err)
		return fmt.Errorf("failed to stop server: %w", err)
	}

	logging.LogServerActivity(handle.ID(), activity, "service disposed", true, nil)
	return nil
}

func (s *Supervisor) requireRunningLocked() error {
	if s.state == StateTerminated {
		return ErrTerminated
	}
	if s.handle == nil {
		s.reply("Server is not running.")
		return ErrNotRunning
	}
	return nil
}

func (s *Supervisor) reply(format string, args ...any) {
	fmt.Fprintf(s.out, format+"\n", args...)
}
