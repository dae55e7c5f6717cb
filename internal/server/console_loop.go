package server

import (
	"context"
	"errors"
	"io"

	"github.com/TheGojiOG/masterserver/internal/logging"
)

// LineReader reads one line of console input. io.EOF marks end of input and
// is distinct from an empty line.
type LineReader interface {
	ReadLine() (string, error)
}

// Dispatch executes one line of console input. It returns false only after
// the quit command has completed.
func (s *Supervisor) Dispatch(line string) bool {
	cmd := ParseCommand(line)

	var err error
	switch cmd.Kind {
	case CommandNone:
		return true
	case CommandStop:
		err = s.Stop()
	case CommandRestart:
		err = s.Restart()
	case CommandLog:
		_, err = s.ToggleLogging()
	case CommandQuit:
		if err := s.Quit(); err != nil {
			s.logger.Error("quit finished with errors", "error", err)
		}
		return false
	case CommandHelp:
		s.PrintHelp()
	case CommandRatingRange:
		err = s.SetRatingRange(cmd.Value)
	case CommandInvalidRatingRange:
		s.reject(cmd, "Invalid elo range provided (Must be a non-negative integer)")
	default:
		s.reject(cmd, "Command not recognized, please try again")
	}

	if err != nil && !errors.Is(err, ErrNotRunning) {
		s.logger.Debug("command failed", "command", cmd.Raw, "error", err)
	}
	return true
}

// DispatchEOF handles the end of console input. No command runs and the
// loop keeps going.
func (s *Supervisor) DispatchEOF() bool {
	s.logger.Info("console input closed, waiting for a termination signal")
	return true
}

// Serve runs the control loop for the configured mode: Wait in daemon mode,
// Run otherwise. in is never read in daemon mode.
func (s *Supervisor) Serve(ctx context.Context, in LineReader) error {
	if s.daemon {
		return s.Wait(ctx)
	}
	return s.Run(ctx, in)
}

// Wait blocks until ctx is done and then quits. It never touches the console.
func (s *Supervisor) Wait(ctx context.Context) error {
	s.logger.Info("running as daemon")
	<-ctx.Done()
	s.logger.Info("termination signal received")
	return s.Quit()
}

type inputLine struct {
	line string
	err  error
}

// Run prints the command list and dispatches console lines until quit.
// After end of input it stops reading and waits for ctx; cancelling ctx
// quits at any point.
func (s *Supervisor) Run(ctx context.Context, in LineReader) error {
	s.PrintHelp()

	lines := make(chan inputLine)
	done := make(chan struct{})
	defer close(done)
	go readLines(in, lines, done)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("termination signal received")
			return s.Quit()
		case input := <-lines:
			if input.err != nil {
				if !errors.Is(input.err, io.EOF) {
					s.logger.Error("console read failed", "error", input.err)
				}
				s.DispatchEOF()
				lines = nil
				continue
			}
			if !s.Dispatch(input.line) {
				return nil
			}
		}
	}
}

// readLines performs one blocking read per delivered line and stops after
// the first error or once done is closed.
func readLines(in LineReader, out chan<- inputLine, done <-chan struct{}) {
	for {
		line, err := in.ReadLine()
		select {
		case out <- inputLine{line: line, err: err}:
		case <-done:
			return
		}
		if err != nil {
			return
		}
	}
}

func (s *Supervisor) reject(cmd Command, message string) {
	s.mu.Lock()
	s.reply("%s", message)
	s.mu.Unlock()

	logging.LogActivity(logging.Activity{
		ActivityType: logging.ActivityCommandReject,
		Description:  "console command rejected",
		Metadata:     map[string]any{"input": cmd.Raw},
		Success:      false,
	})
}
