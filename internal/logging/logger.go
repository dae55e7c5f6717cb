package logging

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/TheGojiOG/masterserver/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu       sync.RWMutex
	global   *slog.Logger
	rotation *lumberjack.Logger
	level    = new(slog.LevelVar)
)

// Init installs the process logger. Records go to console and, when cfg.File
// is set, to a rotated file as well. Calling Init again replaces the previous
// logger and closes its file.
func Init(cfg config.LoggingConfig, console io.Writer) (*slog.Logger, error) {
	if console == nil {
		console = os.Stderr
	}
	level.Set(parseLevel(cfg.Level))

	var file *lumberjack.Logger
	output := console
	if path := strings.TrimSpace(cfg.File); path != "" {
		file = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   true,
		}
		output = io.MultiWriter(console, file)
	}

	logger := slog.New(NewHandler(output, cfg.Format, level))

	mu.Lock()
	previous := rotation
	global = logger
	rotation = file
	mu.Unlock()

	slog.SetDefault(logger)
	log.SetFlags(0)
	log.SetOutput(Writer(slog.LevelInfo))

	if previous != nil {
		return logger, previous.Close()
	}
	return logger, nil
}

// NewHandler builds a text handler, or a JSON handler when format is "json".
func NewHandler(w io.Writer, format string, leveler slog.Leveler) slog.Handler {
	options := &slog.HandlerOptions{Level: leveler}
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return slog.NewJSONHandler(w, options)
	}
	return slog.NewTextHandler(w, options)
}

// L returns the process logger. Before Init it discards everything.
func L() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if global == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return global
}

// Component returns a logger tagged with the component name.
func Component(name string) *slog.Logger {
	return L().With("component", name)
}

// SetLevel changes the minimum level at runtime
func SetLevel(value string) {
	level.Set(parseLevel(value))
}

// Writer adapts the process logger to an io.Writer, one record per write.
// It is used for stdlib log output and gin's writers.
func Writer(lvl slog.Level) io.Writer {
	return lineWriter{level: lvl}
}

// Close flushes and closes the rotated log file, if any.
func Close() error {
	mu.Lock()
	file := rotation
	rotation = nil
	mu.Unlock()

	if file == nil {
		return nil
	}
	return file.Close()
}

type lineWriter struct {
	level slog.Level
}

func (w lineWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(string(p), "\n") {
		if msg := strings.TrimSpace(line); msg != "" {
			L().Log(context.Background(), w.level, msg)
		}
	}
	return len(p), nil
}

func parseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
