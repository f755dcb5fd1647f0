// Package logging provides the lock manager's process-wide structured
// logger: a zerolog.Logger configurable once at startup, plus helpers
// for carrying it through a context.Context and annotating it with
// lock-domain fields (locker, resource, component, error).
package logging

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	logger   zerolog.Logger
	loggerMu sync.RWMutex
	initOnce sync.Once
)

// Config controls how Init builds the global logger.
type Config struct {
	// Level is parsed with zerolog.ParseLevel; an empty or unrecognized
	// value falls back to "info".
	Level string
	// Pretty selects zerolog's human-readable console writer instead of
	// JSON. Meant for local development, not production output.
	Pretty bool
}

// Init builds the global logger from config. Safe to call once at
// startup; later calls replace the logger, which is mainly useful from
// tests that want to capture output.
func Init(config Config) {
	level, err := zerolog.ParseLevel(config.Level)
	if err != nil || config.Level == "" {
		level = zerolog.InfoLevel
	}

	var writer interface {
		Write(p []byte) (int, error)
	} = os.Stderr
	if config.Pretty {
		writer = zerolog.ConsoleWriter{Out: os.Stderr}
	}

	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger = zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

// Get returns the global logger, lazily initializing it with defaults
// (info level, JSON output) on first use.
func Get() zerolog.Logger {
	initOnce.Do(func() {
		Init(Config{Level: "info"})
	})
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// WithComponent returns a logger annotated with the subsystem that will
// use it, e.g. "manager", "locker", "detector".
func WithComponent(l zerolog.Logger, component string) zerolog.Logger {
	return l.With().Str("component", component).Logger()
}

// WithLocker annotates l with a locker's identity.
func WithLocker(l zerolog.Logger, locker int64) zerolog.Logger {
	return l.With().Int64("locker", locker).Logger()
}

// WithResource annotates l with the resource a lock operation concerns.
func WithResource(l zerolog.Logger, resource string) zerolog.Logger {
	return l.With().Str("resource", resource).Logger()
}

// WithError annotates l with an error field.
func WithError(l zerolog.Logger, err error) zerolog.Logger {
	return l.With().Err(err).Logger()
}
