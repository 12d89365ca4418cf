// Package obs holds the observability plumbing shared by the service:
// slog setup and Prometheus HTTP metrics.
package obs

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// SetupLogging configures the default slog logger at the level named by the
// LOG_LEVEL env var (debug, info, warn, error; default info).
func SetupLogging() {
	SetupLoggingWithLevel(levelFromEnv())
}

// SetupLoggingWithLevel configures the default slog logger at the given level.
func SetupLoggingWithLevel(level slog.Level) {
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		}),
	))
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
