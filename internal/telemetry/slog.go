// Logging setup for the registry. Components log through the process default
// configured here, which carries a service attribute so aggregated streams
// from mixed deployments stay attributable.
package telemetry

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

const serviceName = "forge-registry"

// ParseLevel maps a configured level string onto a slog.Level. Unrecognized
// strings fall back to info; a bad logging knob must not keep the registry
// from starting.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

// NewLogger builds a logger writing to w. Format "json" selects the JSON
// handler (production aggregation), anything else the text handler. Debug
// level additionally records source positions.
func NewLogger(w io.Writer, format, level string) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler).With("service", serviceName)
}

// SetupLogger installs the configured logger as the process default, so
// packages that log through slog.Info and friends inherit it without carrying
// a *slog.Logger around.
func SetupLogger(format, level string) {
	logger := NewLogger(os.Stdout, format, level)
	slog.SetDefault(logger)
	logger.Info("logging configured", "format", format, "level", ParseLevel(level).String())
}
