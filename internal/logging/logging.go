package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// BuildLogger returns a JSON logger writing to w (stderr when nil) at the
// given level name: debug, info, warn or error.
func BuildLogger(level string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	ops := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}
	return slog.New(slog.NewJSONHandler(w, ops))
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

func ErrAttr(err error) slog.Attr {
	return slog.Any("error", err)
}
