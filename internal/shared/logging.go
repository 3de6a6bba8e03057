package shared

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// InitLogger builds the process logger and installs it as the default.
// Logs go to stderr so stdout stays free for command output.
func InitLogger(format, level string) *slog.Logger {
	logger := NewLogger(os.Stderr, format, level)
	slog.SetDefault(logger)
	return logger
}

func NewLogger(w io.Writer, format, level string) *slog.Logger {
	var h slog.Handler
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.ToLower(format) == "text" {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h)
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
