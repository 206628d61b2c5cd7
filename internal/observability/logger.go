package observability

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger returns the JSON logger used by every binary. Records carry the
// trace and span ids of the active span and the acting user id, when the
// context has them.
func NewLogger(env string) *slog.Logger {
	return newLogger(os.Stdout, env)
}

func newLogger(w io.Writer, env string) *slog.Logger {
	level := slog.LevelInfo

	if env == "dev" {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(withContextAttrs(handler))
}
