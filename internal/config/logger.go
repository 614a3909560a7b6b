package config

import (
	"io"
	"log/slog"
)

// NewLogger builds the slog logger described by c, writing to w.
// verbose forces debug level regardless of the configured one.
func (c LogConfig) NewLogger(w io.Writer, verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.Level}
	if verbose {
		opts.Level = slog.LevelDebug
	}
	if c.JSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
