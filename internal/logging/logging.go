// Package logging provides helpers for the dependency-injected loggers used
// across the module.
//
// Logging is never global: components receive a *slog.Logger at construction
// and scope it once with their own component attribute. Output format, level,
// and destination are configured only in main. The destination is stderr,
// never stdout, since stdout is the pass-through data channel.
package logging

import (
	"context"
	"log/slog"
)

// discardHandler drops every record.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// Discard returns a logger that discards all output.
func Discard() *slog.Logger {
	return slog.New(discardHandler{})
}

// Default returns logger if non-nil, otherwise a discard logger. The usual
// pattern for optional logger parameters:
//
//	logger = logging.Default(logger).With("component", "sink")
func Default(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return Discard()
}
