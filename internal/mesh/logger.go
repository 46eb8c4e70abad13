package mesh

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler discards all records; Enabled returns false so callers skip formatting.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// NopLogger returns a logger that discards all output.
func NopLogger() *slog.Logger { return slog.New(nopHandler{}) }

//nolint:gochecknoglobals
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(NopLogger())
}

// SetLogger installs the logger used by the package. Pass nil to silence it.
//
// Levels:
//   - Debug: principal axes, key ties resolved by geometry
//   - Warn: identical facets making the canonical order ambiguous
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = NopLogger()
	}

	loggerPtr.Store(l)
}

func logger() *slog.Logger {
	return loggerPtr.Load()
}
