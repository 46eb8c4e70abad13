package watermark

import (
	"log/slog"
	"sync/atomic"

	"github.com/idelchi/meshmark/internal/mesh"
)

//nolint:gochecknoglobals
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(mesh.NopLogger())
}

// SetLogger installs the logger used by the engine and by the mesh package.
// Pass nil to silence both.
//
// Levels:
//   - Info: one line per embedded or extracted mesh
//   - Debug: capacity and canonical-order details
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = mesh.NopLogger()
	}

	loggerPtr.Store(l)
	mesh.SetLogger(l.With("component", "mesh"))
}

func logger() *slog.Logger {
	return loggerPtr.Load()
}
