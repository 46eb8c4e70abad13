package transit

import (
	"sync"
)

const defaultBufferSize = 32 * 1024

// bufferPool provides reusable copy buffers for Seal.
//
//nolint:gochecknoglobals
var bufferPool = sync.Pool{
	New: func() any {
		buf := make([]byte, defaultBufferSize)

		return &buf
	},
}
