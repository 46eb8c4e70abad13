package transit

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/tink-crypto/tink-go/v2/tink"
)

const chunkSize = 64 * 1024

// streamingWriter encrypts everything written to it in chunks of chunkSize.
// Close must be called to emit the final chunk, which may be empty.
type streamingWriter struct {
	w          io.Writer
	daead      tink.DeterministicAEAD
	buffer     []byte
	header     []byte
	chunkIndex uint64
}

func newStreamingWriter(w io.Writer, daead tink.DeterministicAEAD, header []byte) *streamingWriter {
	hdrCopy := make([]byte, len(header))
	copy(hdrCopy, header)

	return &streamingWriter{
		w:      w,
		daead:  daead,
		buffer: make([]byte, 0, chunkSize),
		header: hdrCopy,
	}
}

// Write buffers data and flushes full chunks. A full chunk stays buffered
// until more data arrives, so Close always has a chunk to mark final.
func (sw *streamingWriter) Write(data []byte) (int, error) {
	sw.buffer = append(sw.buffer, data...)

	for len(sw.buffer) > chunkSize {
		if err := sw.flushChunk(chunkSize, false); err != nil {
			return 0, err
		}
	}

	return len(data), nil
}

// Close encrypts the remaining buffered data as the final chunk.
func (sw *streamingWriter) Close() error {
	return sw.flushChunk(len(sw.buffer), true)
}

func (sw *streamingWriter) flushChunk(size int, final bool) error {
	chunk := make([]byte, size)
	copy(chunk, sw.buffer[:size])

	encrypted, err := sw.daead.EncryptDeterministically(chunk, chunkAssociatedData(sw.header, sw.chunkIndex, final))
	if err != nil {
		return fmt.Errorf("encrypting chunk: %w", err)
	}

	prefix := uint32(len(encrypted)) //nolint:gosec // bounded by chunkSize plus the SIV tag
	if final {
		prefix |= chunkFinalBit
	}

	if err := binary.Write(sw.w, binary.BigEndian, prefix); err != nil {
		return fmt.Errorf("writing chunk size: %w", err)
	}

	if _, err := sw.w.Write(encrypted); err != nil {
		return fmt.Errorf("writing encrypted chunk: %w", err)
	}

	sw.buffer = sw.buffer[size:]
	sw.chunkIndex++

	return nil
}

func chunkAssociatedData(header []byte, index uint64, final bool) []byte {
	const chunkIndexSize = 8

	ad := make([]byte, len(header)+chunkIndexSize+1)
	copy(ad, header)
	binary.BigEndian.PutUint64(ad[len(header):], index)

	if final {
		ad[len(ad)-1] = 1
	}

	return ad
}
