package transit

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	envelopeMagic   = "MMSL"
	envelopeVersion = byte(1)

	// chunkFinalBit marks the last chunk, both in the length prefix and in the associated data.
	chunkFinalBit = uint32(1) << 31
)

const envelopeHeaderSize = len(envelopeMagic) + 1

// SharedKeySize is the length in bytes of a shared key.
const SharedKeySize = 32

// ErrEnvelope indicates a malformed, truncated or tampered envelope.
var ErrEnvelope = errors.New("envelope processing error")

func newEnvelopeHeader() []byte {
	header := make([]byte, envelopeHeaderSize)
	copy(header, envelopeMagic)

	header[len(envelopeMagic)] = envelopeVersion

	return header
}

func parseEnvelopeHeader(header []byte) error {
	if len(header) != envelopeHeaderSize {
		return fmt.Errorf("%w: envelope header too short", ErrEnvelope)
	}

	if !bytes.Equal(header[:len(envelopeMagic)], []byte(envelopeMagic)) {
		return fmt.Errorf("%w: invalid envelope magic", ErrEnvelope)
	}

	if version := header[len(envelopeMagic)]; version != envelopeVersion {
		return fmt.Errorf("%w: unsupported envelope version %d", ErrEnvelope, version)
	}

	return nil
}

// deriveSealKey expands a shared key into the 64 bytes AES-SIV needs.
func deriveSealKey(key []byte) ([]byte, error) {
	if len(key) != SharedKeySize {
		return nil, fmt.Errorf("shared key must be %d bytes (%d hex characters), got %d",
			SharedKeySize, 2*SharedKeySize, len(key))
	}

	reader := hkdf.New(sha256.New, key, nil, []byte("meshmark/seal"))
	derived := make([]byte, aesSivKeySize)

	if _, err := io.ReadFull(reader, derived); err != nil {
		return nil, fmt.Errorf("deriving seal key: %w", err)
	}

	return derived, nil
}
