package transit

import (
	"bufio"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/idelchi/gogen/pkg/key"
)

// maxChunkCiphertext bounds the length prefix accepted by Open: a full
// chunk plus the 16-byte SIV tag.
const maxChunkCiphertext = chunkSize + 16

// GenerateSharedKey returns a random shared key, hex encoded.
func GenerateSharedKey() (string, error) {
	raw := make([]byte, SharedKeySize)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating key: %w", err)
	}

	return hex.EncodeToString(raw), nil
}

// ParseSharedKey decodes a hex shared key, ignoring surrounding whitespace.
func ParseSharedKey(s string) ([]byte, error) {
	decoded, err := key.FromHex(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid key format: %w", err)
	}

	if len(decoded) != SharedKeySize {
		return nil, fmt.Errorf("shared key must be %d bytes (%d hex characters), got %d",
			SharedKeySize, 2*SharedKeySize, len(decoded))
	}

	return decoded, nil
}

// Seal streams reader into writer as an envelope under key.
// Equal plaintexts under equal keys produce equal envelopes.
func Seal(reader io.Reader, writer io.Writer, key []byte) error {
	derived, err := deriveSealKey(key)
	if err != nil {
		return err
	}

	primitive, err := newSealPrimitive(derived)
	if err != nil {
		return err
	}

	header := newEnvelopeHeader()
	if _, err := writer.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	sw := newStreamingWriter(writer, primitive, header)

	bufp, ok := bufferPool.Get().(*[]byte)
	if !ok {
		return errors.New("invalid buffer type from pool") //nolint:err113
	}
	defer bufferPool.Put(bufp)

	if _, err := io.CopyBuffer(sw, reader, *bufp); err != nil {
		return fmt.Errorf("sealing stream: %w", err)
	}

	return sw.Close()
}

// Open verifies and decrypts an envelope from reader into writer.
//
// Plaintext is written chunk by chunk as each chunk verifies; on error the
// caller must discard what was written. A missing final chunk or trailing
// data is reported as ErrEnvelope.
func Open(reader io.Reader, writer io.Writer, key []byte) error {
	derived, err := deriveSealKey(key)
	if err != nil {
		return err
	}

	primitive, err := newSealPrimitive(derived)
	if err != nil {
		return err
	}

	bufReader := bufio.NewReader(reader)

	header := make([]byte, envelopeHeaderSize)
	if _, err := io.ReadFull(bufReader, header); err != nil {
		return fmt.Errorf("%w: reading header: %w", ErrEnvelope, err)
	}

	if err := parseEnvelopeHeader(header); err != nil {
		return err
	}

	for index := uint64(0); ; index++ {
		var prefix uint32
		if err := binary.Read(bufReader, binary.BigEndian, &prefix); err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("%w: missing final chunk", ErrEnvelope)
			}

			return fmt.Errorf("%w: reading chunk size: %w", ErrEnvelope, err)
		}

		final := prefix&chunkFinalBit != 0
		size := prefix &^ chunkFinalBit

		if size > maxChunkCiphertext {
			return fmt.Errorf("%w: chunk %d claims %d bytes", ErrEnvelope, index, size)
		}

		encrypted := make([]byte, size)
		if _, err := io.ReadFull(bufReader, encrypted); err != nil {
			return fmt.Errorf("%w: reading chunk %d: %w", ErrEnvelope, index, err)
		}

		decrypted, err := primitive.DecryptDeterministically(encrypted, chunkAssociatedData(header, index, final))
		if err != nil {
			return fmt.Errorf("%w: chunk %d failed authentication", ErrEnvelope, index)
		}

		if _, err := writer.Write(decrypted); err != nil {
			return fmt.Errorf("writing decrypted chunk: %w", err)
		}

		if final {
			break
		}
	}

	if _, err := bufReader.ReadByte(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data after final chunk", ErrEnvelope)
	}

	return nil
}
