// Package fingerprint computes the 128-bit digest hidden in a watermarked mesh.
//
// The digest covers the raw mesh file, then the uploader id, then an
// arbitrary appendix, so the same file handed to two recipients carries two
// different fingerprints.
package fingerprint

import (
	"crypto/md5" //nolint:gosec // fingerprint identifies, it does not authenticate
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/idelchi/meshmark/internal/fault"
	"github.com/idelchi/meshmark/internal/permcodec"
)

// Size is the fingerprint length in bytes.
const Size = 16

// Bits is the fingerprint length in bits.
const Bits = 8 * Size

// Algorithm names the hash used to derive a fingerprint.
type Algorithm string

const (
	// MD5 is the default, compatible with fingerprints issued by earlier tools.
	MD5 Algorithm = "md5"
	// BLAKE3 is BLAKE3 truncated to 128 bits.
	BLAKE3 Algorithm = "blake3"
)

// Fingerprint is a 128-bit digest.
type Fingerprint [Size]byte

// Generator derives fingerprints with a fixed algorithm.
type Generator struct {
	Algorithm Algorithm
}

func (g Generator) newHash() (hash.Hash, error) {
	switch g.Algorithm {
	case MD5, "":
		return md5.New(), nil //nolint:gosec
	case BLAKE3:
		return blake3.New(), nil
	default:
		return nil, fault.New(fault.KindInvalidArgument, "unknown fingerprint algorithm %q", g.Algorithm)
	}
}

// Sum streams r through the hash, followed by the UTF-8 bytes of uploader and appendix.
func (g Generator) Sum(r io.Reader, uploader, appendix string) (Fingerprint, error) {
	var fp Fingerprint

	h, err := g.newHash()
	if err != nil {
		return fp, err
	}

	if _, err := io.Copy(h, r); err != nil {
		return fp, fault.Wrap(fault.KindIO, err, "hashing mesh")
	}

	io.WriteString(h, uploader) //nolint:errcheck // hash writes never fail
	io.WriteString(h, appendix) //nolint:errcheck

	copy(fp[:], h.Sum(nil))

	return fp, nil
}

// SumFile is Sum over the file at path.
func (g Generator) SumFile(path, uploader, appendix string) (Fingerprint, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return Fingerprint{}, fault.Wrap(fault.KindIO, err, "opening %q", path)
	}
	defer file.Close()

	return g.Sum(file, uploader, appendix)
}

// Bits returns the fingerprint as a 128-bit string, most significant bit first.
func (f Fingerprint) Bits() permcodec.Bits {
	return permcodec.FromBytes(f[:])
}

// FromBits packs exactly 128 bits into a fingerprint.
func FromBits(bits permcodec.Bits) (Fingerprint, error) {
	var fp Fingerprint

	if len(bits) != Bits {
		return fp, fault.New(fault.KindInvalidArgument, "fingerprint needs %d bits, got %d", Bits, len(bits))
	}

	copy(fp[:], bits.Bytes())

	return fp, nil
}

// Format renders the fingerprint in base 2 (128 digits), 16 (32 digits),
// or 10 (no padding).
func (f Fingerprint) Format(base int) (string, error) {
	switch base {
	case 2:
		return f.Bits().String(), nil
	case 16:
		return hex.EncodeToString(f[:]), nil
	case 10:
		return new(big.Int).SetBytes(f[:]).String(), nil
	default:
		return "", fault.New(fault.KindInvalidArgument, "unsupported base %d (want 2, 10 or 16)", base)
	}
}

func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// Parse reads a fingerprint written by Format in the given base.
// A leading 0x, 0b or surrounding whitespace is accepted; missing leading zeros are tolerated.
func Parse(s string, base int) (Fingerprint, error) {
	var fp Fingerprint

	if base != 2 && base != 10 && base != 16 {
		return fp, fault.New(fault.KindInvalidArgument, "unsupported base %d (want 2, 10 or 16)", base)
	}

	s = strings.TrimSpace(s)

	switch base {
	case 2:
		s = strings.TrimPrefix(s, "0b")
	case 16:
		s = strings.TrimPrefix(s, "0x")
	}

	value, ok := new(big.Int).SetString(s, base)
	if !ok || value.Sign() < 0 {
		return fp, fault.New(fault.KindInvalidArgument, "invalid base-%d fingerprint %q", base, s)
	}

	if value.BitLen() > Bits {
		return fp, fault.New(fault.KindInvalidArgument, "fingerprint %q exceeds %d bits", s, Bits)
	}

	value.FillBytes(fp[:])

	return fp, nil
}

// MustFormat is Format for bases already validated by the caller.
func (f Fingerprint) MustFormat(base int) string {
	s, err := f.Format(base)
	if err != nil {
		panic(fmt.Sprintf("fingerprint: %v", err))
	}

	return s
}
