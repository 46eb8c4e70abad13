package permcodec

import (
	"strings"

	"github.com/idelchi/meshmark/internal/fault"
)

// Bits is a bit string, one element per bit, each 0 or 1.
type Bits []byte

// ParseBits parses a string of '0' and '1' characters.
func ParseBits(s string) (Bits, error) {
	bits := make(Bits, len(s))

	for i := range len(s) {
		switch s[i] {
		case '0':
		case '1':
			bits[i] = 1
		default:
			return nil, fault.New(fault.KindInvalidArgument, "invalid bit %q at offset %d", s[i], i)
		}
	}

	return bits, nil
}

// FromBytes expands data into bits, most significant bit first.
func FromBytes(data []byte) Bits {
	bits := make(Bits, 0, 8*len(data))

	for _, b := range data {
		for shift := 7; shift >= 0; shift-- {
			bits = append(bits, (b>>shift)&1)
		}
	}

	return bits
}

// Bytes packs the bits into bytes, most significant bit first.
// A trailing partial byte is zero-filled on the right.
func (b Bits) Bytes() []byte {
	out := make([]byte, (len(b)+7)/8)

	for i, bit := range b {
		if bit != 0 {
			out[i/8] |= 1 << (7 - i%8)
		}
	}

	return out
}

func (b Bits) String() string {
	var sb strings.Builder

	sb.Grow(len(b))

	for _, bit := range b {
		sb.WriteByte('0' + bit)
	}

	return sb.String()
}

func (b Bits) validate() error {
	for i, bit := range b {
		if bit > 1 {
			return fault.New(fault.KindInvalidArgument, "bit %d has value %d", i, bit)
		}
	}

	return nil
}
