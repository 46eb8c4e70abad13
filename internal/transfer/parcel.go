package transfer

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
)

const (
	encodingZstd     = "zstd"
	encodingIdentity = "identity"

	// maxParcelBody bounds the decompressed size of a parcel body.
	maxParcelBody = 1 << 30
)

// ErrBadParcel is returned for payloads that do not decode as a parcel.
var ErrBadParcel = errors.New("transfer: malformed parcel")

// Parcel is the unit exchanged over the wire: a file name and its bytes.
type Parcel struct {
	Name     string `cbor:"1,keyasint"`
	Encoding string `cbor:"2,keyasint"`
	Body     []byte `cbor:"3,keyasint"`
}

//nolint:gochecknoglobals
var (
	encMode     cbor.EncMode
	decMode     cbor.DecMode
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error

	// Core deterministic encoding: the same parcel always yields the same
	// bytes, and so the same content id.
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("transfer: CBOR encoder initialization failed: " + err.Error())
	}

	// A parcel is one flat map of three keys. Overall size is bounded by
	// the gRPC receive limit, the decompressed size by maxParcelBody.
	decMode, err = cbor.DecOptions{
		MaxNestedLevels:   4,
		MaxArrayElements:  16,
		MaxMapPairs:       16,
		IndefLength:       cbor.IndefLengthForbidden,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic("transfer: CBOR decoder initialization failed: " + err.Error())
	}

	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("transfer: zstd encoder initialization failed: " + err.Error())
	}

	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxParcelBody))
	if err != nil {
		panic("transfer: zstd decoder initialization failed: " + err.Error())
	}
}

// Pack compresses data and wraps it with name into a parcel.
// Data that does not shrink is stored as is.
func Pack(name string, data []byte) ([]byte, error) {
	parcel := Parcel{Name: name, Encoding: encodingZstd, Body: zstdEncoder.EncodeAll(data, nil)}

	if len(parcel.Body) >= len(data) {
		parcel.Encoding = encodingIdentity
		parcel.Body = data
	}

	raw, err := encMode.Marshal(parcel)
	if err != nil {
		return nil, fmt.Errorf("encoding parcel: %w", err)
	}

	return raw, nil
}

// Unpack reverses Pack.
func Unpack(raw []byte) (name string, data []byte, err error) {
	var parcel Parcel

	if err := decMode.Unmarshal(raw, &parcel); err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrBadParcel, err)
	}

	switch parcel.Encoding {
	case encodingIdentity:
		data = parcel.Body
	case encodingZstd:
		data, err = zstdDecoder.DecodeAll(parcel.Body, nil)
		if err != nil {
			return "", nil, fmt.Errorf("%w: decompressing: %w", ErrBadParcel, err)
		}
	default:
		return "", nil, fmt.Errorf("%w: unknown encoding %q", ErrBadParcel, parcel.Encoding)
	}

	return parcel.Name, data, nil
}
