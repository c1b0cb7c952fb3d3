// Package codec turns the doordb wire schema into bytes and back.
//
// A codec encodes two kinds of value: the outbound message.Query and the inbound
// message.Envelope. Both encodings are self-describing (tag + fields), so a
// decoder never needs to know which request produced a buffer.
package codec

import (
	"errors"
	"fmt"
)

type CodecType byte

const (
	CodecTypeCBOR   CodecType = 0
	CodecTypeBinary CodecType = 1
)

var (
	// ErrUnknownVariant is returned when a buffer names a union case this schema does not have.
	ErrUnknownVariant = errors.New("codec: unknown variant")
	// ErrMalformed is returned when a buffer is not a well-formed encoding.
	ErrMalformed = errors.New("codec: malformed data")
	// ErrUnsupportedValue is returned for values that are not part of the schema.
	ErrUnsupportedValue = errors.New("codec: unsupported value")
)

type Codec interface {
	// Encode accepts a message.Query or a message.Envelope.
	Encode(v any) ([]byte, error)
	// Decode accepts a *message.Query or a *message.Envelope.
	Decode(data []byte, v any) error
	Type() CodecType // 0=CBOR, 1=Binary
}

func GetCodec(codecType CodecType) (Codec, error) {
	switch codecType {
	case CodecTypeCBOR:
		return &CBORCodec{}, nil
	case CodecTypeBinary:
		return &BinaryCodec{}, nil
	}
	return nil, fmt.Errorf("codec: unsupported codec type %d", codecType)
}

// ParseCodecType maps a configuration name ("cbor", "binary") to its CodecType.
func ParseCodecType(name string) (CodecType, error) {
	switch name {
	case "", "cbor":
		return CodecTypeCBOR, nil
	case "binary":
		return CodecTypeBinary, nil
	}
	return 0, fmt.Errorf("codec: unknown codec %q", name)
}

func (t CodecType) String() string {
	switch t {
	case CodecTypeCBOR:
		return "cbor"
	case CodecTypeBinary:
		return "binary"
	}
	return fmt.Sprintf("CodecType(%d)", byte(t))
}

func unsupported(v any) error {
	return fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
}
