package encode

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ValueCodec converts between application values and the opaque bytes kept in a store.
type ValueCodec interface {
	EncodeValue(v interface{}) ([]byte, error)
	DecodeValue(buf []byte, v interface{}) error
}

type rawValues struct{}

// RawValues passes values through unchanged: it encodes []byte and string values, and
// decodes into *[]byte or *string.
var RawValues ValueCodec = rawValues{}

func (rawValues) EncodeValue(v interface{}) ([]byte, error) {
	switch v := v.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	return nil, fmt.Errorf("encode: raw values must be []byte or string; got %T", v)
}

func (rawValues) DecodeValue(buf []byte, v interface{}) error {
	switch v := v.(type) {
	case *[]byte:
		*v = append([]byte{}, buf...)
	case *string:
		*v = string(buf)
	default:
		return fmt.Errorf("encode: raw values decode into *[]byte or *string; got %T", v)
	}
	return nil
}

type cborValues struct {
	em cbor.EncMode
	dm cbor.DecMode
}

// NewCBORValues returns a ValueCodec that stores values as deterministic CBOR.
func NewCBORValues() (ValueCodec, error) {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	dm, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return nil, err
	}
	return cborValues{em: em, dm: dm}, nil
}

func (cv cborValues) EncodeValue(v interface{}) ([]byte, error) {
	buf, err := cv.em.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode: cbor: %w", err)
	}
	return buf, nil
}

func (cv cborValues) DecodeValue(buf []byte, v interface{}) error {
	err := cv.dm.Unmarshal(buf, v)
	if err != nil {
		return fmt.Errorf("encode: cbor: %w", err)
	}
	return nil
}
