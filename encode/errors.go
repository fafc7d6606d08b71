package encode

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedKeyType = errors.New("encode: unsupported key type")
	ErrCorruptEncoding    = errors.New("encode: corrupt key encoding")
)

// KeyError is returned when a key can not be encoded.
type KeyError struct {
	Key interface{}
	Err error
}

func (ke *KeyError) Error() string {
	return fmt.Sprintf("%s: %T: %v", ke.Err, ke.Key, ke.Key)
}

func (ke *KeyError) Unwrap() error {
	return ke.Err
}

// CorruptError is returned when an encoded key does not match the key grammar; Offset is
// the position in Key where decoding failed.
type CorruptError struct {
	Key    []byte
	Offset int
	Reason string
}

func (ce *CorruptError) Error() string {
	return fmt.Sprintf("%s: %s at offset %d: %x", ErrCorruptEncoding, ce.Reason, ce.Offset,
		ce.Key)
}

func (ce *CorruptError) Unwrap() error {
	return ErrCorruptEncoding
}
