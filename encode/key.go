package encode

import (
	"bytes"
	"encoding/binary"
	"math"
	"time"
)

// Tuple is an ordered sequence of keys; it sorts element by element.
type Tuple []interface{}

const (
	// Keys are encoded as a tag followed by a binary representation of the key. The tags
	// determine the order across types: NaN < numbers < strings < bytes < times < tuples.
	TupleEndKeyTag = 0
	NaNKeyTag      = 140
	NumberKeyTag   = 141
	StringKeyTag   = 150
	BytesKeyTag    = 160
	TimeKeyTag     = 170
	TupleKeyTag    = 180

	intKind   = 1
	floatKind = 2

	deltaBias = 0x8000
	twoTo63   = float64(1 << 63)
)

func encodeKeyBytes(buf []byte, bytes []byte) []byte {
	for _, b := range bytes {
		if b == 0 || b == 1 {
			buf = append(buf, 1)
		}
		buf = append(buf, b)
	}
	return append(buf, 0)
}

// floatBits maps f onto a uint64 so that unsigned order matches numeric order.
func floatBits(f float64) uint64 {
	u := math.Float64bits(f)
	if u&(1<<63) != 0 {
		return ^u
	}
	return u | (1 << 63)
}

func bitsFloat(u uint64) float64 {
	if u&(1<<63) != 0 {
		return math.Float64frombits(u &^ (1 << 63))
	}
	return math.Float64frombits(^u)
}

// intDelta returns the difference between i and r, where r is float64(i).
func intDelta(i int64, r float64) int64 {
	if r >= twoTo63 {
		return i - math.MaxInt64 - 1
	}
	return i - int64(r)
}

func encodeNumber(buf []byte, f float64, delta int64, kind byte) []byte {
	buf = append(buf, NumberKeyTag)
	buf = EncodeUint64(buf, floatBits(f))
	buf = EncodeUint16(buf, uint16(delta+deltaBias))
	return append(buf, kind)
}

func appendInt(buf []byte, i int64) []byte {
	r := float64(i)
	return encodeNumber(buf, r, intDelta(i, r), intKind)
}

func appendFloat(buf []byte, f float64) []byte {
	if math.IsNaN(f) {
		return append(buf, NaNKeyTag)
	}
	if f == 0 {
		f = 0 // -0 and +0 are the same key
	}
	return encodeNumber(buf, f, 0, floatKind)
}

// EncodeKey returns the order preserving encoding of key.
func EncodeKey(key interface{}) ([]byte, error) {
	return AppendKey(nil, key)
}

// MustEncodeKey is like EncodeKey but panics if key can not be encoded.
func MustEncodeKey(key interface{}) []byte {
	buf, err := EncodeKey(key)
	if err != nil {
		panic(err)
	}
	return buf
}

// AppendKey appends the encoding of key to buf.
func AppendKey(buf []byte, key interface{}) ([]byte, error) {
	switch key := key.(type) {
	case int:
		return appendInt(buf, int64(key)), nil
	case int8:
		return appendInt(buf, int64(key)), nil
	case int16:
		return appendInt(buf, int64(key)), nil
	case int32:
		return appendInt(buf, int64(key)), nil
	case int64:
		return appendInt(buf, key), nil
	case uint8:
		return appendInt(buf, int64(key)), nil
	case uint16:
		return appendInt(buf, int64(key)), nil
	case uint32:
		return appendInt(buf, int64(key)), nil
	case uint:
		if uint64(key) > math.MaxInt64 {
			return nil, &KeyError{Key: key, Err: ErrUnsupportedKeyType}
		}
		return appendInt(buf, int64(key)), nil
	case uint64:
		if key > math.MaxInt64 {
			return nil, &KeyError{Key: key, Err: ErrUnsupportedKeyType}
		}
		return appendInt(buf, int64(key)), nil
	case float32:
		return appendFloat(buf, float64(key)), nil
	case float64:
		return appendFloat(buf, key), nil
	case string:
		buf = append(buf, StringKeyTag)
		return encodeKeyBytes(buf, []byte(key)), nil
	case []byte:
		buf = append(buf, BytesKeyTag)
		return encodeKeyBytes(buf, key), nil
	case time.Time:
		buf = append(buf, TimeKeyTag)
		buf = EncodeUint64(buf, uint64(key.Unix())^(1<<63))
		return EncodeUint32(buf, uint32(key.Nanosecond())), nil
	case Tuple:
		return appendTuple(buf, key)
	case []interface{}:
		return appendTuple(buf, key)
	}
	return nil, &KeyError{Key: key, Err: ErrUnsupportedKeyType}
}

func appendTuple(buf []byte, keys []interface{}) ([]byte, error) {
	buf = append(buf, TupleKeyTag)
	for _, key := range keys {
		var err error
		buf, err = AppendKey(buf, key)
		if err != nil {
			return nil, err
		}
	}
	return append(buf, TupleEndKeyTag), nil
}

type decoder struct {
	buf []byte
	off int
}

func (d *decoder) corrupt(reason string) error {
	return &CorruptError{Key: d.buf, Offset: d.off, Reason: reason}
}

func (d *decoder) next(n int) ([]byte, error) {
	if d.off+n > len(d.buf) {
		return nil, d.corrupt("truncated key")
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b, nil
}

func (d *decoder) decodeKeyBytes() ([]byte, error) {
	val := []byte{}
	for {
		b, err := d.next(1)
		if err != nil {
			return nil, err
		}
		switch b[0] {
		case 0:
			return val, nil
		case 1:
			b, err = d.next(1)
			if err != nil {
				return nil, err
			}
			if b[0] != 0 && b[0] != 1 {
				d.off -= 1
				return nil, d.corrupt("bad escape")
			}
		}
		val = append(val, b[0])
	}
}

func (d *decoder) decodeNumber(start int) (interface{}, error) {
	b, err := d.next(11)
	if err != nil {
		return nil, err
	}
	r := bitsFloat(binary.BigEndian.Uint64(b))
	delta := int64(binary.BigEndian.Uint16(b[8:])) - deltaBias

	var key interface{}
	switch b[10] {
	case intKind:
		if math.IsNaN(r) || math.IsInf(r, 0) || r != math.Trunc(r) || r < -twoTo63 ||
			r > twoTo63 {

			return nil, d.corrupt("bad integer")
		}
		if r == twoTo63 {
			if delta >= 0 {
				return nil, d.corrupt("bad integer")
			}
			key = delta + math.MaxInt64 + 1
		} else {
			key = int64(r) + delta
		}
	case floatKind:
		key = r
	default:
		return nil, d.corrupt("bad number kind")
	}

	if !bytes.Equal(appendKey(nil, key), d.buf[start:d.off]) {
		return nil, &CorruptError{Key: d.buf, Offset: start, Reason: "non-canonical number"}
	}
	return key, nil
}

func (d *decoder) decodeTime() (interface{}, error) {
	b, err := d.next(12)
	if err != nil {
		return nil, err
	}
	secs := int64(binary.BigEndian.Uint64(b) ^ (1 << 63))
	nsecs := binary.BigEndian.Uint32(b[8:])
	if nsecs >= uint32(time.Second) {
		return nil, d.corrupt("bad nanoseconds")
	}
	t := time.Unix(secs, int64(nsecs)).UTC()
	if t.Unix() != secs {
		return nil, d.corrupt("time out of range")
	}
	return t, nil
}

func (d *decoder) decodeKey() (interface{}, error) {
	start := d.off
	b, err := d.next(1)
	if err != nil {
		return nil, err
	}

	switch b[0] {
	case NaNKeyTag:
		return math.NaN(), nil
	case NumberKeyTag:
		return d.decodeNumber(start)
	case StringKeyTag:
		val, err := d.decodeKeyBytes()
		if err != nil {
			return nil, err
		}
		return string(val), nil
	case BytesKeyTag:
		return d.decodeKeyBytes()
	case TimeKeyTag:
		return d.decodeTime()
	case TupleKeyTag:
		tuple := Tuple{}
		for {
			if d.off >= len(d.buf) {
				return nil, d.corrupt("unterminated tuple")
			}
			if d.buf[d.off] == TupleEndKeyTag {
				d.off += 1
				return tuple, nil
			}
			key, err := d.decodeKey()
			if err != nil {
				return nil, err
			}
			tuple = append(tuple, key)
		}
	}

	d.off = start
	return nil, d.corrupt("unknown tag")
}

// DecodeKey returns the key encoded in buf. Integers decode as int64, floats as float64,
// times as UTC time.Time, and tuples as Tuple.
func DecodeKey(buf []byte) (interface{}, error) {
	d := decoder{buf: buf}
	key, err := d.decodeKey()
	if err != nil {
		return nil, err
	}
	if d.off != len(buf) {
		return nil, d.corrupt("trailing bytes")
	}
	return key, nil
}

func appendKey(buf []byte, key interface{}) []byte {
	buf, err := AppendKey(buf, key)
	if err != nil {
		panic(err)
	}
	return buf
}

// CompareKeys returns -1, 0, or 1 depending on whether k1 orders before, is equal to, or
// orders after k2. Only the encodings are compared.
func CompareKeys(k1, k2 interface{}) (int, error) {
	buf1, err := EncodeKey(k1)
	if err != nil {
		return 0, err
	}
	buf2, err := EncodeKey(k2)
	if err != nil {
		return 0, err
	}
	return bytes.Compare(buf1, buf2), nil
}
