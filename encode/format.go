package encode

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// FormatKey returns the literal form of key; ParseKey(FormatKey(key)) returns key.
func FormatKey(key interface{}) string {
	var sb strings.Builder
	formatKey(&sb, key)
	return sb.String()
}

func formatFloat(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	} else if math.IsInf(f, 1) {
		return "+Inf"
	} else if math.IsInf(f, -1) {
		return "-Inf"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

func formatKey(sb *strings.Builder, key interface{}) {
	switch key := key.(type) {
	case int:
		sb.WriteString(strconv.FormatInt(int64(key), 10))
	case int64:
		sb.WriteString(strconv.FormatInt(key, 10))
	case float64:
		sb.WriteString(formatFloat(key))
	case string:
		sb.WriteString(strconv.Quote(key))
	case []byte:
		sb.WriteByte('#')
		sb.WriteString(hex.EncodeToString(key))
	case time.Time:
		sb.WriteByte('@')
		sb.WriteString(formatTime(key))
	case Tuple:
		formatTuple(sb, key)
	case []interface{}:
		formatTuple(sb, key)
	default:
		fmt.Fprintf(sb, "%v", key)
	}
}

// formatTime uses RFC 3339 for years 0 to 9999, which is all it can represent, and
// seconds.nanoseconds since the Unix epoch otherwise.
func formatTime(t time.Time) string {
	t = t.UTC()
	if y := t.Year(); y >= 0 && y <= 9999 {
		return t.Format(time.RFC3339Nano)
	}
	return fmt.Sprintf("%d.%09d", t.Unix(), t.Nanosecond())
}

func parseTime(w string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, w)
	if err == nil {
		return t.UTC(), nil
	}

	sec, frac, _ := strings.Cut(w, ".")
	if sec == "" || len(frac) > 9 {
		return time.Time{}, err
	}
	n, perr := strconv.ParseInt(sec, 10, 64)
	if perr != nil {
		return time.Time{}, err
	}
	var nsec int64
	if frac != "" {
		nsec, perr = strconv.ParseInt(frac+strings.Repeat("0", 9-len(frac)), 10, 64)
		if perr != nil || frac[0] == '-' || frac[0] == '+' {
			return time.Time{}, err
		}
	}
	return time.Unix(n, nsec).UTC(), nil
}

func formatTuple(sb *strings.Builder, keys []interface{}) {
	sb.WriteByte('[')
	for idx, key := range keys {
		if idx > 0 {
			sb.WriteString(", ")
		}
		formatKey(sb, key)
	}
	sb.WriteByte(']')
}

type keyParser struct {
	s   string
	pos int
}

func (kp *keyParser) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("encode: key %q: offset %d: %s", kp.s, kp.pos, fmt.Sprintf(format, args...))
}

func (kp *keyParser) skipSpace() {
	for kp.pos < len(kp.s) && strings.IndexByte(" \t\r\n", kp.s[kp.pos]) >= 0 {
		kp.pos += 1
	}
}

func (kp *keyParser) word() string {
	start := kp.pos
	for kp.pos < len(kp.s) && strings.IndexByte(" \t\r\n,[]", kp.s[kp.pos]) < 0 {
		kp.pos += 1
	}
	return kp.s[start:kp.pos]
}

func (kp *keyParser) parseNumber(w string) (interface{}, error) {
	if strings.ContainsAny(w, ".eEIN") {
		f, err := strconv.ParseFloat(w, 64)
		if err != nil {
			return nil, kp.errorf("bad float: %s", w)
		}
		return f, nil
	}
	i, err := strconv.ParseInt(w, 10, 64)
	if err != nil {
		return nil, kp.errorf("bad integer: %s", w)
	}
	return i, nil
}

func (kp *keyParser) parseKey() (interface{}, error) {
	kp.skipSpace()
	if kp.pos >= len(kp.s) {
		return nil, kp.errorf("expected a key")
	}

	switch ch := kp.s[kp.pos]; {
	case ch == '[':
		kp.pos += 1
		tuple := Tuple{}
		kp.skipSpace()
		if kp.pos < len(kp.s) && kp.s[kp.pos] == ']' {
			kp.pos += 1
			return tuple, nil
		}
		for {
			key, err := kp.parseKey()
			if err != nil {
				return nil, err
			}
			tuple = append(tuple, key)

			kp.skipSpace()
			if kp.pos >= len(kp.s) {
				return nil, kp.errorf("expected ']'")
			}
			if kp.s[kp.pos] == ']' {
				kp.pos += 1
				return tuple, nil
			} else if kp.s[kp.pos] != ',' {
				return nil, kp.errorf("expected ',' or ']'")
			}
			kp.pos += 1
		}
	case ch == '"' || ch == '`':
		q, err := strconv.QuotedPrefix(kp.s[kp.pos:])
		if err != nil {
			return nil, kp.errorf("bad string")
		}
		kp.pos += len(q)
		s, err := strconv.Unquote(q)
		if err != nil {
			return nil, kp.errorf("bad string")
		}
		return s, nil
	case ch == '#':
		kp.pos += 1
		w := kp.word()
		b, err := hex.DecodeString(w)
		if err != nil {
			return nil, kp.errorf("bad bytes: %s", w)
		}
		return b, nil
	case ch == '@':
		kp.pos += 1
		w := kp.word()
		t, err := parseTime(w)
		if err != nil {
			return nil, kp.errorf("bad time: %s", w)
		}
		return t, nil
	case ch == '-' || ch == '+' || ch == '.' || (ch >= '0' && ch <= '9'):
		return kp.parseNumber(kp.word())
	}

	w := kp.word()
	if w == "" {
		return nil, kp.errorf("unexpected %q", kp.s[kp.pos])
	} else if w == "NaN" || w == "Inf" {
		return kp.parseNumber(w)
	}
	return w, nil
}

// ParseKey parses the literal form of a key: integers (-5), floats (3.5, 1e9, NaN, +Inf),
// quoted or bare strings ("a b", apple), bytes (#0aff), times (@2006-01-02T15:04:05Z or
// seconds since the Unix epoch, @-62198755200.5), and tuples ([1, "a", [2.5]]).
func ParseKey(s string) (interface{}, error) {
	kp := keyParser{s: s}
	key, err := kp.parseKey()
	if err != nil {
		return nil, err
	}
	kp.skipSpace()
	if kp.pos != len(kp.s) {
		return nil, kp.errorf("trailing characters")
	}
	return key, nil
}

// ParseKeyPrefix parses the key at the start of s and returns it along with the rest of s
// following any space after the key.
func ParseKeyPrefix(s string) (interface{}, string, error) {
	kp := keyParser{s: s}
	key, err := kp.parseKey()
	if err != nil {
		return nil, "", err
	}
	kp.skipSpace()
	return key, kp.s[kp.pos:], nil
}
