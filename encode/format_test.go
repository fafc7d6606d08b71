package encode_test

import (
	"math"
	"testing"
	"time"

	"github.com/leftmike/sortkv/encode"
	"github.com/leftmike/sortkv/testutil"
)

func TestFormatKey(t *testing.T) {
	cases := []struct {
		key interface{}
		s   string
	}{
		{int64(-5), "-5"},
		{0, "0"},
		{3.5, "3.5"},
		{3.0, "3.0"},
		{1e21, "1e+21"},
		{math.NaN(), "NaN"},
		{math.Inf(1), "+Inf"},
		{math.Inf(-1), "-Inf"},
		{"apple", `"apple"`},
		{"a \"b\"\n", `"a \"b\"\n"`},
		{[]byte{0x0a, 0xff}, "#0aff"},
		{time.Date(2024, 1, 2, 3, 4, 5, 6, time.UTC), "@2024-01-02T03:04:05.000000006Z"},
		{time.Unix(-62198755200, 500000000).UTC(), "@-62198755200.500000000"},
		{time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC), "@253402300800.000000000"},
		{encode.Tuple{}, "[]"},
		{encode.Tuple{int64(1), "a", encode.Tuple{2.5}}, `[1, "a", [2.5]]`},
	}

	for _, c := range cases {
		s := encode.FormatKey(c.key)
		if s != c.s {
			t.Errorf("FormatKey(%#v) got %s want %s", c.key, s, c.s)
		}
	}

	for _, key := range orderedKeys {
		if f, ok := key.(float64); ok && math.IsNaN(f) {
			continue
		}
		s := encode.FormatKey(key)
		ret, err := encode.ParseKey(s)
		if err != nil {
			t.Errorf("ParseKey(%s) failed with %s", s, err)
		} else if !testutil.KeyEqual(ret, key) {
			t.Errorf("ParseKey(%s) got %#v want %#v", s, ret, key)
		}
	}
}

func TestParseKey(t *testing.T) {
	cases := []struct {
		fln  testutil.FileLineNumber
		s    string
		key  interface{}
		fail bool
	}{
		{fln: fln(), s: "-5", key: int64(-5)},
		{fln: fln(), s: " 42 ", key: int64(42)},
		{fln: fln(), s: "+7", key: int64(7)},
		{fln: fln(), s: "3.5", key: 3.5},
		{fln: fln(), s: ".5", key: 0.5},
		{fln: fln(), s: "1e3", key: 1000.0},
		{fln: fln(), s: "Inf", key: math.Inf(1)},
		{fln: fln(), s: "-Inf", key: math.Inf(-1)},
		{fln: fln(), s: "apple", key: "apple"},
		{fln: fln(), s: `"two words"`, key: "two words"},
		{fln: fln(), s: "`raw`", key: "raw"},
		{fln: fln(), s: "#", key: []byte{}},
		{fln: fln(), s: "#00ff", key: []byte{0, 255}},
		{fln: fln(), s: "@1970-01-01T00:00:01Z", key: time.Unix(1, 0).UTC()},
		{fln: fln(), s: "@2000-01-01T01:00:00+01:00",
			key: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)},
		{fln: fln(), s: "@-62198755200.5", key: time.Unix(-62198755200, 500000000).UTC()},
		{fln: fln(), s: "@253402300800", key: time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC)},
		{fln: fln(), s: "[]", key: encode.Tuple{}},
		{fln: fln(), s: "[ 1 ,a,[ ] ]", key: encode.Tuple{int64(1), "a", encode.Tuple{}}},
		{fln: fln(), s: `[[1, 2], "x y", #01]`,
			key: encode.Tuple{encode.Tuple{int64(1), int64(2)}, "x y", []byte{1}}},

		{fln: fln(), s: "", fail: true},
		{fln: fln(), s: "   ", fail: true},
		{fln: fln(), s: "99999999999999999999", fail: true},
		{fln: fln(), s: "1.2.3", fail: true},
		{fln: fln(), s: "-", fail: true},
		{fln: fln(), s: `"abc`, fail: true},
		{fln: fln(), s: "#0g", fail: true},
		{fln: fln(), s: "#abc", fail: true},
		{fln: fln(), s: "@yesterday", fail: true},
		{fln: fln(), s: "@1.-5", fail: true},
		{fln: fln(), s: "@1.0123456789", fail: true},
		{fln: fln(), s: "[1, 2", fail: true},
		{fln: fln(), s: "[1 2]", fail: true},
		{fln: fln(), s: "[1,]", fail: true},
		{fln: fln(), s: "]", fail: true},
		{fln: fln(), s: "a b", fail: true},
	}

	for _, c := range cases {
		key, err := encode.ParseKey(c.s)
		if c.fail {
			if err == nil {
				t.Errorf("%sParseKey(%q) did not fail: %#v", c.fln, c.s, key)
			}
		} else if err != nil {
			t.Errorf("%sParseKey(%q) failed with %s", c.fln, c.s, err)
		} else if !testutil.KeyEqual(key, c.key) {
			t.Errorf("%sParseKey(%q) got %#v want %#v", c.fln, c.s, key, c.key)
		}
	}
}

func TestParseKeyPrefix(t *testing.T) {
	cases := []struct {
		fln  testutil.FileLineNumber
		s    string
		key  interface{}
		rest string
		fail bool
	}{
		{fln: fln(), s: "apple red", key: "apple", rest: "red"},
		{fln: fln(), s: `"a b"   c d`, key: "a b", rest: "c d"},
		{fln: fln(), s: "[1, 2.5] #00", key: encode.Tuple{int64(1), 2.5}, rest: "#00"},
		{fln: fln(), s: "-5", key: int64(-5), rest: ""},
		{fln: fln(), s: "[1, 2 x", fail: true},
		{fln: fln(), s: "", fail: true},
	}

	for _, c := range cases {
		key, rest, err := encode.ParseKeyPrefix(c.s)
		if c.fail {
			if err == nil {
				t.Errorf("%sParseKeyPrefix(%q) did not fail", c.fln, c.s)
			}
		} else if err != nil {
			t.Errorf("%sParseKeyPrefix(%q) failed with %s", c.fln, c.s, err)
		} else if !testutil.KeyEqual(key, c.key) || rest != c.rest {
			t.Errorf("%sParseKeyPrefix(%q) got %#v, %q want %#v, %q", c.fln, c.s, key, rest,
				c.key, c.rest)
		}
	}
}
