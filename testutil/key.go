package testutil

import (
	"bytes"
	"math"
	"time"

	"github.com/leftmike/sortkv/encode"
)

// KeyEqual reports whether two decoded keys are the same: every NaN equals every other NaN,
// times compare with Equal, and tuples compare element by element.
func KeyEqual(k1, k2 interface{}) bool {
	switch k1 := k1.(type) {
	case float64:
		k2, ok := k2.(float64)
		return ok && (k1 == k2 || (math.IsNaN(k1) && math.IsNaN(k2)))
	case time.Time:
		k2, ok := k2.(time.Time)
		return ok && k1.Equal(k2)
	case []byte:
		k2, ok := k2.([]byte)
		return ok && bytes.Equal(k1, k2)
	case encode.Tuple:
		k2, ok := k2.(encode.Tuple)
		if !ok || len(k1) != len(k2) {
			return false
		}
		for idx := range k1 {
			if !KeyEqual(k1[idx], k2[idx]) {
				return false
			}
		}
		return true
	}
	return k1 == k2
}
