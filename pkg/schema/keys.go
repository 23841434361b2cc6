package schema

import (
	"fmt"
	"math"
	"strconv"
)

// CanonicalKey is the single text form every key comparison goes through.
// The grid hands values back as text, so 7, int64(7), 7.0 and "7" must all
// compare equal.
func CanonicalKey(v any) string {
	switch k := v.(type) {
	case nil:
		return ""
	case string:
		return k
	case int:
		return strconv.Itoa(k)
	case int8, int16, int32, int64:
		return fmt.Sprintf("%d", k)
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", k)
	case float32:
		return canonicalFloat(float64(k))
	case float64:
		return canonicalFloat(k)
	case bool:
		// Sheets renders booleans in upper case.
		if k {
			return "TRUE"
		}
		return "FALSE"
	}
	return fmt.Sprint(v)
}

func canonicalFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// NextKey returns the smallest positive integer not present in existing.
func NextKey(existing []any) int {
	taken := make(map[string]bool, len(existing))
	for _, v := range existing {
		taken[CanonicalKey(v)] = true
	}
	k := 1
	for taken[strconv.Itoa(k)] {
		k++
	}
	return k
}

// IsUnset reports whether a key cell holds no identity.
func IsUnset(v any) bool {
	return CanonicalKey(v) == ""
}
