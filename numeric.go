package dbcache

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"
)

const (
	maxInt64 = math.MaxInt64
	minInt64 = math.MinInt64
)

// toInt64 reads a counter value. Integers, floats (truncated), json.Number and numeric
// strings count; anything else is 0.
func toInt64(v any) int64 {
	switch x := v.(type) {
	case nil:
		return 0
	case json.Number:
		return parseNumber(x.String())
	case string:
		return parseNumber(x)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if u := rv.Uint(); u <= maxInt64 {
			return int64(u)
		}
		return maxInt64
	case reflect.Float32, reflect.Float64:
		return floatToInt64(rv.Float())
	default:
		return 0
	}
}

func parseNumber(s string) int64 {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return floatToInt64(f)
	}
	return 0
}

func floatToInt64(f float64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= maxInt64:
		return maxInt64
	case f <= minInt64:
		return minInt64
	default:
		return int64(f)
	}
}

// addClamped returns cur+delta, saturating on overflow and never below 0.
func addClamped(cur, delta int64) int64 {
	n := cur + delta
	switch {
	case delta > 0 && n < cur:
		n = maxInt64
	case delta < 0 && n > cur:
		n = minInt64
	}
	if n < 0 {
		return 0
	}
	return n
}
