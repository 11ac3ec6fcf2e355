package codec

import "fmt"

// normalizeMapKeys turns map[any]any (as produced by binary formats for non-string keys
// or nested maps) into map[string]any and recurses into containers.
func normalizeMapKeys(v any) any {
	switch x := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[fmt.Sprint(k)] = normalizeMapKeys(e)
		}
		return out
	case map[string]any:
		for k, e := range x {
			x[k] = normalizeMapKeys(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = normalizeMapKeys(e)
		}
		return x
	default:
		return v
	}
}
