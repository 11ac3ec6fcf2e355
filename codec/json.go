package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// JSON is the default codec. Integral numbers decode to int64, others to float64,
// so a bare decimal literal written by a counter decodes back to the same number.
type JSON struct{}

var (
	_ Codec        = JSON{}
	_ TypedDecoder = JSON{}
)

func (JSON) Encode(v any) ([]byte, error) { return json.Marshal(v) }

func (JSON) DecodeInto(b []byte, dst any) error { return json.Unmarshal(b, dst) }

func (JSON) Decode(b []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("codec: trailing data after JSON value")
	}
	return normalizeNumbers(v), nil
}

func normalizeNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[string]any:
		for k, e := range x {
			x[k] = normalizeNumbers(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = normalizeNumbers(e)
		}
		return x
	default:
		return v
	}
}
