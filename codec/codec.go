// Package codec serializes cached values for the durable store.
//
// Values are heterogeneous (scalars, maps, slices, structs), so codecs work on any.
// Decode returns the generic shape of the payload: maps decode to map[string]any,
// arrays to []any, integers to int64 and other numbers to float64 where the format allows.
// DecodeInto restores a concrete Go type instead.
package codec

import "encoding/json"

// Codec encodes/decodes values to []byte for storage.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(b []byte) (any, error)
}

// TypedDecoder is implemented by codecs that can decode into a caller-supplied
// destination (a non-nil pointer) without going through the generic shape.
type TypedDecoder interface {
	DecodeInto(b []byte, dst any) error
}

// DecodeInto decodes b into dst using c's own DecodeInto when it has one.
// Other codecs decode to the generic shape, which is then converted into dst via JSON.
func DecodeInto(c Codec, b []byte, dst any) error {
	if td, ok := c.(TypedDecoder); ok {
		return td.DecodeInto(b, dst)
	}
	v, err := c.Decode(b)
	if err != nil {
		return err
	}
	return convert(v, dst)
}

func convert(v any, dst any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}
