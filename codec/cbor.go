package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// CBOR is a Codec that serializes values using fxamacker/cbor.
// The zero value is NOT ready to use. Construct with NewCBOR or MustCBOR.
//
// Use deterministic=true for canonical encoding (RFC 8949 Core Deterministic)
// when you need byte-for-byte stable outputs (e.g., hashing/content addressing).
// Otherwise PreferredUnsortedEncOptions are used (sensible defaults).
// Time values are encoded as RFC3339Nano for stable, human-readable timestamps.
// Maps decode to map[string]any when every key is a string.
type CBOR struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var (
	_ Codec        = CBOR{}
	_ TypedDecoder = CBOR{}
)

// NewCBOR constructs a CBOR codec.
//   - Deterministic is true, uses CoreDetEncOptions (RFC 8949).
//   - Otherwise uses PreferredUnsortedEncOptions (smaller/faster defaults).
//
// Unsigned integers decode to int64 when they fit, matching the other codecs.
func NewCBOR(deterministic bool) (CBOR, error) {
	var eo cbor.EncOptions
	if deterministic {
		eo = cbor.CoreDetEncOptions()
	} else {
		eo = cbor.PreferredUnsortedEncOptions()
	}
	eo.Time = cbor.TimeRFC3339Nano

	em, err := eo.EncMode()
	if err != nil {
		return CBOR{}, err
	}
	dm, err := (cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		IntDec:         cbor.IntDecConvertSigned,
	}).DecMode()
	if err != nil {
		return CBOR{}, err
	}
	return CBOR{enc: em, dec: dm}, nil
}

// MustCBOR is like NewCBOR but panics on error.
// Should not use for prod just handy for package-level variables in tests/examples.
func MustCBOR(deterministic bool) CBOR {
	c, err := NewCBOR(deterministic)
	if err != nil {
		panic(err)
	}
	return c
}

// Encode encodes v as CBOR using the configured EncMode.
func (c CBOR) Encode(v any) ([]byte, error) {
	return c.enc.Marshal(v)
}

// DecodeInto decodes b into dst using the configured DecMode.
func (c CBOR) DecodeInto(b []byte, dst any) error {
	return c.dec.Unmarshal(b, dst)
}

// Decode decodes b using the configured DecMode.
func (c CBOR) Decode(b []byte) (any, error) {
	var v any
	if err := c.dec.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return normalizeMapKeys(v), nil
}
