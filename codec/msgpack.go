package codec

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"
)

// Msgpack is a Codec that serializes values using vmihailenco/msgpack/v5.
// The zero value is ready to use.
//
// Msgpack is compact and fast; be mindful of struct tag differences vs JSON.
// Use `msgpack:"fieldName"` tags if you need explicit control.
// Decoding is loose: every integer comes back as int64 (or uint64 above MaxInt64).
type Msgpack struct{}

var (
	_ Codec        = Msgpack{}
	_ TypedDecoder = Msgpack{}
)

func (Msgpack) Encode(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (Msgpack) DecodeInto(b []byte, dst any) error {
	return msgpack.Unmarshal(b, dst)
}

func (Msgpack) Decode(b []byte) (any, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.UseLooseInterfaceDecoding(true)
	dec.SetMapDecoder(func(d *msgpack.Decoder) (any, error) {
		return d.DecodeUntypedMap()
	})
	v, err := dec.DecodeInterfaceLoose()
	if err != nil {
		return nil, err
	}
	return normalizeMapKeys(v), nil
}
