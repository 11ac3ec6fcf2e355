package codec

import "fmt"

// LimitCodec wraps another codec to enforce a maximum allowed payload size
// at Decode time. Encode is forwarded to Inner unchanged.
// If MaxDecode <= 0, size limiting is disabled.
//
// Typical use: protect against oversized/malicious rows coming from a
// shared store.
type LimitCodec struct {
	// Inner is the underlying codec being wrapped. It must be set.
	Inner Codec
	// MaxDecode is the maximum permitted length (in bytes) of the incoming
	// payload for Decode. If payload length exceeds MaxDecode, Decode returns
	// an error without invoking Inner.
	MaxDecode int
}

func (c LimitCodec) Encode(v any) ([]byte, error) { return c.Inner.Encode(v) }
func (c LimitCodec) Decode(b []byte) (any, error) {
	if err := c.check(b); err != nil {
		return nil, err
	}
	return c.Inner.Decode(b)
}

func (c LimitCodec) DecodeInto(b []byte, dst any) error {
	if err := c.check(b); err != nil {
		return err
	}
	return DecodeInto(c.Inner, b, dst)
}

func (c LimitCodec) check(b []byte) error {
	if c.MaxDecode > 0 && len(b) > c.MaxDecode {
		return fmt.Errorf("payload too large: %d > %d", len(b), c.MaxDecode)
	}
	return nil
}
