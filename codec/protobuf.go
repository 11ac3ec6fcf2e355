package codec

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Protobuf frames values as google.protobuf.Value messages.
// Only JSON-shaped values are accepted (nil, bool, numbers, string, []any, map[string]any);
// every number decodes as float64.
type Protobuf struct{}

var (
	_ Codec        = Protobuf{}
	_ TypedDecoder = Protobuf{}
)

func (Protobuf) Encode(v any) ([]byte, error) {
	pv, err := structpb.NewValue(v)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(pv)
}

func (Protobuf) Decode(b []byte) (any, error) {
	var pv structpb.Value
	if err := proto.Unmarshal(b, &pv); err != nil {
		return nil, err
	}
	return pv.AsInterface(), nil
}

// DecodeInto converts the decoded Value into dst through its JSON form,
// so whole floats land in integer fields.
func (p Protobuf) DecodeInto(b []byte, dst any) error {
	v, err := p.Decode(b)
	if err != nil {
		return err
	}
	return convert(v, dst)
}
