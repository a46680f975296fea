package proto

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/encoding/protojson"
	protoapi "google.golang.org/protobuf/proto"
)

// CodecName is the content subtype negotiated by clients ("application/grpc+json").
const CodecName = "json"

func init() {
	encoding.RegisterCodec(Codec{})
}

// Codec marshals plain Go messages with encoding/json and protobuf
// well-known types with protojson.
type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error) {
	if m, ok := v.(protoapi.Message); ok {
		return protojson.Marshal(m)
	}
	return json.Marshal(v)
}

func (Codec) Unmarshal(data []byte, v any) error {
	if m, ok := v.(protoapi.Message); ok {
		return protojson.Unmarshal(data, m)
	}
	return json.Unmarshal(data, v)
}

func (Codec) Name() string { return CodecName }
