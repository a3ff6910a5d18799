package coordsvc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

const codecName = "json"

// jsonCodec lets the Coordination Service exchange plain Go structs
// over gRPC without generated protobuf messages: no protoc-gen-go
// client/server package was available to build against, so this codec
// takes its place while keeping grpc-go itself — its transport,
// framing, deadlines, and streaming — unchanged. Registered by name:
// clients opt in via grpc.CallContentSubtype(codecName) (see
// DialOption), and the server picks it from each request's content
// subtype.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
