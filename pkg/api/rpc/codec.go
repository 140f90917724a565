// Package rpc carries the scheduler's gRPC wire layer. The service
// descriptors and client stubs are hand-written the way
// protoc-gen-go-grpc would emit them, without a protoc step in the
// build: messages travel as JSON under a custom encoding.Codec
// registered as "proto" (overriding grpc-go's own registration of that
// name) instead of compiled protobuf types. Everything else —
// *grpc.Server, *grpc.ClientConn, grpc.Invoke/NewStream, status/codes,
// deadlines, interceptors — is the stock google.golang.org/grpc stack.
package rpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

const codecName = "proto"

// jsonCodec implements encoding.Codec. Registering it under "proto"
// replaces grpc-go's default codec for that name (the name every gRPC
// call negotiates unless content-subtype says otherwise), which is how a
// hand-written client/server pair gets JSON framing without either side
// requesting a nonstandard content-type.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return codecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
