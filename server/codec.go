package server

import (
	"github.com/goccy/go-json"
)

// jsonCodec replaces Connect's protobuf JSON codec so that plain Go structs
// can be used as messages.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (jsonCodec) Unmarshal(data []byte, msg any) error {
	return json.Unmarshal(data, msg)
}
