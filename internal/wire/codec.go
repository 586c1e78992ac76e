package wire

import (
	"bytes"
	"encoding/gob"
)

// Codec is a gRPC encoding.Codec that marshals the message shapes in this
// package with encoding/gob instead of protobuf, so the driver can use a
// real gRPC transport without generated .proto stubs. Every message type
// defined in this package must be gob-encodable (exported fields only).
type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (Codec) Unmarshal(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func (Codec) Name() string { return "ojp-gob" }
