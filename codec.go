package jobstatus

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec defines how records are serialized in the backend.
type Codec interface {
	// Encode serializes a record to bytes.
	Encode(r *Record) ([]byte, error)

	// Decode deserializes bytes into a record.
	Decode(data []byte) (*Record, error)

	// Name returns the codec identifier ("json", "msgpack").
	Name() string
}

// Codec names accepted by GetCodec.
const (
	CodecNameJSON    = "json"
	CodecNameMsgpack = "msgpack"
)

// GetCodec returns a codec by name. Defaults to JSON.
func GetCodec(name string) Codec {
	switch name {
	case CodecNameMsgpack:
		return &MsgpackCodec{}
	default:
		return &JSONCodec{}
	}
}

// JSONCodec stores records as flat JSON objects. This is the format external
// dashboards read.
type JSONCodec struct{}

func (c *JSONCodec) Encode(r *Record) ([]byte, error) {
	return json.Marshal(r)
}

func (c *JSONCodec) Decode(data []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *JSONCodec) Name() string { return CodecNameJSON }

// MsgpackCodec stores records as MessagePack maps.
type MsgpackCodec struct{}

func (c *MsgpackCodec) Encode(r *Record) ([]byte, error) {
	return msgpack.Marshal(r.toMap())
}

func (c *MsgpackCodec) Decode(data []byte) (*Record, error) {
	var m map[string]any
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return recordFromMap(m)
}

func (c *MsgpackCodec) Name() string { return CodecNameMsgpack }
