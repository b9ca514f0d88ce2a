package serializer

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	FormatJSON    = "json"
	FormatMsgpack = "msgpack"
)

// ErrUnknownFormat 格式名未注册
var ErrUnknownFormat = errors.New("serializer: unknown format")

// Serializer 事件负载的编解码
type Serializer interface {
	Serialize(v any) ([]byte, error)
	Deserialize(data []byte, v any) error
	// ContentType 随消息头发送，消费方据此选择解码方式
	ContentType() string
}

type formatCodec struct {
	contentType string
	marshal     func(any) ([]byte, error)
	unmarshal   func([]byte, any) error
}

func (c formatCodec) Serialize(v any) ([]byte, error)      { return c.marshal(v) }
func (c formatCodec) Deserialize(data []byte, v any) error { return c.unmarshal(data, v) }
func (c formatCodec) ContentType() string                  { return c.contentType }

var codecs = map[string]formatCodec{
	FormatJSON:    {"application/json", json.Marshal, json.Unmarshal},
	FormatMsgpack: {"application/msgpack", Encode, Decode},
}

// New 按格式名取序列化器，空字符串等同 json
func New(format string) (Serializer, error) {
	if format == "" {
		format = FormatJSON
	}
	c, ok := codecs[format]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return c, nil
}
