package serializer

import (
	"bytes"
	"reflect"

	"github.com/hashicorp/go-msgpack/v2/codec"
	"github.com/lk2023060901/xdooria-dungeon/pkg/pool/bytebuff"
)

// 字符串按 str 类型写出，解码到 any 时 map 统一为 map[string]any
var msgpackHandle = func() *codec.MsgpackHandle {
	h := &codec.MsgpackHandle{WriteExt: true}
	h.MapType = reflect.TypeFor[map[string]any]()
	h.RawToString = true
	return h
}()

// Encode 编码到池化缓冲区，返回独立的副本
func Encode(v any) ([]byte, error) {
	buf := bytebuff.Get()
	defer bytebuff.Put(buf)

	if err := codec.NewEncoder(buf, msgpackHandle).Encode(v); err != nil {
		return nil, err
	}
	return bytes.Clone(buf.B), nil
}

// Decode 解码 Encode 的输出
func Decode(data []byte, v any) error {
	return codec.NewDecoderBytes(data, msgpackHandle).Decode(v)
}
