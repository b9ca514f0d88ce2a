package serializer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct {
	Kind       string `codec:"kind" json:"kind"`
	InstanceID int64  `codec:"instance_id" json:"instance_id"`
	Wave       int    `codec:"wave" json:"wave"`
	Data       []byte `codec:"data" json:"data"`
}

func TestEncodeDecode(t *testing.T) {
	t.Run("struct", func(t *testing.T) {
		original := &testEvent{Kind: "wave_cleared", InstanceID: 5001, Wave: 3, Data: []byte("x")}

		data, err := Encode(original)
		require.NoError(t, err)
		assert.NotEmpty(t, data)

		var decoded testEvent
		require.NoError(t, Decode(data, &decoded))
		assert.Equal(t, *original, decoded)
	})

	t.Run("map", func(t *testing.T) {
		data, err := Encode(map[string]any{"key": "value"})
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, Decode(data, &decoded))
		assert.Equal(t, "value", decoded["key"])
	})

	t.Run("large payload", func(t *testing.T) {
		payload := make([]byte, 64<<10)
		for i := range payload {
			payload[i] = byte(i)
		}

		data, err := Encode(&testEvent{Data: payload})
		require.NoError(t, err)

		var decoded testEvent
		require.NoError(t, Decode(data, &decoded))
		assert.Equal(t, payload, decoded.Data)
	})
}

func TestEncodeDoesNotAlias(t *testing.T) {
	first, err := Encode("first")
	require.NoError(t, err)
	_, err = Encode("second value that reuses the pooled buffer")
	require.NoError(t, err)

	var s string
	require.NoError(t, Decode(first, &s))
	assert.Equal(t, "first", s)
}

func TestDecodeInvalidData(t *testing.T) {
	var decoded testEvent
	assert.Error(t, Decode([]byte("invalid msgpack data"), &decoded))
}

func BenchmarkEncode(b *testing.B) {
	ev := &testEvent{Kind: "instance_created", InstanceID: 5001, Wave: 1}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = Encode(ev)
	}
}
