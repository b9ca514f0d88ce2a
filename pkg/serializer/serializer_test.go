package serializer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		format      string
		contentType string
		wantErr     bool
	}{
		{"", "application/json", false},
		{FormatJSON, "application/json", false},
		{FormatMsgpack, "application/msgpack", false},
		{"protobuf", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			s, err := New(tt.format)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.contentType, s.ContentType())

			original := testEvent{Kind: "daily_reset", InstanceID: 7, Wave: 2}
			data, err := s.Serialize(original)
			require.NoError(t, err)

			var decoded testEvent
			require.NoError(t, s.Deserialize(data, &decoded))
			assert.Equal(t, original.Kind, decoded.Kind)
			assert.Equal(t, original.InstanceID, decoded.InstanceID)
		})
	}
}
