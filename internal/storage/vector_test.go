package storage

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEmbedding(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    []float32
		wantErr bool
	}{
		{
			name:    "pgvector text",
			payload: []byte("[0.6,0.8]"),
			want:    []float32{0.6, 0.8},
		},
		{
			name:    "text with whitespace",
			payload: []byte("  [1, -2.5, 3e-1]\n"),
			want:    []float32{1, -2.5, 0.3},
		},
		{
			name:    "float32 blob",
			payload: EncodeVectorBlob([]float32{0.25, -1, 4}),
			want:    []float32{0.25, -1, 4},
		},
		{
			name:    "empty",
			payload: nil,
			wantErr: true,
		},
		{
			name:    "empty brackets",
			payload: []byte("[]"),
			wantErr: true,
		},
		{
			name:    "unbracketed text",
			payload: []byte("0.1,0.2"),
			wantErr: true,
		},
		{
			name:    "malformed text",
			payload: []byte("[0.1,abc]"),
			wantErr: true,
		},
		{
			name:    "truncated blob",
			payload: []byte{0x00, 0x00, 0x80, 0x3f, 0xff},
			wantErr: true,
		},
		{
			name:    "NaN in blob",
			payload: EncodeVectorBlob([]float32{1, float32(math.NaN())}),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeEmbedding(tt.payload)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidVector)
				return
			}
			require.NoError(t, err)
			assert.InDeltaSlice(t, tt.want, got, 1e-6)
		})
	}
}

func TestEncodeVectorText(t *testing.T) {
	vector := []float32{0.5, -0.125, 1}
	text := EncodeVectorText(vector)
	assert.Equal(t, "[0.5,-0.125,1]", string(text))

	decoded, err := DecodeEmbedding(text)
	require.NoError(t, err)
	assert.Equal(t, vector, decoded)
}
