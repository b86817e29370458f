package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidVector is returned when an embedding payload cannot be decoded
var ErrInvalidVector = errors.New("invalid vector payload")

// DecodeEmbedding parses a stored name embedding. Two encodings are accepted:
// pgvector text ("[0.1,0.2,...]") as written by the offline embedding job, and
// little-endian float32 blobs.
func DecodeEmbedding(payload []byte) ([]float32, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidVector)
	}

	if isPrintable(trimmed) {
		if trimmed[0] != '[' || trimmed[len(trimmed)-1] != ']' {
			return nil, fmt.Errorf("%w: text payload must be bracketed", ErrInvalidVector)
		}
		var vector []float32
		if err := json.Unmarshal(trimmed, &vector); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidVector, err)
		}
		if len(vector) == 0 {
			return nil, fmt.Errorf("%w: empty vector", ErrInvalidVector)
		}
		return vector, checkFinite(vector)
	}

	if len(payload)%4 != 0 {
		return nil, fmt.Errorf("%w: blob length %d is not a multiple of 4", ErrInvalidVector, len(payload))
	}
	vector := deserializeVector(payload)
	return vector, checkFinite(vector)
}

// EncodeVectorText formats a vector in pgvector text form
func EncodeVectorText(vector []float32) []byte {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vector {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
	}
	b.WriteByte(']')
	return []byte(b.String())
}

// EncodeVectorBlob converts a float32 slice to a little-endian byte blob
func EncodeVectorBlob(vector []float32) []byte {
	return serializeVector(vector)
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// isPrintable reports whether payload is printable ASCII, i.e. a text encoding
func isPrintable(payload []byte) bool {
	for _, c := range payload {
		if c > 0x7e || (c < 0x20 && c != '\n' && c != '\r' && c != '\t') {
			return false
		}
	}
	return true
}

func checkFinite(vector []float32) error {
	for i, v := range vector {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fmt.Errorf("%w: non-finite value at index %d", ErrInvalidVector, i)
		}
	}
	return nil
}
