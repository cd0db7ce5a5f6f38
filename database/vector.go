package database

import (
	"encoding/binary"
	"fmt"
	"math"
)

// PadOrTruncate resizes a vector to the given dimension: truncated when
// longer, zero-padded when shorter. Explicit lossy policy shared by insert
// and query paths; never silent corruption.
func PadOrTruncate(vector []float32, dimension int) []float32 {
	if len(vector) == dimension {
		return vector
	}
	out := make([]float32, dimension)
	copy(out, vector)
	return out
}

// encodeLocationID serializes a location identifier into the fixed-width
// payload attached to each indexed vector.
func encodeLocationID(id int64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(id))
	return buf
}

// decodeLocationID reverses encodeLocationID; ok is false for payloads of
// the wrong width.
func decodeLocationID(payload []byte) (int64, bool) {
	if len(payload) != 8 {
		return 0, false
	}
	return int64(binary.LittleEndian.Uint64(payload)), true
}

// encodeVector serializes a vector as little-endian float32 values.
func encodeVector(vector []float32) []byte {
	buf := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeVector reverses encodeVector.
func decodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("blob length %d is not a multiple of 4", len(blob))
	}
	out := make([]float32, len(blob)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return out, nil
}
