package embed

import (
	"crypto/sha512"
	"encoding/binary"
	"strconv"
)

// Deterministic returns the hash-derived vector for text.
//
// Component i is the first four bytes of SHA-512("{i}:{text}") read as a
// big-endian signed 32-bit integer and divided by 2^31, so every component
// lies in [-1, 1]. The result depends only on text and dims.
func Deterministic(text string, dims int) []float32 {
	if dims <= 0 {
		dims = DefaultDeterministicDimensions
	}
	out := make([]float32, dims)
	buf := make([]byte, 0, len(text)+12)
	for i := range out {
		buf = strconv.AppendInt(buf[:0], int64(i), 10)
		buf = append(buf, ':')
		buf = append(buf, text...)
		sum := sha512.Sum512(buf)
		out[i] = float32(float64(int32(binary.BigEndian.Uint32(sum[:4]))) / (1 << 31))
	}
	return out
}
