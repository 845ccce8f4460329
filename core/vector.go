package core

import (
	"encoding/binary"
	"math"

	"github.com/go-crypt/x/blake2b"
)

// TextFingerprint returns a 64-bit BLAKE2b digest of text.
// Identical text always produces the same fingerprint.
func TextFingerprint(text string) uint64 {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return binary.LittleEndian.Uint64(sum)
}

// ZeroVector returns an all-zero vector of length dim.
func ZeroVector(dim int) []float32 {
	return make([]float32, dim)
}

// IsZeroVector reports whether every component of v is zero.
func IsZeroVector(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// CosineSimilarity returns the cosine of the angle between a and b.
// Mismatched lengths and zero-magnitude inputs yield 0.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// ClampSimilarity maps a raw similarity onto the reported [0, 1] range.
// NaN, which pgvector yields for zero-magnitude vectors, becomes 0.
func ClampSimilarity(s float64) float32 {
	switch {
	case math.IsNaN(s) || s < 0:
		return 0
	case s > 1:
		return 1
	}
	return float32(s)
}

// CosineDistance is 1 minus CosineSimilarity.
func CosineDistance(a, b []float32) float32 {
	return 1 - CosineSimilarity(a, b)
}
