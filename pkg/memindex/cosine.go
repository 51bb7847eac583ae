package memindex

import "math"

// Cosine computes the cosine similarity between two vectors of equal
// length. By definition it returns 0 when either vector has zero norm.
// Unequal lengths indicate an embedding-dimension mismatch and return
// ErrDimensionMismatch.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
