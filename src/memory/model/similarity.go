package model

import "math"

// CosineSimilarity computes the cosine similarity between two vectors.
// Mismatched lengths compare over the shorter prefix; empty or zero-norm
// vectors yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	length := len(a)
	if len(b) < length {
		length = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < length; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// ClampedSimilarity maps cosine similarity into [0,1]; negative similarities
// clamp to 0 so anti-correlated vectors never contribute relevance.
func ClampedSimilarity(a, b []float32) float64 {
	sim := CosineSimilarity(a, b)
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}

// Centroid returns the element-wise mean of the given vectors. Vectors of
// differing lengths contribute over their own length.
func Centroid(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	width := 0
	for _, vec := range vectors {
		if len(vec) > width {
			width = len(vec)
		}
	}
	if width == 0 {
		return nil
	}
	sum := make([]float64, width)
	for _, vec := range vectors {
		for i, v := range vec {
			sum[i] += float64(v)
		}
	}
	out := make([]float32, width)
	n := float64(len(vectors))
	for i, v := range sum {
		out[i] = float32(v / n)
	}
	return out
}
