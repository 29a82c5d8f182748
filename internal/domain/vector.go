package domain

import "math"

// Cosine computes the cosine similarity between two embedding vectors.
// Vectors of different lengths are compared over the shorter prefix;
// a zero-magnitude operand yields 0 (no match), never an error.
func Cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, magA, magB float64
	for i := 0; i < n; i++ {
		va := float64(a[i])
		vb := float64(b[i])
		dot += va * vb
		magA += va * va
		magB += vb * vb
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// L2Normalize scales the vector to unit length in place so that cosine
// similarity reduces to a plain dot product. Zero vectors are left as-is.
func L2Normalize(v []float32) {
	var mag float64
	for _, x := range v {
		mag += float64(x) * float64(x)
	}
	if mag == 0 {
		return
	}
	mag = math.Sqrt(mag)
	for i := range v {
		v[i] = float32(float64(v[i]) / mag)
	}
}
