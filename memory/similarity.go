package memory

import "math"

// Cosine computes the cosine similarity of two vectors:
// dot(a,b) / (|a| * |b|).
//
// The result is 0 whenever either vector's magnitude is zero, which avoids
// division by zero and gives zero-vector entries uniformly the lowest
// practical score. Mismatched lengths also score 0 rather than reading out
// of range. Symmetric; self-similarity of any nonzero vector is 1 within
// floating-point tolerance.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		av, bv := float64(a[i]), float64(b[i])
		dot += av * bv
		magA += av * av
		magB += bv * bv
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// l2Normalize scales v to unit length in place. A zero-magnitude vector is
// returned unchanged.
func l2Normalize(v []float32) []float32 {
	var mag float64
	for _, x := range v {
		mag += float64(x) * float64(x)
	}
	if mag == 0 {
		return v
	}
	mag = math.Sqrt(mag)
	for i, x := range v {
		v[i] = float32(float64(x) / mag)
	}
	return v
}
