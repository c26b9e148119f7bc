package facematch

import "math"

// EuclideanDistance computes the L2 distance between two vectors.
// Vectors of different length are infinitely far apart.
func EuclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// squaredDistanceWithin returns the squared L2 distance between a and b and
// true, or false as soon as the partial sum exceeds bound.
func squaredDistanceWithin(a, b []float32, bound float64) (float64, bool) {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
		if sum > bound {
			return sum, false
		}
	}
	return sum, true
}
