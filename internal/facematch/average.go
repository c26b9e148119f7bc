package facematch

import (
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

// AverageEmbedding returns the element-wise mean of the registration samples.
// At least constants.MinRegistrationSamples samples of equal length are required.
func AverageEmbedding(samples [][]float32) ([]float32, error) {
	if len(samples) < constants.MinRegistrationSamples {
		return nil, fmt.Errorf("%w: got %d, need at least %d", ErrNotEnoughSamples, len(samples), constants.MinRegistrationSamples)
	}

	dim := len(samples[0])
	if dim == 0 {
		return nil, fmt.Errorf("empty face sample: %w", ErrDimensionMismatch)
	}

	sum := make([]float64, dim)
	for i, s := range samples {
		if len(s) != dim {
			return nil, fmt.Errorf("sample %d has %d values, expected %d: %w", i, len(s), dim, ErrDimensionMismatch)
		}
		for j, v := range s {
			sum[j] += float64(v)
		}
	}

	mean := make([]float32, dim)
	for j := range sum {
		mean[j] = float32(sum[j] / float64(len(samples)))
	}
	return mean, nil
}
