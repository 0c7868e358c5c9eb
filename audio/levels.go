package audio

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Levels returns the peak absolute amplitude and the RMS level of samples.
// Both are 0 for an empty slice.
func Levels(samples []float32) (peak, rms float64) {
	if len(samples) == 0 {
		return 0, 0
	}

	x := make([]float64, len(samples))
	for i, s := range samples {
		x[i] = float64(s)
	}

	peak = floats.Norm(x, math.Inf(1))
	rms = floats.Norm(x, 2) / math.Sqrt(float64(len(x)))
	return peak, rms
}
