package spread

import (
	"math"

	"PairSpread/internal/domain/models"
)

// rollingStats returns the trailing-window mean and sample standard deviation
// (N-1 denominator) of values. Entries before index window-1, and windows that
// contain a non-finite value, are invalid. window must be >= 2.
func rollingStats(values []float64, window int) (mean, std []models.NullFloat) {
	mean = make([]models.NullFloat, len(values))
	std = make([]models.NullFloat, len(values))

	// lastBad is the index of the most recent non-finite value
	lastBad := -1
	for t, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			lastBad = t
		}
		if t < window-1 || lastBad > t-window {
			continue
		}

		win := values[t-window+1 : t+1]
		m := meanOf(win)
		mean[t] = models.Float(m)
		std[t] = models.Float(math.Sqrt(sampleVariance(win, m)))
	}
	return mean, std
}

func meanOf(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// sampleVariance uses the two-pass form, which stays non-negative and keeps
// flat windows at exactly zero.
func sampleVariance(xs []float64, mean float64) float64 {
	ss := 0.0
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return ss / float64(len(xs)-1)
}
