package spread

import (
	"math"

	"PairSpread/internal/domain/models"
)

// classify labels a lagged z-score. A threshold <= 0 disables its label.
func classify(z models.NullFloat, entryZ, exitZ float64) string {
	if !z.Valid {
		return models.BandNone
	}
	switch {
	case entryZ > 0 && z.Float64 >= entryZ:
		return models.BandShortSpread
	case entryZ > 0 && z.Float64 <= -entryZ:
		return models.BandLongSpread
	case exitZ > 0 && math.Abs(z.Float64) <= exitZ:
		return models.BandExit
	default:
		return models.BandNone
	}
}
