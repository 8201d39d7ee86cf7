package spread

import (
	"fmt"

	"PairSpread/internal/domain/models"
)

// MinWindow is the smallest window for which a sample deviation exists.
const MinWindow = 2

// Engine computes spread and z-score rows from an aligned table.
type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

// ComputeSignal computes, per row t:
//
//	spread[t] = logPrice2[t] - beta*logPrice1[t] - alpha
//	mean[t], std[t] over spread[t-window+1 .. t]
//	z[t] = (spread[t-1] - mean[t-1]) / std[t-1]
//
// An unusable window does not fail: rows keep their spread, every statistic
// is null and a warning is returned.
func (Engine) ComputeSignal(table []models.AlignedRow, params models.SignalParams) models.SignalSeries {
	out := models.SignalSeries{Rows: make([]models.SignalRow, len(table))}

	spreads := make([]float64, len(table))
	for i, r := range table {
		spreads[i] = r.LogPrice2 - params.Beta*r.LogPrice1 - params.Alpha
		out.Rows[i] = models.SignalRow{
			Timestamp: r.Timestamp,
			Spread:    models.Float(spreads[i]),
		}
	}

	switch {
	case params.Window < MinWindow:
		out.Warnings = append(out.Warnings,
			fmt.Sprintf("window %d is below the minimum of %d; rolling statistics and z-score are null", params.Window, MinWindow))
		return out
	case params.Window > len(table):
		out.Warnings = append(out.Warnings,
			fmt.Sprintf("window %d exceeds the %d aligned rows; rolling statistics and z-score are null", params.Window, len(table)))
		return out
	}

	mean, std := rollingStats(spreads, params.Window)

	raw := models.Null()
	for t := range out.Rows {
		out.Rows[t].RollingMean = mean[t]
		out.Rows[t].RollingStd = std[t]

		// z for row t comes from row t-1
		out.Rows[t].ZScore = raw
		out.Rows[t].Band = classify(raw, params.EntryZ, params.ExitZ)

		raw = zScore(spreads[t], mean[t], std[t])
	}
	return out
}

func zScore(spread float64, mean, std models.NullFloat) models.NullFloat {
	if !mean.Valid || !std.Valid || std.Float64 == 0 {
		return models.Null()
	}
	return models.Float((spread - mean.Float64) / std.Float64)
}
