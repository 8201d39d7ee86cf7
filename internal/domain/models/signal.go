package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// NullFloat is a number that may be absent. It encodes as JSON null when not Valid.
type NullFloat struct {
	Float64 float64
	Valid   bool
}

// Float wraps x, treating NaN and ±Inf as absent.
func Float(x float64) NullFloat {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return NullFloat{}
	}
	return NullFloat{Float64: x, Valid: true}
}

// Null is the absent value.
func Null() NullFloat { return NullFloat{} }

// Ptr returns nil when not Valid.
func (n NullFloat) Ptr() *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func (n NullFloat) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, n.Float64, 'g', -1, 64), nil
}

func (n *NullFloat) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*n = NullFloat{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*n = Float(v)
	return nil
}

// Band labels derived from the lagged z-score.
const (
	BandNone        = ""
	BandShortSpread = "short_spread"
	BandLongSpread  = "long_spread"
	BandExit        = "exit"
)

// SignalParams are the caller-supplied spread parameters.
type SignalParams struct {
	Alpha  float64 `json:"alpha"`
	Beta   float64 `json:"beta"`
	Window int     `json:"window"`
	EntryZ float64 `json:"entry_z"`
	ExitZ  float64 `json:"exit_z"`
}

// SignalRow is one output row. ZScore is lagged one period relative to the
// spread on the same row.
type SignalRow struct {
	Timestamp   time.Time `json:"time"`
	Spread      NullFloat `json:"spread"`
	RollingMean NullFloat `json:"rolling_mean"`
	RollingStd  NullFloat `json:"rolling_std"`
	ZScore      NullFloat `json:"z_score"`
	Band        string    `json:"band,omitempty"`
}

// SignalSeries is the engine output.
type SignalSeries struct {
	Rows     []SignalRow
	Warnings []string
}

// LastValidZ returns the most recent valid z-score, if any.
func (s SignalSeries) LastValidZ() (SignalRow, bool) {
	for i := len(s.Rows) - 1; i >= 0; i-- {
		if s.Rows[i].ZScore.Valid {
			return s.Rows[i], true
		}
	}
	return SignalRow{}, false
}
