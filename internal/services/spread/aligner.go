package spread

import (
	"math"

	"PairSpread/internal/domain/models"
)

// Aligner inner-joins two close series on timestamp.
type Aligner struct{}

func NewAligner() *Aligner { return &Aligner{} }

// Align keeps the timestamps present in both series, in the order of series1,
// and emits the natural log of both prices. Every input price must be finite and > 0.
func (Aligner) Align(series1, series2 []models.PricePoint) ([]models.AlignedRow, error) {
	if err := checkPrices(1, series1); err != nil {
		return nil, err
	}
	if err := checkPrices(2, series2); err != nil {
		return nil, err
	}

	// keyed by instant so equal times in different locations still match
	byTime := make(map[int64]float64, len(series2))
	for _, p := range series2 {
		byTime[p.Timestamp.UnixNano()] = p.Price
	}

	n := len(series1)
	if len(series2) < n {
		n = len(series2)
	}
	rows := make([]models.AlignedRow, 0, n)
	for _, p := range series1 {
		p2, ok := byTime[p.Timestamp.UnixNano()]
		if !ok {
			continue
		}
		rows = append(rows, models.AlignedRow{
			Timestamp: p.Timestamp,
			LogPrice1: math.Log(p.Price),
			LogPrice2: math.Log(p2),
		})
	}

	if len(rows) == 0 {
		return nil, ErrEmptyAlignment
	}
	return rows, nil
}

func checkPrices(series int, points []models.PricePoint) error {
	for i, p := range points {
		if math.IsNaN(p.Price) || math.IsInf(p.Price, 0) || p.Price <= 0 {
			return &InvalidPriceError{Series: series, Index: i, Timestamp: p.Timestamp, Price: p.Price}
		}
	}
	return nil
}
