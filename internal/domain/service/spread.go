package service

import "PairSpread/internal/domain/models"

// Aligner inner-joins two price series on timestamp and log-transforms prices.
type Aligner interface {
	Align(series1, series2 []models.PricePoint) ([]models.AlignedRow, error)
}

// SignalEngine computes the spread, rolling statistics and lagged z-score.
type SignalEngine interface {
	ComputeSignal(table []models.AlignedRow, params models.SignalParams) models.SignalSeries
}
