package models

import "time"

// PricePoint is one close price of a symbol. Price must be > 0 for the log transform.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}

// AlignedRow holds the log prices of both legs at a timestamp present in both series.
type AlignedRow struct {
	Timestamp time.Time
	LogPrice1 float64
	LogPrice2 float64
}
