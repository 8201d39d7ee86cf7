package repository

import (
	"context"
	"errors"
	"time"

	"PairSpread/internal/domain/models"
)

// ErrDataUnavailable means the upstream has no rows for the requested symbol and range.
var ErrDataUnavailable = errors.New("no price data available")

// PriceSource yields the close series of one symbol, ascending and deduplicated.
type PriceSource interface {
	FetchCloseSeries(ctx context.Context, symbol string, start, end time.Time, interval Interval) ([]models.PricePoint, error)
}

// TradeLedger returns trades with an exact symbol match, entry_dt >= start
// and exit_dt <= end. No match yields an empty slice and no error.
type TradeLedger interface {
	LoadTrades(ctx context.Context, symbol string, start, end time.Time) ([]models.TradeRecord, error)
}

// TradeWriter persists ingested trades.
type TradeWriter interface {
	StoreBatch(ctx context.Context, trades []models.TradeRecord) error
}

// SignalPublisher ships a snapshot of a computed report downstream.
type SignalPublisher interface {
	PublishSnapshot(ctx context.Context, s models.SignalSnapshot) error
}

// HealthChecker is implemented by collaborators that can report readiness.
type HealthChecker interface {
	Health(ctx context.Context) error
}

type Metrics interface {
	RecordReport(result string)
	RecordFetch(source, result string)
	RecordMessageSent(backend, topic string)
	RecordError(kind string)
	RecordLastZScore(pair string, z float64)
	RecordLatency(op string, seconds float64)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordReport(string)              {}
func (NopMetrics) RecordFetch(string, string)       {}
func (NopMetrics) RecordMessageSent(string, string) {}
func (NopMetrics) RecordError(string)               {}
func (NopMetrics) RecordLastZScore(string, float64) {}
func (NopMetrics) RecordLatency(string, float64)    {}
