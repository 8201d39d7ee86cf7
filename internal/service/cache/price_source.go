package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"PairSpread/internal/domain/models"
	"PairSpread/internal/domain/repository"
	applogger "PairSpread/pkg/logger"
)

// PriceSource caches close series of an inner repository.PriceSource.
// Cache failures are logged and fall through to the inner source.
type PriceSource struct {
	inner   repository.PriceSource
	cache   BytesCache
	ttl     time.Duration
	log     *applogger.Logger
	metrics repository.Metrics
}

func NewPriceSource(inner repository.PriceSource, c BytesCache, ttl time.Duration, l *applogger.Logger, m repository.Metrics) *PriceSource {
	if l == nil {
		l = applogger.Nop()
	}
	if m == nil {
		m = repository.NopMetrics{}
	}
	return &PriceSource{inner: inner, cache: c, ttl: ttl, log: l, metrics: m}
}

func seriesKey(symbol string, start, end time.Time, interval repository.Interval) string {
	return fmt.Sprintf("klines:%s:%s:%d:%d", symbol, interval, start.UnixMilli(), end.UnixMilli())
}

func (p *PriceSource) FetchCloseSeries(ctx context.Context, symbol string, start, end time.Time, interval repository.Interval) ([]models.PricePoint, error) {
	key := seriesKey(symbol, start, end, interval)

	b, ok, err := p.cache.GetBytes(ctx, key)
	if err != nil {
		p.log.Warn("price cache read failed", applogger.String("key", key), applogger.Error(err))
		p.metrics.RecordFetch("cache", "error")
	}
	if ok {
		var pts []models.PricePoint
		if err := json.Unmarshal(b, &pts); err == nil {
			p.metrics.RecordFetch("cache", "hit")
			return pts, nil
		}
		p.log.Warn("price cache entry corrupt", applogger.String("key", key))
	}
	p.metrics.RecordFetch("cache", "miss")

	pts, err := p.inner.FetchCloseSeries(ctx, symbol, start, end, interval)
	if err != nil {
		return nil, err
	}

	if b, err := json.Marshal(pts); err == nil {
		if err := p.cache.SetBytes(ctx, key, b, p.ttl); err != nil {
			p.log.Warn("price cache write failed", applogger.String("key", key), applogger.Error(err))
		}
	}
	return pts, nil
}
