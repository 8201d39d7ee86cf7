package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"PairSpread/internal/domain/models"
	"PairSpread/internal/domain/repository"
	xhttp "PairSpread/pkg/http"
	applogger "PairSpread/pkg/logger"

	"github.com/shopspring/decimal"
)

const klinesPath = "/api/v3/klines"

// codeInvalidSymbol is the Binance error code for an unknown symbol.
const codeInvalidSymbol = -1121

type Config struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	Retries   int
	PageLimit int
	Backoff   time.Duration // linear step between retries
}

// Client fetches kline close prices from the Binance public REST API.
type Client struct {
	cfg     Config
	http    *xhttp.Client
	log     *applogger.Logger
	metrics repository.Metrics
}

func NewClient(cfg Config, l *applogger.Logger, m repository.Metrics) *Client {
	if cfg.PageLimit <= 0 || cfg.PageLimit > 1000 {
		cfg.PageLimit = 1000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 250 * time.Millisecond
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if l == nil {
		l = applogger.Nop()
	}
	if m == nil {
		m = repository.NopMetrics{}
	}
	return &Client{
		cfg:     cfg,
		http:    xhttp.NewClient(xhttp.WithTimeout(cfg.Timeout)),
		log:     l,
		metrics: m,
	}
}

// FetchCloseSeries pages through klines with open time in [start, end] and
// returns one close price per bar, ascending.
func (c *Client) FetchCloseSeries(ctx context.Context, symbol string, start, end time.Time, interval repository.Interval) ([]models.PricePoint, error) {
	begin := time.Now()
	pts, err := c.fetch(ctx, symbol, start, end, interval)
	c.metrics.RecordLatency("binance_fetch", time.Since(begin).Seconds())

	switch {
	case err != nil:
		c.metrics.RecordFetch("binance", "error")
		return nil, err
	case len(pts) == 0:
		c.metrics.RecordFetch("binance", "empty")
		return nil, fmt.Errorf("binance %s %s: %w", symbol, interval, repository.ErrDataUnavailable)
	}
	c.metrics.RecordFetch("binance", "ok")
	return pts, nil
}

func (c *Client) fetch(ctx context.Context, symbol string, start, end time.Time, interval repository.Interval) ([]models.PricePoint, error) {
	endMs := end.UnixMilli()
	next := start.UnixMilli()
	var out []models.PricePoint
	lastOpen := int64(-1)

	for next <= endMs {
		rows, err := c.page(ctx, symbol, interval, next, endMs)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			if r.openTime <= lastOpen {
				continue
			}
			out = append(out, models.PricePoint{Timestamp: time.UnixMilli(r.openTime).UTC(), Price: r.close})
			lastOpen = r.openTime
		}
		if len(rows) < c.cfg.PageLimit {
			break
		}
		next = rows[len(rows)-1].openTime + 1
	}
	return out, nil
}

type kline struct {
	openTime int64
	close    float64
}

func (c *Client) page(ctx context.Context, symbol string, interval repository.Interval, startMs, endMs int64) ([]kline, error) {
	opts := &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.cfg.BaseURL + klinesPath,
		QueryParams: map[string][]string{
			"symbol":    {symbol},
			"interval":  {string(interval)},
			"startTime": {strconv.FormatInt(startMs, 10)},
			"endTime":   {strconv.FormatInt(endMs, 10)},
			"limit":     {strconv.Itoa(c.cfg.PageLimit)},
		},
	}
	if c.cfg.APIKey != "" {
		opts.Headers = map[string]string{"X-MBX-APIKEY": c.cfg.APIKey}
	}

	var body []byte
	var err error
	for attempt := 1; ; attempt++ {
		err = c.http.SendAndParse(ctx, opts, &body)
		if err == nil || attempt > c.cfg.Retries || !retryable(ctx, err) {
			break
		}
		c.log.Warn("binance request failed, retrying",
			applogger.String("symbol", symbol),
			applogger.Int("attempt", attempt),
			applogger.Error(err),
		)
		select {
		case <-time.After(time.Duration(attempt) * c.cfg.Backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, classify(symbol, err)
	}
	return decodeKlines(body)
}

// retryable is true for network failures, 5xx and 429.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func classify(symbol string, err error) error {
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		var ae apiError
		if json.Unmarshal([]byte(se.Body), &ae) == nil && ae.Code == codeInvalidSymbol {
			return fmt.Errorf("binance %s: %s: %w", symbol, ae.Msg, repository.ErrDataUnavailable)
		}
	}
	return fmt.Errorf("binance klines %s: %w", symbol, err)
}

// decodeKlines reads [openTime, open, high, low, close, ...] arrays. Prices
// arrive as decimal strings.
func decodeKlines(body []byte) ([]kline, error) {
	var raw [][]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}
	out := make([]kline, 0, len(raw))
	for i, row := range raw {
		if len(row) < 5 {
			return nil, fmt.Errorf("decode klines: row %d has %d fields", i, len(row))
		}
		var k kline
		if err := json.Unmarshal(row[0], &k.openTime); err != nil {
			return nil, fmt.Errorf("decode klines: row %d open time: %w", i, err)
		}
		var s string
		if err := json.Unmarshal(row[4], &s); err != nil {
			return nil, fmt.Errorf("decode klines: row %d close: %w", i, err)
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("decode klines: row %d close %q: %w", i, s, err)
		}
		k.close = d.InexactFloat64()
		out = append(out, k)
	}
	return out, nil
}
