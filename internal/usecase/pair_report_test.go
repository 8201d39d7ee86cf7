package usecase

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"PairSpread/internal/domain/models"
	domrepo "PairSpread/internal/domain/repository"
	"PairSpread/internal/services/spread"
)

var (
	jan1 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	feb1 = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
)

type fakePrices struct {
	mu     sync.Mutex
	series map[string][]models.PricePoint
	errs   map[string]error
	calls  []string
}

func (f *fakePrices) FetchCloseSeries(_ context.Context, symbol string, _, _ time.Time, _ domrepo.Interval) ([]models.PricePoint, error) {
	f.mu.Lock()
	f.calls = append(f.calls, symbol)
	f.mu.Unlock()
	if err := f.errs[symbol]; err != nil {
		return nil, err
	}
	return f.series[symbol], nil
}

type fakeLedger struct {
	trades []models.TradeRecord
	err    error
	symbol string
}

func (f *fakeLedger) LoadTrades(_ context.Context, symbol string, _, _ time.Time) ([]models.TradeRecord, error) {
	f.symbol = symbol
	return f.trades, f.err
}

type fakePublisher struct {
	snaps []models.SignalSnapshot
	err   error
}

func (f *fakePublisher) PublishSnapshot(_ context.Context, s models.SignalSnapshot) error {
	f.snaps = append(f.snaps, s)
	return f.err
}

type countingMetrics struct {
	domrepo.NopMetrics
	reports []string
	errors  []string
}

func (m *countingMetrics) RecordReport(r string) { m.reports = append(m.reports, r) }
func (m *countingMetrics) RecordError(k string)  { m.errors = append(m.errors, k) }

func hourly(prices ...float64) []models.PricePoint {
	out := make([]models.PricePoint, len(prices))
	for i, p := range prices {
		out[i] = models.PricePoint{Timestamp: jan1.Add(time.Duration(i) * time.Hour), Price: p}
	}
	return out
}

func newUseCase(prices *fakePrices, ledger *fakeLedger, m domrepo.Metrics) *PairReportUseCase {
	return NewPairReportUseCase(prices, ledger, spread.NewAligner(), spread.NewEngine(), m, nil)
}

func params(window int) models.ReportParams {
	return models.ReportParams{
		Pair:  "BTCUSDT_ETHUSDT",
		Start: jan1,
		End:   feb1,
		Signal: models.SignalParams{
			Beta:   1,
			Window: window,
			EntryZ: 2,
			ExitZ:  0.5,
		},
	}
}

func TestReportWithoutTrades(t *testing.T) {
	prices := &fakePrices{series: map[string][]models.PricePoint{
		"BTCUSDT": hourly(100, 101, 102, 103, 104),
		"ETHUSDT": hourly(200, 202, 204, 206, 208),
	}}
	ledger := &fakeLedger{}
	m := &countingMetrics{}

	r, err := newUseCase(prices, ledger, m).Report(context.Background(), params(3))
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if r.Trades == nil || len(r.Trades) != 0 {
		t.Errorf("trades = %#v, want empty non-nil", r.Trades)
	}
	if ledger.symbol != "BTCUSDT_ETHUSDT" {
		t.Errorf("ledger queried with %q, want the full pair", ledger.symbol)
	}
	if len(r.Signal) != 5 {
		t.Fatalf("rows = %d, want 5", len(r.Signal))
	}
	for i, row := range r.Signal {
		if math.Abs(row.Spread.Float64-math.Ln2) > 1e-9 {
			t.Errorf("row %d spread = %v, want ln 2", i, row.Spread.Float64)
		}
	}
	if r.Interval != "4h" {
		t.Errorf("interval = %q, want default 4h", r.Interval)
	}
	if len(m.reports) != 1 || m.reports[0] != "ok" {
		t.Errorf("reports = %v", m.reports)
	}
	if len(prices.calls) != 2 {
		t.Errorf("fetch calls = %v", prices.calls)
	}
}

func TestReportPassesTradesThrough(t *testing.T) {
	trade := models.TradeRecord{Symbol: "BTCUSDT_ETHUSDT", EntryDT: jan1, ExitDT: feb1, ProfitLoss: 4}
	prices := &fakePrices{series: map[string][]models.PricePoint{
		"BTCUSDT": hourly(1, 2, 3),
		"ETHUSDT": hourly(3, 2, 1),
	}}
	r, err := newUseCase(prices, &fakeLedger{trades: []models.TradeRecord{trade}}, nil).Report(context.Background(), params(2))
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Trades) != 1 || r.Trades[0] != trade {
		t.Errorf("trades = %+v", r.Trades)
	}
}

func TestReportEmptyLegIsDataUnavailable(t *testing.T) {
	prices := &fakePrices{series: map[string][]models.PricePoint{
		"BTCUSDT": hourly(1, 2, 3),
	}}
	m := &countingMetrics{}
	_, err := newUseCase(prices, &fakeLedger{}, m).Report(context.Background(), params(2))
	if !errors.Is(err, domrepo.ErrDataUnavailable) {
		t.Fatalf("err = %v, want ErrDataUnavailable", err)
	}
	if len(m.reports) != 1 || m.reports[0] != "no_data" {
		t.Errorf("reports = %v", m.reports)
	}
}

func TestReportPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	prices := &fakePrices{
		series: map[string][]models.PricePoint{"BTCUSDT": hourly(1), "ETHUSDT": hourly(1)},
		errs:   map[string]error{"ETHUSDT": boom},
	}
	if _, err := newUseCase(prices, &fakeLedger{}, nil).Report(context.Background(), params(2)); !errors.Is(err, boom) {
		t.Errorf("fetch err = %v", err)
	}

	prices = &fakePrices{series: map[string][]models.PricePoint{
		"BTCUSDT": hourly(1, 2),
		"ETHUSDT": hourly(1, 2),
	}}
	if _, err := newUseCase(prices, &fakeLedger{err: boom}, nil).Report(context.Background(), params(2)); !errors.Is(err, boom) {
		t.Errorf("ledger err = %v", err)
	}

	prices = &fakePrices{series: map[string][]models.PricePoint{
		"BTCUSDT": hourly(1, -2),
		"ETHUSDT": hourly(1, 2),
	}}
	var ipe *spread.InvalidPriceError
	if _, err := newUseCase(prices, &fakeLedger{}, nil).Report(context.Background(), params(2)); !errors.As(err, &ipe) {
		t.Errorf("align err = %v, want InvalidPriceError", err)
	}
}

func TestReportRejectsBadPair(t *testing.T) {
	p := params(2)
	p.Pair = "BTCUSDT"
	if _, err := newUseCase(&fakePrices{}, &fakeLedger{}, nil).Report(context.Background(), p); err == nil {
		t.Error("expected error for pair without separator")
	}
}

func TestReportWindowWarning(t *testing.T) {
	prices := &fakePrices{series: map[string][]models.PricePoint{
		"BTCUSDT": hourly(1, 2, 3),
		"ETHUSDT": hourly(2, 3, 4),
	}}
	r, err := newUseCase(prices, &fakeLedger{}, nil).Report(context.Background(), params(10))
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Warnings) != 1 {
		t.Errorf("warnings = %v", r.Warnings)
	}
	for i, row := range r.Signal {
		if row.ZScore.Valid || row.RollingStd.Valid {
			t.Errorf("row %d has statistics with an oversized window", i)
		}
	}
}

func TestReportPublishesSnapshot(t *testing.T) {
	prices := &fakePrices{series: map[string][]models.PricePoint{
		"BTCUSDT": hourly(1, 2, 3, 4),
		"ETHUSDT": hourly(2, 3, 5, 4),
	}}
	pub := &fakePublisher{}
	uc := newUseCase(prices, &fakeLedger{}, nil)
	uc.SetPublisher(pub)
	uc.now = func() time.Time { return feb1 }

	if _, err := uc.Report(context.Background(), params(2)); err != nil {
		t.Fatal(err)
	}
	if len(pub.snaps) != 1 {
		t.Fatalf("snapshots = %d", len(pub.snaps))
	}
	s := pub.snaps[0]
	if s.Pair != "BTCUSDT_ETHUSDT" || s.Rows != 4 || s.TradeCount != 0 || !s.ComputedAt.Equal(feb1) {
		t.Errorf("snapshot = %+v", s)
	}
	if s.Last == nil || !s.Last.Timestamp.Equal(jan1.Add(3*time.Hour)) {
		t.Errorf("last = %+v", s.Last)
	}
}

func TestReportSurvivesPublishFailure(t *testing.T) {
	prices := &fakePrices{series: map[string][]models.PricePoint{
		"BTCUSDT": hourly(1, 2),
		"ETHUSDT": hourly(2, 3),
	}}
	m := &countingMetrics{}
	uc := newUseCase(prices, &fakeLedger{}, m)
	uc.SetPublisher(&fakePublisher{err: errors.New("broker down")})

	if _, err := uc.Report(context.Background(), params(2)); err != nil {
		t.Fatalf("Report: %v", err)
	}
	if len(m.errors) != 1 || m.errors[0] != "publish_snapshot" {
		t.Errorf("errors = %v", m.errors)
	}
}

func TestSplitPair(t *testing.T) {
	cases := []struct {
		in     string
		a, b   string
		wantOK bool
	}{
		{"BTCUSDT_ETHUSDT", "BTCUSDT", "ETHUSDT", true},
		{"A_B_C", "", "", false},
		{"_B", "", "", false},
		{"A_", "", "", false},
		{"AB", "", "", false},
	}
	for _, c := range cases {
		a, b, err := SplitPair(c.in)
		if (err == nil) != c.wantOK || a != c.a || b != c.b {
			t.Errorf("SplitPair(%q) = %q, %q, %v", c.in, a, b, err)
		}
	}
}
