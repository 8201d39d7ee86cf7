package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"PairSpread/internal/domain/models"
	domrepo "PairSpread/internal/domain/repository"
	domsvc "PairSpread/internal/domain/service"
	applogger "PairSpread/pkg/logger"
)

// PairReportUseCase fetches both legs of a pair, computes the spread signal and
// attaches the ledger trades of the same pair and period.
type PairReportUseCase struct {
	prices    domrepo.PriceSource
	ledger    domrepo.TradeLedger
	aligner   domsvc.Aligner
	engine    domsvc.SignalEngine
	publisher domrepo.SignalPublisher
	metrics   domrepo.Metrics
	log       *applogger.Logger
	timeout   time.Duration
	now       func() time.Time
}

func NewPairReportUseCase(
	prices domrepo.PriceSource,
	ledger domrepo.TradeLedger,
	aligner domsvc.Aligner,
	engine domsvc.SignalEngine,
	metrics domrepo.Metrics,
	l *applogger.Logger,
) *PairReportUseCase {
	if metrics == nil {
		metrics = domrepo.NopMetrics{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &PairReportUseCase{
		prices:  prices,
		ledger:  ledger,
		aligner: aligner,
		engine:  engine,
		metrics: metrics,
		log:     l,
		now:     time.Now,
	}
}

// SetPublisher enables snapshot publishing after each successful report.
func (uc *PairReportUseCase) SetPublisher(p domrepo.SignalPublisher) { uc.publisher = p }

// SetTimeout bounds a whole report, fetches included. Zero disables it.
func (uc *PairReportUseCase) SetTimeout(d time.Duration) { uc.timeout = d }

// SplitPair splits "SYM1_SYM2" into its legs.
func SplitPair(pair string) (string, string, error) {
	parts := strings.Split(pair, "_")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid pair %q", pair)
	}
	return parts[0], parts[1], nil
}

func (uc *PairReportUseCase) Report(ctx context.Context, p models.ReportParams) (*models.PairReport, error) {
	began := uc.now()
	result := "error"
	defer func() {
		uc.metrics.RecordReport(result)
		uc.metrics.RecordLatency("report", time.Since(began).Seconds())
	}()

	if p.Symbol1 == "" || p.Symbol2 == "" {
		s1, s2, err := SplitPair(p.Pair)
		if err != nil {
			return nil, err
		}
		p.Symbol1, p.Symbol2 = s1, s2
	}
	if p.End.Before(p.Start) {
		return nil, fmt.Errorf("start %s is after end %s", p.Start.Format(time.RFC3339), p.End.Format(time.RFC3339))
	}
	interval := domrepo.NormalizeInterval(p.Interval)
	p.Interval = string(interval)

	if uc.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.timeout)
		defer cancel()
	}

	series1, series2, err := uc.fetchLegs(ctx, p, interval)
	if err != nil {
		if errors.Is(err, domrepo.ErrDataUnavailable) {
			result = "no_data"
		}
		return nil, err
	}

	table, err := uc.aligner.Align(series1, series2)
	if err != nil {
		return nil, fmt.Errorf("align %s: %w", p.Pair, err)
	}
	signal := uc.engine.ComputeSignal(table, p.Signal)

	trades, err := uc.ledger.LoadTrades(ctx, p.Pair, p.Start, p.End)
	if err != nil {
		return nil, fmt.Errorf("load trades %s: %w", p.Pair, err)
	}
	if trades == nil {
		trades = []models.TradeRecord{}
	}

	for _, w := range signal.Warnings {
		uc.log.Warn("signal warning",
			applogger.String("pair", p.Pair),
			applogger.String("warning", w),
		)
	}
	if last, ok := signal.LastValidZ(); ok {
		uc.metrics.RecordLastZScore(p.Pair, last.ZScore.Float64)
	}

	report := &models.PairReport{
		Pair:     p.Pair,
		Interval: p.Interval,
		Start:    p.Start,
		End:      p.End,
		Params:   p.Signal,
		Signal:   signal.Rows,
		Trades:   trades,
		Warnings: signal.Warnings,
	}
	uc.publish(ctx, report)

	result = "ok"
	return report, nil
}

func (uc *PairReportUseCase) fetchLegs(ctx context.Context, p models.ReportParams, interval domrepo.Interval) ([]models.PricePoint, []models.PricePoint, error) {
	symbols := [2]string{p.Symbol1, p.Symbol2}
	var (
		wg     sync.WaitGroup
		series [2][]models.PricePoint
		errs   [2]error
	)
	for i := range symbols {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pts, err := uc.prices.FetchCloseSeries(ctx, symbols[i], p.Start, p.End, interval)
			if err == nil && len(pts) == 0 {
				err = fmt.Errorf("%s: %w", symbols[i], domrepo.ErrDataUnavailable)
			}
			series[i], errs[i] = pts, err
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, nil, fmt.Errorf("fetch %s: %w", symbols[i], err)
		}
	}
	return series[0], series[1], nil
}

// publish never fails the report; a lost snapshot is logged and counted.
func (uc *PairReportUseCase) publish(ctx context.Context, r *models.PairReport) {
	if uc.publisher == nil {
		return
	}
	snap := models.SignalSnapshot{
		Pair:       r.Pair,
		Interval:   r.Interval,
		Params:     r.Params,
		Rows:       len(r.Signal),
		TradeCount: len(r.Trades),
		ComputedAt: uc.now().UTC(),
	}
	if n := len(r.Signal); n > 0 {
		last := r.Signal[n-1]
		snap.Last = &last
	}
	if err := uc.publisher.PublishSnapshot(ctx, snap); err != nil {
		uc.metrics.RecordError("publish_snapshot")
		uc.log.Error("publish snapshot failed",
			applogger.String("pair", r.Pair),
			applogger.Error(err),
		)
		return
	}
	uc.metrics.RecordMessageSent("kafka", "signal")
}
