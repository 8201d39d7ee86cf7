package api

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	models "PairSpread/internal/domain/models"
	domrepo "PairSpread/internal/domain/repository"
	svcmetrics "PairSpread/internal/service/metrics"
	"PairSpread/internal/services/spread"
	xhttp "PairSpread/pkg/http"
	xlogger "PairSpread/pkg/logger"
	"PairSpread/pkg/util"

	"github.com/labstack/echo/v4"
)

// legacyTimeLayout is the timestamp format of the columnar chart payload.
const legacyTimeLayout = "2006-01-02 15:04:05"

// Reporter produces a pair report.
type Reporter interface {
	Report(ctx context.Context, p models.ReportParams) (*models.PairReport, error)
}

// RateLimiter admits or rejects a request by client key.
type RateLimiter interface {
	Allow(key string) bool
}

// ReportDefaults fill query parameters the caller left out.
type ReportDefaults struct {
	Interval string
	Signal   models.SignalParams
}

// ReportEchoHandler serves pair reports in the envelope format and in the
// columnar chart format.
type ReportEchoHandler struct {
	logger   *xlogger.Logger
	reporter Reporter
	limiter  RateLimiter
	defaults ReportDefaults
	checks   map[string]domrepo.HealthChecker
}

func NewReportEchoHandler(logger *xlogger.Logger, reporter Reporter, defaults ReportDefaults) *ReportEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &ReportEchoHandler{
		logger:   logger,
		reporter: reporter,
		defaults: defaults,
		checks:   make(map[string]domrepo.HealthChecker),
	}
}

// SetRateLimiter enables per-client rate limiting.
func (h *ReportEchoHandler) SetRateLimiter(l RateLimiter) { h.limiter = l }

// AddHealthCheck registers a dependency reported by /healthz.
func (h *ReportEchoHandler) AddHealthCheck(name string, c domrepo.HealthChecker) {
	if c != nil {
		h.checks[name] = c
	}
}

func (h *ReportEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/v1/pairs/report", h.PairReport)
	e.GET("/api/chart-data/", h.ChartData)
	e.GET("/", h.ChartData)
	e.GET("/healthz", h.Health)
}

// PairReport handles GET /api/v1/pairs/report.
func (h *ReportEchoHandler) PairReport(c echo.Context) error {
	const endpoint = "pairs_report"
	start := time.Now()
	defer func() {
		svcmetrics.EndpointLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	if appErr := h.admit(c); appErr != nil {
		svcmetrics.EndpointErrors.WithLabelValues(endpoint, appErr.Code).Inc()
		return xhttp.AppErrorResponse(c, appErr)
	}

	req := &models.PairReportRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		svcmetrics.EndpointErrors.WithLabelValues(endpoint, verr[0].Code).Inc()
		return xhttp.BadRequestResponse(c, verr)
	}
	params, appErr := h.params(req)
	if appErr != nil {
		svcmetrics.EndpointErrors.WithLabelValues(endpoint, appErr.Code).Inc()
		return xhttp.AppErrorResponse(c, appErr)
	}

	report, err := h.reporter.Report(c.Request().Context(), params)
	if err != nil {
		appErr := h.mapError(params, err)
		svcmetrics.EndpointErrors.WithLabelValues(endpoint, appErr.Code).Inc()
		return xhttp.AppErrorResponse(c, appErr)
	}
	return xhttp.SuccessResponse(c, report)
}

// ChartResponse is the columnar chart payload.
type ChartResponse struct {
	Chart  ChartColumns         `json:"chart"`
	Trades []models.TradeRecord `json:"trades"`
}

type ChartColumns struct {
	Time   []string           `json:"time"`
	Spread []models.NullFloat `json:"spread"`
	ZScore []models.NullFloat `json:"z_score"`
}

// ChartData handles GET /api/chart-data/ and GET /.
func (h *ReportEchoHandler) ChartData(c echo.Context) error {
	const endpoint = "chart_data"
	start := time.Now()
	defer func() {
		svcmetrics.EndpointLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	if appErr := h.admit(c); appErr != nil {
		svcmetrics.EndpointErrors.WithLabelValues(endpoint, appErr.Code).Inc()
		return xhttp.LegacyErrorResponse(c, appErr)
	}

	req := &models.PairReportRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		svcmetrics.EndpointErrors.WithLabelValues(endpoint, verr[0].Code).Inc()
		return c.JSON(http.StatusBadRequest, xhttp.LegacyError{Error: verr[0].Message})
	}
	params, appErr := h.params(req)
	if appErr != nil {
		svcmetrics.EndpointErrors.WithLabelValues(endpoint, appErr.Code).Inc()
		return xhttp.LegacyErrorResponse(c, appErr)
	}

	report, err := h.reporter.Report(c.Request().Context(), params)
	if err != nil {
		appErr := h.mapError(params, err)
		svcmetrics.EndpointErrors.WithLabelValues(endpoint, appErr.Code).Inc()
		return xhttp.LegacyErrorResponse(c, appErr)
	}
	return c.JSON(http.StatusOK, toChart(report))
}

// Health handles GET /healthz.
func (h *ReportEchoHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	out := make(map[string]string, len(h.checks))
	for name, chk := range h.checks {
		if err := chk.Health(ctx); err != nil {
			status = http.StatusServiceUnavailable
			out[name] = err.Error()
			continue
		}
		out[name] = "ok"
	}
	return xhttp.DataResponse(c, status, out)
}

func (h *ReportEchoHandler) admit(c echo.Context) *xhttp.AppError {
	if h.limiter == nil || h.limiter.Allow(c.RealIP()) {
		return nil
	}
	return xhttp.TooManyRequestsError("rate limit exceeded")
}

// params converts a validated request, filling absent knobs from defaults.
func (h *ReportEchoHandler) params(req *models.PairReportRequest) (models.ReportParams, *xhttp.AppError) {
	start, err := util.ParseDate(req.StartDate)
	if err != nil {
		return models.ReportParams{}, xhttp.BadRequestError("ERR_INVALID_DATE_FORMAT", "start_date", "start_date must be a date in YYYY-MM-DD format")
	}
	end, err := util.ParseDate(req.EndDate)
	if err != nil {
		return models.ReportParams{}, xhttp.BadRequestError("ERR_INVALID_DATE_FORMAT", "end_date", "end_date must be a date in YYYY-MM-DD format")
	}
	if start.After(end) {
		return models.ReportParams{}, xhttp.BadRequestError("ERR_INVALID_DATE_RANGE", "start_date", "start_date must not be after end_date").
			WithParam("start_date", req.StartDate).
			WithParam("end_date", req.EndDate)
	}

	p := models.ReportParams{
		Pair:     req.Symbol,
		Start:    start,
		End:      end,
		Interval: h.defaults.Interval,
		Signal:   h.defaults.Signal,
	}
	if req.Interval != "" {
		p.Interval = req.Interval
	}

	floats := []struct {
		field string
		raw   string
		dst   *float64
	}{
		{"alpha", req.Alpha, &p.Signal.Alpha},
		{"beta", req.Beta, &p.Signal.Beta},
		{"entry_z", req.EntryZ, &p.Signal.EntryZ},
		{"exit_z", req.ExitZ, &p.Signal.ExitZ},
	}
	for _, f := range floats {
		if f.raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(f.raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return models.ReportParams{}, xhttp.BadRequestError("ERR_NUMERIC", f.field, f.field+" must be a number")
		}
		*f.dst = v
	}
	if req.Window != "" {
		w, err := strconv.Atoi(req.Window)
		if err != nil {
			return models.ReportParams{}, xhttp.BadRequestError("ERR_NUMBER", "window", "window must be an integer")
		}
		p.Signal.Window = w
	}
	return p, nil
}

func (h *ReportEchoHandler) mapError(p models.ReportParams, err error) *xhttp.AppError {
	var ipe *spread.InvalidPriceError
	switch {
	case errors.Is(err, domrepo.ErrDataUnavailable):
		return xhttp.NotFoundError("ERR_DATA_UNAVAILABLE", "no price data for "+p.Pair+" in the requested range").WithError(err)
	case errors.As(err, &ipe), errors.Is(err, spread.ErrEmptyAlignment):
		return xhttp.UnprocessableError("ERR_COMPUTATION", err.Error()).WithError(err)
	}
	h.logger.Error("pair report error",
		xlogger.String("pair", p.Pair),
		xlogger.String("start_date", p.Start.Format(util.DateLayout)),
		xlogger.String("end_date", p.End.Format(util.DateLayout)),
		xlogger.String("interval", p.Interval),
		xlogger.Error(err),
	)
	return xhttp.InternalError("internal server error").WithError(err)
}

func toChart(r *models.PairReport) ChartResponse {
	cols := ChartColumns{
		Time:   make([]string, len(r.Signal)),
		Spread: make([]models.NullFloat, len(r.Signal)),
		ZScore: make([]models.NullFloat, len(r.Signal)),
	}
	for i, row := range r.Signal {
		cols.Time[i] = row.Timestamp.UTC().Format(legacyTimeLayout)
		cols.Spread[i] = row.Spread
		cols.ZScore[i] = row.ZScore
	}
	trades := r.Trades
	if trades == nil {
		trades = []models.TradeRecord{}
	}
	return ChartResponse{Chart: cols, Trades: trades}
}
