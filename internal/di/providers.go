package di

import (
	"context"
	"fmt"
	"io"
	"time"

	"PairSpread/internal/domain/models"
	"PairSpread/internal/domain/repository"
	"PairSpread/internal/handler/api"
	internalrepo "PairSpread/internal/repository"
	"PairSpread/internal/service/binance"
	icache "PairSpread/internal/service/cache"
	svcmetrics "PairSpread/internal/service/metrics"
	"PairSpread/internal/service/ratelimit"
	"PairSpread/internal/services/spread"
	"PairSpread/internal/usecase"
	pkgch "PairSpread/pkg/clickhouse"
	"PairSpread/pkg/config"
	pkgkafka "PairSpread/pkg/kafka"
	applogger "PairSpread/pkg/logger"
	"PairSpread/pkg/metrics"
	"PairSpread/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
)

// ProvideLogger builds the application logger. Repeated errors are shipped to
// kafka.log_topic when a producer is available.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if producer != nil && cfg.Kafka.LogTopic != "" {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Kafka.LogCollector.Interval,
			CountThreshold: cfg.Kafka.LogCollector.CountThreshold,
			Topic:          cfg.Kafka.LogTopic,
			Publisher:      producer,
		})
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder on the default registry.
func ProvideMetrics() repository.Metrics {
	svcmetrics.Register()
	return metrics.New(prometheus.DefaultRegisterer)
}

// ProvideClickHouseClient connects to ClickHouse and prepares the ledger table.
// Returns nil when the ledger is not ClickHouse-backed.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.Ledger.Backend != "clickhouse" {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := append([]string{"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database},
		internalrepo.SchemaStatements(ledgerTable(cfg))...)
	if err := client.InitSchema(ctx, stmts); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

func ledgerTable(cfg *config.Config) string {
	return cfg.ClickHouse.Database + "." + cfg.Ledger.Table
}

// ProvideTradeLedger selects the ledger backend.
func ProvideTradeLedger(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) (repository.TradeLedger, error) {
	if ch != nil {
		return internalrepo.NewClickHouseLedger(ch.DB(), ledgerTable(cfg), l), nil
	}
	ledger, err := internalrepo.NewCSVLedger(cfg.Ledger.CSVPath)
	if err != nil {
		return nil, fmt.Errorf("csv ledger: %w", err)
	}
	return ledger, nil
}

// ProvideTradeWriter returns the ingest sink, or nil when the ledger is read-only.
func ProvideTradeWriter(ledger repository.TradeLedger) repository.TradeWriter {
	if w, ok := ledger.(repository.TradeWriter); ok {
		return w
	}
	return nil
}

// ProvideSeriesCache returns the configured series cache, or nil for "none".
func ProvideSeriesCache(cfg *config.Config) icache.BytesCache {
	redis := func() *icache.RedisCache {
		return icache.NewRedisCache(icache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			Prefix:   cfg.Cache.Redis.Prefix,
		})
	}
	switch cfg.Cache.Backend {
	case "redis":
		return redis()
	case "layered":
		return icache.NewLayeredCache(icache.NewTTLCache(), redis(), time.Minute)
	case "memory":
		return icache.NewTTLCache()
	}
	return nil
}

// ProvidePriceSource builds the Binance client, cached when a cache is configured.
func ProvidePriceSource(cfg *config.Config, c icache.BytesCache, l *applogger.Logger, m repository.Metrics) repository.PriceSource {
	client := binance.NewClient(binance.Config{
		BaseURL:   cfg.Binance.BaseURL,
		APIKey:    cfg.Binance.APIKey,
		Timeout:   cfg.Binance.Timeout,
		Retries:   cfg.Binance.Retries,
		PageLimit: cfg.Binance.PageLimit,
	}, l, m)
	if c == nil {
		return client
	}
	return icache.NewPriceSource(client, c, cfg.Cache.TTL, l, m)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideSignalPublisher publishes snapshots when Kafka is enabled.
func ProvideSignalPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.SignalPublisher {
	if producer == nil || cfg.Kafka.SignalTopic == "" {
		return nil
	}
	return internalrepo.NewKafkaSignalPublisher(producer, cfg.Kafka.SignalTopic)
}

// ProvidePairReportUseCase creates the report use case.
func ProvidePairReportUseCase(
	cfg *config.Config,
	prices repository.PriceSource,
	ledger repository.TradeLedger,
	publisher repository.SignalPublisher,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.PairReportUseCase {
	uc := usecase.NewPairReportUseCase(prices, ledger, spread.NewAligner(), spread.NewEngine(), m, l)
	uc.SetTimeout(cfg.Signal.Timeout)
	if publisher != nil {
		uc.SetPublisher(publisher)
	}
	return uc
}

// ProvideRateLimiter returns nil when rate limiting is disabled.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	if cfg.RateLimit.Capacity <= 0 || cfg.RateLimit.RefillPerSec <= 0 {
		return nil
	}
	return ratelimit.New(cfg.RateLimit.Capacity, cfg.RateLimit.RefillPerSec)
}

// ProvideReportHandler creates the HTTP handler for report routes.
func ProvideReportHandler(
	cfg *config.Config,
	l *applogger.Logger,
	uc *usecase.PairReportUseCase,
	limiter *ratelimit.Limiter,
	ledger repository.TradeLedger,
	c icache.BytesCache,
) *api.ReportEchoHandler {
	h := api.NewReportEchoHandler(l, uc, api.ReportDefaults{
		Interval: cfg.Signal.Interval,
		Signal: models.SignalParams{
			Alpha:  cfg.Signal.Alpha,
			Beta:   cfg.Signal.Beta,
			Window: cfg.Signal.Window,
			EntryZ: cfg.Signal.EntryZ,
			ExitZ:  cfg.Signal.ExitZ,
		},
	})
	if limiter != nil {
		h.SetRateLimiter(limiter)
	}
	if hc, ok := ledger.(repository.HealthChecker); ok {
		h.AddHealthCheck("ledger", hc)
	}
	if hc, ok := c.(repository.HealthChecker); ok {
		h.AddHealthCheck("cache", hc)
	}
	return h
}

// ProvideKafkaConsumer creates the trade ingest consumer when Kafka is enabled
// and the ledger accepts writes.
func ProvideKafkaConsumer(cfg *config.Config, writer repository.TradeWriter, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || writer == nil || cfg.Kafka.TradeTopic == "" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(
		pkgkafka.TracingHook(),
		pkgkafka.LoggingHook(l, time.Second),
	))
	return consumer, nil
}

// ProvideTradeIngestHandler returns nil when there is nothing to write to.
func ProvideTradeIngestHandler(cfg *config.Config, writer repository.TradeWriter, m repository.Metrics) *usecase.TradeIngestHandler {
	if writer == nil {
		return nil
	}
	return usecase.NewTradeIngestHandler(cfg.Kafka.TradeTopic, writer, m)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler *api.ReportEchoHandler,
	consumer *pkgkafka.Consumer,
	ingest *usecase.TradeIngestHandler,
	producer *pkgkafka.Producer,
	ch *pkgch.Client,
	c icache.BytesCache,
	limiter *ratelimit.Limiter,
) *server.App {
	app := server.New(cfg, l, handler)
	if consumer != nil && ingest != nil {
		app.SetConsumer(consumer, ingest)
	}
	if j, ok := c.(cacheJanitor); ok {
		app.AddBackground("cache janitor", func(ctx context.Context) { j.RunJanitor(ctx, time.Minute) })
	}
	if limiter != nil {
		app.AddBackground("rate limiter sweep", func(ctx context.Context) { sweepLimiter(ctx, limiter) })
	}
	if cl, ok := c.(io.Closer); ok {
		app.AddCloser("cache", cl)
	}
	if ch != nil {
		app.AddCloser("clickhouse", ch)
	}
	if producer != nil {
		// closed last so the log collector can flush through it
		app.AddCloser("kafka producer", producer)
	}
	return app
}

type cacheJanitor interface {
	RunJanitor(ctx context.Context, interval time.Duration)
}

func sweepLimiter(ctx context.Context, l *ratelimit.Limiter) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep(10 * time.Minute)
		}
	}
}
