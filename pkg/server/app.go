package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"PairSpread/pkg/config"
	xhttp "PairSpread/pkg/http"
	pkgkafka "PairSpread/pkg/kafka"
	applogger "PairSpread/pkg/logger"
)

type namedCloser struct {
	name string
	c    io.Closer
}

type background struct {
	name string
	run  func(ctx context.Context)
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	log         *applogger.Logger
	httpHandler xhttp.Handler
	httpServer  *xhttp.Server
	consumer    *pkgkafka.Consumer
	kh          pkgkafka.MessageHandler
	background  []background
	closers     []namedCloser
	wg          sync.WaitGroup
}

// New creates a new App serving handler over HTTP.
func New(cfg *config.Config, l *applogger.Logger, handler xhttp.Handler) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{cfg: cfg, log: l, httpHandler: handler}
}

// SetConsumer attaches a Kafka consumer and the handler for its topic.
func (a *App) SetConsumer(c *pkgkafka.Consumer, h pkgkafka.MessageHandler) {
	a.consumer, a.kh = c, h
}

// AddBackground registers a loop that runs until shutdown.
func (a *App) AddBackground(name string, run func(ctx context.Context)) {
	a.background = append(a.background, background{name: name, run: run})
}

// AddCloser registers a resource closed on shutdown, in registration order.
func (a *App) AddCloser(name string, c io.Closer) {
	a.closers = append(a.closers, namedCloser{name: name, c: c})
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.run(ctx)
}

func (a *App) run(ctx context.Context) error {
	bgCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(a.metricsPath()),
		xhttp.WithLogger(a.log),
	)

	for _, b := range a.background {
		a.wg.Add(1)
		go func(b background) {
			defer a.wg.Done()
			b.run(bgCtx)
		}(b)
		a.log.Debug("background task started", applogger.String("task", b.name))
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		if err := a.consumer.Start(); err != nil {
			a.log.Error("kafka consumer error", applogger.Error(err))
			return a.shutdown(cancel, err)
		}
		a.log.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return a.shutdown(cancel, err)
	}
	a.log.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown(cancel, nil)
}

func (a *App) metricsPath() string {
	if !a.cfg.Metrics.Enabled {
		return ""
	}
	return a.cfg.Metrics.Path
}

// shutdown stops intake first, then background loops, then closes resources.
func (a *App) shutdown(cancel context.CancelFunc, cause error) error {
	a.log.Info("shutting down...")
	errs := []error{cause}

	ctx, done := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer done()

	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
			errs = append(errs, err)
		}
	}

	if a.consumer != nil && a.kh != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}

	cancel()
	a.wg.Wait()

	// flush aggregated logs before the producer goes away
	a.log.RemoveCollector()

	for _, nc := range a.closers {
		if err := nc.c.Close(); err != nil {
			a.log.Warn("close error", applogger.String("resource", nc.name), applogger.Error(err))
			errs = append(errs, fmt.Errorf("close %s: %w", nc.name, err))
		}
	}

	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}
