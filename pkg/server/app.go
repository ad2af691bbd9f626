package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"VolMonitor/internal/domain/models"
	domrepo "VolMonitor/internal/domain/repository"
	"VolMonitor/internal/services/timeseries"
	"VolMonitor/pkg/config"
	xhttp "VolMonitor/pkg/http"
	pkgkafka "VolMonitor/pkg/kafka"
	applogger "VolMonitor/pkg/logger"
)

// Loader fills a writer with market data at startup.
type Loader interface {
	Load(ctx context.Context, w domrepo.MarketDataWriter) (vols, rates int, err error)
}

// LatestBuilder builds the table for the most recent covered date.
type LatestBuilder interface {
	BuildLatest(ctx context.Context) (*models.AnalyticsTable, error)
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	store      domrepo.MarketDataStore
	tables     LatestBuilder
	httpServer *xhttp.Server

	loader      Loader
	consumer    *pkgkafka.Consumer
	kh          pkgkafka.MessageHandler
	publisher   domrepo.TablePublisher
	closers     []io.Closer
	maintenance []func()
}

// Option configures optional App components.
type Option func(*App)

// WithLoader loads market data into the store before serving.
func WithLoader(ld Loader) Option {
	return func(a *App) { a.loader = ld }
}

// WithConsumer runs a Kafka consumer with the given handler.
func WithConsumer(c *pkgkafka.Consumer, h pkgkafka.MessageHandler) Option {
	return func(a *App) {
		a.consumer = c
		a.kh = h
	}
}

// WithPublisher closes the table publisher on shutdown.
func WithPublisher(p domrepo.TablePublisher) Option {
	return func(a *App) { a.publisher = p }
}

// WithCloser registers an extra resource closed on shutdown.
func WithCloser(c io.Closer) Option {
	return func(a *App) {
		if c != nil {
			a.closers = append(a.closers, c)
		}
	}
}

// WithMaintenance runs fn once a minute while the app is up.
func WithMaintenance(fn func()) Option {
	return func(a *App) {
		if fn != nil {
			a.maintenance = append(a.maintenance, fn)
		}
	}
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	store domrepo.MarketDataStore,
	tables LatestBuilder,
	httpServer *xhttp.Server,
	opts ...Option,
) *App {
	if l == nil {
		l = applogger.Nop()
	}
	a := &App{cfg: cfg, l: l, store: store, tables: tables, httpServer: httpServer}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.start(ctx); err != nil {
		a.shutdown()
		return err
	}

	<-ctx.Done()
	a.l.Info("shutdown signal received")
	a.shutdown()
	return nil
}

func (a *App) start(ctx context.Context) error {
	if a.loader != nil {
		begin := time.Now()
		vols, rates, err := a.loader.Load(ctx, a.store)
		if err != nil {
			return fmt.Errorf("initial load: %w", err)
		}
		a.l.Info("market data loaded",
			applogger.Int("vols", vols),
			applogger.Int("rates", rates),
			applogger.Duration("took", time.Since(begin)),
		)
	}

	if a.tables != nil {
		t, err := a.tables.BuildLatest(ctx)
		switch {
		case err == nil:
			a.l.Info("latest table ready",
				applogger.Date("as_of", t.AsOf),
				applogger.String("version", t.Version),
				applogger.Int("rows", len(t.Rows)),
			)
		case errors.Is(err, timeseries.ErrDateNotCovered):
			a.l.Warn("no market data yet, serving empty coverage")
		default:
			a.l.Warn("latest table build failed", applogger.Error(err))
		}
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		if err := a.consumer.Start(); err != nil {
			return fmt.Errorf("kafka consumer: %w", err)
		}
		a.l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if len(a.maintenance) > 0 {
		go a.runMaintenance(ctx)
	}

	if a.httpServer != nil {
		if err := a.httpServer.Start(); err != nil {
			a.l.Error("http server start error", applogger.Error(err))
			return err
		}
	}
	a.l.Info("volmonitor started",
		applogger.String("env", a.cfg.Environment),
		applogger.String("source", a.cfg.Source.Type),
		applogger.Int("port", a.cfg.Server.Port),
	)
	return nil
}

func (a *App) runMaintenance(ctx context.Context) {
	tick := time.NewTicker(time.Minute)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			for _, fn := range a.maintenance {
				fn()
			}
		}
	}
}

// shutdown stops intake first, then the HTTP server, then closes clients.
func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	a.l.Info("shutting down...")

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.l.Error("http shutdown error", applogger.Error(err))
		}
	}

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.l.Warn("table publisher close error", applogger.Error(err))
		}
	}

	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.l.Warn("close error", applogger.Error(err))
		}
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.l.Warn("store close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
}
