package di

import (
	"context"
	"fmt"
	"time"

	"VolMonitor/internal/domain/models"
	domrepo "VolMonitor/internal/domain/repository"
	"VolMonitor/internal/handler/api"
	internalrepo "VolMonitor/internal/repository"
	"VolMonitor/internal/service/cache"
	"VolMonitor/internal/service/ratelimit"
	"VolMonitor/internal/usecase"
	pkgch "VolMonitor/pkg/clickhouse"
	"VolMonitor/pkg/config"
	xhttp "VolMonitor/pkg/http"
	pkgkafka "VolMonitor/pkg/kafka"
	applogger "VolMonitor/pkg/logger"
	"VolMonitor/pkg/metrics"
	"VolMonitor/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: "stdout",
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(cfg *config.Config) domrepo.Metrics {
	if !cfg.Metrics.Enabled {
		return metrics.Nop{}
	}
	return metrics.New(nil)
}

// ProvideGrid parses the configured tenor grid.
func ProvideGrid(cfg *config.Config) (models.Grid, error) {
	g, err := models.NewGrid(cfg.Grid.OptionTenors, cfg.Grid.UnderlyingTenors)
	if err != nil {
		return models.Grid{}, fmt.Errorf("grid: %w", err)
	}
	return g, nil
}

// ProvideAnalyticsParams maps the analytics section.
func ProvideAnalyticsParams(cfg *config.Config) (usecase.AnalyticsParams, error) {
	p, err := usecase.ParamsFromConfig(cfg.Analytics)
	if err != nil {
		return usecase.AnalyticsParams{}, fmt.Errorf("analytics: %w", err)
	}
	return p, nil
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideMarketStore picks the store for the configured source. File sources
// are served from memory after the initial load.
func ProvideMarketStore(cfg *config.Config, l *applogger.Logger) (domrepo.MarketDataStore, error) {
	switch cfg.Source.Type {
	case "clickhouse":
		client, err := ProvideClickHouseClient(cfg)
		if err != nil {
			return nil, err
		}
		store := internalrepo.NewCHMarketStore(client, cfg.ClickHouse.VolTable, cfg.ClickHouse.RateTable)
		store.SetLogger(l)
		if cfg.Source.InitSchema {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := store.InitSchema(ctx); err != nil {
				_ = client.Close()
				return nil, fmt.Errorf("clickhouse schema: %w", err)
			}
		}
		return store, nil
	default:
		store := internalrepo.NewMemoryStore()
		store.SetLogger(l)
		return store, nil
	}
}

// ProvideLoader returns the startup loader, nil unless the source is file.
func ProvideLoader(cfg *config.Config, l *applogger.Logger) server.Loader {
	if cfg.Source.Type != "file" {
		return nil
	}
	ld := internalrepo.NewFileLoader(cfg.Source.VolPattern, cfg.Source.RatesFile)
	ld.SetLogger(l)
	return ld
}

// ProvideLocalCache creates the in-process table cache.
func ProvideLocalCache() *cache.TTLCache {
	return cache.NewTTLCache()
}

// ProvideRedisCache creates the shared table cache, nil when disabled.
func ProvideRedisCache(cfg *config.Config) *cache.RedisCache {
	if !cfg.Cache.Redis.Enabled {
		return nil
	}
	return cache.NewRedisCache(cache.RedisConfig{
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
		Prefix:   cfg.Cache.Redis.Prefix,
	})
}

// ProvideTableCache layers the local cache over Redis when Redis is on.
func ProvideTableCache(cfg *config.Config, local *cache.TTLCache, shared *cache.RedisCache) domrepo.TableCache {
	if shared == nil {
		return local
	}
	return cache.NewLayeredCache(local, shared, cfg.Cache.TTL)
}

// ProvideKafkaProducer creates a Kafka producer, nil when Kafka is disabled.
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
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideTablePublisher publishes built tables to Kafka, nil when Kafka is disabled.
func ProvideTablePublisher(cfg *config.Config, producer *pkgkafka.Producer, l *applogger.Logger) domrepo.TablePublisher {
	if producer == nil {
		return nil
	}
	pub := internalrepo.NewKafkaTablePublisher(producer, cfg.Kafka.TablesTopic)
	pub.SetLogger(l)
	return pub
}

// ProvideTableBuilder creates the table use case.
func ProvideTableBuilder(
	cfg *config.Config,
	store domrepo.MarketDataStore,
	grid models.Grid,
	params usecase.AnalyticsParams,
	tc domrepo.TableCache,
	pub domrepo.TablePublisher,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.TableBuilder {
	opts := []usecase.TableBuilderOption{
		usecase.WithTableCache(tc, cfg.Cache.TTL),
		usecase.WithMetrics(m),
	}
	if pub != nil {
		opts = append(opts, usecase.WithPublisher(pub))
	}
	b := usecase.NewTableBuilder(store, grid, params, opts...)
	b.SetLogger(l)
	return b
}

// ProvideRateLimiter limits the export endpoint per client.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Server.ExportRPS, cfg.Server.ExportBurst)
}

// ProvideTableHandler creates the table HTTP handler.
func ProvideTableHandler(l *applogger.Logger, tables *usecase.TableBuilder, lim *ratelimit.Limiter) *api.TableEchoHandler {
	return api.NewTableEchoHandler(l, tables, lim)
}

// ProvideHTTPServer creates the Echo server with all routes.
func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, store domrepo.MarketDataStore, th *api.TableEchoHandler) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(l, []xhttp.Handler{th, xhttp.ReadinessHandler(store.Health, 0)},
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORSOrigins(cfg.Server.CORSOrigins),
		xhttp.WithMetricsPath(metricsPath),
	)
}

// ProvideKafkaConsumer creates the market updates consumer, nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
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
	return consumer, nil
}

// ProvideMarketUpdatesHandler ingests update events and keeps the latest table warm.
func ProvideMarketUpdatesHandler(
	cfg *config.Config,
	store domrepo.MarketDataStore,
	m domrepo.Metrics,
	tables *usecase.TableBuilder,
	l *applogger.Logger,
) *usecase.MarketUpdatesHandler {
	h := usecase.NewMarketUpdatesHandler(cfg.Kafka.UpdatesTopic, store, m)
	h.SetLogger(l)
	h.WarmLatest(tables)
	return h
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	store domrepo.MarketDataStore,
	loader server.Loader,
	tables *usecase.TableBuilder,
	httpServer *xhttp.Server,
	consumer *pkgkafka.Consumer,
	kh *usecase.MarketUpdatesHandler,
	pub domrepo.TablePublisher,
	local *cache.TTLCache,
	shared *cache.RedisCache,
	lim *ratelimit.Limiter,
) *server.App {
	opts := []server.Option{
		server.WithMaintenance(func() { local.Purge() }),
		server.WithMaintenance(func() { lim.Prune(10 * time.Minute) }),
	}
	if loader != nil {
		opts = append(opts, server.WithLoader(loader))
	}
	if consumer != nil {
		opts = append(opts, server.WithConsumer(consumer, kh))
	}
	if pub != nil {
		opts = append(opts, server.WithPublisher(pub))
	}
	if shared != nil {
		opts = append(opts, server.WithCloser(shared))
	}
	return server.New(cfg, l, store, tables, httpServer, opts...)
}
