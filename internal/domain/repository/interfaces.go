package repository

import (
	"context"
	"time"

	"VolMonitor/internal/domain/models"
)

// MarketDataSource is the read side of market data storage. Snapshot returns a
// consistent view; Version changes whenever stored data changes.
type MarketDataSource interface {
	Snapshot(ctx context.Context) (*models.MarketSnapshot, error)
	Version(ctx context.Context) (string, error)
}

// MarketDataWriter ingests observations. Writes are upserts keyed by date and
// cell (or tenor), so a correction replaces the earlier value.
type MarketDataWriter interface {
	UpsertVols(ctx context.Context, points []models.ImpliedVolPoint) error
	UpsertRates(ctx context.Context, points []models.RatePoint) error
}

// MarketDataStore is a source that also accepts writes.
type MarketDataStore interface {
	MarketDataSource
	MarketDataWriter
	Health(ctx context.Context) error
	Close() error
}

// TableCache is a shared byte cache for encoded tables.
type TableCache interface {
	GetBytes(ctx context.Context, key string) ([]byte, bool, error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// TablePublisher announces built tables to downstream consumers.
type TablePublisher interface {
	PublishTable(ctx context.Context, t *models.AnalyticsTable) error
	Close() error
}

type Metrics interface {
	RecordTableBuild(result string, seconds float64)
	RecordCacheHit(layer string)
	RecordCacheMiss(layer string)
	RecordIngested(kind string, n int)
	RecordError(kind string)
	RecordDatasetLoad(vols, rates int)
}
