package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"VolMonitor/internal/domain/models"
	"VolMonitor/internal/services/timeseries"
	pkgch "VolMonitor/pkg/clickhouse"
	applogger "VolMonitor/pkg/logger"
)

// CHMarketStore persists vols and rates in ReplacingMergeTree tables, so a
// re-ingested (date, cell) row replaces the earlier one on read with FINAL.
type CHMarketStore struct {
	client    *pkgch.Client
	volTable  string
	rateTable string
	l         *applogger.Logger

	mu   sync.Mutex
	snap *models.MarketSnapshot
}

func NewCHMarketStore(client *pkgch.Client, volTable, rateTable string) *CHMarketStore {
	db := client.Database()
	return &CHMarketStore{
		client:    client,
		volTable:  qualify(db, volTable),
		rateTable: qualify(db, rateTable),
	}
}

// SetLogger injects a structured logger.
func (s *CHMarketStore) SetLogger(l *applogger.Logger) { s.l = l }

func qualify(db, table string) string {
	if db == "" {
		return table
	}
	return db + "." + table
}

// SchemaStatements returns the idempotent DDL for the store's tables.
func (s *CHMarketStore) SchemaStatements() []string {
	stmts := []string{}
	if db := s.client.Database(); db != "" {
		stmts = append(stmts, "CREATE DATABASE IF NOT EXISTS "+db)
	}
	return append(stmts,
		"CREATE TABLE IF NOT EXISTS "+s.volTable+` (
	date Date,
	option_tenor LowCardinality(String),
	underlying_tenor LowCardinality(String),
	vol Float64,
	ingested_at DateTime64(3) DEFAULT now64(3)
) ENGINE = ReplacingMergeTree(ingested_at)
ORDER BY (option_tenor, underlying_tenor, date)`,
		"CREATE TABLE IF NOT EXISTS "+s.rateTable+` (
	date Date,
	tenor LowCardinality(String),
	level Float64,
	ingested_at DateTime64(3) DEFAULT now64(3)
) ENGINE = ReplacingMergeTree(ingested_at)
ORDER BY (tenor, date)`,
	)
}

// InitSchema creates the database and tables if missing.
func (s *CHMarketStore) InitSchema(ctx context.Context) error {
	return s.client.InitSchema(ctx, s.SchemaStatements())
}

func (s *CHMarketStore) UpsertVols(ctx context.Context, points []models.ImpliedVolPoint) error {
	rows := make([][]any, 0, len(points))
	now := time.Now().UTC()
	for _, p := range points {
		if err := validateVol(p); err != nil {
			return err
		}
		rows = append(rows, []any{timeseries.Day(p.Date), string(p.Cell.OptionTenor.Canonical()), string(p.Cell.UnderlyingTenor.Canonical()), p.Value, now})
	}
	q := "INSERT INTO " + s.volTable + " (date, option_tenor, underlying_tenor, vol, ingested_at) VALUES (?, ?, ?, ?, ?)"
	if err := s.client.InsertBatch(ctx, q, rows); err != nil {
		return fmt.Errorf("upsert vols: %w", err)
	}
	if s.l != nil && len(rows) > 0 {
		s.l.Debug("clickhouse upsert vols", applogger.Int("rows", len(rows)))
	}
	return nil
}

func (s *CHMarketStore) UpsertRates(ctx context.Context, points []models.RatePoint) error {
	rows := make([][]any, 0, len(points))
	now := time.Now().UTC()
	for _, p := range points {
		if err := validateRate(p); err != nil {
			return err
		}
		rows = append(rows, []any{timeseries.Day(p.Date), string(p.Tenor.Canonical()), p.Level, now})
	}
	q := "INSERT INTO " + s.rateTable + " (date, tenor, level, ingested_at) VALUES (?, ?, ?, ?)"
	if err := s.client.InsertBatch(ctx, q, rows); err != nil {
		return fmt.Errorf("upsert rates: %w", err)
	}
	if s.l != nil && len(rows) > 0 {
		s.l.Debug("clickhouse upsert rates", applogger.Int("rows", len(rows)))
	}
	return nil
}

// Version changes on every insert into either table. Counts are taken over
// FINAL so background merges of replaced rows do not move the version.
func (s *CHMarketStore) Version(ctx context.Context) (string, error) {
	var vc, vt, rc, rt int64
	if err := s.client.DB().QueryRowContext(ctx, versionQuery(s.volTable, s.rateTable)).Scan(&vc, &vt, &rc, &rt); err != nil {
		return "", fmt.Errorf("dataset version: %w", err)
	}
	return chVersion(vc, vt, rc, rt), nil
}

func versionQuery(volTable, rateTable string) string {
	return fmt.Sprintf(`SELECT
	(SELECT count() FROM %[1]s FINAL), (SELECT toUnixTimestamp64Milli(max(ingested_at)) FROM %[1]s),
	(SELECT count() FROM %[2]s FINAL), (SELECT toUnixTimestamp64Milli(max(ingested_at)) FROM %[2]s)`, volTable, rateTable)
}

func chVersion(volCount, volMaxMilli, rateCount, rateMaxMilli int64) string {
	return fmt.Sprintf("ch-%d.%d-%d.%d", volCount, volMaxMilli, rateCount, rateMaxMilli)
}

// Snapshot reads both tables with FINAL. The result is reused while the
// version is unchanged.
func (s *CHMarketStore) Snapshot(ctx context.Context) (*models.MarketSnapshot, error) {
	version, err := s.Version(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap != nil && s.snap.Version == version {
		return s.snap, nil
	}

	start := time.Now()
	vols, err := queryRows(ctx, s.client.DB(),
		"SELECT date, option_tenor, underlying_tenor, vol FROM "+s.volTable+" FINAL ORDER BY date, option_tenor, underlying_tenor",
		scanVol)
	if err != nil {
		return nil, fmt.Errorf("read vols: %w", err)
	}
	rates, err := queryRows(ctx, s.client.DB(),
		"SELECT date, tenor, level FROM "+s.rateTable+" FINAL ORDER BY date, tenor",
		scanRate)
	if err != nil {
		return nil, fmt.Errorf("read rates: %w", err)
	}
	s.snap = &models.MarketSnapshot{Version: version, Vols: vols, Rates: rates}
	if s.l != nil {
		s.l.Info("clickhouse snapshot loaded",
			applogger.String("version", version),
			applogger.Int("vols", len(vols)),
			applogger.Int("rates", len(rates)),
			applogger.Duration("elapsed", time.Since(start)))
	}
	return s.snap, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVol(r rowScanner) (models.ImpliedVolPoint, error) {
	var (
		d        time.Time
		opt, und string
		v        float64
	)
	if err := r.Scan(&d, &opt, &und, &v); err != nil {
		return models.ImpliedVolPoint{}, err
	}
	return models.ImpliedVolPoint{
		Date:  timeseries.Day(d),
		Cell:  models.GridCell{OptionTenor: models.Tenor(opt), UnderlyingTenor: models.Tenor(und)}.Canonical(),
		Value: v,
	}, nil
}

func scanRate(r rowScanner) (models.RatePoint, error) {
	var (
		d     time.Time
		tenor string
		lvl   float64
	)
	if err := r.Scan(&d, &tenor, &lvl); err != nil {
		return models.RatePoint{}, err
	}
	return models.RatePoint{Date: timeseries.Day(d), Tenor: models.Tenor(tenor).Canonical(), Level: lvl}, nil
}

func queryRows[T any](ctx context.Context, db *sql.DB, q string, scan func(rowScanner) (T, error)) ([]T, error) {
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *CHMarketStore) Health(ctx context.Context) error { return s.client.Health(ctx) }

func (s *CHMarketStore) Close() error { return s.client.Close() }
