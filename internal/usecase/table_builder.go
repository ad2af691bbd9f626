package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"VolMonitor/internal/domain/models"
	domrepo "VolMonitor/internal/domain/repository"
	"VolMonitor/internal/services/features"
	"VolMonitor/internal/services/movers"
	"VolMonitor/internal/services/timeseries"
	applogger "VolMonitor/pkg/logger"
	"VolMonitor/pkg/metrics"
)

// TableBuilder assembles analytics tables from a market data source and
// caches them by (dataset version, date).
type TableBuilder struct {
	source  domrepo.MarketDataSource
	grid    models.Grid
	params  AnalyticsParams
	l2      domrepo.TableCache
	l2TTL   time.Duration
	pub     domrepo.TablePublisher
	metrics domrepo.Metrics
	l       *applogger.Logger

	group singleflight.Group
	loads atomic.Uint64

	mu     sync.RWMutex
	ds     *dataset
	tables map[string]*models.AnalyticsTable
}

// TableBuilderOption configures TableBuilder.
type TableBuilderOption func(*TableBuilder)

// WithTableCache adds a shared second-level cache for encoded tables.
func WithTableCache(c domrepo.TableCache, ttl time.Duration) TableBuilderOption {
	return func(b *TableBuilder) {
		b.l2 = c
		b.l2TTL = ttl
	}
}

// WithPublisher announces every freshly computed table.
func WithPublisher(p domrepo.TablePublisher) TableBuilderOption {
	return func(b *TableBuilder) { b.pub = p }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m domrepo.Metrics) TableBuilderOption {
	return func(b *TableBuilder) {
		if m != nil {
			b.metrics = m
		}
	}
}

func NewTableBuilder(source domrepo.MarketDataSource, grid models.Grid, params AnalyticsParams, opts ...TableBuilderOption) *TableBuilder {
	if params.Workers < 1 {
		params.Workers = 1
	}
	b := &TableBuilder{
		source:  source,
		grid:    grid,
		params:  params,
		metrics: metrics.Nop{},
		l:       applogger.Nop(),
		tables:  make(map[string]*models.AnalyticsTable),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SetLogger injects a structured logger.
func (b *TableBuilder) SetLogger(l *applogger.Logger) {
	if l != nil {
		b.l = l
	}
}

// Grid returns the grid every table covers.
func (b *TableBuilder) Grid() models.Grid { return b.grid }

// RealizedHorizons returns the realized vol horizons in table order.
func (b *TableBuilder) RealizedHorizons() []int {
	return append([]int(nil), b.params.RealizedHorizons...)
}

// BuildTable returns the table for date. A date with no implied vol
// observation in any cell fails with *timeseries.DateNotCoveredError.
// The returned table is shared and must not be modified.
func (b *TableBuilder) BuildTable(ctx context.Context, date time.Time) (*models.AnalyticsTable, error) {
	ds, err := b.dataset(ctx)
	if err != nil {
		return nil, err
	}
	return b.tableFor(ctx, ds, timeseries.Day(date))
}

// BuildLatest returns the table for the last date with any implied vol observation.
func (b *TableBuilder) BuildLatest(ctx context.Context) (*models.AnalyticsTable, error) {
	ds, err := b.dataset(ctx)
	if err != nil {
		return nil, err
	}
	last, ok := ds.last()
	if !ok {
		return nil, fmt.Errorf("latest table: no implied vol data: %w", timeseries.ErrDateNotCovered)
	}
	return b.tableFor(ctx, ds, last)
}

// Coverage reports the implied vol date range of the current dataset.
func (b *TableBuilder) Coverage(ctx context.Context) (models.Coverage, error) {
	ds, err := b.dataset(ctx)
	if err != nil {
		return models.Coverage{}, err
	}
	cov := models.Coverage{Version: ds.version, Dates: len(ds.dates)}
	if first, ok := ds.first(); ok {
		cov.First = first.Format(timeseries.DateLayout)
	}
	if last, ok := ds.last(); ok {
		cov.Last = last.Format(timeseries.DateLayout)
	}
	return cov, nil
}

// dataset returns the aligned view for the source's current version,
// rebuilding it once per version change.
func (b *TableBuilder) dataset(ctx context.Context) (*dataset, error) {
	version, err := b.source.Version(ctx)
	if err != nil {
		b.metrics.RecordError("source_version")
		return nil, fmt.Errorf("dataset version: %w", err)
	}
	b.mu.RLock()
	ds := b.ds
	b.mu.RUnlock()
	if ds != nil && ds.version == version {
		return ds, nil
	}

	v, err, _ := b.group.Do("dataset:"+version, func() (interface{}, error) {
		b.mu.RLock()
		cur := b.ds
		b.mu.RUnlock()
		if cur != nil && cur.version == version {
			return cur, nil
		}
		seq := b.loads.Add(1)
		snap, err := b.source.Snapshot(context.WithoutCancel(ctx))
		if err != nil {
			return nil, fmt.Errorf("dataset snapshot: %w", err)
		}
		ds, err := newDataset(snap, b.grid, b.params)
		if err != nil {
			return nil, err
		}
		ds.seq = seq
		b.install(context.WithoutCancel(ctx), ds)
		b.metrics.RecordDatasetLoad(len(snap.Vols), len(snap.Rates))
		if ds.skipped > 0 {
			b.l.Warn("vol points outside grid ignored", applogger.Int("points", ds.skipped), applogger.String("version", ds.version))
		}
		b.l.Info("dataset loaded",
			applogger.String("version", ds.version),
			applogger.Int("vols", len(snap.Vols)),
			applogger.Int("rates", len(snap.Rates)),
			applogger.Int("dates", len(ds.dates)))
		return ds, nil
	})
	if err != nil {
		b.metrics.RecordError("dataset")
		return nil, err
	}
	return v.(*dataset), nil
}

// install makes ds current and evicts L1 tables of every other version. It
// does nothing when ds.version is already current, when a dataset loaded
// later is installed, or when the source has moved past ds.version. The
// caller still serves ds as a consistent snapshot.
func (b *TableBuilder) install(ctx context.Context, ds *dataset) {
	if v, err := b.source.Version(ctx); err == nil && v != ds.version {
		b.l.Debug("dataset superseded before install", applogger.String("version", ds.version), applogger.String("source_version", v))
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if cur := b.ds; cur != nil && (cur.version == ds.version || cur.seq > ds.seq) {
		return
	}
	b.ds = ds
	prefix := ds.version + ":"
	evicted := 0
	for k := range b.tables {
		if !strings.HasPrefix(k, prefix) {
			delete(b.tables, k)
			evicted++
		}
	}
	if evicted > 0 {
		b.l.Debug("evicted superseded tables", applogger.Int("tables", evicted))
	}
}

func cacheKey(version string, d time.Time) string {
	return version + ":" + d.Format(timeseries.DateLayout)
}

func (b *TableBuilder) tableFor(ctx context.Context, ds *dataset, d time.Time) (*models.AnalyticsTable, error) {
	key := cacheKey(ds.version, d)
	b.mu.RLock()
	t, ok := b.tables[key]
	b.mu.RUnlock()
	if ok {
		b.metrics.RecordCacheHit("l1")
		return t, nil
	}
	b.metrics.RecordCacheMiss("l1")

	v, err, _ := b.group.Do("table:"+key, func() (interface{}, error) {
		b.mu.RLock()
		t, ok := b.tables[key]
		b.mu.RUnlock()
		if ok {
			return t, nil
		}
		if t := b.fromL2(ctx, key); t != nil {
			b.remember(ds, key, t)
			return t, nil
		}
		start := time.Now()
		t, err := b.compute(context.WithoutCancel(ctx), ds, d)
		if err != nil {
			result := "error"
			if errors.Is(err, timeseries.ErrDateNotCovered) {
				result = "not_covered"
			}
			b.metrics.RecordTableBuild(result, time.Since(start).Seconds())
			return nil, err
		}
		b.metrics.RecordTableBuild("ok", time.Since(start).Seconds())
		b.l.Info("table built",
			applogger.Date("as_of", d),
			applogger.String("version", ds.version),
			applogger.Int("rows", len(t.Rows)),
			applogger.Duration("elapsed", time.Since(start)))
		b.remember(ds, key, t)
		b.toL2(ctx, key, t)
		b.publish(ctx, t)
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.AnalyticsTable), nil
}

// remember stores t in L1 unless a newer dataset has been installed meanwhile.
func (b *TableBuilder) remember(ds *dataset, key string, t *models.AnalyticsTable) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ds == nil || b.ds.version == ds.version {
		b.tables[key] = t
	}
}

func (b *TableBuilder) fromL2(ctx context.Context, key string) *models.AnalyticsTable {
	if b.l2 == nil {
		return nil
	}
	raw, ok, err := b.l2.GetBytes(ctx, key)
	if err != nil {
		b.metrics.RecordError("cache_get")
		b.l.Warn("table cache get", applogger.String("key", key), applogger.Error(err))
		return nil
	}
	if !ok {
		b.metrics.RecordCacheMiss("l2")
		return nil
	}
	var t models.AnalyticsTable
	if err := json.Unmarshal(raw, &t); err != nil {
		b.metrics.RecordError("cache_decode")
		b.l.Warn("table cache decode", applogger.String("key", key), applogger.Error(err))
		return nil
	}
	b.metrics.RecordCacheHit("l2")
	return &t
}

func (b *TableBuilder) toL2(ctx context.Context, key string, t *models.AnalyticsTable) {
	if b.l2 == nil {
		return
	}
	raw, err := json.Marshal(t)
	if err == nil {
		err = b.l2.SetBytes(ctx, key, raw, b.l2TTL)
	}
	if err != nil {
		b.metrics.RecordError("cache_set")
		b.l.Warn("table cache set", applogger.String("key", key), applogger.Error(err))
	}
}

func (b *TableBuilder) publish(ctx context.Context, t *models.AnalyticsTable) {
	if b.pub == nil {
		return
	}
	if err := b.pub.PublishTable(ctx, t); err != nil {
		b.metrics.RecordError("publish")
		b.l.Warn("publish table", applogger.Date("as_of", t.AsOf), applogger.Error(err))
	}
}

// compute builds every row in parallel. Each worker owns one pre-allocated
// slot, so the result does not depend on scheduling.
func (b *TableBuilder) compute(ctx context.Context, ds *dataset, d time.Time) (*models.AnalyticsTable, error) {
	if !ds.covers(d) {
		return nil, &timeseries.DateNotCoveredError{Date: d, Source: "implied vols"}
	}
	rows := make([]models.AnalyticsRow, len(ds.cells))
	moves := make([][]movers.Move, len(ds.cells))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.params.Workers)
	for i := range ds.cells {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rows[i], moves[i] = b.row(ds, i, d)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build table %s: %w", d.Format(timeseries.DateLayout), err)
	}

	flags := movers.AssembleFlags(moves)
	for i := range rows {
		for j, h := range b.params.Horizons {
			setMoverFlag(&rows[i], h.Name, flags[i][j])
		}
	}
	return &models.AnalyticsTable{
		AsOf:             d,
		Version:          ds.version,
		RealizedHorizons: b.RealizedHorizons(),
		Rows:             rows,
	}, nil
}

func setMoverFlag(r *models.AnalyticsRow, horizon string, v bool) {
	switch models.MoverHorizon(horizon) {
	case models.Mover1D:
		r.IsLargest1DMover = v
	case models.Mover1W:
		r.IsLargest1WMover = v
	case models.Mover1M:
		r.IsLargest1MMover = v
	}
}

// row computes the statistics of cell i as of d using only observations up to d.
func (b *TableBuilder) row(ds *dataset, i int, d time.Time) (models.AnalyticsRow, []movers.Move) {
	p := b.params
	cell := ds.cells[i]
	row := models.AnalyticsRow{
		OptionTenor:     cell.OptionTenor,
		UnderlyingTenor: cell.UnderlyingTenor,
		TermTenor:       cell.String(),
	}
	nan := math.NaN()
	moves := make([]movers.Move, len(p.Horizons))
	for j := range moves {
		moves[j] = movers.Move{Current: nan, TrailingMax: nan}
	}

	ann, chg := nan, make([]float64, len(p.Horizons))
	hi, lo, z := nan, nan, nan
	for j := range chg {
		chg[j] = nan
	}
	if hist, err := ds.vols[i].TruncateAt(d); err == nil {
		end := hist.Len() - 1
		st := ds.stats[i]
		ann = hist.ValueAt(end)
		for j, h := range p.Horizons {
			chg[j] = changeOver(hist, end, h.Offset)
			moves[j] = movers.Move{Current: math.Abs(chg[j]), TrailingMax: st.trailingMax[j][end]}
		}
		hi, lo = st.highs[end], st.lows[end]
		z = timeseries.ZScore(ann, st.means[end], st.stds[end])
	} else {
		b.l.Warn("cell has no observation on as-of date", applogger.String("cell", cell.String()), applogger.Date("as_of", d))
	}

	daily := func(x float64) models.Stat { return models.Stat(features.DailyVol(x, p.TradingDaysPerYear)) }
	row.ImpliedVolAnn = models.Stat(ann)
	row.ImpliedVolDaily = daily(ann)
	row.ImpliedVolAnnHigh, row.ImpliedVolAnnLow = models.Stat(hi), models.Stat(lo)
	row.ImpliedVolDailyHigh, row.ImpliedVolDailyLow = daily(hi), daily(lo)
	for j, h := range p.Horizons {
		switch models.MoverHorizon(h.Name) {
		case models.Mover1D:
			row.ImpliedVolAnnChg1D, row.ImpliedVolDailyChg1D = models.Stat(chg[j]), daily(chg[j])
		case models.Mover1W:
			row.ImpliedVolAnnChg1W, row.ImpliedVolDailyChg1W = models.Stat(chg[j]), daily(chg[j])
		case models.Mover1M:
			row.ImpliedVolAnnChg1M, row.ImpliedVolDailyChg1M = models.Stat(chg[j]), daily(chg[j])
		}
	}
	row.ZScore = models.Stat(z)
	row.RichCheap = models.RichCheap(timeseries.Classify(z, p.RichCheapThreshold))

	realized := make([]float64, len(p.RealizedHorizons))
	for j := range realized {
		realized[j] = nan
	}
	if ri, err := ds.rateIndex(cell.UnderlyingTenor, d, p.RateAlignment, p.RateMaxLagDays); err == nil {
		for j, rv := range ds.realized[cell.UnderlyingTenor] {
			realized[j] = rv[ri]
		}
	} else {
		b.l.Debug("realized vol undefined", applogger.String("cell", cell.String()), applogger.Error(err))
	}
	row.Realized = make([]models.RealizedStat, len(p.RealizedHorizons))
	for j, h := range p.RealizedHorizons {
		row.Realized[j] = models.RealizedStat{
			Days:        h,
			RealizedVol: models.Stat(realized[j]),
			Ratio:       models.Stat(features.ImpliedRealizedRatio(ann, realized[j])),
		}
	}
	return row, moves
}

// changeOver is the change from k stored observations before end. Short
// history (timeseries.ErrInsufficientHistory) yields NaN.
func changeOver(s *timeseries.Series, end, k int) float64 {
	base, err := s.OffsetIndex(end, k)
	if err != nil {
		return math.NaN()
	}
	return s.ValueAt(end) - s.ValueAt(base)
}
