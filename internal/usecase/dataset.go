package usecase

import (
	"fmt"
	"sort"
	"time"

	"VolMonitor/internal/domain/models"
	"VolMonitor/internal/services/features"
	"VolMonitor/internal/services/movers"
	"VolMonitor/internal/services/timeseries"
)

// dataset is the aligned, read-only view of one snapshot version. It is
// shared by every table build of that version.
type dataset struct {
	version string
	seq     uint64 // load order within one builder
	grid    models.Grid
	cells   []models.GridCell
	vols    []*timeseries.Series // parallel to cells
	stats   []cellStats          // parallel to cells
	rates   map[models.Tenor]*timeseries.Series
	// realized vol per realized horizon, each parallel to the rate series
	realized map[models.Tenor][][]float64
	dates    []time.Time // union of vol dates, ascending
	skipped  int         // vol points outside the grid
}

// cellStats holds the rolling statistics of one cell's vol series, indexed
// by stored observation. Position i only depends on observations up to i.
type cellStats struct {
	means, stds []float64
	highs, lows []float64
	trailingMax [][]float64 // per mover horizon
}

func newCellStats(values []float64, p AnalyticsParams) cellStats {
	cs := cellStats{trailingMax: make([][]float64, len(p.Horizons))}
	cs.means, cs.stds = timeseries.RollingMeanStd(values, p.ZScoreWindow, p.ZScoreWindow)
	cs.highs, cs.lows = timeseries.RollingExtrema(values, p.ExtremaWindow)
	for j, h := range p.Horizons {
		cs.trailingMax[j] = movers.TrailingMaxAbsChange(values, h.Offset, h.Lookback)
	}
	return cs
}

func newDataset(snap *models.MarketSnapshot, grid models.Grid, p AnalyticsParams) (*dataset, error) {
	ds := &dataset{
		version:  snap.Version,
		grid:     grid,
		cells:    grid.Cells(),
		rates:    make(map[models.Tenor]*timeseries.Series),
		realized: make(map[models.Tenor][][]float64),
	}

	byCell := make([][]timeseries.Point, len(ds.cells))
	seen := make(map[time.Time]struct{})
	for _, p := range snap.Vols {
		i := grid.IndexOf(p.Cell)
		if i < 0 {
			ds.skipped++
			continue
		}
		d := timeseries.Day(p.Date)
		byCell[i] = append(byCell[i], timeseries.Point{Date: d, Value: p.Value})
		seen[d] = struct{}{}
	}
	ds.vols = make([]*timeseries.Series, len(ds.cells))
	ds.stats = make([]cellStats, len(ds.cells))
	for i, pts := range byCell {
		s, err := timeseries.NewSeries(pts)
		if err != nil {
			return nil, fmt.Errorf("vol series %s: %w", ds.cells[i], err)
		}
		ds.vols[i] = s
		ds.stats[i] = newCellStats(s.Values(), p)
	}
	ds.dates = make([]time.Time, 0, len(seen))
	for d := range seen {
		ds.dates = append(ds.dates, d)
	}
	sort.Slice(ds.dates, func(i, j int) bool { return ds.dates[i].Before(ds.dates[j]) })

	byTenor := make(map[models.Tenor][]timeseries.Point)
	for _, p := range snap.Rates {
		t := p.Tenor.Canonical()
		byTenor[t] = append(byTenor[t], timeseries.Point{Date: p.Date, Value: p.Level})
	}
	mult := p.RateUnits.BPMultiplier()
	for tenor, pts := range byTenor {
		s, err := timeseries.NewSeries(pts)
		if err != nil {
			return nil, fmt.Errorf("rate series %s: %w", tenor, err)
		}
		ds.rates[tenor] = s
		changes := features.BPChanges(s.Values(), mult)
		rv := make([][]float64, len(p.RealizedHorizons))
		for j, w := range p.RealizedHorizons {
			rv[j] = features.RealizedVolSeries(changes, w, p.TradingDaysPerYear)
		}
		ds.realized[tenor] = rv
	}
	return ds, nil
}

// covers reports whether any cell has an observation on d.
func (ds *dataset) covers(d time.Time) bool {
	i := sort.Search(len(ds.dates), func(i int) bool { return !ds.dates[i].Before(d) })
	return i < len(ds.dates) && ds.dates[i].Equal(d)
}

func (ds *dataset) first() (time.Time, bool) {
	if len(ds.dates) == 0 {
		return time.Time{}, false
	}
	return ds.dates[0], true
}

func (ds *dataset) last() (time.Time, bool) {
	if len(ds.dates) == 0 {
		return time.Time{}, false
	}
	return ds.dates[len(ds.dates)-1], true
}

// rateIndex resolves the rate observation used for as-of date d.
func (ds *dataset) rateIndex(tenor models.Tenor, d time.Time, align RateAlignment, maxLagDays int) (int, error) {
	s, ok := ds.rates[tenor]
	if !ok {
		return -1, fmt.Errorf("%w: %s", timeseries.ErrMissingRateTenor, tenor)
	}
	if align == AlignExact {
		i, err := s.AsOf(d)
		if err != nil {
			return -1, fmt.Errorf("rates %s: %w", tenor, err)
		}
		return i, nil
	}
	i, err := s.AsOfOrBefore(d)
	if err != nil {
		return -1, fmt.Errorf("rates %s: %w", tenor, err)
	}
	if lag := d.Sub(s.DateAt(i)); lag > time.Duration(maxLagDays)*24*time.Hour {
		return -1, fmt.Errorf("rates %s: last observation %s is stale: %w", tenor,
			s.DateAt(i).Format(timeseries.DateLayout), &timeseries.DateNotCoveredError{Date: d, Source: "rates " + string(tenor)})
	}
	return i, nil
}
