package models

import (
	"math"
	"strconv"
	"time"
)

// Stat is a float statistic that may be undefined. Undefined values are NaN
// in memory and null on the wire.
type Stat float64

// NaN is the undefined Stat.
func NaN() Stat { return Stat(math.NaN()) }

func (s Stat) Float() float64 { return float64(s) }

// Defined reports whether s holds a finite number.
func (s Stat) Defined() bool {
	f := float64(s)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func (s Stat) MarshalJSON() ([]byte, error) {
	if !s.Defined() {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, float64(s), 'g', -1, 64), nil
}

func (s *Stat) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = NaN()
		return nil
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*s = Stat(f)
	return nil
}

// RichCheap classifies a z-score against the configured threshold.
type RichCheap string

const (
	Rich      RichCheap = "rich"
	Cheap     RichCheap = "cheap"
	Neutral   RichCheap = "neutral"
	Undefined RichCheap = "undefined"
)

// MoverHorizon names a change horizon used for mover flags.
type MoverHorizon string

const (
	Mover1D MoverHorizon = "1d"
	Mover1W MoverHorizon = "1w"
	Mover1M MoverHorizon = "1m"
)

// MoverHorizons lists the horizons in table order.
var MoverHorizons = []MoverHorizon{Mover1D, Mover1W, Mover1M}

// RealizedStat holds realized vol and the implied/realized ratio for one horizon.
type RealizedStat struct {
	Days        int  `json:"days"`
	RealizedVol Stat `json:"realized_vol"`
	Ratio       Stat `json:"iv_rv_ratio"`
}

// AnalyticsRow is the table entry for one grid cell on the as-of date.
type AnalyticsRow struct {
	OptionTenor     Tenor  `json:"option_tenor"`
	UnderlyingTenor Tenor  `json:"underlying_tenor"`
	TermTenor       string `json:"term_tenor"`

	ImpliedVolAnn        Stat `json:"implied_vol_ann"`
	ImpliedVolAnnChg1D   Stat `json:"implied_vol_ann_1d_chg"`
	ImpliedVolAnnChg1W   Stat `json:"implied_vol_ann_1w_chg"`
	ImpliedVolAnnChg1M   Stat `json:"implied_vol_ann_1m_chg"`
	ImpliedVolAnnHigh    Stat `json:"implied_vol_ann_20d_high"`
	ImpliedVolAnnLow     Stat `json:"implied_vol_ann_20d_low"`
	ImpliedVolDaily      Stat `json:"implied_vol_daily"`
	ImpliedVolDailyChg1D Stat `json:"implied_vol_daily_1d_chg"`
	ImpliedVolDailyChg1W Stat `json:"implied_vol_daily_1w_chg"`
	ImpliedVolDailyChg1M Stat `json:"implied_vol_daily_1m_chg"`
	ImpliedVolDailyHigh  Stat `json:"implied_vol_daily_20d_high"`
	ImpliedVolDailyLow   Stat `json:"implied_vol_daily_20d_low"`

	ZScore    Stat      `json:"zscore_60d"`
	RichCheap RichCheap `json:"rich_cheap"`

	Realized []RealizedStat `json:"realized"`

	IsLargest1DMover bool `json:"is_largest_1d_mover"`
	IsLargest1WMover bool `json:"is_largest_1w_mover"`
	IsLargest1MMover bool `json:"is_largest_1m_mover"`
}

// Cell returns the grid cell of the row.
func (r AnalyticsRow) Cell() GridCell {
	return GridCell{OptionTenor: r.OptionTenor, UnderlyingTenor: r.UnderlyingTenor}
}

// RealizedFor returns the realized stats for a horizon in trading days.
func (r AnalyticsRow) RealizedFor(days int) (RealizedStat, bool) {
	for _, s := range r.Realized {
		if s.Days == days {
			return s, true
		}
	}
	return RealizedStat{}, false
}

// IsMover reports the mover flag for h.
func (r AnalyticsRow) IsMover(h MoverHorizon) bool {
	switch h {
	case Mover1D:
		return r.IsLargest1DMover
	case Mover1W:
		return r.IsLargest1WMover
	case Mover1M:
		return r.IsLargest1MMover
	}
	return false
}

// AnyMover reports whether any mover flag is set.
func (r AnalyticsRow) AnyMover() bool {
	return r.IsLargest1DMover || r.IsLargest1WMover || r.IsLargest1MMover
}

// AnalyticsTable is the per-date output. It is immutable once built and may be
// shared between callers.
type AnalyticsTable struct {
	AsOf             time.Time      `json:"as_of"`
	Version          string         `json:"version"`
	RealizedHorizons []int          `json:"realized_horizons"`
	Rows             []AnalyticsRow `json:"rows"`
}

// Row looks up the row for a cell.
func (t *AnalyticsTable) Row(c GridCell) (AnalyticsRow, bool) {
	for _, r := range t.Rows {
		if r.OptionTenor == c.OptionTenor && r.UnderlyingTenor == c.UnderlyingTenor {
			return r, true
		}
	}
	return AnalyticsRow{}, false
}

// RowFilter selects rows from a table.
type RowFilter func(AnalyticsRow) bool

// Filter returns the rows matching every filter, in table order.
func (t *AnalyticsTable) Filter(filters ...RowFilter) []AnalyticsRow {
	out := make([]AnalyticsRow, 0, len(t.Rows))
rows:
	for _, r := range t.Rows {
		for _, f := range filters {
			if !f(r) {
				continue rows
			}
		}
		out = append(out, r)
	}
	return out
}

func ByOptionTenor(t Tenor) RowFilter {
	return func(r AnalyticsRow) bool { return r.OptionTenor == t }
}

func ByUnderlyingTenor(t Tenor) RowFilter {
	return func(r AnalyticsRow) bool { return r.UnderlyingTenor == t }
}

func ByRichCheap(c RichCheap) RowFilter {
	return func(r AnalyticsRow) bool { return r.RichCheap == c }
}

// MoversFor keeps rows flagged as largest mover for h.
func MoversFor(h MoverHorizon) RowFilter {
	return func(r AnalyticsRow) bool { return r.IsMover(h) }
}

// AnyMover keeps rows flagged on at least one horizon.
func AnyMover() RowFilter {
	return func(r AnalyticsRow) bool { return r.AnyMover() }
}
