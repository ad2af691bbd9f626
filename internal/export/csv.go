package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"VolMonitor/internal/domain/models"
	"VolMonitor/internal/services/timeseries"
)

// Columns of the flat table layout, before and after the realized vol block.
var (
	leadColumns = []string{
		"as_of", "version", "option_tenor", "underlying_tenor", "term_tenor",
		"implied_vol_ann", "implied_vol_ann_1d_chg", "implied_vol_ann_1w_chg", "implied_vol_ann_1m_chg",
		"implied_vol_ann_20d_high", "implied_vol_ann_20d_low",
		"implied_vol_daily", "implied_vol_daily_1d_chg", "implied_vol_daily_1w_chg", "implied_vol_daily_1m_chg",
		"implied_vol_daily_20d_high", "implied_vol_daily_20d_low",
		"zscore_60d", "rich_cheap",
	}
	tailColumns = []string{"is_largest_1d_mover", "is_largest_1w_mover", "is_largest_1m_mover"}
)

// Header returns the CSV header for the given realized vol horizons:
// realized_vol_{h}d columns first, then iv_rv_ratio_{h}d.
func Header(horizons []int) []string {
	h := append([]string(nil), leadColumns...)
	for _, d := range horizons {
		h = append(h, fmt.Sprintf("realized_vol_%dd", d))
	}
	for _, d := range horizons {
		h = append(h, fmt.Sprintf("iv_rv_ratio_%dd", d))
	}
	return append(h, tailColumns...)
}

func formatStat(s models.Stat) string {
	if !s.Defined() {
		return ""
	}
	return strconv.FormatFloat(s.Float(), 'g', -1, 64)
}

func parseStat(v string) (models.Stat, error) {
	if v == "" {
		return models.NaN(), nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	return models.Stat(f), nil
}

// WriteCSV writes one line per row. Undefined statistics are empty cells.
func WriteCSV(w io.Writer, t *models.AnalyticsTable) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(t.RealizedHorizons)); err != nil {
		return err
	}
	asOf := t.AsOf.Format(timeseries.DateLayout)
	for _, r := range t.Rows {
		rec := []string{
			asOf, t.Version, string(r.OptionTenor), string(r.UnderlyingTenor), r.TermTenor,
			formatStat(r.ImpliedVolAnn), formatStat(r.ImpliedVolAnnChg1D), formatStat(r.ImpliedVolAnnChg1W), formatStat(r.ImpliedVolAnnChg1M),
			formatStat(r.ImpliedVolAnnHigh), formatStat(r.ImpliedVolAnnLow),
			formatStat(r.ImpliedVolDaily), formatStat(r.ImpliedVolDailyChg1D), formatStat(r.ImpliedVolDailyChg1W), formatStat(r.ImpliedVolDailyChg1M),
			formatStat(r.ImpliedVolDailyHigh), formatStat(r.ImpliedVolDailyLow),
			formatStat(r.ZScore), string(r.RichCheap),
		}
		for _, h := range t.RealizedHorizons {
			rs, ok := r.RealizedFor(h)
			rec = append(rec, formatStat(statOrNaN(rs.RealizedVol, ok)))
		}
		for _, h := range t.RealizedHorizons {
			rs, ok := r.RealizedFor(h)
			rec = append(rec, formatStat(statOrNaN(rs.Ratio, ok)))
		}
		rec = append(rec,
			strconv.FormatBool(r.IsLargest1DMover),
			strconv.FormatBool(r.IsLargest1WMover),
			strconv.FormatBool(r.IsLargest1MMover))
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func statOrNaN(s models.Stat, ok bool) models.Stat {
	if !ok {
		return models.NaN()
	}
	return s
}

// ReadCSV parses the output of WriteCSV. Horizons are recovered from the header.
// A table needs at least one row, and every row must carry the same as_of and
// version.
func ReadCSV(r io.Reader) (*models.AnalyticsTable, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: csv header: %v", timeseries.ErrMalformedInput, err)
	}
	horizons, err := horizonsFromHeader(header)
	if err != nil {
		return nil, err
	}
	t := &models.AnalyticsTable{RealizedHorizons: horizons, Rows: []models.AnalyticsRow{}}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: csv line %d: %v", timeseries.ErrMalformedInput, line, err)
		}
		row, asOf, version, err := parseRecord(rec, horizons)
		if err != nil {
			return nil, fmt.Errorf("%w: csv line %d: %v", timeseries.ErrMalformedInput, line, err)
		}
		if line == 2 {
			t.AsOf, t.Version = asOf, version
		} else if !asOf.Equal(t.AsOf) || version != t.Version {
			return nil, fmt.Errorf("%w: csv line %d: table %s@%s mixed with %s@%s", timeseries.ErrMalformedInput, line,
				t.AsOf.Format(timeseries.DateLayout), t.Version, asOf.Format(timeseries.DateLayout), version)
		}
		t.Rows = append(t.Rows, row)
	}
	// as_of and version live on the rows only
	if len(t.Rows) == 0 {
		return nil, fmt.Errorf("%w: csv table without rows", timeseries.ErrMalformedInput)
	}
	return t, nil
}

func horizonsFromHeader(header []string) ([]int, error) {
	n := len(header) - len(leadColumns) - len(tailColumns)
	if n < 0 || n%2 != 0 {
		return nil, fmt.Errorf("%w: unexpected csv header %v", timeseries.ErrMalformedInput, header)
	}
	horizons := make([]int, 0, n/2)
	for _, col := range header[len(leadColumns) : len(leadColumns)+n/2] {
		days := strings.TrimSuffix(strings.TrimPrefix(col, "realized_vol_"), "d")
		h, err := strconv.Atoi(days)
		if err != nil {
			return nil, fmt.Errorf("%w: csv column %q", timeseries.ErrMalformedInput, col)
		}
		horizons = append(horizons, h)
	}
	want := Header(horizons)
	for i := range want {
		if header[i] != want[i] {
			return nil, fmt.Errorf("%w: csv column %d is %q, want %q", timeseries.ErrMalformedInput, i, header[i], want[i])
		}
	}
	return horizons, nil
}

func parseRecord(rec []string, horizons []int) (models.AnalyticsRow, time.Time, string, error) {
	var row models.AnalyticsRow
	nh := len(horizons)
	asOf, err := timeseries.ParseDay(rec[0])
	if err != nil {
		return row, time.Time{}, "", err
	}
	row.OptionTenor = models.Tenor(rec[2]).Canonical()
	row.UnderlyingTenor = models.Tenor(rec[3]).Canonical()
	row.TermTenor = rec[4]

	stats := []*models.Stat{
		&row.ImpliedVolAnn, &row.ImpliedVolAnnChg1D, &row.ImpliedVolAnnChg1W, &row.ImpliedVolAnnChg1M,
		&row.ImpliedVolAnnHigh, &row.ImpliedVolAnnLow,
		&row.ImpliedVolDaily, &row.ImpliedVolDailyChg1D, &row.ImpliedVolDailyChg1W, &row.ImpliedVolDailyChg1M,
		&row.ImpliedVolDailyHigh, &row.ImpliedVolDailyLow,
		&row.ZScore,
	}
	for i, dst := range stats {
		if *dst, err = parseStat(rec[5+i]); err != nil {
			return row, time.Time{}, "", fmt.Errorf("column %s: %v", leadColumns[5+i], err)
		}
	}
	row.RichCheap = models.RichCheap(rec[18])

	base := len(leadColumns)
	row.Realized = make([]models.RealizedStat, nh)
	for j := 0; j < nh; j++ {
		rv, err := parseStat(rec[base+j])
		if err != nil {
			return row, time.Time{}, "", err
		}
		ratio, err := parseStat(rec[base+nh+j])
		if err != nil {
			return row, time.Time{}, "", err
		}
		row.Realized[j] = models.RealizedStat{Days: horizons[j], RealizedVol: rv, Ratio: ratio}
	}
	flags := []*bool{&row.IsLargest1DMover, &row.IsLargest1WMover, &row.IsLargest1MMover}
	for i, dst := range flags {
		if *dst, err = strconv.ParseBool(rec[base+2*nh+i]); err != nil {
			return row, time.Time{}, "", err
		}
	}
	return row, asOf, rec[1], nil
}

// WriteJSON writes the table as indented JSON. Undefined statistics are null.
func WriteJSON(w io.Writer, t *models.AnalyticsTable) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(t)
}

// ReadJSON decodes a table written by WriteJSON.
func ReadJSON(r io.Reader) (*models.AnalyticsTable, error) {
	var t models.AnalyticsTable
	if err := json.NewDecoder(r).Decode(&t); err != nil {
		return nil, fmt.Errorf("%w: table json: %v", timeseries.ErrMalformedInput, err)
	}
	return &t, nil
}
