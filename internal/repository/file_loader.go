package repository

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"VolMonitor/internal/domain/models"
	domrepo "VolMonitor/internal/domain/repository"
	"VolMonitor/internal/services/timeseries"
	applogger "VolMonitor/pkg/logger"
)

const optionTenorKey = "Option Tenor"

// ReadVolCube decodes a VolCube ATM timeseries document:
//
//	{"2024-01-02": [{"Option Tenor": "1M", "2Y": 85.1, "5Y": 90.3}, ...], ...}
//
// Null vols are skipped. Unknown dates, tenors or non-numeric vols are malformed.
func ReadVolCube(r io.Reader) ([]models.ImpliedVolPoint, error) {
	var doc map[string][]map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: volcube json: %v", timeseries.ErrMalformedInput, err)
	}

	dates := make([]string, 0, len(doc))
	for d := range doc {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	var out []models.ImpliedVolPoint
	for _, ds := range dates {
		day, err := timeseries.ParseObservationDate(ds)
		if err != nil {
			return nil, err
		}
		for _, rec := range doc[ds] {
			var rawOpt string
			if err := json.Unmarshal(rec[optionTenorKey], &rawOpt); err != nil || rawOpt == "" {
				return nil, fmt.Errorf("%w: %s: record without option tenor", timeseries.ErrMalformedInput, ds)
			}
			opt, err := models.ParseTenor(rawOpt)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", timeseries.ErrMalformedInput, ds, err)
			}
			keys := make([]string, 0, len(rec))
			for k := range rec {
				if k != optionTenorKey {
					keys = append(keys, k)
				}
			}
			sort.Strings(keys)
			for _, k := range keys {
				und, err := models.ParseTenor(k)
				if err != nil {
					return nil, fmt.Errorf("%w: %s %s: %v", timeseries.ErrMalformedInput, ds, opt, err)
				}
				var v *float64
				if err := json.Unmarshal(rec[k], &v); err != nil {
					return nil, fmt.Errorf("%w: %s %s x %s: vol is not numeric", timeseries.ErrMalformedInput, ds, opt, und)
				}
				if v == nil {
					continue
				}
				out = append(out, models.ImpliedVolPoint{
					Date:  day,
					Cell:  models.GridCell{OptionTenor: opt, UnderlyingTenor: und},
					Value: *v,
				})
			}
		}
	}
	return out, nil
}

// ReadRatesCSV decodes "date,tenor,level" rows. The header row is required.
// Empty levels are skipped.
func ReadRatesCSV(r io.Reader) ([]models.RatePoint, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: rates csv header: %v", timeseries.ErrMalformedInput, err)
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	di, ok1 := col["date"]
	ti, ok2 := col["tenor"]
	li, ok3 := col["level"]
	if !ok1 || !ok2 || !ok3 {
		return nil, fmt.Errorf("%w: rates csv needs date,tenor,level columns, got %v", timeseries.ErrMalformedInput, header)
	}

	var out []models.RatePoint
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: rates csv line %d: %v", timeseries.ErrMalformedInput, line, err)
		}
		if strings.TrimSpace(rec[li]) == "" {
			continue
		}
		day, err := timeseries.ParseObservationDate(rec[di])
		if err != nil {
			return nil, fmt.Errorf("rates csv line %d: %w", line, err)
		}
		tenor, err := models.ParseTenor(rec[ti])
		if err != nil {
			return nil, fmt.Errorf("%w: rates csv line %d: %v", timeseries.ErrMalformedInput, line, err)
		}
		level, err := strconv.ParseFloat(strings.TrimSpace(rec[li]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: rates csv line %d: level %q", timeseries.ErrMalformedInput, line, rec[li])
		}
		out = append(out, models.RatePoint{Date: day, Tenor: tenor, Level: level})
	}
	return out, nil
}

// FileLoader ingests VolCube files and a rates CSV into a writer.
type FileLoader struct {
	volPattern string
	ratesFile  string
	l          *applogger.Logger
}

func NewFileLoader(volPattern, ratesFile string) *FileLoader {
	return &FileLoader{volPattern: volPattern, ratesFile: ratesFile}
}

// SetLogger injects a structured logger.
func (f *FileLoader) SetLogger(l *applogger.Logger) { f.l = l }

// Load reads every matching vol file in name order, then the rates file.
// A missing rates file is logged and skipped; realized stats will be undefined.
func (f *FileLoader) Load(ctx context.Context, w domrepo.MarketDataWriter) (vols, rates int, err error) {
	paths, err := filepath.Glob(f.volPattern)
	if err != nil {
		return 0, 0, fmt.Errorf("vol pattern: %w", err)
	}
	if len(paths) == 0 {
		return 0, 0, fmt.Errorf("no vol files match %q", f.volPattern)
	}
	sort.Strings(paths)

	for _, p := range paths {
		pts, err := readFile(p, ReadVolCube)
		if err != nil {
			return vols, rates, err
		}
		if err := w.UpsertVols(ctx, pts); err != nil {
			return vols, rates, fmt.Errorf("ingest %s: %w", p, err)
		}
		vols += len(pts)
		if f.l != nil {
			f.l.Info("loaded vol file", applogger.String("path", p), applogger.Int("points", len(pts)))
		}
	}

	if f.ratesFile == "" {
		return vols, rates, nil
	}
	pts, err := readFile(f.ratesFile, ReadRatesCSV)
	if errors.Is(err, os.ErrNotExist) {
		if f.l != nil {
			f.l.Warn("rates file not found", applogger.String("path", f.ratesFile))
		}
		return vols, rates, nil
	}
	if err != nil {
		return vols, rates, err
	}
	if err := w.UpsertRates(ctx, pts); err != nil {
		return vols, rates, fmt.Errorf("ingest %s: %w", f.ratesFile, err)
	}
	rates = len(pts)
	if f.l != nil {
		f.l.Info("loaded rates file", applogger.String("path", f.ratesFile), applogger.Int("points", rates))
	}
	return vols, rates, nil
}

func readFile[T any](path string, decode func(io.Reader) ([]T, error)) ([]T, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	out, err := decode(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}
