package repository

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"VolMonitor/internal/domain/models"
	"VolMonitor/internal/services/timeseries"
)

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func cell(o, u string) models.GridCell {
	return models.GridCell{OptionTenor: models.MustTenor(o), UnderlyingTenor: models.MustTenor(u)}
}

func TestMemoryStoreVersionBumpsOnWrite(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	v0, _ := s.Version(ctx)

	if err := s.UpsertVols(ctx, []models.ImpliedVolPoint{{Date: day(2024, 1, 2), Cell: cell("1M", "2Y"), Value: 80}}); err != nil {
		t.Fatalf("UpsertVols: %v", err)
	}
	v1, _ := s.Version(ctx)
	if v1 == v0 {
		t.Fatalf("version must change after write")
	}

	snap1, _ := s.Snapshot(ctx)
	if snap1.Version != v1 || len(snap1.Vols) != 1 {
		t.Fatalf("snapshot: %+v", snap1)
	}
	again, _ := s.Snapshot(ctx)
	if again != snap1 {
		t.Fatalf("snapshot must be memoized until the next write")
	}

	// backfill correction overwrites the same key
	_ = s.UpsertVols(ctx, []models.ImpliedVolPoint{{Date: day(2024, 1, 2), Cell: cell("1M", "2Y"), Value: 81}})
	snap2, _ := s.Snapshot(ctx)
	if snap2.Version == v1 || len(snap2.Vols) != 1 || snap2.Vols[0].Value != 81 {
		t.Fatalf("correction not applied: %+v", snap2)
	}
	if snap1.Vols[0].Value != 80 {
		t.Fatalf("older snapshot mutated")
	}
}

func TestMemoryStoreRejectsMalformed(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	bad := []models.ImpliedVolPoint{{Date: day(2024, 1, 2), Cell: cell("1M", "2Y"), Value: math.Inf(1)}}
	if err := s.UpsertVols(ctx, bad); !errors.Is(err, timeseries.ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput, got %v", err)
	}
	if err := s.UpsertRates(ctx, []models.RatePoint{{Tenor: "2Y", Level: 4}}); !errors.Is(err, timeseries.ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput for missing date, got %v", err)
	}
	if v, _ := s.Version(ctx); v != "mem-0" {
		t.Fatalf("rejected writes must not bump version: %s", v)
	}
}

func TestReadVolCube(t *testing.T) {
	pts, err := readFile("testdata/volcube/2024.json", ReadVolCube)
	if err != nil {
		t.Fatalf("ReadVolCube: %v", err)
	}
	// 2 on 01-02, 3 on 01-03 (null skipped)
	if len(pts) != 5 {
		t.Fatalf("points=%d", len(pts))
	}
	if !pts[0].Date.Equal(day(2024, 1, 2)) || pts[0].Cell != cell("1M", "10Y") || pts[0].Value != 94.5 {
		t.Fatalf("first point %+v", pts[0])
	}
}

func TestReadVolCubeMalformed(t *testing.T) {
	cases := []string{
		`{"2024-13-01": [{"Option Tenor": "1M", "2Y": 1}]}`,
		`{"2024-01-02": [{"2Y": 1}]}`,
		`{"2024-01-02": [{"Option Tenor": "1M", "2Q": 1}]}`,
		`{"2024-01-02": [{"Option Tenor": "1M", "2Y": "high"}]}`,
		`[1,2,3]`,
	}
	for _, c := range cases {
		if _, err := ReadVolCube(strings.NewReader(c)); !errors.Is(err, timeseries.ErrMalformedInput) {
			t.Fatalf("%s: expected ErrMalformedInput, got %v", c, err)
		}
	}
}

func TestReadRatesCSV(t *testing.T) {
	pts, err := readFile("testdata/rates.csv", ReadRatesCSV)
	if err != nil {
		t.Fatalf("ReadRatesCSV: %v", err)
	}
	if len(pts) != 3 {
		t.Fatalf("points=%d", len(pts))
	}
	if pts[1].Tenor != "10Y" || pts[1].Level != 3.95 {
		t.Fatalf("bare tenor not normalized: %+v", pts[1])
	}
	// compact and US dates resolve like ISO ones
	if !pts[1].Date.Equal(day(2024, 1, 2)) || !pts[2].Date.Equal(day(2024, 1, 3)) {
		t.Fatalf("dates: %v %v", pts[1].Date, pts[2].Date)
	}
	if _, err := ReadRatesCSV(strings.NewReader("date,tenor,level\nsoon,2Y,4\n")); !errors.Is(err, timeseries.ErrMalformedInput) {
		t.Fatalf("expected date error, got %v", err)
	}
	if _, err := ReadRatesCSV(strings.NewReader("day,rate\n2024-01-02,4\n")); !errors.Is(err, timeseries.ErrMalformedInput) {
		t.Fatalf("expected header error, got %v", err)
	}
	if _, err := ReadRatesCSV(strings.NewReader("date,tenor,level\n2024-01-02,2Y,abc\n")); !errors.Is(err, timeseries.ErrMalformedInput) {
		t.Fatalf("expected level error, got %v", err)
	}
}

func TestFileLoaderLoad(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	vols, rates, err := NewFileLoader("testdata/volcube/*.json", "testdata/rates.csv").Load(ctx, s)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if vols != 5 || rates != 3 {
		t.Fatalf("vols=%d rates=%d", vols, rates)
	}
	snap, _ := s.Snapshot(ctx)
	if len(snap.Vols) != 5 || len(snap.Rates) != 3 {
		t.Fatalf("snapshot %d/%d", len(snap.Vols), len(snap.Rates))
	}

	_, rates, err = NewFileLoader("testdata/volcube/*.json", "testdata/missing.csv").Load(ctx, NewMemoryStore())
	if err != nil || rates != 0 {
		t.Fatalf("missing rates file must be tolerated: %v", err)
	}
	if _, _, err := NewFileLoader("testdata/none/*.json", "").Load(ctx, NewMemoryStore()); err == nil {
		t.Fatalf("expected error when no vol files match")
	}
}

func TestMemoryStoreCanonicalizesTenors(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	raw := models.GridCell{OptionTenor: "12M", UnderlyingTenor: "24M"}
	_ = s.UpsertVols(ctx, []models.ImpliedVolPoint{{Date: day(2024, 1, 2), Cell: raw, Value: 70}})
	_ = s.UpsertVols(ctx, []models.ImpliedVolPoint{{Date: day(2024, 1, 2), Cell: cell("1Y", "2Y"), Value: 71}})
	_ = s.UpsertRates(ctx, []models.RatePoint{{Date: day(2024, 1, 2), Tenor: "120M", Level: 4}})
	snap, _ := s.Snapshot(ctx)
	if len(snap.Vols) != 1 || snap.Vols[0].Cell != cell("1Y", "2Y") || snap.Vols[0].Value != 71 {
		t.Fatalf("12M x 24M must land on the 1Y x 2Y key: %+v", snap.Vols)
	}
	if len(snap.Rates) != 1 || snap.Rates[0].Tenor != "10Y" {
		t.Fatalf("rates: %+v", snap.Rates)
	}
}
