package timeseries

import (
	"errors"
	"math"
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func mkSeries(t *testing.T, start time.Time, values ...float64) *Series {
	t.Helper()
	pts := make([]Point, len(values))
	for i, v := range values {
		pts[i] = Point{Date: start.AddDate(0, 0, i), Value: v}
	}
	s, err := NewSeries(pts)
	if err != nil {
		t.Fatalf("NewSeries: %v", err)
	}
	return s
}

func TestNewSeriesSortsAndNormalizes(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	pts := []Point{
		{Date: time.Date(2024, 1, 3, 16, 30, 0, 0, time.UTC), Value: 3},
		{Date: day(2024, 1, 1), Value: 1},
		{Date: time.Date(2024, 1, 2, 9, 0, 0, 0, est), Value: 2},
	}
	s, err := NewSeries(pts)
	if err != nil {
		t.Fatalf("NewSeries: %v", err)
	}
	if s.Len() != 3 {
		t.Fatalf("len=%d", s.Len())
	}
	for i, want := range []float64{1, 2, 3} {
		if s.ValueAt(i) != want {
			t.Fatalf("value[%d]=%v want %v", i, s.ValueAt(i), want)
		}
		if !s.DateAt(i).Equal(day(2024, 1, 1+i)) {
			t.Fatalf("date[%d]=%v", i, s.DateAt(i))
		}
	}
}

func TestNewSeriesRejectsDuplicates(t *testing.T) {
	_, err := NewSeries([]Point{{Date: day(2024, 1, 1), Value: 1}, {Date: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), Value: 2}})
	if !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput, got %v", err)
	}
	_, err = NewSeries([]Point{{Date: day(2024, 1, 1), Value: math.Inf(1)}})
	if !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput for inf, got %v", err)
	}
}

func TestAsOfExactOnly(t *testing.T) {
	// 2024-01-06 is skipped
	s, err := NewSeries([]Point{
		{Date: day(2024, 1, 4), Value: 1},
		{Date: day(2024, 1, 5), Value: 2},
		{Date: day(2024, 1, 8), Value: 3},
	})
	if err != nil {
		t.Fatal(err)
	}
	if i, err := s.AsOf(day(2024, 1, 5)); err != nil || i != 1 {
		t.Fatalf("AsOf exact: i=%d err=%v", i, err)
	}
	_, err = s.AsOf(day(2024, 1, 6))
	if !errors.Is(err, ErrDateNotCovered) {
		t.Fatalf("expected ErrDateNotCovered, got %v", err)
	}
	var dnc *DateNotCoveredError
	if !errors.As(err, &dnc) || !dnc.Date.Equal(day(2024, 1, 6)) {
		t.Fatalf("expected typed error with date, got %v", err)
	}
	if i, err := s.AsOfOrBefore(day(2024, 1, 6)); err != nil || i != 1 {
		t.Fatalf("AsOfOrBefore: i=%d err=%v", i, err)
	}
	if _, err := s.AsOfOrBefore(day(2024, 1, 1)); !errors.Is(err, ErrDateNotCovered) {
		t.Fatalf("AsOfOrBefore before start: %v", err)
	}
}

func TestOffsetWalksStoredObservations(t *testing.T) {
	// gap between 2024-01-05 and 2024-01-10
	s, err := NewSeries([]Point{
		{Date: day(2024, 1, 3), Value: 1},
		{Date: day(2024, 1, 4), Value: 2},
		{Date: day(2024, 1, 5), Value: 3},
		{Date: day(2024, 1, 10), Value: 4},
		{Date: day(2024, 1, 11), Value: 5},
	})
	if err != nil {
		t.Fatal(err)
	}
	j, err := s.OffsetIndex(4, 2)
	if err != nil || !s.DateAt(j).Equal(day(2024, 1, 5)) {
		t.Fatalf("offset 2: j=%d err=%v", j, err)
	}
	if _, err := s.OffsetIndex(4, 5); !errors.Is(err, ErrInsufficientHistory) {
		t.Fatalf("expected ErrInsufficientHistory, got %v", err)
	}
	if j, err := s.OffsetIndex(4, 4); err != nil || j != 0 {
		t.Fatalf("offset to first obs: j=%d err=%v", j, err)
	}
}

func TestTruncateHidesFuture(t *testing.T) {
	s := mkSeries(t, day(2024, 1, 1), 1, 2, 3, 4, 5)
	p := s.Truncate(2)
	if p.Len() != 3 {
		t.Fatalf("len=%d", p.Len())
	}
	if last, _ := p.Last(); !last.Equal(day(2024, 1, 3)) {
		t.Fatalf("last=%v", last)
	}
	if _, ok := p.Index(day(2024, 1, 4)); ok {
		t.Fatalf("future date visible after truncate")
	}
	// appending to the prefix must not overwrite the parent
	_ = append(p.Values(), 99)
	if s.ValueAt(3) != 4 {
		t.Fatalf("parent mutated: %v", s.ValueAt(3))
	}
	if _, err := s.TruncateAt(day(2024, 2, 1)); !errors.Is(err, ErrDateNotCovered) {
		t.Fatalf("TruncateAt uncovered: %v", err)
	}
}

func TestParseDay(t *testing.T) {
	d, err := ParseDay("2024-03-15")
	if err != nil || !d.Equal(day(2024, 3, 15)) {
		t.Fatalf("ParseDay: %v %v", d, err)
	}
	if _, err := ParseDay("15/03/2024"); !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("expected malformed, got %v", err)
	}
}
