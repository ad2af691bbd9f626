package timeseries

import (
	"fmt"
	"math"
	"sort"
	"time"

	"VolMonitor/pkg/util"
)

// DateLayout is the calendar date format used on every external surface.
const DateLayout = "2006-01-02"

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD string.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrMalformedInput, s)
	}
	return t, nil
}

// ParseObservationDate is the lenient parser for ingested data: ISO, compact
// (20240102) and US (01/02/2024) dates, RFC3339 timestamps and unix seconds
// all resolve to their calendar day.
func ParseObservationDate(s string) (time.Time, error) {
	t, ok := util.ParseDate(s)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrMalformedInput, s)
	}
	return t, nil
}

// Point is one dated observation. NaN marks a missing value.
type Point struct {
	Date  time.Time
	Value float64
}

// Series is an immutable, strictly increasing sequence of dated values.
// Positions are observation indices, not calendar offsets.
type Series struct {
	dates  []time.Time
	values []float64
}

// NewSeries sorts the points by date. Dates are normalized with Day.
// Duplicate dates and infinite values are rejected.
func NewSeries(points []Point) (*Series, error) {
	ps := make([]Point, len(points))
	for i, p := range points {
		if math.IsInf(p.Value, 0) {
			return nil, fmt.Errorf("%w: infinite value on %s", ErrMalformedInput, p.Date.Format(DateLayout))
		}
		ps[i] = Point{Date: Day(p.Date), Value: p.Value}
	}
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].Date.Before(ps[j].Date) })

	s := &Series{
		dates:  make([]time.Time, len(ps)),
		values: make([]float64, len(ps)),
	}
	for i, p := range ps {
		if i > 0 && p.Date.Equal(ps[i-1].Date) {
			return nil, fmt.Errorf("%w: duplicate date %s", ErrMalformedInput, p.Date.Format(DateLayout))
		}
		s.dates[i] = p.Date
		s.values[i] = p.Value
	}
	return s, nil
}

func (s *Series) Len() int { return len(s.dates) }

func (s *Series) DateAt(i int) time.Time { return s.dates[i] }

func (s *Series) ValueAt(i int) float64 { return s.values[i] }

// Values exposes the backing values. Callers must not modify them.
func (s *Series) Values() []float64 { return s.values }

// Dates exposes the backing dates. Callers must not modify them.
func (s *Series) Dates() []time.Time { return s.dates }

// First and Last return the date bounds; ok is false for an empty series.
func (s *Series) First() (time.Time, bool) {
	if len(s.dates) == 0 {
		return time.Time{}, false
	}
	return s.dates[0], true
}

func (s *Series) Last() (time.Time, bool) {
	if len(s.dates) == 0 {
		return time.Time{}, false
	}
	return s.dates[len(s.dates)-1], true
}

// Index returns the position of date d, if present.
func (s *Series) Index(d time.Time) (int, bool) {
	d = Day(d)
	i := sort.Search(len(s.dates), func(i int) bool { return !s.dates[i].Before(d) })
	if i < len(s.dates) && s.dates[i].Equal(d) {
		return i, true
	}
	return -1, false
}

// AsOf resolves d to its exact position. A missing date is an error; there is
// no implicit snapping to an earlier observation.
func (s *Series) AsOf(d time.Time) (int, error) {
	if i, ok := s.Index(d); ok {
		return i, nil
	}
	return -1, &DateNotCoveredError{Date: Day(d)}
}

// AsOfOrBefore resolves d to the last observation on or before it.
func (s *Series) AsOfOrBefore(d time.Time) (int, error) {
	d = Day(d)
	i := sort.Search(len(s.dates), func(i int) bool { return s.dates[i].After(d) })
	if i == 0 {
		return -1, &DateNotCoveredError{Date: d}
	}
	return i - 1, nil
}

// OffsetIndex returns the position n observations before i.
func (s *Series) OffsetIndex(i, n int) (int, error) {
	if i < 0 || i >= len(s.dates) || n < 0 {
		return -1, fmt.Errorf("%w: offset %d from index %d", ErrMalformedInput, n, i)
	}
	if i-n < 0 {
		return -1, fmt.Errorf("%w: need %d prior observations, have %d", ErrInsufficientHistory, n, i)
	}
	return i - n, nil
}

// Truncate returns the prefix ending at position i inclusive. Nothing after
// the as-of position is visible through the result.
func (s *Series) Truncate(i int) *Series {
	if i < 0 {
		return &Series{}
	}
	if i >= len(s.dates) {
		i = len(s.dates) - 1
	}
	return &Series{
		dates:  s.dates[: i+1 : i+1],
		values: s.values[: i+1 : i+1],
	}
}

// TruncateAt returns the prefix up to and including date d.
func (s *Series) TruncateAt(d time.Time) (*Series, error) {
	i, err := s.AsOf(d)
	if err != nil {
		return nil, err
	}
	return s.Truncate(i), nil
}
