package repository

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"VolMonitor/internal/domain/models"
	"VolMonitor/internal/services/timeseries"
	applogger "VolMonitor/pkg/logger"
)

type volKey struct {
	date time.Time
	cell models.GridCell
}

type rateKey struct {
	date  time.Time
	tenor models.Tenor
}

// MemoryStore keeps market data in process. Every successful upsert bumps the
// dataset version, so derived tables keyed by version are never stale.
type MemoryStore struct {
	mu      sync.RWMutex
	vols    map[volKey]float64
	rates   map[rateKey]float64
	version uint64
	snap    *models.MarketSnapshot
	l       *applogger.Logger
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		vols:  make(map[volKey]float64),
		rates: make(map[rateKey]float64),
	}
}

// SetLogger injects a structured logger.
func (s *MemoryStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *MemoryStore) UpsertVols(_ context.Context, points []models.ImpliedVolPoint) error {
	if len(points) == 0 {
		return nil
	}
	for _, p := range points {
		if err := validateVol(p); err != nil {
			return err
		}
	}
	s.mu.Lock()
	for _, p := range points {
		s.vols[volKey{date: timeseries.Day(p.Date), cell: p.Cell.Canonical()}] = p.Value
	}
	s.bumpLocked()
	s.mu.Unlock()
	if s.l != nil {
		s.l.Debug("memory store upsert vols", applogger.Int("points", len(points)), applogger.String("version", s.versionString()))
	}
	return nil
}

func (s *MemoryStore) UpsertRates(_ context.Context, points []models.RatePoint) error {
	if len(points) == 0 {
		return nil
	}
	for _, p := range points {
		if err := validateRate(p); err != nil {
			return err
		}
	}
	s.mu.Lock()
	for _, p := range points {
		s.rates[rateKey{date: timeseries.Day(p.Date), tenor: p.Tenor.Canonical()}] = p.Level
	}
	s.bumpLocked()
	s.mu.Unlock()
	if s.l != nil {
		s.l.Debug("memory store upsert rates", applogger.Int("points", len(points)), applogger.String("version", s.versionString()))
	}
	return nil
}

func (s *MemoryStore) bumpLocked() {
	s.version++
	s.snap = nil
}

func (s *MemoryStore) Version(_ context.Context) (string, error) {
	return s.versionString(), nil
}

func (s *MemoryStore) versionString() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return formatVersion(s.version)
}

func formatVersion(v uint64) string { return fmt.Sprintf("mem-%d", v) }

// Snapshot returns a copy of the stored data ordered by date then key. The
// snapshot is memoized until the next write.
func (s *MemoryStore) Snapshot(_ context.Context) (*models.MarketSnapshot, error) {
	s.mu.RLock()
	if s.snap != nil {
		snap := s.snap
		s.mu.RUnlock()
		return snap, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap != nil {
		return s.snap, nil
	}
	snap := &models.MarketSnapshot{
		Version: formatVersion(s.version),
		Vols:    make([]models.ImpliedVolPoint, 0, len(s.vols)),
		Rates:   make([]models.RatePoint, 0, len(s.rates)),
	}
	for k, v := range s.vols {
		snap.Vols = append(snap.Vols, models.ImpliedVolPoint{Date: k.date, Cell: k.cell, Value: v})
	}
	for k, v := range s.rates {
		snap.Rates = append(snap.Rates, models.RatePoint{Date: k.date, Tenor: k.tenor, Level: v})
	}
	sort.Slice(snap.Vols, func(i, j int) bool {
		a, b := snap.Vols[i], snap.Vols[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.Cell.String() < b.Cell.String()
	})
	sort.Slice(snap.Rates, func(i, j int) bool {
		a, b := snap.Rates[i], snap.Rates[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.Tenor < b.Tenor
	})
	s.snap = snap
	return snap, nil
}

func (s *MemoryStore) Health(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func validateVol(p models.ImpliedVolPoint) error {
	if p.Date.IsZero() {
		return fmt.Errorf("%w: vol point without date", timeseries.ErrMalformedInput)
	}
	if p.Cell.OptionTenor.Months() < 0 || p.Cell.UnderlyingTenor.Months() < 0 {
		return fmt.Errorf("%w: invalid cell %s", timeseries.ErrMalformedInput, p.Cell)
	}
	if math.IsInf(p.Value, 0) || p.Value < 0 {
		return fmt.Errorf("%w: vol %v for %s on %s", timeseries.ErrMalformedInput, p.Value, p.Cell, p.Date.Format(timeseries.DateLayout))
	}
	return nil
}

func validateRate(p models.RatePoint) error {
	if p.Date.IsZero() {
		return fmt.Errorf("%w: rate point without date", timeseries.ErrMalformedInput)
	}
	if p.Tenor.Months() < 0 {
		return fmt.Errorf("%w: invalid rate tenor %q", timeseries.ErrMalformedInput, p.Tenor)
	}
	if math.IsInf(p.Level, 0) {
		return fmt.Errorf("%w: rate level %v for %s", timeseries.ErrMalformedInput, p.Level, p.Tenor)
	}
	return nil
}
