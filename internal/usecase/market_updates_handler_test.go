package usecase

import (
	"context"
	"errors"
	"testing"

	"VolMonitor/internal/repository"
	"VolMonitor/pkg/kafka"
	"VolMonitor/pkg/metrics"
)

func TestMarketUpdatesHandlerIngests(t *testing.T) {
	s := repository.NewMemoryStore()
	h := NewMarketUpdatesHandler("market-data-updates", s, metrics.Nop{})
	b := NewTableBuilder(s, oneCellGrid(t), DefaultAnalyticsParams())
	h.WarmLatest(b)

	msg := []byte(`{"vols":[{"date":"2024-01-02","option_tenor":"1m","underlying_tenor":"2","value":81.5}],
		"rates":        [{"date":"2024-01-02","tenor":"2Y","level":4.1}]}`)
	if err := h.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	snap, _ := s.Snapshot(context.Background())
	if len(snap.Vols) != 1 || len(snap.Rates) != 1 {
		t.Fatalf("snapshot %d/%d", len(snap.Vols), len(snap.Rates))
	}
	if snap.Vols[0].Cell != cellOf("1M", "2Y") {
		t.Fatalf("tenors not normalized: %s", snap.Vols[0].Cell)
	}
	tbl, err := b.BuildLatest(context.Background())
	if err != nil || tbl.Rows[0].ImpliedVolAnn != 81.5 {
		t.Fatalf("latest table not built from update: %v", err)
	}
}

func TestMarketUpdatesHandlerRejects(t *testing.T) {
	s := repository.NewMemoryStore()
	h := NewMarketUpdatesHandler("t", s, metrics.Nop{})
	cases := map[string]string{
		"not json":     `{`,
		"empty":        `{}`,
		"bad date":     `{"vols":[{"date":"2024-13-45","option_tenor":"1M","underlying_tenor":"2Y","value":1}]}`,
		"bad tenor":    `{"rates":[{"date":"2024-01-02","tenor":"2W","level":1}]}`,
		"missing cell": `{"vols":[{"date":"2024-01-02","value":1}]}`,
	}
	for name, payload := range cases {
		err := h.Handle(context.Background(), []byte(payload))
		if !errors.Is(err, kafka.ErrPermanent) {
			t.Fatalf("%s: expected permanent error, got %v", name, err)
		}
	}
	if v, _ := s.Version(context.Background()); v != "mem-0" {
		t.Fatalf("rejected updates must not touch the store: %s", v)
	}
}

func TestMarketUpdatesHandlerDateLayouts(t *testing.T) {
	s := repository.NewMemoryStore()
	h := NewMarketUpdatesHandler("t", s, metrics.Nop{})
	msg := []byte(`{"vols":[{"date":"20240103","option_tenor":"1M","underlying_tenor":"2Y","value":80},
		{"date":"01/04/2024","option_tenor":"1M","underlying_tenor":"2Y","value":81}],
		"rates":[{"date":"2024-01-03T16:30:00Z","tenor":"2Y","level":4.1}]}`)
	if err := h.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	snap, _ := s.Snapshot(context.Background())
	if len(snap.Vols) != 2 || !snap.Vols[0].Date.Equal(dayN(2)) || !snap.Vols[1].Date.Equal(dayN(3)) {
		t.Fatalf("vol dates: %+v", snap.Vols)
	}
	if len(snap.Rates) != 1 || !snap.Rates[0].Date.Equal(dayN(2)) {
		t.Fatalf("rate dates: %+v", snap.Rates)
	}
}
