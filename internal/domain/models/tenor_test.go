package models

import "testing"

func TestParseTenorCanonical(t *testing.T) {
	cases := map[string]Tenor{
		"12M": "1Y",
		"24m": "2Y",
		"18M": "18M",
		"10":  "10Y",
		" 3m": "3M",
		"1y":  "1Y",
	}
	for raw, want := range cases {
		got, err := ParseTenor(raw)
		if err != nil {
			t.Fatalf("ParseTenor(%q): %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseTenor(%q)=%s want %s", raw, got, want)
		}
	}
	for _, raw := range []string{"", "Y", "0M", "-1Y", "3W"} {
		if _, err := ParseTenor(raw); err == nil {
			t.Fatalf("ParseTenor(%q) should fail", raw)
		}
	}
}

func TestGridRejectsSameMaturityTwice(t *testing.T) {
	if _, err := NewGrid([]string{"12M", "1Y"}, []string{"2Y"}); err == nil {
		t.Fatalf("12M and 1Y are the same option tenor")
	}
	if _, err := NewGrid([]string{"1M"}, []string{"2Y", "24M"}); err == nil {
		t.Fatalf("2Y and 24M are the same underlying tenor")
	}
}

func TestGridIndexMatchesByMaturity(t *testing.T) {
	g := DefaultGrid()
	want := g.IndexOf(GridCell{OptionTenor: "1Y", UnderlyingTenor: "2Y"})
	if want < 0 {
		t.Fatalf("1Y x 2Y missing from default grid")
	}
	raw := GridCell{OptionTenor: "12M", UnderlyingTenor: "24M"}
	if got := g.IndexOf(raw); got != want {
		t.Fatalf("IndexOf(12M x 24M)=%d want %d", got, want)
	}
	if c := raw.Canonical(); c != (GridCell{OptionTenor: "1Y", UnderlyingTenor: "2Y"}) {
		t.Fatalf("Canonical=%s", c)
	}
	if !g.HasUnderlying("120M") || g.HasUnderlying("7Y") || g.HasUnderlying("bad") {
		t.Fatalf("HasUnderlying mismatch")
	}
	if g.IndexOf(GridCell{OptionTenor: "x", UnderlyingTenor: "2Y"}) != -1 {
		t.Fatalf("invalid tenor must not match")
	}
}
