package features

import (
	"math"
	"testing"
)

func TestParseRateUnits(t *testing.T) {
	for in, want := range map[string]RateUnits{"": UnitsPercent, "Percent": UnitsPercent, "decimal": UnitsDecimal, " bp ": UnitsBP} {
		got, err := ParseRateUnits(in)
		if err != nil || got != want {
			t.Fatalf("ParseRateUnits(%q)=%q,%v", in, got, err)
		}
	}
	if _, err := ParseRateUnits("ticks"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestBPChanges(t *testing.T) {
	got := BPChanges([]float64{4.00, 4.05, 3.95}, UnitsPercent.BPMultiplier())
	if !math.IsNaN(got[0]) {
		t.Fatalf("first change must be NaN")
	}
	if math.Abs(got[1]-5) > 1e-9 || math.Abs(got[2]+10) > 1e-9 {
		t.Fatalf("unexpected %v", got)
	}
	dec := BPChanges([]float64{0.04, 0.0405}, UnitsDecimal.BPMultiplier())
	if math.Abs(dec[1]-5) > 1e-9 {
		t.Fatalf("decimal units: %v", dec[1])
	}
}

func TestRealizedVolatilityMatchesDirectStd(t *testing.T) {
	levels := []float64{4.00, 4.02, 3.99, 4.05, 4.01, 4.04}
	ch := BPChanges(levels, 100)
	got := RealizedVolatility(ch, 5, 5, 252)

	vals := ch[1:]
	mean := 0.0
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))
	ss := 0.0
	for _, v := range vals {
		ss += (v - mean) * (v - mean)
	}
	want := math.Sqrt(ss/float64(len(vals)-1)) * math.Sqrt(252)
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("got %v want %v", got, want)
	}
	// the window needs 5 changes, i.e. 6 levels
	if v := RealizedVolatility(ch, 4, 5, 252); !math.IsNaN(v) {
		t.Fatalf("expected NaN with short history, got %v", v)
	}
}

func TestRealizedVolSeries(t *testing.T) {
	levels := make([]float64, 30)
	for i := range levels {
		levels[i] = 4 + 0.01*float64(i%3)
	}
	ch := BPChanges(levels, 100)
	series := RealizedVolSeries(ch, 10, 252)
	if series[len(series)-1] != RealizedVolatility(ch, len(ch)-1, 10, 252) {
		t.Fatalf("series and point disagree")
	}
	// 10 changes need 11 levels
	if !math.IsNaN(series[9]) || math.IsNaN(series[10]) {
		t.Fatalf("window edge: %v %v", series[9], series[10])
	}
	if long := RealizedVolSeries(ch, 60, 252); !math.IsNaN(long[len(long)-1]) {
		t.Fatalf("expected NaN for 60 with 29 changes")
	}
}

func TestRealizedScalesWithLevels(t *testing.T) {
	levels := make([]float64, 200)
	for i := range levels {
		levels[i] = 3.5 + 0.4*math.Sin(float64(i)/7) + 0.03*float64(i%5)
	}
	doubled := make([]float64, len(levels))
	for i, v := range levels {
		doubled[i] = 2 * v
	}
	ch, ch2 := BPChanges(levels, 100), BPChanges(doubled, 100)
	for _, w := range []int{10, 20, 60, 90, 120, 180} {
		base, scaled := RealizedVolSeries(ch, w, 252), RealizedVolSeries(ch2, w, 252)
		for i := range base {
			if math.IsNaN(base[i]) != math.IsNaN(scaled[i]) {
				t.Fatalf("w=%d i=%d definedness differs", w, i)
			}
			if !math.IsNaN(base[i]) && math.Abs(scaled[i]-2*base[i]) > 1e-9*math.Max(1, base[i]) {
				t.Fatalf("w=%d i=%d doubled=%v base=%v", w, i, scaled[i], base[i])
			}
		}
		if math.IsNaN(base[len(base)-1]) {
			t.Fatalf("w=%d must be defined at the end", w)
		}
	}
}

func TestRatioAndDaily(t *testing.T) {
	if r := ImpliedRealizedRatio(80, 40); r != 2 {
		t.Fatalf("ratio=%v", r)
	}
	if r := ImpliedRealizedRatio(80, 0); !math.IsNaN(r) {
		t.Fatalf("zero realized must be NaN")
	}
	if r := ImpliedRealizedRatio(math.NaN(), 40); !math.IsNaN(r) {
		t.Fatalf("NaN implied must be NaN")
	}
	if d := DailyVol(math.Sqrt(252)*5, 252); math.Abs(d-5) > 1e-12 {
		t.Fatalf("daily=%v", d)
	}
}
