package movers

import (
	"math"
	"testing"
)

func TestChange(t *testing.T) {
	vals := []float64{50, 52, 51, 55}
	if c := Change(vals, 3, 1); c != 4 {
		t.Fatalf("1-step change=%v", c)
	}
	if c := Change(vals, 3, 3); c != 5 {
		t.Fatalf("3-step change=%v", c)
	}
	if c := Change(vals, 2, 3); !math.IsNaN(c) {
		t.Fatalf("expected NaN without history")
	}
}

// moveAt is the move at end as the table builder assembles it.
func moveAt(vals []float64, end int, h Horizon) Move {
	return Move{
		Current:     math.Abs(Change(vals, end, h.Offset)),
		TrailingMax: TrailingMaxAbsChange(vals, h.Offset, h.Lookback)[end],
	}
}

func TestMoveFlagsLargest(t *testing.T) {
	// 11 values: 10 one-day changes of 1, then a jump
	vals := make([]float64, 12)
	for i := range vals {
		vals[i] = float64(i)
	}
	vals[11] = 20
	h := Horizon{Name: "1d", Offset: 1, Lookback: 10}
	m := moveAt(vals, 11, h)
	if m.Current != 10 || m.TrailingMax != 10 || !m.IsLargest() {
		t.Fatalf("unexpected move %+v", m)
	}
	m = moveAt(vals, 10, h)
	if !m.IsLargest() {
		t.Fatalf("flat moves tie and must flag: %+v", m)
	}
}

func TestMoveNotLargest(t *testing.T) {
	vals := []float64{0, 0, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19}
	m := moveAt(vals, 11, Horizon{Offset: 1, Lookback: 10})
	if m.IsLargest() {
		t.Fatalf("move of 1 after a move of 10 must not flag: %+v", m)
	}
}

func TestMoveRequiresFullLookback(t *testing.T) {
	vals := []float64{1, 2, 3, 10}
	m := moveAt(vals, 3, Horizon{Offset: 1, Lookback: 10})
	if m.IsLargest() {
		t.Fatalf("short history must not flag")
	}
	if !math.IsNaN(m.TrailingMax) {
		t.Fatalf("expected NaN trailing max")
	}
}

func TestTrailingMaxMatchesBruteForce(t *testing.T) {
	vals := []float64{5, 7, 6, 9, 4, 4, 8, 3, 10, 2, 6, 6, 11, 1}
	k, lookback := 2, 4
	series := TrailingMaxAbsChange(vals, k, lookback)
	abs := AbsChanges(vals, k)
	for i := range vals {
		want := math.NaN()
		if i-lookback+1-k >= 0 {
			for j := i - lookback + 1; j <= i; j++ {
				if math.IsNaN(want) || abs[j] > want {
					want = abs[j]
				}
			}
		}
		got := series[i]
		if math.IsNaN(got) != math.IsNaN(want) || (!math.IsNaN(got) && got != want) {
			t.Fatalf("i=%d series=%v want=%v", i, got, want)
		}
	}
	if !math.IsNaN(abs[0]) || !math.IsNaN(abs[1]) || abs[2] != 1 {
		t.Fatalf("abs changes %v", abs[:3])
	}
}

func TestAssembleFlagsPerCell(t *testing.T) {
	moves := [][]Move{
		{{Current: 3, TrailingMax: 3}, {Current: 1, TrailingMax: 2}},
		{{Current: 0.5, TrailingMax: 0.5}, {Current: math.NaN(), TrailingMax: 2}},
	}
	flags := AssembleFlags(moves)
	want := [][]bool{{true, false}, {true, false}}
	for i := range want {
		for j := range want[i] {
			if flags[i][j] != want[i][j] {
				t.Fatalf("flag[%d][%d]=%v", i, j, flags[i][j])
			}
		}
	}
}
