package movers

import (
	"math"

	"VolMonitor/internal/services/timeseries"
)

// Horizon pairs a change offset (in stored observations) with the trailing
// lookback used to decide whether today's move is the largest.
type Horizon struct {
	Name     string
	Offset   int
	Lookback int
}

// DefaultHorizons are the 1d, 1w and 1m horizons.
var DefaultHorizons = []Horizon{
	{Name: "1d", Offset: 1, Lookback: 10},
	{Name: "1w", Offset: 5, Lookback: 20},
	{Name: "1m", Offset: 20, Lookback: 120},
}

// Change is values[end] - values[end-k], NaN when either side is missing.
func Change(values []float64, end, k int) float64 {
	if end < 0 || end >= len(values) || k < 0 || end-k < 0 {
		return math.NaN()
	}
	return values[end] - values[end-k]
}

// AbsChanges returns |values[i] - values[i-k]| for every position.
func AbsChanges(values []float64, k int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		out[i] = math.Abs(Change(values, i, k))
	}
	return out
}

// TrailingMaxAbsChange is, per position, the largest |k-step change| over the
// trailing lookback positions. Positions without a full lookback of history
// are NaN.
func TrailingMaxAbsChange(values []float64, k, lookback int) []float64 {
	out := timeseries.RollingMax(AbsChanges(values, k), lookback, 1)
	for i := range out {
		if !hasFullLookback(i, k, lookback) {
			out[i] = math.NaN()
		}
	}
	return out
}

func hasFullLookback(end, k, lookback int) bool {
	return lookback > 0 && end-lookback+1-k >= 0
}

// Move is the per-cell input to flag assembly for one horizon.
type Move struct {
	Current     float64
	TrailingMax float64
}

// IsLargest reports whether the current move equals the trailing max. Ties
// with earlier dates still flag.
func (m Move) IsLargest() bool {
	if math.IsNaN(m.Current) || math.IsNaN(m.TrailingMax) {
		return false
	}
	return m.Current >= m.TrailingMax
}

// AssembleFlags turns per-cell moves, indexed [cell][horizon], into flags of
// the same shape. Each cell is judged against its own history only.
func AssembleFlags(moves [][]Move) [][]bool {
	out := make([][]bool, len(moves))
	for i, row := range moves {
		out[i] = make([]bool, len(row))
		for j, m := range row {
			out[i][j] = m.IsLargest()
		}
	}
	return out
}
