package features

import (
	"fmt"
	"math"
	"strings"

	"VolMonitor/internal/services/timeseries"
)

// RateUnits is the unit convention of stored rate levels.
type RateUnits string

const (
	UnitsPercent RateUnits = "percent"
	UnitsDecimal RateUnits = "decimal"
	UnitsBP      RateUnits = "bp"
)

// ParseRateUnits normalizes a configured unit label. Empty means percent.
func ParseRateUnits(s string) (RateUnits, error) {
	switch u := RateUnits(strings.ToLower(strings.TrimSpace(s))); u {
	case "":
		return UnitsPercent, nil
	case UnitsPercent, UnitsDecimal, UnitsBP:
		return u, nil
	default:
		return "", fmt.Errorf("%w: rate units %q", timeseries.ErrMalformedInput, s)
	}
}

// BPMultiplier converts one unit of level change into basis points.
func (u RateUnits) BPMultiplier() float64 {
	switch u {
	case UnitsDecimal:
		return 10000
	case UnitsBP:
		return 1
	default:
		return 100
	}
}

// AnnualizationFactor is sqrt(tradingDays).
func AnnualizationFactor(tradingDays float64) float64 { return math.Sqrt(tradingDays) }

// BPChanges computes first differences of levels in basis points:
// out[t] = (level[t] - level[t-1]) * multiplier, with out[0] = NaN.
func BPChanges(levels []float64, multiplier float64) []float64 {
	out := make([]float64, len(levels))
	for i := range levels {
		if i == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = (levels[i] - levels[i-1]) * multiplier
	}
	return out
}

// RealizedVolatility is the sample std of the window bp changes ending at end,
// annualized by sqrt(tradingDays). The full window must be present.
func RealizedVolatility(changes []float64, end, window int, tradingDays float64) float64 {
	_, std := timeseries.WindowMeanStd(changes, end, window, window)
	if math.IsNaN(std) {
		return math.NaN()
	}
	return std * AnnualizationFactor(tradingDays)
}

// RealizedVolSeries applies RealizedVolatility at every position.
func RealizedVolSeries(changes []float64, window int, tradingDays float64) []float64 {
	out := make([]float64, len(changes))
	for i := range changes {
		out[i] = RealizedVolatility(changes, i, window, tradingDays)
	}
	return out
}

// ImpliedRealizedRatio is implied/realized, NaN when either is undefined or realized is zero.
func ImpliedRealizedRatio(implied, realized float64) float64 {
	if math.IsNaN(implied) || math.IsNaN(realized) || realized == 0 {
		return math.NaN()
	}
	return implied / realized
}

// DailyVol converts an annualized bp vol to a daily one.
func DailyVol(annualized, tradingDays float64) float64 {
	return annualized / AnnualizationFactor(tradingDays)
}
