package usecase

import (
	"fmt"

	"VolMonitor/internal/services/features"
	"VolMonitor/internal/services/movers"
	"VolMonitor/pkg/config"
)

// RateAlignment decides which rate observation realized vol uses for an as-of date.
type RateAlignment string

const (
	// AlignPrevious uses the latest rate on or before the as-of date, within a lag limit.
	AlignPrevious RateAlignment = "previous"
	// AlignExact requires a rate observation on the as-of date itself.
	AlignExact RateAlignment = "exact"
)

// AnalyticsParams are the window and policy constants of a table build.
type AnalyticsParams struct {
	ZScoreWindow       int
	ExtremaWindow      int
	Horizons           []movers.Horizon
	RealizedHorizons   []int
	TradingDaysPerYear float64
	RichCheapThreshold float64
	RateUnits          features.RateUnits
	RateAlignment      RateAlignment
	RateMaxLagDays     int
	Workers            int
}

func DefaultAnalyticsParams() AnalyticsParams {
	return AnalyticsParams{
		ZScoreWindow:       60,
		ExtremaWindow:      20,
		Horizons:           append([]movers.Horizon(nil), movers.DefaultHorizons...),
		RealizedHorizons:   []int{10, 20, 60, 90, 120, 180},
		TradingDaysPerYear: 252,
		RichCheapThreshold: 1.3,
		RateUnits:          features.UnitsPercent,
		RateAlignment:      AlignPrevious,
		RateMaxLagDays:     7,
		Workers:            4,
	}
}

// ParamsFromConfig maps the analytics config section.
func ParamsFromConfig(c config.AnalyticsConfig) (AnalyticsParams, error) {
	units, err := features.ParseRateUnits(c.RateUnits)
	if err != nil {
		return AnalyticsParams{}, err
	}
	align := RateAlignment(c.RateAlignment)
	if align != AlignPrevious && align != AlignExact {
		return AnalyticsParams{}, fmt.Errorf("unknown rate alignment %q", c.RateAlignment)
	}
	return AnalyticsParams{
		ZScoreWindow:  c.ZScoreWindow,
		ExtremaWindow: c.ExtremaWindow,
		Horizons: []movers.Horizon{
			{Name: "1d", Offset: c.ChangeOffsets.Day, Lookback: c.MoverLookbacks.Day},
			{Name: "1w", Offset: c.ChangeOffsets.Week, Lookback: c.MoverLookbacks.Week},
			{Name: "1m", Offset: c.ChangeOffsets.Month, Lookback: c.MoverLookbacks.Month},
		},
		RealizedHorizons:   append([]int(nil), c.RealizedHorizons...),
		TradingDaysPerYear: c.TradingDaysPerYear,
		RichCheapThreshold: c.RichCheapThreshold,
		RateUnits:          units,
		RateAlignment:      align,
		RateMaxLagDays:     c.RateMaxLagDays,
		Workers:            c.Workers,
	}, nil
}
