package models

import "time"

// ImpliedVolPoint is one observation of annualized implied vol for a grid cell.
type ImpliedVolPoint struct {
	Date  time.Time `json:"date"`
	Cell  GridCell  `json:"-"`
	Value float64   `json:"value"`
}

// RatePoint is one observation of a swap rate level for an underlying tenor.
// Units are set by configuration (percent, decimal or bp).
type RatePoint struct {
	Date  time.Time `json:"date"`
	Tenor Tenor     `json:"tenor"`
	Level float64   `json:"level"`
}

// MarketSnapshot is an immutable view of all stored market data at one dataset version.
type MarketSnapshot struct {
	Version string
	Vols    []ImpliedVolPoint
	Rates   []RatePoint
}

// MarketUpdate is the payload carried on the market-data-updates topic.
type MarketUpdate struct {
	Vols  []VolUpdate  `json:"vols,omitempty"`
	Rates []RateUpdate `json:"rates,omitempty"`
}

// VolUpdate is the wire shape of an implied vol observation.
type VolUpdate struct {
	Date            string  `json:"date" validate:"required,datetime=2006-01-02"`
	OptionTenor     string  `json:"option_tenor" validate:"required"`
	UnderlyingTenor string  `json:"underlying_tenor" validate:"required"`
	Value           float64 `json:"value"`
}

// RateUpdate is the wire shape of a rate observation.
type RateUpdate struct {
	Date  string  `json:"date" validate:"required,datetime=2006-01-02"`
	Tenor string  `json:"tenor" validate:"required"`
	Level float64 `json:"level"`
}
