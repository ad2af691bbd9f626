package models

// Requests for table HTTP endpoints. Defined in domain for consistency and reuse.

type TableRequest struct {
	Date            string `query:"date" json:"date" validate:"required,datetime=2006-01-02"`
	OptionTenor     string `query:"option_tenor" json:"option_tenor"`
	UnderlyingTenor string `query:"underlying_tenor" json:"underlying_tenor"`
	Mover           string `query:"mover" json:"mover" validate:"omitempty,oneof=1d 1w 1m any"`
	RichCheap       string `query:"rich_cheap" json:"rich_cheap" validate:"omitempty,oneof=rich cheap neutral undefined"`
}

type LatestTableRequest struct {
	OptionTenor     string `query:"option_tenor" json:"option_tenor"`
	UnderlyingTenor string `query:"underlying_tenor" json:"underlying_tenor"`
	Mover           string `query:"mover" json:"mover" validate:"omitempty,oneof=1d 1w 1m any"`
	RichCheap       string `query:"rich_cheap" json:"rich_cheap" validate:"omitempty,oneof=rich cheap neutral undefined"`
}

type MoversRequest struct {
	Date    string `query:"date" json:"date" validate:"omitempty,datetime=2006-01-02"`
	Horizon string `query:"horizon" json:"horizon" default:"any" validate:"oneof=1d 1w 1m any"`
}

type ExportRequest struct {
	Date   string `query:"date" json:"date" validate:"omitempty,datetime=2006-01-02"`
	Format string `query:"format" json:"format" default:"csv" validate:"oneof=csv json"`
}

// Coverage describes the date range served by the implied vol source.
type Coverage struct {
	Version string `json:"version"`
	First   string `json:"first"`
	Last    string `json:"last"`
	Dates   int    `json:"dates"`
}
