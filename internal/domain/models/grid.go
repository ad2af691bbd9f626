package models

import "fmt"

// GridCell identifies one (option tenor, underlying tenor) pair.
type GridCell struct {
	OptionTenor     Tenor
	UnderlyingTenor Tenor
}

// String renders the cell as "1M x 2Y".
func (c GridCell) String() string {
	return fmt.Sprintf("%s x %s", c.OptionTenor, c.UnderlyingTenor)
}

// Canonical normalizes both tenors of the cell.
func (c GridCell) Canonical() GridCell {
	return GridCell{OptionTenor: c.OptionTenor.Canonical(), UnderlyingTenor: c.UnderlyingTenor.Canonical()}
}

// Grid is the fixed set of option and underlying tenors the table covers.
type Grid struct {
	OptionTenors     []Tenor
	UnderlyingTenors []Tenor
}

// DefaultOptionTenors and DefaultUnderlyingTenors form the standard 5x4 grid.
var (
	DefaultOptionTenors     = []string{"1M", "3M", "6M", "1Y", "2Y"}
	DefaultUnderlyingTenors = []string{"2Y", "5Y", "10Y", "30Y"}
)

// NewGrid parses both axes. Each axis must be non-empty and duplicate free.
func NewGrid(optionTenors, underlyingTenors []string) (Grid, error) {
	if len(optionTenors) == 0 || len(underlyingTenors) == 0 {
		return Grid{}, fmt.Errorf("grid axes must be non-empty")
	}
	opt, err := ParseTenors(optionTenors)
	if err != nil {
		return Grid{}, fmt.Errorf("option tenors: %w", err)
	}
	und, err := ParseTenors(underlyingTenors)
	if err != nil {
		return Grid{}, fmt.Errorf("underlying tenors: %w", err)
	}
	return Grid{OptionTenors: opt, UnderlyingTenors: und}, nil
}

// DefaultGrid returns the standard grid.
func DefaultGrid() Grid {
	g, err := NewGrid(DefaultOptionTenors, DefaultUnderlyingTenors)
	if err != nil {
		panic(err)
	}
	return g
}

// Size is the number of cells.
func (g Grid) Size() int { return len(g.OptionTenors) * len(g.UnderlyingTenors) }

// Cells lists all cells in table order: option tenor ascending, then underlying tenor ascending.
func (g Grid) Cells() []GridCell {
	out := make([]GridCell, 0, g.Size())
	for _, o := range g.OptionTenors {
		for _, u := range g.UnderlyingTenors {
			out = append(out, GridCell{OptionTenor: o, UnderlyingTenor: u})
		}
	}
	return out
}

// IndexOf returns the position of c in Cells(), or -1. Tenors match by
// maturity, so an unnormalized "12M" finds the "1Y" row.
func (g Grid) IndexOf(c GridCell) int {
	om, um := c.OptionTenor.Months(), c.UnderlyingTenor.Months()
	if om < 0 || um < 0 {
		return -1
	}
	oi, ui := -1, -1
	for i, o := range g.OptionTenors {
		if o.Months() == om {
			oi = i
			break
		}
	}
	for i, u := range g.UnderlyingTenors {
		if u.Months() == um {
			ui = i
			break
		}
	}
	if oi < 0 || ui < 0 {
		return -1
	}
	return oi*len(g.UnderlyingTenors) + ui
}

// Contains reports whether c belongs to the grid.
func (g Grid) Contains(c GridCell) bool { return g.IndexOf(c) >= 0 }

// HasUnderlying reports whether t is one of the underlying tenors.
func (g Grid) HasUnderlying(t Tenor) bool {
	m := t.Months()
	for _, u := range g.UnderlyingTenors {
		if m > 0 && u.Months() == m {
			return true
		}
	}
	return false
}
