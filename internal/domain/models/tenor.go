package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Tenor is a normalized maturity label such as "1M" or "10Y".
type Tenor string

// ParseTenor normalizes a raw tenor label. Bare integers are read as years,
// so "10" and "10y" both become "10Y". Whole years are written in years, so
// "12M" and "1Y" are the same tenor.
func ParseTenor(raw string) (Tenor, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return "", fmt.Errorf("empty tenor")
	}
	if _, err := strconv.Atoi(s); err == nil {
		s += "Y"
	}
	m, err := Tenor(s).months()
	if err != nil {
		return "", err
	}
	return tenorFromMonths(m), nil
}

func tenorFromMonths(m int) Tenor {
	if m%12 == 0 {
		return Tenor(strconv.Itoa(m/12) + "Y")
	}
	return Tenor(strconv.Itoa(m) + "M")
}

// MustTenor panics on an invalid label. Intended for literals and tests.
func MustTenor(raw string) Tenor {
	t, err := ParseTenor(raw)
	if err != nil {
		panic(err)
	}
	return t
}

// Months returns the tenor length in months, or -1 when the label is invalid.
func (t Tenor) Months() int {
	m, err := t.months()
	if err != nil {
		return -1
	}
	return m
}

func (t Tenor) String() string { return string(t) }

// Canonical returns the normalized label of a valid tenor; invalid labels are
// returned unchanged.
func (t Tenor) Canonical() Tenor {
	m, err := t.months()
	if err != nil {
		return t
	}
	return tenorFromMonths(m)
}

func (t Tenor) months() (int, error) {
	s := string(t)
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid tenor %q", s)
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid tenor %q", s)
	}
	switch s[len(s)-1] {
	case 'M':
		return n, nil
	case 'Y':
		return 12 * n, nil
	default:
		return 0, fmt.Errorf("invalid tenor unit in %q", s)
	}
}

// SortTenors orders tenors by length, shortest first.
func SortTenors(ts []Tenor) {
	sort.SliceStable(ts, func(i, j int) bool { return ts[i].Months() < ts[j].Months() })
}

// ParseTenors parses and sorts a list of labels, rejecting labels that name
// the same maturity.
func ParseTenors(raw []string) ([]Tenor, error) {
	out := make([]Tenor, 0, len(raw))
	seen := make(map[int]string, len(raw))
	for _, r := range raw {
		t, err := ParseTenor(r)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[t.Months()]; dup {
			return nil, fmt.Errorf("duplicate tenor %q (same maturity as %q)", r, prev)
		}
		seen[t.Months()] = r
		out = append(out, t)
	}
	SortTenors(out)
	return out, nil
}
