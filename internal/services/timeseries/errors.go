package timeseries

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrDateNotCovered      = errors.New("date not covered")
	ErrInsufficientHistory = errors.New("insufficient history")
	ErrMissingRateTenor    = errors.New("missing rate tenor")
	ErrMalformedInput      = errors.New("malformed input")
)

// DateNotCoveredError carries the requested date and the source that lacks it.
type DateNotCoveredError struct {
	Date   time.Time
	Source string
}

func (e *DateNotCoveredError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("date %s not covered", e.Date.Format(DateLayout))
	}
	return fmt.Sprintf("date %s not covered by %s", e.Date.Format(DateLayout), e.Source)
}

func (e *DateNotCoveredError) Unwrap() error { return ErrDateNotCovered }
