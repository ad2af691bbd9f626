package util

import (
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{"2006-01-02", "20060102", "01/02/2006", time.RFC3339}

// ParseDate accepts ISO dates, compact dates, US slash dates, RFC3339
// timestamps and unix seconds. The result is midnight UTC of the calendar date.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Midnight(t), true
		}
	}
	if len(s) != 8 {
		if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
			return Midnight(time.Unix(ts, 0).UTC()), true
		}
	}
	return time.Time{}, false
}

// Midnight truncates t to 00:00 UTC of its calendar date.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
