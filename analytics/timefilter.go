package analytics

import (
	"strings"
	"time"
)

// TimeFilter selects the reporting window of an analytics query.
type TimeFilter string

// Supported time filters. Anything else falls back to FilterTotal.
const (
	FilterTotal TimeFilter = "total"
	Filter7d    TimeFilter = "7d"
	Filter30d   TimeFilter = "30d"
	Filter90d   TimeFilter = "90d"
	Filter1y    TimeFilter = "1y"
)

var filterDays = map[TimeFilter]int{
	Filter7d:  7,
	Filter30d: 30,
	Filter90d: 90,
	Filter1y:  365,
}

// ParseTimeFilter normalizes a caller supplied filter. Unknown or malformed
// values recover to FilterTotal rather than failing the request.
func ParseTimeFilter(raw string) TimeFilter {
	f := TimeFilter(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := filterDays[f]; ok {
		return f
	}
	return FilterTotal
}

// Days returns the window length in calendar days, 0 for FilterTotal.
func (f TimeFilter) Days() int {
	return filterDays[f]
}

// Window is a closed range of UTC calendar days. A zero From means no lower bound.
type Window struct {
	From time.Time
	To   time.Time
}

// Bounded reports whether the window has a lower bound.
func (w Window) Bounded() bool {
	return !w.From.IsZero()
}

// WindowAt resolves the filter against now. N-day windows cover the N calendar
// days ending today inclusive, starting at 00:00 UTC of the first day.
func (f TimeFilter) WindowAt(now time.Time) Window {
	today := startOfDay(now)
	days := f.Days()
	if days == 0 {
		return Window{To: today}
	}
	return Window{From: today.AddDate(0, 0, -(days - 1)), To: today}
}

// Days lists every calendar day in the window, oldest first.
func (w Window) Days() []time.Time {
	if !w.Bounded() || w.From.After(w.To) {
		return nil
	}
	var out []time.Time
	for d := w.From; !d.After(w.To); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

const dayLayout = "2006-01-02"
