// Package window turns run options into concrete [start, end) time windows.
// Everything here is pure: downstream components never read the wall clock.
package window

import (
	"fmt"
	"time"

	"github.com/iwell/incentive-engine/internal/model"
)

// Fiscal-year modes.
const (
	FYModeApril    = "FY_APR" // April 1 through March 31 of the following year
	FYModeCalendar = "CAL"    // January 1 through December 31
)

// Range modes.
const (
	RangeMonth    = "month"
	RangeLast5    = "last5"
	RangeFiscalYr = "fy"
)

// Window is a half-open [Start, End) interval.
type Window struct {
	Start time.Time
	End   time.Time
	Label string
}

// MonthKey returns the YYYY-MM key of the window's starting month.
func (w Window) MonthKey() string {
	return model.MonthKey(w.Start)
}

// Contains reports whether t falls in [Start, End).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

func monthStart(y int, m time.Month) time.Time {
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

func firstOfMonth(t time.Time) time.Time {
	return monthStart(t.Year(), t.Month())
}

// MonthWindow is the calendar-month window containing t.
func MonthWindow(t time.Time) Window {
	start := firstOfMonth(t)
	end := start.AddDate(0, 1, 0)
	return Window{Start: start, End: end, Label: model.MonthKey(start)}
}

// TrailingMonths returns the n most recent month windows ending with the one
// containing asOf, oldest first.
func TrailingMonths(asOf time.Time, n int) []Window {
	if n <= 0 {
		return nil
	}
	out := make([]Window, 0, n)
	start := firstOfMonth(asOf).AddDate(0, -(n - 1), 0)
	for i := 0; i < n; i++ {
		out = append(out, MonthWindow(start.AddDate(0, i, 0)))
	}
	return out
}

// Resolve maps (rangeMode, fyMode, asOf) to the windows a run should process.
//
// last5 keeps the scorer's historical month-boundary lookback: during the
// first five days of a month the previous month is re-run alongside the
// current one, so late-arriving transactions still land in the right row.
func Resolve(rangeMode, fyMode string, asOf time.Time) ([]Window, error) {
	switch rangeMode {
	case RangeMonth, "":
		return []Window{MonthWindow(asOf)}, nil
	case RangeLast5:
		lookback := asOf.AddDate(0, 0, -5)
		cur := MonthWindow(asOf)
		if lookback.Year() != asOf.Year() || lookback.Month() != asOf.Month() {
			return []Window{MonthWindow(lookback), cur}, nil
		}
		return []Window{cur}, nil
	case RangeFiscalYr:
		fy, err := FiscalYear(asOf, fyMode)
		if err != nil {
			return nil, err
		}
		// One window per elapsed month of the fiscal year, current month last.
		var out []Window
		for m := fy.Start; m.Before(fy.End) && !m.After(asOf); m = m.AddDate(0, 1, 0) {
			out = append(out, MonthWindow(m))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown range_mode %q", rangeMode)
	}
}

// FiscalYear returns the fiscal-year window containing t.
func FiscalYear(t time.Time, fyMode string) (Window, error) {
	switch fyMode {
	case FYModeApril, "":
		startYear := t.Year()
		if t.Month() < time.April {
			startYear--
		}
		start := monthStart(startYear, time.April)
		return Window{
			Start: start,
			End:   start.AddDate(1, 0, 0),
			Label: fmt.Sprintf("FY %d-%02d", startYear, (startYear+1)%100),
		}, nil
	case FYModeCalendar:
		start := monthStart(t.Year(), time.January)
		return Window{
			Start: start,
			End:   start.AddDate(1, 0, 0),
			Label: fmt.Sprintf("CY %d", t.Year()),
		}, nil
	default:
		return Window{}, fmt.Errorf("unknown fy_mode %q", fyMode)
	}
}

// Quarter returns the fiscal-quarter window containing t.
func Quarter(t time.Time, fyMode string) (Window, error) {
	fy, err := FiscalYear(t, fyMode)
	if err != nil {
		return Window{}, err
	}
	// Quarters are three-month blocks from the fiscal-year start.
	q := 0
	for start := fy.Start; ; start = start.AddDate(0, 3, 0) {
		end := start.AddDate(0, 3, 0)
		q++
		if t.Before(end) {
			label := fmt.Sprintf("Q%d %s", q, fy.Label)
			return Window{Start: start, End: end, Label: label}, nil
		}
	}
}

// MonthKeys lists the YYYY-MM keys covered by w, oldest first.
func MonthKeys(w Window) []string {
	var out []string
	for m := firstOfMonth(w.Start); m.Before(w.End); m = m.AddDate(0, 1, 0) {
		out = append(out, model.MonthKey(m))
	}
	return out
}

// IsPeriodEndMonth reports whether the month containing t is the final month
// of the given period window.
func IsPeriodEndMonth(t time.Time, period Window) bool {
	last := period.End.AddDate(0, -1, 0)
	return t.Year() == last.Year() && t.Month() == last.Month()
}
