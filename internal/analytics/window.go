package analytics

import (
	"fmt"
	"time"
)

// Period names accepted by the window resolution rule.
const (
	PeriodWeek  = "week"
	PeriodMonth = "month"
	PeriodYear  = "year"
	PeriodAll   = "all"
)

// Window is a resolved date range. Nil bounds are unbounded; set bounds are
// inclusive on both ends.
type Window struct {
	Start *time.Time
	End   *time.Time
	// Period records which named period produced the window; empty when
	// explicit dates were supplied.
	Period string
}

// resolveWindow applies the shared date-window rule: explicit start/end win
// verbatim, otherwise the named period is resolved relative to now. Unknown
// period names resolve like month.
func resolveWindow(period string, start, end *time.Time, now time.Time) Window {
	if start != nil || end != nil {
		return Window{Start: start, End: end}
	}

	switch period {
	case PeriodWeek:
		s := now.AddDate(0, 0, -7)
		return Window{Start: &s, End: &now, Period: PeriodWeek}
	case PeriodYear:
		s := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
		return Window{Start: &s, End: &now, Period: PeriodYear}
	case PeriodAll:
		return Window{End: &now, Period: PeriodAll}
	default:
		s := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return Window{Start: &s, End: &now, Period: PeriodMonth}
	}
}

// previousMonthWindow is the calendar month immediately before the month
// containing now, used for month-over-month deltas.
func previousMonthWindow(now time.Time) Window {
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	start := firstOfMonth.AddDate(0, -1, 0)
	end := firstOfMonth.Add(-time.Nanosecond)
	return Window{Start: &start, End: &end}
}

// Bucket granularities for trend grouping.
const (
	GroupByDay   = "day"
	GroupByWeek  = "week"
	GroupByMonth = "month"
)

// bucketKey builds a zero-padded key that sorts correctly as a string.
func bucketKey(t time.Time, groupBy string) string {
	switch groupBy {
	case GroupByDay:
		return t.Format("2006-01-02")
	case GroupByWeek:
		year, week := t.ISOWeek()
		// 2025-W03 style; the zero pad keeps lexicographic order correct.
		return fmt.Sprintf("%04d-W%02d", year, week)
	default:
		return t.Format("2006-01")
	}
}
