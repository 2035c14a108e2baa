// Package analytics computes owner-scoped summaries, category breakdowns,
// and time-bucketed trends over a resolved date window. Aggregation runs in
// process over repository rows so every storage backend shares the exact
// same semantics.
package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/pennywise/pennywise/internal/store"
)

// Service exposes the read-side aggregations.
type Service struct {
	repo store.TransactionRepository
	log  zerolog.Logger
	now  func() time.Time
}

// NewService creates an analytics service over the given repository.
func NewService(repo store.TransactionRepository, log zerolog.Logger) *Service {
	return &Service{repo: repo, log: log, now: time.Now}
}

// Query carries the window parameters shared by all aggregations.
type Query struct {
	Period    string
	StartDate *time.Time
	EndDate   *time.Time
	// Type filters Categories: income, expense, or "both" (default).
	Type string
	// GroupBy selects the Trends bucket: day, week, or month (default).
	GroupBy string
}

// Summary holds totals, counts, and averages per type over the window.
// The change percentages are present only for the month period with a
// non-zero previous-month total.
type Summary struct {
	TotalIncome    float64  `json:"totalIncome"`
	TotalExpenses  float64  `json:"totalExpenses"`
	NetIncome      float64  `json:"netIncome"`
	IncomeCount    int      `json:"incomeCount"`
	ExpenseCount   int      `json:"expenseCount"`
	AverageIncome  float64  `json:"averageIncome"`
	AverageExpense float64  `json:"averageExpense"`
	IncomeChange   *float64 `json:"incomeChange,omitempty"`
	ExpenseChange  *float64 `json:"expenseChange,omitempty"`
}

// Summary computes the window summary for one owner.
func (s *Service) Summary(ctx context.Context, ownerID string, q Query) (*Summary, error) {
	now := s.now()
	win := resolveWindow(q.Period, q.StartDate, q.EndDate, now)

	rows, err := s.repo.QueryWindow(ctx, ownerID, win.Start, win.End)
	if err != nil {
		return nil, fmt.Errorf("Summary: query window: %w", err)
	}

	out := &Summary{}
	for _, row := range rows {
		switch row.Type {
		case store.TypeIncome:
			out.TotalIncome += row.Amount
			out.IncomeCount++
		case store.TypeExpense:
			out.TotalExpenses += row.Amount
			out.ExpenseCount++
		}
	}
	out.NetIncome = out.TotalIncome - out.TotalExpenses
	if out.IncomeCount > 0 {
		out.AverageIncome = out.TotalIncome / float64(out.IncomeCount)
	}
	if out.ExpenseCount > 0 {
		out.AverageExpense = out.TotalExpenses / float64(out.ExpenseCount)
	}

	// Month-over-month deltas only make sense against the preceding
	// calendar month.
	if win.Period == PeriodMonth {
		prev := previousMonthWindow(now)
		prevRows, err := s.repo.QueryWindow(ctx, ownerID, prev.Start, prev.End)
		if err != nil {
			return nil, fmt.Errorf("Summary: query previous month: %w", err)
		}
		var prevIncome, prevExpenses float64
		for _, row := range prevRows {
			switch row.Type {
			case store.TypeIncome:
				prevIncome += row.Amount
			case store.TypeExpense:
				prevExpenses += row.Amount
			}
		}
		out.IncomeChange = percentChange(out.TotalIncome, prevIncome)
		out.ExpenseChange = percentChange(out.TotalExpenses, prevExpenses)
	}

	return out, nil
}

// percentChange returns (current-previous)/previous*100 rounded to one
// decimal, or nil when the previous total is zero. Absent beats a
// division-by-zero artifact.
func percentChange(current, previous float64) *float64 {
	if previous == 0 {
		return nil
	}
	v := math.Round((current-previous)/previous*1000) / 10
	return &v
}

// CategoryTotal is one row of the category breakdown.
type CategoryTotal struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
}

// Categories groups the window's transactions by their literal stored
// category string, sorted descending by summed amount. No normalization
// happens at query time.
func (s *Service) Categories(ctx context.Context, ownerID string, q Query) ([]CategoryTotal, error) {
	win := resolveWindow(q.Period, q.StartDate, q.EndDate, s.now())

	rows, err := s.repo.QueryWindow(ctx, ownerID, win.Start, win.End)
	if err != nil {
		return nil, fmt.Errorf("Categories: query window: %w", err)
	}

	totals := make(map[string]float64)
	var order []string
	for _, row := range rows {
		if q.Type != "" && q.Type != "both" && string(row.Type) != q.Type {
			continue
		}
		if _, seen := totals[row.Category]; !seen {
			order = append(order, row.Category)
		}
		totals[row.Category] += row.Amount
	}

	out := make([]CategoryTotal, 0, len(order))
	for _, cat := range order {
		out = append(out, CategoryTotal{Category: cat, Total: totals[cat]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Total > out[j].Total })
	return out, nil
}

// TrendPoint is one time bucket with income and expenses summed
// independently. Buckets with no activity of a type carry 0, never an
// absent field.
type TrendPoint struct {
	Bucket   string  `json:"bucket"`
	Income   float64 `json:"income"`
	Expenses float64 `json:"expenses"`
	Net      float64 `json:"net"`
}

// Trends buckets the window by day, ISO week, or calendar month and sums
// each type per bucket, ascending by bucket key.
func (s *Service) Trends(ctx context.Context, ownerID string, q Query) ([]TrendPoint, error) {
	win := resolveWindow(q.Period, q.StartDate, q.EndDate, s.now())

	rows, err := s.repo.QueryWindow(ctx, ownerID, win.Start, win.End)
	if err != nil {
		return nil, fmt.Errorf("Trends: query window: %w", err)
	}

	buckets := make(map[string]*TrendPoint)
	for _, row := range rows {
		key := bucketKey(row.Date, q.GroupBy)
		pt, ok := buckets[key]
		if !ok {
			pt = &TrendPoint{Bucket: key}
			buckets[key] = pt
		}
		switch row.Type {
		case store.TypeIncome:
			pt.Income += row.Amount
		case store.TypeExpense:
			pt.Expenses += row.Amount
		}
	}

	out := make([]TrendPoint, 0, len(buckets))
	for _, pt := range buckets {
		pt.Net = pt.Income - pt.Expenses
		out = append(out, *pt)
	}
	// Keys are zero-padded, so string order is chronological order.
	sort.Slice(out, func(i, j int) bool { return out[i].Bucket < out[j].Bucket })
	return out, nil
}
