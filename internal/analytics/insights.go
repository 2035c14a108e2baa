package analytics

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/pennywise/pennywise/internal/store"
)

// Insight is a canned natural-language observation layered on top of the
// aggregation primitives. Presentation only; no new aggregation semantics.
type Insight struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Insights derives month-over-month, top-category, and savings-rate
// observations for the current calendar month.
func (s *Service) Insights(ctx context.Context, ownerID string) ([]Insight, error) {
	summary, err := s.Summary(ctx, ownerID, Query{Period: PeriodMonth})
	if err != nil {
		return nil, fmt.Errorf("Insights: %w", err)
	}

	insights := []Insight{}

	if summary.ExpenseChange != nil {
		change := *summary.ExpenseChange
		if change > 0 {
			insights = append(insights, Insight{
				Type:    "spending_up",
				Title:   "Spending increased",
				Message: fmt.Sprintf("You spent %.1f%% more this month than last month.", change),
			})
		} else if change < 0 {
			insights = append(insights, Insight{
				Type:    "spending_down",
				Title:   "Spending decreased",
				Message: fmt.Sprintf("Nice work, you spent %.1f%% less this month than last month.", math.Abs(change)),
			})
		}
	}

	cats, err := s.Categories(ctx, ownerID, Query{Period: PeriodMonth, Type: string(store.TypeExpense)})
	if err != nil {
		return nil, fmt.Errorf("Insights: %w", err)
	}
	if len(cats) > 0 && summary.TotalExpenses > 0 {
		top := cats[0]
		share := top.Total / summary.TotalExpenses * 100
		insights = append(insights, Insight{
			Type:    "top_category",
			Title:   "Top spending category",
			Message: fmt.Sprintf("%s is your biggest expense this month at %.2f (%.0f%% of spending).", top.Category, top.Total, share),
		})
	}

	if summary.TotalIncome > 0 {
		rate := summary.NetIncome / summary.TotalIncome * 100
		if rate >= 20 {
			insights = append(insights, Insight{
				Type:    "savings_rate",
				Title:   "Healthy savings rate",
				Message: fmt.Sprintf("You are keeping %.0f%% of your income this month.", rate),
			})
		} else if rate < 0 {
			insights = append(insights, Insight{
				Type:    "overspending",
				Title:   "Spending exceeds income",
				Message: "Your expenses are higher than your income this month.",
			})
		}
	}

	return insights, nil
}

// WeekdaySpend is total and average expense for one day of the week.
type WeekdaySpend struct {
	Day     string  `json:"day"`
	Total   float64 `json:"total"`
	Average float64 `json:"average"`
}

// PatternReport describes the day-of-week spending shape over the last 90
// days.
type PatternReport struct {
	Weekdays []WeekdaySpend `json:"weekdays"`
	PeakDay  string         `json:"peakDay"`
	Message  string         `json:"message"`
}

// Patterns computes the day-of-week expense distribution over the last 90
// days and names the peak day.
func (s *Service) Patterns(ctx context.Context, ownerID string) (*PatternReport, error) {
	now := s.now()
	start := now.AddDate(0, 0, -90)

	rows, err := s.repo.QueryWindow(ctx, ownerID, &start, &now)
	if err != nil {
		return nil, fmt.Errorf("Patterns: query window: %w", err)
	}

	totals := make(map[time.Weekday]float64)
	counts := make(map[time.Weekday]int)
	for _, row := range rows {
		if row.Type != store.TypeExpense {
			continue
		}
		day := row.Date.Weekday()
		totals[day] += row.Amount
		counts[day]++
	}

	report := &PatternReport{}
	var peak time.Weekday
	var peakTotal float64
	for d := time.Sunday; d <= time.Saturday; d++ {
		spend := WeekdaySpend{Day: d.String(), Total: totals[d]}
		if counts[d] > 0 {
			spend.Average = totals[d] / float64(counts[d])
		}
		report.Weekdays = append(report.Weekdays, spend)
		if totals[d] > peakTotal {
			peakTotal = totals[d]
			peak = d
		}
	}

	if peakTotal > 0 {
		report.PeakDay = peak.String()
		report.Message = fmt.Sprintf("You spend the most on %ss.", peak.String())
	} else {
		report.Message = "Not enough expense activity in the last 90 days to spot a pattern."
	}

	return report, nil
}
