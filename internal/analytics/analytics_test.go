package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pennywise/pennywise/internal/store"
	"github.com/pennywise/pennywise/internal/store/memory"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*Service, *memory.TransactionStore) {
	t.Helper()
	repo := memory.NewTransactionStore()
	svc := NewService(repo, zerolog.Nop())
	svc.now = func() time.Time { return testNow }
	return svc, repo
}

func insert(t *testing.T, repo *memory.TransactionStore, owner string, amount float64, txType store.TransactionType, cat string, date time.Time) {
	t.Helper()
	err := repo.Insert(context.Background(), &store.TransactionRow{
		ID:          uuid.NewString(),
		OwnerID:     owner,
		Description: "row",
		Amount:      amount,
		Type:        txType,
		Category:    cat,
		Date:        date,
		CreatedAt:   date,
		UpdatedAt:   date,
	})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
}

func TestResolveWindow(t *testing.T) {
	explicitStart := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	explicitEnd := time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)

	t.Run("explicit dates win verbatim", func(t *testing.T) {
		w := resolveWindow(PeriodYear, &explicitStart, &explicitEnd, testNow)
		if w.Start == nil || !w.Start.Equal(explicitStart) || w.End == nil || !w.End.Equal(explicitEnd) {
			t.Errorf("explicit window not used verbatim: %+v", w)
		}
		if w.Period != "" {
			t.Errorf("explicit window should carry no period, got %q", w.Period)
		}
	})

	t.Run("week is last seven days", func(t *testing.T) {
		w := resolveWindow(PeriodWeek, nil, nil, testNow)
		if w.Start == nil || !w.Start.Equal(testNow.AddDate(0, 0, -7)) {
			t.Errorf("week start = %v, want now-7d", w.Start)
		}
	})

	t.Run("month is month to date", func(t *testing.T) {
		w := resolveWindow(PeriodMonth, nil, nil, testNow)
		want := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		if w.Start == nil || !w.Start.Equal(want) {
			t.Errorf("month start = %v, want %v", w.Start, want)
		}
	})

	t.Run("year is year to date", func(t *testing.T) {
		w := resolveWindow(PeriodYear, nil, nil, testNow)
		want := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		if w.Start == nil || !w.Start.Equal(want) {
			t.Errorf("year start = %v, want %v", w.Start, want)
		}
	})

	t.Run("all has no lower bound", func(t *testing.T) {
		w := resolveWindow(PeriodAll, nil, nil, testNow)
		if w.Start != nil {
			t.Errorf("all window should be unbounded below, got %v", w.Start)
		}
	})
}

func TestSummary(t *testing.T) {
	svc, repo := newService(t)
	owner := "alice"

	// Current month: 3000 income, 120+80 expenses.
	insert(t, repo, owner, 3000, store.TypeIncome, "Salary", testNow.AddDate(0, 0, -2))
	insert(t, repo, owner, 120, store.TypeExpense, "Groceries", testNow.AddDate(0, 0, -3))
	insert(t, repo, owner, 80, store.TypeExpense, "Entertainment", testNow.AddDate(0, 0, -1))
	// Previous month: 2000 income, 100 expenses.
	insert(t, repo, owner, 2000, store.TypeIncome, "Salary", time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC))
	insert(t, repo, owner, 100, store.TypeExpense, "Groceries", time.Date(2025, 5, 12, 0, 0, 0, 0, time.UTC))
	// Another owner's data must never leak in.
	insert(t, repo, "bob", 9999, store.TypeExpense, "Travel", testNow)

	got, err := svc.Summary(context.Background(), owner, Query{Period: PeriodMonth})
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}

	if got.TotalIncome != 3000 || got.TotalExpenses != 200 {
		t.Errorf("totals = %v/%v, want 3000/200", got.TotalIncome, got.TotalExpenses)
	}
	if got.NetIncome != 2800 {
		t.Errorf("NetIncome = %v, want 2800", got.NetIncome)
	}
	if got.IncomeCount != 1 || got.ExpenseCount != 2 {
		t.Errorf("counts = %d/%d, want 1/2", got.IncomeCount, got.ExpenseCount)
	}
	if got.AverageExpense != 100 {
		t.Errorf("AverageExpense = %v, want 100", got.AverageExpense)
	}

	if got.IncomeChange == nil || *got.IncomeChange != 50.0 {
		t.Errorf("IncomeChange = %v, want 50.0", got.IncomeChange)
	}
	if got.ExpenseChange == nil || *got.ExpenseChange != 100.0 {
		t.Errorf("ExpenseChange = %v, want 100.0", got.ExpenseChange)
	}
}

func TestSummary_ZeroPreviousMonthOmitsChange(t *testing.T) {
	svc, repo := newService(t)
	owner := "alice"

	insert(t, repo, owner, 500, store.TypeExpense, "Shopping", testNow.AddDate(0, 0, -1))

	got, err := svc.Summary(context.Background(), owner, Query{Period: PeriodMonth})
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if got.IncomeChange != nil || got.ExpenseChange != nil {
		t.Errorf("changes must be absent when previous month is zero, got %v/%v",
			got.IncomeChange, got.ExpenseChange)
	}
}

func TestSummary_NoChangeOutsideMonthPeriod(t *testing.T) {
	svc, repo := newService(t)
	owner := "alice"

	insert(t, repo, owner, 100, store.TypeExpense, "Shopping", testNow.AddDate(0, 0, -1))
	insert(t, repo, owner, 50, store.TypeExpense, "Shopping", time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC))

	got, err := svc.Summary(context.Background(), owner, Query{Period: PeriodWeek})
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if got.IncomeChange != nil || got.ExpenseChange != nil {
		t.Errorf("week period must not carry change deltas, got %v/%v",
			got.IncomeChange, got.ExpenseChange)
	}
}

func TestCategories(t *testing.T) {
	svc, repo := newService(t)
	owner := "alice"

	insert(t, repo, owner, 50, store.TypeExpense, "Groceries", testNow.AddDate(0, 0, -1))
	insert(t, repo, owner, 70, store.TypeExpense, "Groceries", testNow.AddDate(0, 0, -2))
	insert(t, repo, owner, 200, store.TypeExpense, "Travel", testNow.AddDate(0, 0, -3))
	insert(t, repo, owner, 3000, store.TypeIncome, "Salary", testNow.AddDate(0, 0, -4))
	// A category outside the taxonomy appears under its own literal label.
	insert(t, repo, owner, 15, store.TypeExpense, "llama upkeep", testNow.AddDate(0, 0, -5))

	got, err := svc.Categories(context.Background(), owner, Query{Period: PeriodMonth, Type: "expense"})
	if err != nil {
		t.Fatalf("Categories failed: %v", err)
	}

	want := []CategoryTotal{
		{Category: "Travel", Total: 200},
		{Category: "Groceries", Total: 120},
		{Category: "llama upkeep", Total: 15},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d categories, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("categories[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestCategories_BothIncludesIncome(t *testing.T) {
	svc, repo := newService(t)
	owner := "alice"

	insert(t, repo, owner, 100, store.TypeExpense, "Groceries", testNow.AddDate(0, 0, -1))
	insert(t, repo, owner, 3000, store.TypeIncome, "Salary", testNow.AddDate(0, 0, -2))

	got, err := svc.Categories(context.Background(), owner, Query{Period: PeriodMonth, Type: "both"})
	if err != nil {
		t.Fatalf("Categories failed: %v", err)
	}
	if len(got) != 2 || got[0].Category != "Salary" {
		t.Errorf("both filter = %+v, want Salary first then Groceries", got)
	}
}

func TestTrends(t *testing.T) {
	svc, repo := newService(t)
	owner := "alice"

	day1 := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 6, 12, 9, 0, 0, 0, time.UTC)
	insert(t, repo, owner, 40, store.TypeExpense, "Groceries", day1)
	insert(t, repo, owner, 10, store.TypeExpense, "Food & Dining", day1)
	insert(t, repo, owner, 3000, store.TypeIncome, "Salary", day2)
	insert(t, repo, owner, 20, store.TypeExpense, "Travel", day2)

	got, err := svc.Trends(context.Background(), owner, Query{Period: PeriodMonth, GroupBy: GroupByDay})
	if err != nil {
		t.Fatalf("Trends failed: %v", err)
	}

	want := []TrendPoint{
		{Bucket: "2025-06-10", Income: 0, Expenses: 50, Net: -50},
		{Bucket: "2025-06-12", Income: 3000, Expenses: 20, Net: 2980},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d buckets, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("trends[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestTrends_ExpenseOnlyBucketsCarryZeroIncome(t *testing.T) {
	svc, repo := newService(t)
	owner := "alice"

	insert(t, repo, owner, 12, store.TypeExpense, "Food & Dining", testNow.AddDate(0, 0, -2))
	insert(t, repo, owner, 8, store.TypeExpense, "Food & Dining", testNow.AddDate(0, 0, -1))

	got, err := svc.Trends(context.Background(), owner, Query{Period: PeriodMonth, GroupBy: GroupByDay})
	if err != nil {
		t.Fatalf("Trends failed: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("expected buckets for expense activity")
	}
	for _, pt := range got {
		if pt.Income != 0 {
			t.Errorf("bucket %s Income = %v, want 0", pt.Bucket, pt.Income)
		}
		if pt.Net != -pt.Expenses {
			t.Errorf("bucket %s Net = %v, want %v", pt.Bucket, pt.Net, -pt.Expenses)
		}
	}
}

func TestTrends_WeekKeysZeroPadded(t *testing.T) {
	svc, repo := newService(t)
	owner := "alice"

	early := time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC) // ISO week 2
	insert(t, repo, owner, 5, store.TypeExpense, "Other", early)

	s := early.AddDate(0, 0, -1)
	e := early.AddDate(0, 0, 1)
	got, err := svc.Trends(context.Background(), owner, Query{StartDate: &s, EndDate: &e, GroupBy: GroupByWeek})
	if err != nil {
		t.Fatalf("Trends failed: %v", err)
	}
	if len(got) != 1 || got[0].Bucket != "2025-W02" {
		t.Errorf("week bucket = %+v, want single 2025-W02", got)
	}
}

func TestTrends_MonthBucketsSortAscending(t *testing.T) {
	svc, repo := newService(t)
	owner := "alice"

	for m := time.Month(1); m <= 12; m++ {
		insert(t, repo, owner, 10, store.TypeExpense, "Other", time.Date(2024, m, 15, 0, 0, 0, 0, time.UTC))
	}

	s := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	got, err := svc.Trends(context.Background(), owner, Query{StartDate: &s, EndDate: &e, GroupBy: GroupByMonth})
	if err != nil {
		t.Fatalf("Trends failed: %v", err)
	}
	if len(got) != 12 {
		t.Fatalf("got %d buckets, want 12", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Bucket <= got[i-1].Bucket {
			t.Errorf("buckets not ascending: %q after %q", got[i].Bucket, got[i-1].Bucket)
		}
	}
	if got[0].Bucket != "2024-01" || got[11].Bucket != "2024-12" {
		t.Errorf("bucket range = %q..%q, want 2024-01..2024-12", got[0].Bucket, got[11].Bucket)
	}
}

func TestInsightsAndPatterns(t *testing.T) {
	svc, repo := newService(t)
	owner := "alice"

	// This month doubles last month's spending; Groceries dominates.
	insert(t, repo, owner, 3000, store.TypeIncome, "Salary", testNow.AddDate(0, 0, -5))
	insert(t, repo, owner, 300, store.TypeExpense, "Groceries", testNow.AddDate(0, 0, -4))
	insert(t, repo, owner, 100, store.TypeExpense, "Travel", testNow.AddDate(0, 0, -3))
	insert(t, repo, owner, 200, store.TypeExpense, "Groceries", time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC))

	insights, err := svc.Insights(context.Background(), owner)
	if err != nil {
		t.Fatalf("Insights failed: %v", err)
	}

	types := make(map[string]bool)
	for _, in := range insights {
		types[in.Type] = true
		if in.Message == "" || in.Title == "" {
			t.Errorf("insight %q has empty text: %+v", in.Type, in)
		}
	}
	for _, want := range []string{"spending_up", "top_category", "savings_rate"} {
		if !types[want] {
			t.Errorf("missing insight %q in %+v", want, insights)
		}
	}

	report, err := svc.Patterns(context.Background(), owner)
	if err != nil {
		t.Fatalf("Patterns failed: %v", err)
	}
	if len(report.Weekdays) != 7 {
		t.Errorf("got %d weekday entries, want 7", len(report.Weekdays))
	}
	if report.PeakDay == "" {
		t.Error("expected a peak day with expense activity present")
	}
}
