package services

import (
	"context"
	"testing"
	"time"

	"tally/internal/core"
	"tally/internal/ledger/memory"
)

func TestCategoryBreakdown(t *testing.T) {
	store := memory.New("EUR")
	svc := NewLedgerService(store, nil)
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	reports := NewReportService(store).WithClock(func() time.Time { return now })
	ctx := context.Background()

	add := func(sub core.SubCategory, cents int64, daysAgo int) {
		t.Helper()
		if _, err := svc.CreateTransaction(ctx, core.Transaction{
			OwnerID:     "u1",
			Category:    core.Expense,
			SubCategory: sub,
			Amount:      core.Money{Cents: cents},
			Timestamp:   now.AddDate(0, 0, -daysAgo),
			PaidStatus:  core.Paid,
		}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	add(core.Bills, 2000, 5)
	add(core.Bills, 1000, 10)
	add(core.Living, 500, 29)
	add(core.Living, 9999, 45) // outside the window

	report, err := reports.CategoryBreakdown(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("CategoryBreakdown: %v", err)
	}

	want := map[core.SubCategory]int64{
		core.Living:   500,
		core.Bills:    3000,
		core.Personal: 0,
		core.Gifting:  0,
	}
	if len(report.Totals) != len(want) {
		t.Fatalf("got %d subcategories, want %d (missing ones must be zero, not absent)", len(report.Totals), len(want))
	}
	for sub, cents := range want {
		got, ok := report.Totals[sub]
		if !ok {
			t.Errorf("subcategory %s absent, want zero entry", sub)
			continue
		}
		if got.Cents != cents {
			t.Errorf("%s = %d, want %d", sub, got.Cents, cents)
		}
	}
}

func TestIncomeInWindow(t *testing.T) {
	store := memory.New("EUR")
	svc := NewLedgerService(store, nil)
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	reports := NewReportService(store).WithClock(func() time.Time { return now })
	ctx := context.Background()

	add := func(cents int64, daysAgo int) {
		t.Helper()
		if _, err := svc.CreateTransaction(ctx, core.Transaction{
			OwnerID:   "u1",
			Category:  core.Income,
			Amount:    core.Money{Cents: cents},
			Timestamp: now.AddDate(0, 0, -daysAgo),
		}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	add(10000, 1)
	add(5000, 20)
	add(7777, 60) // outside the window

	report, err := reports.IncomeInWindow(ctx, "u1", 30)
	if err != nil {
		t.Fatalf("IncomeInWindow: %v", err)
	}
	if report.Total.Cents != 15000 {
		t.Errorf("income = %d, want 15000", report.Total.Cents)
	}
}

func TestReportsForEmptyLedger(t *testing.T) {
	store := memory.New("EUR")
	reports := NewReportService(store)
	ctx := context.Background()

	spending, err := reports.CategoryBreakdown(ctx, "nobody", 30)
	if err != nil {
		t.Fatalf("CategoryBreakdown: %v", err)
	}
	for sub, got := range spending.Totals {
		if got.Cents != 0 {
			t.Errorf("%s = %d for empty ledger, want 0", sub, got.Cents)
		}
	}

	income, err := reports.IncomeInWindow(ctx, "nobody", 30)
	if err != nil {
		t.Fatalf("IncomeInWindow: %v", err)
	}
	if income.Total.Cents != 0 {
		t.Errorf("income = %d for empty ledger, want 0", income.Total.Cents)
	}
}
