package core

import (
	"testing"
	"time"
)

func TestSumExpensesBySubCategory(t *testing.T) {
	now := time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)
	w := TrailingDays(now, 30)

	txs := []Transaction{
		{OwnerID: "u", Category: Expense, SubCategory: Living, Amount: Money{Cents: 1000}, Timestamp: now.Add(-24 * time.Hour), PaidStatus: Unpaid},
		{OwnerID: "u", Category: Expense, SubCategory: Living, Amount: Money{Cents: 500}, Timestamp: now.Add(-48 * time.Hour), PaidStatus: Paid},
		{OwnerID: "u", Category: Expense, SubCategory: Personal, Amount: Money{Cents: 700}, Timestamp: now, PaidStatus: Unpaid},
		// Outside the window.
		{OwnerID: "u", Category: Expense, SubCategory: Bills, Amount: Money{Cents: 9999}, Timestamp: now.Add(-31 * 24 * time.Hour), PaidStatus: Unpaid},
		// Not an expense.
		{OwnerID: "u", Category: Income, Amount: Money{Cents: 8888}, Timestamp: now},
		{OwnerID: "u", Category: Giving, SubCategory: Gifting, Amount: Money{Cents: 300}, Timestamp: now},
	}

	sums := SumExpensesBySubCategory(txs, w)

	if got := sums[Living].Cents; got != 1500 {
		t.Fatalf("Living = %d, want 1500", got)
	}
	if got := sums[Personal].Cents; got != 700 {
		t.Fatalf("Personal = %d, want 700", got)
	}
	// Zero, not absent: the caller renders every known subcategory.
	for _, sc := range []SubCategory{Bills, Gifting} {
		v, ok := sums[sc]
		if !ok {
			t.Fatalf("%s missing from result", sc)
		}
		if v.Cents != 0 {
			t.Fatalf("%s = %d, want 0", sc, v.Cents)
		}
	}
	if len(sums) != len(SubCategories()) {
		t.Fatalf("result has %d keys, want %d", len(sums), len(SubCategories()))
	}
}

func TestSumIncome(t *testing.T) {
	now := time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)
	w := TrailingDays(now, 30)

	txs := []Transaction{
		{OwnerID: "u", Category: Income, Amount: Money{Cents: 100000}, Timestamp: now.Add(-time.Hour)},
		{OwnerID: "u", Category: Income, Amount: Money{Cents: 2500}, Timestamp: now.Add(-29 * 24 * time.Hour)},
		{OwnerID: "u", Category: Income, Amount: Money{Cents: 7777}, Timestamp: now.Add(-40 * 24 * time.Hour)},
		{OwnerID: "u", Category: Expense, SubCategory: Bills, Amount: Money{Cents: 4000}, Timestamp: now, PaidStatus: Unpaid},
	}

	if got := SumIncome(txs, w).Cents; got != 102500 {
		t.Fatalf("SumIncome = %d, want 102500", got)
	}
	if got := SumIncome(nil, w).Cents; got != 0 {
		t.Fatalf("SumIncome(nil) = %d, want 0", got)
	}
}

func TestWindowBoundsInclusive(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	w := Window{Start: start, End: end}

	if !w.Contains(start) || !w.Contains(end) {
		t.Fatal("window bounds must be inclusive")
	}
	if w.Contains(start.Add(-time.Nanosecond)) || w.Contains(end.Add(time.Nanosecond)) {
		t.Fatal("window must exclude instants outside bounds")
	}
}
