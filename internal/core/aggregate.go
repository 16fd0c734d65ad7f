package core

import "time"

// Window is an inclusive timestamp range for aggregation queries.
type Window struct {
	Start time.Time
	End   time.Time
}

// TrailingDays returns the window covering the last n days ending at now.
func TrailingDays(now time.Time, n int) Window {
	return Window{Start: now.Add(-time.Duration(n) * 24 * time.Hour), End: now}
}

// Contains reports whether ts falls inside the window, bounds included.
func (w Window) Contains(ts time.Time) bool {
	return !ts.Before(w.Start) && !ts.After(w.End)
}

// SumExpensesBySubCategory groups expense transactions inside the window by
// subcategory and sums their amounts. Every known subcategory is present in
// the result, reporting zero when it saw no activity, so callers can render
// the full breakdown without key checks.
func SumExpensesBySubCategory(txs []Transaction, w Window) map[SubCategory]Money {
	sums := make(map[SubCategory]Money, len(SubCategories()))
	for _, sc := range SubCategories() {
		sums[sc] = Money{}
	}
	for _, t := range txs {
		if t.Category != Expense || !t.SubCategory.Valid() {
			continue
		}
		if !w.Contains(t.Timestamp) {
			continue
		}
		sums[t.SubCategory] = sums[t.SubCategory].Add(t.Amount)
	}
	return sums
}

// SumIncome sums income transaction amounts inside the window.
func SumIncome(txs []Transaction, w Window) Money {
	var sum Money
	for _, t := range txs {
		if t.Category != Income {
			continue
		}
		if !w.Contains(t.Timestamp) {
			continue
		}
		sum = sum.Add(t.Amount)
	}
	return sum
}
