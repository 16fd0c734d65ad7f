package services

import (
	"context"
	"time"

	"tally/internal/core"
	"tally/internal/ledger"
)

// DefaultReportDays is the trailing window reports cover when the caller
// does not pick one.
const DefaultReportDays = 30

// ReportService aggregates ledger history into spending and income views.
type ReportService struct {
	store ledger.TransactionReader
	now   func() time.Time
}

func NewReportService(store ledger.TransactionReader) *ReportService {
	return &ReportService{
		store: store,
		now:   time.Now,
	}
}

// WithClock replaces the time source. Test hook.
func (s *ReportService) WithClock(now func() time.Time) *ReportService {
	s.now = now
	return s
}

// SpendingReport sums expenses per subcategory over the trailing window.
// Every known subcategory appears, zero when nothing was spent.
type SpendingReport struct {
	Window core.Window
	Totals map[core.SubCategory]core.Money
}

// IncomeReport sums income over the trailing window.
type IncomeReport struct {
	Window core.Window
	Total  core.Money
}

func (s *ReportService) window(days int) core.Window {
	if days <= 0 {
		days = DefaultReportDays
	}
	return core.TrailingDays(s.now(), days)
}

// CategoryBreakdown reports expense totals per subcategory for the trailing
// window of days (default 30).
func (s *ReportService) CategoryBreakdown(ctx context.Context, userID string, days int) (SpendingReport, error) {
	w := s.window(days)
	txs, err := s.store.ListTransactions(ctx, userID, ledger.Filter{
		Category: core.Expense,
		Window:   &w,
	})
	if err != nil {
		return SpendingReport{}, err
	}
	return SpendingReport{
		Window: w,
		Totals: core.SumExpensesBySubCategory(txs, w),
	}, nil
}

// IncomeInWindow reports total income for the trailing window of days.
func (s *ReportService) IncomeInWindow(ctx context.Context, userID string, days int) (IncomeReport, error) {
	w := s.window(days)
	txs, err := s.store.ListTransactions(ctx, userID, ledger.Filter{
		Category: core.Income,
		Window:   &w,
	})
	if err != nil {
		return IncomeReport{}, err
	}
	return IncomeReport{
		Window: w,
		Total:  core.SumIncome(txs, w),
	}, nil
}
