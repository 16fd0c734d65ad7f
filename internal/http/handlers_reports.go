package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// reportKey builds a cache key that embeds the user's mutation generation;
// invalidation is just a generation bump.
func (s *Server) reportKey(userID string, days int) string {
	gen := s.generation(userID).Load()
	return fmt.Sprintf("%s:%d:%d", userID, gen, days)
}

func (s *Server) generation(userID string) *atomic.Int64 {
	v, _ := s.generations.LoadOrStore(userID, &atomic.Int64{})
	return v.(*atomic.Int64)
}

func (s *Server) invalidateReports(userID string) {
	s.generation(userID).Add(1)
}

func (s *Server) handleSpendingReport(w http.ResponseWriter, r *http.Request) {
	days, err := parseDays(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := s.reportKey(userID(r), days)
	report, found := s.spendingCache.Get(key)
	if !found {
		report, err = s.reports.CategoryBreakdown(r.Context(), userID(r), days)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		s.spendingCache.Set(key, report)
	} else {
		slog.DebugContext(r.Context(), "Spending report cache hit", "user_id", userID(r), "days", days)
	}

	totals := make(map[string]int64, len(report.Totals))
	for sub, amount := range report.Totals {
		totals[string(sub)] = amount.Cents
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"window_start": report.Window.Start.UTC().Format(time.RFC3339),
		"window_end":   report.Window.End.UTC().Format(time.RFC3339),
		"totals_cents": totals,
	})
}

func (s *Server) handleIncomeReport(w http.ResponseWriter, r *http.Request) {
	days, err := parseDays(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := s.reportKey(userID(r), days)
	report, found := s.incomeCache.Get(key)
	if !found {
		report, err = s.reports.IncomeInWindow(r.Context(), userID(r), days)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		s.incomeCache.Set(key, report)
	} else {
		slog.DebugContext(r.Context(), "Income report cache hit", "user_id", userID(r), "days", days)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"window_start": report.Window.Start.UTC().Format(time.RFC3339),
		"window_end":   report.Window.End.UTC().Format(time.RFC3339),
		"total_cents":  report.Total.Cents,
		"total":        report.Total.Units(),
	})
}
