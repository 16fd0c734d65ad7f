package http

import (
	"log/slog"
	"net/http"
	"time"

	"tally/internal/core"
)

type createTransactionRequest struct {
	Category    string `json:"category"`
	SubCategory string `json:"sub_category,omitempty"`
	Amount      string `json:"amount"`
	Beneficiary string `json:"beneficiary,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
	PaidStatus  string `json:"paid_status,omitempty"`
}

type transactionResponse struct {
	ID          string  `json:"id"`
	Category    string  `json:"category"`
	SubCategory string  `json:"sub_category,omitempty"`
	AmountCents int64   `json:"amount_cents"`
	Amount      float64 `json:"amount"`
	Beneficiary string  `json:"beneficiary,omitempty"`
	Timestamp   string  `json:"timestamp"`
	PaidStatus  string  `json:"paid_status,omitempty"`
}

func toTransactionResponse(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:          t.ID,
		Category:    string(t.Category),
		SubCategory: string(t.SubCategory),
		AmountCents: t.Amount.Cents,
		Amount:      t.Amount.Units(),
		Beneficiary: t.Beneficiary,
		Timestamp:   t.Timestamp.UTC().Format(time.RFC3339),
		PaidStatus:  string(t.PaidStatus),
	}
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}

	ts := time.Now()
	if req.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			writeError(w, http.StatusBadRequest, "timestamp must be RFC 3339")
			return
		}
		ts = parsed
	}

	t := core.Transaction{
		OwnerID:     userID(r),
		Category:    core.Category(sanitizeInput(req.Category)),
		SubCategory: core.SubCategory(sanitizeInput(req.SubCategory)),
		Amount:      core.Money{Cents: cents},
		Beneficiary: sanitizeInput(req.Beneficiary),
		Timestamp:   ts,
		PaidStatus:  core.PaidStatus(sanitizeInput(req.PaidStatus)),
	}

	id, err := s.ledger.CreateTransaction(r.Context(), t)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.invalidateReports(userID(r))
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handlePendingTransactions(w http.ResponseWriter, r *http.Request) {
	txs, partials, err := s.ledger.PendingExpenses(r.Context(), userID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := struct {
		Transactions []transactionResponse `json:"transactions"`
		Partials     map[string]int64      `json:"partials"`
	}{
		Transactions: make([]transactionResponse, len(txs)),
		Partials:     make(map[string]int64, len(partials)),
	}
	for i, t := range txs {
		out.Transactions[i] = toTransactionResponse(t)
	}
	for id, paid := range partials {
		out.Partials[id] = paid.Cents
	}

	writeJSON(w, http.StatusOK, out)
}

type paymentRequest struct {
	Amount string `json:"amount"`
}

func (s *Server) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}

	if err := s.ledger.RecordPartialPayment(r.Context(), userID(r), r.PathValue("id"), core.Money{Cents: cents}); err != nil {
		writeDomainError(w, err)
		return
	}

	s.invalidateReports(userID(r))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.MarkFullyPaid(r.Context(), userID(r), r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}

	s.invalidateReports(userID(r))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	totals, err := s.ledger.Totals(r.Context(), userID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total_cents":        totals.Total.Cents,
		"giving_total_cents": totals.GivingTotal.Cents,
		"total":              totals.Total.Format(totals.Currency),
		"giving_total":       totals.GivingTotal.Format(totals.Currency),
		"currency":           totals.Currency,
	})
}

type currencyRequest struct {
	Currency string `json:"currency"`
}

func (s *Server) handleSetCurrency(w http.ResponseWriter, r *http.Request) {
	var req currencyRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.ledger.SetCurrency(r.Context(), userID(r), sanitizeInput(req.Currency)); err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWipeData(w http.ResponseWriter, r *http.Request) {
	report, err := s.ledger.WipeAllData(r.Context(), userID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	slog.InfoContext(r.Context(), "Wipe requested via API",
		"user_id", userID(r),
		"transactions", report.TransactionsWiped,
		"partials", report.PartialsWiped)

	s.invalidateReports(userID(r))
	writeJSON(w, http.StatusOK, map[string]int{
		"transactions_wiped":  report.TransactionsWiped,
		"partials_wiped":      report.PartialsWiped,
		"transactions_failed": report.TransactionsFailed,
		"partials_failed":     report.PartialsFailed,
	})
}
