package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"tally/internal/core"
	"tally/internal/ledger"
)

// handleSummaryStream pushes balance totals over server-sent events. The
// first event is the current snapshot, later events follow mutations.
func (s *Server) handleSummaryStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// Buffered so the store never blocks on a slow client; a dropped
	// update is superseded by the next one.
	updates := make(chan core.Totals, 8)
	cancel, err := s.ledger.WatchTotals(r.Context(), userID(r), func(t core.Totals) {
		select {
		case updates <- t:
		default:
		}
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	defer cancel()

	setStreamHeaders(w)

	for {
		select {
		case <-r.Context().Done():
			return
		case t := <-updates:
			err := writeEvent(w, map[string]any{
				"total_cents":        t.Total.Cents,
				"giving_total_cents": t.GivingTotal.Cents,
				"currency":           t.Currency,
			})
			if err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// handlePendingStream pushes the unpaid-expense list over server-sent
// events, same payload shape as GET /transactions/pending.
func (s *Server) handlePendingStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	updates := make(chan ledger.PendingUpdate, 8)
	cancel, err := s.ledger.WatchPending(r.Context(), userID(r), func(u ledger.PendingUpdate) {
		select {
		case updates <- u:
		default:
		}
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	defer cancel()

	setStreamHeaders(w)

	for {
		select {
		case <-r.Context().Done():
			return
		case u := <-updates:
			payload := struct {
				Transactions []transactionResponse `json:"transactions"`
				Partials     map[string]int64      `json:"partials"`
			}{
				Transactions: make([]transactionResponse, len(u.Transactions)),
				Partials:     make(map[string]int64, len(u.Partials)),
			}
			for i, t := range u.Transactions {
				payload.Transactions[i] = toTransactionResponse(t)
			}
			for id, paid := range u.Partials {
				payload.Partials[id] = paid.Cents
			}
			if err := writeEvent(w, payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func setStreamHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

func writeEvent(w io.Writer, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
