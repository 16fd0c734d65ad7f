package services

import (
	"context"
	"fmt"
	"log/slog"

	"tally/internal/amqp"
	"tally/internal/core"
	"tally/internal/ledger"
)

// EventPublisher pushes ledger events toward the export worker. Implemented
// by *amqp.Client; a nil publisher disables export events.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error
}

// LedgerService orchestrates the transaction lifecycle: validation, balance
// delta computation, the atomic store write, and the async export event.
type LedgerService struct {
	store     ledger.Store
	publisher EventPublisher
}

func NewLedgerService(store ledger.Store, publisher EventPublisher) *LedgerService {
	return &LedgerService{
		store:     store,
		publisher: publisher,
	}
}

// CreateTransaction validates, persists, and applies the balance effect of a
// new transaction. The store assigns the id.
func (s *LedgerService) CreateTransaction(ctx context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}

	id, err := s.store.CreateTransaction(ctx, t, core.ComputeDelta(t))
	if err != nil {
		return "", fmt.Errorf("create transaction: %w", err)
	}

	s.publish(ctx, amqp.NewLedgerEventMessage(t.OwnerID, id, amqp.EventCreated))
	return id, nil
}

// RecordPartialPayment adds a payment toward an unpaid expense. The balance
// drops by the payment immediately; when the cumulative paid amount reaches
// the expense amount the transaction settles in the same atomic unit.
func (s *LedgerService) RecordPartialPayment(ctx context.Context, userID, txID string, payment core.Money) error {
	if err := payment.Validate(); err != nil {
		return err
	}

	t, err := s.store.GetTransaction(ctx, userID, txID)
	if err != nil {
		return err
	}
	if t.Category != core.Expense {
		return fmt.Errorf("payments apply to expenses only: %w", core.ErrValidation)
	}
	if t.Settled() {
		return fmt.Errorf("transaction already paid: %w", core.ErrValidation)
	}

	paid, err := s.store.PartialPaid(ctx, userID, txID)
	if err != nil {
		return err
	}

	newPaid := paid.Add(payment)
	settle := newPaid.GTE(t.Amount)
	if err := s.store.ApplyPartialPayment(ctx, userID, txID, newPaid, core.ComputePartialDelta(payment), settle); err != nil {
		return fmt.Errorf("record payment: %w", err)
	}

	slog.InfoContext(ctx, "Partial payment recorded",
		"transaction_id", txID,
		"payment_cents", payment.Cents,
		"cumulative_cents", newPaid.Cents,
		"settled", settle)

	if settle {
		s.publish(ctx, amqp.NewLedgerEventMessage(userID, txID, amqp.EventSettled))
	}
	return nil
}

// MarkFullyPaid settles an unpaid expense, deducting only what partial
// payments have not deducted yet. Settling a paid transaction is a no-op.
func (s *LedgerService) MarkFullyPaid(ctx context.Context, userID, txID string) error {
	t, err := s.store.GetTransaction(ctx, userID, txID)
	if err != nil {
		return err
	}
	if t.Category != core.Expense {
		return fmt.Errorf("only expenses settle: %w", core.ErrValidation)
	}
	if t.Settled() {
		return nil
	}

	paid, err := s.store.PartialPaid(ctx, userID, txID)
	if err != nil {
		return err
	}

	if err := s.store.SettleTransaction(ctx, userID, txID, core.ComputeSettlementDelta(t, paid)); err != nil {
		return fmt.Errorf("settle transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction settled",
		"transaction_id", txID,
		"already_paid_cents", paid.Cents)

	s.publish(ctx, amqp.NewLedgerEventMessage(userID, txID, amqp.EventSettled))
	return nil
}

// PendingExpenses returns unpaid expenses with their cumulative partial
// payments keyed by transaction id.
func (s *LedgerService) PendingExpenses(ctx context.Context, userID string) ([]core.Transaction, map[string]core.Money, error) {
	txs, err := s.store.ListTransactions(ctx, userID, ledger.Filter{
		Category:   core.Expense,
		PaidStatus: core.Unpaid,
	})
	if err != nil {
		return nil, nil, err
	}
	partials, err := s.store.ListPartials(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return txs, partials, nil
}

// Totals returns the user's balance record.
func (s *LedgerService) Totals(ctx context.Context, userID string) (core.Totals, error) {
	return s.store.Totals(ctx, userID)
}

// SetCurrency updates the display currency on the totals record.
func (s *LedgerService) SetCurrency(ctx context.Context, userID, currency string) error {
	if currency == "" {
		return fmt.Errorf("currency required: %w", core.ErrValidation)
	}
	return s.store.SetCurrency(ctx, userID, currency)
}

// WipeAllData removes every transaction and partial record of the user and
// zeroes the totals.
func (s *LedgerService) WipeAllData(ctx context.Context, userID string) (ledger.WipeReport, error) {
	report, err := s.store.WipeAll(ctx, userID)
	if err != nil {
		return report, fmt.Errorf("wipe data: %w", err)
	}

	s.publish(ctx, amqp.NewLedgerEventMessage(userID, "", amqp.EventWiped))
	return report, nil
}

// WatchPending subscribes to unpaid-expense changes.
func (s *LedgerService) WatchPending(ctx context.Context, userID string, fn func(ledger.PendingUpdate)) (ledger.CancelFunc, error) {
	return s.store.WatchPending(ctx, userID, fn)
}

// WatchTotals subscribes to totals changes.
func (s *LedgerService) WatchTotals(ctx context.Context, userID string, fn func(core.Totals)) (ledger.CancelFunc, error) {
	return s.store.WatchTotals(ctx, userID, fn)
}

// publish sends the event best-effort. A publish failure never fails the
// request: the worker catches up from the export queue.
func (s *LedgerService) publish(ctx context.Context, msg *amqp.LedgerEventMessage) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishLedgerEvent(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"kind", msg.Kind,
			"transaction_id", msg.TransactionID,
			"error", err)
	}
}
