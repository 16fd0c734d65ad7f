// Package ledger defines the ports the lifecycle and report services use to
// reach a ledger store. Balance deltas are computed by the caller (the core
// balance engine) and handed to the store, which must apply them atomically
// with the companion writes: a delta is an increment, never a
// read-modify-write of the totals record.
package ledger

import (
	"context"

	"tally/internal/core"
)

// CancelFunc releases a subscription. Safe to call more than once.
type CancelFunc func()

// Filter narrows ListTransactions. Zero values match everything.
type Filter struct {
	Category    core.Category
	SubCategory core.SubCategory
	PaidStatus  core.PaidStatus
	Window      *core.Window
}

// WipeReport counts what a wipe removed and what it could not.
type WipeReport struct {
	TransactionsWiped  int
	PartialsWiped      int
	TransactionsFailed int
	PartialsFailed     int
}

// PendingUpdate is the payload delivered to pending-transaction watchers:
// the current unpaid expenses plus cumulative partial payments keyed by
// transaction id.
type PendingUpdate struct {
	Transactions []core.Transaction
	Partials     map[string]core.Money
}

// Ports for ledger store backends.
type (
	TransactionWriter interface {
		// CreateTransaction persists the transaction, assigns its id,
		// and applies the delta to the owner's totals in the same
		// atomic unit.
		CreateTransaction(ctx context.Context, tx core.Transaction, delta core.BalanceDelta) (id string, err error)
	}

	TransactionReader interface {
		GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error)
		ListTransactions(ctx context.Context, userID string, f Filter) ([]core.Transaction, error)
	}

	// PaymentReconciler covers the partial-payment lifecycle. All three
	// operations apply their delta atomically with the record changes.
	PaymentReconciler interface {
		// PartialPaid returns the cumulative paid amount toward the
		// transaction, zero when no record exists.
		PartialPaid(ctx context.Context, userID, txID string) (core.Money, error)

		// ApplyPartialPayment records a payment. With settle false it
		// upserts the partial record to newPaid; with settle true it
		// marks the transaction paid and deletes the partial record.
		ApplyPartialPayment(ctx context.Context, userID, txID string, newPaid core.Money, delta core.BalanceDelta, settle bool) error

		// SettleTransaction marks the transaction paid, deletes any
		// partial record, and applies the delta. Settling an already
		// paid transaction is a no-op.
		SettleTransaction(ctx context.Context, userID, txID string, delta core.BalanceDelta) error
	}

	TotalsReader interface {
		// Totals returns the user's totals record, creating a zeroed
		// one on first read.
		Totals(ctx context.Context, userID string) (core.Totals, error)
	}

	TotalsWriter interface {
		SetCurrency(ctx context.Context, userID, currency string) error
	}

	PartialLister interface {
		// ListPartials returns cumulative paid amounts keyed by
		// transaction id.
		ListPartials(ctx context.Context, userID string) (map[string]core.Money, error)
	}

	Wiper interface {
		// WipeAll deletes the user's transactions and partial records
		// and zeroes the totals. The report says how far it got.
		WipeAll(ctx context.Context, userID string) (WipeReport, error)
	}

	// Watcher delivers store changes to long-lived consumers. Callbacks
	// receive an initial snapshot and then every subsequent change until
	// the cancel func is called.
	Watcher interface {
		WatchPending(ctx context.Context, userID string, fn func(PendingUpdate)) (CancelFunc, error)
		WatchTotals(ctx context.Context, userID string, fn func(core.Totals)) (CancelFunc, error)
	}
)

// Store is the full backend surface the services are wired against.
type Store interface {
	TransactionWriter
	TransactionReader
	PaymentReconciler
	TotalsReader
	TotalsWriter
	PartialLister
	Wiper
	Watcher
}
