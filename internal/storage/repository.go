package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"tally/internal/core"
	"tally/internal/ledger"
)

// tsLayout is a fixed-width UTC timestamp format so stored strings order
// lexicographically. time.Parse(time.RFC3339Nano, ...) reads it back.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

func formatTS(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

// SQLiteRepository implements ledger.Store on a local SQLite database.
// Every composite operation (record write + totals delta) runs in a single
// SQL transaction; the totals delta itself is a server-side increment.
type SQLiteRepository struct {
	db       *sql.DB
	queries  *Queries
	hub      *watchHub
	currency string
}

var _ ledger.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath, defaultCurrency string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:       db,
		queries:  New(db),
		hub:      newWatchHub(),
		currency: defaultCurrency,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func toRow(t core.Transaction) CreateTransactionParams {
	return CreateTransactionParams{
		ID:          t.ID,
		OwnerID:     t.OwnerID,
		Category:    string(t.Category),
		SubCategory: string(t.SubCategory),
		AmountCents: t.Amount.Cents,
		Beneficiary: t.Beneficiary,
		Timestamp:   formatTS(t.Timestamp),
		PaidStatus:  string(t.PaidStatus),
	}
}

func fromRow(row TransactionRow) core.Transaction {
	ts, err := time.Parse(time.RFC3339Nano, row.Timestamp)
	if err != nil {
		ts = time.Time{}
	}
	return core.Transaction{
		ID:          row.ID,
		OwnerID:     row.OwnerID,
		Category:    core.Category(row.Category),
		SubCategory: core.SubCategory(row.SubCategory),
		Amount:      core.Money{Cents: row.AmountCents},
		Beneficiary: row.Beneficiary,
		Timestamp:   ts,
		PaidStatus:  core.PaidStatus(row.PaidStatus),
	}
}

// inTx runs fn inside one SQL transaction.
func (r *SQLiteRepository) inTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w: %w", err, core.ErrStore)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w: %w", err, core.ErrStore)
	}
	return nil
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction, delta core.BalanceDelta) (string, error) {
	t.ID = uuid.NewString()
	err := r.inTx(ctx, func(q *Queries) error {
		if err := q.CreateTransaction(ctx, toRow(t)); err != nil {
			return fmt.Errorf("insert transaction: %w: %w", err, core.ErrStore)
		}
		if err := q.ApplyTotalsDelta(ctx, t.OwnerID, delta.Total.Cents, delta.Giving.Cents, r.currency); err != nil {
			return fmt.Errorf("apply totals delta: %w: %w", err, core.ErrStore)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", t.ID,
		"category", t.Category,
		"amount_cents", t.Amount.Cents)
	r.notify(ctx, t.OwnerID)
	return t.ID, nil
}

// getOwned loads a transaction and checks ownership, mapping a missing row
// to ErrNotFound and a foreign row to ErrAuth.
func (r *SQLiteRepository) getOwned(ctx context.Context, q *Queries, userID, id string) (TransactionRow, error) {
	row, err := q.GetTransaction(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return TransactionRow{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return TransactionRow{}, fmt.Errorf("get transaction: %w: %w", err, core.ErrStore)
	}
	if row.OwnerID != userID {
		return TransactionRow{}, fmt.Errorf("transaction %s: %w", id, core.ErrAuth)
	}
	return row, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error) {
	row, err := r.getOwned(ctx, r.queries, userID, id)
	if err != nil {
		return core.Transaction{}, err
	}
	return fromRow(row), nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID string, f ledger.Filter) ([]core.Transaction, error) {
	p := ListTransactionsParams{
		OwnerID:     userID,
		Category:    string(f.Category),
		SubCategory: string(f.SubCategory),
		PaidStatus:  string(f.PaidStatus),
	}
	if f.Window != nil {
		p.From = formatTS(f.Window.Start)
		p.To = formatTS(f.Window.End)
	}
	rows, err := r.queries.ListTransactions(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w: %w", err, core.ErrStore)
	}
	out := make([]core.Transaction, len(rows))
	for i, row := range rows {
		out[i] = fromRow(row)
	}
	return out, nil
}

func (r *SQLiteRepository) PartialPaid(ctx context.Context, userID, txID string) (core.Money, error) {
	if _, err := r.getOwned(ctx, r.queries, userID, txID); err != nil {
		return core.Money{}, err
	}
	cents, err := r.queries.GetPartialPaid(ctx, txID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Money{}, nil
	}
	if err != nil {
		return core.Money{}, fmt.Errorf("get partial paid: %w: %w", err, core.ErrStore)
	}
	return core.Money{Cents: cents}, nil
}

func (r *SQLiteRepository) ApplyPartialPayment(ctx context.Context, userID, txID string, newPaid core.Money, delta core.BalanceDelta, settle bool) error {
	err := r.inTx(ctx, func(q *Queries) error {
		if _, err := r.getOwned(ctx, q, userID, txID); err != nil {
			return err
		}
		if settle {
			if _, err := q.MarkTransactionPaid(ctx, txID); err != nil {
				return fmt.Errorf("mark paid: %w: %w", err, core.ErrStore)
			}
			if err := q.DeletePartialPayment(ctx, txID); err != nil {
				return fmt.Errorf("delete partial: %w: %w", err, core.ErrStore)
			}
		} else {
			if err := q.UpsertPartialPayment(ctx, txID, userID, newPaid.Cents); err != nil {
				return fmt.Errorf("upsert partial: %w: %w", err, core.ErrStore)
			}
		}
		if err := q.ApplyTotalsDelta(ctx, userID, delta.Total.Cents, delta.Giving.Cents, r.currency); err != nil {
			return fmt.Errorf("apply totals delta: %w: %w", err, core.ErrStore)
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.notify(ctx, userID)
	return nil
}

func (r *SQLiteRepository) SettleTransaction(ctx context.Context, userID, txID string, delta core.BalanceDelta) error {
	err := r.inTx(ctx, func(q *Queries) error {
		if _, err := r.getOwned(ctx, q, userID, txID); err != nil {
			return err
		}
		settled, err := q.MarkTransactionPaid(ctx, txID)
		if err != nil {
			return fmt.Errorf("mark paid: %w: %w", err, core.ErrStore)
		}
		if !settled {
			// Already paid: applying the delta again would double-deduct.
			return nil
		}
		if err := q.DeletePartialPayment(ctx, txID); err != nil {
			return fmt.Errorf("delete partial: %w: %w", err, core.ErrStore)
		}
		if err := q.ApplyTotalsDelta(ctx, userID, delta.Total.Cents, delta.Giving.Cents, r.currency); err != nil {
			return fmt.Errorf("apply totals delta: %w: %w", err, core.ErrStore)
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.notify(ctx, userID)
	return nil
}

func (r *SQLiteRepository) Totals(ctx context.Context, userID string) (core.Totals, error) {
	_, total, giving, currency, err := r.queries.GetTotals(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		// First read creates the zeroed record.
		if err := r.queries.ApplyTotalsDelta(ctx, userID, 0, 0, r.currency); err != nil {
			return core.Totals{}, fmt.Errorf("init totals: %w: %w", err, core.ErrStore)
		}
		return core.Totals{OwnerID: userID, Currency: r.currency}, nil
	}
	if err != nil {
		return core.Totals{}, fmt.Errorf("get totals: %w: %w", err, core.ErrStore)
	}
	return core.Totals{
		OwnerID:     userID,
		Total:       core.Money{Cents: total},
		GivingTotal: core.Money{Cents: giving},
		Currency:    currency,
	}, nil
}

func (r *SQLiteRepository) SetCurrency(ctx context.Context, userID, currency string) error {
	if err := r.queries.SetCurrency(ctx, userID, currency); err != nil {
		return fmt.Errorf("set currency: %w: %w", err, core.ErrStore)
	}
	r.notify(ctx, userID)
	return nil
}

func (r *SQLiteRepository) ListPartials(ctx context.Context, userID string) (map[string]core.Money, error) {
	partials, err := r.queries.ListPartialPayments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list partials: %w: %w", err, core.ErrStore)
	}
	out := make(map[string]core.Money, len(partials))
	for id, cents := range partials {
		out[id] = core.Money{Cents: cents}
	}
	return out, nil
}

func (r *SQLiteRepository) WipeAll(ctx context.Context, userID string) (ledger.WipeReport, error) {
	var report ledger.WipeReport
	err := r.inTx(ctx, func(q *Queries) error {
		partials, err := q.DeleteUserPartials(ctx, userID)
		if err != nil {
			return fmt.Errorf("delete partials: %w: %w", err, core.ErrStore)
		}
		report.PartialsWiped = int(partials)

		txs, err := q.DeleteUserTransactions(ctx, userID)
		if err != nil {
			return fmt.Errorf("delete transactions: %w: %w", err, core.ErrStore)
		}
		report.TransactionsWiped = int(txs)

		if err := q.ResetTotals(ctx, userID); err != nil {
			return fmt.Errorf("reset totals: %w: %w", err, core.ErrStore)
		}
		return nil
	})
	if err != nil {
		return report, err
	}

	slog.InfoContext(ctx, "User data wiped",
		"user_id", userID,
		"transactions", report.TransactionsWiped,
		"partials", report.PartialsWiped)
	r.notify(ctx, userID)
	return report, nil
}

func (r *SQLiteRepository) WatchPending(ctx context.Context, userID string, fn func(ledger.PendingUpdate)) (ledger.CancelFunc, error) {
	cancel := r.hub.addPending(userID, fn)
	update, err := r.pendingSnapshot(ctx, userID)
	if err != nil {
		cancel()
		return nil, err
	}
	fn(update)
	return cancel, nil
}

func (r *SQLiteRepository) WatchTotals(ctx context.Context, userID string, fn func(core.Totals)) (ledger.CancelFunc, error) {
	cancel := r.hub.addTotals(userID, fn)
	totals, err := r.Totals(ctx, userID)
	if err != nil {
		cancel()
		return nil, err
	}
	fn(totals)
	return cancel, nil
}

func (r *SQLiteRepository) pendingSnapshot(ctx context.Context, userID string) (ledger.PendingUpdate, error) {
	txs, err := r.ListTransactions(ctx, userID, ledger.Filter{
		Category:   core.Expense,
		PaidStatus: core.Unpaid,
	})
	if err != nil {
		return ledger.PendingUpdate{}, err
	}
	partials, err := r.ListPartials(ctx, userID)
	if err != nil {
		return ledger.PendingUpdate{}, err
	}
	return ledger.PendingUpdate{Transactions: txs, Partials: partials}, nil
}

// notify refreshes every watcher of the user after a committed mutation.
func (r *SQLiteRepository) notify(ctx context.Context, userID string) {
	if r.hub.hasPending(userID) {
		if update, err := r.pendingSnapshot(ctx, userID); err == nil {
			r.hub.notifyPending(userID, update)
		} else {
			slog.WarnContext(ctx, "Pending snapshot for watchers failed", "user_id", userID, "error", err)
		}
	}
	if r.hub.hasTotals(userID) {
		if totals, err := r.Totals(ctx, userID); err == nil {
			r.hub.notifyTotals(userID, totals)
		} else {
			slog.WarnContext(ctx, "Totals snapshot for watchers failed", "user_id", userID, "error", err)
		}
	}
}

// Export queue surface for the export worker. These are deliberately not
// part of ledger.Store: only the SQLite backend feeds the exporter.

func (r *SQLiteRepository) ListExportPending(ctx context.Context, limit int) ([]core.Transaction, error) {
	rows, err := r.queries.ListExportPending(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list export pending: %w: %w", err, core.ErrStore)
	}
	out := make([]core.Transaction, len(rows))
	for i, row := range rows {
		out[i] = fromRow(row)
	}
	return out, nil
}

func (r *SQLiteRepository) MarkExported(ctx context.Context, id string) error {
	if err := r.queries.MarkTransactionExported(ctx, id); err != nil {
		return fmt.Errorf("mark exported: %w: %w", err, core.ErrStore)
	}
	return nil
}

// User accounts. SQLite's unique index on email is the authority on
// duplicates; the insert error is mapped rather than pre-checked.

func (r *SQLiteRepository) CreateUser(ctx context.Context, id, email string, passwordHash []byte) error {
	if err := r.queries.CreateUser(ctx, id, email, passwordHash); err != nil {
		if isUniqueConstraint(err) {
			return fmt.Errorf("email already registered: %w", core.ErrValidation)
		}
		return fmt.Errorf("create user: %w: %w", err, core.ErrStore)
	}
	return nil
}

func (r *SQLiteRepository) UserByEmail(ctx context.Context, email string) (string, []byte, error) {
	u, err := r.queries.GetUserByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, fmt.Errorf("user %s: %w", email, core.ErrNotFound)
	}
	if err != nil {
		return "", nil, fmt.Errorf("get user by email: %w: %w", err, core.ErrStore)
	}
	return u.ID, u.PasswordHash, nil
}

func isUniqueConstraint(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint")
}

func (r *SQLiteRepository) MarkExportError(ctx context.Context, id string) error {
	if err := r.queries.MarkTransactionExportError(ctx, id); err != nil {
		return fmt.Errorf("mark export error: %w: %w", err, core.ErrStore)
	}
	slog.WarnContext(ctx, "Transaction marked with export error", "id", id)
	return nil
}
