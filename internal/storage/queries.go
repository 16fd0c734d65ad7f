package storage

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so every query can run
// standalone or inside a repository transaction.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns queries bound to the given transaction.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// TransactionRow mirrors the transactions table.
type TransactionRow struct {
	ID           string
	OwnerID      string
	Category     string
	SubCategory  string
	AmountCents  int64
	Beneficiary  string
	Timestamp    string
	PaidStatus   string
	ExportStatus string
	CreatedAt    time.Time
}

// UserRow mirrors the users table.
type UserRow struct {
	ID           string
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
}

const createTransaction = `
INSERT INTO transactions (id, owner_id, category, sub_category, amount_cents, beneficiary, timestamp, paid_status)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

type CreateTransactionParams struct {
	ID          string
	OwnerID     string
	Category    string
	SubCategory string
	AmountCents int64
	Beneficiary string
	Timestamp   string
	PaidStatus  string
}

func (q *Queries) CreateTransaction(ctx context.Context, p CreateTransactionParams) error {
	_, err := q.db.ExecContext(ctx, createTransaction,
		p.ID, p.OwnerID, p.Category, p.SubCategory, p.AmountCents, p.Beneficiary, p.Timestamp, p.PaidStatus)
	return err
}

const getTransaction = `
SELECT id, owner_id, category, sub_category, amount_cents, beneficiary, timestamp, paid_status, export_status, created_at
FROM transactions WHERE id = ?
`

func (q *Queries) GetTransaction(ctx context.Context, id string) (TransactionRow, error) {
	var r TransactionRow
	err := q.db.QueryRowContext(ctx, getTransaction, id).Scan(
		&r.ID, &r.OwnerID, &r.Category, &r.SubCategory, &r.AmountCents,
		&r.Beneficiary, &r.Timestamp, &r.PaidStatus, &r.ExportStatus, &r.CreatedAt)
	return r, err
}

const markTransactionPaid = `
UPDATE transactions SET paid_status = 'paid' WHERE id = ? AND paid_status = 'unpaid'
`

// MarkTransactionPaid flips unpaid to paid and reports whether anything
// changed, so the caller can tell a fresh settlement from a repeat.
func (q *Queries) MarkTransactionPaid(ctx context.Context, id string) (bool, error) {
	res, err := q.db.ExecContext(ctx, markTransactionPaid, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

const applyTotalsDelta = `
INSERT INTO totals (owner_id, total_cents, giving_total_cents, currency)
VALUES (?, ?, ?, ?)
ON CONFLICT(owner_id) DO UPDATE SET
	total_cents = total_cents + excluded.total_cents,
	giving_total_cents = giving_total_cents + excluded.giving_total_cents
`

// ApplyTotalsDelta increments the totals record server-side in a single
// statement. The increment never reads the row into the client, so
// interleaved mutations cannot lose updates.
func (q *Queries) ApplyTotalsDelta(ctx context.Context, ownerID string, totalDelta, givingDelta int64, currency string) error {
	_, err := q.db.ExecContext(ctx, applyTotalsDelta, ownerID, totalDelta, givingDelta, currency)
	return err
}

const getTotals = `
SELECT owner_id, total_cents, giving_total_cents, currency FROM totals WHERE owner_id = ?
`

func (q *Queries) GetTotals(ctx context.Context, ownerID string) (string, int64, int64, string, error) {
	var owner, currency string
	var total, giving int64
	err := q.db.QueryRowContext(ctx, getTotals, ownerID).Scan(&owner, &total, &giving, &currency)
	return owner, total, giving, currency, err
}

const setCurrency = `
INSERT INTO totals (owner_id, currency) VALUES (?, ?)
ON CONFLICT(owner_id) DO UPDATE SET currency = excluded.currency
`

func (q *Queries) SetCurrency(ctx context.Context, ownerID, currency string) error {
	_, err := q.db.ExecContext(ctx, setCurrency, ownerID, currency)
	return err
}

const getPartialPaid = `
SELECT paid_amount_cents FROM partial_payments WHERE transaction_id = ?
`

func (q *Queries) GetPartialPaid(ctx context.Context, txID string) (int64, error) {
	var cents int64
	err := q.db.QueryRowContext(ctx, getPartialPaid, txID).Scan(&cents)
	return cents, err
}

const upsertPartialPayment = `
INSERT INTO partial_payments (transaction_id, owner_id, paid_amount_cents, updated_at)
VALUES (?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(transaction_id) DO UPDATE SET
	paid_amount_cents = excluded.paid_amount_cents,
	updated_at = CURRENT_TIMESTAMP
`

func (q *Queries) UpsertPartialPayment(ctx context.Context, txID, ownerID string, paidCents int64) error {
	_, err := q.db.ExecContext(ctx, upsertPartialPayment, txID, ownerID, paidCents)
	return err
}

const deletePartialPayment = `
DELETE FROM partial_payments WHERE transaction_id = ?
`

func (q *Queries) DeletePartialPayment(ctx context.Context, txID string) error {
	_, err := q.db.ExecContext(ctx, deletePartialPayment, txID)
	return err
}

const listPartialPayments = `
SELECT transaction_id, paid_amount_cents FROM partial_payments WHERE owner_id = ?
`

func (q *Queries) ListPartialPayments(ctx context.Context, ownerID string) (map[string]int64, error) {
	rows, err := q.db.QueryContext(ctx, listPartialPayments, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var id string
		var cents int64
		if err := rows.Scan(&id, &cents); err != nil {
			return nil, err
		}
		out[id] = cents
	}
	return out, rows.Err()
}

const listTransactions = `
SELECT id, owner_id, category, sub_category, amount_cents, beneficiary, timestamp, paid_status, export_status, created_at
FROM transactions
WHERE owner_id = ?
  AND (? = '' OR category = ?)
  AND (? = '' OR sub_category = ?)
  AND (? = '' OR paid_status = ?)
  AND (? = '' OR timestamp >= ?)
  AND (? = '' OR timestamp <= ?)
ORDER BY timestamp, created_at
`

type ListTransactionsParams struct {
	OwnerID     string
	Category    string
	SubCategory string
	PaidStatus  string
	From        string
	To          string
}

func (q *Queries) ListTransactions(ctx context.Context, p ListTransactionsParams) ([]TransactionRow, error) {
	rows, err := q.db.QueryContext(ctx, listTransactions,
		p.OwnerID,
		p.Category, p.Category,
		p.SubCategory, p.SubCategory,
		p.PaidStatus, p.PaidStatus,
		p.From, p.From,
		p.To, p.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransactionRows(rows)
}

const deleteUserTransactions = `
DELETE FROM transactions WHERE owner_id = ?
`

func (q *Queries) DeleteUserTransactions(ctx context.Context, ownerID string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteUserTransactions, ownerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteUserPartials = `
DELETE FROM partial_payments WHERE owner_id = ?
`

func (q *Queries) DeleteUserPartials(ctx context.Context, ownerID string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteUserPartials, ownerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const resetTotals = `
UPDATE totals SET total_cents = 0, giving_total_cents = 0 WHERE owner_id = ?
`

func (q *Queries) ResetTotals(ctx context.Context, ownerID string) error {
	_, err := q.db.ExecContext(ctx, resetTotals, ownerID)
	return err
}

const markTransactionExported = `
UPDATE transactions SET export_status = 'exported' WHERE id = ?
`

func (q *Queries) MarkTransactionExported(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, markTransactionExported, id)
	return err
}

const markTransactionExportError = `
UPDATE transactions SET export_status = 'error' WHERE id = ?
`

func (q *Queries) MarkTransactionExportError(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, markTransactionExportError, id)
	return err
}

const listExportPending = `
SELECT id, owner_id, category, sub_category, amount_cents, beneficiary, timestamp, paid_status, export_status, created_at
FROM transactions WHERE export_status = 'pending' ORDER BY created_at LIMIT ?
`

func (q *Queries) ListExportPending(ctx context.Context, limit int64) ([]TransactionRow, error) {
	rows, err := q.db.QueryContext(ctx, listExportPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransactionRows(rows)
}

const createUser = `
INSERT INTO users (id, email, password_hash) VALUES (?, ?, ?)
`

func (q *Queries) CreateUser(ctx context.Context, id, email string, passwordHash []byte) error {
	_, err := q.db.ExecContext(ctx, createUser, id, email, passwordHash)
	return err
}

const getUserByEmail = `
SELECT id, email, password_hash, created_at FROM users WHERE email = ?
`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (UserRow, error) {
	var u UserRow
	err := q.db.QueryRowContext(ctx, getUserByEmail, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	return u, err
}

func scanTransactionRows(rows *sql.Rows) ([]TransactionRow, error) {
	var out []TransactionRow
	for rows.Next() {
		var r TransactionRow
		if err := rows.Scan(&r.ID, &r.OwnerID, &r.Category, &r.SubCategory, &r.AmountCents,
			&r.Beneficiary, &r.Timestamp, &r.PaidStatus, &r.ExportStatus, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
