// Package memory implements the ledger store in process memory. It is the
// default backend and the double the service tests run against; semantics
// mirror the SQLite backend, including atomic delta application and
// watcher fan-out.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"tally/internal/core"
	"tally/internal/ledger"
)

type userState struct {
	order    []string
	txs      map[string]core.Transaction
	partials map[string]core.Money
	totals   core.Totals
}

type Store struct {
	mu       sync.Mutex
	users    map[string]*userState
	owners   map[string]string // transaction id -> owner id
	currency string

	nextSub        int
	pendingWatches map[string]map[int]func(ledger.PendingUpdate)
	totalsWatches  map[string]map[int]func(core.Totals)
}

var _ ledger.Store = (*Store)(nil)

func New(defaultCurrency string) *Store {
	return &Store{
		users:          make(map[string]*userState),
		owners:         make(map[string]string),
		currency:       defaultCurrency,
		pendingWatches: make(map[string]map[int]func(ledger.PendingUpdate)),
		totalsWatches:  make(map[string]map[int]func(core.Totals)),
	}
}

// user returns the state for userID, creating it on first use. Caller holds mu.
func (s *Store) user(userID string) *userState {
	u, ok := s.users[userID]
	if !ok {
		u = &userState{
			txs:      make(map[string]core.Transaction),
			partials: make(map[string]core.Money),
			totals:   core.Totals{OwnerID: userID, Currency: s.currency},
		}
		s.users[userID] = u
	}
	return u
}

// applyDelta mutates the totals record in place. Caller holds mu, so the
// read and write are one atomic step.
func (u *userState) applyDelta(d core.BalanceDelta) {
	u.totals.Total = u.totals.Total.Add(d.Total)
	u.totals.GivingTotal = u.totals.GivingTotal.Add(d.Giving)
}

func (s *Store) CreateTransaction(_ context.Context, tx core.Transaction, delta core.BalanceDelta) (string, error) {
	s.mu.Lock()
	u := s.user(tx.OwnerID)
	tx.ID = uuid.NewString()
	u.txs[tx.ID] = tx
	u.order = append(u.order, tx.ID)
	s.owners[tx.ID] = tx.OwnerID
	u.applyDelta(delta)
	s.mu.Unlock()

	s.notifyPending(tx.OwnerID)
	s.notifyTotals(tx.OwnerID)
	return tx.ID, nil
}

// lookup resolves a transaction, distinguishing a missing id from one owned
// by someone else. Caller holds mu.
func (s *Store) lookup(userID, id string) (core.Transaction, error) {
	owner, ok := s.owners[id]
	if !ok {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	if owner != userID {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrAuth)
	}
	return s.users[owner].txs[id], nil
}

func (s *Store) GetTransaction(_ context.Context, userID, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(userID, id)
}

func (s *Store) ListTransactions(_ context.Context, userID string, f ledger.Filter) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.user(userID)
	var out []core.Transaction
	for _, id := range u.order {
		tx := u.txs[id]
		if f.Category != "" && tx.Category != f.Category {
			continue
		}
		if f.SubCategory != "" && tx.SubCategory != f.SubCategory {
			continue
		}
		if f.PaidStatus != core.PaidUnset && tx.PaidStatus != f.PaidStatus {
			continue
		}
		if f.Window != nil && !f.Window.Contains(tx.Timestamp) {
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}

func (s *Store) PartialPaid(_ context.Context, userID, txID string) (core.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.lookup(userID, txID); err != nil {
		return core.Money{}, err
	}
	return s.user(userID).partials[txID], nil
}

func (s *Store) ApplyPartialPayment(_ context.Context, userID, txID string, newPaid core.Money, delta core.BalanceDelta, settle bool) error {
	s.mu.Lock()
	tx, err := s.lookup(userID, txID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	u := s.user(userID)
	if settle {
		tx.PaidStatus = core.Paid
		u.txs[txID] = tx
		delete(u.partials, txID)
	} else {
		u.partials[txID] = newPaid
	}
	u.applyDelta(delta)
	s.mu.Unlock()

	s.notifyPending(userID)
	s.notifyTotals(userID)
	return nil
}

func (s *Store) SettleTransaction(_ context.Context, userID, txID string, delta core.BalanceDelta) error {
	s.mu.Lock()
	tx, err := s.lookup(userID, txID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	u := s.user(userID)
	if tx.PaidStatus == core.Paid {
		// Already settled; applying the delta again would double-deduct.
		s.mu.Unlock()
		return nil
	}
	tx.PaidStatus = core.Paid
	u.txs[txID] = tx
	delete(u.partials, txID)
	u.applyDelta(delta)
	s.mu.Unlock()

	s.notifyPending(userID)
	s.notifyTotals(userID)
	return nil
}

func (s *Store) Totals(_ context.Context, userID string) (core.Totals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user(userID).totals, nil
}

func (s *Store) SetCurrency(_ context.Context, userID, currency string) error {
	s.mu.Lock()
	u := s.user(userID)
	u.totals.Currency = currency
	s.mu.Unlock()

	s.notifyTotals(userID)
	return nil
}

func (s *Store) ListPartials(_ context.Context, userID string) (map[string]core.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.user(userID)
	out := make(map[string]core.Money, len(u.partials))
	for id, paid := range u.partials {
		out[id] = paid
	}
	return out, nil
}

func (s *Store) WipeAll(_ context.Context, userID string) (ledger.WipeReport, error) {
	s.mu.Lock()
	u := s.user(userID)
	report := ledger.WipeReport{
		TransactionsWiped: len(u.txs),
		PartialsWiped:     len(u.partials),
	}
	for id := range u.txs {
		delete(s.owners, id)
	}
	u.order = nil
	u.txs = make(map[string]core.Transaction)
	u.partials = make(map[string]core.Money)
	u.totals = core.Totals{OwnerID: userID, Currency: u.totals.Currency}
	s.mu.Unlock()

	s.notifyPending(userID)
	s.notifyTotals(userID)
	return report, nil
}

func (s *Store) WatchPending(_ context.Context, userID string, fn func(ledger.PendingUpdate)) (ledger.CancelFunc, error) {
	s.mu.Lock()
	s.nextSub++
	id := s.nextSub
	if s.pendingWatches[userID] == nil {
		s.pendingWatches[userID] = make(map[int]func(ledger.PendingUpdate))
	}
	s.pendingWatches[userID][id] = fn
	snapshot := s.pendingSnapshot(userID)
	s.mu.Unlock()

	fn(snapshot)
	return func() {
		s.mu.Lock()
		delete(s.pendingWatches[userID], id)
		s.mu.Unlock()
	}, nil
}

func (s *Store) WatchTotals(_ context.Context, userID string, fn func(core.Totals)) (ledger.CancelFunc, error) {
	s.mu.Lock()
	s.nextSub++
	id := s.nextSub
	if s.totalsWatches[userID] == nil {
		s.totalsWatches[userID] = make(map[int]func(core.Totals))
	}
	s.totalsWatches[userID][id] = fn
	snapshot := s.user(userID).totals
	s.mu.Unlock()

	fn(snapshot)
	return func() {
		s.mu.Lock()
		delete(s.totalsWatches[userID], id)
		s.mu.Unlock()
	}, nil
}

// pendingSnapshot builds the watcher payload. Caller holds mu.
func (s *Store) pendingSnapshot(userID string) ledger.PendingUpdate {
	u := s.user(userID)
	update := ledger.PendingUpdate{Partials: make(map[string]core.Money, len(u.partials))}
	for _, id := range u.order {
		tx := u.txs[id]
		if tx.Category == core.Expense && tx.PaidStatus == core.Unpaid {
			update.Transactions = append(update.Transactions, tx)
		}
	}
	for id, paid := range u.partials {
		update.Partials[id] = paid
	}
	return update
}

func (s *Store) notifyPending(userID string) {
	s.mu.Lock()
	fns := make([]func(ledger.PendingUpdate), 0, len(s.pendingWatches[userID]))
	for _, fn := range s.pendingWatches[userID] {
		fns = append(fns, fn)
	}
	snapshot := s.pendingSnapshot(userID)
	s.mu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}

func (s *Store) notifyTotals(userID string) {
	s.mu.Lock()
	fns := make([]func(core.Totals), 0, len(s.totalsWatches[userID]))
	for _, fn := range s.totalsWatches[userID] {
		fns = append(fns, fn)
	}
	snapshot := s.user(userID).totals
	s.mu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}
