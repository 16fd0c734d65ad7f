package storage

import (
	"sync"

	"tally/internal/core"
	"tally/internal/ledger"
)

// watchHub fans committed mutations out to in-process watchers. Callbacks
// run outside the hub lock so a slow subscriber cannot stall writers.
type watchHub struct {
	mu      sync.Mutex
	nextID  int
	pending map[string]map[int]func(ledger.PendingUpdate)
	totals  map[string]map[int]func(core.Totals)
}

func newWatchHub() *watchHub {
	return &watchHub{
		pending: make(map[string]map[int]func(ledger.PendingUpdate)),
		totals:  make(map[string]map[int]func(core.Totals)),
	}
}

func (h *watchHub) addPending(userID string, fn func(ledger.PendingUpdate)) ledger.CancelFunc {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	if h.pending[userID] == nil {
		h.pending[userID] = make(map[int]func(ledger.PendingUpdate))
	}
	h.pending[userID][id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.pending[userID], id)
	}
}

func (h *watchHub) addTotals(userID string, fn func(core.Totals)) ledger.CancelFunc {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	if h.totals[userID] == nil {
		h.totals[userID] = make(map[int]func(core.Totals))
	}
	h.totals[userID][id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.totals[userID], id)
	}
}

func (h *watchHub) hasPending(userID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending[userID]) > 0
}

func (h *watchHub) hasTotals(userID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.totals[userID]) > 0
}

func (h *watchHub) notifyPending(userID string, update ledger.PendingUpdate) {
	h.mu.Lock()
	fns := make([]func(ledger.PendingUpdate), 0, len(h.pending[userID]))
	for _, fn := range h.pending[userID] {
		fns = append(fns, fn)
	}
	h.mu.Unlock()
	for _, fn := range fns {
		fn(update)
	}
}

func (h *watchHub) notifyTotals(userID string, totals core.Totals) {
	h.mu.Lock()
	fns := make([]func(core.Totals), 0, len(h.totals[userID]))
	for _, fn := range h.totals[userID] {
		fns = append(fns, fn)
	}
	h.mu.Unlock()
	for _, fn := range fns {
		fn(totals)
	}
}
