// Package backend selects and wires a ledger store implementation from
// configuration.
package backend

import (
	"tally/internal/auth"
	"tally/internal/ledger"
)

// Type names a store implementation.
type Type string

const (
	MemoryBackend Type = "memory"
	SQLiteBackend Type = "sqlite"
)

func (t Type) String() string {
	return string(t)
}

func (t Type) IsValid() bool {
	switch t {
	case MemoryBackend, SQLiteBackend:
		return true
	default:
		return false
	}
}

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// Result bundles everything a binary needs from the selected backend.
type Result struct {
	Store   ledger.Store
	Users   auth.UserStore
	Cleanup CleanupFunc
}
