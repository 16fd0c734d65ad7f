package memory

import (
	"context"
	"fmt"
	"sync"

	"tally/internal/core"
)

type userRecord struct {
	id   string
	hash []byte
}

// UserStore is the in-memory account store paired with Store for the
// memory backend.
type UserStore struct {
	mu      sync.Mutex
	byEmail map[string]userRecord
}

func NewUserStore() *UserStore {
	return &UserStore{byEmail: make(map[string]userRecord)}
}

func (s *UserStore) CreateUser(_ context.Context, id, email string, passwordHash []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byEmail[email]; exists {
		return fmt.Errorf("email already registered: %w", core.ErrValidation)
	}
	s.byEmail[email] = userRecord{id: id, hash: passwordHash}
	return nil
}

func (s *UserStore) UserByEmail(_ context.Context, email string) (string, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byEmail[email]
	if !ok {
		return "", nil, fmt.Errorf("user %s: %w", email, core.ErrNotFound)
	}
	return rec.id, rec.hash, nil
}
