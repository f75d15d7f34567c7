package subscription

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and single-process runs
// without a database. All mutations hold one lock, which gives the same
// read-modify-write atomicity the SQL store gets from conditional updates.
type MemoryStore struct {
	mu   sync.Mutex
	subs map[string]*Subscription
}

// NewMemoryStore creates an empty in-memory subscription store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subs: make(map[string]*Subscription)}
}

// Put inserts or replaces a subscription record.
func (s *MemoryStore) Put(sub *Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sub
	s.subs[normalizeWallet(sub.WalletAddress)] = &cp
}

func (s *MemoryStore) GetByWallet(ctx context.Context, wallet string) (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[normalizeWallet(wallet)]
	if !ok {
		return nil, nil
	}
	cp := *sub
	return &cp, nil
}

func (s *MemoryStore) ResetDaily(ctx context.Context, wallet string, resetAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[normalizeWallet(wallet)]
	if !ok {
		return nil
	}
	// Only apply when the stored boundary is still in the past, so two
	// concurrent checks cannot push the boundary forward twice.
	if resetAt.After(sub.DailyTradesResetAt) {
		sub.DailyTradesUsed = 0
		sub.DailyTradesResetAt = resetAt
		sub.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (s *MemoryStore) IncrementTrades(ctx context.Context, wallet string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[normalizeWallet(wallet)]
	if !ok {
		return nil
	}
	sub.DailyTradesUsed++
	sub.TotalTradesUsed++
	sub.UpdatedAt = time.Now().UTC()
	return nil
}

func normalizeWallet(wallet string) string {
	return strings.ToLower(strings.TrimSpace(wallet))
}
