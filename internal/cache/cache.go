// Package cache holds the highest-bid accelerant consulted on every bid
// admission. The record store stays authoritative: because the store write
// precedes the cache write, a cache entry can only ever be stale-low, and
// admission reconciles against the store before deciding.
package cache

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// Entry is the cached leader of one auction.
type Entry struct {
	Amount   decimal.Decimal
	BidderID string
}

// HighestBid is the cache contract. Get reports ok=false on a miss.
type HighestBid interface {
	Get(ctx context.Context, auctionID string) (Entry, bool, error)
	Set(ctx context.Context, auctionID string, entry Entry) error
}

// Memory is a mutex-guarded in-process HighestBid cache.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemory creates an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]Entry)}
}

func (m *Memory) Get(_ context.Context, auctionID string) (Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[auctionID]
	return entry, ok, nil
}

func (m *Memory) Set(_ context.Context, auctionID string, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[auctionID] = entry
	return nil
}
