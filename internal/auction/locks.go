package auction

import "sync"

// LockTable hands out one mutex per auction. Bid admission and sweeper
// resolution share the same table so a bid can never be admitted while the
// auction is being resolved, and two bids on one auction never race each
// other. Different auctions lock independently.
type LockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLockTable creates an empty lock table.
func NewLockTable() *LockTable {
	return &LockTable{locks: make(map[string]*sync.Mutex)}
}

// Acquire returns the mutex for the given auction, creating it on first use.
// The caller locks and unlocks it.
func (t *LockTable) Acquire(auctionID string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	lock, ok := t.locks[auctionID]
	if !ok {
		lock = &sync.Mutex{}
		t.locks[auctionID] = lock
	}
	return lock
}
