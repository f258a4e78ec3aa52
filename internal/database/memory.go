package database

import (
	"context"
	"sync"

	"github.com/bidhaus/auction-engine/pkg/types"
	"github.com/google/uuid"
)

// Memory is a concurrency-safe in-memory Service. It backs the engine in
// tests and small single-process deployments.
type Memory struct {
	mu       sync.RWMutex
	users    map[string]types.User
	auctions map[string]types.Auction
	bids     map[string][]types.Bid // key: auctionID, arrival order
}

// NewMemory creates an empty in-memory record store.
func NewMemory() *Memory {
	return &Memory{
		users:    make(map[string]types.User),
		auctions: make(map[string]types.Auction),
		bids:     make(map[string][]types.Bid),
	}
}

func (m *Memory) Health() map[string]string {
	return map[string]string{"status": "up", "message": "in-memory store"}
}

func (m *Memory) Close() error { return nil }

// AddUser seeds a user record.
func (m *Memory) AddUser(user types.User) types.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	m.users[user.ID] = user
	return user
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (types.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, ErrNotFound
}

func (m *Memory) GetUserByID(_ context.Context, id string) (types.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[id]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

func (m *Memory) CreateAuction(_ context.Context, auction types.Auction) (types.Auction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if auction.ID == "" {
		auction.ID = uuid.NewString()
	}
	auction.CurrentPrice = auction.StartingPrice
	auction.WinnerID = nil
	auction.IsResolved = false
	m.auctions[auction.ID] = auction
	return auction, nil
}

func (m *Memory) GetAuctionByID(_ context.Context, auctionID string) (types.Auction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	auction, ok := m.auctions[auctionID]
	if !ok {
		return types.Auction{}, ErrNotFound
	}
	return auction, nil
}

func (m *Memory) ListLiveAuctions(_ context.Context) ([]types.Auction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var live []types.Auction
	for _, auction := range m.auctions {
		if !auction.IsResolved {
			live = append(live, auction)
		}
	}
	return live, nil
}

func (m *Memory) UpdateAuctionState(_ context.Context, auctionID string, upd types.AuctionStateUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	auction, ok := m.auctions[auctionID]
	if !ok {
		return ErrNotFound
	}
	if upd.IsResolved != nil && *upd.IsResolved && auction.IsResolved {
		return ErrAlreadyResolved
	}
	if upd.CurrentPrice != nil {
		auction.CurrentPrice = *upd.CurrentPrice
	}
	if upd.WinnerID != nil {
		winnerID := *upd.WinnerID
		auction.WinnerID = &winnerID
	}
	if upd.IsResolved != nil {
		auction.IsResolved = *upd.IsResolved
	}
	m.auctions[auctionID] = auction
	return nil
}

func (m *Memory) AppendBid(_ context.Context, bid types.Bid) (types.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.auctions[bid.AuctionID]; !ok {
		return types.Bid{}, ErrNotFound
	}
	if bid.ID == "" {
		bid.ID = uuid.NewString()
	}
	m.bids[bid.AuctionID] = append(m.bids[bid.AuctionID], bid)
	return bid, nil
}

func (m *Memory) ListBids(_ context.Context, auctionID string) ([]types.Bid, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]types.Bid(nil), m.bids[auctionID]...), nil
}
