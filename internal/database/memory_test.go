package database

import (
	"context"
	"testing"
	"time"

	"github.com/bidhaus/auction-engine/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAuction(t *testing.T, m *Memory) types.Auction {
	t.Helper()
	seller := m.AddUser(types.User{Username: "seller", Email: "seller@example.com"})
	auction, err := m.CreateAuction(context.Background(), types.Auction{
		SellerID:      seller.ID,
		ItemName:      "vintage radio",
		StartingPrice: decimal.NewFromInt(100),
		BidIncrement:  decimal.NewFromInt(10),
		GoLiveTime:    time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Duration:      types.Duration{Hours: 1},
	})
	require.NoError(t, err)
	return auction
}

func TestMemoryUserLookups(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	alice := m.AddUser(types.User{Username: "alice", Email: "alice@example.com"})

	byEmail, err := m.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byEmail.ID)

	byID, err := m.GetUserByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)

	_, err = m.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.GetUserByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryCreateAuctionNormalizesState(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	winner := "smuggled"
	auction, err := m.CreateAuction(ctx, types.Auction{
		ItemName:      "lamp",
		StartingPrice: decimal.NewFromInt(50),
		CurrentPrice:  decimal.NewFromInt(999),
		WinnerID:      &winner,
		IsResolved:    true,
	})
	require.NoError(t, err)

	assert.True(t, auction.CurrentPrice.Equal(decimal.NewFromInt(50)), "current price starts at the starting price")
	assert.Nil(t, auction.WinnerID)
	assert.False(t, auction.IsResolved)
	assert.NotEmpty(t, auction.ID)
}

func TestMemoryUpdateAuctionState(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	auction := seedAuction(t, m)

	price := decimal.NewFromInt(110)
	winner := "user-alice"
	require.NoError(t, m.UpdateAuctionState(ctx, auction.ID, types.AuctionStateUpdate{
		CurrentPrice: &price,
		WinnerID:     &winner,
	}))

	stored, err := m.GetAuctionByID(ctx, auction.ID)
	require.NoError(t, err)
	assert.True(t, stored.CurrentPrice.Equal(price))
	require.NotNil(t, stored.WinnerID)
	assert.Equal(t, winner, *stored.WinnerID)
	assert.False(t, stored.IsResolved)

	err = m.UpdateAuctionState(ctx, "missing", types.AuctionStateUpdate{CurrentPrice: &price})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryResolutionGuard(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	auction := seedAuction(t, m)

	resolved := true
	require.NoError(t, m.UpdateAuctionState(ctx, auction.ID, types.AuctionStateUpdate{IsResolved: &resolved}))

	// A second resolution attempt is refused, so callers can tell a lost
	// race from a missing record.
	err := m.UpdateAuctionState(ctx, auction.ID, types.AuctionStateUpdate{IsResolved: &resolved})
	assert.ErrorIs(t, err, ErrAlreadyResolved)
}

func TestMemoryListLiveAuctions(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	running := seedAuction(t, m)
	ended := seedAuction(t, m)

	resolved := true
	require.NoError(t, m.UpdateAuctionState(ctx, ended.ID, types.AuctionStateUpdate{IsResolved: &resolved}))

	live, err := m.ListLiveAuctions(ctx)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, running.ID, live[0].ID)
}

func TestMemoryBidsKeepArrivalOrder(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	auction := seedAuction(t, m)

	at := time.Date(2025, 3, 1, 12, 5, 0, 0, time.UTC)
	for i, amount := range []int64{110, 120, 130} {
		_, err := m.AppendBid(ctx, types.Bid{
			AuctionID: auction.ID,
			BidderID:  "user-alice",
			Amount:    decimal.NewFromInt(amount),
			CreatedAt: at.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	bids, err := m.ListBids(ctx, auction.ID)
	require.NoError(t, err)
	require.Len(t, bids, 3)
	for i, want := range []int64{110, 120, 130} {
		assert.True(t, bids[i].Amount.Equal(decimal.NewFromInt(want)))
		assert.NotEmpty(t, bids[i].ID)
	}

	_, err = m.AppendBid(ctx, types.Bid{AuctionID: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
}
