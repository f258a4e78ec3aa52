package auction

import (
	"context"
	"testing"
	"time"

	"github.com/bidhaus/auction-engine/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSweeperForFixture(f *engineFixture) *Sweeper {
	return NewSweeper(f.db, f.fanout, f.locks, f.clock, 30*time.Second, 5*time.Second)
}

func seedBid(t *testing.T, f *engineFixture, bidderID string, amount int64, at time.Time) types.Bid {
	t.Helper()
	bid, err := f.db.AppendBid(context.Background(), types.Bid{
		AuctionID: f.auction.ID,
		BidderID:  bidderID,
		Amount:    decimal.NewFromInt(amount),
		CreatedAt: at,
	})
	require.NoError(t, err)
	return bid
}

func TestRefreshTracksOnlyRunningAuctions(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	sweeper := newSweeperForFixture(f)

	// Second auction that has not gone live yet.
	_, err := f.db.CreateAuction(ctx, types.Auction{
		SellerID:      f.seller.ID,
		ItemName:      "typewriter",
		StartingPrice: decimal.NewFromInt(50),
		BidIncrement:  decimal.NewFromInt(5),
		GoLiveTime:    f.clock.Now().Add(24 * time.Hour),
		Duration:      types.Duration{Hours: 1},
	})
	require.NoError(t, err)

	require.NoError(t, sweeper.Refresh(ctx))
	assert.Equal(t, 1, sweeper.WatchCount(), "only the running auction is watched")
}

func TestSweepLeavesRunningAuctionsAlone(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	sweeper := newSweeperForFixture(f)

	f.clock.T = f.auction.GoLiveTime.Add(30 * time.Minute)
	require.NoError(t, sweeper.Refresh(ctx))
	sweeper.Sweep(ctx)

	stored, err := f.db.GetAuctionByID(ctx, f.auction.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsResolved)
	assert.Equal(t, 1, sweeper.WatchCount())
	assert.Empty(t, f.fanout.roomEvents[f.auction.ID])
}

func TestSweepResolvesExpiredAuctionWithTieBreak(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	sweeper := newSweeperForFixture(f)

	goLive := f.auction.GoLiveTime
	seedBid(t, f, f.alice.ID, 100, goLive.Add(1*time.Minute))
	tied := seedBid(t, f, f.bob.ID, 150, goLive.Add(2*time.Minute))
	seedBid(t, f, f.alice.ID, 150, goLive.Add(3*time.Minute))

	require.NoError(t, sweeper.Refresh(ctx))
	f.clock.T = f.auction.EndTime()
	sweeper.Sweep(ctx)

	stored, err := f.db.GetAuctionByID(ctx, f.auction.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsResolved)
	require.NotNil(t, stored.WinnerID)
	assert.Equal(t, tied.BidderID, *stored.WinnerID, "earliest timestamp breaks the amount tie")

	require.Len(t, f.fanout.roomEvents[f.auction.ID], 1)
	ended, ok := f.fanout.roomEvents[f.auction.ID][0].(types.AuctionEndedEvent)
	require.True(t, ok)
	assert.Equal(t, types.EventAuctionEnded, ended.Type)
	require.NotNil(t, ended.WinnerID)
	assert.Equal(t, f.bob.ID, *ended.WinnerID)
	assert.Equal(t, "bob", ended.WinnerName)

	won := f.fanout.userMessages(f.bob.ID)
	require.Len(t, won, 1)
	assert.Contains(t, won[0].Message, "You won")

	assert.Equal(t, 0, sweeper.WatchCount(), "resolved auctions leave the working set")
}

func TestSweepResolvesAuctionWithoutBids(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	sweeper := newSweeperForFixture(f)

	require.NoError(t, sweeper.Refresh(ctx))
	f.clock.T = f.auction.EndTime().Add(time.Second)
	sweeper.Sweep(ctx)

	stored, err := f.db.GetAuctionByID(ctx, f.auction.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsResolved)
	assert.Nil(t, stored.WinnerID)

	require.Len(t, f.fanout.roomEvents[f.auction.ID], 1)
	ended, ok := f.fanout.roomEvents[f.auction.ID][0].(types.AuctionEndedEvent)
	require.True(t, ok)
	assert.Nil(t, ended.WinnerID)
	assert.Empty(t, ended.WinnerName)
}

func TestResolutionIsIdempotent(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	sweeper := newSweeperForFixture(f)

	seedBid(t, f, f.alice.ID, 110, f.auction.GoLiveTime.Add(time.Minute))
	f.clock.T = f.auction.EndTime()

	require.NoError(t, sweeper.resolve(ctx, f.auction.ID))
	first, err := f.db.GetAuctionByID(ctx, f.auction.ID)
	require.NoError(t, err)

	// A second pass over the same auction must change nothing and emit
	// nothing.
	require.NoError(t, sweeper.resolve(ctx, f.auction.ID))
	second, err := f.db.GetAuctionByID(ctx, f.auction.ID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, f.fanout.roomEvents[f.auction.ID], 1)
	assert.Len(t, f.fanout.userMessages(f.alice.ID), 1)
}

func TestPickWinner(t *testing.T) {
	t1 := time.Date(2025, 3, 1, 12, 1, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)
	t3 := t2.Add(time.Minute)

	assert.Nil(t, pickWinner(nil))

	bids := []types.Bid{
		{BidderID: "u1", Amount: decimal.NewFromInt(100), CreatedAt: t1},
		{BidderID: "u2", Amount: decimal.NewFromInt(150), CreatedAt: t2},
		{BidderID: "u3", Amount: decimal.NewFromInt(150), CreatedAt: t3},
	}
	winner := pickWinner(bids)
	require.NotNil(t, winner)
	assert.Equal(t, "u2", winner.BidderID)
}

func TestAuctionLifecycleEndToEnd(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	sweeper := newSweeperForFixture(f)

	// starting_price=100, bid_increment=10, duration=1h, now=go_live.
	_, err := f.bidder.AdmitBid(ctx, f.auction.ID, f.alice.ID, decimal.NewFromInt(105))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "110.00")

	_, err = f.bidder.AdmitBid(ctx, f.auction.ID, f.alice.ID, decimal.NewFromInt(110))
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	_, err = f.bidder.AdmitBid(ctx, f.auction.ID, f.bob.ID, decimal.NewFromInt(125))
	require.NoError(t, err)
	require.Len(t, f.fanout.userMessages(f.alice.ID), 1, "previous leader is notified of the outbid")

	require.NoError(t, sweeper.Refresh(ctx))
	f.clock.T = f.auction.EndTime()
	sweeper.Sweep(ctx)

	stored, err := f.db.GetAuctionByID(ctx, f.auction.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsResolved)
	assert.True(t, stored.CurrentPrice.Equal(decimal.NewFromInt(125)))
	require.NotNil(t, stored.WinnerID)
	assert.Equal(t, f.bob.ID, *stored.WinnerID)

	// After resolution the auction no longer accepts bids.
	_, err = f.bidder.AdmitBid(ctx, f.auction.ID, f.alice.ID, decimal.NewFromInt(200))
	require.Error(t, err)
}
