package auction

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/bidhaus/auction-engine/internal/cache"
	"github.com/bidhaus/auction-engine/internal/clock"
	"github.com/bidhaus/auction-engine/internal/database"
	"github.com/bidhaus/auction-engine/pkg/errors"
	"github.com/bidhaus/auction-engine/pkg/types"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Bidder validates and commits bids. Admission for a single auction is
// serialized through the shared lock table; admissions on different
// auctions run in parallel.
type Bidder struct {
	db     database.Service
	cache  cache.HighestBid
	fanout Fanout
	locks  *LockTable
	clock  clock.Clock
}

// NewBidder creates a bid admission service.
func NewBidder(db database.Service, c cache.HighestBid, fanout Fanout, locks *LockTable, clk clock.Clock) *Bidder {
	return &Bidder{db: db, cache: c, fanout: fanout, locks: locks, clock: clk}
}

// admitted carries the committed state needed for fanout after the
// per-auction lock has been released.
type admitted struct {
	auction      types.Auction
	bid          types.Bid
	prevLeaderID string
}

// AdmitBid validates the bid against the auction window and the increment
// rule, commits it, and fans out the resulting events. Failures are typed
// AppErrors and produce no side effects. Fanout happens after the
// per-auction lock is released so connection I/O never extends the critical
// section.
func (b *Bidder) AdmitBid(ctx context.Context, auctionID, bidderID string, amount decimal.Decimal) (types.Bid, error) {
	lock := b.locks.Acquire(auctionID)
	lock.Lock()
	result, err := b.admit(ctx, auctionID, bidderID, amount)
	lock.Unlock()
	if err != nil {
		return types.Bid{}, err
	}

	b.publish(ctx, result)
	return result.bid, nil
}

// admit runs the validation chain and the ordered commit (store write, then
// cache write). Caller holds the auction lock.
func (b *Bidder) admit(ctx context.Context, auctionID, bidderID string, amount decimal.Decimal) (admitted, error) {
	auction, err := b.db.GetAuctionByID(ctx, auctionID)
	if stderrors.Is(err, database.ErrNotFound) {
		return admitted{}, errors.New(errors.ErrAuctionNotFound, "Auction not found")
	}
	if err != nil {
		return admitted{}, errors.WrapCode(errors.ErrStoreUnavailable, err, "Record store unavailable, try again")
	}

	now := b.clock.Now()
	if !auction.ActiveAt(now) {
		return admitted{}, errors.New(errors.ErrAuctionNotActive, "Auction is not active")
	}

	entry, cached, err := b.cache.Get(ctx, auctionID)
	if err != nil {
		return admitted{}, errors.WrapCode(errors.ErrCacheUnavailable, err, "Bid cache unavailable, try again")
	}

	// The cache is a hint; the record store is the authority. The store
	// write precedes the cache write, so a diverging entry is stale-low and
	// the store value wins.
	leading := auction.CurrentPrice
	prevLeaderID := ""
	if auction.WinnerID != nil {
		prevLeaderID = *auction.WinnerID
	}
	if cached && entry.BidderID != "" && entry.Amount.Equal(leading) {
		prevLeaderID = entry.BidderID
	}

	minimum := leading.Add(auction.BidIncrement)
	if amount.LessThan(minimum) {
		return admitted{}, errors.Newf(errors.ErrBidTooLow, "Bid must be at least %s", minimum.StringFixed(2))
	}

	bid := types.Bid{
		ID:        uuid.NewString(),
		AuctionID: auctionID,
		BidderID:  bidderID,
		Amount:    amount,
		CreatedAt: now,
	}
	bid, err = b.db.AppendBid(ctx, bid)
	if err != nil {
		return admitted{}, errors.WrapCode(errors.ErrStoreUnavailable, err, "Record store unavailable, try again")
	}

	err = b.db.UpdateAuctionState(ctx, auctionID, types.AuctionStateUpdate{
		CurrentPrice: &amount,
		WinnerID:     &bidderID,
	})
	if err != nil {
		return admitted{}, errors.WrapCode(errors.ErrStoreUnavailable, err, "Record store unavailable, try again")
	}

	// The bid is committed at this point. A failed cache write leaves the
	// cache stale-low, which the store reconciliation above corrects on the
	// next admission, so it does not fail the bid.
	if err := b.cache.Set(ctx, auctionID, cache.Entry{Amount: amount, BidderID: bidderID}); err != nil {
		log.Warnf("Failed to update highest-bid cache for auction %s: %v", auctionID, err)
	}

	auction.CurrentPrice = amount
	auction.WinnerID = &bidderID
	return admitted{auction: auction, bid: bid, prevLeaderID: prevLeaderID}, nil
}

// publish fans out the new-bid events. Called outside the auction lock.
func (b *Bidder) publish(ctx context.Context, result admitted) {
	auction := result.auction
	bid := result.bid

	bidderName := bid.BidderID
	if user, err := b.db.GetUserByID(ctx, bid.BidderID); err == nil {
		bidderName = user.Username
	}

	b.fanout.PublishToAuction(auction.ID, types.NewBidEvent{
		Type:       types.EventNewBid,
		AuctionID:  auction.ID,
		Amount:     bid.Amount,
		BidderName: bidderName,
	})

	b.fanout.PublishToUser(auction.SellerID, types.NotificationEvent{
		Type:        types.EventNotification,
		RecipientID: auction.SellerID,
		Message: fmt.Sprintf("New bid of %s on your auction %q by %s",
			bid.Amount.StringFixed(2), auction.ItemName, bidderName),
	})

	if result.prevLeaderID != "" && result.prevLeaderID != bid.BidderID {
		b.fanout.PublishToUser(result.prevLeaderID, types.NotificationEvent{
			Type:        types.EventNotification,
			RecipientID: result.prevLeaderID,
			Message: fmt.Sprintf("You have been outbid on %q. New highest bid: %s",
				auction.ItemName, bid.Amount.StringFixed(2)),
		})
	}

	log.Debugf("Bid %s admitted on auction %s: %s by %s",
		bid.ID, auction.ID, bid.Amount.StringFixed(2), bid.BidderID)
}
