package auction

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/bidhaus/auction-engine/internal/clock"
	"github.com/bidhaus/auction-engine/internal/database"
	"github.com/bidhaus/auction-engine/pkg/types"
	"github.com/charmbracelet/log"
)

// watchEntry is the sweeper's cached view of one running auction.
type watchEntry struct {
	goLive   time.Time
	end      time.Time
	itemName string
	hasBids  bool
}

// Sweeper detects auction expiry and resolves winners. It keeps a working
// set of running auctions, rebuilt from the record store every refresh
// interval, and scans it for expiries on the faster sweep interval. Exactly
// one Sweeper runs per engine; resolution is idempotent so a restart can
// never double-resolve.
type Sweeper struct {
	db     database.Service
	fanout Fanout
	locks  *LockTable
	clock  clock.Clock

	refreshInterval time.Duration
	sweepInterval   time.Duration

	mu    sync.Mutex
	watch map[string]watchEntry

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper creates a lifecycle sweeper. The lock table must be the one
// used by the Bidder so resolution and admission exclude each other.
func NewSweeper(db database.Service, fanout Fanout, locks *LockTable, clk clock.Clock, refreshInterval, sweepInterval time.Duration) *Sweeper {
	return &Sweeper{
		db:              db,
		fanout:          fanout,
		locks:           locks,
		clock:           clk,
		refreshInterval: refreshInterval,
		sweepInterval:   sweepInterval,
		watch:           make(map[string]watchEntry),
	}
}

// Start launches the periodic refresh/sweep loop in a goroutine.
func (s *Sweeper) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.run(ctx)
	log.Infof("Sweeper started (refresh %s, sweep %s)", s.refreshInterval, s.sweepInterval)
}

// Stop cancels the loop and waits for it to drain.
func (s *Sweeper) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)

	if err := s.Refresh(ctx); err != nil {
		log.Error("Error refreshing auction working set: ", err)
	}

	refresh := time.NewTicker(s.refreshInterval)
	defer refresh.Stop()
	sweep := time.NewTicker(s.sweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-refresh.C:
			if err := s.Refresh(ctx); err != nil {
				log.Error("Error refreshing auction working set: ", err)
			}
		case <-sweep.C:
			s.Sweep(ctx)
		}
	}
}

// Refresh rebuilds the working set from the record store, keeping only
// auctions whose window has opened and that are not resolved.
func (s *Sweeper) Refresh(ctx context.Context) error {
	auctions, err := s.db.ListLiveAuctions(ctx)
	if err != nil {
		return fmt.Errorf("listing live auctions: %w", err)
	}

	now := s.clock.Now()
	next := make(map[string]watchEntry)
	for _, auction := range auctions {
		if auction.IsResolved || now.Before(auction.GoLiveTime) {
			continue
		}
		next[auction.ID] = watchEntry{
			goLive:   auction.GoLiveTime,
			end:      auction.EndTime(),
			itemName: auction.ItemName,
			hasBids:  auction.WinnerID != nil,
		}
	}

	s.mu.Lock()
	s.watch = next
	size := len(next)
	s.mu.Unlock()

	log.Debugf("Auction working set refreshed: %d running", size)
	return nil
}

// Sweep runs one expiry pass over the working set. Failures on one auction
// are logged and retried on the next pass; they never abort the pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := s.clock.Now()

	s.mu.Lock()
	var due []string
	for id, entry := range s.watch {
		if !now.Before(entry.end) {
			due = append(due, id)
		}
	}
	s.mu.Unlock()

	for _, id := range due {
		if err := s.resolve(ctx, id); err != nil {
			log.Errorf("Error resolving auction %s: %v", id, err)
		}
	}
}

// WatchCount reports the size of the working set.
func (s *Sweeper) WatchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watch)
}

func (s *Sweeper) forget(auctionID string) {
	s.mu.Lock()
	delete(s.watch, auctionID)
	s.mu.Unlock()
}

// resolve marks one expired auction resolved and fans out the end events.
// It re-reads the authoritative record under the auction's admission lock;
// the working-set snapshot is only a trigger and is never trusted for bid
// data. An auction found already resolved is dropped without re-resolving.
func (s *Sweeper) resolve(ctx context.Context, auctionID string) error {
	lock := s.locks.Acquire(auctionID)
	lock.Lock()
	auction, winner, err := s.commitResolution(ctx, auctionID)
	lock.Unlock()
	if err != nil || auction == nil {
		return err
	}

	s.announce(ctx, *auction, winner)
	return nil
}

// commitResolution performs the store-side half of resolution. It returns a
// nil auction when there is nothing to announce (already resolved or gone).
// Caller holds the auction lock.
func (s *Sweeper) commitResolution(ctx context.Context, auctionID string) (*types.Auction, *types.Bid, error) {
	auction, err := s.db.GetAuctionByID(ctx, auctionID)
	if stderrors.Is(err, database.ErrNotFound) {
		s.forget(auctionID)
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reading auction: %w", err)
	}
	if auction.IsResolved {
		s.forget(auctionID)
		return nil, nil, nil
	}

	bids, err := s.db.ListBids(ctx, auctionID)
	if err != nil {
		return nil, nil, fmt.Errorf("listing bids: %w", err)
	}
	winner := pickWinner(bids)

	resolved := true
	upd := types.AuctionStateUpdate{IsResolved: &resolved}
	if winner != nil {
		upd.WinnerID = &winner.BidderID
	}
	err = s.db.UpdateAuctionState(ctx, auctionID, upd)
	if stderrors.Is(err, database.ErrAlreadyResolved) {
		s.forget(auctionID)
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("marking auction resolved: %w", err)
	}

	s.forget(auctionID)
	auction.IsResolved = true
	if winner != nil {
		auction.WinnerID = &winner.BidderID
	}
	return &auction, winner, nil
}

// announce fans out the end-of-auction events. Called outside the auction
// lock; delivery is at-least-once for this event type.
func (s *Sweeper) announce(ctx context.Context, auction types.Auction, winner *types.Bid) {
	event := types.AuctionEndedEvent{
		Type:      types.EventAuctionEnded,
		AuctionID: auction.ID,
		Message:   fmt.Sprintf("Auction for %q has ended", auction.ItemName),
	}

	if winner == nil {
		log.Infof("Auction %s resolved with no bids", auction.ID)
		s.fanout.PublishToAuction(auction.ID, event)
		return
	}

	winnerName := winner.BidderID
	if user, err := s.db.GetUserByID(ctx, winner.BidderID); err == nil {
		winnerName = user.Username
	}
	event.WinnerID = &winner.BidderID
	event.WinnerName = winnerName
	event.Message = fmt.Sprintf("Auction for %q has ended. Winner: %s at %s",
		auction.ItemName, winnerName, winner.Amount.StringFixed(2))
	s.fanout.PublishToAuction(auction.ID, event)

	s.fanout.PublishToUser(winner.BidderID, types.NotificationEvent{
		Type:        types.EventNotification,
		RecipientID: winner.BidderID,
		Message: fmt.Sprintf("You won the auction for %q with a bid of %s",
			auction.ItemName, winner.Amount.StringFixed(2)),
	})

	log.Infof("Auction %s resolved: winner %s at %s",
		auction.ID, winner.BidderID, winner.Amount.StringFixed(2))
}

// pickWinner selects the bid with the highest amount; equal amounts resolve
// to the earliest timestamp. Returns nil when there are no bids.
func pickWinner(bids []types.Bid) *types.Bid {
	if len(bids) == 0 {
		return nil
	}
	winning := bids[0]
	for _, bid := range bids[1:] {
		if bid.Amount.GreaterThan(winning.Amount) ||
			(bid.Amount.Equal(winning.Amount) && bid.CreatedAt.Before(winning.CreatedAt)) {
			winning = bid
		}
	}
	return &winning
}
