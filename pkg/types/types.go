package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// Auction is the engine's view of one auction. The record is mutated by the
// bid admission path (append bid, raise current price) until resolution and
// exactly once more by the sweeper; after IsResolved is set it is immutable.
type Auction struct {
	ID            string          `json:"id"`
	SellerID      string          `json:"seller_id"`
	ItemName      string          `json:"item_name"`
	Description   string          `json:"description"`
	StartingPrice decimal.Decimal `json:"starting_price"`
	BidIncrement  decimal.Decimal `json:"bid_increment"`
	GoLiveTime    time.Time       `json:"go_live_time"`
	Duration      Duration        `json:"duration"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	WinnerID      *string         `json:"winner_id,omitempty"`
	IsResolved    bool            `json:"is_resolved"`
	CreatedAt     time.Time       `json:"created_at"`
}

// EndTime is the instant the bidding window closes. The window is half-open:
// a bid at exactly GoLiveTime is admissible, a bid at exactly EndTime is not.
func (a Auction) EndTime() time.Time {
	return a.GoLiveTime.Add(a.Duration.Elapsed())
}

// ActiveAt reports whether the auction accepts bids at the given instant.
func (a Auction) ActiveAt(now time.Time) bool {
	return !a.IsResolved && !now.Before(a.GoLiveTime) && now.Before(a.EndTime())
}

type Bid struct {
	ID        string          `json:"id"`
	AuctionID string          `json:"auction_id"`
	BidderID  string          `json:"bidder_id"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

// AuctionStateUpdate is a partial update of the mutable auction fields.
// Nil fields are left untouched by the store.
type AuctionStateUpdate struct {
	CurrentPrice *decimal.Decimal
	WinnerID     *string
	IsResolved   *bool
}
