package types

import "github.com/shopspring/decimal"

// Event types pushed to websocket subscribers.
const (
	EventNewBid       = "new_bid"
	EventNotification = "notification"
	EventAuctionEnded = "auction_ended"
)

// NewBidEvent is broadcast to an auction room after a bid is admitted.
type NewBidEvent struct {
	Type       string          `json:"type"`
	AuctionID  string          `json:"auction_id"`
	Amount     decimal.Decimal `json:"amount"`
	BidderName string          `json:"bidder_name"`
}

// NotificationEvent is a direct message for one user (seller activity,
// outbid notices, winner announcements).
type NotificationEvent struct {
	Type        string `json:"type"`
	RecipientID string `json:"recipient_id"`
	Message     string `json:"message"`
}

// AuctionEndedEvent is broadcast to an auction room when the sweeper
// resolves the auction. WinnerID and WinnerName are absent when the auction
// ended without bids.
type AuctionEndedEvent struct {
	Type       string  `json:"type"`
	AuctionID  string  `json:"auction_id"`
	Message    string  `json:"message"`
	WinnerID   *string `json:"winner_id,omitempty"`
	WinnerName string  `json:"winner_name,omitempty"`
}
