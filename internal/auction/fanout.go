package auction

// Fanout delivers engine events to connected observers. Delivery is
// best-effort: implementations swallow transport failures and must never
// block, since the engine publishes outside its admission critical section
// but on the request path.
type Fanout interface {
	// PublishToAuction sends the event to every connection subscribed to
	// the auction's room.
	PublishToAuction(auctionID string, event any)
	// PublishToUser sends the event to every connection owned by the user.
	PublishToUser(userID string, event any)
}
