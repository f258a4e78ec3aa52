package websocket

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/bidhaus/auction-engine/pkg/errors"
	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"
)

type Message struct {
	Type string `json:"type"` // Type of the message (e.g., "join", "bid")
	Data string `json:"data"` // Payload of the message
}

// ParseMessage validates and parses incoming messages.
func ParseMessage(rawMessage []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(rawMessage, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// HandleMessage routes the message based on its type.
func (h *AuctionHandler) HandleMessage(client *Client, rawMessage []byte) {
	if !client.RateLimiter.Allow() {
		log.Warnf("Rate limit exceeded for client %s", client.ID)
		client.enqueue(errors.New(errors.ErrRateLimited, "Rate limit exceeded").ToJSON())
		return
	}

	msg, err := ParseMessage(rawMessage)
	if err != nil {
		log.Infof("Invalid message from client %s: %v", client.ID, err)
		client.enqueue(errors.New(errors.ErrBadMessageFormat, "Invalid message format").ToJSON())
		return
	}

	switch msg.Type {
	case "join":
		h.handleJoinMessage(client, msg.Data)
	case "bid":
		h.handleBidMessage(client, msg.Data)
	default:
		log.Infof("Unknown message type from client %s: %s", client.ID, msg.Type)
		client.enqueue(errors.New(errors.ErrUnknownMessageType, "Unknown message type").ToJSON())
	}
}

// handleJoinMessage subscribes the client to an auction room. The client's
// user channel is already bound to its authenticated identity at connect
// time; a join can only ever select auction rooms.
func (h *AuctionHandler) handleJoinMessage(client *Client, data string) {
	type JoinMessage struct {
		AuctionID string `json:"auction_id"`
	}
	var joinMsg JoinMessage

	if err := json.Unmarshal([]byte(data), &joinMsg); err != nil || joinMsg.AuctionID == "" {
		client.enqueue(errors.New(errors.ErrBadMessageFormat, "Invalid join message").ToJSON())
		return
	}

	h.registry.JoinAuction(client, joinMsg.AuctionID)
	client.enqueue([]byte(`{"type": "joined", "auction_id": "` + joinMsg.AuctionID + `"}`))
}

// handleBidMessage submits the bid to the admission service and reports the
// outcome to the bidder. Room broadcasts and notifications are fanned out
// by the admission service itself.
func (h *AuctionHandler) handleBidMessage(client *Client, data string) {
	type BidMessage struct {
		AuctionID string          `json:"auction_id"`
		Amount    decimal.Decimal `json:"amount"`
	}
	var bidMsg BidMessage

	if err := json.Unmarshal([]byte(data), &bidMsg); err != nil || bidMsg.AuctionID == "" {
		client.enqueue(errors.New(errors.ErrBadMessageFormat, "Invalid bid message").ToJSON())
		return
	}
	if !bidMsg.Amount.IsPositive() {
		client.enqueue(errors.New(errors.ErrBadMessageFormat, "Bid amount must be positive").ToJSON())
		return
	}

	bid, err := h.bidder.AdmitBid(context.Background(), bidMsg.AuctionID, client.ID, bidMsg.Amount)
	if err != nil {
		var appErr *errors.AppError
		if !stderrors.As(err, &appErr) {
			appErr = errors.New(errors.ErrInternalServer, "Internal server error")
		}
		client.enqueue(appErr.ToJSON())
		return
	}

	ack, err := json.Marshal(struct {
		Type string `json:"type"`
		Bid  any    `json:"bid"`
	}{Type: "bid_accepted", Bid: bid})
	if err != nil {
		log.Error("Error marshalling bid ack: ", err)
		return
	}
	client.enqueue(ack)
}
