package websocket

import (
	"net/http"

	"github.com/bidhaus/auction-engine/internal/auction"
	"github.com/bidhaus/auction-engine/internal/auth"
	"github.com/bidhaus/auction-engine/internal/database"
	"github.com/bidhaus/auction-engine/pkg/types"
	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

// AuctionHandler serves the /ws/auction endpoint: it authenticates the
// upgrade, hands bids to the admission service, and keeps subscriptions in
// the injected registry.
type AuctionHandler struct {
	db       database.Service
	bidder   *auction.Bidder
	registry *Registry
}

// NewAuctionWebSocketHandler wires the websocket surface.
func NewAuctionWebSocketHandler(db database.Service, bidder *auction.Bidder, registry *Registry) *AuctionHandler {
	return &AuctionHandler{db: db, bidder: bidder, registry: registry}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleAuctions upgrades the HTTP request to a WebSocket connection for an
// already-authenticated user.
func (h *AuctionHandler) handleAuctions(w http.ResponseWriter, r *http.Request, user types.User) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Infof("Failed to upgrade connection: %v", err)
		http.Error(w, "Failed to establish connection", http.StatusInternalServerError)
		return
	}

	client := NewClient(user.ID, user.Email, conn)

	// Binds the user channel to the authenticated identity; a join message
	// cannot claim someone else's notifications.
	h.registry.Register(client)

	go client.ReadMessages(h.registry, h.HandleMessage)
	go client.WriteMessages()
}

// HandleAuctionWebSocket integrates authentication and WebSocket handling.
func (h *AuctionHandler) HandleAuctionWebSocket(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.IdentityFromRequest(r)
	if err != nil {
		log.Error("Invalid session token: ", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	// Check that the user exists
	user, err := h.db.GetUserByEmail(r.Context(), identity.Email)
	if err != nil {
		log.Error("User not found: ", err)
		http.Error(w, "User not found", http.StatusUnauthorized)
		return
	}

	h.handleAuctions(w, r, user)
}
