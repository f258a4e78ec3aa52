package websocket

import (
	"encoding/json"
	"sync"

	"github.com/charmbracelet/log"
)

// Registry owns every live connection and its subscriptions. It is passed
// by handle into the admission and sweeper flows instead of living as
// package state, so fanout is testable with fake clients. Subscription
// state is tied to the connection and discarded on disconnect; nothing is
// durable.
type Registry struct {
	mu      sync.Mutex
	clients map[*Client]bool
	rooms   map[string]map[*Client]bool // auctionID -> subscribers
	users   map[string]map[*Client]bool // userID -> connections
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[*Client]bool),
		rooms:   make(map[string]map[*Client]bool),
		users:   make(map[string]map[*Client]bool),
	}
}

// Register tracks a new connection and subscribes it to its own
// authenticated user channel.
func (r *Registry) Register(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.clients[client] = true
	if client.ID != "" {
		if r.users[client.ID] == nil {
			r.users[client.ID] = make(map[*Client]bool)
		}
		r.users[client.ID][client] = true
	}
}

// JoinAuction subscribes the connection to an auction room.
func (r *Registry) JoinAuction(client *Client, auctionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.clients[client] {
		return
	}
	if r.rooms[auctionID] == nil {
		r.rooms[auctionID] = make(map[*Client]bool)
	}
	r.rooms[auctionID][client] = true
	client.joined[auctionID] = true
	log.Debugf("Client %s joined auction room %s", client.ID, auctionID)
}

// Leave removes the connection from every room and user channel.
func (r *Registry) Leave(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remove(client)
}

// remove must be called with r.mu held.
func (r *Registry) remove(client *Client) {
	delete(r.clients, client)
	for auctionID := range client.joined {
		delete(r.rooms[auctionID], client)
		if len(r.rooms[auctionID]) == 0 {
			delete(r.rooms, auctionID)
		}
	}
	if conns, ok := r.users[client.ID]; ok {
		delete(conns, client)
		if len(conns) == 0 {
			delete(r.users, client.ID)
		}
	}
}

// PublishToAuction sends the event to every subscriber of the auction room.
func (r *Registry) PublishToAuction(auctionID string, event any) {
	message, err := json.Marshal(event)
	if err != nil {
		log.Error("Error marshalling auction event: ", err)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for client := range r.rooms[auctionID] {
		r.send(client, message)
	}
}

// PublishToUser sends the event to every connection of the user.
func (r *Registry) PublishToUser(userID string, event any) {
	message, err := json.Marshal(event)
	if err != nil {
		log.Error("Error marshalling user event: ", err)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for client := range r.users[userID] {
		r.send(client, message)
	}
}

// send must be called with r.mu held. Clients with a full send buffer or a
// closed connection are dropped from the registry rather than blocking or
// panicking the publisher.
func (r *Registry) send(client *Client, message []byte) {
	if !client.enqueue(message) {
		r.remove(client)
		client.Disconnect(nil)
	}
}

// RoomSize reports the number of subscribers of an auction room.
func (r *Registry) RoomSize(auctionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms[auctionID])
}
