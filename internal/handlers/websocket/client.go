package websocket

import (
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// Client is one authenticated websocket connection. ID and Email come from
// the session token, never from the wire.
type Client struct {
	ID          string
	Email       string
	Conn        *websocket.Conn
	Send        chan []byte   // Channel for outgoing messages
	RateLimiter *rate.Limiter // Rate limiter to prevent spamming

	joined map[string]bool // auction rooms, owned by the Registry
	closed bool            // Flag to check if the connection is closed
	mu     sync.Mutex      // Mutex to protect the closed flag
}

// NewClient wraps an upgraded connection.
func NewClient(id, email string, conn *websocket.Conn) *Client {
	return &Client{
		ID:          id,
		Email:       email,
		Conn:        conn,
		Send:        make(chan []byte, 16),
		RateLimiter: rate.NewLimiter(1, 3),
		joined:      make(map[string]bool),
	}
}

// ReadMessages listens for incoming messages and feeds them to the handler.
func (c *Client) ReadMessages(registry *Registry, handleMessage func(*Client, []byte)) {
	defer func() {
		c.Disconnect(registry) // Ensure cleanup
		log.Debugf("Connection closed for client %s", c.ID)
	}()

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			log.Debugf("Error reading message from client %s: %v", c.ID, err)
			break
		}
		handleMessage(c, message)
	}
}

// enqueue hands a message to the client's send buffer. It reports false and
// drops the message when the client is closed or the buffer is full; it
// never blocks and never touches a closed channel.
func (c *Client) enqueue(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- message:
		return true
	default:
		return false
	}
}

// WriteMessages drains the send channel onto the connection. It must not
// hold c.mu across the network write: enqueue takes that mutex on the fanout
// path, and a stalled connection would otherwise stall every publisher.
// Closing Send ends the loop; a write racing the teardown just errors.
func (c *Client) WriteMessages() {
	defer func() {
		if c.Conn != nil {
			c.Conn.Close()
		}
	}()

	for message := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Debugf("Error sending message to client %s: %v", c.ID, err)
			return
		}
	}
}

// Disconnect cleans up client resources and, when a registry is given,
// drops every subscription the connection held. The registry is left first:
// once Leave returns, no publisher can reach this client, and only then is
// the send channel closed. Enqueues and the close share c.mu, so a send can
// never hit a closed channel.
func (c *Client) Disconnect(registry *Registry) {
	if registry != nil {
		registry.Leave(c)
	}

	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
	c.mu.Unlock()

	if c.Conn != nil {
		c.Conn.Close()
	}
	log.Debugf("Client %s cleanup completed", c.ID)
}
