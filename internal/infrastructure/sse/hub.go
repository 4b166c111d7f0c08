package sse

import (
	"sync"

	"github.com/google/uuid"
)

const clientBuffer = 16

// Client is one live stream connection belonging to a user. A user may
// hold several at once (multiple devices or tabs).
type Client struct {
	ID       string
	UserID   uuid.UUID
	Messages chan []byte

	closeOnce sync.Once
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.Messages)
	})
}

// Hub manages stream clients grouped by user. onLastDrop fires when a
// user's final connection goes away.
type Hub struct {
	mu         sync.RWMutex
	byUser     map[uuid.UUID]map[string]*Client
	onLastDrop func(userID uuid.UUID)
}

func NewHub(onLastDrop func(userID uuid.UUID)) *Hub {
	return &Hub{
		byUser:     make(map[uuid.UUID]map[string]*Client),
		onLastDrop: onLastDrop,
	}
}

// Register creates and tracks a new client for userID.
func (h *Hub) Register(userID uuid.UUID) *Client {
	client := &Client{
		ID:       uuid.NewString(),
		UserID:   userID,
		Messages: make(chan []byte, clientBuffer),
	}
	h.mu.Lock()
	set, ok := h.byUser[userID]
	if !ok {
		set = make(map[string]*Client)
		h.byUser[userID] = set
	}
	set[client.ID] = client
	h.mu.Unlock()
	return client
}

// Unregister drops a client; the last connection for a user triggers the
// drop callback.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	set, ok := h.byUser[client.UserID]
	if ok {
		if _, present := set[client.ID]; present {
			delete(set, client.ID)
			client.Close()
		}
		if len(set) == 0 {
			delete(h.byUser, client.UserID)
		}
	}
	last := ok && len(set) == 0
	h.mu.Unlock()

	if last && h.onLastDrop != nil {
		go h.onLastDrop(client.UserID)
	}
}

// Send delivers a payload to every connection the user holds on this
// instance. Slow clients are skipped, never blocked on; the pull-based
// state query remains authoritative.
func (h *Hub) Send(userID uuid.UUID, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.byUser[userID] {
		select {
		case c.Messages <- payload:
		default:
		}
	}
}

// ConnectionCount reports how many live connections a user holds here.
func (h *Hub) ConnectionCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID])
}

func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, set := range h.byUser {
		for _, c := range set {
			c.Close()
		}
		delete(h.byUser, userID)
	}
}
