package ws

import (
	"sync"

	"github.com/golang/glog"
)

// Hub manages relay-side clients and broadcasts board messages.
type Hub struct {
	mu sync.RWMutex

	// clients maps client ID to client
	clients map[string]*Client

	// boards maps board ID to set of client IDs
	boards map[int64]map[string]struct{}
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		boards:  make(map[int64]map[string]struct{}),
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
}

// Unregister removes a client from the hub and any board subscription.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.leave(client, client.BoardID())
	delete(h.clients, client.ID)
}

// Subscribe adds a client to a board's broadcast list, leaving any previous board.
func (h *Hub) Subscribe(client *Client, boardID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old := client.BoardID(); old != 0 && old != boardID {
		h.leave(client, old)
	}

	if h.boards[boardID] == nil {
		h.boards[boardID] = make(map[string]struct{})
	}

	h.boards[boardID][client.ID] = struct{}{}
	client.SetBoardID(boardID)
}

// Unsubscribe removes a client from a board's broadcast list.
func (h *Hub) Unsubscribe(client *Client, boardID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.leave(client, boardID)

	if client.BoardID() == boardID {
		client.SetBoardID(0)
	}
}

// leave drops client from boardID. Callers hold h.mu.
func (h *Hub) leave(client *Client, boardID int64) {
	if boardID == 0 {
		return
	}

	if clients, ok := h.boards[boardID]; ok {
		delete(clients, client.ID)

		if len(clients) == 0 {
			delete(h.boards, boardID)
		}
	}
}

// Broadcast sends env to every client subscribed to boardID except
// excludeClientID. Pass an empty exclude to echo back to the sender too,
// which is how senders learn their action was accepted.
//
// Envelopes are queued on each client's outbox, so a slow client cannot
// stall the board and every client sees messages in broadcast order.
// A client whose outbox is full is closed.
func (h *Hub) Broadcast(boardID int64, env Envelope, excludeClientID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clientIDs, ok := h.boards[boardID]
	if !ok {
		return
	}

	for clientID := range clientIDs {
		if clientID == excludeClientID {
			continue
		}

		client, ok := h.clients[clientID]
		if !ok {
			continue
		}

		if !client.Enqueue(env) {
			glog.Warningf("[hub] dropping client %s on board %d: outbox full or closed", client.ID, boardID)
			_ = client.Close()
		}
	}
}

// ClientCount returns the number of clients subscribed to a board.
func (h *Hub) ClientCount(boardID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if clients, ok := h.boards[boardID]; ok {
		return len(clients)
	}

	return 0
}

// TotalClients returns the total number of connected clients.
func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}
