package socket

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	roommodel "discordbot/internal/room/model"

	"go.uber.org/zap"
)

const (
	SnapshotType = "snapshot" // Sent to a client right after it subscribes
	PresenceType = "presence" // Someone subscribed to or left a server feed

	snapshotTimeout = 2 * time.Second
	broadcastBuffer = 256
)

// Message is the envelope written to feed subscribers. Type is one of the
// constants above or a content/room event kind.
type Message struct {
	Type     string          `json:"type"`
	ServerID string          `json:"server_id"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	SentAt   time.Time       `json:"sent_at"`
}

type Snapshot struct {
	Room *roommodel.Room `json:"room"`
}

// RoomSource looks up a server's current watch room for snapshots.
type RoomSource interface {
	Get(ctx context.Context, serverID string) (*roommodel.Room, error)
}

// Hub fans events out to the websocket clients subscribed to each server.
type Hub struct {
	Rooms      map[string]map[*Client]bool
	Broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	// Presence counts open connections per user in each server.
	Presence map[string]map[string]int

	rooms RoomSource
	log   *zap.SugaredLogger
	mu    sync.Mutex
	done  chan struct{}
}

// NewHub creates a hub. rooms may be nil, in which case snapshots carry no
// room.
func NewHub(rooms RoomSource, log *zap.SugaredLogger) *Hub {
	return &Hub{
		Rooms:      make(map[string]map[*Client]bool),
		Broadcast:  make(chan Message, broadcastBuffer),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Presence:   make(map[string]map[string]int),
		rooms:      rooms,
		log:        log,
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.Register:
			h.mu.Lock()
			if h.Rooms[client.ServerID] == nil {
				h.Rooms[client.ServerID] = make(map[*Client]bool)
				h.Presence[client.ServerID] = make(map[string]int)
			}
			h.Rooms[client.ServerID][client] = true
			h.Presence[client.ServerID][client.UserID]++
			h.mu.Unlock()

			h.sendSnapshot(ctx, client)
			h.broadcastPresenceUpdate(client.ServerID)

		case client := <-h.Unregister:
			if h.remove(client) {
				h.broadcastPresenceUpdate(client.ServerID)
			}

		case msg := <-h.Broadcast:
			payload, err := json.Marshal(msg)
			if err != nil {
				h.log.Errorf("Error marshalling broadcast message: %v", err)
				continue
			}

			h.mu.Lock()
			clientsToSend := make([]*Client, 0, len(h.Rooms[msg.ServerID]))
			for client := range h.Rooms[msg.ServerID] {
				clientsToSend = append(clientsToSend, client)
			}
			h.mu.Unlock()

			dropped := false
			for _, client := range clientsToSend {
				select {
				case client.Send <- payload:
				default:
					h.log.Warnf("Client %s's send buffer is full. Dropping it.", client.UserID)
					dropped = h.remove(client) || dropped
				}
			}
			if dropped {
				h.broadcastPresenceUpdate(msg.ServerID)
			}
		}
	}
}

// Notify queues an event for everyone subscribed to serverID. It never
// blocks; when the hub is backed up the event is dropped.
func (h *Hub) Notify(serverID, kind string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		h.log.Errorf("Error marshalling %s event: %v", kind, err)
		return
	}
	select {
	case h.Broadcast <- Message{Type: kind, ServerID: serverID, Payload: raw, SentAt: time.Now().UTC()}:
	default:
		h.log.Warnf("Feed backlog full, dropping %s event for guild %s", kind, serverID)
	}
}

// Subscribers returns how many connections follow serverID.
func (h *Hub) Subscribers(serverID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.Rooms[serverID])
}

// remove reports whether the client was still registered.
func (h *Hub) remove(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.Rooms[client.ServerID][client]; !ok {
		return false
	}
	delete(h.Rooms[client.ServerID], client)
	close(client.Send)

	if h.Presence[client.ServerID][client.UserID]--; h.Presence[client.ServerID][client.UserID] <= 0 {
		delete(h.Presence[client.ServerID], client.UserID)
	}
	if len(h.Rooms[client.ServerID]) == 0 {
		delete(h.Rooms, client.ServerID)
		delete(h.Presence, client.ServerID)
		h.log.Infof("Closed empty feed for guild %s", client.ServerID)
	}
	return true
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for serverID, clients := range h.Rooms {
		for client := range clients {
			close(client.Send)
		}
		delete(h.Rooms, serverID)
		delete(h.Presence, serverID)
	}
}

func (h *Hub) sendSnapshot(ctx context.Context, client *Client) {
	var snap Snapshot
	if h.rooms != nil {
		ctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
		room, err := h.rooms.Get(ctx, client.ServerID)
		cancel()
		if err != nil {
			h.log.Errorf("Failed to load room for guild %s snapshot: %v", client.ServerID, err)
		}
		snap.Room = room
	}

	payload, _ := json.Marshal(snap)
	msg, _ := json.Marshal(Message{Type: SnapshotType, ServerID: client.ServerID, Payload: payload, SentAt: time.Now().UTC()})
	select {
	case client.Send <- msg:
	default:
		h.log.Warnf("Client %s's send buffer was full during snapshot.", client.UserID)
	}
}

func (h *Hub) broadcastPresenceUpdate(serverID string) {
	var users []string
	var clientsToSend []*Client

	h.mu.Lock()
	for userID := range h.Presence[serverID] {
		users = append(users, userID)
	}
	for client := range h.Rooms[serverID] {
		clientsToSend = append(clientsToSend, client)
	}
	h.mu.Unlock()

	if len(clientsToSend) == 0 {
		return
	}
	sort.Strings(users)

	payload, err := json.Marshal(users)
	if err != nil {
		h.log.Errorf("Error marshalling presence broadcast: %v", err)
		return
	}
	msg, _ := json.Marshal(Message{Type: PresenceType, ServerID: serverID, Payload: payload, SentAt: time.Now().UTC()})

	for _, client := range clientsToSend {
		select {
		case client.Send <- msg:
		default:
			// The pumps handle unresponsive clients.
			h.log.Warnf("Client %s's send buffer was full during presence update.", client.UserID)
		}
	}
}
