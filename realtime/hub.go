// Package realtime keeps per-chat rooms of live websocket clients, relays
// chat messages between them and fans them out across instances through a
// Broker.
package realtime

import (
	"regexp"
	"sync"
)

const roomPrefix = "chat_"

var whitespaceRun = regexp.MustCompile(`\s+`)

// RoomKey derives the room name of a chat. Whitespace runs in the id are
// collapsed to a single underscore.
func RoomKey(chatID string) string {
	return roomPrefix + whitespaceRun.ReplaceAllString(chatID, "_")
}

// Hub is the room registry. The zero value is not usable, use NewHub.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Client]struct{})}
}

// Join adds c to room. Joining twice keeps a single membership.
func (h *Hub) Join(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	chatRooms.Set(float64(len(h.rooms)))
}

// Leave removes c from room. Unknown rooms and clients are ignored.
func (h *Hub) Leave(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(room, c)
}

func (h *Hub) remove(room string, c *Client) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
	chatRooms.Set(float64(len(h.rooms)))
}

// Broadcast queues payload on every member of room, the sender included,
// and returns how many clients accepted it. It never blocks: a client whose
// queue is full or closed is evicted and its queue closed.
func (h *Hub) Broadcast(room string, payload []byte) int {
	h.mu.RLock()
	delivered := 0
	var dead []*Client
	for c := range h.rooms[room] {
		if c.enqueue(payload) {
			delivered++
		} else {
			dead = append(dead, c)
		}
	}
	h.mu.RUnlock()

	if len(dead) > 0 {
		h.mu.Lock()
		for _, c := range dead {
			h.remove(room, c)
			c.closeQueue()
		}
		h.mu.Unlock()
		droppedDeliveries.Add(float64(len(dead)))
	}
	return delivered
}

func (h *Hub) Members(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) Rooms() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// Shutdown closes the queue of every member and forgets all rooms. Write
// pumps notice the closed queue and send a close frame.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, members := range h.rooms {
		for c := range members {
			c.closeQueue()
		}
	}
	h.rooms = make(map[string]map[*Client]struct{})
	chatRooms.Set(0)
}
