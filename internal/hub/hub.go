// Package hub tracks live socket connections by named room and fans
// payloads out to them. Rooms are plain strings: one per conversation and
// one per user.
package hub

import "sync"

type Writer interface {
	Write(message []byte) error
	Close() error
}

type Connection struct {
	Writer Writer
}

type Hub struct {
	mu          sync.RWMutex
	rooms       map[string]map[*Connection]struct{}
	memberships map[*Connection]map[string]struct{}
}

func New() *Hub {
	return &Hub{
		rooms:       make(map[string]map[*Connection]struct{}),
		memberships: make(map[*Connection]map[string]struct{}),
	}
}

func (h *Hub) Join(room string, conn *Connection) {
	if room == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Connection]struct{})
	}
	h.rooms[room][conn] = struct{}{}

	if h.memberships[conn] == nil {
		h.memberships[conn] = make(map[string]struct{})
	}
	h.memberships[conn][room] = struct{}{}
}

func (h *Hub) Leave(room string, conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(room, conn)
}

func (h *Hub) LeaveAll(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for room := range h.memberships[conn] {
		h.leaveLocked(room, conn)
	}
}

func (h *Hub) leaveLocked(room string, conn *Connection) {
	set := h.rooms[room]
	if set != nil {
		delete(set, conn)
		if len(set) == 0 {
			delete(h.rooms, room)
		}
	}
	if members := h.memberships[conn]; members != nil {
		delete(members, room)
		if len(members) == 0 {
			delete(h.memberships, conn)
		}
	}
}

// Broadcast writes to every connection in the room; connections whose write
// fails are closed and dropped from all rooms.
func (h *Hub) Broadcast(room string, message []byte) {
	h.mu.RLock()
	set := h.rooms[room]
	conns := make([]*Connection, 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	var failed []*Connection
	for _, c := range conns {
		if err := c.Writer.Write(message); err != nil {
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		_ = c.Writer.Close()
		h.LeaveAll(c)
	}
}
