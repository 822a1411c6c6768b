// Package rooms tracks which realtime connections are joined to which note and
// fans events out to the members of a note's room.
package rooms

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/notebins/notebins/pkg/logger"
	"github.com/notebins/notebins/pkg/metrics"
)

// Outbound event names.
const (
	EventConnections = "connections"
	EventUpdate      = "update"
	EventPong        = "pong"
)

// DefaultSweepInterval is how often Run evicts empty rooms.
const DefaultSweepInterval = 5 * time.Minute

// Event is one outbound message in its wire envelope.
type Event struct {
	Name string      `json:"event"`
	Data interface{} `json:"data,omitempty"`
}

// Connections is the payload of a connections event.
type Connections struct {
	Count int `json:"count"`
}

// Update is the payload of an update event.
type Update struct {
	NoteID  string `json:"noteId"`
	Content string `json:"content"`
}

// Peer is a connected client. Send must not block; it reports false when the
// event was dropped.
type Peer interface {
	ID() string
	Send(Event) bool
}

type set map[string]struct{}

// Registry owns room membership. All methods are safe for concurrent use.
// Events are handed to peers while the lock is held, so per-room count events
// arrive in the order membership changed.
type Registry struct {
	mu          sync.Mutex
	peers       map[string]Peer
	rooms       map[string]set
	memberships map[string]set
	log         *slog.Logger
}

func New() *Registry {
	return &Registry{
		peers:       make(map[string]Peer),
		rooms:       make(map[string]set),
		memberships: make(map[string]set),
		log:         logger.With("component", "rooms"),
	}
}

// Connect registers p with no memberships. Reconnecting an id replaces the peer.
func (r *Registry) Connect(p Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers[p.ID()] = p
	if _, ok := r.memberships[p.ID()]; !ok {
		r.memberships[p.ID()] = set{}
	}
}

func (r *Registry) Join(connID, noteID string) {
	if noteID == "" {
		r.log.Warn("join without note id", "conn", connID)
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.peers[connID]; !ok {
		r.log.Warn("join from unknown connection", "conn", connID, "note", noteID)
		return
	}
	room, ok := r.rooms[noteID]
	if !ok {
		room = set{}
		r.rooms[noteID] = room
		metrics.RoomsActive.Set(float64(len(r.rooms)))
	}
	room[connID] = struct{}{}
	r.memberships[connID][noteID] = struct{}{}
	r.log.Info("joined room", "conn", connID, "note", noteID, "count", len(room))
	r.sendCountLocked(noteID, room)
}

func (r *Registry) Leave(connID, noteID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(connID, noteID)
}

func (r *Registry) leaveLocked(connID, noteID string) {
	room, ok := r.rooms[noteID]
	if !ok {
		return
	}
	if _, member := room[connID]; !member {
		return
	}
	delete(room, connID)
	delete(r.memberships[connID], noteID)
	r.log.Info("left room", "conn", connID, "note", noteID, "count", len(room))
	if len(room) == 0 {
		delete(r.rooms, noteID)
		metrics.RoomsActive.Set(float64(len(r.rooms)))
		return
	}
	r.sendCountLocked(noteID, room)
}

func (r *Registry) sendCountLocked(noteID string, room set) {
	ev := Event{Name: EventConnections, Data: Connections{Count: len(room)}}
	for id := range room {
		r.sendLocked(id, noteID, ev)
	}
}

func (r *Registry) sendLocked(connID, noteID string, ev Event) {
	p, ok := r.peers[connID]
	if !ok {
		return
	}
	if !p.Send(ev) {
		r.log.Warn("event dropped", "conn", connID, "note", noteID, "event", ev.Name)
	}
}

// Broadcast sends an update to every member of the note's room except the sender.
// The sender does not have to be a member.
func (r *Registry) Broadcast(senderID, noteID, content string) {
	if noteID == "" {
		r.log.Warn("update without note id", "conn", senderID)
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[noteID]
	if !ok {
		return
	}
	ev := Event{Name: EventUpdate, Data: Update{NoteID: noteID, Content: content}}
	for id := range room {
		if id == senderID {
			continue
		}
		r.sendLocked(id, noteID, ev)
	}
}

// LeaveAll removes connID from every room it joined.
func (r *Registry) LeaveAll(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveAllLocked(connID)
}

func (r *Registry) leaveAllLocked(connID string) {
	joined := r.memberships[connID]
	notes := make([]string, 0, len(joined))
	for noteID := range joined {
		notes = append(notes, noteID)
	}
	for _, noteID := range notes {
		r.leaveLocked(connID, noteID)
	}
}

// Disconnect leaves every room and forgets the peer; it is never sent to again.
func (r *Registry) Disconnect(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveAllLocked(connID)
	delete(r.memberships, connID)
	delete(r.peers, connID)
}

// SweepEmptyRooms evicts rooms that have no members and returns how many went.
func (r *Registry) SweepEmptyRooms() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for noteID, room := range r.rooms {
		if len(room) == 0 {
			delete(r.rooms, noteID)
			n++
		}
	}
	if n > 0 {
		metrics.RoomsActive.Set(float64(len(r.rooms)))
		r.log.Info("evicted empty rooms", "count", n)
	}
	return n
}

// Run calls SweepEmptyRooms every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = DefaultSweepInterval
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.SweepEmptyRooms()
		}
	}
}

// Count returns the member count of a note's room.
func (r *Registry) Count(noteID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms[noteID])
}

// RoomCount returns how many rooms exist.
func (r *Registry) RoomCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// Connections returns how many peers are registered.
func (r *Registry) Connections() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.peers)
}

// Rooms returns the notes connID has joined.
func (r *Registry) Rooms(connID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.memberships[connID]))
	for noteID := range r.memberships[connID] {
		out = append(out, noteID)
	}
	return out
}
