// Package registry tracks which live connections belong to which room and
// fans events out to room members. Membership is ephemeral process state,
// rebuilt per connection lifecycle; nothing here is persisted.
package registry

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/shogi-sync-server/internal/obslog"
)

// Conn is one live client connection, whatever the transport.
// Send must be safe for concurrent use and must not block forever.
type Conn interface {
	ID() string
	Send(ctx context.Context, event string, data any) error
}

const sendTimeout = 5 * time.Second

// Registry maps connections to rooms. A connection is in at most one room;
// joining a new room leaves the previous one.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]Conn // roomID -> connID -> conn
	roomOf map[string]string          // connID -> roomID
}

func New() *Registry {
	return &Registry{
		rooms:  make(map[string]map[string]Conn),
		roomOf: make(map[string]string),
	}
}

// Join adds conn to roomID, leaving any previous room first.
func (r *Registry) Join(conn Conn, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(conn.ID())
	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[string]Conn)
		r.rooms[roomID] = members
	}
	members[conn.ID()] = conn
	r.roomOf[conn.ID()] = roomID
}

// Leave removes conn from its room. Idempotent.
func (r *Registry) Leave(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(conn.ID())
}

func (r *Registry) leaveLocked(connID string) {
	roomID, ok := r.roomOf[connID]
	if !ok {
		return
	}
	delete(r.roomOf, connID)
	if members, ok := r.rooms[roomID]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.rooms, roomID)
		}
	}
}

// RoomOf returns the room conn currently belongs to.
func (r *Registry) RoomOf(conn Conn) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roomID, ok := r.roomOf[conn.ID()]
	return roomID, ok
}

// Members returns a snapshot of the room's member connections.
func (r *Registry) Members(roomID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := r.rooms[roomID]
	out := make([]Conn, 0, len(members))
	for _, c := range members {
		out = append(out, c)
	}
	return out
}

// Broadcast delivers event to every member of roomID except the connection
// with ID except (empty means nobody is excluded). Delivery is best-effort
// and per-member: one slow or dead member never blocks the others.
func (r *Registry) Broadcast(ctx context.Context, roomID, event string, data any, except string) {
	for _, conn := range r.Members(roomID) {
		if conn.ID() == except {
			continue
		}
		go func(c Conn) {
			sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
			defer cancel()
			if err := c.Send(sctx, event, data); err != nil {
				obslog.L().Debug("broadcast delivery failed",
					zap.String("room", roomID),
					zap.String("conn", c.ID()),
					zap.String("event", event),
					zap.Error(err),
				)
			}
		}(conn)
	}
}

// Counts reports rooms with members and total connections, for the health
// surface.
func (r *Registry) Counts() (rooms, conns int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms), len(r.roomOf)
}
