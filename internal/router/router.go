// Package router is the protocol state machine: it validates inbound
// client events, applies them to the room store and session model, and
// fans them out to room members. Transports (websocket, long-poll) feed it
// one message at a time per connection.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/shogi-sync-server/internal/archive"
	"github.com/kapu/shogi-sync-server/internal/msgcat"
	"github.com/kapu/shogi-sync-server/internal/obslog"
	"github.com/kapu/shogi-sync-server/internal/registry"
	"github.com/kapu/shogi-sync-server/internal/room"
	"github.com/kapu/shogi-sync-server/internal/roomstore"
	"github.com/kapu/shogi-sync-server/internal/sfen"
)

// ErrUnknownEvent rejects an inbound event name neither dialect defines.
var ErrUnknownEvent = errors.New("unknown event")

const archiveTimeout = 5 * time.Second

type Router struct {
	store *roomstore.Store
	rooms *room.Manager
	reg   *registry.Registry
	cat   *msgcat.Catalog
	repo  archive.Repository // nil disables archiving
	now   func() time.Time
}

func New(store *roomstore.Store, rooms *room.Manager, reg *registry.Registry, cat *msgcat.Catalog, repo archive.Repository) *Router {
	return &Router{
		store: store,
		rooms: rooms,
		reg:   reg,
		cat:   cat,
		repo:  repo,
		now:   time.Now,
	}
}

// Client is the per-connection protocol state: Unjoined until a successful
// join, then Joined(roomID). Only the connection's own read loop mutates
// it, so no lock is needed.
type Client struct {
	conn    registry.Conn
	dialect Dialect
	roomID  string
}

func (r *Router) NewClient(conn registry.Conn, d Dialect) *Client {
	obslog.L().Info("client connected",
		zap.String("conn", conn.ID()),
		zap.String("dialect", d.String()),
	)
	return &Client{conn: conn, dialect: d}
}

// Joined reports the room the client is in, if any.
func (c *Client) Joined() (string, bool) { return c.roomID, c.roomID != "" }

// HandleMessage processes one inbound wire message. It never returns an
// error: every failure mode ends as an error event to the sender, and the
// connection stays up.
func (r *Router) HandleMessage(ctx context.Context, c *Client, name string, data json.RawMessage) {
	ev, err := Decode(name, data)
	if err != nil {
		var verr *ValidationError
		switch {
		case errors.As(err, &verr):
			r.sendErrorKey(ctx, c, verr.Key)
		case errors.Is(err, ErrUnknownEvent):
			msg, rerr := r.cat.Render("error.unknown_event", map[string]string{"Event": name})
			if rerr != nil {
				msg = r.cat.Message("error.invalid_parameters")
			}
			r.sendError(ctx, c, msg)
		default:
			r.sendErrorKey(ctx, c, "error.invalid_parameters")
		}
		return
	}

	switch ev := ev.(type) {
	case *JoinRoom:
		r.handleJoin(ctx, c, ev)
	case *UpdatePosition:
		if !r.requireJoined(ctx, c) {
			return
		}
		r.applyPosition(ctx, c, ev.Text)
	case *SendComment:
		if !r.requireJoined(ctx, c) {
			return
		}
		r.applyComment(ctx, c, ev)
	case *SendMove:
		if !r.requireJoined(ctx, c) {
			return
		}
		r.applyMove(ctx, c, ev)
	case *LeaveRoom:
		r.handleLeave(c)
	}
}

// RejectMalformed reports an undecodable wire frame back to the sender.
// Transports call this instead of dropping the connection.
func (r *Router) RejectMalformed(ctx context.Context, c *Client) {
	r.sendErrorKey(ctx, c, "error.invalid_parameters")
}

// HandleDisconnect is the implicit leave on transport close.
func (r *Router) HandleDisconnect(c *Client) {
	obslog.L().Info("client disconnected",
		zap.String("conn", c.conn.ID()),
		zap.String("room", c.roomID),
	)
	r.reg.Leave(c.conn)
	c.roomID = ""
}

func (r *Router) handleJoin(ctx context.Context, c *Client, ev *JoinRoom) {
	r.reg.Join(c.conn, ev.RoomID)
	c.roomID = ev.RoomID
	obslog.L().Info("client joined room",
		zap.String("conn", c.conn.ID()),
		zap.String("room", ev.RoomID),
	)
	// push the current position to the joiner only
	if text, ok := r.store.Get(ctx, ev.RoomID); ok {
		if err := c.conn.Send(ctx, "update", text); err != nil {
			obslog.L().Debug("join push failed", zap.String("conn", c.conn.ID()), zap.Error(err))
		}
	}
}

func (r *Router) handleLeave(c *Client) {
	if c.roomID == "" {
		return
	}
	obslog.L().Info("client left room",
		zap.String("conn", c.conn.ID()),
		zap.String("room", c.roomID),
	)
	r.reg.Leave(c.conn)
	c.roomID = ""
}

// applyPosition is the one ordered pipeline behind update-position:
// persist, record history, then fan out to the rest of the room. A store
// failure degrades silently; the broadcast still carries the sender's
// value so live sync survives.
func (r *Router) applyPosition(ctx context.Context, c *Client, text string) {
	r.store.Set(ctx, c.roomID, text)
	r.rooms.Session(c.roomID).RecordPosition(text)
	if _, err := sfen.Parse(text); err != nil {
		// rule-agnostic: stored and relayed anyway
		obslog.L().Debug("position does not parse",
			zap.String("room", c.roomID), zap.Error(err))
	}
	r.reg.Broadcast(ctx, c.roomID, "update", text, c.conn.ID())
}

func (r *Router) applyComment(ctx context.Context, c *Client, ev *SendComment) {
	cm := room.Comment{
		Time:    room.Timestamp(r.now()),
		Name:    ev.Name,
		Comment: ev.Comment,
	}
	r.rooms.Session(c.roomID).AddComment(cm)
	// everyone sees the server-stamped echo, the sender included
	r.reg.Broadcast(ctx, c.roomID, "receiveComment", cm, "")
	r.archiveComment(c.roomID, ev)
}

func (r *Router) applyMove(ctx context.Context, c *Client, ev *SendMove) {
	mv := room.Move{
		Time:    room.Timestamp(r.now()),
		BeforeX: ev.BeforeX.String(),
		BeforeY: ev.BeforeY.String(),
		AfterX:  ev.AfterX.String(),
		AfterY:  ev.AfterY.String(),
		Piece:   ev.Piece,
	}
	r.rooms.Session(c.roomID).AddMove(mv)
	r.reg.Broadcast(ctx, c.roomID, "receiveMove", mv, "")
	r.archiveMove(c.roomID, ev)
}

func (r *Router) requireJoined(ctx context.Context, c *Client) bool {
	if c.roomID != "" {
		return true
	}
	r.sendErrorKey(ctx, c, "error.room_not_joined")
	return false
}

func (r *Router) sendErrorKey(ctx context.Context, c *Client, key string) {
	r.sendError(ctx, c, r.cat.Message(key))
}

func (r *Router) sendError(ctx context.Context, c *Client, message string) {
	if err := c.conn.Send(ctx, "error", c.dialect.ErrorPayload(message)); err != nil {
		obslog.L().Debug("error event delivery failed",
			zap.String("conn", c.conn.ID()), zap.Error(err))
	}
}

func (r *Router) archiveComment(roomID string, ev *SendComment) {
	if r.repo == nil {
		return
	}
	rec := &archive.ChatRecord{RoomID: roomID, Name: ev.Name, Comment: ev.Comment, At: r.now()}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		if err := r.repo.InsertComment(ctx, rec); err != nil {
			obslog.L().Warn("comment archive failed", zap.String("room", roomID), zap.Error(err))
		}
	}()
}

func (r *Router) archiveMove(roomID string, ev *SendMove) {
	if r.repo == nil {
		return
	}
	rec := &archive.MoveRecord{
		RoomID:  roomID,
		BeforeX: ev.BeforeX.String(),
		BeforeY: ev.BeforeY.String(),
		AfterX:  ev.AfterX.String(),
		AfterY:  ev.AfterY.String(),
		Piece:   ev.Piece,
		At:      r.now(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		if err := r.repo.InsertMove(ctx, rec); err != nil {
			obslog.L().Warn("move archive failed", zap.String("room", roomID), zap.Error(err))
		}
	}()
}
