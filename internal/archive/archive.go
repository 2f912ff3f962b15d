// Package archive keeps a durable record of accepted chat and move events.
// It is optional: without a DATABASE_URL the router runs with a nil
// repository and archiving is skipped. Writes are asynchronous and
// best-effort; an archive failure never affects live sync.
package archive

import (
	"context"
	"time"
)

// MoveRecord is one accepted send-move event. Coordinates are kept as
// strings because hand and stock drops use letters, not indices.
type MoveRecord struct {
	RoomID  string
	BeforeX string
	BeforeY string
	AfterX  string
	AfterY  string
	Piece   string
	At      time.Time
}

// ChatRecord is one accepted send-chat event.
type ChatRecord struct {
	RoomID  string
	Name    string
	Comment string
	At      time.Time
}

type Repository interface {
	InsertMove(ctx context.Context, rec *MoveRecord) error
	InsertComment(ctx context.Context, rec *ChatRecord) error
	RecentMoves(ctx context.Context, roomID string, limit int) ([]*MoveRecord, error)
	RecentComments(ctx context.Context, roomID string, limit int) ([]*ChatRecord, error)
	Close() error
}
