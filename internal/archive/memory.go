package archive

import (
	"context"
	"sync"
)

// memory is an in-process repository used in tests and when exercising the
// service without a database.
type memory struct {
	mu       sync.RWMutex
	moves    map[string][]*MoveRecord // roomID -> records, oldest first
	comments map[string][]*ChatRecord
}

func NewMemory() Repository {
	return &memory{
		moves:    make(map[string][]*MoveRecord),
		comments: make(map[string][]*ChatRecord),
	}
}

func (m *memory) InsertMove(ctx context.Context, rec *MoveRecord) error {
	if rec == nil {
		return nil
	}
	cp := *rec
	m.mu.Lock()
	m.moves[rec.RoomID] = append(m.moves[rec.RoomID], &cp)
	m.mu.Unlock()
	return nil
}

func (m *memory) InsertComment(ctx context.Context, rec *ChatRecord) error {
	if rec == nil {
		return nil
	}
	cp := *rec
	m.mu.Lock()
	m.comments[rec.RoomID] = append(m.comments[rec.RoomID], &cp)
	m.mu.Unlock()
	return nil
}

func (m *memory) RecentMoves(ctx context.Context, roomID string, limit int) ([]*MoveRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.moves[roomID]
	out := make([]*MoveRecord, 0, limit)
	for i := len(list) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *list[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memory) RecentComments(ctx context.Context, roomID string, limit int) ([]*ChatRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.comments[roomID]
	out := make([]*ChatRecord, 0, limit)
	for i := len(list) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *list[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memory) Close() error { return nil }
