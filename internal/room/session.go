// Package room holds the per-room session model: the position history with
// undo/redo cursor and the bounded chat and move lists. Sessions are
// in-process state; the durable position lives in the room store.
package room

import (
	"fmt"
	"sync"
	"time"
)

const (
	DefaultHistoryLimit = 100
	DefaultChatLimit    = 100
	DefaultMoveLimit    = 500
)

// jst is the clock the original service stamped chat and move events with.
var jst = time.FixedZone("JST", 9*60*60)

// Timestamp renders t as H:mm:ss in JST, hours without a leading zero.
func Timestamp(t time.Time) string {
	t = t.In(jst)
	return fmt.Sprintf("%d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
}

// Comment is one chat message as echoed back to the room.
type Comment struct {
	Time    string `json:"time"`
	Name    string `json:"name"`
	Comment string `json:"comment"`
}

// Move is one piece movement as echoed back to the room. Before coordinates
// may be letters when the piece came from a hand or the stock.
type Move struct {
	Time    string `json:"time"`
	BeforeX string `json:"beforeX"`
	BeforeY string `json:"beforeY"`
	AfterX  string `json:"afterX"`
	AfterY  string `json:"afterY"`
	Piece   string `json:"piece"`
}

type Limits struct {
	History int
	Chat    int
	Moves   int
}

func (l Limits) withDefaults() Limits {
	if l.History <= 0 {
		l.History = DefaultHistoryLimit
	}
	if l.Chat <= 0 {
		l.Chat = DefaultChatLimit
	}
	if l.Moves <= 0 {
		l.Moves = DefaultMoveLimit
	}
	return l
}

// Session is the mutable state of one room. All methods are safe for
// concurrent use; each session carries its own lock so rooms never block
// each other.
type Session struct {
	mu     sync.Mutex
	limits Limits

	history []string // newest last
	cursor  int      // index into history, -1 when empty

	comments []Comment
	moves    []Move
}

func newSession(limits Limits) *Session {
	return &Session{limits: limits.withDefaults(), cursor: -1}
}

// RecordPosition appends text to the history and resets the cursor to it.
// Recording the position already under the cursor is a no-op. Entries past
// the cursor (undone positions) are discarded first, and the oldest entry
// is evicted once the history exceeds its cap.
func (s *Session) RecordPosition(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor >= 0 && s.history[s.cursor] == text {
		return
	}
	s.history = s.history[:s.cursor+1]
	s.history = append(s.history, text)
	if len(s.history) > s.limits.History {
		s.history = s.history[1:]
	}
	s.cursor = len(s.history) - 1
}

// Undo moves the cursor one entry back and returns that position.
func (s *Session) Undo() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor <= 0 {
		return "", false
	}
	s.cursor--
	return s.history[s.cursor], true
}

// Redo moves the cursor one entry forward and returns that position.
func (s *Session) Redo() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor < 0 || s.cursor >= len(s.history)-1 {
		return "", false
	}
	s.cursor++
	return s.history[s.cursor], true
}

// Current returns the position under the cursor.
func (s *Session) Current() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor < 0 {
		return "", false
	}
	return s.history[s.cursor], true
}

func (s *Session) AddComment(c Comment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments = append(s.comments, c)
	if len(s.comments) > s.limits.Chat {
		s.comments = s.comments[1:]
	}
}

func (s *Session) AddMove(m Move) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.moves = append(s.moves, m)
	if len(s.moves) > s.limits.Moves {
		s.moves = s.moves[1:]
	}
}

func (s *Session) Comments() []Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Comment, len(s.comments))
	copy(out, s.comments)
	return out
}

func (s *Session) Moves() []Move {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Move, len(s.moves))
	copy(out, s.moves)
	return out
}

// Snapshot is a read-only view of a session for the status surface.
type Snapshot struct {
	HistoryLen int
	Comments   int
	Moves      int
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{HistoryLen: len(s.history), Comments: len(s.comments), Moves: len(s.moves)}
}

// Manager hands out sessions by room ID, creating them on first access.
type Manager struct {
	limits   Limits
	sessions sync.Map // roomID -> *Session
}

func NewManager(limits Limits) *Manager {
	return &Manager{limits: limits.withDefaults()}
}

// Session returns the session for roomID, creating it if needed.
func (m *Manager) Session(roomID string) *Session {
	if v, ok := m.sessions.Load(roomID); ok {
		return v.(*Session)
	}
	v, _ := m.sessions.LoadOrStore(roomID, newSession(m.limits))
	return v.(*Session)
}

// Peek returns the session for roomID without creating one.
func (m *Manager) Peek(roomID string) (*Session, bool) {
	v, ok := m.sessions.Load(roomID)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

// Len reports how many rooms currently have in-process session state.
func (m *Manager) Len() int {
	n := 0
	m.sessions.Range(func(_, _ any) bool { n++; return true })
	return n
}
