package room

import (
	"fmt"
	"testing"
	"time"
)

func TestTimestampFormat(t *testing.T) {
	// 00:05:09 UTC is 9:05:09 JST
	ts := Timestamp(time.Date(2024, 3, 1, 0, 5, 9, 0, time.UTC))
	if ts != "9:05:09" {
		t.Fatalf("Timestamp = %q, want 9:05:09", ts)
	}
}

func TestRecordPositionAndCursor(t *testing.T) {
	s := newSession(Limits{})
	s.RecordPosition("a")
	s.RecordPosition("b")
	s.RecordPosition("b") // duplicate of cursor entry, ignored
	s.RecordPosition("c")

	if cur, _ := s.Current(); cur != "c" {
		t.Fatalf("Current = %q, want c", cur)
	}
	if got := s.Snapshot().HistoryLen; got != 3 {
		t.Fatalf("history length = %d, want 3", got)
	}

	if text, ok := s.Undo(); !ok || text != "b" {
		t.Fatalf("Undo = %q/%v, want b/true", text, ok)
	}
	if text, ok := s.Undo(); !ok || text != "a" {
		t.Fatalf("Undo = %q/%v, want a/true", text, ok)
	}
	if _, ok := s.Undo(); ok {
		t.Fatalf("Undo past the oldest entry succeeded")
	}
	if text, ok := s.Redo(); !ok || text != "b" {
		t.Fatalf("Redo = %q/%v, want b/true", text, ok)
	}
}

func TestRecordPositionTruncatesRedoBranch(t *testing.T) {
	s := newSession(Limits{})
	s.RecordPosition("a")
	s.RecordPosition("b")
	s.RecordPosition("c")
	if _, ok := s.Undo(); !ok {
		t.Fatalf("Undo failed")
	}
	s.RecordPosition("d") // discards "c"

	if _, ok := s.Redo(); ok {
		t.Fatalf("Redo succeeded after a new edit")
	}
	if got := s.Snapshot().HistoryLen; got != 3 {
		t.Fatalf("history length = %d, want 3 (a, b, d)", got)
	}
	if cur, _ := s.Current(); cur != "d" {
		t.Fatalf("Current = %q, want d", cur)
	}
}

func TestHistoryEviction(t *testing.T) {
	s := newSession(Limits{History: 10})
	for i := 0; i < 25; i++ {
		s.RecordPosition(fmt.Sprintf("p%d", i))
	}
	if got := s.Snapshot().HistoryLen; got != 10 {
		t.Fatalf("history length = %d, want 10", got)
	}
	if cur, _ := s.Current(); cur != "p24" {
		t.Fatalf("Current = %q, want p24", cur)
	}
}

func TestBoundedChatAndMoves(t *testing.T) {
	m := NewManager(Limits{Chat: 100, Moves: 500})
	s := m.Session("abc123")

	for i := 0; i < 105; i++ {
		s.AddComment(Comment{Time: "0:00:00", Name: "n", Comment: fmt.Sprintf("c%d", i)})
	}
	comments := s.Comments()
	if len(comments) != 100 {
		t.Fatalf("comments length = %d, want 100", len(comments))
	}
	if comments[0].Comment != "c5" || comments[99].Comment != "c104" {
		t.Fatalf("unexpected comment window: %s .. %s", comments[0].Comment, comments[99].Comment)
	}

	for i := 0; i < 501; i++ {
		s.AddMove(Move{Time: "0:00:00", Piece: fmt.Sprintf("P%d", i)})
	}
	moves := s.Moves()
	if len(moves) != 500 {
		t.Fatalf("moves length = %d, want 500", len(moves))
	}
	if moves[0].Piece != "P1" {
		t.Fatalf("oldest move = %s, want P1", moves[0].Piece)
	}
}

func TestManagerReturnsSameSession(t *testing.T) {
	m := NewManager(Limits{})
	if m.Session("r1") != m.Session("r1") {
		t.Fatalf("Session returned different instances for the same room")
	}
	if _, ok := m.Peek("missing"); ok {
		t.Fatalf("Peek created a session")
	}
	if m.Len() != 1 {
		t.Fatalf("Len = %d, want 1", m.Len())
	}
}
