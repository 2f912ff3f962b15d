package archive

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestMemoryInsertAndRecent(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := repo.InsertMove(ctx, &MoveRecord{
			RoomID: "abc123",
			Piece:  fmt.Sprintf("P%d", i),
			At:     time.Now(),
		})
		if err != nil {
			t.Fatalf("InsertMove: %v", err)
		}
	}
	if err := repo.InsertMove(ctx, &MoveRecord{RoomID: "other", Piece: "L"}); err != nil {
		t.Fatalf("InsertMove: %v", err)
	}

	moves, err := repo.RecentMoves(ctx, "abc123", 3)
	if err != nil {
		t.Fatalf("RecentMoves: %v", err)
	}
	if len(moves) != 3 {
		t.Fatalf("len = %d, want 3", len(moves))
	}
	if moves[0].Piece != "P4" {
		t.Fatalf("newest first expected, got %s", moves[0].Piece)
	}

	if err := repo.InsertComment(ctx, &ChatRecord{RoomID: "abc123", Name: "a", Comment: "hi"}); err != nil {
		t.Fatalf("InsertComment: %v", err)
	}
	comments, err := repo.RecentComments(ctx, "abc123", 10)
	if err != nil {
		t.Fatalf("RecentComments: %v", err)
	}
	if len(comments) != 1 || comments[0].Comment != "hi" {
		t.Fatalf("comments = %+v", comments)
	}
}
