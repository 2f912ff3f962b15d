package archive

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
)

type postgres struct {
	db *sql.DB
}

// NewPostgres opens a Postgres-backed repository and ensures the schema.
func NewPostgres(ctx context.Context, databaseURL string) (Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL required for postgres archive")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database ping: %w", err)
	}
	r := &postgres{db: db}
	if err := r.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *postgres) ensureSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS room_moves (
			id BIGSERIAL PRIMARY KEY,
			room_id TEXT NOT NULL,
			before_x TEXT NOT NULL,
			before_y TEXT NOT NULL,
			after_x TEXT NOT NULL,
			after_y TEXT NOT NULL,
			piece TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS room_moves_room_idx ON room_moves (room_id, created_at DESC);
		CREATE TABLE IF NOT EXISTS room_comments (
			id BIGSERIAL PRIMARY KEY,
			room_id TEXT NOT NULL,
			name TEXT NOT NULL,
			comment TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS room_comments_room_idx ON room_comments (room_id, created_at DESC)`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure archive schema: %w", err)
	}
	return nil
}

func (r *postgres) InsertMove(ctx context.Context, rec *MoveRecord) error {
	if rec == nil {
		return fmt.Errorf("nil move record")
	}
	const query = `
		INSERT INTO room_moves (room_id, before_x, before_y, after_x, after_y, piece, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, query,
		rec.RoomID, rec.BeforeX, rec.BeforeY, rec.AfterX, rec.AfterY, rec.Piece, rec.At)
	if err != nil {
		return fmt.Errorf("insert move: %w", err)
	}
	return nil
}

func (r *postgres) InsertComment(ctx context.Context, rec *ChatRecord) error {
	if rec == nil {
		return fmt.Errorf("nil chat record")
	}
	const query = `
		INSERT INTO room_comments (room_id, name, comment, created_at)
		VALUES ($1, $2, $3, $4)`
	_, err := r.db.ExecContext(ctx, query, rec.RoomID, rec.Name, rec.Comment, rec.At)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (r *postgres) RecentMoves(ctx context.Context, roomID string, limit int) ([]*MoveRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT room_id, before_x, before_y, after_x, after_y, piece, created_at
		FROM room_moves
		WHERE room_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("select moves: %w", err)
	}
	defer rows.Close()

	out := make([]*MoveRecord, 0, limit)
	for rows.Next() {
		var rec MoveRecord
		if err := rows.Scan(&rec.RoomID, &rec.BeforeX, &rec.BeforeY, &rec.AfterX, &rec.AfterY, &rec.Piece, &rec.At); err != nil {
			return nil, fmt.Errorf("scan move: %w", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (r *postgres) RecentComments(ctx context.Context, roomID string, limit int) ([]*ChatRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT room_id, name, comment, created_at
		FROM room_comments
		WHERE room_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("select comments: %w", err)
	}
	defer rows.Close()

	out := make([]*ChatRecord, 0, limit)
	for rows.Next() {
		var rec ChatRecord
		if err := rows.Scan(&rec.RoomID, &rec.Name, &rec.Comment, &rec.At); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (r *postgres) Close() error { return r.db.Close() }
