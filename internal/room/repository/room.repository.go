package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"discordbot/internal/room/model"

	"go.uber.org/zap"
)

const queryTimeout = 3 * time.Second

type RoomRepository struct {
	DB  *sql.DB
	log *zap.SugaredLogger
}

func NewRoomRepository(db *sql.DB, log *zap.SugaredLogger) *RoomRepository {
	return &RoomRepository{DB: db, log: log}
}

// Get returns nil, nil when the server has no room.
func (r *RoomRepository) Get(ctx context.Context, serverID string) (*model.Room, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var room model.Room
	err := r.DB.QueryRowContext(ctx,
		"SELECT guild_id, room_url, created_by, created_at FROM watch_rooms WHERE guild_id = $1", serverID,
	).Scan(&room.ServerID, &room.URL, &room.CreatedBy, &room.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Errorf("Failed to get watch room for guild %s: %v", serverID, err)
		return nil, err
	}
	return &room, nil
}

// Upsert replaces the server's room. Concurrent writers resolve last-write-wins.
func (r *RoomRepository) Upsert(ctx context.Context, room model.Room) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO watch_rooms (guild_id, room_url, created_by, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (guild_id) DO UPDATE
		SET room_url = EXCLUDED.room_url, created_by = EXCLUDED.created_by, created_at = EXCLUDED.created_at`,
		room.ServerID, room.URL, room.CreatedBy, room.CreatedAt)
	if err != nil {
		r.log.Errorf("Failed to store watch room for guild %s: %v", room.ServerID, err)
	}
	return err
}

// Delete removes the server's room and reports whether one existed.
func (r *RoomRepository) Delete(ctx context.Context, serverID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.DB.ExecContext(ctx, "DELETE FROM watch_rooms WHERE guild_id = $1", serverID)
	if err != nil {
		r.log.Errorf("Failed to delete watch room for guild %s: %v", serverID, err)
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}
