package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema returns the DDL for a vector column of the given dimension.
func Schema(dimensions int) []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS semantic_content (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id TEXT NOT NULL,
			guild_id TEXT NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, dimensions),
		`CREATE INDEX IF NOT EXISTS semantic_content_owner_idx
			ON semantic_content (guild_id, user_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS semantic_content_embedding_idx
			ON semantic_content USING hnsw (embedding vector_cosine_ops)`,
		`CREATE TABLE IF NOT EXISTS watch_rooms (
			guild_id TEXT PRIMARY KEY,
			room_url TEXT NOT NULL,
			created_by TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
	}
}

// Migrate applies Schema inside one transaction.
func Migrate(ctx context.Context, db *sql.DB, dimensions int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range Schema(dimensions) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return tx.Commit()
}
