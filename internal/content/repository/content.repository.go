package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"discordbot/internal/content/model"

	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
)

// Per-operation deadlines for the hosted database.
const (
	saveTimeout   = 3 * time.Second
	searchTimeout = 5 * time.Second
	editTimeout   = 4 * time.Second
	deleteTimeout = 2 * time.Second
)

type ContentRepository struct {
	DB  *sql.DB
	log *zap.SugaredLogger
}

func NewContentRepository(db *sql.DB, log *zap.SugaredLogger) *ContentRepository {
	return &ContentRepository{DB: db, log: log}
}

// Insert stores c and fills in the generated ID and timestamps.
func (r *ContentRepository) Insert(ctx context.Context, c *model.Content) error {
	ctx, cancel := context.WithTimeout(ctx, saveTimeout)
	defer cancel()

	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO semantic_content (user_id, guild_id, content, embedding, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id, created_at, updated_at`,
		c.OwnerID, c.ServerID, c.Text, pgvector.NewVector(c.Embedding),
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		r.log.Errorf("Failed to save content for user %s in guild %s: %v", c.OwnerID, c.ServerID, err)
	}
	return err
}

// Get returns sql.ErrNoRows when the id does not exist.
func (r *ContentRepository) Get(ctx context.Context, id string) (*model.Content, error) {
	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	var c model.Content
	err := r.DB.QueryRowContext(ctx, `
		SELECT id, user_id, guild_id, content, created_at, updated_at
		FROM semantic_content WHERE id = $1`, id,
	).Scan(&c.ID, &c.OwnerID, &c.ServerID, &c.Text, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			r.log.Errorf("Failed to get content %s: %v", id, err)
		}
		return nil, err
	}
	return &c, nil
}

// UpdateText replaces text and embedding in one statement, guarded by the
// owner. It reports how many rows changed.
func (r *ContentRepository) UpdateText(ctx context.Context, id, ownerID, text string, embedding []float32) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, editTimeout)
	defer cancel()

	result, err := r.DB.ExecContext(ctx, `
		UPDATE semantic_content SET content = $1, embedding = $2, updated_at = NOW()
		WHERE id = $3 AND user_id = $4`,
		text, pgvector.NewVector(embedding), id, ownerID)
	if err != nil {
		r.log.Errorf("Failed to update content %s: %v", id, err)
		return 0, err
	}
	return result.RowsAffected()
}

func (r *ContentRepository) Delete(ctx context.Context, id, ownerID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, deleteTimeout)
	defer cancel()

	result, err := r.DB.ExecContext(ctx, "DELETE FROM semantic_content WHERE id = $1 AND user_id = $2", id, ownerID)
	if err != nil {
		r.log.Errorf("Failed to delete content %s: %v", id, err)
		return 0, err
	}
	return result.RowsAffected()
}

// ListByOwner returns the owner's content in one server, newest first.
func (r *ContentRepository) ListByOwner(ctx context.Context, ownerID, serverID string, limit int) ([]model.Content, error) {
	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, user_id, guild_id, content, created_at, updated_at
		FROM semantic_content
		WHERE user_id = $1 AND guild_id = $2
		ORDER BY created_at DESC
		LIMIT $3`, ownerID, serverID, limit)
	if err != nil {
		r.log.Errorf("Failed to list content for user %s in guild %s: %v", ownerID, serverID, err)
		return nil, err
	}
	defer rows.Close()

	items := []model.Content{}
	for rows.Next() {
		var c model.Content
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.ServerID, &c.Text, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// Nearest runs the cosine-distance search inside one server. Ordering and
// truncation happen in SQL; ties go to the newer row.
func (r *ContentRepository) Nearest(ctx context.Context, serverID string, query []float32, limit int, minSimilarity float64) ([]model.Match, error) {
	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, user_id, guild_id, content, created_at, updated_at,
			1 - (embedding <=> $1) AS similarity
		FROM semantic_content
		WHERE guild_id = $2 AND 1 - (embedding <=> $1) >= $3
		ORDER BY embedding <=> $1, created_at DESC
		LIMIT $4`,
		pgvector.NewVector(query), serverID, minSimilarity, limit)
	if err != nil {
		r.log.Errorf("Failed to search content in guild %s: %v", serverID, err)
		return nil, err
	}
	defer rows.Close()

	matches := []model.Match{}
	for rows.Next() {
		var m model.Match
		c := &m.Content
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.ServerID, &c.Text, &c.CreatedAt, &c.UpdatedAt, &m.Similarity); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
