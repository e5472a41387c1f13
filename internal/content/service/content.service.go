package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"discordbot/internal/apperr"
	"discordbot/internal/content/model"
	"discordbot/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Search limits accepted from callers.
const (
	MinSearchLimit = 1
	MaxSearchLimit = 10
)

// Repository is the content store. *repository.ContentRepository satisfies it.
type Repository interface {
	Insert(ctx context.Context, c *model.Content) error
	Get(ctx context.Context, id string) (*model.Content, error)
	UpdateText(ctx context.Context, id, ownerID, text string, embedding []float32) (int64, error)
	Delete(ctx context.Context, id, ownerID string) (int64, error)
	ListByOwner(ctx context.Context, ownerID, serverID string, limit int) ([]model.Content, error)
	Nearest(ctx context.Context, serverID string, query []float32, limit int, minSimilarity float64) ([]model.Match, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Notifier receives content events for the activity feed.
type Notifier interface {
	Notify(serverID, kind string, payload any)
}

type Options struct {
	MinSimilarity float64
	ListLimit     int
}

type ContentService struct {
	repo     Repository
	embedder Embedder
	notifier Notifier
	opts     Options
	log      *zap.SugaredLogger
}

func NewContentService(repo Repository, embedder Embedder, opts Options, log *zap.SugaredLogger) *ContentService {
	if opts.ListLimit <= 0 {
		opts.ListLimit = 50
	}
	return &ContentService{repo: repo, embedder: embedder, opts: opts, log: log}
}

// WithNotifier sets where content events are published. A nil notifier
// disables publishing.
func (s *ContentService) WithNotifier(n Notifier) *ContentService {
	s.notifier = n
	return s
}

// Save validates text, embeds it and stores a new record. It returns the
// generated id.
func (s *ContentService) Save(ctx context.Context, ownerID, serverID, text string) (string, error) {
	start := time.Now()
	text = strings.TrimSpace(text)
	if err := validate(text); err != nil {
		return "", err
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		s.log.Errorf("Embedding failed while saving for user %s: %v", ownerID, err)
		return "", apperr.Embedding(err)
	}

	c := &model.Content{OwnerID: ownerID, ServerID: serverID, Text: text, Embedding: vec}
	if err := s.repo.Insert(ctx, c); err != nil {
		return "", apperr.Storage("save content", err)
	}

	logger.Performance(s.log, "content.save", time.Since(start), "content_id", c.ID, "length", len(text))
	s.publish(serverID, model.EventSaved, c)
	return c.ID, nil
}

// Search returns up to limit records from serverID closest to query, in the
// order the store ranked them.
func (s *ContentService) Search(ctx context.Context, serverID, query string, limit int) ([]model.Match, error) {
	if limit < MinSearchLimit || limit > MaxSearchLimit {
		return nil, apperr.Validation(fmt.Sprintf("limit must be between %d and %d", MinSearchLimit, MaxSearchLimit))
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.Validation("Search query cannot be empty")
	}

	start := time.Now()
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.log.Errorf("Embedding failed while searching guild %s: %v", serverID, err)
		return nil, apperr.Embedding(err)
	}

	matches, err := s.repo.Nearest(ctx, serverID, vec, limit, s.opts.MinSimilarity)
	if err != nil {
		return nil, apperr.Storage("search content", err)
	}

	logger.Performance(s.log, "content.search", time.Since(start), "guild_id", serverID, "results", len(matches))
	return matches, nil
}

// Edit replaces the text of a record owned by requesterID and regenerates
// its embedding. Text and embedding are written in the same statement.
func (s *ContentService) Edit(ctx context.Context, requesterID, contentID, newText string) (*model.Content, error) {
	start := time.Now()
	if err := validateID(contentID); err != nil {
		return nil, err
	}
	newText = strings.TrimSpace(newText)
	if err := validate(newText); err != nil {
		return nil, err
	}

	existing, err := s.owned(ctx, requesterID, contentID)
	if err != nil {
		return nil, err
	}

	vec, err := s.embedder.Embed(ctx, newText)
	if err != nil {
		s.log.Errorf("Embedding failed while editing %s: %v", contentID, err)
		return nil, apperr.Embedding(err)
	}

	n, err := s.repo.UpdateText(ctx, contentID, requesterID, newText, vec)
	if err != nil {
		return nil, apperr.Storage("edit content", err)
	}
	if n == 0 {
		return nil, s.explainMiss(ctx, requesterID, contentID)
	}

	existing.Text = newText
	existing.Embedding = vec
	logger.Performance(s.log, "content.edit", time.Since(start), "content_id", contentID)
	s.publish(existing.ServerID, model.EventEdited, existing)
	return existing, nil
}

// Delete removes a record owned by requesterID.
func (s *ContentService) Delete(ctx context.Context, requesterID, contentID string) error {
	start := time.Now()
	if err := validateID(contentID); err != nil {
		return err
	}

	existing, err := s.owned(ctx, requesterID, contentID)
	if err != nil {
		return err
	}

	n, err := s.repo.Delete(ctx, contentID, requesterID)
	if err != nil {
		return apperr.Storage("delete content", err)
	}
	if n == 0 {
		return s.explainMiss(ctx, requesterID, contentID)
	}

	logger.Performance(s.log, "content.delete", time.Since(start), "content_id", contentID)
	s.publish(existing.ServerID, model.EventDeleted, existing)
	return nil
}

// ListMine returns the owner's records in serverID, newest first.
func (s *ContentService) ListMine(ctx context.Context, ownerID, serverID string) ([]model.Content, error) {
	items, err := s.repo.ListByOwner(ctx, ownerID, serverID, s.opts.ListLimit)
	if err != nil {
		return nil, apperr.Storage("list content", err)
	}
	return items, nil
}

func (s *ContentService) owned(ctx context.Context, requesterID, contentID string) (*model.Content, error) {
	c, err := s.repo.Get(ctx, contentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound(fmt.Sprintf("content %s does not exist", contentID))
	}
	if err != nil {
		return nil, apperr.Storage("load content", err)
	}
	if c.OwnerID != requesterID {
		s.log.Warnf("User %s tried to modify content %s owned by %s", requesterID, contentID, c.OwnerID)
		return nil, apperr.Permission(fmt.Sprintf("content %s is owned by another user", contentID))
	}
	return c, nil
}

// explainMiss runs after a guarded mutation matched no rows: the record was
// deleted or changed hands between the read and the write.
func (s *ContentService) explainMiss(ctx context.Context, requesterID, contentID string) error {
	_, err := s.owned(ctx, requesterID, contentID)
	if err != nil {
		return err
	}
	return apperr.NotFound(fmt.Sprintf("content %s does not exist", contentID))
}

func (s *ContentService) publish(serverID, kind string, c *model.Content) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(serverID, kind, model.Event{
		ID:       c.ID,
		OwnerID:  c.OwnerID,
		ServerID: c.ServerID,
		Preview:  c.Preview(),
	})
}

func validate(text string) error {
	v := model.ValidateText(text)
	if !v.Valid() {
		return apperr.Validation("invalid content", v.Errors...)
	}
	return nil
}

func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperr.Validation("Invalid content ID format. Please provide a valid UUID.")
	}
	return nil
}
