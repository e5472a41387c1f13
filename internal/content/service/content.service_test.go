package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"discordbot/internal/apperr"
	"discordbot/internal/content/model"
	"discordbot/internal/embedding"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memoryRepo keeps records in memory and ranks them by cosine similarity,
// the way the pgvector query does.
type memoryRepo struct {
	mu    sync.Mutex
	rows  map[string]*model.Content
	clock time.Time
	calls int
	// steal, when set, reassigns ownership right before a guarded mutation.
	steal string
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{rows: map[string]*model.Content{}, clock: time.Unix(1_700_000_000, 0)}
}

func (r *memoryRepo) Insert(_ context.Context, c *model.Content) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.clock = r.clock.Add(time.Second)
	c.ID = uuid.NewString()
	c.CreatedAt, c.UpdatedAt = r.clock, r.clock
	stored := *c
	r.rows[c.ID] = &stored
	return nil
}

func (r *memoryRepo) Get(_ context.Context, id string) (*model.Content, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	c, ok := r.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := *c
	out.Embedding = nil
	return &out, nil
}

func (r *memoryRepo) UpdateText(_ context.Context, id, ownerID, text string, vec []float32) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.applySteal(id)
	c, ok := r.rows[id]
	if !ok || c.OwnerID != ownerID {
		return 0, nil
	}
	c.Text, c.Embedding = text, vec
	return 1, nil
}

func (r *memoryRepo) Delete(_ context.Context, id, ownerID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.applySteal(id)
	c, ok := r.rows[id]
	if !ok || c.OwnerID != ownerID {
		return 0, nil
	}
	delete(r.rows, id)
	return 1, nil
}

func (r *memoryRepo) applySteal(id string) {
	if r.steal != "" {
		if c, ok := r.rows[id]; ok {
			c.OwnerID = r.steal
		}
	}
}

func (r *memoryRepo) ListByOwner(_ context.Context, ownerID, serverID string, limit int) ([]model.Content, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	items := []model.Content{}
	for _, c := range r.rows {
		if c.OwnerID == ownerID && c.ServerID == serverID {
			items = append(items, *c)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (r *memoryRepo) Nearest(_ context.Context, serverID string, query []float32, limit int, minSimilarity float64) ([]model.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	matches := []model.Match{}
	for _, c := range r.rows {
		if c.ServerID != serverID {
			continue
		}
		sim := embedding.Cosine(c.Embedding, query)
		if sim >= minSimilarity {
			matches = append(matches, model.Match{Content: *c, Similarity: sim})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].Content.CreatedAt.After(matches[j].Content.CreatedAt)
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

type countingEmbedder struct {
	inner embedding.Embedder
	calls atomic.Int32
	err   error
}

func (e *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	return e.inner.Embed(ctx, text)
}

type recordingNotifier struct {
	events []string
}

func (n *recordingNotifier) Notify(serverID, kind string, _ any) {
	n.events = append(n.events, serverID+" "+kind)
}

func setup() (*ContentService, *memoryRepo, *countingEmbedder) {
	repo := newMemoryRepo()
	emb := &countingEmbedder{inner: embedding.NewHash(256)}
	svc := NewContentService(repo, emb, Options{MinSimilarity: 0.1}, zap.NewNop().Sugar())
	return svc, repo, emb
}

func TestSaveThenSearchExactText(t *testing.T) {
	svc, _, _ := setup()
	ctx := context.Background()

	id, err := svc.Save(ctx, "u1", "s1", "remember to water the plants")
	require.NoError(t, err)
	_, err = svc.Save(ctx, "u2", "s1", "deploy checklist for friday")
	require.NoError(t, err)

	matches, err := svc.Search(ctx, "s1", "remember to water the plants", 5)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, id, matches[0].Content.ID)
	assert.InDelta(t, 1.0, matches[0].Similarity, 1e-6)
}

func TestSearchFindsRelatedWording(t *testing.T) {
	svc, _, _ := setup()
	ctx := context.Background()

	id, err := svc.Save(ctx, "u1", "s1", "rust ownership rules")
	require.NoError(t, err)

	matches, err := svc.Search(ctx, "s1", "ownership in rust", 3)
	require.NoError(t, err)

	var ids []string
	for _, m := range matches {
		ids = append(ids, m.Content.ID)
	}
	assert.Contains(t, ids, id)
}

func TestSearchNeverCrossesServers(t *testing.T) {
	svc, _, _ := setup()
	ctx := context.Background()

	_, err := svc.Save(ctx, "u1", "s2", "rust ownership rules")
	require.NoError(t, err)
	own, err := svc.Save(ctx, "u1", "s1", "rust borrow checker notes")
	require.NoError(t, err)

	matches, err := svc.Search(ctx, "s1", "rust ownership rules", 10)
	require.NoError(t, err)
	for _, m := range matches {
		assert.Equal(t, "s1", m.Content.ServerID)
	}
	require.Len(t, matches, 1)
	assert.Equal(t, own, matches[0].Content.ID)
}

func TestSearchRejectsLimitBeforeAnyCall(t *testing.T) {
	for _, limit := range []int{-1, 0, 11, 100} {
		svc, repo, emb := setup()
		_, err := svc.Search(context.Background(), "s1", "rust ownership rules", limit)
		assert.ErrorIs(t, err, apperr.ErrValidation, "limit %d", limit)
		assert.Zero(t, repo.calls)
		assert.Zero(t, emb.calls.Load())
	}
}

func TestSearchEmptyResultIsNotAnError(t *testing.T) {
	svc, _, _ := setup()
	matches, err := svc.Search(context.Background(), "s1", "anything at all here", 3)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSaveValidation(t *testing.T) {
	svc, repo, emb := setup()

	_, err := svc.Save(context.Background(), "u1", "s1", "  ")
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Contains(t, apperr.UserMessage(err), "at least 10 characters")
	assert.Zero(t, repo.calls)
	assert.Zero(t, emb.calls.Load())
}

func TestSaveEmbeddingFailure(t *testing.T) {
	svc, repo, emb := setup()
	emb.err = errors.New("provider down")

	_, err := svc.Save(context.Background(), "u1", "s1", "rust ownership rules")
	assert.ErrorIs(t, err, apperr.ErrEmbedding)
	assert.Zero(t, repo.calls)
}

func TestEditKeepsEmbeddingInSync(t *testing.T) {
	svc, repo, _ := setup()
	ctx := context.Background()
	hash := embedding.NewHash(256)

	id, err := svc.Save(ctx, "u1", "s1", "rust ownership rules")
	require.NoError(t, err)

	updated, err := svc.Edit(ctx, "u1", id, "go interfaces are implicit")
	require.NoError(t, err)
	assert.Equal(t, "go interfaces are implicit", updated.Text)

	stored := repo.rows[id]
	want, _ := hash.Embed(ctx, stored.Text)
	assert.Equal(t, want, stored.Embedding)

	matches, err := svc.Search(ctx, "s1", "go interfaces are implicit", 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, id, matches[0].Content.ID)
}

func TestEditAndDeleteByNonOwner(t *testing.T) {
	svc, repo, _ := setup()
	ctx := context.Background()

	id, err := svc.Save(ctx, "u1", "s1", "rust ownership rules")
	require.NoError(t, err)
	before := *repo.rows[id]

	_, err = svc.Edit(ctx, "intruder", id, "overwritten by someone else")
	assert.ErrorIs(t, err, apperr.ErrPermission)

	err = svc.Delete(ctx, "intruder", id)
	assert.ErrorIs(t, err, apperr.ErrPermission)

	after := repo.rows[id]
	require.NotNil(t, after)
	assert.Equal(t, before.Text, after.Text)
	assert.Equal(t, before.Embedding, after.Embedding)
}

func TestOwnershipChangeBetweenReadAndWrite(t *testing.T) {
	svc, repo, _ := setup()
	ctx := context.Background()

	id, err := svc.Save(ctx, "u1", "s1", "rust ownership rules")
	require.NoError(t, err)
	repo.steal = "u9"

	_, err = svc.Edit(ctx, "u1", id, "edit that loses the race")
	assert.ErrorIs(t, err, apperr.ErrPermission)
	assert.Equal(t, "rust ownership rules", repo.rows[id].Text)
}

func TestEditAndDeleteMissing(t *testing.T) {
	svc, _, _ := setup()
	ctx := context.Background()
	missing := uuid.NewString()

	_, err := svc.Edit(ctx, "u1", missing, "some replacement text")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	err = svc.Delete(ctx, "u1", missing)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMalformedIDIsRejectedBeforeAnyCall(t *testing.T) {
	svc, repo, emb := setup()

	err := svc.Delete(context.Background(), "u1", "not-a-uuid")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.Edit(context.Background(), "u1", "not-a-uuid", "some replacement text")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Zero(t, repo.calls)
	assert.Zero(t, emb.calls.Load())
}

func TestDelete(t *testing.T) {
	svc, repo, _ := setup()
	ctx := context.Background()

	id, err := svc.Save(ctx, "u1", "s1", "rust ownership rules")
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, "u1", id))
	assert.NotContains(t, repo.rows, id)

	err = svc.Delete(ctx, "u1", id)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestListMineNewestFirst(t *testing.T) {
	svc, _, _ := setup()
	ctx := context.Background()

	first, _ := svc.Save(ctx, "u1", "s1", "first snippet saved here")
	second, _ := svc.Save(ctx, "u1", "s1", "second snippet saved here")
	_, _ = svc.Save(ctx, "u1", "s2", "other server snippet here")
	_, _ = svc.Save(ctx, "u2", "s1", "someone else snippet here")

	items, err := svc.ListMine(ctx, "u1", "s1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, second, items[0].ID)
	assert.Equal(t, first, items[1].ID)
}

func TestNotifierReceivesEvents(t *testing.T) {
	svc, _, _ := setup()
	n := &recordingNotifier{}
	svc.WithNotifier(n)
	ctx := context.Background()

	id, err := svc.Save(ctx, "u1", "s1", "rust ownership rules")
	require.NoError(t, err)
	_, err = svc.Edit(ctx, "u1", id, "rust borrowing rules")
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, "u1", id))

	assert.Equal(t, []string{
		"s1 " + model.EventSaved,
		"s1 " + model.EventEdited,
		"s1 " + model.EventDeleted,
	}, n.events)
}

func TestConcurrentSaves(t *testing.T) {
	svc, repo, _ := setup()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Save(context.Background(), "u1", "s1", "parallel snippet from many users")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Len(t, repo.rows, 20)
}
