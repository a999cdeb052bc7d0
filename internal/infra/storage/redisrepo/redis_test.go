package redisrepo_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewkit/engine/internal/domain/entity"
	"github.com/reviewkit/engine/internal/domain/usecase"
	"github.com/reviewkit/engine/internal/infra/storage/redisrepo"
)

func newStorage(t *testing.T) *redisrepo.Storage {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return redisrepo.NewStorage(rdb, "test")
}

func samplePR(id string, createdAt time.Time) entity.PullRequest {
	return entity.PullRequest{
		ID:           id,
		Title:        "T",
		SourceBranch: "feat",
		TargetBranch: "main",
		Files: []entity.FileChange{
			{Path: "a.go", ChangeType: entity.ChangeAdded, LinesAdded: 1},
		},
		State:             entity.StateDraft,
		RequiredApprovals: 2,
		Participants: entity.Participants{
			AuthorID:     "author",
			ReviewerIDs:  []string{"rev"},
			MaintainerID: "maint",
		},
		CreatedAt: createdAt.UTC(),
		UpdatedAt: createdAt.UTC(),
	}
}

func TestSaveAndGet(t *testing.T) {
	s := newStorage(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, samplePR("pr-1", time.Now())))

	got, err := s.Get(ctx, "pr-1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)
	assert.Equal(t, "T", got.Title)
	assert.Equal(t, []string{"rev"}, got.Participants.ReviewerIDs)

	assert.ErrorIs(t, s.Save(ctx, samplePR("pr-1", time.Now())), usecase.ErrPRExists)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, usecase.ErrPRNotFound)
}

// Каждый сохранённый агрегат виден и через Get, и через List:
// документ и индекс фиксируются одной транзакцией.
func TestSaveKeepsIndexConsistent(t *testing.T) {
	s := newStorage(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, samplePR("pr-1", time.Now())))

	_, err := s.Get(ctx, "pr-1")
	require.NoError(t, err)

	all, err := s.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "pr-1", all[0].ID)

	// Повторный Save не плодит записей в индексе.
	assert.ErrorIs(t, s.Save(ctx, samplePR("pr-1", time.Now())), usecase.ErrPRExists)

	all, err = s.List(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRoundTripPreservesChildCollections(t *testing.T) {
	s := newStorage(t)
	ctx := context.Background()

	now := time.Now().UTC()
	pr := samplePR("pr-1", now)
	pr.Reviews = []entity.Review{{
		ID:         "rv-1",
		ReviewerID: "rev",
		Verdict:    entity.VerdictApprove,
		Summary:    "ok",
		Comments: []entity.ReviewComment{
			{ID: "c-1", FilePath: "a.go", LineNumber: 3, Text: "nice", CreatedAt: now},
		},
		SubmittedAt: now,
	}}
	pr.Discussion = []entity.ReviewComment{
		{ID: "c-2", FilePath: "a.go", LineNumber: 5, Text: "hm", CreatedAt: now},
	}
	require.NoError(t, s.Save(ctx, pr))

	got, err := s.Get(ctx, "pr-1")
	require.NoError(t, err)
	require.Len(t, got.Reviews, 1)
	assert.Equal(t, entity.VerdictApprove, got.Reviews[0].Verdict)
	require.Len(t, got.Reviews[0].Comments, 1)
	assert.Equal(t, 3, got.Reviews[0].Comments[0].LineNumber)
	require.Len(t, got.Discussion, 1)
	assert.Equal(t, "hm", got.Discussion[0].Text)
}

func TestUpdateBumpsVersion(t *testing.T) {
	s := newStorage(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, samplePR("pr-1", time.Now())))

	got, err := s.Get(ctx, "pr-1")
	require.NoError(t, err)

	got.State = entity.StateOpen
	require.NoError(t, s.Update(ctx, got))

	after, err := s.Get(ctx, "pr-1")
	require.NoError(t, err)
	assert.Equal(t, 2, after.Version)
	assert.Equal(t, entity.StateOpen, after.State)
}

func TestUpdateVersionConflict(t *testing.T) {
	s := newStorage(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, samplePR("pr-1", time.Now())))

	first, err := s.Get(ctx, "pr-1")
	require.NoError(t, err)
	second, err := s.Get(ctx, "pr-1")
	require.NoError(t, err)

	first.State = entity.StateOpen
	require.NoError(t, s.Update(ctx, first))

	second.State = entity.StateClosed
	assert.ErrorIs(t, s.Update(ctx, second), usecase.ErrVersionConflict)
}

func TestUpdateMissing(t *testing.T) {
	s := newStorage(t)
	err := s.Update(context.Background(), samplePR("ghost", time.Now()))
	assert.ErrorIs(t, err, usecase.ErrPRNotFound)
}

func TestListFilterAndOrder(t *testing.T) {
	s := newStorage(t)
	ctx := context.Background()

	base := time.Now()
	older := samplePR("pr-old", base.Add(-time.Hour))
	newer := samplePR("pr-new", base)
	newer.State = entity.StateOpen

	require.NoError(t, s.Save(ctx, newer))
	require.NoError(t, s.Save(ctx, older))

	all, err := s.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "pr-old", all[0].ID)
	assert.Equal(t, "pr-new", all[1].ID)

	draft := entity.StateDraft
	filtered, err := s.List(ctx, &draft)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "pr-old", filtered[0].ID)
}
