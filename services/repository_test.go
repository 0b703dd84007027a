package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"invite-reward-bot/models"
	"invite-reward-bot/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type failingStore struct {
	storage.Store
	err error
}

func (s failingStore) Save(context.Context, []byte) error { return s.err }

func TestRepositoryStartsEmptyWithoutState(t *testing.T) {
	h := newHarness(t)
	assert.Empty(t, h.repo.GuildIDs())
	assert.Equal(t, 0, h.repo.View("g").Points.Len())
}

func TestRepositoryFailedCallbackInstallsNothing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	boom := errors.New("boom")

	err := h.repo.Transact(ctx, "g", func(state *models.GuildState) error {
		CreditReferral(state, "A", "x", 1)
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, h.repo.View("g").Points.Len())

	_, err = h.store.Load(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound, "nothing was flushed")
}

func TestRepositoryNoChangeSkipsFlush(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.repo.Transact(ctx, "g", func(*models.GuildState) error { return ErrNoChange }))
	_, err := h.store.Load(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRepositoryReloadsFlushedState(t *testing.T) {
	ctx := context.Background()
	store := storage.NewFileStore(filepath.Join(t.TempDir(), "bot_data.json"))
	h := newHarnessWithStore(t, store)
	require.NoError(t, h.repo.Transact(ctx, "g", func(state *models.GuildState) error {
		CreditReferral(state, "zed", "x", 3)
		CreditReferral(state, "amy", "y", 3)
		state.Config.Multiplier = 2
		return nil
	}))

	again := newHarnessWithStore(t, store)
	state := again.repo.View("g")
	assert.Equal(t, 2, state.Config.Multiplier)
	ranking, ok := again.repo.Ranking("g", LeaderboardSize)
	require.True(t, ok)
	assert.Equal(t, []models.LeaderboardEntry{
		{Rank: 1, InviterID: "zed", Points: 3},
		{Rank: 2, InviterID: "amy", Points: 3},
	}, ranking, "tie order survives a restart")
	requireBalanced(t, state)
}

func TestRepositoryViewIsACopy(t *testing.T) {
	h := newHarness(t)
	view := h.repo.View("g")
	view.Points.Set("A", 100)
	assert.False(t, h.repo.View("g").Points.Has("A"))
}

func TestRepositoryFlushFailureKeepsMemoryState(t *testing.T) {
	ctx := context.Background()
	base := storage.NewFileStore(filepath.Join(t.TempDir(), "bot_data.json"))
	repo, err := LoadGuildStateRepository(ctx, failingStore{Store: base, err: errors.New("disk full")}, zap.NewNop().Sugar())
	require.NoError(t, err)

	err = repo.Transact(ctx, "g", func(state *models.GuildState) error {
		CreditReferral(state, "A", "x", 1)
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, 1, repo.View("g").Points.Get("A"))
}

func TestRepositoryRejectsCorruptState(t *testing.T) {
	ctx := context.Background()
	store := storage.NewFileStore(filepath.Join(t.TempDir(), "bot_data.json"))
	require.NoError(t, store.Save(ctx, []byte(`{"rewards_config":{"g":{"ten":"r"}}}`)))
	_, err := LoadGuildStateRepository(ctx, store, zap.NewNop().Sugar())
	assert.Error(t, err)
}

func TestRankingIsCappedAtLeaderboardSize(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.repo.Transact(context.Background(), "g", func(state *models.GuildState) error {
		for i := range 15 {
			CreditReferral(state, fmt.Sprintf("u%d", i), fmt.Sprintf("m%d", i), i+1)
		}
		return nil
	}))

	for _, limit := range []int{0, -3, 50, LeaderboardSize} {
		ranking, ok := h.repo.Ranking("g", limit)
		require.True(t, ok)
		assert.Len(t, ranking, LeaderboardSize, "limit %d", limit)
	}
	ranking, _ := h.repo.Ranking("g", 3)
	assert.Len(t, ranking, 3)
	assert.Equal(t, "u14", ranking[0].InviterID)
}
