package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"invite-reward-bot/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetRewardTiersReplacesSet(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.admin.SetRewardTiers(ctx, "g", []TierInput{{RoleID: "old", Threshold: 3}})
	require.NoError(t, err)

	tiers, err := h.admin.SetRewardTiers(ctx, "g", []TierInput{
		{RoleID: "gold", Threshold: 20},
		{RoleID: "silver", Threshold: 0},
		{RoleID: "bronze", Threshold: 5},
	})
	require.NoError(t, err)
	assert.Len(t, tiers, 2)

	cfg := h.repo.View("g").Config
	assert.Equal(t, []models.RewardTier{
		{Threshold: 5, RoleID: "bronze"},
		{Threshold: 20, RoleID: "gold"},
	}, cfg.RewardTiers)
}

func TestSetRewardTiersValidation(t *testing.T) {
	h := newHarness(t)
	_, err := h.admin.SetRewardTiers(context.Background(), "g", nil)
	assert.Error(t, err)
	_, err = h.admin.SetRewardTiers(context.Background(), "g", make([]TierInput, 4))
	assert.Error(t, err)
}

func TestSetMultiplierClamps(t *testing.T) {
	h := newHarness(t)
	got, err := h.admin.SetMultiplier(context.Background(), "g", -3)
	require.NoError(t, err)
	assert.Equal(t, 1, got)
	assert.Equal(t, 1, h.repo.View("g").Config.Multiplier)
}

func TestAdminChangesLeaveLedgerAlone(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.repo.Transact(ctx, "g", func(state *models.GuildState) error {
		CreditReferral(state, "A", "x", 4)
		return nil
	}))

	_, err := h.admin.SetMultiplier(ctx, "g", 9)
	require.NoError(t, err)
	_, err = h.admin.SetRewardTiers(ctx, "g", []TierInput{{RoleID: "r", Threshold: 2}})
	require.NoError(t, err)

	assert.Equal(t, 4, h.repo.View("g").Points.Get("A"))
	assert.Empty(t, h.gw.roles, "past crossings are never re-evaluated")
}

func TestAnnouncementNeedsTiers(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, err := h.admin.Announcement("g", "")
	require.ErrorIs(t, err, ErrNotConfigured)

	_, err = h.admin.SetRewardTiers(ctx, "g", []TierInput{{RoleID: "r1", Threshold: 10}, {RoleID: "r2", Threshold: 30}})
	require.NoError(t, err)
	_, err = h.admin.SetMultiplier(ctx, "g", 2)
	require.NoError(t, err)

	embed, err := h.admin.Announcement("g", "https://cdn/icon.png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/icon.png", embed.ThumbnailURL)
	assert.Contains(t, embed.Description, "x2 event is live")
	assert.Contains(t, embed.Description, "🥉 Tier 1: reach `10` points ➔ **<@&r1>**")
	assert.Contains(t, embed.Description, "younger than 3 days")
}

func TestUserReport(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.repo.Transact(ctx, "g", func(state *models.GuildState) error {
		for i := 0; i < 23; i++ {
			CreditReferral(state, "A", fmt.Sprintf("m%02d", i), 1)
		}
		RecordFakeInvite(state, "A")
		return nil
	}))

	embed := h.admin.UserReport("g", "A", "alice")
	assert.Equal(t, "🔍 History: alice", embed.Title)
	require.Len(t, embed.Fields, 3)
	assert.Equal(t, "`23` points", embed.Fields[0].Value)
	assert.Equal(t, "`1` times", embed.Fields[1].Value)
	assert.Contains(t, embed.Fields[2].Value, "<@m19>")
	assert.NotContains(t, embed.Fields[2].Value, "<@m20>")
	assert.Contains(t, embed.Fields[2].Value, "...and 3 more")

	empty := h.admin.UserReport("g", "nobody", "bob")
	assert.Contains(t, empty.Fields[2].Value, "Nobody yet")
}

func TestSendBackup(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.admin.SendBackup(context.Background(), "admin"))
	assert.Equal(t, []string{"admin"}, h.gw.dms)

	h.gw.dmErr = ErrPermissionDenied
	err := h.admin.SendBackup(context.Background(), "admin")
	assert.True(t, errors.Is(err, ErrPermissionDenied))
}

func TestResetReferrerCommand(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.repo.Transact(ctx, "g", func(state *models.GuildState) error {
		CreditReferral(state, "A", "x", 2)
		CreditReferral(state, "B", "y", 1)
		return nil
	}))

	n, err := h.admin.ResetReferrer(ctx, "g", "A")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	requireBalanced(t, h.repo.View("g"))

	n, err = h.admin.ResetReferrer(ctx, "g", "stranger")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSetupLeaderboardAndRecreate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.repo.Transact(ctx, "g", func(state *models.GuildState) error {
		CreditReferral(state, "A", "x", 2)
		return nil
	}))

	require.NoError(t, h.admin.SetupLeaderboard(ctx, "g", "board"))
	loc := h.repo.View("g").Config.Leaderboard
	require.NotNil(t, loc)
	assert.Equal(t, models.Snowflake("m1"), loc.MessageID)
	require.Len(t, h.gw.edits, 1)
	assert.Contains(t, h.gw.edits[0].Embed.Description, "<@A>")

	// The message was deleted by someone.
	h.gw.editErr = ErrStaleReference
	require.NoError(t, h.referral.Leaderboard.Publish(ctx, "g"))
	loc = h.repo.View("g").Config.Leaderboard
	assert.Equal(t, models.Snowflake("m2"), loc.MessageID)
	assert.Equal(t, models.Snowflake("board"), loc.ChannelID)

	h.gw.editErr = ErrPermissionDenied
	assert.ErrorIs(t, h.referral.Leaderboard.Publish(ctx, "g"), ErrPermissionDenied)
}

// goneMessageGateway reports one message id as deleted, slowly, so concurrent
// publishes overlap on it.
type goneMessageGateway struct {
	*fakeGateway
	gone string
}

func (g *goneMessageGateway) EditEmbed(ctx context.Context, channelID, messageID string, embed models.Embed) error {
	if messageID == g.gone {
		time.Sleep(30 * time.Millisecond)
		return ErrStaleReference
	}
	return g.fakeGateway.EditEmbed(ctx, channelID, messageID, embed)
}

func TestConcurrentPublishRecreatesDeletedBoardOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.repo.Transact(ctx, "g", func(state *models.GuildState) error {
		CreditReferral(state, "A", "x", 2)
		state.Config.Leaderboard = &models.LeaderboardLocation{ChannelID: "board", MessageID: "gone"}
		return nil
	}))
	publisher := NewLeaderboardPublisher(h.repo, &goneMessageGateway{fakeGateway: h.gw, gone: "gone"}, h.referral.Log)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, publisher.Publish(ctx, "g"))
		}()
	}
	wg.Wait()

	assert.Equal(t, []string{"📊 Leaderboard: Top Inviters"}, h.gw.sentTitles("board"), "one replacement board")
	assert.Equal(t, models.Snowflake("m1"), h.repo.View("g").Config.Leaderboard.MessageID)
	require.Len(t, h.gw.edits, 3)
	for _, e := range h.gw.edits {
		assert.Equal(t, "m1", e.MessageID)
	}
}

func TestPublishWithoutLeaderboardIsSkipped(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.referral.Leaderboard.Publish(context.Background(), "g"))
	assert.Empty(t, h.gw.sent)
}
