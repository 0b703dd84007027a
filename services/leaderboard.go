package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"invite-reward-bot/models"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// LeaderboardSize is how many referrers the leaderboard shows.
const LeaderboardSize = 10

const leaderboardColor = 0xFFD700

// Rank orders the ledger by points, highest first. Equal balances keep first-credited
// order. At most limit entries are returned; limit <= 0 means all.
func Rank(ledger *models.PointLedger, limit int) []models.LeaderboardEntry {
	var entries []models.LeaderboardEntry
	ledger.Each(func(id string, points int) bool {
		entries = append(entries, models.LeaderboardEntry{InviterID: id, Points: points})
		return true
	})
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Points > entries[j].Points
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

var medals = []string{"🥇", "🥈", "🥉"}

// RenderLeaderboard builds the leaderboard embed. Zero-point rows are left out.
func RenderLeaderboard(entries []models.LeaderboardEntry) models.Embed {
	p := message.NewPrinter(language.English)

	var b strings.Builder
	b.WriteString("🏆 **Top 10 inviters**\n\n")
	rows := 0
	for _, e := range entries {
		if e.Points <= 0 {
			continue
		}
		medal := "🏅"
		if e.Rank <= len(medals) {
			medal = medals[e.Rank-1]
		}
		b.WriteString(p.Sprintf("%s **#%d** <@%s> ➔ `%d` points\n", medal, e.Rank, e.InviterID, e.Points))
		rows++
	}
	if rows == 0 {
		b.WriteString("Nobody has brought a friend in yet. The #1 spot is up for grabs! 🚀")
	}

	return models.Embed{
		Title:       "📊 Leaderboard: Top Inviters",
		Description: b.String(),
		Color:       leaderboardColor,
	}
}

// LeaderboardPublisher keeps each guild's leaderboard message in sync with its ledger.
// Publishes for one guild run one at a time, so a deleted message is replaced once.
type LeaderboardPublisher struct {
	Repo    *GuildStateRepository
	Gateway Gateway
	Log     *zap.SugaredLogger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func NewLeaderboardPublisher(repo *GuildStateRepository, gw Gateway, log *zap.SugaredLogger) *LeaderboardPublisher {
	return &LeaderboardPublisher{Repo: repo, Gateway: gw, Log: log}
}

// lockGuild takes the guild's publish lock and returns its unlock. It is never taken
// while holding the repository's guild lock.
func (p *LeaderboardPublisher) lockGuild(guildID string) func() {
	p.locksMu.Lock()
	if p.locks == nil {
		p.locks = make(map[string]*sync.Mutex)
	}
	mu, ok := p.locks[guildID]
	if !ok {
		mu = &sync.Mutex{}
		p.locks[guildID] = mu
	}
	p.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// Publish re-renders the guild's leaderboard. A deleted message is sent again and the
// stored reference updated. Guilds without a leaderboard are skipped.
func (p *LeaderboardPublisher) Publish(ctx context.Context, guildID string) error {
	defer p.lockGuild(guildID)()
	return p.publish(ctx, guildID)
}

// publish expects the guild's publish lock to be held.
func (p *LeaderboardPublisher) publish(ctx context.Context, guildID string) error {
	loc, entries, ok := p.Repo.Leaderboard(guildID, LeaderboardSize)
	if !ok {
		return nil
	}
	embed := RenderLeaderboard(entries)

	if !loc.MessageID.IsZero() {
		err := p.Gateway.EditEmbed(ctx, loc.ChannelID.String(), loc.MessageID.String(), embed)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrStaleReference) {
			return fmt.Errorf("edit leaderboard in guild %s: %w", guildID, err)
		}
		p.Log.Infow("[LEADERBOARD] message gone, sending a new one", "guild", guildID, "channel", loc.ChannelID)
	}

	msgID, err := p.Gateway.SendEmbed(ctx, loc.ChannelID.String(), embed)
	if err != nil {
		return fmt.Errorf("send leaderboard in guild %s: %w", guildID, err)
	}
	return p.Repo.Transact(ctx, guildID, func(state *models.GuildState) error {
		cur := state.Config.Leaderboard
		// An admin may have moved the board while we were sending.
		if cur == nil || cur.ChannelID != loc.ChannelID {
			return ErrNoChange
		}
		cur.MessageID = models.Snowflake(msgID)
		return nil
	})
}

// PublishQuietly runs Publish and logs failures.
func (p *LeaderboardPublisher) PublishQuietly(ctx context.Context, guildID string) {
	if err := p.Publish(ctx, guildID); err != nil {
		p.Log.Warnw("[LEADERBOARD] ⚠️ refresh failed", "guild", guildID, "error", err)
	}
}
