package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"invite-reward-bot/models"
	"invite-reward-bot/storage"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sentEmbed struct {
	ChannelID string
	MessageID string
	Embed     models.Embed
}

type roleGrant struct {
	GuildID, UserID, RoleID string
}

// fakeGateway records every outbound request and serves invite listings from memory.
type fakeGateway struct {
	mu sync.Mutex

	invites   map[string]models.LinkSnapshot
	inviteErr error
	boosters  map[string]bool

	kickErr error
	roleErr error
	sendErr error
	editErr error
	dmErr   error

	kicks  []string
	roles  []roleGrant
	sent   []sentEmbed
	edits  []sentEmbed
	dms    []string
	nextID int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		invites:  make(map[string]models.LinkSnapshot),
		boosters: make(map[string]bool),
	}
}

func (g *fakeGateway) setInvites(guildID string, links ...models.InviteLink) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.invites[guildID] = append(models.LinkSnapshot(nil), links...)
}

// use simulates someone joining through code.
func (g *fakeGateway) use(guildID, code string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	links := append(models.LinkSnapshot(nil), g.invites[guildID]...)
	for i := range links {
		if links[i].Code == code {
			links[i].Uses++
		}
	}
	g.invites[guildID] = links
}

func (g *fakeGateway) GuildInvites(_ context.Context, guildID string) (models.LinkSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inviteErr != nil {
		return nil, g.inviteErr
	}
	return append(models.LinkSnapshot(nil), g.invites[guildID]...), nil
}

func (g *fakeGateway) CreateInvite(_ context.Context, channelID string) (string, error) {
	return "https://discord.gg/" + channelID, nil
}

func (g *fakeGateway) IsBooster(_ context.Context, _, userID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.boosters[userID], nil
}

func (g *fakeGateway) KickMember(_ context.Context, _, userID, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.kicks = append(g.kicks, userID)
	return g.kickErr
}

func (g *fakeGateway) AddMemberRole(_ context.Context, guildID, userID, roleID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.roles = append(g.roles, roleGrant{GuildID: guildID, UserID: userID, RoleID: roleID})
	return g.roleErr
}

func (g *fakeGateway) SendEmbed(_ context.Context, channelID string, embed models.Embed) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sendErr != nil {
		return "", g.sendErr
	}
	g.nextID++
	id := fmt.Sprintf("m%d", g.nextID)
	g.sent = append(g.sent, sentEmbed{ChannelID: channelID, MessageID: id, Embed: embed})
	return id, nil
}

func (g *fakeGateway) EditEmbed(_ context.Context, channelID, messageID string, embed models.Embed) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.editErr != nil {
		return g.editErr
	}
	g.edits = append(g.edits, sentEmbed{ChannelID: channelID, MessageID: messageID, Embed: embed})
	return nil
}

func (g *fakeGateway) SendDirectFile(_ context.Context, userID, _, _ string, _ []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.dmErr != nil {
		return g.dmErr
	}
	g.dms = append(g.dms, userID)
	return nil
}

func (g *fakeGateway) sentTitles(channelID string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []string
	for _, s := range g.sent {
		if s.ChannelID == channelID {
			out = append(out, s.Embed.Title)
		}
	}
	return out
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func arrival(guildID, memberID string, age time.Duration) models.Arrival {
	return models.Arrival{GuildID: guildID, MemberID: memberID, CreatedAt: testNow.Add(-age)}
}

const day = 24 * time.Hour

type harness struct {
	gw       *fakeGateway
	store    storage.Store
	repo     *GuildStateRepository
	referral *ReferralService
	admin    *AdminService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := storage.NewFileStore(filepath.Join(t.TempDir(), "bot_data.json"))
	return newHarnessWithStore(t, store)
}

func newHarnessWithStore(t *testing.T, store storage.Store) *harness {
	t.Helper()
	log := zap.NewNop().Sugar()
	repo, err := LoadGuildStateRepository(context.Background(), store, log)
	require.NoError(t, err)

	gw := newFakeGateway()
	fraud := NewFraudClassifier(DefaultMinAccountAge)
	fraud.Now = func() time.Time { return testNow }

	referral := NewReferralService(repo, gw, fraud, nil, log)
	admin := NewAdminService(repo, gw, referral.Leaderboard, fraud, log)
	return &harness{gw: gw, store: store, repo: repo, referral: referral, admin: admin}
}

// requireBalanced checks the ledger against the live attribution records and history.
func requireBalanced(t *testing.T, state *models.GuildState) {
	t.Helper()
	require.Equal(t, state.AttributedPoints(), state.Points.Total(), "ledger must equal attributed points")
	counted := 0
	for inviterID, members := range state.History {
		for _, m := range members {
			ref, ok := state.InvitedBy[m]
			require.True(t, ok, "history member %s has no record", m)
			require.Equal(t, inviterID, ref.InviterID)
			counted++
		}
	}
	require.Equal(t, len(state.InvitedBy), counted, "every record must appear in history")
}
