package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"invite-reward-bot/models"
	"invite-reward-bot/services"
	"invite-reward-bot/storage"
	"invite-reward-bot/workers"

	"github.com/bwmarrin/discordgo"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubGateway struct {
	mu    sync.Mutex
	dmErr error
	sent  int
}

func (g *stubGateway) GuildInvites(context.Context, string) (models.LinkSnapshot, error) {
	return models.LinkSnapshot{}, nil
}
func (g *stubGateway) CreateInvite(_ context.Context, channelID string) (string, error) {
	return "https://discord.gg/" + channelID, nil
}
func (g *stubGateway) IsBooster(context.Context, string, string) (bool, error) { return false, nil }
func (g *stubGateway) KickMember(context.Context, string, string, string) error { return nil }
func (g *stubGateway) AddMemberRole(context.Context, string, string, string) error {
	return nil
}
func (g *stubGateway) SendEmbed(context.Context, string, models.Embed) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent++
	return "msg", nil
}
func (g *stubGateway) EditEmbed(context.Context, string, string, models.Embed) error { return nil }
func (g *stubGateway) SendDirectFile(context.Context, string, string, string, []byte) error {
	return g.dmErr
}

type recordingResponder struct {
	responses []*discordgo.InteractionResponse
	followups []*discordgo.WebhookParams
}

func (r *recordingResponder) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	r.responses = append(r.responses, resp)
	return nil
}

func (r *recordingResponder) FollowupMessageCreate(_ *discordgo.Interaction, _ bool, data *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	r.followups = append(r.followups, data)
	return &discordgo.Message{}, nil
}

func (r *recordingResponder) last() *discordgo.InteractionResponseData {
	return r.responses[len(r.responses)-1].Data
}

type fixture struct {
	bot  *Bot
	repo *services.GuildStateRepository
	gw   *stubGateway
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zap.NewNop().Sugar()
	store := storage.NewFileStore(filepath.Join(t.TempDir(), "bot_data.json"))
	repo, err := services.LoadGuildStateRepository(context.Background(), store, log)
	require.NoError(t, err)

	gw := &stubGateway{}
	fraud := services.NewFraudClassifier(services.DefaultMinAccountAge)
	referral := services.NewReferralService(repo, gw, fraud, nil, log)
	admin := services.NewAdminService(repo, gw, referral.Leaderboard, fraud, log)
	sync := workers.NewGuildSyncWorker(referral, log)
	return &fixture{
		bot:  NewBot(context.Background(), referral, admin, sync, log),
		repo: repo,
		gw:   gw,
	}
}

func slash(name string, admin bool, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.InteractionCreate {
	var perms int64
	if admin {
		perms = discordgo.PermissionAdministrator
	}
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type:      discordgo.InteractionApplicationCommand,
		GuildID:   "g",
		ChannelID: "c",
		Member:    &discordgo.Member{User: &discordgo.User{ID: "caller"}, Permissions: perms},
		Data:      discordgo.ApplicationCommandInteractionData{Name: name, Options: opts},
	}}
}

func button(customID string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type:      discordgo.InteractionMessageComponent,
		GuildID:   "g",
		ChannelID: "c",
		Member:    &discordgo.Member{User: &discordgo.User{ID: "caller"}},
		Data:      discordgo.MessageComponentInteractionData{CustomID: customID},
	}}
}

func roleOpt(name, id string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionRole, Value: id}
}

func intOpt(name string, v int) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionInteger, Value: float64(v)}
}

func TestAdminCommandRejectedForMembers(t *testing.T) {
	f := newFixture(t)
	r := &recordingResponder{}
	f.bot.HandleInteraction(context.Background(), r, slash("permission", false, roleOpt("role1", "r1"), intOpt("invites1", 5)))

	require.Len(t, r.responses, 1)
	data := r.last()
	assert.Equal(t, discordgo.MessageFlagsEphemeral, data.Flags)
	require.Len(t, data.Embeds, 1)
	assert.Contains(t, data.Embeds[0].Description, "Administrator")
	assert.Empty(t, f.repo.View("g").Config.RewardTiers)
}

func TestPermissionCommand(t *testing.T) {
	f := newFixture(t)
	r := &recordingResponder{}
	f.bot.HandleInteraction(context.Background(), r, slash("permission", true,
		roleOpt("role1", "r1"), intOpt("invites1", 5),
		roleOpt("role2", "r2"), intOpt("invites2", 0),
		roleOpt("role3", "r3"), intOpt("invites3", 20),
	))

	assert.Equal(t, []models.RewardTier{{Threshold: 5, RoleID: "r1"}, {Threshold: 20, RoleID: "r3"}},
		f.repo.View("g").Config.RewardTiers)
	require.Len(t, r.responses, 1)
	assert.Equal(t, "⚙️ Reward roles configured!", r.last().Embeds[0].Title)
}

func TestSetMultiplierCommand(t *testing.T) {
	f := newFixture(t)
	r := &recordingResponder{}
	f.bot.HandleInteraction(context.Background(), r, slash("set_multiplier", true, intOpt("multiplier", 0)))
	assert.Equal(t, 1, f.repo.View("g").Config.Multiplier)
	assert.Contains(t, r.last().Content, "x1")
}

func TestAnnounceNeedsTiers(t *testing.T) {
	f := newFixture(t)
	r := &recordingResponder{}
	f.bot.HandleInteraction(context.Background(), r, slash("announce", true))
	assert.Contains(t, r.last().Content, "/permission")
	assert.Equal(t, discordgo.MessageFlagsEphemeral, r.last().Flags)

	f.bot.HandleInteraction(context.Background(), r, slash("permission", true, roleOpt("role1", "r1"), intOpt("invites1", 5)))
	f.bot.HandleInteraction(context.Background(), r, slash("announce", true))
	data := r.last()
	require.Len(t, data.Embeds, 1)
	require.Len(t, data.Components, 1)
	row := data.Components[0].(discordgo.ActionsRow)
	assert.Equal(t, buttonCheckStats, row.Components[0].(discordgo.Button).CustomID)
	assert.Equal(t, buttonGetLink, row.Components[1].(discordgo.Button).CustomID)
}

func TestCampaignButtons(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.repo.Transact(context.Background(), "g", func(state *models.GuildState) error {
		services.CreditReferral(state, "caller", "friend", 7)
		return nil
	}))

	r := &recordingResponder{}
	f.bot.HandleInteraction(context.Background(), r, button(buttonCheckStats))
	assert.Contains(t, r.last().Embeds[0].Description, "**7** points")
	assert.Equal(t, discordgo.MessageFlagsEphemeral, r.last().Flags)

	f.bot.HandleInteraction(context.Background(), r, button(buttonGetLink))
	assert.Contains(t, r.last().Content, "https://discord.gg/c")
}

func TestBackupCommandReportsClosedDMs(t *testing.T) {
	f := newFixture(t)
	f.gw.dmErr = services.ErrPermissionDenied
	r := &recordingResponder{}
	f.bot.HandleInteraction(context.Background(), r, slash("backup", true))

	require.Len(t, r.responses, 1, "deferred first")
	assert.Equal(t, discordgo.InteractionResponseDeferredChannelMessageWithSource, r.responses[0].Type)
	require.Len(t, r.followups, 1)
	assert.Contains(t, r.followups[0].Content, "can't DM you")
}

func TestHelpShowsAdminSectionToAdmins(t *testing.T) {
	f := newFixture(t)
	r := &recordingResponder{}
	f.bot.HandleInteraction(context.Background(), r, slash("help", true))
	assert.Equal(t, "⚙️ Admin commands", r.last().Embeds[0].Fields[1].Name)

	f.bot.HandleInteraction(context.Background(), r, slash("help", false))
	assert.Equal(t, "⚙️ Other commands", r.last().Embeds[0].Fields[1].Name)
}

func TestDefinitionsCarryAdminDefaults(t *testing.T) {
	f := newFixture(t)
	defs := f.bot.Definitions()
	require.Len(t, defs, len(commandOrder))
	for _, d := range defs {
		if d.Name == "ping" || d.Name == "help" {
			assert.Nil(t, d.DefaultMemberPermissions, d.Name)
			continue
		}
		require.NotNil(t, d.DefaultMemberPermissions, d.Name)
		assert.Equal(t, int64(discordgo.PermissionAdministrator), *d.DefaultMemberPermissions)
	}
}

func TestSafelyRecoversPanics(t *testing.T) {
	f := newFixture(t)
	ran := false
	assert.NotPanics(t, func() {
		f.bot.safely("test", func() { panic(errors.New("boom")) })
		ran = true
	})
	assert.True(t, ran)
}

func TestHTTPRoutes(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.repo.Transact(context.Background(), "g", func(state *models.GuildState) error {
		services.CreditReferral(state, "A", "x", 2)
		return nil
	}))

	app := fiber.New()
	SetupHTTPRoutes(app, f.repo, prometheus.NewRegistry(), "tok", zap.NewNop().Sugar())

	get := func(path, token string) (int, []byte) {
		req := httptest.NewRequest("GET", path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, body
	}

	status, body := get("/", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Bot is online and running!", string(body))

	status, body = get("/healthz", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok","guilds":1}`, string(body))

	status, _ = get("/metrics", "")
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = get("/guilds/g/leaderboard", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, body = get("/guilds/g/leaderboard", "tok")
	assert.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"guild_id":"g","entries":[{"rank":1,"inviter_id":"A","points":2}]}`, string(body))

	for _, q := range []string{"?limit=0", "?limit=-1", "?limit=500"} {
		status, body = get("/guilds/g/leaderboard"+q, "tok")
		assert.Equal(t, fiber.StatusOK, status)
		assert.JSONEq(t, `{"guild_id":"g","entries":[{"rank":1,"inviter_id":"A","points":2}]}`, string(body), q)
	}

	status, _ = get("/guilds/nope/leaderboard", "tok")
	assert.Equal(t, fiber.StatusNotFound, status)

	status, body = get("/export", "tok")
	assert.Equal(t, fiber.StatusOK, status)
	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &doc))
	assert.Contains(t, doc, "real_invites")
	assert.Contains(t, doc, "invited_by")
}
