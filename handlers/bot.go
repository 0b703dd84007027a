// handlers/bot.go
package handlers

import (
	"context"
	"time"

	"invite-reward-bot/gateway"
	"invite-reward-bot/services"
	"invite-reward-bot/workers"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const eventTimeout = 30 * time.Second

// Bot routes Discord gateway events and interactions into the services.
type Bot struct {
	Referral *services.ReferralService
	Admin    *services.AdminService
	Sync     *workers.GuildSyncWorker
	Log      *zap.SugaredLogger

	// Session lookups; nil in tests.
	GuildIcon func(guildID string) string
	Latency   func() time.Duration

	ctx      context.Context
	commands map[string]Command
}

func NewBot(ctx context.Context, referral *services.ReferralService, admin *services.AdminService, sync *workers.GuildSyncWorker, log *zap.SugaredLogger) *Bot {
	b := &Bot{
		Referral: referral,
		Admin:    admin,
		Sync:     sync,
		Log:      log,
		ctx:      ctx,
	}
	b.commands = b.commandTable()
	return b
}

// Attach registers every event handler on the session and wires session lookups.
func (b *Bot) Attach(s *discordgo.Session) {
	b.GuildIcon = func(guildID string) string {
		g, err := s.State.Guild(guildID)
		if err != nil {
			return ""
		}
		return g.IconURL("")
	}
	b.Latency = s.HeartbeatLatency

	s.AddHandler(b.onReady)
	s.AddHandler(b.onGuildCreate)
	s.AddHandler(b.onInviteCreate)
	s.AddHandler(b.onInviteDelete)
	s.AddHandler(b.onMemberAdd)
	s.AddHandler(b.onMemberRemove)
	s.AddHandler(b.onInteraction)
}

// safely runs fn and turns a panic into a log line so one bad event cannot take the
// process down.
func (b *Bot) safely(event string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			b.Log.Errorw("[HANDLER] 💥 panic recovered", "event", event, "panic", r, zap.StackSkip("stack", 2))
		}
	}()
	fn()
}

func (b *Bot) eventContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(b.ctx, eventTimeout)
}

func (b *Bot) onReady(_ *discordgo.Session, e *discordgo.Ready) {
	b.safely("ready", func() {
		ids := make([]string, 0, len(e.Guilds))
		for _, g := range e.Guilds {
			ids = append(ids, g.ID)
		}
		b.Log.Infow("✅ [GATEWAY] logged in", "user", e.User.Username, "guilds", len(ids))
		b.Sync.Enqueue(b.ctx, ids...)
	})
}

func (b *Bot) onGuildCreate(_ *discordgo.Session, e *discordgo.GuildCreate) {
	b.safely("guild_create", func() {
		if e.Unavailable {
			return
		}
		if _, tracked := b.Referral.Snapshots.Get(e.ID); !tracked {
			b.Sync.Enqueue(b.ctx, e.ID)
		}
	})
}

func (b *Bot) onInviteCreate(_ *discordgo.Session, e *discordgo.InviteCreate) {
	b.refreshInvites("invite_create", e.GuildID)
}

func (b *Bot) onInviteDelete(_ *discordgo.Session, e *discordgo.InviteDelete) {
	b.refreshInvites("invite_delete", e.GuildID)
}

func (b *Bot) refreshInvites(event, guildID string) {
	b.safely(event, func() {
		ctx, cancel := b.eventContext()
		defer cancel()
		if err := b.Referral.HandleInviteChange(ctx, guildID); err != nil {
			b.Log.Warnw("[INVITES] ⚠️ refresh failed", "guild", guildID, "error", err)
		}
	})
}

func (b *Bot) onMemberAdd(_ *discordgo.Session, e *discordgo.GuildMemberAdd) {
	b.safely("member_add", func() {
		arrival, err := gateway.ArrivalFromMember(e.Member)
		if err != nil {
			b.Log.Warnw("[JOIN] unusable join event", "error", err)
			return
		}
		ctx, cancel := b.eventContext()
		defer cancel()
		if _, err := b.Referral.HandleMemberJoin(ctx, arrival); err != nil {
			b.Log.Warnw("[JOIN] ⚠️ arrival not applied", "guild", arrival.GuildID, "member", arrival.MemberID, "error", err)
		}
	})
}

func (b *Bot) onMemberRemove(_ *discordgo.Session, e *discordgo.GuildMemberRemove) {
	b.safely("member_remove", func() {
		if e.Member == nil || e.User == nil {
			return
		}
		ctx, cancel := b.eventContext()
		defer cancel()
		if _, _, err := b.Referral.HandleMemberLeave(ctx, e.GuildID, e.User.ID); err != nil {
			b.Log.Warnw("[LEAVE] ⚠️ departure not applied", "guild", e.GuildID, "member", e.User.ID, "error", err)
		}
	})
}

func (b *Bot) onInteraction(s *discordgo.Session, e *discordgo.InteractionCreate) {
	b.safely("interaction", func() {
		ctx, cancel := b.eventContext()
		defer cancel()
		b.HandleInteraction(ctx, s, e)
	})
}
