package handlers

import (
	"context"
	"errors"
	"fmt"

	"invite-reward-bot/gateway"
	"invite-reward-bot/middleware"
	"invite-reward-bot/models"
	"invite-reward-bot/services"

	"github.com/bwmarrin/discordgo"
)

// Responder is the part of a discordgo session that answers interactions.
type Responder interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Command is a slash command: its definition, who may run it, and what it does.
type Command struct {
	Definition *discordgo.ApplicationCommand
	Allow      middleware.Predicate
	Run        func(ctx context.Context, r Responder, i *discordgo.InteractionCreate) error
}

const (
	buttonCheckStats = "btn_check_stats"
	buttonGetLink    = "btn_get_link"
)

var adminPermission int64 = discordgo.PermissionAdministrator

func adminCommand(name, description string, options ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:                     name,
		Description:              description,
		DefaultMemberPermissions: &adminPermission,
		Options:                  options,
	}
}

func option(kind discordgo.ApplicationCommandOptionType, name, description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{Type: kind, Name: name, Description: description, Required: required}
}

func (b *Bot) commandTable() map[string]Command {
	cmds := []Command{
		{
			Definition: adminCommand("permission", "Configure reward roles and the points they need",
				option(discordgo.ApplicationCommandOptionRole, "role1", "First reward role", true),
				option(discordgo.ApplicationCommandOptionInteger, "invites1", "Points for the first role", true),
				option(discordgo.ApplicationCommandOptionRole, "role2", "Second reward role", false),
				option(discordgo.ApplicationCommandOptionInteger, "invites2", "Points for the second role", false),
				option(discordgo.ApplicationCommandOptionRole, "role3", "Third reward role", false),
				option(discordgo.ApplicationCommandOptionInteger, "invites3", "Points for the third role", false),
			),
			Allow: middleware.RequireAdministrator,
			Run:   b.runPermission,
		},
		{
			Definition: adminCommand("set_multiplier", "Start a points multiplier event",
				option(discordgo.ApplicationCommandOptionInteger, "multiplier", "Points per invited friend", true)),
			Allow: middleware.RequireAdministrator,
			Run:   b.runSetMultiplier,
		},
		{
			Definition: adminCommand("set_log", "Pick the channel for reward and fraud notices",
				option(discordgo.ApplicationCommandOptionChannel, "channel", "Log channel", true)),
			Allow: middleware.RequireAdministrator,
			Run:   b.runSetLog,
		},
		{
			Definition: adminCommand("set_welcome", "Pick the channel that greets new members",
				option(discordgo.ApplicationCommandOptionChannel, "channel", "Welcome channel", true)),
			Allow: middleware.RequireAdministrator,
			Run:   b.runSetWelcome,
		},
		{
			Definition: adminCommand("setup_top", "Create the leaderboard",
				option(discordgo.ApplicationCommandOptionChannel, "channel", "Leaderboard channel", true)),
			Allow: middleware.RequireAdministrator,
			Run:   b.runSetupTop,
		},
		{
			Definition: adminCommand("announce", "Post the invite campaign with its buttons"),
			Allow:      middleware.RequireAdministrator,
			Run:        b.runAnnounce,
		},
		{
			Definition: adminCommand("check_user", "Inspect a member's invite history",
				option(discordgo.ApplicationCommandOptionUser, "member", "Member to inspect", true)),
			Allow: middleware.RequireAdministrator,
			Run:   b.runCheckUser,
		},
		{
			Definition: adminCommand("reset_user", "Clear a member's invite credit",
				option(discordgo.ApplicationCommandOptionUser, "member", "Member to reset", true)),
			Allow: middleware.RequireAdministrator,
			Run:   b.runResetUser,
		},
		{
			Definition: adminCommand("backup", "Send the bot's data file to your DMs"),
			Allow:      middleware.RequireAdministrator,
			Run:        b.runBackup,
		},
		{
			Definition: &discordgo.ApplicationCommand{Name: "ping", Description: "Check the bot's latency"},
			Allow:      middleware.Everyone,
			Run:        b.runPing,
		},
		{
			Definition: &discordgo.ApplicationCommand{Name: "help", Description: "List the bot's commands"},
			Allow:      middleware.Everyone,
			Run:        b.runHelp,
		},
	}
	table := make(map[string]Command, len(cmds))
	for _, c := range cmds {
		table[c.Definition.Name] = c
	}
	return table
}

// Definitions lists every slash command for registration.
func (b *Bot) Definitions() []*discordgo.ApplicationCommand {
	out := make([]*discordgo.ApplicationCommand, 0, len(b.commands))
	for _, name := range commandOrder {
		if c, ok := b.commands[name]; ok {
			out = append(out, c.Definition)
		}
	}
	return out
}

var commandOrder = []string{
	"permission", "set_multiplier", "set_log", "set_welcome", "setup_top", "announce",
	"check_user", "reset_user", "backup", "ping", "help",
}

// RegisterCommands replaces the application's global commands with ours.
func (b *Bot) RegisterCommands(s *discordgo.Session) error {
	_, err := s.ApplicationCommandBulkOverwrite(s.State.User.ID, "", b.Definitions())
	if err != nil {
		return fmt.Errorf("register commands: %w", err)
	}
	b.Log.Infow("✅ [CMD] slash commands synced", "count", len(b.commands))
	return nil
}

// HandleInteraction dispatches a slash command or button press. The command's
// predicate runs first; failures are answered with an error embed.
func (b *Bot) HandleInteraction(ctx context.Context, r Responder, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		cmd, ok := b.commands[data.Name]
		if !ok {
			b.Log.Warnw("[CMD] unknown command", "name", data.Name)
			return
		}
		caller := middleware.CallerFromInteraction(i)
		if err := cmd.Allow(caller); err != nil {
			b.Log.Infow("[CMD] 🚫 denied", "command", data.Name, "user", caller.UserID, "guild", caller.GuildID)
			b.respondError(r, i, err)
			return
		}
		if err := cmd.Run(ctx, r, i); err != nil {
			b.Log.Warnw("[CMD] ❌ failed", "command", data.Name, "guild", i.GuildID, "error", err)
			b.respondError(r, i, err)
		}
	case discordgo.InteractionMessageComponent:
		if err := b.handleComponent(ctx, r, i); err != nil {
			b.Log.Warnw("[CMD] ❌ button failed", "id", i.MessageComponentData().CustomID, "error", err)
			b.respondError(r, i, err)
		}
	}
}

func (b *Bot) runPermission(ctx context.Context, r Responder, i *discordgo.InteractionCreate) error {
	opts := optionMap(i.ApplicationCommandData().Options)
	var inputs []services.TierInput
	for n := 1; n <= services.MaxRewardTiers; n++ {
		role := optionString(opts, fmt.Sprintf("role%d", n))
		if n > 1 && role == "" {
			continue
		}
		inputs = append(inputs, services.TierInput{
			RoleID:    role,
			Threshold: int(optionInt(opts, fmt.Sprintf("invites%d", n))),
		})
	}
	tiers, err := b.Admin.SetRewardTiers(ctx, i.GuildID, inputs)
	if err != nil {
		return err
	}
	return respondEmbed(r, i, services.TierSummary(tiers), false)
}

func (b *Bot) runSetMultiplier(ctx context.Context, r Responder, i *discordgo.InteractionCreate) error {
	opts := optionMap(i.ApplicationCommandData().Options)
	m, err := b.Admin.SetMultiplier(ctx, i.GuildID, int(optionInt(opts, "multiplier")))
	if err != nil {
		return err
	}
	return respondText(r, i, fmt.Sprintf("✅ Event mode is on! Every invited friend is now worth **x%d** points!", m), false)
}

func (b *Bot) runSetLog(ctx context.Context, r Responder, i *discordgo.InteractionCreate) error {
	channelID := optionString(optionMap(i.ApplicationCommandData().Options), "channel")
	if err := b.Admin.SetLogChannel(ctx, i.GuildID, channelID); err != nil {
		return err
	}
	return respondText(r, i, fmt.Sprintf("✅ Reward and fraud notices will go to <#%s>!", channelID), false)
}

func (b *Bot) runSetWelcome(ctx context.Context, r Responder, i *discordgo.InteractionCreate) error {
	channelID := optionString(optionMap(i.ApplicationCommandData().Options), "channel")
	if err := b.Admin.SetWelcomeChannel(ctx, i.GuildID, channelID); err != nil {
		return err
	}
	return respondText(r, i, fmt.Sprintf("✅ New members will be welcomed in <#%s>!", channelID), false)
}

func (b *Bot) runSetupTop(ctx context.Context, r Responder, i *discordgo.InteractionCreate) error {
	channelID := optionString(optionMap(i.ApplicationCommandData().Options), "channel")
	if err := deferEphemeral(r, i); err != nil {
		return err
	}
	if err := b.Admin.SetupLeaderboard(ctx, i.GuildID, channelID); err != nil {
		return err
	}
	return followupText(r, i, fmt.Sprintf("✅ Leaderboard is live in <#%s>!", channelID))
}

func (b *Bot) runAnnounce(_ context.Context, r Responder, i *discordgo.InteractionCreate) error {
	icon := ""
	if b.GuildIcon != nil {
		icon = b.GuildIcon(i.GuildID)
	}
	embed, err := b.Admin.Announcement(i.GuildID, icon)
	if errors.Is(err, services.ErrNotConfigured) {
		return respondText(r, i, "⚠️ Set up reward roles with `/permission` before announcing.", true)
	}
	if err != nil {
		return err
	}
	return r.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{gateway.ToMessageEmbed(embed)},
			Components: campaignButtons(),
		},
	})
}

func (b *Bot) runCheckUser(_ context.Context, r Responder, i *discordgo.InteractionCreate) error {
	data := i.ApplicationCommandData()
	userID := optionString(optionMap(data.Options), "member")
	return respondEmbed(r, i, b.Admin.UserReport(i.GuildID, userID, displayName(data, userID)), true)
}

func (b *Bot) runResetUser(ctx context.Context, r Responder, i *discordgo.InteractionCreate) error {
	userID := optionString(optionMap(i.ApplicationCommandData().Options), "member")
	n, err := b.Admin.ResetReferrer(ctx, i.GuildID, userID)
	if err != nil {
		return err
	}
	return respondText(r, i, fmt.Sprintf("✅ Reset <@%s>: %d invited members detached, points set to 0.", userID, n), true)
}

func (b *Bot) runBackup(ctx context.Context, r Responder, i *discordgo.InteractionCreate) error {
	caller := middleware.CallerFromInteraction(i)
	if err := deferEphemeral(r, i); err != nil {
		return err
	}
	err := b.Admin.SendBackup(ctx, caller.UserID)
	if errors.Is(err, services.ErrPermissionDenied) {
		return followupText(r, i, "❌ I can't DM you. Allow direct messages from server members first.")
	}
	if err != nil {
		return err
	}
	return followupText(r, i, "✅ The backup file is in your DMs!")
}

func (b *Bot) runPing(_ context.Context, r Responder, i *discordgo.InteractionCreate) error {
	var latency int64
	if b.Latency != nil {
		latency = b.Latency().Milliseconds()
	}
	return respondEmbed(r, i, models.Embed{
		Title:       "🏓 Pong!",
		Description: fmt.Sprintf("Latency: `%dms` ⚡", latency),
		Color:       0x2ECC71,
	}, true)
}

func (b *Bot) runHelp(_ context.Context, r Responder, i *discordgo.InteractionCreate) error {
	embed := models.Embed{
		Title:       "📚 Command guide",
		Description: "Everything you can ask me to do:",
		Color:       0x3498DB,
		Fields: []models.EmbedField{
			{Name: "🔹 General", Value: "`/ping` - check the bot's latency\n`/help` - show this guide"},
		},
	}
	if middleware.CallerFromInteraction(i).IsAdministrator() {
		embed.Fields = append(embed.Fields, models.EmbedField{
			Name: "⚙️ Admin commands",
			Value: "`/permission` - reward roles and their points\n" +
				"`/announce` - post the campaign with buttons\n" +
				"`/setup_top` - place the leaderboard\n" +
				"`/set_log` - channel for notices\n" +
				"`/set_welcome` - channel for greetings\n" +
				"`/check_user` - a member's invite history\n" +
				"`/reset_user` - clear a member's credit\n" +
				"`/set_multiplier` - points multiplier event\n" +
				"`/backup` - get the data file",
		})
	} else {
		embed.Fields = append(embed.Fields, models.EmbedField{
			Name:  "⚙️ Other commands",
			Value: "Setup commands are reserved for admins.",
		})
	}
	return respondEmbed(r, i, embed, true)
}

func optionMap(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	out := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, o := range opts {
		out[o.Name] = o
	}
	return out
}

// optionString returns the id or text value of an option, "" when absent.
func optionString(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	o, ok := opts[name]
	if !ok {
		return ""
	}
	s, _ := o.Value.(string)
	return s
}

func optionInt(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) int64 {
	o, ok := opts[name]
	if !ok {
		return 0
	}
	return o.IntValue()
}

func displayName(data discordgo.ApplicationCommandInteractionData, userID string) string {
	if data.Resolved != nil {
		if m, ok := data.Resolved.Members[userID]; ok && m.Nick != "" {
			return m.Nick
		}
		if u, ok := data.Resolved.Users[userID]; ok {
			if u.GlobalName != "" {
				return u.GlobalName
			}
			return u.Username
		}
	}
	return "<@" + userID + ">"
}
