// Package gateway adapts the Discord API to the engine's Gateway interface.
package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"invite-reward-bot/models"
	"invite-reward-bot/services"

	"github.com/bwmarrin/discordgo"
)

// Discord implements services.Gateway on a discordgo session.
type Discord struct {
	Session *discordgo.Session
}

var _ services.Gateway = (*Discord)(nil)

func NewDiscord(session *discordgo.Session) *Discord {
	return &Discord{Session: session}
}

func (d *Discord) GuildInvites(ctx context.Context, guildID string) (models.LinkSnapshot, error) {
	invites, err := d.Session.GuildInvites(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, MapError(err)
	}
	links := make(models.LinkSnapshot, 0, len(invites))
	for _, inv := range invites {
		link := models.InviteLink{Code: inv.Code, Uses: inv.Uses}
		if inv.Inviter != nil {
			link.InviterID = inv.Inviter.ID
		}
		links = append(links, link)
	}
	return links, nil
}

// CreateInvite makes a permanent, unlimited invite.
func (d *Discord) CreateInvite(ctx context.Context, channelID string) (string, error) {
	inv, err := d.Session.ChannelInviteCreate(channelID, discordgo.Invite{MaxAge: 0, MaxUses: 0}, discordgo.WithContext(ctx))
	if err != nil {
		return "", MapError(err)
	}
	return "https://discord.gg/" + inv.Code, nil
}

func (d *Discord) IsBooster(ctx context.Context, guildID, userID string) (bool, error) {
	if d.Session.State != nil {
		if m, err := d.Session.State.Member(guildID, userID); err == nil {
			return m.PremiumSince != nil, nil
		}
	}
	m, err := d.Session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return false, MapError(err)
	}
	return m.PremiumSince != nil, nil
}

func (d *Discord) KickMember(ctx context.Context, guildID, userID, reason string) error {
	return MapError(d.Session.GuildMemberDeleteWithReason(guildID, userID, reason, discordgo.WithContext(ctx)))
}

func (d *Discord) AddMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	return MapError(d.Session.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx)))
}

func (d *Discord) SendEmbed(ctx context.Context, channelID string, embed models.Embed) (string, error) {
	msg, err := d.Session.ChannelMessageSendEmbed(channelID, ToMessageEmbed(embed), discordgo.WithContext(ctx))
	if err != nil {
		return "", MapError(err)
	}
	return msg.ID, nil
}

func (d *Discord) EditEmbed(ctx context.Context, channelID, messageID string, embed models.Embed) error {
	_, err := d.Session.ChannelMessageEditEmbed(channelID, messageID, ToMessageEmbed(embed), discordgo.WithContext(ctx))
	return MapError(err)
}

func (d *Discord) SendDirectFile(ctx context.Context, userID, content, filename string, data []byte) error {
	ch, err := d.Session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return MapError(err)
	}
	_, err = d.Session.ChannelMessageSendComplex(ch.ID, &discordgo.MessageSend{
		Content: content,
		Files: []*discordgo.File{{
			Name:        filename,
			ContentType: "application/json",
			Reader:      bytes.NewReader(data),
		}},
	}, discordgo.WithContext(ctx))
	return MapError(err)
}

// SetWatching sets the "Watching ..." status line.
func (d *Discord) SetWatching(status string) error {
	return d.Session.UpdateWatchStatus(0, status)
}

// MapError translates Discord REST failures into the engine's sentinels. Other errors
// pass through unchanged.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return err
	}
	code, status := 0, 0
	if restErr.Message != nil {
		code = restErr.Message.Code
	}
	if restErr.Response != nil {
		status = restErr.Response.StatusCode
	}
	switch {
	case code == discordgo.ErrCodeMissingPermissions, code == discordgo.ErrCodeMissingAccess,
		code == discordgo.ErrCodeCannotSendMessagesToThisUser, status == http.StatusForbidden:
		return fmt.Errorf("%w: %w", services.ErrPermissionDenied, err)
	case code == discordgo.ErrCodeUnknownMessage, code == discordgo.ErrCodeUnknownChannel,
		status == http.StatusNotFound:
		return fmt.Errorf("%w: %w", services.ErrStaleReference, err)
	}
	return err
}

// ToMessageEmbed converts the engine's embed to Discord's.
func ToMessageEmbed(e models.Embed) *discordgo.MessageEmbed {
	out := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Color,
	}
	if e.ThumbnailURL != "" {
		out.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: e.ThumbnailURL}
	}
	for _, f := range e.Fields {
		out.Fields = append(out.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	return out
}

// ArrivalFromMember builds an Arrival from a join event. The account's creation time is
// read from its snowflake id.
func ArrivalFromMember(m *discordgo.Member) (models.Arrival, error) {
	if m == nil || m.User == nil {
		return models.Arrival{}, errors.New("member without user")
	}
	created, err := discordgo.SnowflakeTimestamp(m.User.ID)
	if err != nil {
		return models.Arrival{}, fmt.Errorf("account age of %s: %w", m.User.ID, err)
	}
	arrival := models.Arrival{
		GuildID:   m.GuildID,
		MemberID:  m.User.ID,
		CreatedAt: created,
	}
	if m.User.Avatar != "" {
		arrival.AvatarURL = m.User.AvatarURL("")
	}
	return arrival, nil
}
