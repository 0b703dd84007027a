package handlers

import (
	"context"
	"fmt"

	"invite-reward-bot/gateway"
	"invite-reward-bot/middleware"
	"invite-reward-bot/models"
	"invite-reward-bot/services"

	"github.com/bwmarrin/discordgo"
)

func campaignButtons() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label:    "Check my stats",
				Style:    discordgo.PrimaryButton,
				CustomID: buttonCheckStats,
				Emoji:    &discordgo.ComponentEmoji{Name: "📊"},
			},
			discordgo.Button{
				Label:    "Get my link",
				Style:    discordgo.SuccessButton,
				CustomID: buttonGetLink,
				Emoji:    &discordgo.ComponentEmoji{Name: "🔗"},
			},
		}},
	}
}

// handleComponent answers the campaign buttons. They stay live across restarts because
// they are matched by custom id only.
func (b *Bot) handleComponent(ctx context.Context, r Responder, i *discordgo.InteractionCreate) error {
	caller := middleware.CallerFromInteraction(i)
	switch i.MessageComponentData().CustomID {
	case buttonCheckStats:
		return respondEmbed(r, i, services.StatsNotice(b.Admin.Points(i.GuildID, caller.UserID)), true)
	case buttonGetLink:
		url, err := b.Admin.InviteLink(ctx, i.ChannelID)
		if err != nil {
			return err
		}
		return respondText(r, i, "Here is your personal link, share it with your friends\n👉 "+url, true)
	}
	return nil
}

func respondText(r Responder, i *discordgo.InteractionCreate, content string, ephemeral bool) error {
	data := &discordgo.InteractionResponseData{Content: content}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return r.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
}

func respondEmbed(r Responder, i *discordgo.InteractionCreate, embed models.Embed, ephemeral bool) error {
	data := &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{gateway.ToMessageEmbed(embed)}}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return r.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
}

func deferEphemeral(r Responder, i *discordgo.InteractionCreate) error {
	return r.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
}

func followupText(r Responder, i *discordgo.InteractionCreate, content string) error {
	_, err := r.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: content,
		Flags:   discordgo.MessageFlagsEphemeral,
	})
	return err
}

// respondError reports a failure to the caller. If the interaction was already
// acknowledged the report goes out as a followup.
func (b *Bot) respondError(r Responder, i *discordgo.InteractionCreate, cause error) {
	embed := gateway.ToMessageEmbed(models.Embed{
		Title:       "❌ Something went wrong!",
		Description: fmt.Sprintf("```%v```", cause),
		Color:       0xE74C3C,
	})
	err := r.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	})
	if err == nil {
		return
	}
	_, err = r.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{embed},
		Flags:  discordgo.MessageFlagsEphemeral,
	})
	if err != nil {
		b.Log.Warnw("[CMD] could not report error", "error", err)
	}
}
