package services

import (
	"fmt"
	"strings"

	"invite-reward-bot/models"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	colorInfo    = 0x3498DB
	colorDanger  = 0xE74C3C
	colorSuccess = 0x2ECC71
	colorParty   = 0xFF00FF
	colorPromo   = 0x9B59B6
)

var printer = message.NewPrinter(language.English)

func mention(userID string) string { return "<@" + userID + ">" }

func roleMention(roleID string) string { return "<@&" + roleID + ">" }

func welcomeNotice(arrival models.Arrival, credit Credit) models.Embed {
	desc := printer.Sprintf("%s just joined the server!\n🎯 Invited by: %s\n📈 %s now has **%d** points",
		mention(arrival.MemberID), mention(credit.InviterID), mention(credit.InviterID), credit.NewTotal)
	if credit.Points > 1 {
		desc += fmt.Sprintf("\n*(bonus x%d)*", credit.Points)
	}
	return models.Embed{
		Title:        "👋 Welcome aboard",
		Description:  desc,
		Color:        colorInfo,
		ThumbnailURL: arrival.AvatarURL,
	}
}

func fraudNotice(inviterID, memberID string, fakeCount int, kicked bool) models.Embed {
	status := "⚠️ Could not kick it, the bot's role is too low"
	if kicked {
		status = "👢 Account kicked"
	}
	return models.Embed{
		Title: "🚨 Auto-Mod: invite farming detected",
		Description: printer.Sprintf("%s brought in a throwaway account %s\n⚠️ That makes **%d** fake invites from them\n**Status:** %s",
			mention(inviterID), mention(memberID), fakeCount, status),
		Color: colorDanger,
	}
}

func tierNotice(inviterID string, tier models.RewardTier) models.Embed {
	return models.Embed{
		Title: "🎉 New role unlocked!",
		Description: printer.Sprintf("Congrats %s! You reached **%d** points and earned %s.",
			mention(inviterID), tier.Threshold, roleMention(tier.RoleID)),
		Color: colorSuccess,
	}
}

func milestoneNotice(inviterID string, milestone int) models.Embed {
	return models.Embed{
		Title: "🔥 New record!",
		Description: printer.Sprintf("Everyone give %s a round of applause!\nThey just passed **%d** points 👑✨",
			mention(inviterID), milestone),
		Color: colorParty,
	}
}

// StatsNotice is the private reply to "check my stats".
func StatsNotice(points int) models.Embed {
	return models.Embed{
		Title:       "📊 Your invite stats",
		Description: printer.Sprintf("You have **%d** points right now 🚀", points),
		Color:       colorInfo,
	}
}

// TierSummary lists configured tiers, as echoed after the tier command.
func TierSummary(tiers []models.RewardTier) models.Embed {
	var b strings.Builder
	for i, t := range tiers {
		b.WriteString(printer.Sprintf("🔹 Tier %d: `%d` points ➔ %s\n", i+1, t.Threshold, roleMention(t.RoleID)))
	}
	return models.Embed{
		Title:       "⚙️ Reward roles configured!",
		Description: b.String(),
		Color:       colorInfo,
	}
}

var tierEmojis = []string{"🥉", "🥈", "🥇", "💎", "👑"}

func announcementNotice(cfg models.GuildConfig, iconURL string, minAgeDays int) models.Embed {
	var b strings.Builder
	b.WriteString("🎉 **Invite your friends and earn free roles!** 🚀\n")
	b.WriteString("Bring friends into the server and the bot adds points for you, then hands out reward roles automatically.\n\n")
	b.WriteString("👇 **How to join in**\n")
	b.WriteString("1️⃣ Press 🔗 **Get my link** below for a personal invite, or make your own (set it to never expire).\n")
	b.WriteString("2️⃣ Share the link with your friends.\n")
	b.WriteString("3️⃣ Every friend who joins adds points right away. Press 📊 **Check my stats** any time.\n\n")
	b.WriteString("🛑 **Rules**\n")
	b.WriteString(fmt.Sprintf("🔸 **No throwaway accounts:** accounts younger than %d days are **kicked on sight** and earn nothing.\n",
		minAgeDays))
	b.WriteString("🔸 **Friends must stay:** if someone you invited leaves, their points are taken back.\n\n")
	b.WriteString("💎 **Booster bonus:**\n")
	b.WriteString("Server boosters earn **+1 point** extra for every friend.\n")

	if mult := cfg.EffectiveMultiplier(); mult > 1 {
		b.WriteString(fmt.Sprintf("\n🔥 **x%d event is live! Every friend is worth %d points**\n", mult, mult))
	}

	b.WriteString("\n🎁 **Rewards**\n")
	for i, t := range models.SortTiers(cfg.RewardTiers) {
		emoji := "🎖️"
		if i < len(tierEmojis) {
			emoji = tierEmojis[i]
		}
		b.WriteString(printer.Sprintf("%s Tier %d: reach `%d` points ➔ **%s**\n", emoji, i+1, t.Threshold, roleMention(t.RoleID)))
	}
	b.WriteString("\n*Grab your link and bring the squad!*")

	return models.Embed{
		Title:        "🌟 Event: invite friends, unlock roles! 🌟",
		Description:  b.String(),
		Color:        colorPromo,
		ThumbnailURL: iconURL,
	}
}

const reportHistoryLimit = 20

func userReportNotice(displayName string, points, fakes int, history []string) models.Embed {
	historyText := "Nobody yet (or everyone they invited has left)"
	if len(history) > 0 {
		shown := history
		if len(shown) > reportHistoryLimit {
			shown = shown[:reportHistoryLimit]
		}
		mentions := make([]string, len(shown))
		for i, id := range shown {
			mentions[i] = mention(id)
		}
		historyText = strings.Join(mentions, ", ")
		if extra := len(history) - reportHistoryLimit; extra > 0 {
			historyText += fmt.Sprintf(" ...and %d more", extra)
		}
	}
	return models.Embed{
		Title: "🔍 History: " + displayName,
		Color: colorInfo,
		Fields: []models.EmbedField{
			{Name: "✅ Current points", Value: printer.Sprintf("`%d` points", points), Inline: true},
			{Name: "🚨 Fake invites", Value: printer.Sprintf("`%d` times", fakes), Inline: true},
			{Name: "👥 Invited members still here", Value: historyText},
		},
	}
}
