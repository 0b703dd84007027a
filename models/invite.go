package models

import "time"

// InviteLink is one referral link as reported by the gateway.
type InviteLink struct {
	Code      string
	Uses      int
	InviterID string
}

// LinkSnapshot is every invite of a guild at one point in time, in the order the gateway
// listed them. Snapshots are replaced wholesale, never patched.
type LinkSnapshot []InviteLink

// Find returns the link with the given code.
func (s LinkSnapshot) Find(code string) (InviteLink, bool) {
	for _, l := range s {
		if l.Code == code {
			return l, true
		}
	}
	return InviteLink{}, false
}

// Arrival describes a member joining a guild.
type Arrival struct {
	GuildID   string
	MemberID  string
	CreatedAt time.Time // account creation time
	AvatarURL string
}

// Embed is a platform-neutral rich message.
type Embed struct {
	Title        string
	Description  string
	Color        int
	ThumbnailURL string
	Fields       []EmbedField
}

type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

// LeaderboardEntry is one row of a ranked leaderboard.
type LeaderboardEntry struct {
	Rank      int    `json:"rank"`
	InviterID string `json:"inviter_id"`
	Points    int    `json:"points"`
}
