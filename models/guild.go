package models

import "sort"

// RewardTier grants RoleID once a referrer's points reach Threshold.
type RewardTier struct {
	Threshold int
	RoleID    string
}

// LeaderboardLocation points at the message that shows a guild's leaderboard.
// Stored under top_messages.
type LeaderboardLocation struct {
	ChannelID Snowflake `json:"channel"`
	MessageID Snowflake `json:"message"`
}

// GuildConfig is the administrator-controlled part of a guild's state.
type GuildConfig struct {
	LogChannelID     string
	WelcomeChannelID string
	RewardTiers      []RewardTier // ascending by Threshold
	Multiplier       int
	Leaderboard      *LeaderboardLocation
}

// EffectiveMultiplier is the configured multiplier, never below 1.
func (c GuildConfig) EffectiveMultiplier() int {
	if c.Multiplier < 1 {
		return 1
	}
	return c.Multiplier
}

// SortTiers orders tiers by threshold, keeping input order for equal thresholds.
func SortTiers(tiers []RewardTier) []RewardTier {
	out := append([]RewardTier(nil), tiers...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Threshold < out[j].Threshold
	})
	return out
}

// GuildState is everything the bot remembers about one guild.
type GuildState struct {
	GuildID    string
	Config     GuildConfig
	InvitedBy  map[string]Referral // member -> credited referral
	Points     *PointLedger        // referrer -> points
	History    map[string][]string // referrer -> present credited members
	FakeCounts map[string]int      // referrer -> fraudulent arrivals
}

// NewGuildState returns an empty state with every map allocated.
func NewGuildState(guildID string) *GuildState {
	return &GuildState{
		GuildID:    guildID,
		Config:     GuildConfig{Multiplier: 1},
		InvitedBy:  make(map[string]Referral),
		Points:     NewPointLedger(),
		History:    make(map[string][]string),
		FakeCounts: make(map[string]int),
	}
}

// AttributedPoints sums the points carried by every live referral.
func (g *GuildState) AttributedPoints() int {
	total := 0
	for _, r := range g.InvitedBy {
		total += r.Points
	}
	return total
}

// Clone returns a deep copy, used to hand read-only views out of the repository.
func (g *GuildState) Clone() *GuildState {
	out := NewGuildState(g.GuildID)
	out.Config = g.Config
	out.Config.RewardTiers = append([]RewardTier(nil), g.Config.RewardTiers...)
	if g.Config.Leaderboard != nil {
		loc := *g.Config.Leaderboard
		out.Config.Leaderboard = &loc
	}
	for k, v := range g.InvitedBy {
		out.InvitedBy[k] = v
	}
	out.Points = g.Points.Clone()
	for k, v := range g.History {
		out.History[k] = append([]string(nil), v...)
	}
	for k, v := range g.FakeCounts {
		out.FakeCounts[k] = v
	}
	return out
}
