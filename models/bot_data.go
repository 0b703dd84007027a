package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// BotData is the whole persisted state, keyed by guild id.
type BotData struct {
	Guilds map[string]*GuildState
}

func NewBotData() *BotData {
	return &BotData{Guilds: make(map[string]*GuildState)}
}

// Guild returns the state for guildID, creating an empty one on first use.
func (d *BotData) Guild(guildID string) *GuildState {
	g, ok := d.Guilds[guildID]
	if !ok {
		g = NewGuildState(guildID)
		d.Guilds[guildID] = g
	}
	return g
}

// Lookup returns the state for guildID without creating it.
func (d *BotData) Lookup(guildID string) (*GuildState, bool) {
	g, ok := d.Guilds[guildID]
	return g, ok
}

// GuildIDs lists known guilds in a stable order.
func (d *BotData) GuildIDs() []string {
	ids := make([]string, 0, len(d.Guilds))
	for id := range d.Guilds {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// botDataFile is the on-disk layout of bot_data.json.
type botDataFile struct {
	RewardsConfig    map[string]map[string]Snowflake `json:"rewards_config"`
	LogChannels      map[string]Snowflake            `json:"log_channels"`
	WelcomeChannels  map[string]Snowflake            `json:"welcome_channels"`
	TopMessages      map[string]LeaderboardLocation  `json:"top_messages"`
	InvitedBy        map[string]map[string]Referral  `json:"invited_by"`
	RealInvites      map[string]*PointLedger         `json:"real_invites"`
	InviteHistory    map[string]map[string][]string  `json:"invite_history"`
	FakeInviteCounts map[string]map[string]int       `json:"fake_invite_counts"`
	Multipliers      map[string]int                  `json:"multipliers"`
}

// DecodeBotData parses a state document. Missing keys decode as empty mappings, legacy
// invited_by entries are upgraded, and every guild's history is rebuilt to match its live
// referrals.
func DecodeBotData(data []byte) (*BotData, error) {
	out := NewBotData()
	if len(bytes.TrimSpace(data)) == 0 {
		return out, nil
	}

	var file botDataFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode bot data: %w", err)
	}

	for guildID, tiers := range file.RewardsConfig {
		g := out.Guild(guildID)
		for thresholdStr, roleID := range tiers {
			threshold, err := strconv.Atoi(thresholdStr)
			if err != nil {
				return nil, fmt.Errorf("decode bot data: guild %s has invalid reward threshold %q", guildID, thresholdStr)
			}
			g.Config.RewardTiers = append(g.Config.RewardTiers, RewardTier{Threshold: threshold, RoleID: roleID.String()})
		}
		g.Config.RewardTiers = SortTiers(g.Config.RewardTiers)
	}
	for guildID, ch := range file.LogChannels {
		out.Guild(guildID).Config.LogChannelID = ch.String()
	}
	for guildID, ch := range file.WelcomeChannels {
		out.Guild(guildID).Config.WelcomeChannelID = ch.String()
	}
	for guildID, loc := range file.TopMessages {
		loc := loc
		out.Guild(guildID).Config.Leaderboard = &loc
	}
	for guildID, mult := range file.Multipliers {
		out.Guild(guildID).Config.Multiplier = mult
	}
	for guildID, refs := range file.InvitedBy {
		g := out.Guild(guildID)
		for memberID, ref := range refs {
			g.InvitedBy[memberID] = ref
		}
	}
	for guildID, ledger := range file.RealInvites {
		if ledger == nil {
			continue
		}
		out.Guild(guildID).Points = ledger
	}
	for guildID, hist := range file.InviteHistory {
		g := out.Guild(guildID)
		for inviterID, members := range hist {
			g.History[inviterID] = append([]string(nil), members...)
		}
	}
	for guildID, counts := range file.FakeInviteCounts {
		g := out.Guild(guildID)
		for inviterID, n := range counts {
			g.FakeCounts[inviterID] = n
		}
	}

	for _, g := range out.Guilds {
		g.normalizeHistory()
	}
	return out, nil
}

// normalizeHistory keeps History equal to the set of live referrals per inviter. Members
// already listed keep their position; live referrals missing from the list are appended in
// id order.
func (g *GuildState) normalizeHistory() {
	expected := make(map[string]map[string]bool)
	for memberID, ref := range g.InvitedBy {
		if expected[ref.InviterID] == nil {
			expected[ref.InviterID] = make(map[string]bool)
		}
		expected[ref.InviterID][memberID] = true
	}

	rebuilt := make(map[string][]string, len(g.History))
	for inviterID, members := range g.History {
		seen := make(map[string]bool)
		kept := make([]string, 0, len(members))
		for _, m := range members {
			if expected[inviterID][m] && !seen[m] {
				kept = append(kept, m)
				seen[m] = true
			}
		}
		rebuilt[inviterID] = kept
	}
	for inviterID, members := range expected {
		listed := make(map[string]bool)
		for _, m := range rebuilt[inviterID] {
			listed[m] = true
		}
		var missing []string
		for m := range members {
			if !listed[m] {
				missing = append(missing, m)
			}
		}
		sort.Strings(missing)
		rebuilt[inviterID] = append(rebuilt[inviterID], missing...)
	}
	g.History = rebuilt
}

// EncodeBotData writes the state document in the bot_data.json layout, indented by four spaces.
func EncodeBotData(d *BotData) ([]byte, error) {
	file := botDataFile{
		RewardsConfig:    make(map[string]map[string]Snowflake),
		LogChannels:      make(map[string]Snowflake),
		WelcomeChannels:  make(map[string]Snowflake),
		TopMessages:      make(map[string]LeaderboardLocation),
		InvitedBy:        make(map[string]map[string]Referral),
		RealInvites:      make(map[string]*PointLedger),
		InviteHistory:    make(map[string]map[string][]string),
		FakeInviteCounts: make(map[string]map[string]int),
		Multipliers:      make(map[string]int),
	}

	for guildID, g := range d.Guilds {
		cfg := g.Config
		if len(cfg.RewardTiers) > 0 {
			tiers := make(map[string]Snowflake, len(cfg.RewardTiers))
			for _, t := range cfg.RewardTiers {
				tiers[strconv.Itoa(t.Threshold)] = Snowflake(t.RoleID)
			}
			file.RewardsConfig[guildID] = tiers
		}
		if cfg.LogChannelID != "" {
			file.LogChannels[guildID] = Snowflake(cfg.LogChannelID)
		}
		if cfg.WelcomeChannelID != "" {
			file.WelcomeChannels[guildID] = Snowflake(cfg.WelcomeChannelID)
		}
		if cfg.Leaderboard != nil {
			file.TopMessages[guildID] = *cfg.Leaderboard
		}
		if cfg.Multiplier > 1 {
			file.Multipliers[guildID] = cfg.Multiplier
		}
		if len(g.InvitedBy) > 0 {
			refs := make(map[string]Referral, len(g.InvitedBy))
			for k, v := range g.InvitedBy {
				refs[k] = v
			}
			file.InvitedBy[guildID] = refs
		}
		if g.Points.Len() > 0 {
			file.RealInvites[guildID] = g.Points
		}
		if len(g.History) > 0 {
			file.InviteHistory[guildID] = g.History
		}
		if len(g.FakeCounts) > 0 {
			file.FakeInviteCounts[guildID] = g.FakeCounts
		}
	}

	out, err := json.MarshalIndent(file, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("encode bot data: %w", err)
	}
	return out, nil
}
