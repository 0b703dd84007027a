package services

import (
	"context"
	"errors"
	"fmt"

	"invite-reward-bot/models"

	"go.uber.org/zap"
)

// MaxRewardTiers is how many tiers one tier command can configure.
const MaxRewardTiers = 3

// BackupFilename is the attachment name used for state exports.
const BackupFilename = "bot_data.json"

// TierInput is one (role, threshold) pair from the tier command.
type TierInput struct {
	RoleID    string
	Threshold int
}

// AdminService holds the business logic behind the administrator commands. None of it
// touches the ledger except ResetReferrer.
type AdminService struct {
	Repo        *GuildStateRepository
	Gateway     Gateway
	Leaderboard *LeaderboardPublisher
	Fraud       FraudClassifier
	Log         *zap.SugaredLogger
}

func NewAdminService(repo *GuildStateRepository, gw Gateway, leaderboard *LeaderboardPublisher, fraud FraudClassifier, log *zap.SugaredLogger) *AdminService {
	return &AdminService{Repo: repo, Gateway: gw, Leaderboard: leaderboard, Fraud: fraud, Log: log}
}

// SetRewardTiers replaces the guild's tiers. The first pair is always taken; later pairs
// only when they name a role and a positive threshold.
func (s *AdminService) SetRewardTiers(ctx context.Context, guildID string, inputs []TierInput) ([]models.RewardTier, error) {
	if len(inputs) == 0 || inputs[0].RoleID == "" {
		return nil, errors.New("the first reward role is required")
	}
	if len(inputs) > MaxRewardTiers {
		return nil, fmt.Errorf("at most %d reward tiers", MaxRewardTiers)
	}

	tiers := []models.RewardTier{{Threshold: inputs[0].Threshold, RoleID: inputs[0].RoleID}}
	for _, in := range inputs[1:] {
		if in.RoleID == "" || in.Threshold <= 0 {
			continue
		}
		tiers = append(tiers, models.RewardTier{Threshold: in.Threshold, RoleID: in.RoleID})
	}

	err := s.Repo.Transact(ctx, guildID, func(state *models.GuildState) error {
		state.Config.RewardTiers = models.SortTiers(tiers)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Log.Infow("[CMD] reward tiers set", "guild", guildID, "tiers", len(tiers))
	return tiers, nil
}

// SetMultiplier stores the guild multiplier, raising anything below 1 to 1.
func (s *AdminService) SetMultiplier(ctx context.Context, guildID string, multiplier int) (int, error) {
	if multiplier < 1 {
		multiplier = 1
	}
	err := s.Repo.Transact(ctx, guildID, func(state *models.GuildState) error {
		state.Config.Multiplier = multiplier
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.Log.Infow("[CMD] multiplier set", "guild", guildID, "multiplier", multiplier)
	return multiplier, nil
}

func (s *AdminService) SetLogChannel(ctx context.Context, guildID, channelID string) error {
	return s.Repo.Transact(ctx, guildID, func(state *models.GuildState) error {
		state.Config.LogChannelID = channelID
		return nil
	})
}

func (s *AdminService) SetWelcomeChannel(ctx context.Context, guildID, channelID string) error {
	return s.Repo.Transact(ctx, guildID, func(state *models.GuildState) error {
		state.Config.WelcomeChannelID = channelID
		return nil
	})
}

// SetupLeaderboard posts a placeholder in channelID, remembers it as the guild's
// leaderboard, and fills it in.
func (s *AdminService) SetupLeaderboard(ctx context.Context, guildID, channelID string) error {
	defer s.Leaderboard.lockGuild(guildID)()

	msgID, err := s.Gateway.SendEmbed(ctx, channelID, models.Embed{
		Title:       "📊 Leaderboard...",
		Description: "Loading... ⏳",
	})
	if err != nil {
		return fmt.Errorf("post leaderboard placeholder: %w", err)
	}
	err = s.Repo.Transact(ctx, guildID, func(state *models.GuildState) error {
		state.Config.Leaderboard = &models.LeaderboardLocation{
			ChannelID: models.Snowflake(channelID),
			MessageID: models.Snowflake(msgID),
		}
		return nil
	})
	if err != nil {
		return err
	}
	return s.Leaderboard.publish(ctx, guildID)
}

// Announcement renders the campaign post. It needs reward tiers to exist.
func (s *AdminService) Announcement(guildID, iconURL string) (models.Embed, error) {
	cfg := s.Repo.View(guildID).Config
	if len(cfg.RewardTiers) == 0 {
		return models.Embed{}, fmt.Errorf("reward tiers: %w", ErrNotConfigured)
	}
	return announcementNotice(cfg, iconURL, s.Fraud.ThresholdDays()), nil
}

// UserReport summarizes one referrer: points, fake invites, and who they brought in.
func (s *AdminService) UserReport(guildID, userID, displayName string) models.Embed {
	state := s.Repo.View(guildID)
	return userReportNotice(displayName, state.Points.Get(userID), state.FakeCounts[userID], state.History[userID])
}

// Points returns a referrer's current balance.
func (s *AdminService) Points(guildID, userID string) int {
	return s.Repo.View(guildID).Points.Get(userID)
}

// InviteLink creates a permanent, unlimited invite for the "get my link" button.
func (s *AdminService) InviteLink(ctx context.Context, channelID string) (string, error) {
	return s.Gateway.CreateInvite(ctx, channelID)
}

// SendBackup DMs the whole state document to userID.
func (s *AdminService) SendBackup(ctx context.Context, userID string) error {
	doc, err := s.Repo.Export()
	if err != nil {
		return err
	}
	if err := s.Gateway.SendDirectFile(ctx, userID, "📁 **Here is the bot's data backup**", BackupFilename, doc); err != nil {
		return fmt.Errorf("send backup: %w", err)
	}
	s.Log.Infow("[BACKUP] sent by DM", "user", userID, "bytes", len(doc))
	return nil
}

// ResetReferrer detaches every member credited to inviterID and zeroes their balance.
func (s *AdminService) ResetReferrer(ctx context.Context, guildID, inviterID string) (int, error) {
	removed := 0
	err := s.Repo.Transact(ctx, guildID, func(state *models.GuildState) error {
		if !state.Points.Has(inviterID) {
			return ErrNoChange
		}
		removed = ResetReferrer(state, inviterID)
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.Log.Infow("[CMD] referrer reset", "guild", guildID, "inviter", inviterID, "detached", removed)
	s.Leaderboard.PublishQuietly(ctx, guildID)
	return removed, nil
}
