package services

import (
	"context"
	"errors"
	"fmt"

	"invite-reward-bot/models"

	"go.uber.org/zap"
)

// JoinOutcome says what an arrival did to the ledger.
type JoinOutcome int

const (
	JoinUntracked JoinOutcome = iota
	JoinCredited
	JoinFake
)

func (o JoinOutcome) String() string {
	switch o {
	case JoinCredited:
		return "credited"
	case JoinFake:
		return "fake"
	default:
		return "unresolved"
	}
}

// JoinResult is returned by HandleMemberJoin, mostly for tests and logs.
type JoinResult struct {
	Outcome   JoinOutcome
	InviterID string
	Credit    *Credit
	FakeCount int
	Kicked    bool
}

// ReferralService turns gateway notifications into ledger changes and their follow-up
// messages.
type ReferralService struct {
	Repo        *GuildStateRepository
	Snapshots   *SnapshotStore
	Resolver    *AttributionResolver
	Fraud       FraudClassifier
	Gateway     Gateway
	Leaderboard *LeaderboardPublisher
	Metrics     *Metrics
	Log         *zap.SugaredLogger
}

func NewReferralService(repo *GuildStateRepository, gw Gateway, fraud FraudClassifier, metrics *Metrics, log *zap.SugaredLogger) *ReferralService {
	snapshots := NewSnapshotStore(gw)
	return &ReferralService{
		Repo:        repo,
		Snapshots:   snapshots,
		Resolver:    &AttributionResolver{Snapshots: snapshots},
		Fraud:       fraud,
		Gateway:     gw,
		Leaderboard: NewLeaderboardPublisher(repo, gw, log),
		Metrics:     metrics,
		Log:         log,
	}
}

// HandleMemberJoin attributes an arrival and applies it. The guild stays locked from the
// snapshot refresh until the new state is flushed; messages, kicks and role grants go out
// afterwards and never undo the ledger change.
func (s *ReferralService) HandleMemberJoin(ctx context.Context, arrival models.Arrival) (JoinResult, error) {
	var (
		result   JoinResult
		cfg      models.GuildConfig
		flushErr error
	)
	guildID := arrival.GuildID

	err := s.Repo.WithGuildLock(guildID, func() error {
		link, err := s.Resolver.Resolve(ctx, guildID)
		if err != nil {
			return err
		}
		result.InviterID = link.InviterID

		if s.Fraud.Classify(arrival) == Fraudulent {
			result.Outcome = JoinFake
			flushErr = s.Repo.Mutate(ctx, guildID, func(state *models.GuildState) error {
				result.FakeCount = RecordFakeInvite(state, link.InviterID)
				cfg = state.Config
				return nil
			})
			return nil
		}

		booster, err := s.Gateway.IsBooster(ctx, guildID, link.InviterID)
		if err != nil {
			s.Log.Warnw("[JOIN] booster lookup failed, no bonus", "guild", guildID, "inviter", link.InviterID, "error", err)
			booster = false
		}
		result.Outcome = JoinCredited
		flushErr = s.Repo.Mutate(ctx, guildID, func(state *models.GuildState) error {
			credit := CreditReferral(state, link.InviterID, arrival.MemberID, PointsFor(state.Config, booster))
			result.Credit = &credit
			cfg = state.Config
			s.Metrics.ledgerTotal(guildID, state.Points.Total())
			return nil
		})
		return nil
	})
	if errors.Is(err, ErrUnresolved) {
		s.Metrics.arrival(JoinUntracked.String())
		s.Log.Infow("[JOIN] arrival not attributed", "guild", guildID, "member", arrival.MemberID, "reason", err)
		return result, nil
	}
	if err != nil {
		s.Metrics.arrival(JoinUntracked.String())
		return result, fmt.Errorf("attribute arrival of %s: %w", arrival.MemberID, err)
	}
	s.Metrics.arrival(result.Outcome.String())

	switch result.Outcome {
	case JoinFake:
		s.Log.Infow("[JOIN] 🚨 fake invite", "guild", guildID, "inviter", result.InviterID, "member", arrival.MemberID, "count", result.FakeCount)
		result.Kicked = s.kickFake(ctx, arrival)
		s.notify(ctx, cfg.LogChannelID, "fraud", fraudNotice(result.InviterID, arrival.MemberID, result.FakeCount, result.Kicked))
	case JoinCredited:
		credit := *result.Credit
		if credit.Replaced != nil {
			s.Log.Warnw("[JOIN] member rejoined with a live record, old credit reversed",
				"guild", guildID, "member", arrival.MemberID, "previous_inviter", credit.Replaced.InviterID)
		}
		s.Log.Infow("[JOIN] ✅ invite credited", "guild", guildID, "inviter", credit.InviterID,
			"member", arrival.MemberID, "points", credit.Points, "total", credit.NewTotal)
		s.announceCredit(ctx, arrival, credit, cfg)
		s.Leaderboard.PublishQuietly(ctx, guildID)
	}
	return result, flushErr
}

func (s *ReferralService) kickFake(ctx context.Context, arrival models.Arrival) bool {
	reason := fmt.Sprintf("Auto-Mod: account younger than %d days", s.Fraud.ThresholdDays())
	if err := s.Gateway.KickMember(ctx, arrival.GuildID, arrival.MemberID, reason); err != nil {
		s.Metrics.sideEffectFailed("kick")
		s.Log.Warnw("[JOIN] ⚠️ could not kick fake account", "guild", arrival.GuildID, "member", arrival.MemberID, "error", err)
		return false
	}
	return true
}

func (s *ReferralService) announceCredit(ctx context.Context, arrival models.Arrival, credit Credit, cfg models.GuildConfig) {
	s.notify(ctx, cfg.WelcomeChannelID, "welcome", welcomeNotice(arrival, credit))

	for _, tier := range credit.Crossings.Tiers {
		if err := s.Gateway.AddMemberRole(ctx, arrival.GuildID, credit.InviterID, tier.RoleID); err != nil {
			s.Metrics.sideEffectFailed("role")
			s.Log.Warnw("[REWARD] ⚠️ role grant failed", "guild", arrival.GuildID, "inviter", credit.InviterID,
				"role", tier.RoleID, "threshold", tier.Threshold, "error", err)
			continue
		}
		s.Log.Infow("[REWARD] 🎉 tier unlocked", "guild", arrival.GuildID, "inviter", credit.InviterID, "threshold", tier.Threshold)
		s.notify(ctx, cfg.LogChannelID, "tier", tierNotice(credit.InviterID, tier))
	}
	for _, m := range credit.Crossings.Milestones {
		s.notify(ctx, cfg.LogChannelID, "milestone", milestoneNotice(credit.InviterID, m))
	}
}

// notify sends one embed; failures are logged and counted, never returned.
func (s *ReferralService) notify(ctx context.Context, channelID, kind string, embed models.Embed) {
	if channelID == "" {
		return
	}
	if _, err := s.Gateway.SendEmbed(ctx, channelID, embed); err != nil {
		s.Metrics.sideEffectFailed("message")
		s.Log.Warnw("[NOTIFY] ⚠️ send failed", "kind", kind, "channel", channelID, "error", err)
	}
}

// HandleMemberLeave reverses the departing member's credit, if any.
func (s *ReferralService) HandleMemberLeave(ctx context.Context, guildID, memberID string) (Reversal, bool, error) {
	var (
		rev      Reversal
		reversed bool
	)
	err := s.Repo.Transact(ctx, guildID, func(state *models.GuildState) error {
		rev, reversed = ReverseReferral(state, memberID)
		if !reversed {
			return ErrNoChange
		}
		s.Metrics.ledgerTotal(guildID, state.Points.Total())
		return nil
	})
	if !reversed {
		return rev, false, err
	}
	s.Metrics.reversal()
	s.Log.Infow("[LEAVE] ↩️ credit reversed", "guild", guildID, "member", memberID,
		"inviter", rev.InviterID, "points", rev.Points, "total", rev.NewTotal)
	s.Leaderboard.PublishQuietly(ctx, guildID)
	return rev, true, err
}

// HandleInviteChange refreshes the guild's snapshot after an invite was created or deleted.
func (s *ReferralService) HandleInviteChange(ctx context.Context, guildID string) error {
	return s.Repo.WithGuildLock(guildID, func() error {
		return s.Snapshots.Refresh(ctx, guildID)
	})
}

// SyncGuild primes the snapshot and redraws the leaderboard, as done on startup.
// A refused invite listing leaves the guild untracked.
func (s *ReferralService) SyncGuild(ctx context.Context, guildID string) {
	if err := s.HandleInviteChange(ctx, guildID); err != nil {
		s.Log.Warnw("[INVITES] ⚠️ cannot track invites", "guild", guildID, "error", err)
	}
	s.Leaderboard.PublishQuietly(ctx, guildID)
}
