package services

import (
	"invite-reward-bot/models"
)

// Milestones are fixed point totals announced in the log channel, independent of roles.
var Milestones = []int{50, 100, 150, 200, 300, 500, 1000}

// Crossings are the reward tiers and milestones passed by one credit.
type Crossings struct {
	Tiers      []models.RewardTier
	Milestones []int
}

func (c Crossings) Empty() bool {
	return len(c.Tiers) == 0 && len(c.Milestones) == 0
}

// DetectCrossings returns every tier and milestone t with oldTotal < t <= newTotal.
// A large jump fires all thresholds inside the range, each once.
func DetectCrossings(tiers []models.RewardTier, milestones []int, oldTotal, newTotal int) Crossings {
	var out Crossings
	if newTotal <= oldTotal {
		return out
	}
	for _, tier := range models.SortTiers(tiers) {
		if oldTotal < tier.Threshold && tier.Threshold <= newTotal {
			out.Tiers = append(out.Tiers, tier)
		}
	}
	for _, m := range milestones {
		if oldTotal < m && m <= newTotal {
			out.Milestones = append(out.Milestones, m)
		}
	}
	return out
}

// PointsFor is what one credited arrival is worth: the multiplier, plus one for boosters.
func PointsFor(cfg models.GuildConfig, booster bool) int {
	points := cfg.EffectiveMultiplier()
	if booster {
		points++
	}
	return points
}

// Credit describes a ledger credit after it has been applied.
type Credit struct {
	InviterID string
	MemberID  string
	Points    int
	OldTotal  int
	NewTotal  int
	Crossings Crossings
	// Replaced is set when the member still carried a record from an unobserved
	// departure; it was reversed before this credit.
	Replaced *Reversal
}

// Reversal describes a referral taken back.
type Reversal struct {
	InviterID string
	MemberID  string
	Points    int
	NewTotal  int
}

// CreditReferral records memberID as brought in by inviterID for points and returns the
// thresholds crossed. The attribution record, history, and ledger change together.
func CreditReferral(state *models.GuildState, inviterID, memberID string, points int) Credit {
	credit := Credit{InviterID: inviterID, MemberID: memberID, Points: points}
	if rev, ok := ReverseReferral(state, memberID); ok {
		credit.Replaced = &rev
	}

	credit.OldTotal = state.Points.Get(inviterID)
	credit.NewTotal = credit.OldTotal + points
	state.Points.Set(inviterID, credit.NewTotal)
	state.InvitedBy[memberID] = models.Referral{InviterID: inviterID, Points: points}
	state.History[inviterID] = append(state.History[inviterID], memberID)

	credit.Crossings = DetectCrossings(state.Config.RewardTiers, Milestones, credit.OldTotal, credit.NewTotal)
	return credit
}

// ReverseReferral undoes the referral recorded for memberID. The balance is clamped at
// zero. ok is false when the member was never credited.
func ReverseReferral(state *models.GuildState, memberID string) (Reversal, bool) {
	ref, ok := state.InvitedBy[memberID]
	if !ok {
		return Reversal{}, false
	}
	delete(state.InvitedBy, memberID)

	total := state.Points.Get(ref.InviterID) - ref.Points
	state.Points.Set(ref.InviterID, total)
	removeFromHistory(state, ref.InviterID, memberID)

	return Reversal{
		InviterID: ref.InviterID,
		MemberID:  memberID,
		Points:    ref.Points,
		NewTotal:  state.Points.Get(ref.InviterID),
	}, true
}

// RecordFakeInvite bumps the fraud counter for inviterID and returns the new count.
func RecordFakeInvite(state *models.GuildState, inviterID string) int {
	state.FakeCounts[inviterID]++
	return state.FakeCounts[inviterID]
}

// ResetReferrer removes every referral credited to inviterID and zeroes their balance.
// It returns how many members were detached.
func ResetReferrer(state *models.GuildState, inviterID string) int {
	removed := 0
	for memberID, ref := range state.InvitedBy {
		if ref.InviterID == inviterID {
			delete(state.InvitedBy, memberID)
			removed++
		}
	}
	delete(state.History, inviterID)
	if state.Points.Has(inviterID) {
		state.Points.Set(inviterID, 0)
	}
	return removed
}

func removeFromHistory(state *models.GuildState, inviterID, memberID string) {
	history := state.History[inviterID]
	for i, id := range history {
		if id == memberID {
			history = append(history[:i:i], history[i+1:]...)
			break
		}
	}
	if len(history) == 0 {
		delete(state.History, inviterID)
		return
	}
	state.History[inviterID] = history
}
