package services

import (
	"context"
	"fmt"

	"invite-reward-bot/models"
)

// UsedInvite finds the invite consumed between two snapshots: the first link of old,
// in order, whose use count grew in new. When two links grew in the same window only the
// first is reported.
func UsedInvite(old, new models.LinkSnapshot) (models.InviteLink, bool) {
	for _, before := range old {
		after, ok := new.Find(before.Code)
		if ok && before.Uses < after.Uses {
			return after, true
		}
	}
	return models.InviteLink{}, false
}

// AttributionResolver matches arrivals to invites by diffing snapshots around a refresh.
// Callers must hold the guild's lock so no other refresh lands between the two reads.
type AttributionResolver struct {
	Snapshots *SnapshotStore
}

// Resolve refreshes the guild's snapshot and returns the invite used by the latest
// arrival. It returns ErrUnresolved when the guild had no snapshot yet or no link grew;
// a failed refresh is returned wrapped, alongside ErrUnresolved for an untracked guild.
func (r *AttributionResolver) Resolve(ctx context.Context, guildID string) (models.InviteLink, error) {
	old, tracked := r.Snapshots.Get(guildID)
	if !tracked {
		// Still refresh so the next arrival can be attributed.
		if err := r.Snapshots.Refresh(ctx, guildID); err != nil {
			return models.InviteLink{}, fmt.Errorf("%w: %w", ErrUnresolved, err)
		}
		return models.InviteLink{}, ErrUnresolved
	}
	if err := r.Snapshots.Refresh(ctx, guildID); err != nil {
		return models.InviteLink{}, err
	}
	current, _ := r.Snapshots.Get(guildID)
	link, ok := UsedInvite(old, current)
	if !ok || link.InviterID == "" {
		return models.InviteLink{}, ErrUnresolved
	}
	return link, nil
}
