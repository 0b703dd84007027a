package services

import (
	"context"
	"fmt"
	"sync"

	"invite-reward-bot/models"
)

// SnapshotStore caches the latest invite snapshot per guild.
type SnapshotStore struct {
	gateway Gateway

	mu        sync.RWMutex
	snapshots map[string]models.LinkSnapshot
}

func NewSnapshotStore(gateway Gateway) *SnapshotStore {
	return &SnapshotStore{
		gateway:   gateway,
		snapshots: make(map[string]models.LinkSnapshot),
	}
}

// Refresh replaces the guild's snapshot with a fresh listing. On error the previous
// snapshot is kept.
func (s *SnapshotStore) Refresh(ctx context.Context, guildID string) error {
	links, err := s.gateway.GuildInvites(ctx, guildID)
	if err != nil {
		return fmt.Errorf("list invites for guild %s: %w", guildID, err)
	}
	if links == nil {
		links = models.LinkSnapshot{}
	}
	s.mu.Lock()
	s.snapshots[guildID] = links
	s.mu.Unlock()
	return nil
}

// Get returns the cached snapshot; ok is false while the guild is untracked.
func (s *SnapshotStore) Get(guildID string) (models.LinkSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[guildID]
	return snap, ok
}

// Forget drops a guild, e.g. when the bot leaves it.
func (s *SnapshotStore) Forget(guildID string) {
	s.mu.Lock()
	delete(s.snapshots, guildID)
	s.mu.Unlock()
}
