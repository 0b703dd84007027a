package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"invite-reward-bot/models"
	"invite-reward-bot/storage"

	"go.uber.org/zap"
)

// ErrNoChange tells Mutate the callback left the state alone; nothing is written.
var ErrNoChange = errors.New("no change")

// GuildStateRepository owns all guild state and is the only writer to the store.
//
// Each guild has its own lock, held by callers across a whole read-refresh-update-flush
// sequence (see WithGuildLock). Mutations apply to a copy that is swapped in whole, and
// every swap is followed by a full write of the document, so readers and the store only
// ever see complete states.
type GuildStateRepository struct {
	store storage.Store
	log   *zap.SugaredLogger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	dataMu sync.RWMutex
	data   *models.BotData

	saveMu sync.Mutex
}

// LoadGuildStateRepository reads the stored document. A missing document starts empty.
func LoadGuildStateRepository(ctx context.Context, store storage.Store, log *zap.SugaredLogger) (*GuildStateRepository, error) {
	data := models.NewBotData()
	raw, err := store.Load(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		log.Infow("[STATE] no stored state, starting empty")
	case err != nil:
		return nil, fmt.Errorf("load state: %w", err)
	default:
		data, err = models.DecodeBotData(raw)
		if err != nil {
			return nil, fmt.Errorf("decode state: %w", err)
		}
		log.Infow("[STATE] ✅ state loaded", "guilds", len(data.Guilds))
	}

	return &GuildStateRepository{
		store: store,
		log:   log,
		locks: make(map[string]*sync.Mutex),
		data:  data,
	}, nil
}

func (r *GuildStateRepository) guildLock(guildID string) *sync.Mutex {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()
	mu, ok := r.locks[guildID]
	if !ok {
		mu = &sync.Mutex{}
		r.locks[guildID] = mu
	}
	return mu
}

// WithGuildLock runs fn while holding the guild's exclusive lock. Guilds never block
// each other. fn may call Mutate and View but not Transact for the same guild.
func (r *GuildStateRepository) WithGuildLock(guildID string, fn func() error) error {
	mu := r.guildLock(guildID)
	mu.Lock()
	defer mu.Unlock()
	return fn()
}

// Mutate applies fn to a copy of the guild's state, installs the copy, and flushes the
// whole document. If fn fails nothing is installed; ErrNoChange is swallowed.
// Callers are expected to hold the guild lock.
func (r *GuildStateRepository) Mutate(ctx context.Context, guildID string, fn func(state *models.GuildState) error) error {
	r.dataMu.Lock()
	var next *models.GuildState
	if cur, ok := r.data.Lookup(guildID); ok {
		next = cur.Clone()
	} else {
		next = models.NewGuildState(guildID)
	}
	if err := fn(next); err != nil {
		r.dataMu.Unlock()
		if errors.Is(err, ErrNoChange) {
			return nil
		}
		return err
	}
	r.data.Guilds[guildID] = next
	r.dataMu.Unlock()

	return r.Flush(ctx)
}

// Transact is Mutate under the guild lock.
func (r *GuildStateRepository) Transact(ctx context.Context, guildID string, fn func(state *models.GuildState) error) error {
	return r.WithGuildLock(guildID, func() error {
		return r.Mutate(ctx, guildID, fn)
	})
}

// View returns a copy of the guild's state.
func (r *GuildStateRepository) View(guildID string) *models.GuildState {
	r.dataMu.RLock()
	defer r.dataMu.RUnlock()
	if state, ok := r.data.Lookup(guildID); ok {
		return state.Clone()
	}
	return models.NewGuildState(guildID)
}

// Leaderboard returns where the guild's leaderboard lives and its top entries.
// ok is false when no leaderboard is configured.
func (r *GuildStateRepository) Leaderboard(guildID string, limit int) (models.LeaderboardLocation, []models.LeaderboardEntry, bool) {
	r.dataMu.RLock()
	defer r.dataMu.RUnlock()
	state, ok := r.data.Lookup(guildID)
	if !ok || state.Config.Leaderboard == nil {
		return models.LeaderboardLocation{}, nil, false
	}
	return *state.Config.Leaderboard, Rank(state.Points, limit), true
}

// Ranking returns the guild's top entries under the read lock only. limit outside
// 1..LeaderboardSize means LeaderboardSize. ok is false for a guild with no stored state.
func (r *GuildStateRepository) Ranking(guildID string, limit int) ([]models.LeaderboardEntry, bool) {
	if limit < 1 || limit > LeaderboardSize {
		limit = LeaderboardSize
	}
	r.dataMu.RLock()
	defer r.dataMu.RUnlock()
	state, ok := r.data.Lookup(guildID)
	if !ok {
		return nil, false
	}
	return Rank(state.Points, limit), true
}

// GuildIDs lists every guild with stored state.
func (r *GuildStateRepository) GuildIDs() []string {
	r.dataMu.RLock()
	defer r.dataMu.RUnlock()
	return r.data.GuildIDs()
}

// Export encodes the full document as it would be stored.
func (r *GuildStateRepository) Export() ([]byte, error) {
	r.dataMu.RLock()
	defer r.dataMu.RUnlock()
	return models.EncodeBotData(r.data)
}

// Flush writes the whole document. Writers are serialized so an older document can
// never land after a newer one.
func (r *GuildStateRepository) Flush(ctx context.Context) error {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	doc, err := r.Export()
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := r.store.Save(ctx, doc); err != nil {
		r.log.Errorw("[STATE] ❌ flush failed", "error", err)
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}
