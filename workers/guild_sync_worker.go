// workers/guild_sync_worker.go
package workers

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// GuildSyncer primes a guild's invite snapshot and redraws its leaderboard.
type GuildSyncer interface {
	SyncGuild(ctx context.Context, guildID string)
}

// GuildSyncWorker syncs guilds off the gateway's event goroutine. Ready and guild-create
// events enqueue; one goroutine drains the queue.
type GuildSyncWorker struct {
	syncer GuildSyncer
	log    *zap.SugaredLogger
	queue  chan string

	mu      sync.Mutex
	pending map[string]bool

	done chan struct{}
}

const syncQueueSize = 256

func NewGuildSyncWorker(syncer GuildSyncer, log *zap.SugaredLogger) *GuildSyncWorker {
	return &GuildSyncWorker{
		syncer:  syncer,
		log:     log,
		queue:   make(chan string, syncQueueSize),
		pending: make(map[string]bool),
		done:    make(chan struct{}),
	}
}

// Start runs the worker until ctx is cancelled.
func (w *GuildSyncWorker) Start(ctx context.Context) {
	w.log.Infow("🔁 [SYNC] guild sync worker started")
	go w.run(ctx)
}

// Enqueue schedules guilds for a sync. A guild already waiting is not queued twice.
// It gives up when ctx is done.
func (w *GuildSyncWorker) Enqueue(ctx context.Context, guildIDs ...string) {
	for _, id := range guildIDs {
		w.mu.Lock()
		if w.pending[id] {
			w.mu.Unlock()
			continue
		}
		w.pending[id] = true
		w.mu.Unlock()

		select {
		case w.queue <- id:
		case <-ctx.Done():
			w.mu.Lock()
			delete(w.pending, id)
			w.mu.Unlock()
			return
		}
	}
}

// Done is closed once the worker has stopped.
func (w *GuildSyncWorker) Done() <-chan struct{} {
	return w.done
}

func (w *GuildSyncWorker) run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			w.log.Infow("🛑 [SYNC] guild sync worker stopped")
			return
		case id := <-w.queue:
			w.mu.Lock()
			delete(w.pending, id)
			w.mu.Unlock()

			w.syncer.SyncGuild(ctx, id)
			w.log.Debugw("[SYNC] guild synced", "guild", id)
		}
	}
}
