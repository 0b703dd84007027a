package services

import (
	"context"
	"fmt"

	"invite-reward-bot/storage"

	"go.uber.org/zap"
)

// MigrateState copies the document in src to dst. The document is decoded and
// re-encoded on the way, so legacy layouts come out normalized. It returns the number
// of guilds copied.
func MigrateState(ctx context.Context, src, dst storage.Store, log *zap.SugaredLogger) (int, error) {
	repo, err := LoadGuildStateRepository(ctx, src, log)
	if err != nil {
		return 0, fmt.Errorf("read source: %w", err)
	}
	doc, err := repo.Export()
	if err != nil {
		return 0, fmt.Errorf("encode state: %w", err)
	}
	if err := dst.Save(ctx, doc); err != nil {
		return 0, fmt.Errorf("write target: %w", err)
	}
	n := len(repo.GuildIDs())
	log.Infow("[STATE] ✅ state migrated", "guilds", n, "bytes", len(doc))
	return n, nil
}
