package database

import (
	"context"
	"fmt"

	"github.com/eryxsegithub/TheStudioBot/internal/config"
	"github.com/eryxsegithub/TheStudioBot/internal/logging"
)

// WarmProfiles loads every stored guild into the last-known settings cache.
func WarmProfiles(ctx context.Context, store Store, profiles *config.ProfileStore) (int, error) {
	ids, err := store.Guilds(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list guilds: %w", err)
	}

	loaded := 0
	for _, id := range ids {
		g, err := store.Get(ctx, id)
		if err != nil {
			logging.Warn("Failed to load guild %s into profile cache: %v", id, err)
			continue
		}
		profiles.Set(g)
		loaded++
	}
	return loaded, nil
}
