package config

import (
	"sync"

	"github.com/eryxsegithub/TheStudioBot/internal/models"
)

// ProfileStore keeps the last settings successfully read from the store for
// each guild. Detection falls back to it while the store is failing so a
// storage outage degrades to stale settings instead of no protection.
type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]models.GuildSettings
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{
		profiles: make(map[string]models.GuildSettings),
	}
}

// Get returns a copy of the cached settings, or fresh defaults.
func (ps *ProfileStore) Get(guildID string) (models.GuildSettings, bool) {
	ps.mu.RLock()
	profile, ok := ps.profiles[guildID]
	ps.mu.RUnlock()

	if !ok {
		return models.NewGuildSettings(guildID), false
	}
	return profile.Clone(), true
}

func (ps *ProfileStore) Set(settings models.GuildSettings) {
	settings = settings.Clone()
	ps.mu.Lock()
	ps.profiles[settings.GuildID] = settings
	ps.mu.Unlock()
}

func (ps *ProfileStore) Delete(guildID string) {
	ps.mu.Lock()
	delete(ps.profiles, guildID)
	ps.mu.Unlock()
}

func (ps *ProfileStore) IsWhitelisted(guildID, userID string) bool {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	profile, ok := ps.profiles[guildID]
	return ok && profile.IsWhitelisted(userID)
}

func (ps *ProfileStore) Len() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.profiles)
}
