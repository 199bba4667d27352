package model

import "sync"

// gameSlugRegistry is a thread-safe mapping of Twitch game IDs to their
// API-provided slugs. It is populated from campaign data and directory
// responses, and consulted before issuing a GameByID lookup when a
// directory query needs a slug the campaign payload didn't carry.
var gameSlugRegistry = struct {
	sync.RWMutex
	slugsByGameID map[string]string
}{slugsByGameID: make(map[string]string)}

// RegisterGameSlug records a game ID → slug mapping in the global registry.
// Both gameID and slug must be non-empty; empty values are silently ignored.
func RegisterGameSlug(gameID, slug string) {
	if gameID == "" || slug == "" {
		return
	}
	gameSlugRegistry.Lock()
	gameSlugRegistry.slugsByGameID[gameID] = slug
	gameSlugRegistry.Unlock()
}

// LookupGameSlug returns the slug for a game ID, or "" if not found.
func LookupGameSlug(gameID string) string {
	gameSlugRegistry.RLock()
	defer gameSlugRegistry.RUnlock()
	return gameSlugRegistry.slugsByGameID[gameID]
}
