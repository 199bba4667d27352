package model

import "fmt"

// Game identifies a game on Twitch. Immutable once constructed;
// two games are the same iff their IDs match.
type Game struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}

// Equal returns true if both games carry the same ID.
func (g Game) Equal(other Game) bool {
	return g.ID != "" && g.ID == other.ID
}

// String returns a human-readable representation of the game.
func (g Game) String() string {
	return fmt.Sprintf("Game(id=%s, name=%s)", g.ID, g.Name)
}
