package model

import (
	"fmt"
	"sync"
	"time"
)

// Channel is a live-stream candidate tracked by the miner. Identity fields
// are immutable; stream state changes concurrently from PubSub handlers and
// is guarded by mu.
type Channel struct {
	mu sync.RWMutex

	ID          int64  `json:"id"`
	Login       string `json:"login"`
	DisplayName string `json:"display_name"`

	// aclBased channels come from a campaign allow list and are never
	// pruned by cleanup.
	aclBased bool

	online        bool
	pendingOnline bool
	dropsEnabled  bool
	game          *Game
	viewers       int
	points        int
	streamUpAt    time.Time

	// Heartbeat state, cached per stream and dropped on stream-down.
	spadeURL    string
	playbackURL string
}

// NewChannel creates a channel discovered through the game directory.
func NewChannel(id int64, login, displayName string) *Channel {
	return &Channel{
		ID:          id,
		Login:       login,
		DisplayName: displayName,
	}
}

// NewChannelFromACL creates a channel named by a campaign allow list.
func NewChannelFromACL(entry ACLEntry) *Channel {
	return &Channel{
		ID:          entry.ID,
		Login:       entry.Login,
		DisplayName: entry.Login,
		aclBased:    true,
	}
}

// URL returns the channel's web URL.
func (ch *Channel) URL() string {
	return "https://www.twitch.tv/" + ch.Login
}

// Online reports whether the channel is currently live.
func (ch *Channel) Online() bool {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	return ch.online
}

// PendingOnline reports whether a stream-up event is inside its debounce
// window and the channel is about to be confirmed online.
func (ch *Channel) PendingOnline() bool {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	return ch.pendingOnline
}

// SetPendingOnline records a stream-up event. The channel counts as online
// only after the debounce window has been confirmed with fresh stream data.
func (ch *Channel) SetPendingOnline() {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.pendingOnline = true
	ch.streamUpAt = time.Now()
}

// StreamUpSince returns when the last stream-up event arrived.
func (ch *Channel) StreamUpSince() time.Time {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	return ch.streamUpAt
}

// SetStream marks the channel online with fresh playback facts.
func (ch *Channel) SetStream(game *Game, viewers int, dropsEnabled bool) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.online = true
	ch.pendingOnline = false
	ch.game = game
	ch.viewers = viewers
	ch.dropsEnabled = dropsEnabled
}

// SetOffline marks the channel offline and drops the per-stream caches.
func (ch *Channel) SetOffline() {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.online = false
	ch.pendingOnline = false
	ch.game = nil
	ch.viewers = 0
	ch.spadeURL = ""
	ch.playbackURL = ""
}

// Stream returns the current game and online flag in one consistent read.
func (ch *Channel) Stream() (Game, bool) {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	if !ch.online || ch.game == nil {
		return Game{}, ch.online
	}
	return *ch.game, true
}

// Game returns the game currently streamed, or the zero Game when offline
// or unknown.
func (ch *Channel) Game() Game {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	if ch.game == nil {
		return Game{}
	}
	return *ch.game
}

// SetGame updates the streamed game without touching the online flag.
func (ch *Channel) SetGame(game *Game) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.game = game
}

// Viewers returns the last known viewer count.
func (ch *Channel) Viewers() int {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	return ch.viewers
}

// SetViewers updates the viewer count.
func (ch *Channel) SetViewers(v int) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.viewers = v
}

// DropsEnabled reports whether the current stream has drops enabled.
func (ch *Channel) DropsEnabled() bool {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	return ch.dropsEnabled
}

// Points returns the user's community points balance on this channel.
func (ch *Channel) Points() int {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	return ch.points
}

// SetPoints updates the community points balance.
func (ch *Channel) SetPoints(p int) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.points = p
}

// SpadeURL returns the cached heartbeat endpoint for the current stream.
func (ch *Channel) SpadeURL() string {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	return ch.spadeURL
}

// SetSpadeURL caches the heartbeat endpoint for the current stream.
func (ch *Channel) SetSpadeURL(u string) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.spadeURL = u
}

// PlaybackURL returns the cached playback manifest URL for the current stream.
func (ch *Channel) PlaybackURL() string {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	return ch.playbackURL
}

// SetPlaybackURL caches the playback manifest URL for the current stream.
func (ch *Channel) SetPlaybackURL(u string) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.playbackURL = u
}

// IsACLBased reports whether the channel is named by a campaign allow list.
func (ch *Channel) IsACLBased() bool {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	return ch.aclBased
}

// PromoteACL marks the channel as named by a campaign allow list.
func (ch *Channel) PromoteACL() {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.aclBased = true
}

// Equal returns true if two channels have the same ID.
func (ch *Channel) Equal(other *Channel) bool {
	if other == nil {
		return false
	}
	return ch.ID == other.ID
}

// String returns a human-readable representation of the channel.
func (ch *Channel) String() string {
	return fmt.Sprintf("Channel(id=%d, login=%s, online=%t)", ch.ID, ch.Login, ch.Online())
}
