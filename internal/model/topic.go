package model

import (
	"fmt"
	"strings"

	"github.com/kethal/twitch-drops-go/internal/constants"
)

// TopicCategory scopes a PubSub topic to the user or to a channel.
type TopicCategory int

const (
	// TopicCategoryUser covers topics keyed by the authenticated user's ID.
	TopicCategoryUser TopicCategory = iota
	// TopicCategoryChannel covers topics keyed by a channel ID.
	TopicCategoryChannel
)

// TopicKind tags the PubSub topic variant. Message dispatch is a switch on
// the kind, not a lookup by string.
type TopicKind int

const (
	// TopicUserDrops delivers drop progress and claim events.
	TopicUserDrops TopicKind = iota
	// TopicUserPoints delivers community points events.
	TopicUserPoints
	// TopicUserNotifications delivers on-site notifications.
	TopicUserNotifications
	// TopicStreamState delivers stream up/down/viewcount events.
	TopicStreamState
	// TopicStreamUpdate delivers broadcast settings changes.
	TopicStreamUpdate
)

// topicPrefixes maps each kind to its Twitch topic string prefix.
var topicPrefixes = map[TopicKind]string{
	TopicUserDrops:         constants.TopicUserDrops,
	TopicUserPoints:        constants.TopicUserPoints,
	TopicUserNotifications: constants.TopicUserNotifications,
	TopicStreamState:       constants.TopicStreamState,
	TopicStreamUpdate:      constants.TopicStreamUpdate,
}

// Category returns which entity the topic kind is keyed by.
func (k TopicKind) Category() TopicCategory {
	switch k {
	case TopicStreamState, TopicStreamUpdate:
		return TopicCategoryChannel
	default:
		return TopicCategoryUser
	}
}

// String returns the Twitch topic string prefix for this kind.
func (k TopicKind) String() string {
	if prefix, ok := topicPrefixes[k]; ok {
		return prefix
	}
	return "unknown"
}

// WebsocketTopic identifies one PubSub subscription. Equality is by
// (kind, target) — the struct is comparable and usable as a map key.
type WebsocketTopic struct {
	Kind   TopicKind
	Target string
}

// NewUserTopic creates a topic keyed by the authenticated user's ID.
func NewUserTopic(kind TopicKind, userID string) WebsocketTopic {
	return WebsocketTopic{Kind: kind, Target: userID}
}

// NewChannelTopic creates a topic keyed by a channel ID.
func NewChannelTopic(kind TopicKind, channelID int64) WebsocketTopic {
	return WebsocketTopic{Kind: kind, Target: fmt.Sprintf("%d", channelID)}
}

// String returns the full topic string in the "prefix.target" wire format.
func (t WebsocketTopic) String() string {
	return t.Kind.String() + "." + t.Target
}

// ParseTopic parses a wire-format topic string back into a WebsocketTopic.
func ParseTopic(s string) (WebsocketTopic, error) {
	idx := strings.LastIndexByte(s, '.')
	if idx <= 0 || idx == len(s)-1 {
		return WebsocketTopic{}, fmt.Errorf("malformed topic string %q", s)
	}
	prefix, target := s[:idx], s[idx+1:]
	for kind, p := range topicPrefixes {
		if p == prefix {
			return WebsocketTopic{Kind: kind, Target: target}, nil
		}
	}
	return WebsocketTopic{}, fmt.Errorf("unknown topic prefix %q", prefix)
}
