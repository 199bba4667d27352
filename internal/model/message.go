package model

import (
	"encoding/json"
	"fmt"
)

// Event classifies miner happenings for logging and notification routing.
type Event string

// All supported miner events.
const (
	EventDropProgress    Event = "DROP_STATUS"
	EventDropClaim       Event = "DROP_CLAIM"
	EventBonusClaim      Event = "BONUS_CLAIM"
	EventStreamerOnline  Event = "STREAMER_ONLINE"
	EventStreamerOffline Event = "STREAMER_OFFLINE"
	EventWatchSwitch     Event = "WATCH_SWITCH"
	EventLogin           Event = "LOGIN"
	EventMinerStart      Event = "MINER_START"
	EventMinerExit       Event = "MINER_EXIT"
)

// String returns the string representation of an Event.
func (e Event) String() string {
	return string(e)
}

// ParseEvent returns the Event matching the given name, or "" when the
// name matches no known event.
func ParseEvent(name string) Event {
	switch Event(name) {
	case EventDropProgress, EventDropClaim, EventBonusClaim,
		EventStreamerOnline, EventStreamerOffline, EventWatchSwitch,
		EventLogin, EventMinerStart, EventMinerExit:
		return Event(name)
	default:
		return ""
	}
}

// Typed PubSub payloads, one per topic kind the miner listens on.
// Envelopes vary per topic: drops/points/notifications wrap their payload
// in {"type": ..., "data": ...}, stream-state events carry the fields at
// the top level next to "type".

// DropEvent is a user-drop-events payload: progress or claim.
type DropEvent struct {
	Type string `json:"type"`
	Data struct {
		DropID             string `json:"drop_id"`
		CurrentProgressMin int    `json:"current_progress_min"`
		RequiredProgressMin int   `json:"required_progress_min"`
		DropInstanceID     string `json:"drop_instance_id"`
	} `json:"data"`
}

// Drop event type strings.
const (
	DropEventProgress = "drop-progress"
	DropEventClaim    = "drop-claim"
)

// PointsEvent is a community-points-user-v1 payload.
type PointsEvent struct {
	Type string `json:"type"`
	Data struct {
		Balance struct {
			Balance   int    `json:"balance"`
			ChannelID string `json:"channel_id"`
		} `json:"balance"`
		PointGain struct {
			TotalPoints int    `json:"total_points"`
			ReasonCode  string `json:"reason_code"`
		} `json:"point_gain"`
		Claim struct {
			ID        string `json:"id"`
			ChannelID string `json:"channel_id"`
		} `json:"claim"`
	} `json:"data"`
}

// Points event type strings.
const (
	PointsEventEarned         = "points-earned"
	PointsEventClaimAvailable = "claim-available"
)

// StreamStateEvent is a video-playback-by-id payload. Fields sit at the
// top level; ServerTime is a Unix timestamp with fractional seconds.
type StreamStateEvent struct {
	Type       string  `json:"type"`
	ServerTime float64 `json:"server_time"`
	Viewers    int     `json:"viewers"`
}

// Stream state event type strings.
const (
	StreamEventUp        = "stream-up"
	StreamEventDown      = "stream-down"
	StreamEventViewcount = "viewcount"
	StreamEventCommercial = "commercial"
)

// StreamUpdateEvent is a broadcast-settings-update payload.
type StreamUpdateEvent struct {
	Type      string `json:"type"`
	ChannelID string `json:"channel_id"`
	Status    string `json:"status"`
	Game      string `json:"game"`
	GameID    int64  `json:"game_id"`
}

// NotificationEvent is an onsite-notifications payload.
type NotificationEvent struct {
	Type string `json:"type"`
	Data struct {
		Notification struct {
			ID   string `json:"id"`
			Type string `json:"type"`
		} `json:"notification"`
	} `json:"data"`
}

// Notification type that signals new claimable drop rewards.
const NotificationDropReminder = "user_drop_reward_reminder_notification"

// DecodeEvent unmarshals a PubSub payload into the given typed event.
func DecodeEvent(payload []byte, into any) error {
	if err := json.Unmarshal(payload, into); err != nil {
		return fmt.Errorf("decoding pubsub payload: %w", err)
	}
	return nil
}
