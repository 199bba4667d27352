package miner

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/kethal/twitch-drops-go/internal/constants"
	"github.com/kethal/twitch-drops-go/internal/model"
)

// handleMessage routes a PubSub payload by topic kind. Dispatch runs on a
// per-message goroutine; handlers must stay idempotent because messages
// arrive unordered.
func (m *Miner) handleMessage(ctx context.Context, topic model.WebsocketTopic, payload json.RawMessage) {
	switch topic.Kind {
	case model.TopicUserDrops:
		m.handleDropEvent(ctx, payload)
	case model.TopicUserPoints:
		m.handlePointsEvent(ctx, payload)
	case model.TopicUserNotifications:
		m.handleNotificationEvent(ctx, payload)
	case model.TopicStreamState:
		m.handleStreamState(ctx, topic.Target, payload)
	case model.TopicStreamUpdate:
		m.handleStreamUpdate(ctx, payload)
	}
}

func (m *Miner) handleDropEvent(ctx context.Context, payload json.RawMessage) {
	var ev model.DropEvent
	if err := model.DecodeEvent(payload, &ev); err != nil {
		m.log.Debug("Malformed drop event", "error", err)
		return
	}

	switch ev.Type {
	case model.DropEventProgress:
		if drop, ok := m.dropByID(ev.Data.DropID); ok {
			drop.UpdateMinutes(ev.Data.CurrentProgressMin)
			m.logProgress(ctx, drop)
		}
		m.completeDropUpdate(ev.Data.DropID)

	case model.DropEventClaim:
		drop, ok := m.dropByID(ev.Data.DropID)
		if !ok {
			m.log.Call("Claim event for unknown drop, refreshing inventory",
				"drop_id", ev.Data.DropID)
			m.requestState(stateInventoryFetch)
			return
		}
		drop.SetClaimInstanceID(ev.Data.DropInstanceID)
		drop.UpdateMinutes(drop.RequiredMinutes)
		go m.runClaimFollowUp(m.runCtx, drop)
	}
}

func (m *Miner) handlePointsEvent(ctx context.Context, payload json.RawMessage) {
	var ev model.PointsEvent
	if err := model.DecodeEvent(payload, &ev); err != nil {
		m.log.Debug("Malformed points event", "error", err)
		return
	}

	switch ev.Type {
	case model.PointsEventEarned:
		id, _ := strconv.ParseInt(ev.Data.Balance.ChannelID, 10, 64)
		if ch, ok := m.channelFor(id); ok {
			ch.SetPoints(ev.Data.Balance.Balance)
			m.log.Call("Points earned",
				"channel", ch.Login,
				"points", ev.Data.PointGain.TotalPoints,
				"reason", ev.Data.PointGain.ReasonCode,
				"balance", ev.Data.Balance.Balance)
		}

	case model.PointsEventClaimAvailable:
		id, _ := strconv.ParseInt(ev.Data.Claim.ChannelID, 10, 64)
		ch, ok := m.channelFor(id)
		if !ok {
			return
		}
		go func() {
			if err := m.twitch.ClaimBonus(m.runCtx, ch); err != nil {
				m.log.Debug("Bonus claim failed", "channel", ch.Login, "error", err)
			}
		}()
	}
}

func (m *Miner) handleNotificationEvent(ctx context.Context, payload json.RawMessage) {
	var ev model.NotificationEvent
	if err := model.DecodeEvent(payload, &ev); err != nil {
		m.log.Debug("Malformed notification event", "error", err)
		return
	}
	if ev.Data.Notification.Type != model.NotificationDropReminder {
		return
	}

	// Drops ready to claim were missed somewhere; a fresh inventory pass
	// claims them. Dismiss the notification so it is not reprocessed.
	m.log.Info("Claimable drops reminder received")
	if err := m.twitch.DismissNotification(ctx, ev.Data.Notification.ID); err != nil {
		m.log.Debug("Failed to dismiss notification", "error", err)
	}
	m.requestState(stateInventoryFetch)
}

func (m *Miner) handleStreamState(ctx context.Context, target string, payload json.RawMessage) {
	channelID, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return
	}
	ch, ok := m.channelFor(channelID)
	if !ok {
		return
	}

	var ev model.StreamStateEvent
	if err := model.DecodeEvent(payload, &ev); err != nil {
		m.log.Debug("Malformed stream state event", "error", err)
		return
	}

	switch ev.Type {
	case model.StreamEventUp:
		ch.SetPendingOnline()
		go m.confirmOnline(m.runCtx, ch)

	case model.StreamEventDown:
		wasWatched := false
		if watched, ok := m.watching.Get(); ok && watched != nil && watched.Equal(ch) {
			wasWatched = true
		}
		ch.SetOffline()
		m.log.Event(ctx, model.EventStreamerOffline, "Channel went offline",
			"channel", ch.Login)
		if wasWatched {
			m.stopWatching()
			m.requestState(stateChannelsCleanup)
		}

	case model.StreamEventViewcount:
		ch.SetViewers(ev.Viewers)
	}
}

// confirmOnline waits out the stream-up debounce window, then verifies the
// stream with fresh data before treating the channel as online. Twitch
// needs a moment after stream-up before playback and drops work.
func (m *Miner) confirmOnline(ctx context.Context, ch *model.Channel) {
	if !sleepCtx(ctx, constants.OnlineDelay) {
		return
	}
	if !ch.PendingOnline() {
		return
	}

	online, err := m.twitch.UpdateStream(ctx, ch)
	if err != nil {
		m.log.Debug("Failed to confirm channel online",
			"channel", ch.Login, "error", err)
		return
	}
	if !online {
		return
	}

	game := ch.Game()
	m.log.Event(ctx, model.EventStreamerOnline, "Channel went online",
		"channel", ch.Login, "game", game.Name)
	m.requestState(stateChannelSwitch)
}

func (m *Miner) handleStreamUpdate(ctx context.Context, payload json.RawMessage) {
	var ev model.StreamUpdateEvent
	if err := model.DecodeEvent(payload, &ev); err != nil {
		m.log.Debug("Malformed stream update event", "error", err)
		return
	}

	channelID, err := strconv.ParseInt(ev.ChannelID, 10, 64)
	if err != nil {
		return
	}
	ch, ok := m.channelFor(channelID)
	if !ok {
		return
	}

	if ev.GameID != 0 {
		ch.SetGame(&model.Game{
			ID:   strconv.FormatInt(ev.GameID, 10),
			Name: ev.Game,
		})
	}
	m.log.Call("Broadcast settings changed",
		"channel", ch.Login, "game", ev.Game)
	m.requestState(stateChannelSwitch)
}
