package miner

import (
	"context"
	"math"
	"time"

	"github.com/kethal/twitch-drops-go/internal/constants"
	"github.com/kethal/twitch-drops-go/internal/model"
	"github.com/kethal/twitch-drops-go/internal/twitch"
	"github.com/kethal/twitch-drops-go/internal/workerpool"
)

// swapInventory atomically replaces the inventory snapshot and the drops
// index. Holders of drops from the old snapshot keep operating on them
// until their next lookup.
func (m *Miner) swapInventory(inv *twitch.Inventory) {
	drops := make(map[string]*model.TimedDrop)
	for _, campaign := range inv.Campaigns {
		for _, drop := range campaign.Drops {
			drops[drop.ID] = drop
		}
	}

	m.mu.Lock()
	m.inventory = inv
	m.drops = drops
	m.mu.Unlock()

	m.log.Info("Inventory refreshed",
		"campaigns", len(inv.Campaigns), "drops", len(drops))
}

// dropByID looks a drop up in the current snapshot.
func (m *Miner) dropByID(id string) (*model.TimedDrop, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	drop, ok := m.drops[id]
	return drop, ok
}

// channelFor looks a channel up in the working set by ID.
func (m *Miner) channelFor(id int64) (*model.Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channelByID[id]
	return ch, ok
}

// campaignWanted applies the user's campaign filter: excluded games are
// skipped, unlinked campaigns only mine when opted in, and priority-only
// mode restricts mining to priority-listed games.
func campaignWanted(c *model.DropsCampaign, settings model.Settings) bool {
	if settings.Exclude.Contains(c.Game.Name) {
		return false
	}
	if !c.Linked && !settings.UnlinkedCampaigns {
		return false
	}
	if settings.PriorityOnly {
		for _, name := range settings.Priority {
			if name == c.Game.Name {
				return true
			}
		}
		return false
	}
	return true
}

// minableCampaigns returns the campaigns that pass the user's filter and
// could progress right now on some channel.
func (m *Miner) minableCampaigns(now time.Time) []*model.DropsCampaign {
	settings := m.settings.Get()
	var out []*model.DropsCampaign
	for _, c := range m.Campaigns() {
		if campaignWanted(c, settings) && c.CanEarn(nil, now) {
			out = append(out, c)
		}
	}
	return out
}

// updateWantedGames recomputes the ordered list of games worth mining
// from the minable campaigns, best-scoring game first.
func (m *Miner) updateWantedGames(now time.Time) {
	campaigns := m.minableCampaigns(now)
	scores := newScorer(m.settings.Get(), campaigns, now)

	seen := make(map[string]struct{})
	var games []model.Game
	for _, c := range campaigns {
		if _, ok := seen[c.Game.ID]; ok {
			continue
		}
		seen[c.Game.ID] = struct{}{}
		games = append(games, c.Game)
	}

	gameScores := make(map[string]float64, len(games))
	for _, g := range games {
		gameScores[g.ID] = scores.gameScore(g)
	}
	for i := 1; i < len(games); i++ {
		for j := i; j > 0 && gameScores[games[j].ID] > gameScores[games[j-1].ID]; j-- {
			games[j], games[j-1] = games[j-1], games[j]
		}
	}

	m.mu.Lock()
	m.wantedGames = games
	m.mu.Unlock()

	m.log.Call("Wanted games updated", "count", len(games))
}

// cleanupChannels drops channels that are neither allow-listed nor live on
// a wanted game, and unsubscribes their stream topics.
func (m *Miner) cleanupChannels() {
	m.mu.Lock()
	wanted := make(map[string]struct{}, len(m.wantedGames))
	for _, g := range m.wantedGames {
		wanted[g.ID] = struct{}{}
	}

	var kept []*model.Channel
	var removed []*model.Channel
	for _, ch := range m.channels {
		if ch.IsACLBased() {
			kept = append(kept, ch)
			continue
		}
		game, online := ch.Stream()
		if _, ok := wanted[game.ID]; online && ok {
			kept = append(kept, ch)
			continue
		}
		removed = append(removed, ch)
		delete(m.channelByID, ch.ID)
	}
	m.channels = kept
	m.mu.Unlock()

	if len(removed) == 0 {
		return
	}
	var topics []model.WebsocketTopic
	for _, ch := range removed {
		topics = append(topics, channelTopics(ch)...)
	}
	m.pool.RemoveTopics(topics...)
	m.log.Call("Channels cleaned up", "removed", len(removed))

	if watched, ok := m.watching.Get(); ok && watched != nil {
		for _, ch := range removed {
			if ch.Equal(watched) {
				m.stopWatching()
				break
			}
		}
	}
}

// fetchChannels rebuilds the channel working set: allow-listed channels of
// every minable campaign, plus live directory streams for wanted games
// without an allow list. The result is sorted for watching and truncated
// to the channel cap.
func (m *Miner) fetchChannels(ctx context.Context) error {
	now := time.Now().UTC()
	campaigns := m.minableCampaigns(now)
	scores := newScorer(m.settings.Get(), campaigns, now)

	existing := make(map[int64]*model.Channel)
	m.mu.RLock()
	for id, ch := range m.channelByID {
		existing[id] = ch
	}
	wantedGames := make([]model.Game, len(m.wantedGames))
	copy(wantedGames, m.wantedGames)
	m.mu.RUnlock()

	next := make(map[int64]*model.Channel)
	var ordered []*model.Channel
	add := func(ch *model.Channel) *model.Channel {
		if prev, ok := next[ch.ID]; ok {
			return prev
		}
		if prev, ok := existing[ch.ID]; ok {
			ch = prev
		}
		next[ch.ID] = ch
		ordered = append(ordered, ch)
		return ch
	}

	// Allow-listed channels first; their online state is unknown until
	// probed, so refresh the ones we have not seen live yet.
	openDirectory := make(map[string]model.Game)
	var probe []*model.Channel
	for _, campaign := range campaigns {
		if !campaign.ACLBased() {
			openDirectory[campaign.Game.ID] = campaign.Game
			continue
		}
		for _, entry := range campaign.ACL {
			ch := add(model.NewChannelFromACL(entry))
			ch.PromoteACL()
			if !ch.Online() {
				probe = append(probe, ch)
			}
		}
	}
	_ = workerpool.Run(ctx, probe, constants.FetchWorkers,
		func(ctx context.Context, ch *model.Channel) error {
			if _, err := m.twitch.UpdateStream(ctx, ch); err != nil {
				m.log.Debug("Failed to probe allow-listed channel",
					"channel", ch.Login, "error", err)
			}
			return nil
		})

	for _, game := range wantedGames {
		if _, ok := openDirectory[game.ID]; !ok {
			continue
		}
		streams, err := m.twitch.FetchLiveChannels(ctx, game, constants.GameDirectoryLimit)
		if err != nil {
			m.log.Warn("Failed to fetch game directory",
				"game", game.Name, "error", err)
			continue
		}
		for _, ch := range streams {
			add(ch)
		}
	}

	scores.sortChannels(ordered)
	if len(ordered) > constants.MaxChannels {
		for _, ch := range ordered[constants.MaxChannels:] {
			delete(next, ch.ID)
		}
		ordered = ordered[:constants.MaxChannels]
	}

	// Reconcile topic subscriptions with the kept set.
	var stale []model.WebsocketTopic
	for id, ch := range existing {
		if _, ok := next[id]; !ok {
			stale = append(stale, channelTopics(ch)...)
		}
	}
	if len(stale) > 0 {
		m.pool.RemoveTopics(stale...)
	}
	var fresh []model.WebsocketTopic
	for _, ch := range ordered {
		fresh = append(fresh, channelTopics(ch)...)
	}
	if err := m.pool.AddTopics(fresh...); err != nil {
		return err
	}

	m.mu.Lock()
	m.channels = ordered
	m.channelByID = next
	m.mu.Unlock()

	m.log.Info("Channel set rebuilt", "channels", len(ordered))

	// Keep the watched channel only if it survived and is still watchable.
	if watched, ok := m.watching.Get(); ok && watched != nil {
		if kept, ok := next[watched.ID]; !ok || !m.watchable(kept, now) {
			m.stopWatching()
		}
	}
	return nil
}

// watchable reports whether watching the channel right now can progress
// some minable campaign.
func (m *Miner) watchable(ch *model.Channel, now time.Time) bool {
	if !ch.Online() || !ch.DropsEnabled() {
		return false
	}
	settings := m.settings.Get()
	for _, c := range m.Campaigns() {
		if campaignWanted(c, settings) && c.CanEarn(ch, now) {
			return true
		}
	}
	return false
}

// switchChannel picks the best watchable channel and switches to it when
// it beats the currently watched one. Returns whether anything is being
// watched afterwards.
func (m *Miner) switchChannel(ctx context.Context) bool {
	now := time.Now().UTC()
	campaigns := m.minableCampaigns(now)
	scores := newScorer(m.settings.Get(), campaigns, now)

	channels := m.Channels()
	scores.sortChannels(channels)

	current, _ := m.watching.Get()
	for _, ch := range channels {
		if !m.watchable(ch, now) {
			continue
		}
		if scores.shouldSwitch(current, ch) {
			m.setWatching(ctx, ch)
			return true
		}
		// Channels are sorted best-first: once the top watchable one does
		// not beat the current channel, none below it will. The current
		// channel stays watched.
		return current != nil
	}

	m.stopWatching()
	return false
}

// setWatching switches the watched-channel slot and chat presence.
func (m *Miner) setWatching(ctx context.Context, ch *model.Channel) {
	prev, _ := m.watching.Get()
	if prev != nil && prev.Equal(ch) {
		return
	}
	m.watching.Set(ch)
	m.signalRestart()

	if m.chat != nil {
		if prev != nil {
			_ = m.chat.Leave(prev.Login)
		}
		_ = m.chat.Join(ch.Login)
	}

	game := ch.Game()
	m.log.Event(ctx, model.EventWatchSwitch, "Now watching",
		"channel", ch.Login, "game", game.Name, "viewers", ch.Viewers())
}

// stopWatching clears the watched-channel slot and leaves its chat.
func (m *Miner) stopWatching() {
	prev, ok := m.watching.Get()
	if !ok || prev == nil {
		return
	}
	m.watching.Clear()
	m.signalRestart()

	if m.chat != nil {
		_ = m.chat.Leave(prev.Login)
	}
	m.log.Info("Stopped watching", "channel", prev.Login)
}

// channelTopics returns the stream topics subscribed per tracked channel.
func channelTopics(ch *model.Channel) []model.WebsocketTopic {
	return []model.WebsocketTopic{
		model.NewChannelTopic(model.TopicStreamState, ch.ID),
		model.NewChannelTopic(model.TopicStreamUpdate, ch.ID),
	}
}

// bestActiveDrop returns the drop the miner believes is progressing on the
// channel: the active drop of the best-scoring campaign earnable there.
func (m *Miner) bestActiveDrop(ch *model.Channel, now time.Time) *model.TimedDrop {
	campaigns := m.minableCampaigns(now)
	scores := newScorer(m.settings.Get(), campaigns, now)

	var best *model.DropsCampaign
	bestScore := math.Inf(-1)
	for _, c := range campaigns {
		if !c.CanEarn(ch, now) {
			continue
		}
		if score := scores.campaignScore(c); best == nil || score > bestScore {
			best = c
			bestScore = score
		}
	}
	if best == nil {
		return nil
	}
	return best.ActiveDrop(now)
}
