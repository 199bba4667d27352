package miner

import (
	"context"
	"time"

	"github.com/kethal/twitch-drops-go/internal/constants"
	"github.com/kethal/twitch-drops-go/internal/twitch"
)

// restartMaintenance replaces the maintenance task with a fresh one bound
// to the new inventory snapshot's time triggers. Each inventory fetch
// restarts it; the task terminates itself at the forced-reload mark.
func (m *Miner) restartMaintenance(inv *twitch.Inventory) {
	m.maintMu.Lock()
	defer m.maintMu.Unlock()

	if m.maintCancel != nil {
		m.maintCancel()
	}
	ctx, cancel := context.WithCancel(m.runCtx)
	m.maintCancel = cancel

	triggers := make([]time.Time, len(inv.TimeTriggers))
	copy(triggers, inv.TimeTriggers)
	go m.runMaintenance(ctx, triggers)
}

// stopMaintenance cancels the running maintenance task, if any.
func (m *Miner) stopMaintenance() {
	m.maintMu.Lock()
	defer m.maintMu.Unlock()
	if m.maintCancel != nil {
		m.maintCancel()
		m.maintCancel = nil
	}
}

// runMaintenance wakes at the earliest of the next campaign time trigger,
// the periodic bonus check and the forced-reload mark. Campaign triggers
// request a channel cleanup; every wake attempts a silent bonus claim on
// the watched channel; the reload mark requests an inventory fetch and
// ends the task.
func (m *Miner) runMaintenance(ctx context.Context, triggers []time.Time) {
	reloadAt := time.Now().Add(constants.ReloadInterval)

	for {
		now := time.Now()
		for len(triggers) > 0 && !triggers[0].After(now) {
			triggers = triggers[1:]
		}

		wake := reloadAt
		campaignTrigger := false
		if len(triggers) > 0 && triggers[0].Before(wake) {
			wake = triggers[0]
			campaignTrigger = true
		}
		if bonus := now.Add(constants.PointsInterval); bonus.Before(wake) {
			wake = bonus
			campaignTrigger = false
		}

		if !sleepCtx(ctx, time.Until(wake)) {
			return
		}

		if campaignTrigger {
			triggers = triggers[1:]
			m.log.Call("Campaign window boundary reached")
			m.requestState(stateChannelsCleanup)
		}

		// Bonus points are a side business: failures stay silent.
		if ch, ok := m.watching.Get(); ok && ch != nil {
			if err := m.twitch.ClaimBonus(ctx, ch); err != nil {
				m.log.Debug("Bonus claim failed", "channel", ch.Login, "error", err)
			}
		}

		if !time.Now().Before(reloadAt) {
			m.requestState(stateInventoryFetch)
			return
		}
	}
}
