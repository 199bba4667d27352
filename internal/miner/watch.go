package miner

import (
	"context"
	"time"

	"github.com/kethal/twitch-drops-go/internal/constants"
	"github.com/kethal/twitch-drops-go/internal/model"
)

// runWatchLoop emits one watch heartbeat per interval on the watched
// channel. After each successful heartbeat it waits for the drop-progress
// rendezvous and reconciles progress when PubSub stays silent.
func (m *Miner) runWatchLoop(ctx context.Context) error {
	for {
		ch, err := m.watching.Wait(ctx)
		if err != nil {
			return err
		}
		if ch == nil {
			continue
		}
		cycleStart := time.Now()

		if m.twitch.SendWatch(ctx, ch) {
			m.touchHealthcheck()
			m.confirmProgress(ctx, ch)
		} else {
			m.log.Debug("Watch heartbeat failed", "channel", ch.Login)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.restartWatch:
			// A state transition changed the watched channel; re-await it
			// immediately.
		case <-time.After(time.Until(cycleStart.Add(constants.WatchInterval))):
		}
	}
}

// confirmProgress implements the post-heartbeat reconciliation: wait for a
// drop-progress event confirming the expected drop, and when none arrives
// (or the wrong drop progressed) fall back to a GQL query and finally to a
// locally counted minute.
func (m *Miner) confirmProgress(ctx context.Context, ch *model.Channel) {
	now := time.Now().UTC()
	expected := m.bestActiveDrop(ch, now)
	expectedID := ""
	if expected != nil {
		expectedID = expected.ID
	}

	fut := m.armDropUpdate(expectedID)
	defer m.disarmDropUpdate()

	confirmed := false
	select {
	case ok := <-fut:
		confirmed = ok
	case <-time.After(constants.DropUpdateTimeout):
	case <-ctx.Done():
		return
	}
	if confirmed {
		return
	}

	session, err := m.twitch.CurrentDrop(ctx, ch)
	if err != nil {
		m.log.Debug("Current drop query failed",
			"channel", ch.Login, "error", err)
	}
	if err == nil && session != nil {
		drop, known := m.dropByID(session.DropID)
		if !known {
			// Twitch is progressing a drop this snapshot has never seen;
			// the snapshot is stale.
			m.log.Call("Unknown drop in progress, refreshing inventory",
				"drop_id", session.DropID)
			m.requestState(stateInventoryFetch)
			return
		}
		if drop.Campaign != nil && drop.Campaign.CanEarn(ch, now) {
			drop.UpdateMinutes(session.CurrentMinutes)
			m.logProgress(ctx, drop)
			return
		}
	}

	// No authoritative source confirmed the minute: count it locally on
	// the drop we expect to be progressing.
	if expected != nil && m.takeBumpTick() {
		expected.Bump()
		m.logProgress(ctx, expected)
	}
}

// armDropUpdate installs the one-shot rendezvous the drop-progress handler
// completes: true when the progressed drop is the expected one.
func (m *Miner) armDropUpdate(expectedID string) chan bool {
	m.dropMu.Lock()
	defer m.dropMu.Unlock()
	fut := make(chan bool, 1)
	m.dropUpdate = fut
	m.expectedDrop = expectedID
	return fut
}

func (m *Miner) disarmDropUpdate() {
	m.dropMu.Lock()
	defer m.dropMu.Unlock()
	m.dropUpdate = nil
	m.expectedDrop = ""
}

// completeDropUpdate resolves a pending rendezvous, if one is armed.
func (m *Miner) completeDropUpdate(dropID string) {
	m.dropMu.Lock()
	defer m.dropMu.Unlock()
	if m.dropUpdate == nil {
		return
	}
	select {
	case m.dropUpdate <- dropID == m.expectedDrop:
	default:
	}
	m.dropUpdate = nil
}

// takeBumpTick reports whether a local minute may be counted: at most one
// bump per wall-clock minute, keyed by a monotonic minute counter.
func (m *Miner) takeBumpTick() bool {
	minute := time.Now().Unix() / 60
	m.dropMu.Lock()
	defer m.dropMu.Unlock()
	if minute == m.lastBumpMinute {
		return false
	}
	m.lastBumpMinute = minute
	return true
}

// logProgress reports drop progress, promoting claim-ready drops to an
// event so notifications fire.
func (m *Miner) logProgress(ctx context.Context, drop *model.TimedDrop) {
	if drop.CanClaim() {
		m.log.Event(ctx, model.EventDropProgress, "Drop ready to claim",
			"drop", drop.BenefitsText())
		return
	}
	m.log.Call("Drop progress",
		"drop", drop.BenefitsText(),
		"minutes", drop.CurrentMinutes(),
		"required", drop.RequiredMinutes)
}

// runClaimFollowUp finalizes a drop claim signalled over PubSub: claim it,
// give the backend a moment, then poll the current drop session until it
// moves past the claimed drop. Afterwards the watch loop either restarts
// on the same channel or the inventory is refreshed.
func (m *Miner) runClaimFollowUp(ctx context.Context, drop *model.TimedDrop) {
	if _, err := m.twitch.ClaimDrop(ctx, drop); err != nil {
		m.log.Warn("Failed to claim drop", "drop", drop.BenefitsText(), "error", err)
	}

	if !sleepCtx(ctx, 4*time.Second) {
		return
	}
	ch, ok := m.watching.Get()
	if ok && ch != nil {
		for attempt := 0; attempt < 8; attempt++ {
			session, err := m.twitch.CurrentDrop(ctx, ch)
			if err != nil || session == nil || session.DropID != drop.ID {
				break
			}
			if !sleepCtx(ctx, 2*time.Second) {
				return
			}
		}
	}

	now := time.Now().UTC()
	if ok && ch != nil && drop.Campaign != nil && drop.Campaign.CanEarn(ch, now) {
		m.signalRestart()
		return
	}
	m.requestState(stateInventoryFetch)
}

// sleepCtx sleeps for d, returning false when ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
