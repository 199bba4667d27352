// Package miner implements the drops mining orchestrator for a single
// Twitch account. It wires together authentication, PubSub, chat presence,
// the inventory engine and the watch heartbeat, and drives them through a
// small state machine.
package miner

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kethal/twitch-drops-go/internal/auth"
	"github.com/kethal/twitch-drops-go/internal/chat"
	"github.com/kethal/twitch-drops-go/internal/logger"
	"github.com/kethal/twitch-drops-go/internal/model"
	"github.com/kethal/twitch-drops-go/internal/notify"
	"github.com/kethal/twitch-drops-go/internal/pubsub"
	"github.com/kethal/twitch-drops-go/internal/twitch"
	"github.com/kethal/twitch-drops-go/internal/utils"
)

// minerState enumerates the states of the main scheduling loop.
type minerState int

const (
	stateIdle minerState = iota
	stateInventoryFetch
	stateGamesUpdate
	stateChannelsCleanup
	stateChannelsFetch
	stateChannelSwitch
)

// String returns the state name for logging.
func (s minerState) String() string {
	switch s {
	case stateIdle:
		return "IDLE"
	case stateInventoryFetch:
		return "INVENTORY_FETCH"
	case stateGamesUpdate:
		return "GAMES_UPDATE"
	case stateChannelsCleanup:
		return "CHANNELS_CLEANUP"
	case stateChannelsFetch:
		return "CHANNELS_FETCH"
	case stateChannelSwitch:
		return "CHANNEL_SWITCH"
	default:
		return "UNKNOWN"
	}
}

// Miner orchestrates drops mining for one authenticated account: it keeps
// the inventory snapshot, the channel working set and the watched-channel
// slot, and runs the state machine, watch loop and maintenance task.
type Miner struct {
	settings *model.SettingsStore
	log      *logger.Logger
	auth     auth.Provider
	twitch   twitch.API
	pool     *pubsub.Pool

	chat       *chat.Manager
	notify     *notify.Dispatcher
	healthFile string

	mu          sync.RWMutex
	inventory   *twitch.Inventory
	drops       map[string]*model.TimedDrop
	channels    []*model.Channel
	channelByID map[int64]*model.Channel
	wantedGames []model.Game

	// watching is the await-able handoff between the state machine (which
	// sets and clears it) and the watch loop (which waits on it).
	watching *utils.Slot[*model.Channel]

	// dropMu guards the one-shot progress rendezvous between the watch
	// loop and the drop-progress handler, and the local bump tick.
	dropMu         sync.Mutex
	dropUpdate     chan bool
	expectedDrop   string
	lastBumpMinute int64

	// restartWatch interrupts the watch loop's inter-heartbeat sleep.
	restartWatch chan struct{}
	stateCh      chan minerState

	maintMu     sync.Mutex
	maintCancel context.CancelFunc

	runCtx context.Context
}

// New creates a Miner. The PubSub pool is created here so its message
// handler can be bound to the miner before anything connects.
func New(settings *model.SettingsStore, authProvider auth.Provider, api twitch.API, log *logger.Logger) *Miner {
	m := &Miner{
		settings:     settings,
		log:          log,
		auth:         authProvider,
		twitch:       api,
		drops:        make(map[string]*model.TimedDrop),
		channelByID:  make(map[int64]*model.Channel),
		watching:     utils.NewSlot[*model.Channel](),
		restartWatch: make(chan struct{}, 1),
		stateCh:      make(chan minerState, 8),
	}
	m.pool = pubsub.NewPool(authProvider, m.handleMessage, log)
	return m
}

// SetChat attaches an IRC chat manager; the miner keeps it joined to the
// watched channel.
func (m *Miner) SetChat(c *chat.Manager) {
	m.chat = c
}

// SetNotify attaches a notification dispatcher and routes logged events
// through it.
func (m *Miner) SetNotify(d *notify.Dispatcher) {
	m.notify = d
	m.log.SetNotifyFunc(d.NotifyFunc())
}

// SetHealthcheckPath enables liveness stamping to the given file.
func (m *Miner) SetHealthcheckPath(path string) {
	m.healthFile = path
}

// Pool returns the PubSub pool, exposed for debug toggling and status.
func (m *Miner) Pool() *pubsub.Pool {
	return m.pool
}

// Watching returns the currently watched channel, if any.
func (m *Miner) Watching() (*model.Channel, bool) {
	ch, ok := m.watching.Get()
	if !ok || ch == nil {
		return nil, false
	}
	return ch, true
}

// Channels returns a snapshot of the channel working set.
func (m *Miner) Channels() []*model.Channel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Channel, len(m.channels))
	copy(out, m.channels)
	return out
}

// Campaigns returns the campaigns of the current inventory snapshot.
func (m *Miner) Campaigns() []*model.DropsCampaign {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.inventory == nil {
		return nil
	}
	out := make([]*model.DropsCampaign, len(m.inventory.Campaigns))
	copy(out, m.inventory.Campaigns)
	return out
}

// WantedGames returns the games currently worth mining, best first.
func (m *Miner) WantedGames() []model.Game {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Game, len(m.wantedGames))
	copy(out, m.wantedGames)
	return out
}

// Run validates the session, subscribes the user topics and drives the
// state machine and watch loop until ctx ends or a fatal error surfaces.
// ErrReloadRequest asks the caller to rebuild and rerun the miner.
func (m *Miner) Run(ctx context.Context) error {
	if err := m.auth.Validate(ctx); err != nil {
		return err
	}
	m.log.Event(ctx, model.EventMinerStart, "Miner starting", "user", m.auth.UserID())

	userID := m.auth.UserID()
	if err := m.pool.AddTopics(
		model.NewUserTopic(model.TopicUserDrops, userID),
		model.NewUserTopic(model.TopicUserPoints, userID),
		model.NewUserTopic(model.TopicUserNotifications, userID),
	); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	m.runCtx = ctx

	g.Go(func() error {
		return m.pool.Run(ctx)
	})
	if m.chat != nil {
		g.Go(func() error {
			return m.chat.Run(ctx)
		})
	}
	g.Go(func() error {
		return m.runStates(ctx)
	})
	g.Go(func() error {
		return m.runWatchLoop(ctx)
	})

	err := g.Wait()
	m.stopMaintenance()
	m.log.Event(context.Background(), model.EventMinerExit, "Miner exiting")

	if errors.Is(err, context.Canceled) {
		return model.ErrExitRequest
	}
	return err
}

// runStates is the main state machine. The terminal state is reached by
// context cancellation; everything else cycles back to IDLE, which blocks
// until the next state-change request.
func (m *Miner) runStates(ctx context.Context) error {
	state := stateInventoryFetch
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.log.Call("State transition", "state", state.String())

		switch state {
		case stateIdle:
			m.stopWatching()
			m.touchHealthcheck()
			next, err := m.awaitStateRequest(ctx)
			if err != nil {
				return err
			}
			state = next

		case stateInventoryFetch:
			endingSoonest := m.settings.Get().PriorityAlgorithm == model.AlgorithmEndingSoonest
			inv, err := m.twitch.FetchInventory(ctx, endingSoonest)
			if err != nil {
				if errors.Is(err, model.ErrRequestInvalid) {
					return model.ErrReloadRequest
				}
				return err
			}
			m.swapInventory(inv)
			m.restartMaintenance(inv)
			state = stateGamesUpdate

		case stateGamesUpdate:
			now := time.Now().UTC()
			if n := m.twitch.ClaimAllClaimable(ctx, m.Campaigns(), now); n > 0 {
				m.log.Info("Claimed pending drops", "count", n)
			}
			m.updateWantedGames(now)
			state = stateChannelsCleanup

		case stateChannelsCleanup:
			m.cleanupChannels()
			if len(m.WantedGames()) == 0 {
				m.log.Info("No campaigns to mine, idling")
				state = stateIdle
			} else {
				state = stateChannelsFetch
			}

		case stateChannelsFetch:
			if err := m.fetchChannels(ctx); err != nil {
				if errors.Is(err, model.ErrRequestInvalid) {
					return model.ErrReloadRequest
				}
				return err
			}
			state = stateChannelSwitch

		case stateChannelSwitch:
			if !m.switchChannel(ctx) {
				state = stateIdle
				continue
			}
			// Mining continues on the watched channel; block here until
			// the next state-change event instead of idling, which would
			// stop the watch.
			next, err := m.awaitStateRequest(ctx)
			if err != nil {
				return err
			}
			state = next
		}
	}
}

// awaitStateRequest blocks until an external event requests a state.
func (m *Miner) awaitStateRequest(ctx context.Context) (minerState, error) {
	select {
	case <-ctx.Done():
		return stateIdle, ctx.Err()
	case next := <-m.stateCh:
		return next, nil
	}
}

// requestState asks the state machine to run the given state once it is
// idle. A full queue means enough work is already pending; the request is
// dropped rather than blocking a handler.
func (m *Miner) requestState(state minerState) {
	select {
	case m.stateCh <- state:
	default:
	}
}

// signalRestart interrupts the watch loop's sleep so its next iteration
// observes the possibly-changed watched channel.
func (m *Miner) signalRestart() {
	select {
	case m.restartWatch <- struct{}{}:
	default:
	}
}

func (m *Miner) touchHealthcheck() {
	if m.healthFile == "" {
		return
	}
	if err := utils.TouchHealthcheck(m.healthFile); err != nil {
		m.log.Debug("Healthcheck write failed", "error", err)
	}
}
