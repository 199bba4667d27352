package pubsub

import (
	"context"
	"sync"

	"github.com/kethal/twitch-drops-go/internal/auth"
	"github.com/kethal/twitch-drops-go/internal/constants"
	"github.com/kethal/twitch-drops-go/internal/logger"
	"github.com/kethal/twitch-drops-go/internal/model"
)

// Pool spreads PubSub topics across up to MaxPubSubConns connections,
// filling lower-index connections first. Removing topics compacts the
// remainder back onto the earliest connections and stops the ones left
// empty.
type Pool struct {
	mu    sync.Mutex
	conns []*connSlot

	auth    auth.Provider
	handler Handler
	log     *logger.Logger
	debug   bool

	// runCtx is set once Run starts; connections created after that
	// point are started immediately.
	runCtx context.Context
	wg     sync.WaitGroup
}

type connSlot struct {
	conn   *Connection
	cancel context.CancelFunc
}

// NewPool creates a PubSub connection pool routing messages to handler.
func NewPool(authProvider auth.Provider, handler Handler, log *logger.Logger) *Pool {
	return &Pool{
		conns:   make([]*connSlot, 0, constants.MaxPubSubConns),
		auth:    authProvider,
		handler: handler,
		log:     log,
	}
}

// SetDebug enables raw frame logging on all current and future connections.
func (p *Pool) SetDebug(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.debug = enabled
	for _, slot := range p.conns {
		slot.conn.SetDebug(enabled)
	}
}

// AddTopics assigns topics to connections, filling existing capacity
// before opening new connections. Topics already subscribed anywhere in
// the pool are skipped. Exceeding the pool's total capacity is an error.
func (p *Pool) AddTopics(topics ...model.WebsocketTopic) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var pending []model.WebsocketTopic
	for _, t := range topics {
		if !p.hasTopicLocked(t) {
			pending = append(pending, t)
		}
	}

	for len(pending) > 0 {
		slot := p.slotWithCapacityLocked()
		if slot == nil {
			var err error
			slot, err = p.addConnLocked()
			if err != nil {
				return err
			}
		}
		added := slot.conn.AddTopics(pending...)
		pending = pending[added:]
	}
	return nil
}

// RemoveTopics drops topics from the pool, then compacts the remaining
// assignment so lower-index connections fill up first. Connections left
// without topics are stopped.
func (p *Pool) RemoveTopics(topics ...model.WebsocketTopic) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, slot := range p.conns {
		slot.conn.RemoveTopics(topics...)
	}
	p.compactLocked()
}

// HasTopic reports whether any connection carries the topic.
func (p *Pool) HasTopic(topic model.WebsocketTopic) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasTopicLocked(topic)
}

// Topics returns a snapshot of all topics across the pool.
func (p *Pool) Topics() []model.WebsocketTopic {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []model.WebsocketTopic
	for _, slot := range p.conns {
		out = append(out, slot.conn.Topics()...)
	}
	return out
}

// TopicCount returns the total number of subscribed topics.
func (p *Pool) TopicCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	total := 0
	for _, slot := range p.conns {
		total += slot.conn.TopicCount()
	}
	return total
}

// ConnectionCount returns the number of open connections.
func (p *Pool) ConnectionCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

// Run starts all connections and blocks until ctx ends. Connections
// added later start immediately.
func (p *Pool) Run(ctx context.Context) error {
	p.mu.Lock()
	p.runCtx = ctx
	for _, slot := range p.conns {
		if slot.cancel == nil {
			p.startLocked(slot)
		}
	}
	p.mu.Unlock()

	<-ctx.Done()
	p.wg.Wait()
	return ctx.Err()
}

func (p *Pool) hasTopicLocked(topic model.WebsocketTopic) bool {
	for _, slot := range p.conns {
		if slot.conn.HasTopic(topic) {
			return true
		}
	}
	return false
}

func (p *Pool) slotWithCapacityLocked() *connSlot {
	for _, slot := range p.conns {
		if slot.conn.HasCapacity() {
			return slot
		}
	}
	return nil
}

func (p *Pool) addConnLocked() (*connSlot, error) {
	if len(p.conns) >= constants.MaxPubSubConns {
		return nil, model.Minerf("maximum number of PubSub connections (%d) reached", constants.MaxPubSubConns)
	}

	conn := NewConnection(len(p.conns), p.auth, p.handler, p.log)
	conn.SetDebug(p.debug)
	slot := &connSlot{conn: conn}
	p.conns = append(p.conns, slot)
	p.log.Debug("Opened PubSub connection slot",
		"conn", conn.index, "total", len(p.conns))

	if p.runCtx != nil {
		p.startLocked(slot)
	}
	return slot, nil
}

func (p *Pool) startLocked(slot *connSlot) {
	ctx, cancel := context.WithCancel(p.runCtx)
	slot.cancel = cancel
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		_ = slot.conn.Run(ctx)
	}()
}

// compactLocked migrates topics off later connections so earlier ones
// fill up, then stops connections left empty.
func (p *Pool) compactLocked() {
	for dst := 0; dst < len(p.conns); dst++ {
		for src := len(p.conns) - 1; src > dst; src-- {
			free := constants.MaxTopicsPerConn - p.conns[dst].conn.TopicCount()
			if free <= 0 {
				break
			}
			srcTopics := p.conns[src].conn.Topics()
			if len(srcTopics) == 0 {
				continue
			}
			if len(srcTopics) > free {
				srcTopics = srcTopics[:free]
			}
			p.conns[src].conn.RemoveTopics(srcTopics...)
			p.conns[dst].conn.AddTopics(srcTopics...)
		}
	}

	for len(p.conns) > 0 {
		last := p.conns[len(p.conns)-1]
		if last.conn.TopicCount() > 0 {
			break
		}
		if last.cancel != nil {
			last.cancel()
		}
		p.conns = p.conns[:len(p.conns)-1]
		p.log.Debug("Closed empty PubSub connection slot", "conn", last.conn.index)
	}
}
