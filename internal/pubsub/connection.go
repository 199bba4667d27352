package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/kethal/twitch-drops-go/internal/auth"
	"github.com/kethal/twitch-drops-go/internal/constants"
	"github.com/kethal/twitch-drops-go/internal/logger"
	"github.com/kethal/twitch-drops-go/internal/model"
	"github.com/kethal/twitch-drops-go/internal/utils"
)

// Handler receives decoded PubSub messages. The payload is the inner
// JSON document of a MESSAGE frame. Handlers run on detached goroutines,
// so a slow handler never stalls the connection's read loop.
type Handler func(ctx context.Context, topic model.WebsocketTopic, payload json.RawMessage)

// Connection owns one WebSocket to the PubSub server and keeps its
// subscribed topics converged on the desired set. All protocol work
// happens on the run loop; other goroutines only mutate the desired set.
type Connection struct {
	index int

	mu      sync.Mutex
	desired map[model.WebsocketTopic]struct{}

	auth    auth.Provider
	handler Handler
	log     *logger.Logger
	debug   bool
}

// NewConnection creates a connection slot. The socket is dialed lazily by
// the run loop, so slots can be created before Run starts.
func NewConnection(index int, authProvider auth.Provider, handler Handler, log *logger.Logger) *Connection {
	return &Connection{
		index:   index,
		desired: make(map[model.WebsocketTopic]struct{}, constants.MaxTopicsPerConn),
		auth:    authProvider,
		handler: handler,
		log:     log,
	}
}

// SetDebug enables raw frame logging at DEBUG level.
func (c *Connection) SetDebug(enabled bool) {
	c.debug = enabled
}

// AddTopics adds topics to the desired set. The run loop sends the LISTEN
// batch on its next pass. Returns how many were newly added.
func (c *Connection) AddTopics(topics ...model.WebsocketTopic) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	added := 0
	for _, t := range topics {
		if _, ok := c.desired[t]; ok {
			continue
		}
		if len(c.desired) >= constants.MaxTopicsPerConn {
			break
		}
		c.desired[t] = struct{}{}
		added++
	}
	return added
}

// RemoveTopics drops topics from the desired set. The run loop sends the
// UNLISTEN batch on its next pass.
func (c *Connection) RemoveTopics(topics ...model.WebsocketTopic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range topics {
		delete(c.desired, t)
	}
}

// HasTopic reports whether the topic is in the desired set.
func (c *Connection) HasTopic(topic model.WebsocketTopic) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.desired[topic]
	return ok
}

// TopicCount returns the size of the desired set.
func (c *Connection) TopicCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.desired)
}

// HasCapacity reports whether the connection can accept more topics.
func (c *Connection) HasCapacity() bool {
	return c.TopicCount() < constants.MaxTopicsPerConn
}

// Topics returns a snapshot of the desired set.
func (c *Connection) Topics() []model.WebsocketTopic {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.WebsocketTopic, 0, len(c.desired))
	for t := range c.desired {
		out = append(out, t)
	}
	return out
}

// Run drives the connection until ctx ends: dial, converge topics, ping
// on cadence, dispatch messages, reconnect with exponential backoff on
// any failure. It only returns ctx.Err().
func (c *Connection) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = constants.BackoffInitial
	bo.Multiplier = 2
	bo.MaxInterval = constants.BackoffMax
	bo.MaxElapsedTime = 0

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn, _, err := websocket.Dial(ctx, constants.PubSubURL, nil)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			delay := bo.NextBackOff()
			c.log.Warn("PubSub dial failed, retrying",
				"conn", c.index, "error", err, "backoff", delay.Round(time.Second))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			continue
		}
		conn.SetReadLimit(128 << 10)
		bo.Reset()
		c.log.Debug("PubSub connected", "conn", c.index)

		err = c.serve(ctx, conn)
		conn.Close(websocket.StatusNormalClosure, "closing")
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var closed *model.WebsocketClosedError
		if errors.As(err, &closed) && closed.Received {
			// Server asked us to move; reconnect right away.
			continue
		}

		delay := bo.NextBackOff()
		c.log.Warn("PubSub connection lost, reconnecting",
			"conn", c.index, "error", err, "backoff", delay.Round(time.Second))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// serve runs the protocol on one live socket until it fails. A dedicated
// reader goroutine blocks on the socket and feeds frames to the control
// loop, which also owns the ping cadence, the PONG deadline and topic
// convergence; the socket read itself is never put on a deadline, since
// expiring a read context tears the whole connection down. The current
// set starts empty on every (re)connect, so the first convergence pass
// re-listens to everything desired.
func (c *Connection) serve(ctx context.Context, conn *websocket.Conn) error {
	current := make(map[model.WebsocketTopic]struct{}, constants.MaxTopicsPerConn)

	readCtx, stopRead := context.WithCancel(ctx)
	defer stopRead()

	frames := make(chan Response)
	readErr := make(chan error, 1)
	go func() {
		for {
			var resp Response
			if err := wsjson.Read(readCtx, conn, &resp); err != nil {
				readErr <- err
				return
			}
			select {
			case frames <- resp:
			case <-readCtx.Done():
				return
			}
		}
	}()

	pongTimer := time.NewTimer(constants.PubSubPongTimeout)
	clearPong := func() {
		if !pongTimer.Stop() {
			select {
			case <-pongTimer.C:
			default:
			}
		}
	}
	clearPong()
	defer pongTimer.Stop()

	ping := func() error {
		if err := c.send(ctx, conn, Request{Type: TypePing}); err != nil {
			return err
		}
		clearPong()
		pongTimer.Reset(constants.PubSubPongTimeout)
		return nil
	}

	if err := ping(); err != nil {
		return err
	}
	if err := c.syncTopics(ctx, conn, current); err != nil {
		return err
	}

	pingTicker := time.NewTicker(constants.PubSubPingInterval)
	defer pingTicker.Stop()
	syncTicker := time.NewTicker(constants.PubSubSyncInterval)
	defer syncTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-readErr:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &model.WebsocketClosedError{}

		case <-pingTicker.C:
			if err := ping(); err != nil {
				return err
			}

		case <-pongTimer.C:
			// No PONG within the deadline.
			return &model.WebsocketClosedError{}

		case <-syncTicker.C:
			if err := c.syncTopics(ctx, conn, current); err != nil {
				return err
			}

		case resp := <-frames:
			if c.debug {
				c.log.Debug("PubSub frame", "conn", c.index, "type", resp.Type)
			}

			switch resp.Type {
			case TypePong:
				clearPong()

			case TypeReconnect:
				c.log.Info("Reconnect requested by server", "conn", c.index)
				return &model.WebsocketClosedError{Received: true}

			case TypeResponse:
				if resp.Error != "" {
					c.log.Error("PubSub request rejected",
						"conn", c.index, "error", resp.Error, "nonce", resp.Nonce)
				}

			case TypeMessage:
				c.dispatch(ctx, resp.Data)
			}
		}
	}
}

// syncTopics converges the socket's subscriptions on the desired set:
// one LISTEN batch for additions, one UNLISTEN batch for removals.
func (c *Connection) syncTopics(ctx context.Context, conn *websocket.Conn, current map[model.WebsocketTopic]struct{}) error {
	c.mu.Lock()
	var toListen, toUnlisten []string
	for t := range c.desired {
		if _, ok := current[t]; !ok {
			toListen = append(toListen, t.String())
			current[t] = struct{}{}
		}
	}
	for t := range current {
		if _, ok := c.desired[t]; !ok {
			toUnlisten = append(toUnlisten, t.String())
			delete(current, t)
		}
	}
	c.mu.Unlock()

	if len(toListen) > 0 {
		c.log.Debug("Listening to topics", "conn", c.index, "count", len(toListen))
		err := c.send(ctx, conn, Request{
			Type:  TypeListen,
			Nonce: utils.Nonce(nonceLength),
			Data: &RequestData{
				Topics:    toListen,
				AuthToken: c.auth.AccessToken(),
			},
		})
		if err != nil {
			return err
		}
	}

	if len(toUnlisten) > 0 {
		c.log.Debug("Unlistening from topics", "conn", c.index, "count", len(toUnlisten))
		err := c.send(ctx, conn, Request{
			Type:  TypeUnlisten,
			Nonce: utils.Nonce(nonceLength),
			Data: &RequestData{
				Topics:    toUnlisten,
				AuthToken: c.auth.AccessToken(),
			},
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func (c *Connection) send(ctx context.Context, conn *websocket.Conn, req Request) error {
	if err := wsjson.Write(ctx, conn, req); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &model.WebsocketClosedError{}
	}
	return nil
}

// dispatch decodes a MESSAGE frame and hands the inner payload to the
// handler on a detached goroutine.
func (c *Connection) dispatch(ctx context.Context, rawData json.RawMessage) {
	var msgData MessageData
	if err := json.Unmarshal(rawData, &msgData); err != nil {
		c.log.Error("Failed to parse MESSAGE data", "conn", c.index, "error", err)
		return
	}

	topic, err := model.ParseTopic(msgData.Topic)
	if err != nil {
		c.log.Error("Unknown PubSub topic", "conn", c.index, "topic", msgData.Topic)
		return
	}

	if c.handler != nil {
		go c.handler(ctx, topic, json.RawMessage(msgData.Message))
	}
}
