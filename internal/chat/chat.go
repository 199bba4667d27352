// Package chat keeps an IRC chat presence on the watched channel. Sitting
// in chat makes the account look like an ordinary viewer next to the
// watch heartbeat.
package chat

import (
	"context"
	"strings"
	"sync"

	"github.com/gempir/go-twitch-irc/v4"

	"github.com/kethal/twitch-drops-go/internal/logger"
)

// Manager maintains IRC channel membership. The go-twitch-irc library
// handles PING/PONG keepalive and reconnection internally.
type Manager struct {
	mu sync.Mutex

	client  *twitch.Client
	handler *Handler

	username string
	channels map[string]bool
	running  bool

	log *logger.Logger
}

// NewManager creates an IRC chat Manager authenticated as the given user.
func NewManager(username, authToken string, log *logger.Logger) *Manager {
	handler := NewHandler(username, log)
	client := twitch.NewClient(username, "oauth:"+authToken)

	m := &Manager{
		client:   client,
		handler:  handler,
		username: username,
		channels: make(map[string]bool),
		log:      log,
	}

	client.OnPrivateMessage(handler.OnPrivateMessage)
	client.OnConnect(handler.OnConnect)
	client.OnReconnectMessage(func(msg twitch.ReconnectMessage) {
		handler.OnReconnect()
	})
	client.OnSelfJoinMessage(handler.OnSelfJoinMessage)
	client.OnSelfPartMessage(handler.OnSelfPartMessage)

	return m
}

// Join enters a channel's chat. The name is the channel login without the
// # prefix.
func (m *Manager) Join(channelName string) error {
	channel := strings.ToLower(channelName)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.channels[channel] {
		return nil
	}
	m.channels[channel] = true
	m.client.Join(channel)
	return nil
}

// Leave departs a channel's chat.
func (m *Manager) Leave(channelName string) error {
	channel := strings.ToLower(channelName)

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.channels[channel] {
		return nil
	}
	delete(m.channels, channel)
	m.client.Depart(channel)
	return nil
}

// Run connects to Twitch IRC and maintains presence until ctx ends.
func (m *Manager) Run(ctx context.Context) error {
	m.mu.Lock()
	m.running = true
	m.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		if err := m.client.Connect(); err != nil {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		m.Close()
		return ctx.Err()
	case err := <-errCh:
		if err != nil && ctx.Err() == nil {
			m.log.Error("IRC connection error", "error", err)
			return err
		}
		return ctx.Err()
	}
}

// Close departs all channels and shuts down the IRC client.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	m.running = false

	for channel := range m.channels {
		m.client.Depart(channel)
	}
	m.channels = make(map[string]bool)

	if err := m.client.Disconnect(); err != nil {
		m.log.Debug("IRC disconnect", "error", err)
	}
}

// IsJoined reports whether the manager currently sits in the channel.
func (m *Manager) IsJoined(channelName string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.channels[strings.ToLower(channelName)]
}

// JoinedChannels returns the channels currently joined.
func (m *Manager) JoinedChannels() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	channels := make([]string, 0, len(m.channels))
	for name := range m.channels {
		channels = append(channels, name)
	}
	return channels
}
