package pubsub

import (
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kethal/twitch-drops-go/internal/constants"
	"github.com/kethal/twitch-drops-go/internal/logger"
	"github.com/kethal/twitch-drops-go/internal/model"
)

func testPool(t *testing.T) *Pool {
	t.Helper()
	log, err := logger.Setup(logger.Config{Level: slog.LevelError})
	require.NoError(t, err)
	return NewPool(nil, nil, log)
}

func channelTopic(id int64) model.WebsocketTopic {
	return model.NewChannelTopic(model.TopicStreamState, id)
}

func TestPoolAddTopicsDeduplicates(t *testing.T) {
	p := testPool(t)

	require.NoError(t, p.AddTopics(channelTopic(1), channelTopic(2), channelTopic(1)))
	assert.Equal(t, 2, p.TopicCount())
	assert.Equal(t, 1, p.ConnectionCount())

	require.NoError(t, p.AddTopics(channelTopic(2)))
	assert.Equal(t, 2, p.TopicCount())
	assert.True(t, p.HasTopic(channelTopic(1)))
	assert.False(t, p.HasTopic(channelTopic(99)))
}

func TestPoolFillsConnectionsInOrder(t *testing.T) {
	p := testPool(t)

	topics := make([]model.WebsocketTopic, constants.MaxTopicsPerConn+1)
	for i := range topics {
		topics[i] = channelTopic(int64(i))
	}
	require.NoError(t, p.AddTopics(topics...))

	assert.Equal(t, constants.MaxTopicsPerConn+1, p.TopicCount())
	assert.Equal(t, 2, p.ConnectionCount(), "overflow opens a second connection")
}

func TestPoolCapacityLimit(t *testing.T) {
	p := testPool(t)

	capacity := constants.MaxPubSubConns * constants.MaxTopicsPerConn
	topics := make([]model.WebsocketTopic, capacity)
	for i := range topics {
		topics[i] = channelTopic(int64(i))
	}
	require.NoError(t, p.AddTopics(topics...))
	assert.Equal(t, capacity, p.TopicCount())
	assert.Equal(t, constants.MaxPubSubConns, p.ConnectionCount())

	err := p.AddTopics(channelTopic(int64(capacity)))
	assert.Error(t, err, "pool is full")
}

func TestPoolRemoveTopicsCompacts(t *testing.T) {
	p := testPool(t)

	total := constants.MaxTopicsPerConn + 10
	topics := make([]model.WebsocketTopic, total)
	for i := range topics {
		topics[i] = channelTopic(int64(i))
	}
	require.NoError(t, p.AddTopics(topics...))
	require.Equal(t, 2, p.ConnectionCount())

	// Free up the first connection; the second connection's topics migrate
	// down and the empty slot closes.
	p.RemoveTopics(topics[:constants.MaxTopicsPerConn]...)
	assert.Equal(t, 10, p.TopicCount())
	assert.Equal(t, 1, p.ConnectionCount())
	for _, topic := range topics[constants.MaxTopicsPerConn:] {
		assert.True(t, p.HasTopic(topic), "topic %s survived compaction", topic)
	}
}

func TestPoolRemoveAllTopicsClosesConnections(t *testing.T) {
	p := testPool(t)

	require.NoError(t, p.AddTopics(channelTopic(1), channelTopic(2)))
	p.RemoveTopics(channelTopic(1), channelTopic(2))

	assert.Equal(t, 0, p.TopicCount())
	assert.Equal(t, 0, p.ConnectionCount())
}

func TestPoolTopicsSnapshot(t *testing.T) {
	p := testPool(t)

	var want []model.WebsocketTopic
	for i := int64(0); i < 5; i++ {
		want = append(want, channelTopic(i))
	}
	require.NoError(t, p.AddTopics(want...))

	got := p.Topics()
	assert.ElementsMatch(t, want, got)

	// Snapshot strings are the wire format.
	assert.Contains(t, fmt.Sprint(got[0]), constants.TopicStreamState)
}
