package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicStringAndParse(t *testing.T) {
	user := NewUserTopic(TopicUserDrops, "12345")
	parsed, err := ParseTopic(user.String())
	require.NoError(t, err)
	assert.Equal(t, user, parsed)

	channel := NewChannelTopic(TopicStreamState, 67890)
	parsed, err = ParseTopic(channel.String())
	require.NoError(t, err)
	assert.Equal(t, channel, parsed)
	assert.Equal(t, "67890", parsed.Target)
}

func TestTopicParseErrors(t *testing.T) {
	for _, s := range []string{"", "nodot", ".leading", "trailing.", "bogus-prefix.123"} {
		_, err := ParseTopic(s)
		assert.Error(t, err, "input %q", s)
	}
}

func TestTopicCategory(t *testing.T) {
	assert.Equal(t, TopicCategoryUser, TopicUserDrops.Category())
	assert.Equal(t, TopicCategoryUser, TopicUserPoints.Category())
	assert.Equal(t, TopicCategoryUser, TopicUserNotifications.Category())
	assert.Equal(t, TopicCategoryChannel, TopicStreamState.Category())
	assert.Equal(t, TopicCategoryChannel, TopicStreamUpdate.Category())
}

func TestParseEvent(t *testing.T) {
	assert.Equal(t, EventDropClaim, ParseEvent("DROP_CLAIM"))
	assert.Equal(t, EventWatchSwitch, ParseEvent("WATCH_SWITCH"))
	assert.Equal(t, Event(""), ParseEvent("NOT_AN_EVENT"))
	assert.Equal(t, Event(""), ParseEvent(""))
}

func TestDecodeDropEvent(t *testing.T) {
	payload := []byte(`{
		"type": "drop-progress",
		"data": {"drop_id": "d1", "current_progress_min": 15, "required_progress_min": 60}
	}`)

	var ev DropEvent
	require.NoError(t, DecodeEvent(payload, &ev))
	assert.Equal(t, DropEventProgress, ev.Type)
	assert.Equal(t, "d1", ev.Data.DropID)
	assert.Equal(t, 15, ev.Data.CurrentProgressMin)
	assert.Equal(t, 60, ev.Data.RequiredProgressMin)

	assert.Error(t, DecodeEvent([]byte(`{"type":`), &ev))
}
