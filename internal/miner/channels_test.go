package miner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kethal/twitch-drops-go/internal/model"
)

func TestCampaignWanted(t *testing.T) {
	now := time.Now().UTC()
	campaign := earnableCampaign("c1", gameA, now, 24*time.Hour)

	settings := model.DefaultSettings()
	settings.PriorityOnly = false
	assert.True(t, campaignWanted(campaign, settings))

	excluded := settings
	excluded.Exclude = model.NewStringSet(gameA.Name)
	assert.False(t, campaignWanted(campaign, excluded))

	unlinked := *campaign
	unlinked.Linked = false
	assert.False(t, campaignWanted(&unlinked, settings))
	settings.UnlinkedCampaigns = true
	assert.True(t, campaignWanted(&unlinked, settings))
}

func TestCampaignWantedPriorityOnly(t *testing.T) {
	now := time.Now().UTC()
	campaign := earnableCampaign("c1", gameA, now, 24*time.Hour)

	settings := model.DefaultSettings()
	settings.PriorityOnly = true
	assert.False(t, campaignWanted(campaign, settings), "empty priority list mines nothing")

	settings.Priority = []string{gameA.Name}
	assert.True(t, campaignWanted(campaign, settings))

	settings.Priority = []string{gameB.Name}
	assert.False(t, campaignWanted(campaign, settings))
}

func TestChannelTopics(t *testing.T) {
	ch := model.NewChannel(42, "streamer", "Streamer")
	topics := channelTopics(ch)

	assert.Equal(t, []model.WebsocketTopic{
		model.NewChannelTopic(model.TopicStreamState, 42),
		model.NewChannelTopic(model.TopicStreamUpdate, 42),
	}, topics)
}
