package twitch

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kethal/twitch-drops-go/internal/model"
)

func campaignTree(t *testing.T, raw string) map[string]any {
	t.Helper()
	var tree map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &tree))
	return tree
}

func TestParseCampaign(t *testing.T) {
	tree := campaignTree(t, `{
		"id": "camp-1",
		"name": "Rust Drops",
		"accountLinkURL": "https://example.com/link",
		"startAt": "2026-08-01T00:00:00Z",
		"endAt": "2026-09-01T00:00:00Z",
		"game": {"id": "263490", "displayName": "Rust", "slug": "rust"},
		"self": {"isAccountConnected": true},
		"allow": {
			"isEnabled": true,
			"channels": [
				{"id": "123", "name": "streamer_a"},
				{"name": "streamer_b"}
			]
		},
		"timeBasedDrops": [{
			"id": "drop-1",
			"name": "Crate",
			"startAt": "2026-08-01T00:00:00Z",
			"endAt": "2026-09-01T00:00:00Z",
			"requiredMinutesWatched": 120,
			"self": {"currentMinutesWatched": 30, "isClaimed": false},
			"benefitEdges": [{"benefit": {"id": "b1", "name": "Crate Skin"}}]
		}]
	}`)

	c, err := parseCampaign(tree, nil)
	require.NoError(t, err)

	assert.Equal(t, "camp-1", c.ID)
	assert.Equal(t, "Rust Drops", c.Name)
	assert.True(t, c.Linked)
	assert.Equal(t, model.Game{ID: "263490", Name: "Rust", Slug: "rust"}, c.Game)
	require.Len(t, c.ACL, 2)
	assert.Equal(t, int64(123), c.ACL[0].ID)
	assert.Equal(t, "streamer_a", c.ACL[0].Login)
	assert.Equal(t, "streamer_b", c.ACL[1].Login)

	require.Len(t, c.Drops, 1)
	drop := c.Drops[0]
	assert.Equal(t, "drop-1", drop.ID)
	assert.Equal(t, 120, drop.RequiredMinutes)
	assert.Equal(t, 30, drop.CurrentMinutes())
	assert.Same(t, c, drop.Campaign, "owned drop points back at its campaign")
	assert.Equal(t, "Crate Skin", drop.BenefitsText())
}

func TestParseCampaignWithoutID(t *testing.T) {
	_, err := parseCampaign(map[string]any{"name": "no id"}, nil)
	assert.Error(t, err)
}

func TestParseCampaignDisabledAllowList(t *testing.T) {
	tree := campaignTree(t, `{
		"id": "camp-1",
		"allow": {"isEnabled": false, "channels": [{"id": "123", "name": "x"}]}
	}`)

	c, err := parseCampaign(tree, nil)
	require.NoError(t, err)
	assert.Empty(t, c.ACL, "a disabled allow list restricts nothing")
}

func TestParseDropClaimedViaAwardedBenefits(t *testing.T) {
	tree := campaignTree(t, `{
		"id": "drop-1",
		"name": "Crate",
		"requiredMinutesWatched": 60,
		"benefitEdges": [
			{"benefit": {"id": "b1", "name": "One"}},
			{"benefit": {"id": "b2", "name": "Two"}}
		]
	}`)

	awarded := map[string]time.Time{"b1": time.Now(), "b2": time.Now()}
	drop := parseDrop(tree, awarded)
	assert.True(t, drop.IsClaimed())
	assert.Equal(t, 60, drop.CurrentMinutes())

	partial := map[string]time.Time{"b1": time.Now()}
	drop = parseDrop(tree, partial)
	assert.False(t, drop.IsClaimed(), "one unawarded benefit keeps the drop open")
}

func TestParseDropPreconditions(t *testing.T) {
	met := campaignTree(t, `{"id": "d", "requiredMinutesWatched": 60, "self": {}}`)
	assert.True(t, parseDrop(met, nil).PreconditionsMet, "absent field defaults to met")

	unmet := campaignTree(t, `{"id": "d", "requiredMinutesWatched": 60, "self": {"hasPreconditionsMet": false}}`)
	assert.False(t, parseDrop(unmet, nil).PreconditionsMet)
}

func TestSortCampaigns(t *testing.T) {
	now := time.Now().UTC()
	mk := func(id string, linked bool, start, end time.Duration) *model.DropsCampaign {
		return &model.DropsCampaign{
			ID: id, Linked: linked,
			StartsAt: now.Add(start), EndsAt: now.Add(end),
		}
	}

	linkedLater := mk("linked-later", true, -time.Hour, 48*time.Hour)
	linkedSoon := mk("linked-soon", true, -time.Hour, 2*time.Hour)
	upcoming := mk("upcoming", true, 24*time.Hour, 72*time.Hour)
	unlinked := mk("unlinked", false, -time.Hour, time.Hour)

	campaigns := []*model.DropsCampaign{unlinked, upcoming, linkedLater, linkedSoon}
	sortCampaigns(campaigns, false, now)

	// Linked first; within that, earlier sort instant first.
	ids := []string{campaigns[0].ID, campaigns[1].ID, campaigns[2].ID, campaigns[3].ID}
	assert.Equal(t, []string{"linked-soon", "upcoming", "linked-later", "unlinked"}, ids)

	sortCampaigns(campaigns, true, now)
	assert.Equal(t, "unlinked", campaigns[0].ID, "ending-soonest overrides the linked ordering")
}

func TestCollectTimeTriggers(t *testing.T) {
	now := time.Now().UTC()

	near := &model.DropsCampaign{
		ID: "near", Linked: true,
		StartsAt: now.Add(30 * time.Minute), EndsAt: now.Add(2 * time.Hour),
	}
	near.AddDrop(model.NewTimedDrop("d1", "D1",
		now.Add(30*time.Minute), now.Add(90*time.Minute), 30, nil))

	// Starts beyond the one-hour horizon: contributes nothing.
	far := &model.DropsCampaign{
		ID: "far", Linked: true,
		StartsAt: now.Add(3 * time.Hour), EndsAt: now.Add(5 * time.Hour),
	}
	far.AddDrop(model.NewTimedDrop("d2", "D2",
		now.Add(3*time.Hour), now.Add(4*time.Hour), 30, nil))

	triggers := collectTimeTriggers([]*model.DropsCampaign{far, near}, now)
	require.NotEmpty(t, triggers)
	for i := 1; i < len(triggers); i++ {
		assert.True(t, triggers[i-1].Before(triggers[i]) || triggers[i-1].Equal(triggers[i]))
	}
	for _, trig := range triggers {
		assert.True(t, trig.Before(now.Add(2*time.Hour).Add(time.Second)))
	}
}
