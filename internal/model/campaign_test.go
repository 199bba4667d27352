package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCampaign(now time.Time) *DropsCampaign {
	return &DropsCampaign{
		ID:       "camp-1",
		Name:     "Test Campaign",
		Game:     Game{ID: "g1", Name: "Test Game"},
		Linked:   true,
		StartsAt: now.Add(-time.Hour),
		EndsAt:   now.Add(24 * time.Hour),
	}
}

func liveChannel(id int64, login string, game *Game) *Channel {
	ch := NewChannel(id, login, login)
	ch.SetStream(game, 100, true)
	return ch
}

func TestCampaignStatus(t *testing.T) {
	now := time.Now().UTC()
	c := testCampaign(now)

	assert.Equal(t, CampaignActive, c.Status(now))
	assert.Equal(t, CampaignUpcoming, c.Status(now.Add(-2*time.Hour)))
	assert.Equal(t, CampaignExpired, c.Status(now.Add(25*time.Hour)))

	// The end instant itself counts as expired.
	assert.Equal(t, CampaignExpired, c.Status(c.EndsAt))
}

func TestCampaignActiveDropPicksLeastRemaining(t *testing.T) {
	now := time.Now().UTC()
	c := testCampaign(now)

	long := NewTimedDrop("long", "Long", now.Add(-time.Hour), now.Add(time.Hour), 120, nil)
	short := NewTimedDrop("short", "Short", now.Add(-time.Hour), now.Add(time.Hour), 120, nil)
	short.UpdateMinutes(100)
	c.AddDrop(long)
	c.AddDrop(short)

	drop := c.ActiveDrop(now)
	require.NotNil(t, drop)
	assert.Equal(t, "short", drop.ID)

	short.MarkClaimed()
	drop = c.ActiveDrop(now)
	require.NotNil(t, drop)
	assert.Equal(t, "long", drop.ID)
}

func TestCampaignCanEarn(t *testing.T) {
	now := time.Now().UTC()
	c := testCampaign(now)
	c.AddDrop(NewTimedDrop("d1", "D1", now.Add(-time.Hour), now.Add(time.Hour), 60, nil))

	// Channel-independent check.
	assert.True(t, c.CanEarn(nil, now))

	matching := liveChannel(1, "streamer", &Game{ID: "g1", Name: "Test Game"})
	assert.True(t, c.CanEarn(matching, now))

	wrongGame := liveChannel(2, "other", &Game{ID: "g2", Name: "Other Game"})
	assert.False(t, c.CanEarn(wrongGame, now))

	offline := NewChannel(3, "offline", "offline")
	assert.False(t, c.CanEarn(offline, now))

	assert.False(t, c.CanEarn(matching, now.Add(25*time.Hour)), "expired campaign")
}

func TestCampaignACL(t *testing.T) {
	now := time.Now().UTC()
	c := testCampaign(now)
	c.ACL = []ACLEntry{{ID: 10, Login: "allowed"}, {ID: 0, Login: "byname"}}
	c.AddDrop(NewTimedDrop("d1", "D1", now.Add(-time.Hour), now.Add(time.Hour), 60, nil))

	game := &Game{ID: "g1", Name: "Test Game"}
	assert.True(t, c.CanEarn(liveChannel(10, "allowed", game), now))
	assert.False(t, c.CanEarn(liveChannel(11, "stranger", game), now))

	// Entries without an ID match on login.
	assert.True(t, c.CanEarn(liveChannel(12, "byname", game), now))
}

func TestCampaignProgress(t *testing.T) {
	now := time.Now().UTC()
	c := testCampaign(now)
	assert.Equal(t, 0.0, c.Progress(), "no drops")

	d1 := NewTimedDrop("d1", "D1", now.Add(-time.Hour), now.Add(time.Hour), 60, nil)
	d2 := NewTimedDrop("d2", "D2", now.Add(-time.Hour), now.Add(time.Hour), 60, nil)
	c.AddDrop(d1)
	c.AddDrop(d2)

	d1.MarkClaimed()
	d2.UpdateMinutes(30)
	assert.InDelta(t, 0.75, c.Progress(), 1e-9)
	assert.Equal(t, 1, c.ClaimedDrops())
	assert.False(t, c.Finished())

	d2.MarkClaimed()
	assert.True(t, c.Finished())
}

func TestCampaignTimeTriggers(t *testing.T) {
	now := time.Now().UTC()
	c := testCampaign(now)
	c.StartsAt = now.Add(time.Hour)

	inside := NewTimedDrop("d1", "D1", now.Add(2*time.Hour), now.Add(3*time.Hour), 60, nil)
	c.AddDrop(inside)
	// A drop ending after the campaign contributes no trigger past ends_at.
	late := NewTimedDrop("d2", "D2", now.Add(-time.Hour), now.Add(48*time.Hour), 60, nil)
	c.AddDrop(late)

	triggers := c.TimeTriggers(now)
	require.Len(t, triggers, 3)
	for _, trig := range triggers {
		assert.True(t, trig.After(now))
		assert.False(t, trig.After(c.EndsAt))
	}
}
