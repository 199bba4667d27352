package miner

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kethal/twitch-drops-go/internal/model"
)

func scorerSettings(algorithm model.PriorityAlgorithm, priority ...string) model.Settings {
	s := model.DefaultSettings()
	s.PriorityAlgorithm = algorithm
	s.Priority = priority
	return s
}

// earnableCampaign builds a campaign with one fresh drop so CanEarn holds
// for the whole [now-1h, endsIn] window.
func earnableCampaign(id string, game model.Game, now time.Time, endsIn time.Duration) *model.DropsCampaign {
	c := &model.DropsCampaign{
		ID:       id,
		Name:     id,
		Game:     game,
		Linked:   true,
		StartsAt: now.Add(-time.Hour),
		EndsAt:   now.Add(endsIn),
	}
	c.AddDrop(model.NewTimedDrop(id+"-drop", id+" drop",
		now.Add(-time.Hour), now.Add(endsIn), 120, nil))
	return c
}

func watchableChannel(id int64, login string, game model.Game, viewers int) *model.Channel {
	ch := model.NewChannel(id, login, login)
	ch.SetStream(&game, viewers, true)
	return ch
}

var (
	gameA = model.Game{ID: "a", Name: "Game A"}
	gameB = model.Game{ID: "b", Name: "Game B"}
	gameC = model.Game{ID: "c", Name: "Game C"}
)

func TestListScore(t *testing.T) {
	now := time.Now().UTC()
	campaigns := []*model.DropsCampaign{
		earnableCampaign("ca", gameA, now, 24*time.Hour),
		earnableCampaign("cb", gameB, now, 24*time.Hour),
		earnableCampaign("cc", gameC, now, 24*time.Hour),
	}
	s := newScorer(scorerSettings(model.AlgorithmList, "Game A", "Game B"), campaigns, now)

	assert.Equal(t, 2.0, s.campaignScore(campaigns[0]), "top of the list")
	assert.Equal(t, 1.0, s.campaignScore(campaigns[1]))
	assert.Equal(t, 0.0, s.campaignScore(campaigns[2]), "absent from the list")
}

func TestEndingSoonestScore(t *testing.T) {
	now := time.Now().UTC()
	soon := earnableCampaign("soon", gameA, now, time.Hour)
	later := earnableCampaign("later", gameB, now, 48*time.Hour)
	unlisted := earnableCampaign("unlisted", gameC, now, 2*time.Hour)
	campaigns := []*model.DropsCampaign{later, soon, unlisted}

	s := newScorer(scorerSettings(model.AlgorithmEndingSoonest, "Game A", "Game B"), campaigns, now)

	// Listed games rank above every unlisted one, earliest deadline first.
	assert.Greater(t, s.campaignScore(soon), s.campaignScore(later))
	assert.Greater(t, s.campaignScore(later), s.campaignScore(unlisted))
	assert.LessOrEqual(t, s.campaignScore(unlisted), 0.0)
}

func TestBalancedScore(t *testing.T) {
	now := time.Now().UTC()
	urgent := earnableCampaign("urgent", gameA, now, 2*time.Hour)
	relaxed := earnableCampaign("relaxed", gameA, now, 200*time.Hour)
	expired := earnableCampaign("expired", gameA, now, -time.Minute)
	unlisted := earnableCampaign("unlisted", gameC, now, time.Hour)
	campaigns := []*model.DropsCampaign{urgent, relaxed, expired, unlisted}

	s := newScorer(scorerSettings(model.AlgorithmBalanced, "Game A"), campaigns, now)

	assert.Greater(t, s.campaignScore(urgent), s.campaignScore(relaxed),
		"closer deadline scores higher at equal priority")
	assert.True(t, math.IsInf(s.campaignScore(expired), -1))
	assert.Equal(t, 0.0, s.campaignScore(unlisted))

	// Urgency saturates instead of growing without bound.
	almostOver := earnableCampaign("almost", gameA, now, time.Minute)
	assert.LessOrEqual(t, s.campaignScore(almostOver), 1.0+0.1*100.0)
}

func TestAdaptiveScore(t *testing.T) {
	now := time.Now().UTC()

	// 110 minutes left to watch, deadline in 2h: completion is at risk.
	risky := earnableCampaign("risky", gameA, now, 2*time.Hour)
	risky.Drops[0].UpdateMinutes(10)

	// Same game, deadline far away: no risk boost.
	safe := earnableCampaign("safe", gameA, now, 300*time.Hour)
	expired := earnableCampaign("expired", gameA, now, -time.Minute)
	unlisted := earnableCampaign("unlisted", gameC, now, time.Hour)
	campaigns := []*model.DropsCampaign{risky, safe, expired, unlisted}

	s := newScorer(scorerSettings(model.AlgorithmAdaptive, "Game A"), campaigns, now)

	assert.Greater(t, s.campaignScore(risky), s.campaignScore(safe))
	assert.Equal(t, 1.0, s.campaignScore(safe), "no risk leaves the bare priority")
	assert.True(t, math.IsInf(s.campaignScore(expired), -1))
	assert.Equal(t, 0.0, s.campaignScore(unlisted))
}

func TestChannelScoreNoEarnableCampaign(t *testing.T) {
	now := time.Now().UTC()
	campaigns := []*model.DropsCampaign{earnableCampaign("ca", gameA, now, time.Hour)}
	s := newScorer(scorerSettings(model.AlgorithmList, "Game A"), campaigns, now)

	wrongGame := watchableChannel(1, "other", gameB, 10)
	assert.True(t, math.IsInf(s.channelScore(wrongGame), -1))

	match := watchableChannel(2, "match", gameA, 10)
	assert.Equal(t, 1.0, s.channelScore(match))
}

func TestSortChannels(t *testing.T) {
	now := time.Now().UTC()
	campaigns := []*model.DropsCampaign{
		earnableCampaign("ca", gameA, now, 24*time.Hour),
		earnableCampaign("cb", gameB, now, 24*time.Hour),
	}
	s := newScorer(scorerSettings(model.AlgorithmList, "Game A", "Game B"), campaigns, now)

	low := watchableChannel(1, "low", gameB, 50)
	highViewers := watchableChannel(2, "crowd", gameA, 900)
	fewViewers := watchableChannel(3, "quiet", gameA, 10)
	acl := watchableChannel(4, "allowlisted", gameA, 5)
	acl.PromoteACL()

	channels := []*model.Channel{low, fewViewers, highViewers, acl}
	s.sortChannels(channels)

	// Score dominates, allow-list membership breaks score ties, viewer
	// count breaks the rest.
	assert.Equal(t, []*model.Channel{acl, highViewers, fewViewers, low}, channels)
}

func TestShouldSwitch(t *testing.T) {
	now := time.Now().UTC()
	campaigns := []*model.DropsCampaign{
		earnableCampaign("ca", gameA, now, 24*time.Hour),
		earnableCampaign("cb", gameB, now, 24*time.Hour),
	}
	s := newScorer(scorerSettings(model.AlgorithmList, "Game A", "Game B"), campaigns, now)

	better := watchableChannel(1, "better", gameA, 10)
	worse := watchableChannel(2, "worse", gameB, 10)
	peerACL := watchableChannel(3, "allowlisted", gameB, 10)
	peerACL.PromoteACL()

	assert.True(t, s.shouldSwitch(nil, worse), "nothing watched yet")
	assert.True(t, s.shouldSwitch(worse, better))
	assert.False(t, s.shouldSwitch(better, worse), "never trade down")
	assert.False(t, s.shouldSwitch(better, better), "equal score keeps the current channel")
	assert.True(t, s.shouldSwitch(worse, peerACL), "allow-listed wins the tie")
	assert.False(t, s.shouldSwitch(peerACL, worse))
}
