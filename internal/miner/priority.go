package miner

import (
	"math"
	"sort"
	"time"

	"github.com/kethal/twitch-drops-go/internal/model"
)

// scorer ranks campaigns, games and channels for one scheduling decision.
// It is built from a consistent snapshot of settings and campaigns and is
// only valid for that snapshot; every state machine pass builds a new one.
type scorer struct {
	algorithm model.PriorityAlgorithm
	priority  map[string]int // game name -> 0-based position in the user's list
	listLen   int
	ranks     map[string]int // campaign ID -> 0-based rank by ends_at asc
	campaigns []*model.DropsCampaign
	now       time.Time
}

func newScorer(settings model.Settings, campaigns []*model.DropsCampaign, now time.Time) *scorer {
	s := &scorer{
		algorithm: settings.PriorityAlgorithm,
		priority:  make(map[string]int, len(settings.Priority)),
		listLen:   len(settings.Priority),
		ranks:     make(map[string]int, len(campaigns)),
		campaigns: campaigns,
		now:       now,
	}
	for i, name := range settings.Priority {
		if _, ok := s.priority[name]; !ok {
			s.priority[name] = i
		}
	}

	byEnd := make([]*model.DropsCampaign, len(campaigns))
	copy(byEnd, campaigns)
	sort.SliceStable(byEnd, func(i, j int) bool {
		return byEnd[i].EndsAt.Before(byEnd[j].EndsAt)
	})
	for rank, c := range byEnd {
		s.ranks[c.ID] = rank
	}
	return s
}

// inversePriority returns the reverse list index of the game: top of the
// list maps to the list length, absent games to 0.
func (s *scorer) inversePriority(game model.Game) int {
	if idx, ok := s.priority[game.Name]; ok {
		return s.listLen - idx
	}
	return 0
}

// campaignScore computes the ranking key for one campaign; higher is
// better. Games absent from the priority list never score positive.
func (s *scorer) campaignScore(c *model.DropsCampaign) float64 {
	invP := float64(s.inversePriority(c.Game))

	switch s.algorithm {
	case model.AlgorithmEndingSoonest:
		rank := float64(s.ranks[c.ID])
		if invP > 0 {
			return float64(s.listLen) - rank
		}
		return -rank

	case model.AlgorithmBalanced:
		h := c.EndsAt.Sub(s.now).Hours()
		if h <= 0 {
			return math.Inf(-1)
		}
		if invP == 0 {
			return 0
		}
		urgency := math.Min(100, math.Max(0, 100*(1-h/72)))
		listScore := invP / float64(s.listLen) * 100
		blend := 0.60*listScore + 0.40*urgency
		return blend/100*invP + 0.1*blend

	case model.AlgorithmAdaptive:
		h := c.EndsAt.Sub(s.now).Hours()
		if h <= 0 {
			return math.Inf(-1)
		}
		if invP == 0 {
			return 0
		}
		risk := 0.0
		if drop := c.ActiveDrop(s.now); drop != nil && drop.RemainingMinutes() > 0 {
			budget := float64(drop.RemainingMinutes()) / 60 * 1.2
			risk = math.Max(0, 1-h/budget)
		}
		return invP + invP*risk*10

	default: // LIST
		return invP
	}
}

// channelScore is the best score among campaigns the channel can progress
// right now, or -inf when it can progress none.
func (s *scorer) channelScore(ch *model.Channel) float64 {
	best := math.Inf(-1)
	for _, c := range s.campaigns {
		if !c.CanEarn(ch, s.now) {
			continue
		}
		if score := s.campaignScore(c); score > best {
			best = score
		}
	}
	return best
}

// gameScore is the best score among the game's earnable campaigns,
// ignoring channel availability.
func (s *scorer) gameScore(game model.Game) float64 {
	best := math.Inf(-1)
	for _, c := range s.campaigns {
		if !c.Game.Equal(game) || !c.CanEarn(nil, s.now) {
			continue
		}
		if score := s.campaignScore(c); score > best {
			best = score
		}
	}
	return best
}

// sortChannels orders channels for watching by a chain of stable sorts;
// the last applied sort dominates, earlier ones break its ties.
func (s *scorer) sortChannels(channels []*model.Channel) {
	sort.SliceStable(channels, func(i, j int) bool {
		return channels[i].Viewers() > channels[j].Viewers()
	})
	sort.SliceStable(channels, func(i, j int) bool {
		return channels[i].IsACLBased() && !channels[j].IsACLBased()
	})
	scores := make(map[int64]float64, len(channels))
	for _, ch := range channels {
		scores[ch.ID] = s.channelScore(ch)
	}
	sort.SliceStable(channels, func(i, j int) bool {
		return scores[channels[i].ID] > scores[channels[j].ID]
	})
}

// shouldSwitch decides whether the candidate replaces the currently
// watched channel: always when nothing is watched, otherwise on a strictly
// higher score, or on an equal score when only the candidate is allow-listed.
func (s *scorer) shouldSwitch(current, candidate *model.Channel) bool {
	if current == nil {
		return true
	}
	curScore := s.channelScore(current)
	newScore := s.channelScore(candidate)
	if newScore > curScore {
		return true
	}
	return newScore == curScore && candidate.IsACLBased() && !current.IsACLBased()
}
