package server

import (
	"encoding/json"
	"net/http"
	"time"
)

func (s *StatusServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	_, watching := s.miner.Watching()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"watching":  watching,
	})
}

func (s *StatusServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	status := minerStatus{
		Channels:     len(s.miner.Channels()),
		PubSubTopics: s.miner.Pool().TopicCount(),
	}
	for _, g := range s.miner.WantedGames() {
		status.WantedGames = append(status.WantedGames, g.Name)
	}
	if ch, ok := s.miner.Watching(); ok {
		game := ch.Game()
		status.Watching = &watchingInfo{
			Channel: ch.Login,
			Game:    game.Name,
			Viewers: ch.Viewers(),
			Points:  ch.Points(),
		}
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *StatusServer) handleChannels(w http.ResponseWriter, _ *http.Request) {
	channels := s.miner.Channels()
	result := make([]channelSummary, 0, len(channels))
	for _, ch := range channels {
		game, online := ch.Stream()
		result = append(result, channelSummary{
			ID:           ch.ID,
			Login:        ch.Login,
			DisplayName:  ch.DisplayName,
			Online:       online,
			Game:         game.Name,
			Viewers:      ch.Viewers(),
			Points:       ch.Points(),
			DropsEnabled: ch.DropsEnabled(),
			ACLBased:     ch.IsACLBased(),
		})
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *StatusServer) handleCampaigns(w http.ResponseWriter, _ *http.Request) {
	campaigns := s.miner.Campaigns()
	now := time.Now().UTC()
	result := make([]campaignSummary, 0, len(campaigns))
	for _, c := range campaigns {
		summary := campaignSummary{
			ID:       c.ID,
			Name:     c.Name,
			Game:     c.Game.Name,
			Status:   c.Status(now).String(),
			Linked:   c.Linked,
			ACLBased: c.ACLBased(),
			Claimed:  c.ClaimedDrops(),
			Total:    c.TotalDrops(),
			EndsAt:   c.EndsAt,
		}
		for _, d := range c.Drops {
			summary.Drops = append(summary.Drops, dropSummary{
				ID:       d.ID,
				Benefits: d.BenefitsText(),
				Minutes:  d.CurrentMinutes(),
				Required: d.RequiredMinutes,
				Claimed:  d.IsClaimed(),
			})
		}
		result = append(result, summary)
	}
	writeJSON(w, http.StatusOK, result)
}

type minerStatus struct {
	Watching     *watchingInfo `json:"watching,omitempty"`
	WantedGames  []string      `json:"wanted_games,omitempty"`
	Channels     int           `json:"channels"`
	PubSubTopics int           `json:"pubsub_topics"`
}

type watchingInfo struct {
	Channel string `json:"channel"`
	Game    string `json:"game,omitempty"`
	Viewers int    `json:"viewers"`
	Points  int    `json:"points"`
}

type channelSummary struct {
	ID           int64  `json:"id"`
	Login        string `json:"login"`
	DisplayName  string `json:"display_name,omitempty"`
	Online       bool   `json:"online"`
	Game         string `json:"game,omitempty"`
	Viewers      int    `json:"viewers"`
	Points       int    `json:"points"`
	DropsEnabled bool   `json:"drops_enabled"`
	ACLBased     bool   `json:"acl_based"`
}

type campaignSummary struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Game     string        `json:"game"`
	Status   string        `json:"status"`
	Linked   bool          `json:"linked"`
	ACLBased bool          `json:"acl_based"`
	Claimed  int           `json:"claimed_drops"`
	Total    int           `json:"total_drops"`
	EndsAt   time.Time     `json:"ends_at"`
	Drops    []dropSummary `json:"drops,omitempty"`
}

type dropSummary struct {
	ID       string `json:"id"`
	Benefits string `json:"benefits"`
	Minutes  int    `json:"minutes"`
	Required int    `json:"required"`
	Claimed  bool   `json:"claimed"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v) //nolint:errcheck
}
