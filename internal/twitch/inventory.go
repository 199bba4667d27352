package twitch

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/kethal/twitch-drops-go/internal/jsonutil"
	"github.com/kethal/twitch-drops-go/internal/model"
)

// Inventory is one fetched snapshot of the user's drops state: campaigns
// with merged progress, plus the future instants at which campaign
// earnability may flip.
type Inventory struct {
	Campaigns    []*model.DropsCampaign
	TimeTriggers []time.Time
	FetchedAt    time.Time
}

// FetchInventory builds a fresh inventory snapshot: the Inventory op for
// in-progress campaigns and claimed benefits, the Campaigns op for all
// active and upcoming campaigns, then one batched CampaignDetails op per
// chunk, deep-merged with the inventory's progress data as each chunk
// completes.
func (c *Client) FetchInventory(ctx context.Context, endingSoonest bool) (*Inventory, error) {
	inProgress, claimedBenefits, err := c.fetchProgress(ctx)
	if err != nil {
		return nil, err
	}

	dashboard, err := c.GQL.GetDropsDashboard(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("fetching campaigns dashboard: %w", err)
	}

	var campaignIDs []string
	for _, raw := range dashboard {
		var head struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		}
		if err := json.Unmarshal(raw, &head); err != nil || head.ID == "" {
			continue
		}
		if head.Status == "ACTIVE" || head.Status == "UPCOMING" {
			campaignIDs = append(campaignIDs, head.ID)
		}
	}

	details, err := c.GQL.GetDropCampaignDetails(ctx, campaignIDs, c.Auth.UserID())
	if err != nil {
		return nil, fmt.Errorf("fetching campaign details: %w", err)
	}

	now := time.Now().UTC()
	campaigns := make([]*model.DropsCampaign, 0, len(details))
	for _, raw := range details {
		var tree map[string]any
		if err := json.Unmarshal(raw, &tree); err != nil {
			c.Log.Debug("Skipping malformed campaign details", "error", err)
			continue
		}

		id := jsonutil.StringFromMap(tree, "id")
		if progress, ok := inProgress[id]; ok {
			tree, err = DeepMerge(progress, tree)
			if err != nil {
				return nil, fmt.Errorf("merging campaign %s: %w", id, err)
			}
		}

		campaign, err := parseCampaign(tree, claimedBenefits)
		if err != nil {
			c.Log.Debug("Skipping unparseable campaign", "campaign", id, "error", err)
			continue
		}
		campaigns = append(campaigns, campaign)
	}

	sortCampaigns(campaigns, endingSoonest, now)

	return &Inventory{
		Campaigns:    campaigns,
		TimeTriggers: collectTimeTriggers(campaigns, now),
		FetchedAt:    now,
	}, nil
}

// fetchProgress reads the Inventory op: per-campaign progress trees keyed
// by campaign ID, and the set of benefit IDs already awarded.
func (c *Client) fetchProgress(ctx context.Context) (map[string]map[string]any, map[string]time.Time, error) {
	raw, err := c.GQL.GetDropsInventory(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching inventory: %w", err)
	}

	inProgress := make(map[string]map[string]any)
	claimed := make(map[string]time.Time)
	if raw == nil {
		return inProgress, claimed, nil
	}

	var tree map[string]any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, nil, fmt.Errorf("parsing inventory: %w", err)
	}

	for _, entry := range jsonutil.SliceFromMap(tree, "dropCampaignsInProgress") {
		campaign, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if id := jsonutil.StringFromMap(campaign, "id"); id != "" {
			inProgress[id] = campaign
		}
	}

	for _, entry := range jsonutil.SliceFromMap(tree, "gameEventDrops") {
		benefit, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if id := jsonutil.StringFromMap(benefit, "id"); id != "" {
			claimed[id] = jsonutil.TimeFromMap(benefit, "lastAwardedAt")
		}
	}

	return inProgress, claimed, nil
}

// parseCampaign builds a DropsCampaign from a merged campaign tree.
func parseCampaign(data map[string]any, claimedBenefits map[string]time.Time) (*model.DropsCampaign, error) {
	id := jsonutil.StringFromMap(data, "id")
	if id == "" {
		return nil, fmt.Errorf("campaign without id")
	}

	campaign := &model.DropsCampaign{
		ID:       id,
		Name:     jsonutil.StringFromMap(data, "name"),
		LinkURL:  jsonutil.StringFromMap(data, "accountLinkURL"),
		StartsAt: jsonutil.TimeFromMap(data, "startAt"),
		EndsAt:   jsonutil.TimeFromMap(data, "endAt"),
	}

	if game := jsonutil.MapFromMap(data, "game"); game != nil {
		name := jsonutil.StringFromMap(game, "displayName")
		if name == "" {
			name = jsonutil.StringFromMap(game, "name")
		}
		campaign.Game = model.Game{
			ID:   jsonutil.StringFromMap(game, "id"),
			Name: name,
			Slug: jsonutil.StringFromMap(game, "slug"),
		}
		if campaign.Game.Slug != "" {
			model.RegisterGameSlug(campaign.Game.ID, campaign.Game.Slug)
		}
	}

	if self := jsonutil.MapFromMap(data, "self"); self != nil {
		campaign.Linked = jsonutil.BoolFromMap(self, "isAccountConnected")
	}

	if allow := jsonutil.MapFromMap(data, "allow"); allow != nil && jsonutil.BoolFromMap(allow, "isEnabled") {
		for _, entry := range jsonutil.SliceFromMap(allow, "channels") {
			ch, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			acl := model.ACLEntry{
				Login: jsonutil.StringFromMap(ch, "name"),
			}
			if idStr := jsonutil.StringFromMap(ch, "id"); idStr != "" {
				acl.ID, _ = strconv.ParseInt(idStr, 10, 64)
			}
			if acl.ID != 0 || acl.Login != "" {
				campaign.ACL = append(campaign.ACL, acl)
			}
		}
	}

	for _, entry := range jsonutil.SliceFromMap(data, "timeBasedDrops") {
		dropData, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		campaign.AddDrop(parseDrop(dropData, claimedBenefits))
	}

	return campaign, nil
}

func parseDrop(data map[string]any, claimedBenefits map[string]time.Time) *model.TimedDrop {
	var benefits []model.DropBenefit
	for _, entry := range jsonutil.SliceFromMap(data, "benefitEdges") {
		edge, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		benefit := jsonutil.MapFromMap(edge, "benefit")
		if benefit == nil {
			continue
		}
		benefits = append(benefits, model.DropBenefit{
			ID:       jsonutil.StringFromMap(benefit, "id"),
			Name:     jsonutil.StringFromMap(benefit, "name"),
			ImageURL: jsonutil.StringFromMap(benefit, "imageAssetURL"),
		})
	}

	drop := model.NewTimedDrop(
		jsonutil.StringFromMap(data, "id"),
		jsonutil.StringFromMap(data, "name"),
		jsonutil.TimeFromMap(data, "startAt"),
		jsonutil.TimeFromMap(data, "endAt"),
		jsonutil.IntFromMap(data, "requiredMinutesWatched"),
		benefits,
	)

	if self := jsonutil.MapFromMap(data, "self"); self != nil {
		drop.UpdateMinutes(jsonutil.IntFromMap(self, "currentMinutesWatched"))
		drop.SetClaimInstanceID(jsonutil.StringFromMap(self, "dropInstanceID"))
		if jsonutil.BoolFromMap(self, "isClaimed") {
			drop.MarkClaimed()
		}
		if _, present := self["hasPreconditionsMet"]; present {
			drop.PreconditionsMet = jsonutil.BoolFromMap(self, "hasPreconditionsMet")
		}
	}

	// A drop whose every benefit was already awarded counts as claimed
	// even when the progress subtree is missing.
	if !drop.IsClaimed() && len(benefits) > 0 {
		allAwarded := true
		for _, b := range benefits {
			if _, ok := claimedBenefits[b.ID]; !ok {
				allAwarded = false
				break
			}
		}
		if allAwarded {
			drop.MarkClaimed()
		}
	}

	return drop
}

// sortCampaigns orders campaigns by a chain of stable sorts; the last
// applied sort dominates, earlier sorts break its ties.
func sortCampaigns(campaigns []*model.DropsCampaign, endingSoonest bool, now time.Time) {
	sort.SliceStable(campaigns, func(i, j int) bool {
		return campaigns[i].Active(now) && !campaigns[j].Active(now)
	})
	sort.SliceStable(campaigns, func(i, j int) bool {
		return campaignSortTime(campaigns[i], now).Before(campaignSortTime(campaigns[j], now))
	})
	sort.SliceStable(campaigns, func(i, j int) bool {
		return campaigns[i].Linked && !campaigns[j].Linked
	})
	if endingSoonest {
		sort.SliceStable(campaigns, func(i, j int) bool {
			return campaigns[i].EndsAt.Before(campaigns[j].EndsAt)
		})
	}
}

// campaignSortTime is the instant the campaign sorts by: start for
// upcoming campaigns, end for everything else.
func campaignSortTime(c *model.DropsCampaign, now time.Time) time.Time {
	if c.Upcoming(now) {
		return c.StartsAt
	}
	return c.EndsAt
}

// collectTimeTriggers gathers deduplicated, sorted future instants from
// every campaign earnable within the next hour.
func collectTimeTriggers(campaigns []*model.DropsCampaign, now time.Time) []time.Time {
	horizon := now.Add(time.Hour)
	seen := make(map[time.Time]struct{})
	var triggers []time.Time

	for _, campaign := range campaigns {
		if !campaign.CanEarnWithin(now, horizon) {
			continue
		}
		for _, t := range campaign.TimeTriggers(now) {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			triggers = append(triggers, t)
		}
	}

	sort.Slice(triggers, func(i, j int) bool { return triggers[i].Before(triggers[j]) })
	return triggers
}
