package twitch

import (
	"context"
	"fmt"
	"time"

	"github.com/kethal/twitch-drops-go/internal/model"
)

// ClaimDrop claims a single ready drop and finalizes its local state.
// Returns whether the server granted (or had already granted) the reward.
func (c *Client) ClaimDrop(ctx context.Context, drop *model.TimedDrop) (bool, error) {
	if !drop.CanClaim() {
		return false, nil
	}

	claimed, err := c.GQL.ClaimDropRewards(ctx, drop.ClaimInstanceID())
	if err != nil {
		return false, fmt.Errorf("claiming drop %s: %w", drop.ID, err)
	}
	if !claimed {
		return false, nil
	}

	drop.MarkClaimed()

	campaignName := ""
	if drop.Campaign != nil {
		campaignName = drop.Campaign.Name
	}
	c.Log.Event(ctx, model.EventDropClaim, "Claimed drop",
		"drop", drop.BenefitsText(), "campaign", campaignName)
	return true, nil
}

// ClaimAllClaimable claims every claimable drop across active and expired
// campaigns. Returns the number of drops claimed. Claim failures are
// logged and skipped so one broken claim never blocks the rest.
func (c *Client) ClaimAllClaimable(ctx context.Context, campaigns []*model.DropsCampaign, now time.Time) int {
	claimed := 0
	for _, campaign := range campaigns {
		if campaign.Upcoming(now) {
			continue
		}
		for _, drop := range campaign.Drops {
			if !drop.CanClaim() {
				continue
			}
			ok, err := c.ClaimDrop(ctx, drop)
			if err != nil {
				c.Log.Warn("Failed to claim drop",
					"drop", drop.Name, "campaign", campaign.Name, "error", err)
				continue
			}
			if ok {
				claimed++
			}
		}
	}
	return claimed
}
