package model

import (
	"fmt"
	"time"
)

// CampaignStatus is the lifecycle phase of a campaign, computed from time.
type CampaignStatus int

const (
	// CampaignUpcoming means the campaign has not started yet.
	CampaignUpcoming CampaignStatus = iota
	// CampaignActive means the campaign is currently running.
	CampaignActive
	// CampaignExpired means the campaign has ended.
	CampaignExpired
)

// String returns the string representation of a CampaignStatus.
func (s CampaignStatus) String() string {
	switch s {
	case CampaignUpcoming:
		return "UPCOMING"
	case CampaignActive:
		return "ACTIVE"
	case CampaignExpired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}

// ACLEntry names a channel a campaign restricts its rewards to.
type ACLEntry struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
}

// DropsCampaign is a set of related drops tied to one game.
type DropsCampaign struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Game Game   `json:"game"`

	// Linked means the user has linked their external game account;
	// unlinked campaigns are mined only when the user opted in.
	Linked  bool   `json:"linked"`
	LinkURL string `json:"link_url,omitempty"`

	// ACL restricts earning to the listed channels. Empty means any
	// channel streaming the game qualifies.
	ACL []ACLEntry `json:"acl,omitempty"`

	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`

	Drops []*TimedDrop `json:"drops,omitempty"`
}

// AddDrop appends a drop and takes ownership, setting its back-reference.
func (c *DropsCampaign) AddDrop(d *TimedDrop) {
	d.Campaign = c
	c.Drops = append(c.Drops, d)
}

// Status computes the campaign lifecycle phase at the given instant.
func (c *DropsCampaign) Status(now time.Time) CampaignStatus {
	switch {
	case now.Before(c.StartsAt):
		return CampaignUpcoming
	case now.Before(c.EndsAt):
		return CampaignActive
	default:
		return CampaignExpired
	}
}

// Active reports whether the campaign is running at the given instant.
func (c *DropsCampaign) Active(now time.Time) bool {
	return c.Status(now) == CampaignActive
}

// Upcoming reports whether the campaign has not started yet.
func (c *DropsCampaign) Upcoming(now time.Time) bool {
	return c.Status(now) == CampaignUpcoming
}

// Expired reports whether the campaign has ended.
func (c *DropsCampaign) Expired(now time.Time) bool {
	return c.Status(now) == CampaignExpired
}

// ACLBased reports whether the campaign restricts earning to specific channels.
func (c *DropsCampaign) ACLBased() bool {
	return len(c.ACL) > 0
}

// TotalDrops returns the number of drops in the campaign.
func (c *DropsCampaign) TotalDrops() int {
	return len(c.Drops)
}

// ClaimedDrops returns the number of already claimed drops.
func (c *DropsCampaign) ClaimedDrops() int {
	n := 0
	for _, d := range c.Drops {
		if d.IsClaimed() {
			n++
		}
	}
	return n
}

// Progress returns the overall campaign progress in [0, 1].
func (c *DropsCampaign) Progress() float64 {
	if len(c.Drops) == 0 {
		return 0
	}
	var sum float64
	for _, d := range c.Drops {
		if d.IsClaimed() {
			sum += 1
		} else {
			sum += d.Progress()
		}
	}
	return sum / float64(len(c.Drops))
}

// RemainingMinutes sums the minutes left across all drops.
func (c *DropsCampaign) RemainingMinutes() int {
	total := 0
	for _, d := range c.Drops {
		if !d.IsClaimed() {
			total += d.RemainingMinutes()
		}
	}
	return total
}

// Finished reports whether every drop in the campaign has been claimed.
func (c *DropsCampaign) Finished() bool {
	return c.ClaimedDrops() == c.TotalDrops()
}

// ActiveDrop returns the earnable drop with the least remaining minutes,
// or nil when none qualifies.
func (c *DropsCampaign) ActiveDrop(now time.Time) *TimedDrop {
	var best *TimedDrop
	for _, d := range c.Drops {
		if !d.CanEarn(now) {
			continue
		}
		if best == nil || d.RemainingMinutes() < best.RemainingMinutes() {
			best = d
		}
	}
	return best
}

// allowsChannel reports whether the channel passes the campaign's ACL.
func (c *DropsCampaign) allowsChannel(ch *Channel) bool {
	if len(c.ACL) == 0 {
		return true
	}
	for _, entry := range c.ACL {
		if entry.ID == ch.ID || (entry.ID == 0 && entry.Login == ch.Login) {
			return true
		}
	}
	return false
}

// CanEarn reports whether watching the given channel right now can
// progress any drop of this campaign. A nil channel checks only the
// campaign-side conditions.
func (c *DropsCampaign) CanEarn(ch *Channel, now time.Time) bool {
	if !c.Active(now) {
		return false
	}
	if ch != nil {
		game, online := ch.Stream()
		if !online || !c.Game.Equal(game) || !c.allowsChannel(ch) {
			return false
		}
	}
	for _, d := range c.Drops {
		if d.CanEarn(now) {
			return true
		}
	}
	return false
}

// CanEarnWithin reports whether the campaign could progress at some
// instant between now and the horizon, ignoring channel availability.
func (c *DropsCampaign) CanEarnWithin(now, horizon time.Time) bool {
	if !c.EndsAt.After(now) || !c.StartsAt.Before(horizon) {
		return false
	}
	for _, d := range c.Drops {
		if d.CanEarnWithin(now, horizon) {
			return true
		}
	}
	return false
}

// TimeTriggers returns the campaign instants inside (now, ends_at] at
// which earnability may flip: the campaign start and every drop window
// boundary. Used by the maintenance scheduler.
func (c *DropsCampaign) TimeTriggers(now time.Time) []time.Time {
	var triggers []time.Time
	add := func(t time.Time) {
		if t.After(now) && !t.After(c.EndsAt) {
			triggers = append(triggers, t)
		}
	}
	add(c.StartsAt)
	for _, d := range c.Drops {
		add(d.StartsAt)
		add(d.EndsAt)
	}
	return triggers
}

// Equal returns true if two campaigns have the same ID.
func (c *DropsCampaign) Equal(other *DropsCampaign) bool {
	if other == nil {
		return false
	}
	return c.ID == other.ID
}

// String returns a human-readable representation of the campaign.
func (c *DropsCampaign) String() string {
	return fmt.Sprintf("Campaign(id=%s, name=%s, game=%s, drops=%d/%d)",
		c.ID, c.Name, c.Game.Name, c.ClaimedDrops(), c.TotalDrops())
}
