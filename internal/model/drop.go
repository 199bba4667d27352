package model

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kethal/twitch-drops-go/internal/utils"
)

// DropBenefit is a single reward granted by a drop.
type DropBenefit struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url,omitempty"`
}

// TimedDrop is one unit of a drop: watch RequiredMinutes of a qualifying
// stream inside the [StartsAt, EndsAt] window, then claim. Progress and
// claim state are mutated from PubSub handlers, the watch loop and the
// claim follow-up concurrently, so they sit behind a mutex; the identity,
// window and benefit fields are fixed at parse time.
type TimedDrop struct {
	ID   string
	Name string

	// Campaign is a back-reference to the owning campaign, assigned once
	// when the campaign takes ownership of the drop. Relation, not
	// ownership: both live and die with the inventory snapshot.
	Campaign *DropsCampaign

	StartsAt time.Time
	EndsAt   time.Time

	RequiredMinutes  int
	PreconditionsMet bool

	Benefits []DropBenefit

	mu              sync.Mutex
	currentMinutes  int
	claimInstanceID string
	isClaimed       bool
}

// NewTimedDrop creates a TimedDrop. Preconditions default to met; the
// inventory update flips them off when Twitch reports otherwise.
func NewTimedDrop(id, name string, startsAt, endsAt time.Time, requiredMinutes int, benefits []DropBenefit) *TimedDrop {
	return &TimedDrop{
		ID:               id,
		Name:             name,
		StartsAt:         startsAt,
		EndsAt:           endsAt,
		RequiredMinutes:  requiredMinutes,
		PreconditionsMet: true,
		Benefits:         benefits,
	}
}

// CurrentMinutes returns the accumulated watch minutes.
func (d *TimedDrop) CurrentMinutes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.currentMinutes
}

// IsClaimed reports whether the reward has been claimed.
func (d *TimedDrop) IsClaimed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.isClaimed
}

// ClaimInstanceID returns the claim handle, or "" when none is pending.
func (d *TimedDrop) ClaimInstanceID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.claimInstanceID
}

// SetClaimInstanceID records the claim handle reported by the inventory
// or a PubSub drop-claim event.
func (d *TimedDrop) SetClaimInstanceID(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.claimInstanceID = id
}

// Progress returns the watch progress in [0, 1].
func (d *TimedDrop) Progress() float64 {
	if d.RequiredMinutes <= 0 {
		return 0
	}
	return float64(d.CurrentMinutes()) / float64(d.RequiredMinutes)
}

// RemainingMinutes returns the minutes left to watch, never negative.
func (d *TimedDrop) RemainingMinutes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.remainingLocked()
}

func (d *TimedDrop) remainingLocked() int {
	if r := d.RequiredMinutes - d.currentMinutes; r > 0 {
		return r
	}
	return 0
}

// CanClaim reports whether the drop is ready to be claimed.
func (d *TimedDrop) CanClaim() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.currentMinutes >= d.RequiredMinutes && d.claimInstanceID != "" && !d.isClaimed
}

// IsWithinWindow reports whether now falls inside the drop's time window.
func (d *TimedDrop) IsWithinWindow(now time.Time) bool {
	return !now.Before(d.StartsAt) && now.Before(d.EndsAt)
}

// CanEarn reports whether watching can still progress this drop right now.
func (d *TimedDrop) CanEarn(now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.IsWithinWindow(now) && !d.isClaimed && d.remainingLocked() > 0 && d.PreconditionsMet
}

// CanEarnWithin reports whether the drop could progress at any instant
// between now and the horizon.
func (d *TimedDrop) CanEarnWithin(now, horizon time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.isClaimed && d.remainingLocked() > 0 &&
		d.EndsAt.After(now) && d.StartsAt.Before(horizon)
}

// UpdateMinutes sets watch progress from an authoritative source (inventory
// or a PubSub drop-progress event). Progress is monotonic within a session:
// a lower value than the current one is ignored.
func (d *TimedDrop) UpdateMinutes(minutes int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if minutes > d.RequiredMinutes {
		minutes = d.RequiredMinutes
	}
	if minutes > d.currentMinutes {
		d.currentMinutes = minutes
	}
}

// Bump adds one locally-counted minute of progress. Used as the fallback
// when neither PubSub nor GQL confirmed the minute.
func (d *TimedDrop) Bump() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.currentMinutes < d.RequiredMinutes {
		d.currentMinutes++
	}
}

// MarkClaimed finalizes the claim lifecycle for this drop.
func (d *TimedDrop) MarkClaimed() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.isClaimed = true
	d.claimInstanceID = ""
	d.currentMinutes = d.RequiredMinutes
}

// BenefitsText returns the benefit names joined for status lines.
func (d *TimedDrop) BenefitsText() string {
	if len(d.Benefits) == 0 {
		return d.Name
	}
	names := make([]string, len(d.Benefits))
	for i, b := range d.Benefits {
		names[i] = b.Name
	}
	return strings.Join(names, ", ")
}

// ProgressBar returns a text-based progress bar for the drop.
func (d *TimedDrop) ProgressBar() string {
	current := d.CurrentMinutes()
	pct := utils.Percentage(current, d.RequiredMinutes)
	filled := pct / 2
	bar := strings.Repeat("█", filled) + strings.Repeat(" ", 50-filled)
	return fmt.Sprintf("|%s| %d%% [%d/%d]", bar, pct, current, d.RequiredMinutes)
}

// Equal returns true if two drops have the same ID.
func (d *TimedDrop) Equal(other *TimedDrop) bool {
	if other == nil {
		return false
	}
	return d.ID == other.ID
}

// String returns a human-readable representation of the drop.
func (d *TimedDrop) String() string {
	return fmt.Sprintf("Drop(id=%s, benefits=%s, progress=%d/%d)",
		d.ID, d.BenefitsText(), d.CurrentMinutes(), d.RequiredMinutes)
}
