package twitch

import (
	"context"
	"time"

	"github.com/kethal/twitch-drops-go/internal/gql"
	"github.com/kethal/twitch-drops-go/internal/model"
)

// API is the high-level Twitch interface consumed by the miner.
// *Client satisfies this interface.
type API interface {
	FetchInventory(ctx context.Context, endingSoonest bool) (*Inventory, error)
	UpdateStream(ctx context.Context, ch *model.Channel) (bool, error)
	FetchLiveChannels(ctx context.Context, game model.Game, limit int) ([]*model.Channel, error)
	SendWatch(ctx context.Context, ch *model.Channel) bool
	CurrentDrop(ctx context.Context, ch *model.Channel) (*gql.CurrentDropSession, error)
	ClaimDrop(ctx context.Context, drop *model.TimedDrop) (bool, error)
	ClaimAllClaimable(ctx context.Context, campaigns []*model.DropsCampaign, now time.Time) int
	LoadPoints(ctx context.Context, ch *model.Channel) (string, error)
	ClaimBonus(ctx context.Context, ch *model.Channel) error
	DismissNotification(ctx context.Context, notificationID string) error
}
