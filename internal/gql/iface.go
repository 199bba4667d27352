package gql

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/kethal/twitch-drops-go/internal/constants"
)

// Operations is the interface for all GQL query/mutation methods.
// *Client satisfies this interface.
type Operations interface {
	GQL(ctx context.Context, ops ...constants.GQLOperation) ([]json.RawMessage, error)
	Post(ctx context.Context, op constants.GQLOperation) (json.RawMessage, error)
	HTTPClient() *http.Client

	GetDropsInventory(ctx context.Context) (json.RawMessage, error)
	GetDropsDashboard(ctx context.Context, status string) ([]json.RawMessage, error)
	GetDropCampaignDetails(ctx context.Context, campaignIDs []string, login string) ([]json.RawMessage, error)
	GetCurrentDrop(ctx context.Context, channelID int64) (*CurrentDropSession, error)
	ClaimDropRewards(ctx context.Context, dropInstanceID string) (bool, error)
	GetAvailableDrops(ctx context.Context, channelID int64) ([]string, error)
	GetChannelPointsContext(ctx context.Context, channelLogin string) (*ChannelPointsContext, error)
	ClaimCommunityPoints(ctx context.Context, claimID string, channelID int64) error
	GetStreamInfo(ctx context.Context, channelLogin string) (*StreamInfo, error)
	GetBroadcastID(ctx context.Context, channelID int64) (string, error)
	GetPlaybackAccessToken(ctx context.Context, login string) (*PlaybackAccessToken, error)
	GetGameDirectory(ctx context.Context, slug string, limit int) ([]DirectoryStream, error)
	GetGameSlug(ctx context.Context, gameID string) (string, error)
	DeleteNotification(ctx context.Context, notificationID string) error
}
