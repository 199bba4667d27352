package gql

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/kethal/twitch-drops-go/internal/constants"
	"github.com/kethal/twitch-drops-go/internal/model"
	"github.com/kethal/twitch-drops-go/internal/utils"
)

// PlaybackAccessToken holds the signature and token needed for HLS
// manifest access.
type PlaybackAccessToken struct {
	Signature string `json:"signature"`
	Value     string `json:"value"`
}

// ChannelPointsContext holds the parsed response from the
// ChannelPointsContext query: the viewer's balance plus an available bonus
// claim, if any.
type ChannelPointsContext struct {
	Balance          int
	AvailableClaimID string
}

// StreamInfo holds parsed stream facts from the GQL API.
type StreamInfo struct {
	BroadcastID string
	Title       string
	Game        *model.Game
	Viewers     int
	DropsTagged bool
}

// DirectoryStream describes one live channel returned by a game directory
// query.
type DirectoryStream struct {
	ID          int64
	Login       string
	DisplayName string
	Viewers     int
	Game        model.Game
}

// CurrentDropSession is the viewer's drop progress on the watched channel,
// as reported by DropCurrentSessionContext.
type CurrentDropSession struct {
	DropID          string
	CurrentMinutes  int
	RequiredMinutes int
}

// GetDropsInventory fetches the viewer's drop inventory subtree:
// in-progress campaigns and claimed benefit IDs.
func (c *Client) GetDropsInventory(ctx context.Context) (json.RawMessage, error) {
	data, err := c.Post(ctx, constants.GQLOperations["Inventory"])
	if err != nil {
		return nil, fmt.Errorf("Inventory: %w", err)
	}

	var resp struct {
		CurrentUser *struct {
			Inventory json.RawMessage `json:"inventory"`
		} `json:"currentUser"`
	}

	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parsing Inventory response: %w", err)
	}

	if resp.CurrentUser == nil {
		return nil, nil
	}

	return resp.CurrentUser.Inventory, nil
}

// GetDropsDashboard fetches drop campaigns from the viewer dashboard.
// If status is non-empty, only campaigns with that status are returned.
func (c *Client) GetDropsDashboard(ctx context.Context, status string) ([]json.RawMessage, error) {
	data, err := c.Post(ctx, constants.GQLOperations["Campaigns"])
	if err != nil {
		return nil, fmt.Errorf("ViewerDropsDashboard: %w", err)
	}

	var resp struct {
		CurrentUser *struct {
			DropCampaigns []json.RawMessage `json:"dropCampaigns"`
		} `json:"currentUser"`
	}

	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parsing ViewerDropsDashboard response: %w", err)
	}

	if resp.CurrentUser == nil {
		return nil, nil
	}

	campaigns := resp.CurrentUser.DropCampaigns
	if status == "" {
		return campaigns, nil
	}

	var filtered []json.RawMessage
	for _, raw := range campaigns {
		var campaignStatus struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(raw, &campaignStatus); err == nil && campaignStatus.Status == status {
			filtered = append(filtered, raw)
		}
	}
	return filtered, nil
}

// GetDropCampaignDetails fetches full details for the given campaign IDs,
// batched so each GQL request stays within the server's batch limit. The
// viewer's login scopes the self fields of the response.
func (c *Client) GetDropCampaignDetails(ctx context.Context, campaignIDs []string, login string) ([]json.RawMessage, error) {
	var results []json.RawMessage

	for _, chunk := range utils.Chunk(campaignIDs, constants.CampaignDetailsChunk) {
		ops := make([]constants.GQLOperation, len(chunk))
		for i, id := range chunk {
			ops[i] = constants.GQLOperations["CampaignDetails"].WithVariables(map[string]any{
				"dropID":       id,
				"channelLogin": login,
			})
		}

		batchResults, err := c.GQL(ctx, ops...)
		if err != nil {
			return results, fmt.Errorf("DropCampaignDetails batch: %w", err)
		}

		for _, data := range batchResults {
			if data == nil {
				continue
			}
			var resp struct {
				User *struct {
					DropCampaign json.RawMessage `json:"dropCampaign"`
				} `json:"user"`
			}
			if err := json.Unmarshal(data, &resp); err == nil && resp.User != nil && resp.User.DropCampaign != nil {
				results = append(results, resp.User.DropCampaign)
			}
		}

		select {
		case <-ctx.Done():
			return results, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}

	return results, nil
}

// GetCurrentDrop fetches the viewer's drop session on the given channel.
// Returns nil when no drop is being mined there.
func (c *Client) GetCurrentDrop(ctx context.Context, channelID int64) (*CurrentDropSession, error) {
	op := constants.GQLOperations["CurrentDrop"].WithVariables(map[string]any{
		"channelID":    strconv.FormatInt(channelID, 10),
		"channelLogin": "",
	})
	data, err := c.Post(ctx, op)
	if err != nil {
		return nil, fmt.Errorf("DropCurrentSessionContext: %w", err)
	}

	var resp struct {
		CurrentUser *struct {
			DropCurrentSession *struct {
				DropID          string `json:"dropID"`
				CurrentMinutes  int    `json:"currentMinutesWatched"`
				RequiredMinutes int    `json:"requiredMinutesWatched"`
			} `json:"dropCurrentSession"`
		} `json:"currentUser"`
	}

	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parsing DropCurrentSessionContext response: %w", err)
	}

	if resp.CurrentUser == nil || resp.CurrentUser.DropCurrentSession == nil {
		return nil, nil
	}

	session := resp.CurrentUser.DropCurrentSession
	return &CurrentDropSession{
		DropID:          session.DropID,
		CurrentMinutes:  session.CurrentMinutes,
		RequiredMinutes: session.RequiredMinutes,
	}, nil
}

// ClaimDropRewards claims a drop reward by its instance ID. The claim
// counts as successful when the server reports the reward granted or
// already claimed.
func (c *Client) ClaimDropRewards(ctx context.Context, dropInstanceID string) (bool, error) {
	op := constants.GQLOperations["ClaimDrop"].WithVariables(map[string]any{
		"input": map[string]any{
			"dropInstanceID": dropInstanceID,
		},
	})
	data, err := c.Post(ctx, op)
	if err != nil {
		return false, fmt.Errorf("ClaimDropRewards: %w", err)
	}

	var resp struct {
		ClaimDropRewards *struct {
			Status string `json:"status"`
		} `json:"claimDropRewards"`
	}

	if err := json.Unmarshal(data, &resp); err != nil {
		return false, fmt.Errorf("parsing ClaimDropRewards response: %w", err)
	}

	if resp.ClaimDropRewards == nil {
		return false, nil
	}

	switch resp.ClaimDropRewards.Status {
	case "ELIGIBLE_FOR_ALL", "DROP_INSTANCE_ALREADY_CLAIMED":
		return true, nil
	default:
		return false, nil
	}
}

// GetAvailableDrops fetches the campaign IDs currently available on a channel.
func (c *Client) GetAvailableDrops(ctx context.Context, channelID int64) ([]string, error) {
	op := constants.GQLOperations["AvailableDrops"].WithVariables(map[string]any{
		"channelID": strconv.FormatInt(channelID, 10),
	})
	data, err := c.Post(ctx, op)
	if err != nil {
		return nil, fmt.Errorf("AvailableDrops: %w", err)
	}

	var resp struct {
		Channel *struct {
			ViewerDropCampaigns []struct {
				ID string `json:"id"`
			} `json:"viewerDropCampaigns"`
		} `json:"channel"`
	}

	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parsing AvailableDrops response: %w", err)
	}

	if resp.Channel == nil {
		return nil, nil
	}

	ids := make([]string, 0, len(resp.Channel.ViewerDropCampaigns))
	for _, campaign := range resp.Channel.ViewerDropCampaigns {
		ids = append(ids, campaign.ID)
	}
	return ids, nil
}

// GetChannelPointsContext fetches the viewer's points balance and any
// available bonus claim on a channel.
func (c *Client) GetChannelPointsContext(ctx context.Context, channelLogin string) (*ChannelPointsContext, error) {
	op := constants.GQLOperations["ChannelPointsContext"].WithVariables(map[string]any{
		"channelLogin": channelLogin,
	})
	data, err := c.Post(ctx, op)
	if err != nil {
		return nil, fmt.Errorf("ChannelPointsContext for %s: %w", channelLogin, err)
	}

	var resp struct {
		Community *struct {
			Channel struct {
				Self struct {
					CommunityPoints struct {
						Balance        int `json:"balance"`
						AvailableClaim *struct {
							ID string `json:"id"`
						} `json:"availableClaim"`
					} `json:"communityPoints"`
				} `json:"self"`
			} `json:"channel"`
		} `json:"community"`
	}

	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parsing ChannelPointsContext response: %w", err)
	}

	if resp.Community == nil {
		return nil, fmt.Errorf("channel %s not found (community is null)", channelLogin)
	}

	result := &ChannelPointsContext{
		Balance: resp.Community.Channel.Self.CommunityPoints.Balance,
	}
	if claim := resp.Community.Channel.Self.CommunityPoints.AvailableClaim; claim != nil {
		result.AvailableClaimID = claim.ID
	}
	return result, nil
}

// ClaimCommunityPoints claims a channel points bonus.
func (c *Client) ClaimCommunityPoints(ctx context.Context, claimID string, channelID int64) error {
	op := constants.GQLOperations["ClaimCommunityPoints"].WithVariables(map[string]any{
		"input": map[string]any{
			"channelID": strconv.FormatInt(channelID, 10),
			"claimID":   claimID,
		},
	})
	if _, err := c.Post(ctx, op); err != nil {
		return fmt.Errorf("ClaimCommunityPoints: %w", err)
	}
	return nil
}

// GetStreamInfo fetches current stream facts for a channel. Returns nil
// when the channel is offline.
func (c *Client) GetStreamInfo(ctx context.Context, channelLogin string) (*StreamInfo, error) {
	op := constants.GQLOperations["StreamInfo"].WithVariables(map[string]any{
		"channel": channelLogin,
	})
	data, err := c.Post(ctx, op)
	if err != nil {
		return nil, fmt.Errorf("StreamInfo for %s: %w", channelLogin, err)
	}

	var resp struct {
		User *struct {
			Stream *struct {
				ID           string `json:"id"`
				ViewersCount int    `json:"viewersCount"`
				Tags         []struct {
					ID            string `json:"id"`
					LocalizedName string `json:"localizedName"`
				} `json:"tags"`
			} `json:"stream"`
			BroadcastSettings struct {
				Title string `json:"title"`
				Game  *struct {
					ID          string `json:"id"`
					Name        string `json:"name"`
					DisplayName string `json:"displayName"`
					Slug        string `json:"slug"`
				} `json:"game"`
			} `json:"broadcastSettings"`
		} `json:"user"`
	}

	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parsing StreamInfo response: %w", err)
	}

	if resp.User == nil || resp.User.Stream == nil {
		return nil, nil
	}

	result := &StreamInfo{
		BroadcastID: resp.User.Stream.ID,
		Title:       resp.User.BroadcastSettings.Title,
		Viewers:     resp.User.Stream.ViewersCount,
	}

	if g := resp.User.BroadcastSettings.Game; g != nil {
		name := g.DisplayName
		if name == "" {
			name = g.Name
		}
		result.Game = &model.Game{ID: g.ID, Name: name, Slug: g.Slug}
		if g.Slug != "" {
			model.RegisterGameSlug(g.ID, g.Slug)
		}
	}

	for _, tag := range resp.User.Stream.Tags {
		if tag.LocalizedName == "Drops Enabled" || tag.ID == constants.DropsTagID {
			result.DropsTagged = true
		}
	}

	return result, nil
}

// GetBroadcastID fetches the live broadcast ID for a channel. Returns
// empty string when the channel is offline.
func (c *Client) GetBroadcastID(ctx context.Context, channelID int64) (string, error) {
	op := constants.GQLOperations["IsStreamLive"].WithVariables(map[string]any{
		"id": strconv.FormatInt(channelID, 10),
	})
	data, err := c.Post(ctx, op)
	if err != nil {
		return "", fmt.Errorf("IsStreamLive: %w", err)
	}

	var resp struct {
		User *struct {
			Stream *struct {
				ID string `json:"id"`
			} `json:"stream"`
		} `json:"user"`
	}

	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("parsing IsStreamLive response: %w", err)
	}

	if resp.User == nil || resp.User.Stream == nil {
		return "", nil
	}

	return resp.User.Stream.ID, nil
}

// GetPlaybackAccessToken fetches the playback access token for a live
// stream, needed to request the HLS manifest.
func (c *Client) GetPlaybackAccessToken(ctx context.Context, login string) (*PlaybackAccessToken, error) {
	op := constants.GQLOperations["PlaybackAccessToken"].WithVariables(map[string]any{
		"login":      login,
		"isLive":     true,
		"isVod":      false,
		"vodID":      "",
		"playerType": "site",
	})
	data, err := c.Post(ctx, op)
	if err != nil {
		return nil, fmt.Errorf("PlaybackAccessToken for %s: %w", login, err)
	}

	var resp struct {
		StreamPlaybackAccessToken *PlaybackAccessToken `json:"streamPlaybackAccessToken"`
	}

	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parsing PlaybackAccessToken response: %w", err)
	}

	if resp.StreamPlaybackAccessToken == nil {
		return nil, fmt.Errorf("no playback access token for %s (stream may be offline)", login)
	}

	return resp.StreamPlaybackAccessToken, nil
}

// GetGameDirectory fetches live streams for a game, drops-enabled only,
// including sub-only broadcasts the viewer can access.
func (c *Client) GetGameDirectory(ctx context.Context, slug string, limit int) ([]DirectoryStream, error) {
	op := constants.GQLOperations["GameDirectory"].WithVariables(map[string]any{
		"slug":  slug,
		"limit": limit,
		"options": map[string]any{
			"systemFilters":     []string{"DROPS_ENABLED"},
			"includeRestricted": []string{"SUB_ONLY_LIVE"},
		},
	})
	data, err := c.Post(ctx, op)
	if err != nil {
		return nil, fmt.Errorf("GameDirectory for %s: %w", slug, err)
	}

	var resp struct {
		Game *struct {
			Streams struct {
				Edges []struct {
					Node struct {
						Broadcaster *struct {
							ID          string `json:"id"`
							Login       string `json:"login"`
							DisplayName string `json:"displayName"`
						} `json:"broadcaster"`
						ViewersCount int `json:"viewersCount"`
						Game         *struct {
							ID          string `json:"id"`
							Name        string `json:"name"`
							DisplayName string `json:"displayName"`
							Slug        string `json:"slug"`
						} `json:"game"`
					} `json:"node"`
				} `json:"edges"`
			} `json:"streams"`
		} `json:"game"`
	}

	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parsing GameDirectory response: %w", err)
	}

	if resp.Game == nil {
		return nil, nil
	}

	streams := make([]DirectoryStream, 0, len(resp.Game.Streams.Edges))
	for _, edge := range resp.Game.Streams.Edges {
		node := edge.Node
		if node.Broadcaster == nil {
			continue
		}
		id, err := strconv.ParseInt(node.Broadcaster.ID, 10, 64)
		if err != nil {
			continue
		}
		stream := DirectoryStream{
			ID:          id,
			Login:       node.Broadcaster.Login,
			DisplayName: node.Broadcaster.DisplayName,
			Viewers:     node.ViewersCount,
		}
		if g := node.Game; g != nil {
			name := g.DisplayName
			if name == "" {
				name = g.Name
			}
			stream.Game = model.Game{ID: g.ID, Name: name, Slug: g.Slug}
			if g.Slug != "" {
				model.RegisterGameSlug(g.ID, g.Slug)
			}
		}
		streams = append(streams, stream)
	}

	return streams, nil
}

// GetGameSlug resolves a game's directory slug by its ID, consulting the
// local registry before asking the API. Returns empty string when the game
// is unknown.
func (c *Client) GetGameSlug(ctx context.Context, gameID string) (string, error) {
	if slug := model.LookupGameSlug(gameID); slug != "" {
		return slug, nil
	}

	op := constants.GQLOperations["GameSlug"].WithVariables(map[string]any{
		"id": gameID,
	})
	data, err := c.Post(ctx, op)
	if err != nil {
		return "", fmt.Errorf("GameByID for %s: %w", gameID, err)
	}

	var resp struct {
		Game *struct {
			Slug string `json:"slug"`
		} `json:"game"`
	}

	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("parsing GameByID response: %w", err)
	}

	if resp.Game == nil {
		return "", nil
	}

	if resp.Game.Slug != "" {
		model.RegisterGameSlug(gameID, resp.Game.Slug)
	}
	return resp.Game.Slug, nil
}

// DeleteNotification removes an on-site notification by its ID.
func (c *Client) DeleteNotification(ctx context.Context, notificationID string) error {
	op := constants.GQLOperations["NotificationsDelete"].WithVariables(map[string]any{
		"input": map[string]any{
			"id": notificationID,
		},
	})
	if _, err := c.Post(ctx, op); err != nil {
		return fmt.Errorf("DeleteNotification: %w", err)
	}
	return nil
}

// LoadOperationOverrides overlays persisted query hashes from a JSON file
// mapping operation keys to SHA256 hashes. Unknown keys are ignored, so an
// override file survives operation renames.
func LoadOperationOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading operation overrides %s: %w", path, err)
	}

	var overrides map[string]string
	if err := json.Unmarshal(data, &overrides); err != nil {
		return fmt.Errorf("parsing operation overrides %s: %w", path, err)
	}

	for key, hash := range overrides {
		op, ok := constants.GQLOperations[key]
		if !ok || hash == "" {
			continue
		}
		op.SHA256Hash = hash
		op.Query = ""
		constants.GQLOperations[key] = op
	}
	return nil
}
