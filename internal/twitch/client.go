// Package twitch provides the high-level Twitch facade for the miner:
// inventory snapshots, stream facts, the watch heartbeat, and claim
// operations, built on the auth and GQL layers.
package twitch

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kethal/twitch-drops-go/internal/auth"
	"github.com/kethal/twitch-drops-go/internal/gql"
	"github.com/kethal/twitch-drops-go/internal/logger"
	"github.com/kethal/twitch-drops-go/internal/model"
)

// Client combines the authenticator and the GQL client into the miner's
// view of Twitch.
type Client struct {
	Auth auth.Provider
	GQL  gql.Operations
	Log  *logger.Logger

	spadeURLs *spadeCache
}

// NewClient creates the high-level Twitch client.
func NewClient(authProvider auth.Provider, gqlClient gql.Operations, log *logger.Logger) *Client {
	return &Client{
		Auth:      authProvider,
		GQL:       gqlClient,
		Log:       log,
		spadeURLs: newSpadeCache(),
	}
}

// UpdateStream refreshes a channel's stream facts from the API and flips
// its online state accordingly. Returns whether the channel is online.
func (c *Client) UpdateStream(ctx context.Context, ch *model.Channel) (bool, error) {
	info, err := c.GQL.GetStreamInfo(ctx, ch.Login)
	if err != nil {
		return ch.Online(), fmt.Errorf("updating stream for %s: %w", ch.Login, err)
	}

	if info == nil {
		ch.SetOffline()
		return false, nil
	}

	game := info.Game
	if game != nil && game.Slug == "" && game.ID != "" {
		game.Slug = c.resolveGameSlug(ctx, game.ID)
	}

	ch.SetStream(game, info.Viewers, info.DropsTagged)
	return true, nil
}

// FetchLiveChannels returns up to limit live, drops-enabled channels
// streaming the given game, ordered as the directory returns them.
func (c *Client) FetchLiveChannels(ctx context.Context, game model.Game, limit int) ([]*model.Channel, error) {
	slug := game.Slug
	if slug == "" {
		slug = c.resolveGameSlug(ctx, game.ID)
		if slug == "" {
			return nil, fmt.Errorf("resolving slug for %s: no slug known", game.Name)
		}
	}

	streams, err := c.GQL.GetGameDirectory(ctx, slug, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching directory for %s: %w", game.Name, err)
	}

	channels := make([]*model.Channel, 0, len(streams))
	for _, stream := range streams {
		ch := model.NewChannel(stream.ID, stream.Login, stream.DisplayName)
		streamGame := stream.Game
		if streamGame.ID == "" {
			streamGame = game
		}
		ch.SetStream(&streamGame, stream.Viewers, true)
		channels = append(channels, ch)
	}
	return channels, nil
}

// LoadPoints refreshes the viewer's community points balance on a channel
// and returns an available bonus claim ID, if any.
func (c *Client) LoadPoints(ctx context.Context, ch *model.Channel) (string, error) {
	cpc, err := c.GQL.GetChannelPointsContext(ctx, ch.Login)
	if err != nil {
		return "", fmt.Errorf("loading points for %s: %w", ch.Login, err)
	}
	ch.SetPoints(cpc.Balance)
	return cpc.AvailableClaimID, nil
}

// ClaimBonus claims a pending community points bonus on the channel, if
// one is available.
func (c *Client) ClaimBonus(ctx context.Context, ch *model.Channel) error {
	claimID, err := c.LoadPoints(ctx, ch)
	if err != nil {
		return err
	}
	if claimID == "" {
		return nil
	}

	if err := c.GQL.ClaimCommunityPoints(ctx, claimID, ch.ID); err != nil {
		return fmt.Errorf("claiming bonus on %s: %w", ch.Login, err)
	}
	c.Log.Event(ctx, model.EventBonusClaim, "Claimed channel points bonus",
		"channel", ch.Login)
	return nil
}

// CurrentDrop fetches the viewer's drop session on the channel via GQL.
// Returns nil when Twitch reports no drop being mined there.
func (c *Client) CurrentDrop(ctx context.Context, ch *model.Channel) (*gql.CurrentDropSession, error) {
	return c.GQL.GetCurrentDrop(ctx, ch.ID)
}

// DismissNotification deletes an on-site notification.
func (c *Client) DismissNotification(ctx context.Context, notificationID string) error {
	return c.GQL.DeleteNotification(ctx, notificationID)
}

// resolveGameSlug returns the directory slug for a game ID, consulting the
// slug registry populated from campaign payloads before asking the API.
// Returns "" when neither source knows the game.
func (c *Client) resolveGameSlug(ctx context.Context, gameID string) string {
	if slug := model.LookupGameSlug(gameID); slug != "" {
		return slug
	}
	slug, err := c.GQL.GetGameSlug(ctx, gameID)
	if err != nil {
		c.Log.Debug("Failed to resolve game slug", "game_id", gameID, "error", err)
		return ""
	}
	model.RegisterGameSlug(gameID, slug)
	return slug
}

// userIDInt returns the authenticated user's ID as an integer for spade
// payloads, or 0 when unavailable.
func (c *Client) userIDInt() int64 {
	id, _ := strconv.ParseInt(c.Auth.UserID(), 10, 64)
	return id
}
