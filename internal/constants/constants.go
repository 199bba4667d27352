// Package constants defines Twitch API endpoints, client identifiers,
// GQL operation hashes, PubSub topic formats, pool limits and the
// timing values used throughout the miner.
package constants

import "time"

const (
	// TwitchURL is the base Twitch web URL.
	TwitchURL = "https://www.twitch.tv"
	// IRCURL is the Twitch IRC chat server hostname.
	IRCURL = "irc.chat.twitch.tv"
	// PubSubURL is the Twitch PubSub WebSocket endpoint.
	PubSubURL = "wss://pubsub-edge.twitch.tv/v1"
	// GQLURL is the Twitch GraphQL API endpoint.
	GQLURL = "https://gql.twitch.tv/gql"
	// UsherURL is the stream playlist (m3u8) endpoint.
	UsherURL = "https://usher.ttvnw.net"
	// DeviceCodeURL is the Twitch OAuth2 device code endpoint.
	DeviceCodeURL = "https://id.twitch.tv/oauth2/device"
	// TokenURL is the Twitch OAuth2 token endpoint.
	TokenURL = "https://id.twitch.tv/oauth2/token"
	// ValidateURL is the Twitch OAuth2 token validation endpoint.
	ValidateURL = "https://id.twitch.tv/oauth2/validate"
)

// DropsTagID is the stream tag marking drops-enabled broadcasts.
const DropsTagID = "c2542d6d-cd10-4532-919b-3d19f30a768b"

// DeviceCodeScopes are the OAuth scopes requested during device code authorization.
const DeviceCodeScopes = "channel_read chat:read user_blocks_edit user_blocks_read user_follows_edit user_read"

const (
	// ClientID is the Twitch client ID used for API requests (Android TV client).
	ClientID = "ue6666qo983tsx6so1t0vnawi233wa"
	// ClientIDBrowser is the Twitch client ID for browser clients.
	ClientIDBrowser = "kimne78kx3ncx6brgo4mv6wki5h1ko"
)

// DefaultUserAgent is the user-agent string used for API requests.
const DefaultUserAgent = "Mozilla/5.0 (Linux; Android 7.1; Smart Box C1) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// ClientVersion is the fallback Twitch client build ID, used until a fresh
// one is scraped from the home page.
const ClientVersion = "ef928475-9403-42f2-8a34-55784bd08e16"

const (
	// MaxPubSubConns is the maximum number of PubSub WebSocket connections.
	MaxPubSubConns = 8
	// MaxTopicsPerConn is the maximum number of topics per PubSub WebSocket connection.
	MaxTopicsPerConn = 50
	// MaxChannels is the maximum size of the channel registry after a fetch.
	MaxChannels = 100
	// GameDirectoryLimit is how many live streams to request per wanted game.
	GameDirectoryLimit = 30
	// CampaignDetailsChunk is how many campaign detail ops go into one GQL batch.
	CampaignDetailsChunk = 20
)

const (
	// WatchInterval is the cadence of watch heartbeats for the watched channel.
	WatchInterval = 59 * time.Second
	// DropUpdateTimeout is how long the watch loop waits for a PubSub
	// drop-progress event before falling back to GQL.
	DropUpdateTimeout = 10 * time.Second
	// OnlineDelay debounces stream-up events before a channel counts as online.
	OnlineDelay = 120 * time.Second
	// PubSubPingInterval is the interval between PubSub PING messages.
	PubSubPingInterval = 3 * time.Minute
	// PubSubPongTimeout is the deadline for a PONG after a PING.
	PubSubPongTimeout = 10 * time.Second
	// PubSubSyncInterval is the cadence at which a connection converges
	// its subscriptions on the desired topic set.
	PubSubSyncInterval = 500 * time.Millisecond
	// BackoffInitial is the first retry delay for HTTP requests and
	// PubSub reconnects.
	BackoffInitial = 500 * time.Millisecond
	// BackoffMax caps retry delays.
	BackoffMax = 3 * time.Minute
	// PointsInterval is the cadence of unclaimed-bonus checks during maintenance.
	PointsInterval = 30 * time.Minute
	// ReloadInterval is the cadence of forced full inventory reloads.
	ReloadInterval = 60 * time.Minute
	// DefaultHTTPTimeout is the per-attempt timeout for HTTP requests.
	DefaultHTTPTimeout = 15 * time.Second
	// FetchWorkers is the number of concurrent workers for batched fetches.
	FetchWorkers = 5
	// GracefulShutdownTimeout bounds HTTP server shutdown.
	GracefulShutdownTimeout = 5 * time.Second
)

const (
	// TopicUserDrops is the PubSub topic for drop progress and claim events.
	TopicUserDrops = "user-drop-events"
	// TopicUserPoints is the PubSub topic for community points events.
	TopicUserPoints = "community-points-user-v1"
	// TopicUserNotifications is the PubSub topic for on-site notifications.
	TopicUserNotifications = "onsite-notifications"
	// TopicStreamState is the PubSub topic for stream up/down/viewcount events.
	TopicStreamState = "video-playback-by-id"
	// TopicStreamUpdate is the PubSub topic for broadcast settings changes.
	TopicStreamUpdate = "broadcast-settings-update"
)

// GQLOperation is a persisted GQL query identified by its operation name and
// SHA256 hash, or carried as raw query text when no persisted hash exists.
type GQLOperation struct {
	OperationName string
	SHA256Hash    string
	Query         string
	Variables     map[string]any
}

// WithVariables returns a copy of the operation with the given variables set.
// The receiver is not modified, so the operation table stays pristine.
func (op GQLOperation) WithVariables(variables map[string]any) GQLOperation {
	op.Variables = variables
	return op
}

// GQLOperations maps friendly operation keys to persisted queries. The map is
// mutable on purpose: hashes rot when Twitch rolls their client, so they can
// be overlaid from a JSON file at startup without a rebuild.
var GQLOperations = map[string]GQLOperation{
	"Inventory": {
		OperationName: "Inventory",
		SHA256Hash:    "d86775d0ef16a63a33ad52e80eaff963b2d5b72fada7c991504a57496e1d8e4b",
	},
	"Campaigns": {
		OperationName: "ViewerDropsDashboard",
		SHA256Hash:    "5a4da2ab3d5b47c9f9ce864e727b2cb346af1e3ea8b897fe8f704a97ff017619",
	},
	"CampaignDetails": {
		OperationName: "DropCampaignDetails",
		SHA256Hash:    "f6396f5ffdde867a8f6f6da18286e4baf02e5b98d14689a69b5af320a4c7b7b8",
	},
	"CurrentDrop": {
		OperationName: "DropCurrentSessionContext",
		SHA256Hash:    "2e4b3630b91552eb05b76a94b6850eb25fe42263b7cf6d06bee6d156dd247c1c",
	},
	"ClaimDrop": {
		OperationName: "DropsPage_ClaimDropRewards",
		SHA256Hash:    "a455deea71bdc9015b78eb49f4acfbce8baa7ccbedd28e549bb025bd0f751930",
	},
	"AvailableDrops": {
		OperationName: "DropsHighlightService_AvailableDrops",
		SHA256Hash:    "9a62a09bce5b53e26e64a671e530bc599cb6aab1e5ba3cbd5d85966d3940716f",
	},
	"ChannelPointsContext": {
		OperationName: "ChannelPointsContext",
		SHA256Hash:    "1530a003a7d374b0380b79db0be0534f30ff46e61cffa2bc0e2468a909fbc024",
	},
	"ClaimCommunityPoints": {
		OperationName: "ClaimCommunityPoints",
		SHA256Hash:    "46aaeebe02c99afdf4fc97c7c0cba964124bf6b0af229395f1f6d1feed05b3d0",
	},
	"StreamInfo": {
		OperationName: "VideoPlayerStreamInfoOverlayChannel",
		SHA256Hash:    "a5f2e34d626a9f4f5c0204f910bab2194948a9502089be558bb6e779a9e1b3d2",
	},
	"IsStreamLive": {
		OperationName: "WithIsStreamLiveQuery",
		SHA256Hash:    "04e46329a6786ff3a81c01c50bfa5d725902507a0deb83b0edbf7abe7a3716ea",
	},
	"PlaybackAccessToken": {
		OperationName: "PlaybackAccessToken_Template",
		Query:         `query PlaybackAccessToken_Template($login: String!, $isLive: Boolean!, $vodID: ID!, $isVod: Boolean!, $playerType: String!) { streamPlaybackAccessToken(channelName: $login, params: {platform: "web", playerBackend: "mediaplayer", playerType: $playerType}) @include(if: $isLive) { value signature __typename } videoPlaybackAccessToken(id: $vodID, params: {platform: "web", playerBackend: "mediaplayer", playerType: $playerType}) @include(if: $isVod) { value signature __typename } }`,
	},
	"GameDirectory": {
		OperationName: "DirectoryPage_Game",
		Query:         `query DirectoryPage_Game($slug: String!, $limit: Int!, $options: GameStreamOptions) { game(slug: $slug) { id name displayName slug streams(first: $limit, options: $options) { edges { node { id broadcaster { id login displayName } viewersCount title game { id name displayName slug } } } } } }`,
	},
	"GameSlug": {
		OperationName: "GameByID",
		Query:         `query GameByID($id: ID!) { game(id: $id) { id slug displayName } }`,
	},
	"NotificationsDelete": {
		OperationName: "OnsiteNotifications_DeleteNotification",
		Query:         `mutation OnsiteNotifications_DeleteNotification($input: DeleteNotificationInput!) { deleteNotification(input: $input) { notification { id } } }`,
	},
}
