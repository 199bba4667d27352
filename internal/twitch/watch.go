package twitch

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/kethal/twitch-drops-go/internal/constants"
	"github.com/kethal/twitch-drops-go/internal/model"
)

var (
	settingsURLRegex = regexp.MustCompile(`(https://static\.twitchcdn\.net/config/settings.*?js|https://assets\.twitch\.tv/config/settings.*?\.js)`)
	spadeURLRegex    = regexp.MustCompile(`"spade_url":"(.*?)"`)
)

// spadeCacheTTL is how long a cached spade URL remains valid. The URL
// rarely changes during a stream session.
const spadeCacheTTL = 6 * time.Hour

type spadeCache struct {
	mu      sync.Mutex
	entries map[string]spadeCacheEntry
}

type spadeCacheEntry struct {
	url       string
	fetchedAt time.Time
}

func newSpadeCache() *spadeCache {
	return &spadeCache{entries: make(map[string]spadeCacheEntry)}
}

func (sc *spadeCache) get(login string) (string, bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	entry, ok := sc.entries[login]
	if !ok {
		return "", false
	}
	if time.Since(entry.fetchedAt) > spadeCacheTTL {
		delete(sc.entries, login)
		return "", false
	}
	return entry.url, true
}

func (sc *spadeCache) set(login, spadeURL string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.entries[login] = spadeCacheEntry{url: spadeURL, fetchedAt: time.Now()}
	for key, entry := range sc.entries {
		if time.Since(entry.fetchedAt) > spadeCacheTTL {
			delete(sc.entries, key)
		}
	}
}

// SendWatch emits one watch heartbeat for the channel: fetch the media
// playlist from the cached playback URL and GET one random segment, then
// fire the spade tracking event. Returns whether Twitch should have
// counted the minute.
func (c *Client) SendWatch(ctx context.Context, ch *model.Channel) bool {
	playlistURL := ch.PlaybackURL()
	if playlistURL == "" {
		var err error
		playlistURL, err = c.fetchPlaybackURL(ctx, ch)
		if err != nil {
			c.Log.Debug("Failed to resolve playback URL",
				"channel", ch.Login, "error", err)
			return false
		}
		ch.SetPlaybackURL(playlistURL)
	}

	segmentURL, err := c.pickSegment(ctx, playlistURL)
	if err != nil {
		// A dead playlist usually means the stream restarted; drop the
		// cache so the next heartbeat renegotiates.
		ch.SetPlaybackURL("")
		c.Log.Debug("Failed to pick playback segment",
			"channel", ch.Login, "error", err)
		return false
	}

	if err := c.fetchSegment(ctx, segmentURL); err != nil {
		c.Log.Debug("Failed to fetch playback segment",
			"channel", ch.Login, "error", err)
		return false
	}

	if err := c.sendSpadeEvent(ctx, ch); err != nil {
		c.Log.Debug("Failed to send spade event",
			"channel", ch.Login, "error", err)
	}

	return true
}

// fetchPlaybackURL negotiates stream playback: playback access token via
// GQL, then the usher master manifest, returning the lowest-quality
// variant playlist URL.
func (c *Client) fetchPlaybackURL(ctx context.Context, ch *model.Channel) (string, error) {
	token, err := c.GQL.GetPlaybackAccessToken(ctx, ch.Login)
	if err != nil {
		return "", err
	}

	manifestURL := fmt.Sprintf(
		"%s/api/channel/hls/%s.m3u8?sig=%s&token=%s",
		constants.UsherURL, ch.Login, url.QueryEscape(token.Signature), url.QueryEscape(token.Value),
	)

	body, err := c.httpGet(ctx, manifestURL)
	if err != nil {
		return "", fmt.Errorf("fetching master manifest: %w", err)
	}

	variant := lastPlaylistURL(body)
	if variant == "" {
		return "", fmt.Errorf("no variant playlist in master manifest")
	}
	return variant, nil
}

// pickSegment fetches the media playlist and returns one random segment URL.
func (c *Client) pickSegment(ctx context.Context, playlistURL string) (string, error) {
	body, err := c.httpGet(ctx, playlistURL)
	if err != nil {
		return "", err
	}

	segments := playlistURLs(body)
	if len(segments) == 0 {
		return "", fmt.Errorf("no segments in media playlist")
	}
	return segments[rand.Intn(len(segments))], nil
}

func (c *Client) fetchSegment(ctx context.Context, segmentURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, segmentURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", constants.DefaultUserAgent)

	resp, err := c.GQL.HTTPClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("segment returned status %d", resp.StatusCode)
	}
	return nil
}

// sendSpadeEvent posts the minute-watched tracking event to the channel's
// spade endpoint.
func (c *Client) sendSpadeEvent(ctx context.Context, ch *model.Channel) error {
	spadeURL := ch.SpadeURL()
	if spadeURL == "" {
		var err error
		spadeURL, err = c.fetchSpadeURL(ctx, ch)
		if err != nil {
			return err
		}
		ch.SetSpadeURL(spadeURL)
	}

	broadcastID, err := c.GQL.GetBroadcastID(ctx, ch.ID)
	if err != nil || broadcastID == "" {
		return fmt.Errorf("no live broadcast for %s", ch.Login)
	}

	game := ch.Game()
	payload := map[string]any{
		"event": "minute-watched",
		"properties": map[string]any{
			"channel_id":   ch.ID,
			"broadcast_id": broadcastID,
			"channel":      ch.Login,
			"player":       "site",
			"user_id":      c.userIDInt(),
			"live":         true,
			"game":         game.Name,
			"game_id":      game.ID,
		},
	}

	encoded, err := encodeSpadePayload(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, spadeURL,
		strings.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", constants.DefaultUserAgent)

	resp, err := c.GQL.HTTPClient().Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("spade event returned status %d", resp.StatusCode)
	}
	return nil
}

// fetchSpadeURL scrapes the spade endpoint from the channel page's
// settings script. Cached per login.
func (c *Client) fetchSpadeURL(ctx context.Context, ch *model.Channel) (string, error) {
	if cached, ok := c.spadeURLs.get(ch.Login); ok {
		return cached, nil
	}

	pageBody, err := c.httpGet(ctx, ch.URL())
	if err != nil {
		return "", fmt.Errorf("fetching channel page: %w", err)
	}

	settingsURL := settingsURLRegex.FindString(pageBody)
	if settingsURL == "" {
		return "", fmt.Errorf("settings URL not found on channel page")
	}

	settingsBody, err := c.httpGet(ctx, settingsURL)
	if err != nil {
		return "", fmt.Errorf("fetching settings script: %w", err)
	}

	match := spadeURLRegex.FindStringSubmatch(settingsBody)
	if len(match) < 2 {
		return "", fmt.Errorf("spade_url not found in settings script")
	}

	c.spadeURLs.set(ch.Login, match[1])
	return match[1], nil
}

func (c *Client) httpGet(ctx context.Context, requestURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", constants.DefaultUserAgent)

	resp, err := c.GQL.HTTPClient().Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s returned status %d", requestURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512<<10))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func encodeSpadePayload(payload map[string]any) (string, error) {
	wrapped := []map[string]any{payload}
	jsonData, err := json.Marshal(wrapped)
	if err != nil {
		return "", fmt.Errorf("marshaling spade payload: %w", err)
	}
	return "data=" + url.QueryEscape(base64.StdEncoding.EncodeToString(jsonData)), nil
}

// playlistURLs returns every URL line of an m3u8 playlist, in order.
func playlistURLs(playlist string) []string {
	var urls []string
	for _, line := range strings.Split(playlist, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://") {
			urls = append(urls, line)
		}
	}
	return urls
}

// lastPlaylistURL returns the last URL line of an m3u8 playlist; in a
// master manifest that is the lowest-quality variant.
func lastPlaylistURL(playlist string) string {
	urls := playlistURLs(playlist)
	if len(urls) == 0 {
		return ""
	}
	return urls[len(urls)-1]
}
