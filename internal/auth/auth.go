package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/kethal/twitch-drops-go/internal/constants"
	"github.com/kethal/twitch-drops-go/internal/logger"
	"github.com/kethal/twitch-drops-go/internal/model"
	"github.com/kethal/twitch-drops-go/internal/utils"
)

// CodePrompt shows the device-code verification URI and user code to the
// user. The console UI implements it; a headless deployment can log it.
type CodePrompt interface {
	ShowDeviceCode(verificationURI, userCode string)
}

// Authenticator holds the session credentials: device id, session id,
// access token and user id. Validation is idempotent and serialized
// through a lock; concurrent callers observe the same populated state.
type Authenticator struct {
	mu sync.Mutex

	sessionID   string
	deviceID    string
	accessToken string
	userID      string
	login       string

	cookieJar  *CookieJar
	cookieFile string

	prompt     CodePrompt
	log        *logger.Logger
	httpClient *http.Client
}

// NewAuthenticator creates an Authenticator persisting cookies at
// cookieFile. proxyURL routes the login and validation requests through a
// user-configured proxy; empty defers to the environment.
func NewAuthenticator(cookieFile string, proxyURL string, prompt CodePrompt, log *logger.Logger) *Authenticator {
	proxy, err := utils.ProxyFunc(proxyURL)
	if err != nil {
		log.Warn("Invalid proxy URL, using environment proxy settings",
			"proxy", proxyURL, "error", err)
		proxy = http.ProxyFromEnvironment
	}
	return &Authenticator{
		cookieFile: cookieFile,
		cookieJar:  NewCookieJar(),
		prompt:     prompt,
		log:        log,
		httpClient: &http.Client{
			Transport: &http.Transport{Proxy: proxy},
			Timeout:   constants.DefaultHTTPTimeout,
		},
	}
}

// Validate ensures the full credential set is populated, running the login
// flow when needed. Safe to call repeatedly; later calls return fast.
func (a *Authenticator) Validate(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.sessionID == "" {
		a.sessionID = utils.SessionID(16)
	}

	if a.cookieJar.Len() == 0 && CookieFileExists(a.cookieFile) {
		if err := a.cookieJar.Load(a.cookieFile); err != nil {
			a.log.Warn("Failed to load cookies", "error", err)
		}
	}

	if a.deviceID == "" {
		if err := a.ensureDeviceID(ctx); err != nil {
			return err
		}
	}

	if a.accessToken != "" && a.userID != "" {
		return nil
	}

	if err := a.ensureAccessToken(ctx); err != nil {
		return err
	}

	if err := a.validateToken(ctx); err != nil {
		// One retry with the cached token discarded: it may simply have
		// expired while sitting in the jar.
		a.log.Warn("Token validation failed, retrying with fresh credentials", "error", err)
		a.accessToken = ""
		a.cookieJar.Delete("auth-token")
		if err := a.ensureAccessToken(ctx); err != nil {
			return err
		}
		if err := a.validateToken(ctx); err != nil {
			return &model.LoginError{Msg: err.Error()}
		}
	}

	a.persistCookies()
	a.log.Event(ctx, model.EventLogin, "Logged in", "user_id", a.userID)
	return nil
}

// ensureDeviceID fetches the Twitch home page and adopts the unique_id
// cookie as the device id, generating a random one when absent.
func (a *Authenticator) ensureDeviceID(ctx context.Context) error {
	if cached := a.cookieJar.Get("unique_id"); cached != "" {
		a.deviceID = cached
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, constants.TwitchURL, nil)
	if err != nil {
		return fmt.Errorf("creating home page request: %w", err)
	}
	req.Header.Set("User-Agent", constants.DefaultUserAgent)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetching home page: %w", err)
	}
	defer resp.Body.Close()

	for _, c := range resp.Cookies() {
		if c.Name == "unique_id" && c.Value != "" {
			a.deviceID = c.Value
			a.cookieJar.Set("unique_id", a.deviceID)
			return nil
		}
	}

	a.deviceID = utils.Nonce(32)
	a.cookieJar.Set("unique_id", a.deviceID)
	return nil
}

// ensureAccessToken populates accessToken by cookie adoption, then token
// refresh, then the device-code OAuth flow.
func (a *Authenticator) ensureAccessToken(ctx context.Context) error {
	if a.accessToken != "" {
		return nil
	}

	if token := a.cookieJar.Get("auth-token"); token != "" {
		a.log.Debug("Adopting auth token from cookie jar")
		a.accessToken = token
		return nil
	}

	if err := a.refreshAccessToken(ctx); err == nil {
		return nil
	} else if !strings.Contains(err.Error(), "no refresh token") {
		a.log.Warn("Token refresh failed", "error", err)
	}

	if err := a.loginWithDeviceCode(ctx); err != nil {
		return &model.LoginError{Msg: err.Error()}
	}
	return nil
}

// validateToken checks the current access token against the OAuth2
// validate endpoint and extracts the user id.
func (a *Authenticator) validateToken(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, constants.ValidateURL, nil)
	if err != nil {
		return fmt.Errorf("creating validate request: %w", err)
	}
	req.Header.Set("Authorization", "OAuth "+a.accessToken)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("validating token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("token rejected with status 401")
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("token validation failed with status %d", resp.StatusCode)
	}

	var result struct {
		Login  string `json:"login"`
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decoding validate response: %w", err)
	}
	if result.UserID == "" {
		return fmt.Errorf("validate response missing user_id")
	}

	a.userID = result.UserID
	a.login = result.Login
	return nil
}

// persistCookies stores the credential cookies and saves the jar.
func (a *Authenticator) persistCookies() {
	a.cookieJar.Set("auth-token", a.accessToken)
	if a.userID != "" {
		a.cookieJar.Set("persistent", a.userID)
	}
	if err := a.cookieJar.Save(a.cookieFile); err != nil {
		a.log.Warn("Failed to save cookies", "error", err)
	}
}

// SaveCookies persists the cookie jar; called at shutdown.
func (a *Authenticator) SaveCookies() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cookieJar.Len() > 0 {
		if err := a.cookieJar.Save(a.cookieFile); err != nil {
			a.log.Warn("Failed to save cookies", "error", err)
		}
	}
}

// Invalidate drops the access token, forcing re-validation on the next call.
func (a *Authenticator) Invalidate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.accessToken = ""
	a.cookieJar.Delete("auth-token")
}

// Clear drops every credential and the cookie jar contents.
func (a *Authenticator) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessionID = ""
	a.deviceID = ""
	a.accessToken = ""
	a.userID = ""
	a.login = ""
	a.cookieJar.Clear()
}

// AccessToken returns the current OAuth token.
func (a *Authenticator) AccessToken() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.accessToken
}

// UserID returns the authenticated user's Twitch numeric ID.
func (a *Authenticator) UserID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.userID
}

// Login returns the authenticated user's login name.
func (a *Authenticator) Login() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.login
}

// DeviceID returns the device ID used for API requests.
func (a *Authenticator) DeviceID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.deviceID
}

// SessionID returns the client session ID.
func (a *Authenticator) SessionID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessionID
}

// Headers returns the header set carried by every GQL request.
func (a *Authenticator) Headers() map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return map[string]string{
		"Authorization":     "OAuth " + a.accessToken,
		"Client-Id":         constants.ClientID,
		"Client-Session-Id": a.sessionID,
		"X-Device-Id":       a.deviceID,
		"Origin":            constants.TwitchURL,
		"Referer":           constants.TwitchURL,
		"User-Agent":        constants.DefaultUserAgent,
	}
}
