// Package gql provides the HTTP/GQL request layer: signed POSTs to the
// Twitch GraphQL endpoint, persisted query hashes, batching, exponential
// backoff and token-expiry invalidation.
package gql

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/kethal/twitch-drops-go/internal/auth"
	"github.com/kethal/twitch-drops-go/internal/constants"
	"github.com/kethal/twitch-drops-go/internal/logger"
	"github.com/kethal/twitch-drops-go/internal/model"
	"github.com/kethal/twitch-drops-go/internal/utils"
)

// gqlRetryMessages are GQL error messages that warrant retrying the whole
// operation batch instead of failing.
var gqlRetryMessages = []string{
	"service unavailable",
	"service timeout",
	"context deadline exceeded",
}

// Client is the shared HTTP session: one connection pool, auth headers,
// retry policy. Safe for concurrent use.
type Client struct {
	httpClient *http.Client
	auth       auth.Provider
	log        *logger.Logger

	versionCache *versionCache

	// closed is consulted before each retry attempt; when it reports
	// true the request aborts with ErrExitRequest.
	closed func() bool

	debug bool
}

// NewClient creates a Client bound to the given authenticator. The closed
// callback carries the shared "close requested" signal; nil means never.
// proxyURL routes all requests through a user-configured proxy; empty
// defers to the environment.
func NewClient(authenticator auth.Provider, closed func() bool, proxyURL string, log *logger.Logger) *Client {
	proxy, err := utils.ProxyFunc(proxyURL)
	if err != nil {
		log.Warn("Invalid proxy URL, using environment proxy settings",
			"proxy", proxyURL, "error", err)
		proxy = http.ProxyFromEnvironment
	}
	transport := &http.Transport{
		Proxy:               proxy,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     90 * time.Second,
	}
	if closed == nil {
		closed = func() bool { return false }
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   constants.DefaultHTTPTimeout,
		},
		auth:         authenticator,
		closed:       closed,
		log:          log,
		versionCache: newVersionCache(),
	}
}

// SetDebug enables request/response payload logging at DEBUG level.
func (c *Client) SetDebug(enabled bool) {
	c.debug = enabled
}

// HTTPClient returns the underlying *http.Client so the watch heartbeat
// can reuse the same connection pool.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// newBackoff builds the shared retry policy: ~0.5s initial, doubling,
// capped at 3 minutes.
func newBackoff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = constants.BackoffInitial
	bo.Multiplier = 2
	bo.MaxInterval = constants.BackoffMax
	bo.MaxElapsedTime = 0
	bo.RandomizationFactor = 0.2
	return bo
}

// Do performs one HTTP request with the standard retry policy. Retries
// happen only on network errors and status >= 500; TLS verification
// failures are fatal immediately; 4xx is returned to the caller. A
// non-zero invalidateAfter makes the call fail with ErrRequestInvalid
// instead of retrying past that instant.
func (c *Client) Do(ctx context.Context, method, url string, body []byte, headers map[string]string, invalidateAfter time.Time) ([]byte, int, error) {
	var respBody []byte
	var status int

	attempt := func() error {
		if c.closed() {
			return backoff.Permanent(model.ErrExitRequest)
		}
		if !invalidateAfter.IsZero() && time.Now().After(invalidateAfter) {
			return backoff.Permanent(model.ErrRequestInvalid)
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("creating request: %w", err))
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if isTLSVerificationError(err) {
				return backoff.Permanent(fmt.Errorf("TLS verification failed: %w", err))
			}
			return fmt.Errorf("request to %s: %w", url, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return fmt.Errorf("reading response from %s: %w", url, err)
		}

		if resp.StatusCode >= 500 {
			return fmt.Errorf("%s returned status %d", url, resp.StatusCode)
		}

		respBody = data
		status = resp.StatusCode
		return nil
	}

	err := backoff.Retry(attempt, backoff.WithContext(newBackoff(), ctx))
	if err != nil {
		return nil, 0, err
	}
	return respBody, status, nil
}

// isTLSVerificationError detects certificate verification failures, which
// must surface immediately instead of being retried.
func isTLSVerificationError(err error) bool {
	var certVerify *tls.CertificateVerificationError
	if errors.As(err, &certVerify) {
		return true
	}
	var unknownAuthority x509.UnknownAuthorityError
	if errors.As(err, &unknownAuthority) {
		return true
	}
	var hostname x509.HostnameError
	if errors.As(err, &hostname) {
		return true
	}
	var invalid x509.CertificateInvalidError
	return errors.As(err, &invalid)
}

type gqlRequest struct {
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables,omitempty"`
	Extensions    *gqlExtensions `json:"extensions,omitempty"`
	Query         string         `json:"query,omitempty"`
}

type gqlExtensions struct {
	PersistedQuery *persistedQuery `json:"persistedQuery"`
}

type persistedQuery struct {
	Version    int    `json:"version"`
	SHA256Hash string `json:"sha256Hash"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors,omitempty"`
}

type gqlError struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

func buildRequestBody(op constants.GQLOperation) gqlRequest {
	req := gqlRequest{
		OperationName: op.OperationName,
		Variables:     op.Variables,
	}
	if op.Query != "" {
		req.Query = op.Query
	} else {
		req.Extensions = &gqlExtensions{
			PersistedQuery: &persistedQuery{
				Version:    1,
				SHA256Hash: op.SHA256Hash,
			},
		}
	}
	return req
}

// GQL posts one operation or a batch to the GraphQL endpoint and returns
// the data portion of each response, in op order. When any response error
// is a known transient message the whole batch is retried; a 401 drops
// the credential and fails with ErrRequestInvalid so the caller can
// re-validate; any other GQL error is a MinerError carrying the raw list.
func (c *Client) GQL(ctx context.Context, ops ...constants.GQLOperation) ([]json.RawMessage, error) {
	if len(ops) == 0 {
		return nil, nil
	}

	var jsonBody []byte
	var err error
	if len(ops) == 1 {
		jsonBody, err = json.Marshal(buildRequestBody(ops[0]))
	} else {
		batch := make([]gqlRequest, len(ops))
		for i, op := range ops {
			batch[i] = buildRequestBody(op)
		}
		jsonBody, err = json.Marshal(batch)
	}
	if err != nil {
		return nil, fmt.Errorf("marshaling GQL request: %w", err)
	}

	opName := ops[0].OperationName
	if c.debug {
		c.log.Debug("GQL request", "operation", opName, "body", string(jsonBody))
	}

	var results []json.RawMessage

	attempt := func() error {
		headers := c.auth.Headers()
		headers["Content-Type"] = "application/json"
		headers["Client-Version"] = c.clientVersion(ctx)

		respBody, status, err := c.Do(ctx, http.MethodPost, constants.GQLURL, jsonBody, headers, time.Time{})
		if err != nil {
			return backoff.Permanent(err)
		}
		if status == http.StatusUnauthorized {
			c.auth.Invalidate()
			return backoff.Permanent(model.ErrRequestInvalid)
		}
		if status != http.StatusOK {
			return backoff.Permanent(model.Minerf("GQL %s returned status %d: %s", opName, status, string(respBody)))
		}

		if c.debug {
			c.log.Debug("GQL response", "operation", opName, "body", string(respBody))
		}

		responses := make([]gqlResponse, 0, len(ops))
		if len(ops) == 1 {
			var single gqlResponse
			if err := json.Unmarshal(respBody, &single); err != nil {
				return backoff.Permanent(fmt.Errorf("parsing GQL response for %s: %w", opName, err))
			}
			responses = append(responses, single)
		} else {
			if err := json.Unmarshal(respBody, &responses); err != nil {
				return backoff.Permanent(fmt.Errorf("parsing GQL batch response for %s: %w", opName, err))
			}
		}

		for _, r := range responses {
			for _, e := range r.Errors {
				if isRetryableGQLMessage(e.Message) {
					c.log.Call("Retrying GQL batch", "operation", opName, "error", e.Message)
					return fmt.Errorf("transient GQL error: %s", e.Message)
				}
				return backoff.Permanent(model.Minerf("GQL %s failed: %v", opName, r.Errors))
			}
		}

		results = results[:0]
		for _, r := range responses {
			results = append(results, r.Data)
		}
		return nil
	}

	if err := backoff.Retry(attempt, backoff.WithContext(newBackoff(), ctx)); err != nil {
		return nil, err
	}
	return results, nil
}

// Post sends a single GQL operation and returns its data portion.
func (c *Client) Post(ctx context.Context, op constants.GQLOperation) (json.RawMessage, error) {
	results, err := c.GQL(ctx, op)
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

func isRetryableGQLMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, m := range gqlRetryMessages {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
