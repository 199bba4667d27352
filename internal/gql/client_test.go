package gql

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kethal/twitch-drops-go/internal/logger"
	"github.com/kethal/twitch-drops-go/internal/model"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.Setup(logger.Config{Level: slog.LevelError})
	require.NoError(t, err)
	return log
}

func TestNewClientProxy(t *testing.T) {
	c := NewClient(nil, nil, "http://127.0.0.1:9999", testLogger(t))

	transport, ok := c.HTTPClient().Transport.(*http.Transport)
	require.True(t, ok)
	require.NotNil(t, transport.Proxy)

	req := httptest.NewRequest(http.MethodGet, "https://gql.twitch.tv/gql", nil)
	proxyURL, err := transport.Proxy(req)
	require.NoError(t, err)
	require.NotNil(t, proxyURL)
	assert.Equal(t, "http://127.0.0.1:9999", proxyURL.String())
}

func TestNewClientInvalidProxyFallsBackToEnvironment(t *testing.T) {
	c := NewClient(nil, nil, "://bad", testLogger(t))

	transport, ok := c.HTTPClient().Transport.(*http.Transport)
	require.True(t, ok)
	assert.NotNil(t, transport.Proxy)
}

func TestGetGameSlugFromRegistry(t *testing.T) {
	c := NewClient(nil, nil, "", testLogger(t))

	model.RegisterGameSlug("registry-hit-game", "the-slug")

	// A registry hit resolves without any network round trip.
	slug, err := c.GetGameSlug(context.Background(), "registry-hit-game")
	require.NoError(t, err)
	assert.Equal(t, "the-slug", slug)
}
