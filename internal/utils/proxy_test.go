package utils

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProxyFunc(t *testing.T) {
	fn, err := ProxyFunc("http://proxy.local:8080")
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, "https://example.com/", nil)
	require.NoError(t, err)

	proxyURL, err := fn(req)
	require.NoError(t, err)
	require.NotNil(t, proxyURL)
	assert.Equal(t, "http://proxy.local:8080", proxyURL.String())
}

func TestProxyFuncEmptyDefersToEnvironment(t *testing.T) {
	fn, err := ProxyFunc("")
	require.NoError(t, err)
	assert.NotNil(t, fn)
}

func TestProxyFuncRejectsMalformedURLs(t *testing.T) {
	for _, raw := range []string{"://bad", "/just/a/path", "proxy.local:8080"} {
		_, err := ProxyFunc(raw)
		assert.Error(t, err, "raw=%q", raw)
	}
}
