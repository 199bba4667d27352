package utils

import (
	"fmt"
	"net/http"
	"net/url"
)

// ProxyFunc builds an http.Transport proxy callback from a proxy URL
// setting. An empty value defers to the environment (HTTP_PROXY et al.);
// a malformed value is an error so a typo never silently bypasses the
// proxy.
func ProxyFunc(rawURL string) (func(*http.Request) (*url.URL, error), error) {
	if rawURL == "" {
		return http.ProxyFromEnvironment, nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing proxy URL %q: %w", rawURL, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("proxy URL %q needs a scheme and host", rawURL)
	}
	return http.ProxyURL(parsed), nil
}
