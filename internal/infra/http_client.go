// README: Upstream HTTP client construction (timeouts, optional local proxy).
package infra

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"travelfinder/internal/config"
)

// NewHTTPClient builds the client used for upstream LLM and geo calls.
// timeout bounds the whole exchange; pass 0 for streaming clients, which are bounded by the request context instead.
// There is no response header timeout; non-streaming completions send headers only when fully generated
// and are bounded by the provider's own deadline.
func NewHTTPClient(proxy config.ProxyConfig, timeout time.Duration) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if proxy.Enabled {
		u, err := url.Parse(proxy.URL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url %q: %w", proxy.URL, err)
		}
		transport.Proxy = http.ProxyURL(u)
		// Local debugging proxies terminate TLS with their own certificate.
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &http.Client{Transport: transport, Timeout: timeout}, nil
}
