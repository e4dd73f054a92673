package dome9

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

var supportedProxySchemes = map[string]bool{
	"http":    true,
	"https":   true,
	"socks5":  true,
	"socks5h": true,
}

// newTransport returns an HTTP transport routed through proxyURL when set.
// Scheme-less proxy addresses default to http://.
func newTransport(proxyURL string) (*http.Transport, error) {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}

	if proxyURL == "" {
		return transport, nil
	}

	parsed, err := parseProxyURL(proxyURL)
	if err != nil {
		return nil, err
	}

	switch parsed.Scheme {
	case "http", "https":
		transport.Proxy = http.ProxyURL(parsed)
	default:
		d, err := proxy.FromURL(parsed, dialer)
		if err != nil {
			return nil, fmt.Errorf("create socks dialer: %w", err)
		}
		cd, ok := d.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("socks dialer for %s does not support contexts", parsed.Host)
		}
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return cd.DialContext(ctx, network, addr)
		}
	}

	return transport, nil
}

func parseProxyURL(raw string) (*url.URL, error) {
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL: %w", err)
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	if !supportedProxySchemes[parsed.Scheme] {
		return nil, fmt.Errorf("unsupported proxy scheme %q, supported: http, https, socks5, socks5h", parsed.Scheme)
	}
	if parsed.Hostname() == "" {
		return nil, fmt.Errorf("proxy URL missing host")
	}
	return parsed, nil
}
