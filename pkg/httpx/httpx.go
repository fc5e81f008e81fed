// Package httpx builds the outbound HTTP client shared by mirrors, relays and
// the Telegram gateway, with proxy settings resolved once at startup.
package httpx

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
)

// Config holds outbound HTTP settings.
type Config struct {
	// Proxy is an http://, https:// or socks5:// URL. Empty means the
	// standard HTTP_PROXY/HTTPS_PROXY environment variables apply.
	Proxy   string        `yaml:"proxy" json:"proxy" env:"DIGESTBOT_PROXY"`
	Timeout time.Duration `yaml:"timeout" json:"timeout" env:"DIGESTBOT_HTTP_TIMEOUT"`
}

// NewClient returns an *http.Client for cfg.
func NewClient(cfg Config) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if cfg.Proxy == "" {
		transport.Proxy = http.ProxyFromEnvironment
		return &http.Client{Transport: transport, Timeout: cfg.Timeout}, nil
	}

	u, err := url.Parse(cfg.Proxy)
	if err != nil {
		return nil, fmt.Errorf("parse proxy url: %w", err)
	}

	switch u.Scheme {
	case "http", "https":
		transport.Proxy = http.ProxyURL(u)
	case "socks5", "socks5h":
		dialer, err := proxy.FromURL(u, &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second})
		if err != nil {
			return nil, fmt.Errorf("socks proxy: %w", err)
		}
		transport.Proxy = nil
		transport.DialContext = contextDialer(dialer)
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
	}

	return &http.Client{Transport: transport, Timeout: cfg.Timeout}, nil
}

func contextDialer(d proxy.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return d.Dial(network, addr)
	}
}
