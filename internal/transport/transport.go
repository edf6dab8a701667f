// ABOUTME: Builds the HTTP client and websocket dialer used to reach the API
// ABOUTME: Optionally tunnels both through an SSH jumpbox via a SOCKS5 proxy

package transport

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	proxy "github.com/cloudfoundry/socks5-proxy"
	"github.com/gorilla/websocket"
)

// Options configures both transports
type Options struct {
	// Timeout bounds each HTTP request
	Timeout time.Duration
	// AllProxy is an ssh+socks5://user@host:port?private-key=/path URL.
	// Empty dials directly.
	AllProxy string
	Logger   *slog.Logger
}

// DialContextFunc matches net.Dialer.DialContext
type DialContextFunc func(ctx context.Context, network, address string) (net.Conn, error)

// HTTPClient returns the client the request pipeline sends through
func HTTPClient(opts Options) (*http.Client, error) {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	if opts.AllProxy != "" {
		dial, err := ProxyDialContext(opts.AllProxy, opts.Logger)
		if err != nil {
			return nil, err
		}
		transport.Proxy = nil
		transport.DialContext = dial
	}

	return &http.Client{
		Timeout:   opts.Timeout,
		Transport: transport,
	}, nil
}

// WebsocketDialer returns the dialer the realtime listener connects with
func WebsocketDialer(opts Options) (*websocket.Dialer, error) {
	d := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 10 * time.Second,
	}
	if opts.Timeout > 0 {
		d.HandshakeTimeout = opts.Timeout
	}

	if opts.AllProxy != "" {
		dial, err := ProxyDialContext(opts.AllProxy, opts.Logger)
		if err != nil {
			return nil, err
		}
		d.Proxy = nil
		d.NetDialContext = dial
	}
	return d, nil
}

// ProxyDialContext parses allProxy and returns a dialer that tunnels
// through the SSH jumpbox. The SSH connection is opened on first use.
func ProxyDialContext(allProxy string, logger *slog.Logger) (DialContextFunc, error) {
	if logger == nil {
		logger = slog.Default()
	}

	proxyURL, err := url.Parse(strings.TrimPrefix(allProxy, "ssh+"))
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL: %w", err)
	}
	if proxyURL.Host == "" {
		return nil, fmt.Errorf("proxy URL %q has no host", allProxy)
	}

	username := ""
	if proxyURL.User != nil {
		username = proxyURL.User.Username()
	}

	keyPath := proxyURL.Query().Get("private-key")
	if keyPath == "" {
		return nil, fmt.Errorf("proxy URL missing required 'private-key' query param")
	}
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read SSH private key %s: %w", keyPath, err)
	}

	socks5Proxy := proxy.NewSocks5Proxy(proxy.NewHostKey(), log.Default(), time.Minute)
	host := proxyURL.Host

	var (
		dialer proxy.DialFunc
		mut    sync.RWMutex
	)

	return func(ctx context.Context, network, address string) (net.Conn, error) {
		mut.RLock()
		d := dialer
		mut.RUnlock()

		if d == nil {
			mut.Lock()
			if dialer == nil {
				logger.Info("Opening SSH tunnel", "jumpbox", host, "user", username)
				pd, err := socks5Proxy.Dialer(username, string(key), host)
				if err != nil {
					mut.Unlock()
					return nil, fmt.Errorf("error creating SOCKS5 dialer: %w", err)
				}
				dialer = pd
			}
			d = dialer
			mut.Unlock()
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return d(network, address)
	}, nil
}
