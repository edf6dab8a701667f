// ABOUTME: Wiring shared by the commands
// ABOUTME: Loads configuration, opens the persisted session and builds the client and listener

package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/markalston/propdesk/internal/client"
	"github.com/markalston/propdesk/internal/config"
	"github.com/markalston/propdesk/internal/logger"
	"github.com/markalston/propdesk/internal/metrics"
	"github.com/markalston/propdesk/internal/realtime"
	"github.com/markalston/propdesk/internal/session"
	"github.com/markalston/propdesk/internal/storage"
	"github.com/markalston/propdesk/internal/transport"
)

// logSink picks where a command logs
type logSink int

const (
	logStderr logSink = iota
	logFile
)

// deps bundles what every command needs
type deps struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	store    *session.Store
	close    func() error
}

// loadDeps reads configuration, applies --api-url, sets up logging and
// opens the session stored in the config directory
func loadDeps(ctx context.Context, sink logSink) (*deps, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	if apiURL != "" {
		if err := cfg.SetAPIURL(apiURL); err != nil {
			return nil, err
		}
	}

	d := &deps{cfg: cfg, close: func() error { return nil }}
	switch sink {
	case logFile:
		l, closeFn, err := logger.InitFile(cfg.ConfigDir, cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			return nil, err
		}
		d.logger, d.close = l, closeFn
	default:
		d.logger = logger.Init(logOutput, cfg.LogLevel, cfg.LogFormat)
	}

	d.registry = prometheus.NewRegistry()
	d.metrics = metrics.New(d.registry)
	d.store = session.Open(storage.NewFile(cfg.ConfigDir), session.WithLogger(d.logger))
	return d, nil
}

func (d *deps) transportOptions() transport.Options {
	return transport.Options{
		Timeout:  d.cfg.Timeout,
		AllProxy: d.cfg.AllProxy,
		Logger:   d.logger,
	}
}

// newClient builds the request pipeline; opts are applied last
func (d *deps) newClient(opts ...client.Option) (*client.Client, error) {
	hc, err := transport.HTTPClient(d.transportOptions())
	if err != nil {
		return nil, err
	}
	base := []client.Option{
		client.WithHTTPClient(hc),
		client.WithPrefix(d.cfg.APIPrefix),
		client.WithTeardownDelay(d.cfg.TeardownDelay),
		client.WithLoginRejectPattern(d.cfg.LoginReject()),
		client.WithMetrics(d.metrics),
		client.WithLogger(d.logger),
	}
	return client.New(d.cfg.APIURL, d.store, append(base, opts...)...), nil
}

// newListener builds the realtime listener; opts are applied last
func (d *deps) newListener(opts ...realtime.Option) (*realtime.Listener, error) {
	dialer, err := transport.WebsocketDialer(d.transportOptions())
	if err != nil {
		return nil, err
	}
	base := []realtime.Option{
		realtime.WithDialer(dialer),
		realtime.WithHeartbeat(d.cfg.Heartbeat),
		realtime.WithReconnectDelay(d.cfg.ReconnectDelay),
		realtime.WithMetrics(d.metrics),
		realtime.WithLogger(d.logger),
	}
	return realtime.NewListener(d.cfg.APIURL, d.store, append(base, opts...)...), nil
}

// logOutput is where CLI commands log
var logOutput io.Writer = os.Stderr
