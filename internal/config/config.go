// ABOUTME: Configuration loaded from environment variables and an optional .env file
// ABOUTME: Uses go-envconfig for defaults and parsing, validator for sanity checks

package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"

	"github.com/markalston/propdesk/internal/client"
	"github.com/markalston/propdesk/internal/storage"
	"github.com/markalston/propdesk/internal/validation"
)

// Config holds everything propdesk reads from the environment
type Config struct {
	APIURL         string        `env:"PROPDESK_API_URL,         default=http://localhost:8088" validate:"required,url"`
	APIPrefix      string        `env:"PROPDESK_API_PREFIX,      default=/api/v1"               validate:"required,startswith=/"`
	Timeout        time.Duration `env:"PROPDESK_TIMEOUT,         default=10s"                   validate:"gt=0"`
	TeardownDelay  time.Duration `env:"PROPDESK_TEARDOWN_DELAY,  default=1500ms"                validate:"gt=0"`
	Heartbeat      time.Duration `env:"PROPDESK_HEARTBEAT,       default=25s"                   validate:"gt=0"`
	ReconnectDelay time.Duration `env:"PROPDESK_RECONNECT_DELAY, default=3s"                    validate:"gt=0"`
	ConfigDir      string        `env:"PROPDESK_CONFIG_DIR"`
	AllProxy       string        `env:"PROPDESK_ALL_PROXY"`

	LoginRejectPattern string `env:"PROPDESK_LOGIN_REJECT_PATTERN"`

	LogLevel  string `env:"LOG_LEVEL,  default=info" validate:"oneof=debug info warn warning error"`
	LogFormat string `env:"LOG_FORMAT, default=text" validate:"oneof=text json"`

	loginReject *regexp.Regexp
}

// Load reads an optional .env from the working directory, then the
// process environment. Variables already set win over .env entries.
func Load(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith resolves configuration from lookuper
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	cfg.APIURL = EnsureScheme(cfg.APIURL)
	if cfg.ConfigDir == "" {
		cfg.ConfigDir = storage.DefaultConfigDir()
	}
	if cfg.LoginRejectPattern == "" {
		cfg.LoginRejectPattern = client.DefaultLoginRejectPattern
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and compiles the login pattern
func (c *Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	re, err := regexp.Compile(c.LoginRejectPattern)
	if err != nil {
		return fmt.Errorf("invalid configuration: PROPDESK_LOGIN_REJECT_PATTERN: %w", err)
	}
	c.loginReject = re
	return nil
}

// SetAPIURL overrides the API origin (the --api-url flag)
func (c *Config) SetAPIURL(raw string) error {
	u := EnsureScheme(raw)
	if _, err := url.ParseRequestURI(u); err != nil {
		return fmt.Errorf("invalid API URL %q: %w", raw, err)
	}
	c.APIURL = u
	return nil
}

// LoginReject returns the compiled login-rejected pattern
func (c *Config) LoginReject() *regexp.Regexp {
	if c.loginReject == nil {
		c.loginReject = regexp.MustCompile(client.DefaultLoginRejectPattern)
	}
	return c.loginReject
}

// EnsureScheme adds a scheme to a bare host. Local hosts get http, the
// rest https.
func EnsureScheme(raw string) string {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	if raw == "" || strings.Contains(raw, "://") {
		return raw
	}
	host := raw
	if i := strings.IndexAny(host, ":/"); i >= 0 {
		host = host[:i]
	}
	if host == "localhost" || host == "127.0.0.1" {
		return "http://" + raw
	}
	return "https://" + raw
}
