package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
)

func load(t *testing.T, env map[string]string) (*Config, error) {
	t.Helper()
	return LoadWith(context.Background(), envconfig.MapLookuper(env))
}

func TestLoadWith_Defaults(t *testing.T) {
	cfg, err := load(t, map[string]string{"PROPDESK_CONFIG_DIR": "/tmp/propdesk"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIURL != "http://localhost:8088" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
	if cfg.APIPrefix != "/api/v1" {
		t.Errorf("APIPrefix = %q", cfg.APIPrefix)
	}
	if cfg.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v", cfg.Timeout)
	}
	if cfg.TeardownDelay != 1500*time.Millisecond {
		t.Errorf("TeardownDelay = %v", cfg.TeardownDelay)
	}
	if cfg.Heartbeat != 25*time.Second || cfg.ReconnectDelay != 3*time.Second {
		t.Errorf("Heartbeat/ReconnectDelay = %v/%v", cfg.Heartbeat, cfg.ReconnectDelay)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "text" {
		t.Errorf("log settings = %s/%s", cfg.LogLevel, cfg.LogFormat)
	}
	if !cfg.LoginReject().MatchString("用户名或密码错误") {
		t.Error("expected default login pattern to match server wording")
	}
}

func TestLoadWith_Overrides(t *testing.T) {
	cfg, err := load(t, map[string]string{
		"PROPDESK_API_URL":              "pm.example.com",
		"PROPDESK_TIMEOUT":              "15s",
		"PROPDESK_TEARDOWN_DELAY":       "2s",
		"PROPDESK_LOGIN_REJECT_PATTERN": "(?i)bad login",
		"LOG_FORMAT":                    "json",
		"PROPDESK_CONFIG_DIR":           "/tmp/propdesk",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIURL != "https://pm.example.com" {
		t.Errorf("expected https scheme added, got %q", cfg.APIURL)
	}
	if cfg.Timeout != 15*time.Second || cfg.TeardownDelay != 2*time.Second {
		t.Errorf("durations = %v/%v", cfg.Timeout, cfg.TeardownDelay)
	}
	if !cfg.LoginReject().MatchString("Bad Login") {
		t.Error("expected custom pattern")
	}
}

func TestLoadWith_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad level", map[string]string{"LOG_LEVEL": "trace"}, "loglevel must be one of"},
		{"bad prefix", map[string]string{"PROPDESK_API_PREFIX": "api"}, "apiprefix must start with /"},
		{"zero timeout", map[string]string{"PROPDESK_TIMEOUT": "0s"}, "timeout must be greater than 0"},
		{"bad pattern", map[string]string{"PROPDESK_LOGIN_REJECT_PATTERN": "("}, "PROPDESK_LOGIN_REJECT_PATTERN"},
		{"bad duration", map[string]string{"PROPDESK_HEARTBEAT": "soon"}, "failed to load configuration"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(t, tt.env)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestEnsureScheme(t *testing.T) {
	tests := map[string]string{
		"":                         "",
		"localhost:8088":           "http://localhost:8088",
		"127.0.0.1:8088/":          "http://127.0.0.1:8088",
		"pm.example.com":           "https://pm.example.com",
		"http://10.0.0.5:8088":     "http://10.0.0.5:8088",
		"https://pm.example.com/":  "https://pm.example.com",
	}
	for in, want := range tests {
		if got := EnsureScheme(in); got != want {
			t.Errorf("EnsureScheme(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSetAPIURL(t *testing.T) {
	cfg, err := load(t, map[string]string{"PROPDESK_CONFIG_DIR": "/tmp/propdesk"})
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.SetAPIURL("localhost:9000"); err != nil {
		t.Fatalf("SetAPIURL: %v", err)
	}
	if cfg.APIURL != "http://localhost:9000" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
}

func TestLoad_ReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("PROPDESK_API_PREFIX=/api/v2\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)
	t.Setenv("PROPDESK_API_PREFIX", "")
	os.Unsetenv("PROPDESK_API_PREFIX")

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIPrefix != "/api/v2" {
		t.Errorf("expected prefix from .env, got %q", cfg.APIPrefix)
	}
	os.Unsetenv("PROPDESK_API_PREFIX")
}
