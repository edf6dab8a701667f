// ABOUTME: Durable local key-value storage used to mirror the session
// ABOUTME: Defines the KV contract plus the config directory lookup

package storage

import (
	"errors"
	"os"
	"path/filepath"
)

// ErrNotFound is returned by Get when the key has no stored value
var ErrNotFound = errors.New("storage: key not found")

// Keys used for the session mirror
const (
	KeyToken    = "token"
	KeyUserInfo = "userInfo"
)

// KV is a string-keyed store of string values
type KV interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// DefaultConfigDir returns the default config directory following XDG conventions
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "propdesk")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "propdesk")
}
