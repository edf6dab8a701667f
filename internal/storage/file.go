// ABOUTME: File-backed KV storing entries as JSON in the config directory
// ABOUTME: Every write rewrites the whole file through a temp file and rename

package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File persists entries to <dir>/session.json
type File struct {
	mu      sync.Mutex
	dir     string
	entries map[string]string
}

type fileData struct {
	Entries map[string]string `json:"entries"`
}

// NewFile creates a file store rooted at dir. Nothing is read until first use.
func NewFile(dir string) *File {
	return &File{dir: dir}
}

// path returns the path to the session JSON
func (f *File) path() string {
	return filepath.Join(f.dir, "session.json")
}

// load reads entries from disk once. Unreadable or invalid JSON starts fresh.
func (f *File) load() error {
	if f.entries != nil {
		return nil
	}

	data, err := os.ReadFile(f.path())
	if os.IsNotExist(err) {
		f.entries = map[string]string{}
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", f.path(), err)
	}

	var stored fileData
	if err := json.Unmarshal(data, &stored); err != nil || stored.Entries == nil {
		f.entries = map[string]string{}
		return nil
	}
	f.entries = stored.Entries
	return nil
}

func (f *File) save() error {
	if err := os.MkdirAll(f.dir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(fileData{Entries: f.entries}, "", "  ")
	if err != nil {
		return err
	}

	tmp := f.path() + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path())
}

// Get returns the stored value or ErrNotFound
func (f *File) Get(key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.load(); err != nil {
		return "", err
	}
	value, ok := f.entries[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

// Set stores value under key and flushes to disk
func (f *File) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.load(); err != nil {
		return err
	}
	f.entries[key] = value
	return f.save()
}

// Delete removes key. Deleting a missing key is not an error.
func (f *File) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.load(); err != nil {
		return err
	}
	if _, ok := f.entries[key]; !ok {
		return nil
	}
	delete(f.entries, key)
	return f.save()
}
