// Package history keeps a log of submitted prompts. Only prompts and how
// their sessions ended are stored; generated sandbox content never is.
// History is stored as a JSON file in the user's config directory.
package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/matthoffner/wizardcoder-sandbox/internal/config"
)

const (
	fileName   = "history.json"
	maxEntries = 500
)

// fileMu guards concurrent access to the history file.
var fileMu sync.Mutex

// Entry is one submitted prompt.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Session   string    `json:"session"`
	Prompt    string    `json:"prompt"`
	Auto      bool      `json:"auto,omitempty"`
	Iteration int       `json:"iteration,omitempty"`
	Status    string    `json:"status"`
}

func historyPath() string {
	return filepath.Join(config.Dir(), fileName)
}

// Save appends a new entry to the history file.
func Save(entry Entry) error {
	fileMu.Lock()
	defer fileMu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	entries, _ := loadAll()
	entries = append(entries, entry)

	// Keep the most recent.
	if len(entries) > maxEntries {
		entries = entries[len(entries)-maxEntries:]
	}

	if err := os.MkdirAll(config.Dir(), 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(historyPath(), data, 0o600)
}

// Load returns the most recent limit entries, or all of them if limit <= 0.
func Load(limit int) ([]Entry, error) {
	entries, err := loadAll()
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}

	return entries, nil
}

// Prompts returns the distinct prompts of the most recent limit entries,
// newest first. Follow-ups submitted by auto mode are skipped.
func Prompts(limit int) ([]string, error) {
	entries, err := loadAll()
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []string
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.Auto || seen[e.Prompt] {
			continue
		}
		seen[e.Prompt] = true
		out = append(out, e.Prompt)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Clear removes the history file.
func Clear() error {
	fileMu.Lock()
	defer fileMu.Unlock()
	if err := os.Remove(historyPath()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func loadAll() ([]Entry, error) {
	data, err := os.ReadFile(historyPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	return entries, nil
}
