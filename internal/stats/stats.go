// Package stats tracks per-session streaming metrics (time to first token,
// total duration, chunk and byte counts, how the session ended) and
// persists them to ~/.wizard-sandbox/stats.json.
package stats

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/matthoffner/wizardcoder-sandbox/internal/config"
	"github.com/matthoffner/wizardcoder-sandbox/internal/sandbox"
)

const (
	fileName   = "stats.json"
	maxRecords = 1000
)

// Record is one finished streaming session.
type Record struct {
	Timestamp    time.Time `json:"timestamp"`
	Session      string    `json:"session"`
	Prompt       string    `json:"prompt"`
	Auto         bool      `json:"auto,omitempty"`
	Status       string    `json:"status"`
	Language     string    `json:"language,omitempty"`
	Chunks       int       `json:"chunks"`
	Bytes        int       `json:"bytes"`
	FirstTokenMs int64     `json:"first_token_ms,omitempty"`
	DurationMs   int64     `json:"duration_ms"`
	Error        string    `json:"error,omitempty"`
}

// Summary is the aggregated stats dashboard.
type Summary struct {
	TotalSessions     int            `json:"total_sessions"`
	CompletionRate    float64        `json:"completion_rate"`
	AvgFirstTokenMs   int64          `json:"avg_first_token_ms"`
	AvgDurationMs     int64          `json:"avg_duration_ms"`
	AvgBytes          int            `json:"avg_bytes"`
	StatusBreakdown   map[string]int `json:"status_breakdown"`
	LanguageBreakdown map[string]int `json:"language_breakdown"`
	TopPrompts        []PromptCount  `json:"top_prompts"`
	AutoCount         int            `json:"auto_count"`
	TodayCount        int            `json:"today_count"`
	ThisWeekCount     int            `json:"this_week_count"`
}

// PromptCount pairs a prompt with how often it was submitted.
type PromptCount struct {
	Prompt string `json:"prompt"`
	Count  int    `json:"count"`
}

var fileMu sync.Mutex

func statsPath() string {
	return filepath.Join(config.Dir(), fileName)
}

// FromSummary converts a finished session into a record.
func FromSummary(s sandbox.SessionSummary) Record {
	return Record{
		Timestamp:    s.Started.Add(s.Duration),
		Session:      s.ID,
		Prompt:       s.Prompt,
		Auto:         s.Auto,
		Status:       string(s.Status),
		Language:     string(s.Language),
		Chunks:       s.Chunks,
		Bytes:        s.Bytes,
		FirstTokenMs: s.FirstToken.Milliseconds(),
		DurationMs:   s.Duration.Milliseconds(),
		Error:        s.Err,
	}
}

// Save appends a new record to the stats file.
func Save(r Record) error {
	fileMu.Lock()
	defer fileMu.Unlock()

	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}

	records, _ := loadAll()
	records = append(records, r)

	if len(records) > maxRecords {
		records = records[len(records)-maxRecords:]
	}

	if err := os.MkdirAll(config.Dir(), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(statsPath(), data, 0o600)
}

// LoadAll returns all stored records.
func LoadAll() ([]Record, error) {
	return loadAll()
}

func loadAll() ([]Record, error) {
	data, err := os.ReadFile(statsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Summarize computes aggregated stats from all records.
func Summarize() (*Summary, error) {
	records, err := loadAll()
	if err != nil {
		return nil, err
	}
	return summarize(records, time.Now()), nil
}

func summarize(records []Record, now time.Time) *Summary {
	s := &Summary{
		TotalSessions:     len(records),
		StatusBreakdown:   map[string]int{},
		LanguageBreakdown: map[string]int{},
	}
	if len(records) == 0 {
		return s
	}

	var totalFirst, totalDur int64
	var firstCount, done, totalBytes int
	promptFreq := map[string]int{}
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	weekAgo := now.AddDate(0, 0, -7)

	for _, r := range records {
		s.StatusBreakdown[r.Status]++
		if r.Status == string(sandbox.StatusDone) {
			done++
		}
		if r.Language != "" {
			s.LanguageBreakdown[r.Language]++
		}
		if r.FirstTokenMs > 0 {
			totalFirst += r.FirstTokenMs
			firstCount++
		}
		totalDur += r.DurationMs
		totalBytes += r.Bytes
		if r.Auto {
			s.AutoCount++
		} else if r.Prompt != "" {
			promptFreq[r.Prompt]++
		}
		if r.Timestamp.After(today) {
			s.TodayCount++
		}
		if r.Timestamp.After(weekAgo) {
			s.ThisWeekCount++
		}
	}

	s.CompletionRate = float64(done) / float64(len(records)) * 100
	s.AvgDurationMs = totalDur / int64(len(records))
	s.AvgBytes = totalBytes / len(records)
	if firstCount > 0 {
		s.AvgFirstTokenMs = totalFirst / int64(firstCount)
	}
	s.TopPrompts = topN(promptFreq, 5)
	return s
}

func topN(freq map[string]int, n int) []PromptCount {
	all := make([]PromptCount, 0, len(freq))
	for p, count := range freq {
		all = append(all, PromptCount{Prompt: p, Count: count})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Count != all[j].Count {
			return all[i].Count > all[j].Count
		}
		return all[i].Prompt < all[j].Prompt
	})
	if len(all) > n {
		all = all[:n]
	}
	return all
}
