package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// PersistenceError reports a failure to write or read a batch record.
// The in-memory summary stays valid; callers surface this as a warning.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist batch record %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

const (
	summarySuffix = "_summary.json"
	logSuffix     = ".log"
)

// Store persists batch summaries and logs as files in one directory.
// File names start with the batch's start timestamp so a plain directory
// scan lists campaigns newest-first.
type Store struct {
	dir string
}

// NewStore creates the batch directory if needed
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create batch directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Save writes the JSON summary and the plain-text log for one batch
func (s *Store) Save(sum *Summary, logText string) error {
	base := s.baseName(sum)

	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return &PersistenceError{Path: base, Err: err}
	}

	summaryPath := filepath.Join(s.dir, base+summarySuffix)
	if err := os.WriteFile(summaryPath, data, 0640); err != nil {
		return &PersistenceError{Path: summaryPath, Err: err}
	}

	logPath := filepath.Join(s.dir, base+logSuffix)
	if err := os.WriteFile(logPath, []byte(logText), 0640); err != nil {
		return &PersistenceError{Path: logPath, Err: err}
	}

	return nil
}

// List returns stored summaries newest-first. limit <= 0 means all.
func (s *Store) List(limit int) ([]Summary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, &PersistenceError{Path: s.dir, Err: err}
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), summarySuffix) {
			names = append(names, e.Name())
		}
	}
	// Timestamp-prefixed names: lexicographically descending is newest-first.
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	var out []Summary
	for _, name := range names {
		if limit > 0 && len(out) >= limit {
			break
		}
		sum, err := s.read(filepath.Join(s.dir, name))
		if err != nil {
			continue
		}
		out = append(out, *sum)
	}
	return out, nil
}

// Get returns the summary for one campaign ID, or nil when not found
func (s *Store) Get(campaignID string) (*Summary, error) {
	summaries, err := s.List(0)
	if err != nil {
		return nil, err
	}
	for i := range summaries {
		if summaries[i].CampaignID == campaignID {
			return &summaries[i], nil
		}
	}
	return nil, nil
}

// ReadLog returns the plain-text log for one campaign ID,
// or an empty string when not found
func (s *Store) ReadLog(campaignID string) (string, error) {
	sum, err := s.Get(campaignID)
	if err != nil {
		return "", err
	}
	if sum == nil {
		return "", nil
	}

	path := filepath.Join(s.dir, s.baseName(sum)+logSuffix)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", &PersistenceError{Path: path, Err: err}
	}
	return string(data), nil
}

func (s *Store) baseName(sum *Summary) string {
	short := sum.CampaignID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("batch_%s_%s", sum.StartTime.Format("20060102_150405"), short)
}

func (s *Store) read(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sum := &Summary{}
	if err := json.Unmarshal(data, sum); err != nil {
		return nil, err
	}
	return sum, nil
}
