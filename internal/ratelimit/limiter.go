// Package ratelimit throttles outbound sends against the provider's
// hourly and daily windows. Counters survive restarts in BoltDB.
package ratelimit

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketCounters = []byte("send_counters")

var counterKey = []byte("provider")

// Config contains rate limit values. Zero means unlimited.
type Config struct {
	MessagesPerHour int
	MessagesPerDay  int
}

// Counter tracks sends within the current hour and day windows
type Counter struct {
	HourlyCount int       `json:"hourly_count"`
	DailyCount  int       `json:"daily_count"`
	HourStart   time.Time `json:"hour_start"`
	DayStart    time.Time `json:"day_start"`
}

// LimitExceededError reports which window was exhausted
type LimitExceededError struct {
	Window string
	Limit  int
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded: %d messages per %s", e.Limit, e.Window)
}

// Limiter enforces provider-level send limits
type Limiter struct {
	db      *bolt.DB
	config  Config
	mu      sync.Mutex
	counter Counter
}

// NewLimiter creates a limiter, loading any persisted counter state
func NewLimiter(db *bolt.DB, cfg Config) (*Limiter, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCounters)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create counters bucket: %w", err)
	}

	l := &Limiter{db: db, config: cfg}
	if err := l.load(); err != nil {
		return nil, fmt.Errorf("failed to load counters: %w", err)
	}
	return l, nil
}

// Allow checks the hourly and daily windows and, when both have room,
// counts one send and persists the counters
func (l *Limiter) Allow(now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.roll(now)

	if l.config.MessagesPerHour > 0 && l.counter.HourlyCount >= l.config.MessagesPerHour {
		return &LimitExceededError{Window: "hour", Limit: l.config.MessagesPerHour}
	}
	if l.config.MessagesPerDay > 0 && l.counter.DailyCount >= l.config.MessagesPerDay {
		return &LimitExceededError{Window: "day", Limit: l.config.MessagesPerDay}
	}

	l.counter.HourlyCount++
	l.counter.DailyCount++
	return l.persist()
}

// Counts returns the current window counters
func (l *Limiter) Counts(now time.Time) Counter {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.roll(now)
	return l.counter
}

// roll resets counters whose window has elapsed. Caller holds the lock.
func (l *Limiter) roll(now time.Time) {
	if now.Sub(l.counter.HourStart) >= time.Hour {
		l.counter.HourlyCount = 0
		l.counter.HourStart = now.Truncate(time.Hour)
	}
	if now.Sub(l.counter.DayStart) >= 24*time.Hour {
		l.counter.DailyCount = 0
		l.counter.DayStart = now.Truncate(24 * time.Hour)
	}
}

func (l *Limiter) load() error {
	return l.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketCounters).Get(counterKey)
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &l.counter)
	})
}

func (l *Limiter) persist() error {
	data, err := json.Marshal(&l.counter)
	if err != nil {
		return err
	}
	return l.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCounters).Put(counterKey, data)
	})
}
