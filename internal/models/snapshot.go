package models

import "time"

// Snapshot is the persisted result of the most recent successful fetch.
type Snapshot struct {
	Articles  []Article `json:"articles"`
	FetchTime int64     `json:"fetchTime"` // epoch milliseconds
	Count     int       `json:"count"`
}

// Age returns how long ago the snapshot was taken.
func (s Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(s.FetchTime))
}

// Stale reports whether the snapshot is older than the given threshold.
// Staleness is display-only and never invalidates the cache by itself.
func (s Snapshot) Stale(now time.Time, threshold time.Duration) bool {
	return s.Age(now) > threshold
}
