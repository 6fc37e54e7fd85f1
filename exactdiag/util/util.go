// Package util contains helpers shared by the solvers.
package util

import "time"

// SkipThrottler admits at most one event per interval and skips the others.
// It is used to rate limit progress logs in long running loops.
type SkipThrottler struct {
	d       time.Duration
	now     func() time.Time
	last    time.Time
	skipped int
}

// NewSkipThrottler returns a throttler whose first event is always admitted.
func NewSkipThrottler(d time.Duration) *SkipThrottler {
	tt := &SkipThrottler{d: d, now: time.Now, last: time.Date(0, 0, 0, 0, 0, 0, 0, time.UTC)}
	return tt
}

// Ok reports whether an event happening now should proceed.
func (tt *SkipThrottler) Ok() bool {
	now := tt.now()
	if now.Before(tt.last.Add(tt.d)) {
		tt.skipped++
		return false
	}

	tt.last = now
	tt.skipped = 0
	return true
}

// Skipped returns the number of events skipped since the last admitted one.
func (tt *SkipThrottler) Skipped() int {
	return tt.skipped
}
