/*
Copyright 2026 Ardika Saputro.
Licensed under the Apache License, Version 2.0.
*/

package sink

import (
	"sync"
	"time"

	"github.com/ardikabs/ircnotify/internal/config"
)

// rateLimiter enforces sliding minute and hour windows over delivery
// timestamps. State is in-memory only; counters reset with the process.
type rateLimiter struct {
	cfg *config.RateLimit
	now func() time.Time

	mu     sync.Mutex
	stamps []time.Time
}

func newRateLimiter(cfg *config.RateLimit) *rateLimiter {
	return &rateLimiter{cfg: cfg, now: time.Now}
}

// allow records a delivery attempt if neither window is saturated. It
// returns false when the delivery must be skipped.
func (r *rateLimiter) allow() bool {
	if r == nil || r.cfg == nil {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	hourAgo := now.Add(-time.Hour)
	minuteAgo := now.Add(-time.Minute)

	// Prune everything older than the widest window.
	kept := r.stamps[:0]
	for _, ts := range r.stamps {
		if ts.After(hourAgo) {
			kept = append(kept, ts)
		}
	}
	r.stamps = kept

	if r.cfg.MaxPerHour > 0 && len(r.stamps) >= r.cfg.MaxPerHour {
		return false
	}
	if r.cfg.MaxPerMinute > 0 {
		recent := 0
		for _, ts := range r.stamps {
			if ts.After(minuteAgo) {
				recent++
			}
		}
		if recent >= r.cfg.MaxPerMinute {
			return false
		}
	}

	r.stamps = append(r.stamps, now)
	return true
}
