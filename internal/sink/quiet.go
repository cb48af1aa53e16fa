/*
Copyright 2026 Ardika Saputro.
Licensed under the Apache License, Version 2.0.
*/

package sink

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ardikabs/ircnotify/internal/config"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// quietWindow suppresses deliveries between a start cron firing and the
// next end cron firing.
type quietWindow struct {
	start cron.Schedule
	end   cron.Schedule
	loc   *time.Location
	now   func() time.Time
}

func newQuietWindow(cfg *config.QuietHours) (*quietWindow, error) {
	if cfg == nil {
		return nil, nil
	}

	start, err := cronParser.Parse(cfg.Start)
	if err != nil {
		return nil, fmt.Errorf("quiet hours start: %w", err)
	}
	end, err := cronParser.Parse(cfg.End)
	if err != nil {
		return nil, fmt.Errorf("quiet hours end: %w", err)
	}

	loc := time.Local
	if cfg.Timezone != "" {
		loc, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("quiet hours timezone: %w", err)
		}
	}

	return &quietWindow{start: start, end: end, loc: loc, now: time.Now}, nil
}

// suppressed reports whether the most recent start firing is newer than the
// most recent end firing.
func (q *quietWindow) suppressed() bool {
	if q == nil {
		return false
	}
	now := q.now().In(q.loc)
	lastStart := lastOccurrence(q.start, now)
	lastEnd := lastOccurrence(q.end, now)
	if lastStart.IsZero() {
		return false
	}
	return lastEnd.IsZero() || lastStart.After(lastEnd)
}

// lastOccurrence walks schedule firings over the trailing week to find the
// most recent one at or before now.
func lastOccurrence(sched cron.Schedule, now time.Time) time.Time {
	cursor := now.AddDate(0, 0, -7)
	var last time.Time
	for {
		next := sched.Next(cursor)
		if next.IsZero() || next.After(now) {
			return last
		}
		last = next
		cursor = next
	}
}
