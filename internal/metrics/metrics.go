/*
Copyright 2026 Ardika Saputro.
Licensed under the Apache License, Version 2.0.
*/

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LinesRead counts raw lines handed to the parser, per client.
	LinesRead = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ircnotify_lines_read_total",
			Help: "Total number of log lines read by watchers",
		},
		[]string{"client"},
	)

	// LinesParsed counts lines that produced a message context.
	LinesParsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ircnotify_lines_parsed_total",
			Help: "Total number of log lines parsed into message contexts",
		},
		[]string{"client"},
	)

	// EventsMatched counts event matches.
	EventsMatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ircnotify_events_matched_total",
			Help: "Total number of event matches",
		},
		[]string{"event"},
	)

	// DeliveriesTotal counts sink deliveries by outcome.
	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ircnotify_deliveries_total",
			Help: "Total number of sink deliveries",
		},
		[]string{"sink", "type", "status"},
	)

	// DeliveriesSkipped counts deliveries suppressed before dispatch.
	DeliveriesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ircnotify_deliveries_skipped_total",
			Help: "Total number of deliveries skipped by rate limits or quiet hours",
		},
		[]string{"sink", "reason"},
	)

	// ReloadTotal counts configuration reloads by result.
	ReloadTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ircnotify_reload_total",
			Help: "Total number of configuration reloads",
		},
		[]string{"result"},
	)

	// ReloadDuration tracks reload duration.
	ReloadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ircnotify_reload_duration_seconds",
			Help:    "Duration of configuration reloads",
			Buckets: prometheus.DefBuckets,
		},
	)
)
