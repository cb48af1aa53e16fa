/*
Copyright 2026 Ardika Saputro.
Licensed under the Apache License, Version 2.0.
*/

// Package sink delivers matched events to notification destinations. Every
// sink shares the same pre-delivery pipeline: quiet-hours and rate-limit
// checks, metadata-override resolution, and title/body templating; the
// concrete types only differ in transport.
package sink

import (
	"context"
	"strings"

	"github.com/go-logr/logr"
	"github.com/samber/lo"

	"github.com/ardikabs/ircnotify/internal/config"
	"github.com/ardikabs/ircnotify/internal/message"
	"github.com/ardikabs/ircnotify/internal/metrics"
	"github.com/ardikabs/ircnotify/internal/template"
)

// Default templates when neither the event nor the sink overrides them.
const (
	DefaultTitleTemplate = "{{event.name}}"
	DefaultBodyTemplate  = "{{message.content}}"
)

// Sink is a notification destination.
type Sink interface {
	// ID returns the sink's config id.
	ID() string
	// Initialize prepares the transport.
	Initialize(ctx context.Context) error
	// Send delivers one matched event. Skips (rate limit, quiet hours)
	// are not errors.
	Send(ctx context.Context, mctx *message.Context, event *config.Event) error
	// Destroy releases transport resources.
	Destroy() error
}

// Rendered is the resolved notification handed to a transport.
type Rendered struct {
	Title string
	Body  string
	// Scope is the template context the title and body were rendered
	// with; transports reuse it for their own templated fields.
	Scope map[string]any
}

// Base carries the shared pre-delivery pipeline. Concrete sinks embed it.
type Base struct {
	cfg     *config.Sink
	log     logr.Logger
	limiter *rateLimiter
	quiet   *quietWindow
}

func newBase(cfg *config.Sink, log logr.Logger) (*Base, error) {
	quiet, err := newQuietWindow(cfg.QuietHours)
	if err != nil {
		return nil, err
	}
	base := &Base{
		cfg:   cfg,
		log:   log.WithName("sink").WithValues("sink", cfg.ID, "type", cfg.Type),
		quiet: quiet,
	}
	if cfg.RateLimit != nil {
		base.limiter = newRateLimiter(cfg.RateLimit)
	}
	return base, nil
}

// ID returns the sink's config id.
func (b *Base) ID() string { return b.cfg.ID }

// Config returns the sink's configuration.
func (b *Base) Config() *config.Sink { return b.cfg }

// prepare runs the shared pipeline. The second return is false when the
// delivery must be skipped.
func (b *Base) prepare(mctx *message.Context, event *config.Event) (Rendered, bool) {
	if b.quiet.suppressed() {
		b.log.Info("delivery suppressed by quiet hours", "event", event.ID)
		metrics.DeliveriesSkipped.WithLabelValues(b.cfg.ID, "quiet-hours").Inc()
		return Rendered{}, false
	}
	if b.limiter != nil && !b.limiter.allow() {
		b.log.Info("delivery skipped by rate limit", "event", event.ID)
		metrics.DeliveriesSkipped.WithLabelValues(b.cfg.ID, "rate-limited").Inc()
		return Rendered{}, false
	}
	return b.render(mctx, event), true
}

// render resolves the title and body through the override chain: per-sink
// event metadata, then the sink's template, then the defaults.
func (b *Base) render(mctx *message.Context, event *config.Event) Rendered {
	overrides := b.Overrides(event)

	title := DefaultTitleTemplate
	body := DefaultBodyTemplate
	if b.cfg.Template != nil {
		if b.cfg.Template.Title != "" {
			title = b.cfg.Template.Title
		}
		if b.cfg.Template.Body != "" {
			body = b.cfg.Template.Body
		}
	}
	if v, ok := overrides["title"].(string); ok && v != "" {
		title = v
	}
	if v, ok := overrides["body"].(string); ok && v != "" {
		body = v
	}

	scope := mctx.AsMap()
	return Rendered{
		Title: template.Process(title, scope),
		Body:  template.Process(body, scope),
		Scope: scope,
	}
}

// Overrides returns the event's per-sink metadata overrides, restricted to
// the sink's allowedMetadata keys when that list is present.
func (b *Base) Overrides(event *config.Event) map[string]any {
	overrides := event.SinkOverrides(b.cfg.ID)
	if overrides == nil || b.cfg.AllowedMetadata == nil {
		return overrides
	}
	bounded := make(map[string]any, len(overrides))
	for k, v := range overrides {
		if lo.Contains(b.cfg.AllowedMetadata, k) {
			bounded[k] = v
		}
	}
	return bounded
}

// recordOutcome feeds the delivery counters.
func (b *Base) recordOutcome(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.DeliveriesTotal.WithLabelValues(b.cfg.ID, b.cfg.Type, status).Inc()
}

// configString reads a string key from the sink's type-specific config.
func (b *Base) configString(key string) string {
	v, _ := b.cfg.Config[key].(string)
	return v
}

// asciiSanitize strips non-ASCII bytes from a header value; control bytes
// go with them.
func asciiSanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 || r > 126 {
			return -1
		}
		return r
	}, s)
}
