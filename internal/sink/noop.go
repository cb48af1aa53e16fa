/*
Copyright 2026 Ardika Saputro.
Licensed under the Apache License, Version 2.0.
*/

package sink

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/ardikabs/ircnotify/internal/config"
	"github.com/ardikabs/ircnotify/internal/message"
)

// Noop renders and counts deliveries without a transport. It backs the
// "custom" sink type, whose delivery is expected to be wired externally.
type Noop struct {
	*Base
}

// NewNoop builds a noop sink.
func NewNoop(cfg *config.Sink, log logr.Logger) (*Noop, error) {
	base, err := newBase(cfg, log)
	if err != nil {
		return nil, err
	}
	return &Noop{Base: base}, nil
}

// Initialize implements Sink.
func (s *Noop) Initialize(context.Context) error { return nil }

// Send implements Sink.
func (s *Noop) Send(_ context.Context, mctx *message.Context, event *config.Event) error {
	rendered, ok := s.prepare(mctx, event)
	if !ok {
		return nil
	}
	s.log.V(1).Info("noop delivery", "event", event.ID, "title", rendered.Title)
	s.recordOutcome(nil)
	return nil
}

// Destroy implements Sink.
func (s *Noop) Destroy() error { return nil }
