/*
Copyright 2026 Ardika Saputro.
Licensed under the Apache License, Version 2.0.
*/

package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-logr/logr"

	"github.com/ardikabs/ircnotify/internal/config"
	"github.com/ardikabs/ircnotify/internal/message"
)

// Console prints notifications to a writer, stdout by default.
type Console struct {
	*Base
	out io.Writer
}

// NewConsole builds a console sink.
func NewConsole(cfg *config.Sink, log logr.Logger) (*Console, error) {
	base, err := newBase(cfg, log)
	if err != nil {
		return nil, err
	}
	return &Console{Base: base, out: os.Stdout}, nil
}

// Initialize implements Sink.
func (s *Console) Initialize(context.Context) error { return nil }

// Send implements Sink.
func (s *Console) Send(_ context.Context, mctx *message.Context, event *config.Event) error {
	rendered, ok := s.prepare(mctx, event)
	if !ok {
		return nil
	}

	var err error
	if s.cfg.Template != nil && s.cfg.Template.Format == config.FormatJSON {
		err = json.NewEncoder(s.out).Encode(map[string]any{
			"title":     rendered.Title,
			"body":      rendered.Body,
			"event":     event.ID,
			"timestamp": time.Now().Format(time.RFC3339),
		})
	} else {
		_, err = fmt.Fprintf(s.out, "[%s] %s\n", rendered.Title, rendered.Body)
	}
	s.recordOutcome(err)
	return err
}

// Destroy implements Sink.
func (s *Console) Destroy() error { return nil }
