/*
Copyright 2026 Ardika Saputro.
Licensed under the Apache License, Version 2.0.
*/

package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-logr/logr"

	"github.com/ardikabs/ircnotify/internal/config"
	"github.com/ardikabs/ircnotify/internal/message"
)

// File appends (or overwrites) rendered notifications to a file, creating
// parent directories as needed.
type File struct {
	*Base
	path      string
	overwrite bool
}

// NewFile builds a file sink.
func NewFile(cfg *config.Sink, log logr.Logger) (*File, error) {
	base, err := newBase(cfg, log)
	if err != nil {
		return nil, err
	}
	s := &File{Base: base, path: base.configString("path")}
	if mode := base.configString("mode"); mode == "overwrite" {
		s.overwrite = true
	}
	return s, nil
}

// Initialize implements Sink.
func (s *File) Initialize(context.Context) error {
	return os.MkdirAll(filepath.Dir(s.path), 0o755)
}

// Send implements Sink.
func (s *File) Send(_ context.Context, mctx *message.Context, event *config.Event) error {
	rendered, ok := s.prepare(mctx, event)
	if !ok {
		return nil
	}

	var line string
	if s.cfg.Template != nil && s.cfg.Template.Format == config.FormatJSON {
		encoded, err := json.Marshal(map[string]any{
			"title":     rendered.Title,
			"body":      rendered.Body,
			"event":     event.ID,
			"timestamp": time.Now().Format(time.RFC3339),
		})
		if err != nil {
			s.recordOutcome(err)
			return err
		}
		line = string(encoded)
	} else {
		line = fmt.Sprintf("[%s] %s", rendered.Title, rendered.Body)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_APPEND
	if s.overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(s.path, flags, 0o644)
	if err != nil {
		s.recordOutcome(err)
		return err
	}
	_, err = f.WriteString(line + "\n")
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	s.recordOutcome(err)
	return err
}

// Destroy implements Sink.
func (s *File) Destroy() error { return nil }
