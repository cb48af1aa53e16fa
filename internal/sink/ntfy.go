/*
Copyright 2026 Ardika Saputro.
Licensed under the Apache License, Version 2.0.
*/

package sink

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/ardikabs/ircnotify/internal/config"
	"github.com/ardikabs/ircnotify/internal/message"
	"github.com/ardikabs/ircnotify/internal/template"
)

// Ntfy posts the rendered body to an ntfy topic, carrying the title and
// optional priority/tags as headers.
type Ntfy struct {
	*Base
	client *retryablehttp.Client
	url    string
}

// NewNtfy builds an ntfy sink.
func NewNtfy(cfg *config.Sink, log logr.Logger) (*Ntfy, error) {
	base, err := newBase(cfg, log)
	if err != nil {
		return nil, err
	}

	endpoint := strings.TrimRight(base.configString("endpoint"), "/")
	topic := base.configString("topic")

	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.HTTPClient.Timeout = 30 * time.Second
	client.Logger = nil

	return &Ntfy{
		Base:   base,
		client: client,
		url:    endpoint + "/" + topic,
	}, nil
}

// Initialize implements Sink.
func (s *Ntfy) Initialize(context.Context) error { return nil }

// Send implements Sink.
func (s *Ntfy) Send(ctx context.Context, mctx *message.Context, event *config.Event) error {
	rendered, ok := s.prepare(mctx, event)
	if !ok {
		return nil
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, s.url, strings.NewReader(rendered.Body))
	if err != nil {
		s.recordOutcome(err)
		return err
	}

	headers := map[string]string{"Title": rendered.Title}
	if priority := s.configString("priority"); priority != "" {
		headers["Priority"] = priority
	}
	if tags := s.configString("tags"); tags != "" {
		headers["Tags"] = tags
	}
	if extra, ok := s.cfg.Config["headers"].(map[string]any); ok {
		for k, v := range extra {
			if str, ok := v.(string); ok {
				headers[k] = str
			}
		}
	}
	for k, v := range s.Overrides(event) {
		switch k {
		case "priority":
			headers["Priority"] = template.Stringify(v)
		case "tags":
			headers["Tags"] = template.Stringify(v)
		}
	}
	for k, v := range headers {
		req.Header.Set(k, asciiSanitize(template.Process(v, rendered.Scope)))
	}

	resp, err := s.client.Do(req)
	if err == nil {
		resp.Body.Close()
		if resp.StatusCode >= 300 {
			err = fmt.Errorf("ntfy returned status %d", resp.StatusCode)
		}
	}
	s.recordOutcome(err)
	if err != nil {
		return fmt.Errorf("ntfy delivery: %w", err)
	}
	return nil
}

// Destroy implements Sink.
func (s *Ntfy) Destroy() error {
	s.client.HTTPClient.CloseIdleConnections()
	return nil
}
