/*
Copyright 2026 Ardika Saputro.
Licensed under the Apache License, Version 2.0.
*/

package sink

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/ardikabs/ircnotify/internal/config"
	"github.com/ardikabs/ircnotify/internal/message"
)

// Webhook delivers through the configurable payload-transform pipeline.
// Without transforms it posts a default JSON document.
type Webhook struct {
	*Base
	client     *retryablehttp.Client
	url        string
	transforms []compiledTransform
}

// NewWebhook builds a webhook sink, compiling its transforms up front.
func NewWebhook(cfg *config.Sink, log logr.Logger) (*Webhook, error) {
	base, err := newBase(cfg, log)
	if err != nil {
		return nil, err
	}
	transforms, err := compileTransforms(cfg.PayloadTransforms)
	if err != nil {
		return nil, err
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.HTTPClient.Timeout = 30 * time.Second
	client.Logger = nil

	return &Webhook{
		Base:       base,
		client:     client,
		url:        base.configString("url"),
		transforms: transforms,
	}, nil
}

// Initialize implements Sink.
func (s *Webhook) Initialize(context.Context) error { return nil }

// Send implements Sink.
func (s *Webhook) Send(ctx context.Context, mctx *message.Context, event *config.Event) error {
	rendered, ok := s.prepare(mctx, event)
	if !ok {
		return nil
	}

	overrides := s.Overrides(event)
	scope := transformScope(rendered, event, s.cfg)

	out, err := s.buildOutgoing(rendered, scope, overrides, event)
	if err != nil {
		s.recordOutcome(err)
		return err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, out.Method, s.url, bytes.NewReader(out.Body))
	if err != nil {
		s.recordOutcome(err)
		return err
	}
	if out.ContentType != "" {
		req.Header.Set("Content-Type", out.ContentType)
	}
	for k, v := range out.Headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err == nil {
		resp.Body.Close()
		if resp.StatusCode >= 300 {
			err = fmt.Errorf("webhook returned status %d", resp.StatusCode)
		}
	}
	s.recordOutcome(err)
	if err != nil {
		return fmt.Errorf("webhook delivery: %w", err)
	}
	return nil
}

// buildOutgoing selects and renders a transform, falling back to a plain
// JSON document when the sink has no transforms or none is selected.
func (s *Webhook) buildOutgoing(rendered Rendered, scope, overrides map[string]any, event *config.Event) (*outgoingRequest, error) {
	if len(s.transforms) > 0 {
		if t := selectTransform(s.transforms, overrides, scope); t != nil {
			return buildRequest(t, scope, overrides, event)
		}
	}

	fallback := compiledTransform{cfg: &config.PayloadTransform{
		Name:       "default",
		BodyFormat: config.BodyJSON,
		JSONTemplate: map[string]any{
			"title":   "{{title}}",
			"body":    "{{body}}",
			"event":   "{{event.id}}",
			"server":  "{{context.server.displayName}}",
			"message": "{{context.message.content}}",
		},
	}}
	return buildRequest(&fallback, scope, overrides, event)
}

// Destroy implements Sink.
func (s *Webhook) Destroy() error {
	s.client.HTTPClient.CloseIdleConnections()
	return nil
}
