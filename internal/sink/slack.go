/*
Copyright 2026 Ardika Saputro.
Licensed under the Apache License, Version 2.0.
*/

package sink

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/slack-go/slack"

	"github.com/ardikabs/ircnotify/internal/config"
	"github.com/ardikabs/ircnotify/internal/message"
)

// Slack posts notifications either through an incoming webhook URL or the
// Web API with a bot token.
type Slack struct {
	*Base
	api        *slack.Client
	webhookURL string
	channel    string
}

// NewSlack builds a slack sink.
func NewSlack(cfg *config.Sink, log logr.Logger) (*Slack, error) {
	base, err := newBase(cfg, log)
	if err != nil {
		return nil, err
	}

	s := &Slack{
		Base:       base,
		webhookURL: base.configString("webhookUrl"),
		channel:    base.configString("channel"),
	}
	if token := base.configString("token"); token != "" {
		s.api = slack.New(token)
	}
	return s, nil
}

// Initialize implements Sink.
func (s *Slack) Initialize(ctx context.Context) error {
	if s.api == nil {
		return nil
	}
	if _, err := s.api.AuthTestContext(ctx); err != nil {
		return fmt.Errorf("slack auth test: %w", err)
	}
	return nil
}

// Send implements Sink.
func (s *Slack) Send(ctx context.Context, mctx *message.Context, event *config.Event) error {
	rendered, ok := s.prepare(mctx, event)
	if !ok {
		return nil
	}

	text := fmt.Sprintf("*%s*\n%s", rendered.Title, rendered.Body)

	var err error
	if s.api != nil {
		_, _, err = s.api.PostMessageContext(ctx, s.channel, slack.MsgOptionText(text, false))
	} else {
		err = slack.PostWebhookContext(ctx, s.webhookURL, &slack.WebhookMessage{Text: text})
	}
	s.recordOutcome(err)
	if err != nil {
		return fmt.Errorf("slack delivery: %w", err)
	}
	return nil
}

// Destroy implements Sink.
func (s *Slack) Destroy() error { return nil }
