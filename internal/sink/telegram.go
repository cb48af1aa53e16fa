/*
Copyright 2026 Ardika Saputro.
Licensed under the Apache License, Version 2.0.
*/

package sink

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/go-telegram/bot"

	"github.com/ardikabs/ircnotify/internal/config"
	"github.com/ardikabs/ircnotify/internal/message"
)

// Telegram sends notifications to a chat through the Bot API.
type Telegram struct {
	*Base
	bot    *bot.Bot
	token  string
	chatID string
}

// NewTelegram builds a telegram sink. The bot client is created lazily in
// Initialize so construction stays offline.
func NewTelegram(cfg *config.Sink, log logr.Logger) (*Telegram, error) {
	base, err := newBase(cfg, log)
	if err != nil {
		return nil, err
	}
	return &Telegram{
		Base:   base,
		token:  base.configString("token"),
		chatID: base.configString("chatId"),
	}, nil
}

// Initialize implements Sink.
func (s *Telegram) Initialize(context.Context) error {
	b, err := bot.New(s.token, bot.WithSkipGetMe())
	if err != nil {
		return fmt.Errorf("telegram bot: %w", err)
	}
	s.bot = b
	return nil
}

// Send implements Sink.
func (s *Telegram) Send(ctx context.Context, mctx *message.Context, event *config.Event) error {
	rendered, ok := s.prepare(mctx, event)
	if !ok {
		return nil
	}
	if s.bot == nil {
		if err := s.Initialize(ctx); err != nil {
			s.recordOutcome(err)
			return err
		}
	}

	_, err := s.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: s.chatID,
		Text:   fmt.Sprintf("%s\n%s", rendered.Title, rendered.Body),
	})
	s.recordOutcome(err)
	if err != nil {
		return fmt.Errorf("telegram delivery: %w", err)
	}
	return nil
}

// Destroy implements Sink.
func (s *Telegram) Destroy() error { return nil }
