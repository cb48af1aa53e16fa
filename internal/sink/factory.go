/*
Copyright 2026 Ardika Saputro.
Licensed under the Apache License, Version 2.0.
*/

package sink

import (
	"fmt"

	"github.com/go-logr/logr"

	"github.com/ardikabs/ircnotify/internal/config"
)

// New constructs the sink variant for a config. The config is expected to
// have passed validation already.
func New(cfg *config.Sink, log logr.Logger) (Sink, error) {
	switch cfg.Type {
	case config.SinkConsole:
		return NewConsole(cfg, log)
	case config.SinkFile:
		return NewFile(cfg, log)
	case config.SinkNtfy:
		return NewNtfy(cfg, log)
	case config.SinkWebhook:
		return NewWebhook(cfg, log)
	case config.SinkSlack:
		return NewSlack(cfg, log)
	case config.SinkTelegram:
		return NewTelegram(cfg, log)
	case config.SinkCustom:
		return NewNoop(cfg, log)
	default:
		return nil, fmt.Errorf("unknown sink type %q", cfg.Type)
	}
}
