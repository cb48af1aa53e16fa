/*
Copyright 2026 Ardika Saputro.
Licensed under the Apache License, Version 2.0.
*/

// Package processor enriches parsed message contexts with server and user
// metadata and evaluates them against the configured events. It works on an
// immutable snapshot of enabled entities; reloads swap the whole processor.
package processor

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"dario.cat/mergo"
	"github.com/go-logr/logr"
	"github.com/samber/lo"

	"github.com/ardikabs/ircnotify/internal/config"
	"github.com/ardikabs/ircnotify/internal/filter"
	"github.com/ardikabs/ircnotify/internal/message"
	"github.com/ardikabs/ircnotify/internal/template"
)

// baseEventTypes maps each base event to the message types it covers.
var baseEventTypes = map[string][]string{
	config.BaseMessage:    {config.MessagePrivmsg, config.MessageNotice},
	config.BaseJoin:       {config.MessageJoin},
	config.BasePart:       {config.MessagePart},
	config.BaseQuit:       {config.MessageQuit},
	config.BaseNick:       {config.MessageNick},
	config.BaseKick:       {config.MessageKick},
	config.BaseMode:       {config.MessageMode},
	config.BaseTopic:      {config.MessageTopic},
	config.BaseConnect:    {config.MessageSystem},
	config.BaseDisconnect: {config.MessageSystem},
	config.BaseAny: {
		config.MessagePrivmsg, config.MessageNotice, config.MessageJoin,
		config.MessagePart, config.MessageQuit, config.MessageNick,
		config.MessageKick, config.MessageMode, config.MessageTopic,
		config.MessageSystem, config.MessageUnknown,
	},
}

// Match is one event that fired for a context, with the context enriched
// for that event (host overrides applied, event summary attached).
type Match struct {
	Event *config.Event
	Ctx   *message.Context
}

type compiledEvent struct {
	cfg     *config.Event
	filters *filter.Compiled
}

// Processor holds a snapshot of enabled events, all servers, and sink
// enablement.
type Processor struct {
	log     logr.Logger
	events  []compiledEvent
	servers []*config.Server
	sinks   map[string]*config.Sink
}

// New compiles a processor snapshot. Disabled events are excluded; disabled
// servers stay in the snapshot so contexts resolving to them can be dropped.
func New(events []*config.Event, servers []*config.Server, sinks []*config.Sink, log logr.Logger) (*Processor, error) {
	p := &Processor{
		log:     log.WithName("processor"),
		servers: servers,
		sinks:   lo.SliceToMap(sinks, func(s *config.Sink) (string, *config.Sink) { return s.ID, s }),
	}

	for _, event := range events {
		if !event.IsEnabled() {
			continue
		}
		ce := compiledEvent{cfg: event}
		if event.Filters != nil {
			compiled, err := filter.Compile(event.Filters)
			if err != nil {
				return nil, fmt.Errorf("event %s: %w", event.ID, err)
			}
			ce.filters = compiled
		}
		p.events = append(p.events, ce)
	}
	sort.SliceStable(p.events, func(i, j int) bool {
		return p.events[i].cfg.Priority > p.events[j].cfg.Priority
	})

	return p, nil
}

// Process enriches one context and returns every matching event, highest
// priority first. A nil result means the context was dropped.
func (p *Processor) Process(ctx *message.Context) []Match {
	if ctx == nil || ctx.Message == nil {
		return nil
	}

	server := p.matchServer(ctx)
	if server != nil {
		if !server.IsEnabled() {
			p.log.V(1).Info("dropping context for disabled server", "server", server.ID)
			return nil
		}
		enrichFromServer(ctx, server)
	}

	var matches []Match
	for _, ce := range p.events {
		event := ce.cfg
		if !p.covers(event, ctx) {
			continue
		}

		eventCtx := ctx.Clone()
		eventCtx.Event = &message.EventRef{
			ID:        event.ID,
			Name:      event.Name,
			BaseEvent: event.BaseEvent,
			Group:     event.Group,
		}
		applyHostOverride(eventCtx, event)

		if ce.filters != nil && !ce.filters.Evaluate(eventCtx.AsMap()) {
			continue
		}

		// Chain drop: one disabled sink in the route disables the whole
		// event, not just that delivery.
		if p.anySinkDisabled(event) {
			p.log.V(1).Info("dropping event routed through a disabled sink", "event", event.ID)
			continue
		}

		matches = append(matches, Match{Event: event, Ctx: eventCtx})
	}
	return matches
}

// matchServer resolves the context to a configured server: displayName
// against the path-derived identifier first, then id (case-insensitive),
// then hostname against the discovered hostname.
func (p *Processor) matchServer(ctx *message.Context) *config.Server {
	identifier, _ := ctx.Metadata["serverIdentifier"].(string)
	hostname, _ := ctx.Metadata["serverHostname"].(string)

	if identifier != "" {
		for _, s := range p.servers {
			if s.DisplayName != "" && s.DisplayName == identifier {
				return s
			}
		}
		for _, s := range p.servers {
			if strings.EqualFold(s.ID, identifier) {
				return s
			}
		}
	}
	if hostname != "" {
		for _, s := range p.servers {
			if s.Hostname == hostname {
				return s
			}
		}
	}
	return nil
}

func enrichFromServer(ctx *message.Context, server *config.Server) {
	ctx.Server.ID = server.ID
	ctx.Server.Hostname = server.Hostname
	ctx.Server.DisplayName = server.DisplayName
	ctx.Server.ClientNickname = server.ClientNickname
	ctx.Server.Network = server.Network
	ctx.Server.Port = server.Port
	if server.Metadata != nil {
		if ctx.Server.Metadata == nil {
			ctx.Server.Metadata = map[string]any{}
		}
		for k, v := range server.Metadata {
			ctx.Server.Metadata[k] = v
		}
	}

	if ctx.Sender == nil || ctx.Sender.Nickname == "" {
		return
	}
	user, ok := server.Users[ctx.Sender.Nickname]
	if !ok {
		return
	}
	if user.Realname != "" {
		ctx.Sender.Realname = user.Realname
	}
	if len(user.Modes) > 0 {
		ctx.Sender.Modes = user.Modes
	}
	if user.Metadata != nil {
		if ctx.Metadata == nil {
			ctx.Metadata = map[string]any{}
		}
		for k, v := range user.Metadata {
			ctx.Metadata[k] = v
		}
	}
}

// covers checks the base-event table and the server scope.
func (p *Processor) covers(event *config.Event, ctx *message.Context) bool {
	if !lo.Contains(baseEventTypes[event.BaseEvent], ctx.Message.Type) {
		return false
	}
	if lo.Contains(event.ServerIDs, config.WildcardServerID) {
		return true
	}
	return ctx.Server.ID != "" && lo.Contains(event.ServerIDs, ctx.Server.ID)
}

// applyHostOverride merges the event's template-resolved metadata.host into
// the context's server, scoped to this event's evaluation and templating.
func applyHostOverride(ctx *message.Context, event *config.Event) {
	override := event.HostOverride()
	if override == nil {
		return
	}

	resolved, _ := template.ProcessValue(override, ctx.AsMap()).(map[string]any)
	if resolved == nil {
		return
	}

	var ref message.ServerRef
	raw, err := json.Marshal(resolved)
	if err != nil {
		return
	}
	if err := json.Unmarshal(raw, &ref); err != nil {
		return
	}
	_ = mergo.Merge(&ctx.Server, ref, mergo.WithOverride)
}

func (p *Processor) anySinkDisabled(event *config.Event) bool {
	for _, id := range event.SinkIDs {
		if sink, ok := p.sinks[id]; ok && !sink.IsEnabled() {
			return true
		}
	}
	return false
}
