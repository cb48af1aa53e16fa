/*
Copyright 2026 Ardika Saputro.
Licensed under the Apache License, Version 2.0.
*/

// Package message defines the runtime record that flows through the
// pipeline: one parsed log line plus everything learned about it on the way
// from the watcher to the sinks.
package message

import (
	"time"
)

// Target types.
const (
	TargetChannel = "channel"
	TargetQuery   = "query"
	TargetConsole = "console"
)

// Raw carries the original line and its unparsed timestamp string.
type Raw struct {
	Line            string `json:"line"`
	TimestampString string `json:"timestampString,omitempty"`
}

// Body is the parsed message payload.
type Body struct {
	Content string `json:"content"`
	Type    string `json:"type"`
	Raw     string `json:"raw,omitempty"`
}

// Sender describes who produced the line.
type Sender struct {
	Nickname string         `json:"nickname"`
	Username string         `json:"username,omitempty"`
	Hostname string         `json:"hostname,omitempty"`
	Realname string         `json:"realname,omitempty"`
	Modes    []string       `json:"modes,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Target is where the line appeared: a channel, a query, or the console.
type Target struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ClientRef identifies the client configuration that produced the context.
type ClientRef struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Name     string         `json:"name"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ServerRef identifies the server the line belongs to; fields fill in as the
// processor enriches the context.
type ServerRef struct {
	ID             string         `json:"id,omitempty"`
	Hostname       string         `json:"hostname,omitempty"`
	DisplayName    string         `json:"displayName,omitempty"`
	ClientNickname string         `json:"clientNickname,omitempty"`
	Network        string         `json:"network,omitempty"`
	Port           int            `json:"port,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// EventRef is the summary of the matched event attached for templating.
type EventRef struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	BaseEvent string `json:"baseEvent"`
	Group     string `json:"group,omitempty"`
}

// Context is the normalized record for one log line. It is created by the
// parser, enriched by the processor, borrowed by sinks for templating, and
// then dropped.
type Context struct {
	Raw       Raw            `json:"raw"`
	Message   *Body          `json:"message,omitempty"`
	Sender    *Sender        `json:"sender,omitempty"`
	Target    *Target        `json:"target,omitempty"`
	Client    ClientRef      `json:"client"`
	Server    ServerRef      `json:"server"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata"`
	Event     *EventRef      `json:"event,omitempty"`
}

// Clone returns a copy safe to enrich per event without leaking host
// overrides or event refs into sibling evaluations. Metadata maps are
// shallow-copied one level deep.
func (c *Context) Clone() *Context {
	out := *c
	if c.Message != nil {
		body := *c.Message
		out.Message = &body
	}
	if c.Sender != nil {
		sender := *c.Sender
		sender.Metadata = copyMap(c.Sender.Metadata)
		out.Sender = &sender
	}
	if c.Target != nil {
		target := *c.Target
		out.Target = &target
	}
	if c.Event != nil {
		event := *c.Event
		out.Event = &event
	}
	out.Client.Metadata = copyMap(c.Client.Metadata)
	out.Server.Metadata = copyMap(c.Server.Metadata)
	out.Metadata = copyMap(c.Metadata)
	return &out
}

func copyMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// AsMap renders the context as the plain map the template and filter engines
// resolve dotted paths against.
func (c *Context) AsMap() map[string]any {
	out := map[string]any{
		"raw": map[string]any{
			"line":            c.Raw.Line,
			"timestampString": c.Raw.TimestampString,
		},
		"client": map[string]any{
			"id":   c.Client.ID,
			"type": c.Client.Type,
			"name": c.Client.Name,
		},
		"timestamp": c.Timestamp.Format(time.RFC3339),
	}

	if c.Client.Metadata != nil {
		out["client"].(map[string]any)["metadata"] = c.Client.Metadata
	}

	server := map[string]any{}
	setNonEmpty(server, "id", c.Server.ID)
	setNonEmpty(server, "hostname", c.Server.Hostname)
	setNonEmpty(server, "displayName", c.Server.DisplayName)
	setNonEmpty(server, "clientNickname", c.Server.ClientNickname)
	setNonEmpty(server, "network", c.Server.Network)
	if c.Server.Port != 0 {
		server["port"] = float64(c.Server.Port)
	}
	if c.Server.Metadata != nil {
		server["metadata"] = c.Server.Metadata
	}
	out["server"] = server

	if c.Message != nil {
		msg := map[string]any{
			"content": c.Message.Content,
			"type":    c.Message.Type,
		}
		setNonEmpty(msg, "raw", c.Message.Raw)
		out["message"] = msg
	}

	if c.Sender != nil {
		sender := map[string]any{"nickname": c.Sender.Nickname}
		setNonEmpty(sender, "username", c.Sender.Username)
		setNonEmpty(sender, "hostname", c.Sender.Hostname)
		setNonEmpty(sender, "realname", c.Sender.Realname)
		if len(c.Sender.Modes) > 0 {
			modes := make([]any, len(c.Sender.Modes))
			for i, m := range c.Sender.Modes {
				modes[i] = m
			}
			sender["modes"] = modes
		}
		if c.Sender.Metadata != nil {
			sender["metadata"] = c.Sender.Metadata
		}
		out["sender"] = sender
	}

	if c.Target != nil {
		out["target"] = map[string]any{
			"name": c.Target.Name,
			"type": c.Target.Type,
		}
	}

	if c.Metadata != nil {
		out["metadata"] = c.Metadata
	} else {
		out["metadata"] = map[string]any{}
	}

	if c.Event != nil {
		event := map[string]any{
			"id":        c.Event.ID,
			"name":      c.Event.Name,
			"baseEvent": c.Event.BaseEvent,
		}
		setNonEmpty(event, "group", c.Event.Group)
		out["event"] = event
	}

	return out
}

func setNonEmpty(m map[string]any, key, value string) {
	if value != "" {
		m[key] = value
	}
}
