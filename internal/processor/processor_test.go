/*
Copyright 2026 Ardika Saputro.
Licensed under the Apache License, Version 2.0.
*/

package processor

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardikabs/ircnotify/internal/config"
	"github.com/ardikabs/ircnotify/internal/filter"
	"github.com/ardikabs/ircnotify/internal/message"
)

func boolPtr(v bool) *bool { return &v }

func libera() *config.Server {
	return &config.Server{
		ID:             "libera",
		Hostname:       "irc.libera.chat",
		DisplayName:    "Libera",
		ClientNickname: "amallin",
		Port:           6697,
		Users: map[string]config.UserInfo{
			"bob": {Realname: "Bob Example", Modes: []string{"v"}},
		},
	}
}

func consoleSink() *config.Sink {
	return &config.Sink{ID: "console", Type: config.SinkConsole}
}

func mentionEvent(t *testing.T) *config.Event {
	t.Helper()
	var filters filter.Group
	require.NoError(t, json.Unmarshal([]byte(`{
		"operator": "AND",
		"filters": [
			{"field": "message.content", "operator": "contains", "value": "{{server.clientNickname}}"}
		]
	}`), &filters))
	return &config.Event{
		ID:        "mention",
		Name:      "Mention",
		BaseEvent: config.BaseMessage,
		ServerIDs: []string{"*"},
		SinkIDs:   []string{"console"},
		Filters:   &filters,
	}
}

func privmsgCtx(content string) *message.Context {
	return &message.Context{
		Raw:     message.Raw{Line: content},
		Message: &message.Body{Content: content, Type: config.MessagePrivmsg},
		Sender:  &message.Sender{Nickname: "bob"},
		Target:  &message.Target{Name: "#go-nuts", Type: message.TargetChannel},
		Client:  message.ClientRef{ID: "textual", Type: "textlog"},
		Metadata: map[string]any{
			"serverIdentifier": "Libera",
		},
		Timestamp: time.Now(),
	}
}

func TestMentionScenario(t *testing.T) {
	p, err := New([]*config.Event{mentionEvent(t)}, []*config.Server{libera()}, []*config.Sink{consoleSink()}, logr.Discard())
	require.NoError(t, err)

	matches := p.Process(privmsgCtx("hi amallin"))
	require.Len(t, matches, 1)

	ctx := matches[0].Ctx
	assert.Equal(t, "libera", ctx.Server.ID)
	assert.Equal(t, "irc.libera.chat", ctx.Server.Hostname)
	assert.Equal(t, "Bob Example", ctx.Sender.Realname)
	assert.Equal(t, "mention", ctx.Event.ID)

	assert.Empty(t, p.Process(privmsgCtx("nothing relevant")))
}

func TestServerMatchOrder(t *testing.T) {
	byID := &config.Server{ID: "OFTC", Hostname: "irc.oftc.net"}
	byHost := &config.Server{ID: "rizon", Hostname: "irc.rizon.net"}
	servers := []*config.Server{libera(), byID, byHost}

	anyEvent := &config.Event{ID: "e", BaseEvent: config.BaseAny, ServerIDs: []string{"*"}, SinkIDs: nil}
	p, err := New([]*config.Event{anyEvent}, servers, nil, logr.Discard())
	require.NoError(t, err)

	// displayName beats everything.
	ctx := privmsgCtx("x")
	matches := p.Process(ctx)
	require.Len(t, matches, 1)
	assert.Equal(t, "libera", matches[0].Ctx.Server.ID)

	// id match is case-insensitive.
	ctx = privmsgCtx("x")
	ctx.Metadata["serverIdentifier"] = "oftc"
	matches = p.Process(ctx)
	require.Len(t, matches, 1)
	assert.Equal(t, "OFTC", matches[0].Ctx.Server.ID)

	// hostname fallback.
	ctx = privmsgCtx("x")
	delete(ctx.Metadata, "serverIdentifier")
	ctx.Metadata["serverHostname"] = "irc.rizon.net"
	matches = p.Process(ctx)
	require.Len(t, matches, 1)
	assert.Equal(t, "rizon", matches[0].Ctx.Server.ID)
}

func TestDisabledServerDropsContext(t *testing.T) {
	server := libera()
	server.Enabled = boolPtr(false)

	p, err := New([]*config.Event{mentionEvent(t)}, []*config.Server{server}, []*config.Sink{consoleSink()}, logr.Discard())
	require.NoError(t, err)

	assert.Empty(t, p.Process(privmsgCtx("hi amallin")))
}

func TestDisabledEventExcluded(t *testing.T) {
	event := mentionEvent(t)
	event.Enabled = boolPtr(false)

	p, err := New([]*config.Event{event}, []*config.Server{libera()}, []*config.Sink{consoleSink()}, logr.Discard())
	require.NoError(t, err)

	assert.Empty(t, p.Process(privmsgCtx("hi amallin")))
}

func TestChainDropOnDisabledSink(t *testing.T) {
	sink := consoleSink()
	sink.Enabled = boolPtr(false)

	p, err := New([]*config.Event{mentionEvent(t)}, []*config.Server{libera()}, []*config.Sink{sink}, logr.Discard())
	require.NoError(t, err)

	assert.Empty(t, p.Process(privmsgCtx("hi amallin")))
}

func TestBaseEventTable(t *testing.T) {
	tests := []struct {
		baseEvent   string
		messageType string
		matches     bool
	}{
		{config.BaseMessage, config.MessagePrivmsg, true},
		{config.BaseMessage, config.MessageNotice, true},
		{config.BaseMessage, config.MessageJoin, false},
		{config.BaseJoin, config.MessageJoin, true},
		{config.BaseConnect, config.MessageSystem, true},
		{config.BaseDisconnect, config.MessageSystem, true},
		{config.BaseAny, config.MessageUnknown, true},
		{config.BaseAny, config.MessagePrivmsg, true},
		{config.BaseTopic, config.MessageMode, false},
	}

	for _, tt := range tests {
		t.Run(tt.baseEvent+"/"+tt.messageType, func(t *testing.T) {
			event := &config.Event{ID: "e", BaseEvent: tt.baseEvent, ServerIDs: []string{"*"}}
			p, err := New([]*config.Event{event}, nil, nil, logr.Discard())
			require.NoError(t, err)

			ctx := privmsgCtx("x")
			ctx.Message.Type = tt.messageType
			assert.Equal(t, tt.matches, len(p.Process(ctx)) == 1)
		})
	}
}

func TestServerScope(t *testing.T) {
	event := &config.Event{ID: "e", BaseEvent: config.BaseMessage, ServerIDs: []string{"libera"}}
	p, err := New([]*config.Event{event}, []*config.Server{libera()}, nil, logr.Discard())
	require.NoError(t, err)

	// Context resolving to libera matches.
	require.Len(t, p.Process(privmsgCtx("x")), 1)

	// Context with no server match does not.
	ctx := privmsgCtx("x")
	ctx.Metadata = map[string]any{}
	assert.Empty(t, p.Process(ctx))
}

func TestAllMatchingEventsFire(t *testing.T) {
	high := &config.Event{ID: "high", BaseEvent: config.BaseMessage, ServerIDs: []string{"*"}, Priority: 10}
	low := &config.Event{ID: "low", BaseEvent: config.BaseMessage, ServerIDs: []string{"*"}, Priority: 1}

	p, err := New([]*config.Event{low, high}, []*config.Server{libera()}, nil, logr.Discard())
	require.NoError(t, err)

	matches := p.Process(privmsgCtx("x"))
	require.Len(t, matches, 2)
	assert.Equal(t, "high", matches[0].Event.ID)
	assert.Equal(t, "low", matches[1].Event.ID)
}

func TestHostOverride(t *testing.T) {
	event := &config.Event{
		ID:        "e",
		BaseEvent: config.BaseMessage,
		ServerIDs: []string{"*"},
		Metadata: map[string]any{
			"host": map[string]any{
				"displayName": "Overridden",
				"network":     "net-{{sender.nickname}}",
			},
		},
	}

	p, err := New([]*config.Event{event}, []*config.Server{libera()}, nil, logr.Discard())
	require.NoError(t, err)

	matches := p.Process(privmsgCtx("x"))
	require.Len(t, matches, 1)
	assert.Equal(t, "Overridden", matches[0].Ctx.Server.DisplayName)
	assert.Equal(t, "net-bob", matches[0].Ctx.Server.Network)
	// Untouched fields survive the merge.
	assert.Equal(t, "irc.libera.chat", matches[0].Ctx.Server.Hostname)
}
