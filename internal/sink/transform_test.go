/*
Copyright 2026 Ardika Saputro.
Licensed under the Apache License, Version 2.0.
*/

package sink

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardikabs/ircnotify/internal/config"
	"github.com/ardikabs/ircnotify/internal/filter"
)

type recorded struct {
	method      string
	contentType string
	headers     http.Header
	body        []byte
}

func recordingServer(t *testing.T) (*httptest.Server, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		calls = append(calls, recorded{
			method:      r.Method,
			contentType: r.Header.Get("Content-Type"),
			headers:     r.Header.Clone(),
			body:        body,
		})
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func webhookSink(t *testing.T, srv *httptest.Server, transforms []config.PayloadTransform) *Webhook {
	t.Helper()
	s, err := NewWebhook(&config.Sink{
		ID:                "hook",
		Type:              config.SinkWebhook,
		Config:            map[string]any{"url": srv.URL},
		PayloadTransforms: transforms,
	}, logr.Discard())
	require.NoError(t, err)
	return s
}

func TestWebhookDefaultJSONBody(t *testing.T) {
	srv, calls := recordingServer(t)
	s := webhookSink(t, srv, nil)

	require.NoError(t, s.Send(context.Background(), deliveryContext(), mentionCfg()))
	require.Len(t, *calls, 1)

	call := (*calls)[0]
	assert.Equal(t, http.MethodPost, call.method)
	assert.Equal(t, "application/json", call.contentType)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(call.body, &payload))
	assert.Equal(t, "Mention", payload["title"])
	assert.Equal(t, "hi amallin", payload["body"])
	assert.Equal(t, "mention", payload["event"])
	assert.Equal(t, "Libera", payload["server"])
}

func TestWebhookJSONTransformDeepTemplating(t *testing.T) {
	srv, calls := recordingServer(t)
	s := webhookSink(t, srv, []config.PayloadTransform{
		{
			Name:       "discord",
			BodyFormat: config.BodyJSON,
			JSONTemplate: map[string]any{
				"content": "{{title}}",
				"embeds": []any{
					map[string]any{"description": "{{body}}", "footer": "{{context.server.hostname}}"},
				},
				"tts": false,
			},
			Headers: map[string]config.HeaderValue{
				"X-Static":   {Literal: "fixed"},
				"X-Rendered": {Template: "event={{event.id}}"},
			},
		},
	})

	require.NoError(t, s.Send(context.Background(), deliveryContext(), mentionCfg()))
	require.Len(t, *calls, 1)

	call := (*calls)[0]
	assert.Equal(t, "fixed", call.headers.Get("X-Static"))
	assert.Equal(t, "event=mention", call.headers.Get("X-Rendered"))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(call.body, &payload))
	assert.Equal(t, "Mention", payload["content"])
	embeds := payload["embeds"].([]any)
	assert.Equal(t, "hi amallin", embeds[0].(map[string]any)["description"])
	assert.Equal(t, "irc.libera.chat", embeds[0].(map[string]any)["footer"])
	assert.Equal(t, false, payload["tts"])
}

func TestWebhookFormTransform(t *testing.T) {
	srv, calls := recordingServer(t)
	s := webhookSink(t, srv, []config.PayloadTransform{
		{
			Name:       "form",
			BodyFormat: config.BodyForm,
			FormTemplate: map[string]string{
				"title": "{{title}}",
				"who":   "{{context.sender.nickname}}",
			},
		},
	})

	require.NoError(t, s.Send(context.Background(), deliveryContext(), mentionCfg()))
	require.Len(t, *calls, 1)

	call := (*calls)[0]
	assert.Equal(t, "application/x-www-form-urlencoded", call.contentType)
	form, err := url.ParseQuery(string(call.body))
	require.NoError(t, err)
	assert.Equal(t, "Mention", form.Get("title"))
	assert.Equal(t, "bob", form.Get("who"))
}

func TestWebhookTransformSelection(t *testing.T) {
	queryCondition := &filter.Group{
		Operator: "AND",
		Filters: []filter.Node{
			{Leaf: &filter.Config{Field: "context.target.type", Operator: filter.OpEquals, Value: "query"}},
		},
	}

	transforms := []config.PayloadTransform{
		{
			Name:         "dm",
			Priority:     10,
			Condition:    queryCondition,
			BodyFormat:   config.BodyText,
			TextTemplate: "dm: {{body}}",
		},
		{
			Name:         "catch-all",
			BodyFormat:   config.BodyText,
			TextTemplate: "default: {{body}}",
		},
	}

	t.Run("condition false falls through to catch-all", func(t *testing.T) {
		srv, calls := recordingServer(t)
		s := webhookSink(t, srv, transforms)
		require.NoError(t, s.Send(context.Background(), deliveryContext(), mentionCfg()))
		require.Len(t, *calls, 1)
		assert.Equal(t, "default: hi amallin", string((*calls)[0].body))
	})

	t.Run("condition true selects the transform", func(t *testing.T) {
		srv, calls := recordingServer(t)
		s := webhookSink(t, srv, transforms)
		ctx := deliveryContext()
		ctx.Target.Type = "query"
		require.NoError(t, s.Send(context.Background(), ctx, mentionCfg()))
		require.Len(t, *calls, 1)
		assert.Equal(t, "dm: hi amallin", string((*calls)[0].body))
	})

	t.Run("event override names the transform explicitly", func(t *testing.T) {
		srv, calls := recordingServer(t)
		s := webhookSink(t, srv, transforms)
		event := mentionCfg()
		event.Metadata = map[string]any{
			"sink": map[string]any{
				"hook": map[string]any{"transform": "dm"},
			},
		}
		require.NoError(t, s.Send(context.Background(), deliveryContext(), event))
		require.Len(t, *calls, 1)
		assert.Equal(t, "dm: hi amallin", string((*calls)[0].body))
	})
}

func TestWebhookCustomBodyRequiresPayload(t *testing.T) {
	srv, calls := recordingServer(t)
	s := webhookSink(t, srv, []config.PayloadTransform{
		{Name: "custom", BodyFormat: config.BodyCustom},
	})

	// Without a payload the delivery fails without an HTTP call.
	err := s.Send(context.Background(), deliveryContext(), mentionCfg())
	require.Error(t, err)
	assert.Empty(t, *calls)

	event := mentionCfg()
	event.Metadata = map[string]any{"payload": "raw {{title}}"}
	require.NoError(t, s.Send(context.Background(), deliveryContext(), event))
	require.Len(t, *calls, 1)
	assert.Equal(t, "raw Mention", string((*calls)[0].body))
}

func TestNtfyHeadersSanitized(t *testing.T) {
	srv, calls := recordingServer(t)

	s, err := NewNtfy(&config.Sink{
		ID:   "ntfy",
		Type: config.SinkNtfy,
		Config: map[string]any{
			"endpoint": srv.URL,
			"topic":    "irc",
			"priority": "high",
		},
		Template: &config.SinkTemplate{Title: "🔔 {{sender.nickname}} says"},
	}, logr.Discard())
	require.NoError(t, err)

	require.NoError(t, s.Send(context.Background(), deliveryContext(), mentionCfg()))
	require.Len(t, *calls, 1)

	call := (*calls)[0]
	assert.Equal(t, "bob says", call.headers.Get("Title"))
	assert.Equal(t, "high", call.headers.Get("Priority"))
	assert.Equal(t, "hi amallin", string(call.body))
}

func TestDeprecatedFlatSinkMetadataStillSelectsTransform(t *testing.T) {
	srv, calls := recordingServer(t)
	s := webhookSink(t, srv, []config.PayloadTransform{
		{Name: "named", BodyFormat: config.BodyText, TextTemplate: "named: {{body}}"},
		{Name: "other", BodyFormat: config.BodyText, TextTemplate: "other: {{body}}", Priority: 5},
	})

	event := mentionCfg()
	// Old configs kept overrides directly under metadata[sinkID].
	event.Metadata = map[string]any{
		"hook": map[string]any{"transform": "named"},
	}

	require.NoError(t, s.Send(context.Background(), deliveryContext(), event))
	require.Len(t, *calls, 1)
	assert.Equal(t, "named: hi amallin", string((*calls)[0].body))
}
