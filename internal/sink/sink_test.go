/*
Copyright 2026 Ardika Saputro.
Licensed under the Apache License, Version 2.0.
*/

package sink

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardikabs/ircnotify/internal/config"
	"github.com/ardikabs/ircnotify/internal/message"
)

func deliveryContext() *message.Context {
	return &message.Context{
		Raw:     message.Raw{Line: "[12:00:05] <bob> hi amallin"},
		Message: &message.Body{Content: "hi amallin", Type: config.MessagePrivmsg},
		Sender:  &message.Sender{Nickname: "bob"},
		Target:  &message.Target{Name: "#go-nuts", Type: message.TargetChannel},
		Client:  message.ClientRef{ID: "textual", Type: "textlog"},
		Server: message.ServerRef{
			ID:          "libera",
			Hostname:    "irc.libera.chat",
			DisplayName: "Libera",
		},
		Timestamp: time.Now(),
		Metadata:  map[string]any{},
		Event:     &message.EventRef{ID: "mention", Name: "Mention", BaseEvent: config.BaseMessage},
	}
}

func mentionCfg() *config.Event {
	return &config.Event{
		ID:        "mention",
		Name:      "Mention",
		BaseEvent: config.BaseMessage,
		ServerIDs: []string{"*"},
		SinkIDs:   []string{"console"},
	}
}

func TestConsoleRendersDefaultTemplates(t *testing.T) {
	s, err := NewConsole(&config.Sink{ID: "console", Type: config.SinkConsole}, logr.Discard())
	require.NoError(t, err)
	var buf bytes.Buffer
	s.out = &buf

	require.NoError(t, s.Send(context.Background(), deliveryContext(), mentionCfg()))
	assert.Equal(t, "[Mention] hi amallin\n", buf.String())
}

func TestConsoleSinkTemplateChain(t *testing.T) {
	s, err := NewConsole(&config.Sink{
		ID:   "console",
		Type: config.SinkConsole,
		Template: &config.SinkTemplate{
			Title: "[{{server.displayName}}] {{sender.nickname}}",
			Body:  "{{message.content}}",
		},
	}, logr.Discard())
	require.NoError(t, err)
	var buf bytes.Buffer
	s.out = &buf

	require.NoError(t, s.Send(context.Background(), deliveryContext(), mentionCfg()))
	assert.Equal(t, "[[Libera] bob] hi amallin\n", buf.String())
}

func TestEventOverrideBeatsSinkTemplate(t *testing.T) {
	s, err := NewConsole(&config.Sink{
		ID:       "console",
		Type:     config.SinkConsole,
		Template: &config.SinkTemplate{Title: "from sink"},
	}, logr.Discard())
	require.NoError(t, err)
	var buf bytes.Buffer
	s.out = &buf

	event := mentionCfg()
	event.Metadata = map[string]any{
		"sink": map[string]any{
			"console": map[string]any{"title": "from event {{target.name}}"},
		},
	}

	require.NoError(t, s.Send(context.Background(), deliveryContext(), event))
	assert.Equal(t, "[from event #go-nuts] hi amallin\n", buf.String())
}

func TestAllowedMetadataBoundsOverrides(t *testing.T) {
	s, err := NewConsole(&config.Sink{
		ID:              "console",
		Type:            config.SinkConsole,
		AllowedMetadata: []string{"body"},
	}, logr.Discard())
	require.NoError(t, err)
	var buf bytes.Buffer
	s.out = &buf

	event := mentionCfg()
	event.Metadata = map[string]any{
		"sink": map[string]any{
			"console": map[string]any{
				"title": "blocked override",
				"body":  "allowed override",
			},
		},
	}

	require.NoError(t, s.Send(context.Background(), deliveryContext(), event))
	assert.Equal(t, "[Mention] allowed override\n", buf.String())
}

func TestRateLimitPerMinute(t *testing.T) {
	limiter := newRateLimiter(&config.RateLimit{MaxPerMinute: 2})
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	current := base
	limiter.now = func() time.Time { return current }

	assert.True(t, limiter.allow())
	current = current.Add(2 * time.Second)
	assert.True(t, limiter.allow())
	current = current.Add(2 * time.Second)
	assert.False(t, limiter.allow())

	// Window slides: a minute later the first two stamps expire.
	current = base.Add(65 * time.Second)
	assert.True(t, limiter.allow())
}

func TestRateLimitPerHour(t *testing.T) {
	limiter := newRateLimiter(&config.RateLimit{MaxPerHour: 2})
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	current := base
	limiter.now = func() time.Time { return current }

	assert.True(t, limiter.allow())
	current = current.Add(10 * time.Minute)
	assert.True(t, limiter.allow())
	current = current.Add(10 * time.Minute)
	assert.False(t, limiter.allow())

	current = base.Add(61 * time.Minute)
	assert.True(t, limiter.allow())
}

func TestRateLimitSkipsDelivery(t *testing.T) {
	s, err := NewConsole(&config.Sink{
		ID:        "console",
		Type:      config.SinkConsole,
		RateLimit: &config.RateLimit{MaxPerMinute: 2},
	}, logr.Discard())
	require.NoError(t, err)
	var buf bytes.Buffer
	s.out = &buf

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Send(context.Background(), deliveryContext(), mentionCfg()))
	}
	assert.Equal(t, "[Mention] hi amallin\n[Mention] hi amallin\n", buf.String())
}

func TestQuietHoursSuppression(t *testing.T) {
	window, err := newQuietWindow(&config.QuietHours{
		Start:    "0 22 * * *",
		End:      "0 7 * * *",
		Timezone: "UTC",
	})
	require.NoError(t, err)

	window.now = func() time.Time { return time.Date(2026, 8, 1, 23, 30, 0, 0, time.UTC) }
	assert.True(t, window.suppressed())

	window.now = func() time.Time { return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) }
	assert.False(t, window.suppressed())

	window.now = func() time.Time { return time.Date(2026, 8, 2, 3, 0, 0, 0, time.UTC) }
	assert.True(t, window.suppressed())
}

func TestFileSinkAppends(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notify", "out.log")

	s, err := NewFile(&config.Sink{
		ID:     "file",
		Type:   config.SinkFile,
		Config: map[string]any{"path": path},
	}, logr.Discard())
	require.NoError(t, err)
	require.NoError(t, s.Initialize(context.Background()))

	require.NoError(t, s.Send(context.Background(), deliveryContext(), mentionCfg()))
	require.NoError(t, s.Send(context.Background(), deliveryContext(), mentionCfg()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[Mention] hi amallin\n[Mention] hi amallin\n", string(data))
}

func TestFactory(t *testing.T) {
	tests := []struct {
		sinkType string
		cfg      map[string]any
	}{
		{config.SinkConsole, nil},
		{config.SinkFile, map[string]any{"path": "/tmp/out.log"}},
		{config.SinkNtfy, map[string]any{"endpoint": "https://ntfy.sh", "topic": "irc"}},
		{config.SinkWebhook, map[string]any{"url": "https://example.com/hook"}},
		{config.SinkSlack, map[string]any{"webhookUrl": "https://hooks.slack.com/x"}},
		{config.SinkTelegram, map[string]any{"token": "t", "chatId": "42"}},
		{config.SinkCustom, nil},
	}

	for _, tt := range tests {
		t.Run(tt.sinkType, func(t *testing.T) {
			s, err := New(&config.Sink{ID: "s", Type: tt.sinkType, Config: tt.cfg}, logr.Discard())
			require.NoError(t, err)
			assert.Equal(t, "s", s.ID())
		})
	}

	_, err := New(&config.Sink{ID: "s", Type: "pigeon"}, logr.Discard())
	assert.Error(t, err)
}

func TestAsciiSanitize(t *testing.T) {
	assert.Equal(t, "Mention from bob", asciiSanitize("Mention from bob"))
	assert.Equal(t, "alert ", asciiSanitize("alert 🔔"))
	assert.Equal(t, "nonl", asciiSanitize("no\nnl"))
}
