/*
Copyright 2026 Ardika Saputro.
Licensed under the Apache License, Version 2.0.
*/

package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext() map[string]any {
	return map[string]any{
		"server": map[string]any{
			"displayName":    "Libera",
			"clientNickname": "amallin",
			"port":           float64(6697),
		},
		"sender": map[string]any{
			"nickname": "bob",
		},
		"message": map[string]any{
			"content": "hi amallin",
		},
		"tags":  []any{"irc", "alert"},
		"empty": nil,
	}
}

func TestProcess(t *testing.T) {
	ctx := testContext()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain string untouched", "no variables here", "no variables here"},
		{"single substitution", "{{sender.nickname}}", "bob"},
		{"embedded substitution", "[{{server.displayName}}] {{sender.nickname}}", "[Libera] bob"},
		{"numeric value", "port {{server.port}}", "port 6697"},
		{"array index", "first tag: {{tags.0}}", "first tag: irc"},
		{"missing path keeps literal", "hello {{server.network}}", "hello {{server.network}}"},
		{"missing intermediate keeps literal", "{{no.such.path}}", "{{no.such.path}}"},
		{"null value keeps literal", "{{empty}}", "{{empty}}"},
		{"out of range index keeps literal", "{{tags.9}}", "{{tags.9}}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Process(tt.input, ctx))
		})
	}
}

func TestProcessCaseSensitive(t *testing.T) {
	ctx := testContext()
	assert.Equal(t, "{{Server.displayName}}", Process("{{Server.displayName}}", ctx))
}

func TestProcessIdempotentWhenFullyResolved(t *testing.T) {
	ctx := testContext()
	rendered := Process("[{{server.displayName}}] {{message.content}}", ctx)
	require.False(t, HasVariables(rendered))
	assert.Equal(t, rendered, Process(rendered, ctx))
}

func TestProcessValueDeep(t *testing.T) {
	ctx := testContext()
	in := map[string]any{
		"title": "{{server.displayName}}",
		"nested": map[string]any{
			"who": "{{sender.nickname}}",
			"n":   float64(3),
		},
		"list": []any{"{{message.content}}", true},
	}

	out, ok := ProcessValue(in, ctx).(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Libera", out["title"])
	assert.Equal(t, "bob", out["nested"].(map[string]any)["who"])
	assert.Equal(t, float64(3), out["nested"].(map[string]any)["n"])
	assert.Equal(t, "hi amallin", out["list"].([]any)[0])
	assert.Equal(t, true, out["list"].([]any)[1])
}

func TestHasVariables(t *testing.T) {
	assert.True(t, HasVariables("{{a.b}}"))
	assert.False(t, HasVariables("a.b"))
	assert.False(t, HasVariables("{a.b}"))
}

func TestExtractVariables(t *testing.T) {
	paths := ExtractVariables("{{a}} and {{b.c}} and {{a}}")
	assert.Equal(t, []string{"a", "b.c", "a"}, paths)
	assert.Nil(t, ExtractVariables("nothing"))
}

func TestResolve(t *testing.T) {
	ctx := testContext()

	v, ok := Resolve("server.displayName", ctx)
	require.True(t, ok)
	assert.Equal(t, "Libera", v)

	_, ok = Resolve("server.missing", ctx)
	assert.False(t, ok)

	_, ok = Resolve("empty", ctx)
	assert.False(t, ok)

	v, ok = Resolve("tags.1", ctx)
	require.True(t, ok)
	assert.Equal(t, "alert", v)
}
