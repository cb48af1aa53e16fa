/*
Copyright 2026 Ardika Saputro.
Licensed under the Apache License, Version 2.0.
*/

package filter

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evalContext() map[string]any {
	return map[string]any{
		"message": map[string]any{
			"content": "hi amallin, meeting at 5",
			"type":    "privmsg",
		},
		"sender": map[string]any{
			"nickname": "bob",
			"modes":    []any{"o", "v"},
		},
		"server": map[string]any{
			"clientNickname": "amallin",
			"port":           float64(6697),
		},
		"target": map[string]any{
			"type": "query",
		},
	}
}

func mustCompile(t *testing.T, raw string) *Compiled {
	t.Helper()
	var g Group
	require.NoError(t, json.Unmarshal([]byte(raw), &g))
	compiled, err := Compile(&g)
	require.NoError(t, err)
	return compiled
}

func TestOperators(t *testing.T) {
	ctx := evalContext()

	tests := []struct {
		name    string
		group   string
		matched bool
	}{
		{
			"equals",
			`{"operator":"AND","filters":[{"field":"message.type","operator":"equals","value":"privmsg"}]}`,
			true,
		},
		{
			"notEquals",
			`{"operator":"AND","filters":[{"field":"message.type","operator":"notEquals","value":"notice"}]}`,
			true,
		},
		{
			"contains substring",
			`{"operator":"AND","filters":[{"field":"message.content","operator":"contains","value":"meeting"}]}`,
			true,
		},
		{
			"contains with template operand",
			`{"operator":"AND","filters":[{"field":"message.content","operator":"contains","value":"{{server.clientNickname}}"}]}`,
			true,
		},
		{
			"contains array membership",
			`{"operator":"AND","filters":[{"field":"sender.modes","operator":"contains","value":"o"}]}`,
			true,
		},
		{
			"contains on non-string non-array is false",
			`{"operator":"AND","filters":[{"field":"server.port","operator":"contains","value":"6"}]}`,
			false,
		},
		{
			"notContains on non-string non-array is true",
			`{"operator":"AND","filters":[{"field":"server.port","operator":"notContains","value":"6"}]}`,
			true,
		},
		{
			"matches",
			`{"operator":"AND","filters":[{"field":"sender.nickname","operator":"matches","pattern":"^b.b$"}]}`,
			true,
		},
		{
			"matches case-insensitive flag",
			`{"operator":"AND","filters":[{"field":"sender.nickname","operator":"matches","pattern":"^BOB$","flags":"i"}]}`,
			true,
		},
		{
			"matches on non-string is false",
			`{"operator":"AND","filters":[{"field":"sender.modes","operator":"matches","pattern":"o"}]}`,
			false,
		},
		{
			"exists",
			`{"operator":"AND","filters":[{"field":"target.type","operator":"exists"}]}`,
			true,
		},
		{
			"notExists on missing field",
			`{"operator":"AND","filters":[{"field":"target.name","operator":"notExists"}]}`,
			true,
		},
		{
			"in",
			`{"operator":"AND","filters":[{"field":"message.type","operator":"in","value":["privmsg","notice"]}]}`,
			true,
		},
		{
			"notIn",
			`{"operator":"AND","filters":[{"field":"message.type","operator":"notIn","value":["join","part"]}]}`,
			true,
		},
		{
			"in with non-array operand is false",
			`{"operator":"AND","filters":[{"field":"message.type","operator":"in","value":"privmsg"}]}`,
			false,
		},
		{
			"equals on missing field is false",
			`{"operator":"AND","filters":[{"field":"no.such","operator":"equals","value":"x"}]}`,
			false,
		},
		{
			"notEquals on missing field is true",
			`{"operator":"AND","filters":[{"field":"no.such","operator":"notEquals","value":"x"}]}`,
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.matched, mustCompile(t, tt.group).Evaluate(ctx))
		})
	}
}

func TestNestedGroups(t *testing.T) {
	ctx := evalContext()

	compiled := mustCompile(t, `{
		"operator": "OR",
		"filters": [
			{"field": "message.type", "operator": "equals", "value": "notice"},
			{
				"operator": "AND",
				"filters": [
					{"field": "target.type", "operator": "equals", "value": "query"},
					{"field": "message.content", "operator": "contains", "value": "{{server.clientNickname}}"}
				]
			}
		]
	}`)

	assert.True(t, compiled.Evaluate(ctx))
}

func TestShortCircuit(t *testing.T) {
	// The second leaf references a field whose lookup would succeed; the
	// tree is arranged so short-circuiting makes its result irrelevant.
	ctx := evalContext()

	and := mustCompile(t, `{
		"operator": "AND",
		"filters": [
			{"field": "message.type", "operator": "equals", "value": "notice"},
			{"field": "sender.nickname", "operator": "equals", "value": "bob"}
		]
	}`)
	assert.False(t, and.Evaluate(ctx))

	or := mustCompile(t, `{
		"operator": "OR",
		"filters": [
			{"field": "sender.nickname", "operator": "equals", "value": "bob"},
			{"field": "message.type", "operator": "equals", "value": "notice"}
		]
	}`)
	assert.True(t, or.Evaluate(ctx))
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty group", `{"operator":"AND","filters":[]}`},
		{"bad group operator", `{"operator":"XOR","filters":[{"field":"a","operator":"exists"}]}`},
		{"unknown leaf operator", `{"operator":"AND","filters":[{"field":"a","operator":"startsWith","value":"x"}]}`},
		{"invalid regex", `{"operator":"AND","filters":[{"field":"a","operator":"matches","pattern":"["}]}`},
		{"matches without pattern", `{"operator":"AND","filters":[{"field":"a","operator":"matches"}]}`},
		{"missing field", `{"operator":"AND","filters":[{"operator":"exists"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var g Group
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &g))
			_, err := Compile(&g)
			assert.Error(t, err)
		})
	}
}

func TestNodeRoundTrip(t *testing.T) {
	raw := `{"operator":"AND","filters":[{"field":"a.b","operator":"exists"},{"operator":"OR","filters":[{"field":"c","operator":"equals","value":1}]}]}`
	var g Group
	require.NoError(t, json.Unmarshal([]byte(raw), &g))
	require.Len(t, g.Filters, 2)
	assert.NotNil(t, g.Filters[0].Leaf)
	assert.NotNil(t, g.Filters[1].Group)

	out, err := json.Marshal(&g)
	require.NoError(t, err)

	var again Group
	require.NoError(t, json.Unmarshal(out, &again))
	assert.Equal(t, g.Operator, again.Operator)
	assert.Len(t, again.Filters, 2)
}
