/*
Copyright 2026 Ardika Saputro.
Licensed under the Apache License, Version 2.0.
*/

package config

import (
	"encoding/json"
	"os"
	"regexp"
	"strings"
)

// ${VAR} and ${VAR:-default}; the legacy bare $VAR form is matched last so
// braces always win.
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// ExpandString substitutes environment variable references in s. A ${VAR}
// or $VAR reference without a value in the environment is an EnvError; the
// ${VAR:-default} form falls back to the default instead.
func ExpandString(s string) (string, error) {
	if !strings.Contains(s, "$") {
		return s, nil
	}

	var expandErr error
	out := envPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envPattern.FindStringSubmatch(match)
		name := groups[1]
		if name == "" {
			name = groups[4]
		}

		if value, ok := os.LookupEnv(name); ok && value != "" {
			return value
		}
		if groups[2] != "" {
			return groups[3]
		}
		if expandErr == nil {
			expandErr = &EnvError{Variable: name}
		}
		return match
	})
	if expandErr != nil {
		return "", expandErr
	}
	return out, nil
}

// ExpandValue applies ExpandString to every string nested in a decoded JSON
// value, preserving structure.
func ExpandValue(v any) (any, error) {
	switch node := v.(type) {
	case string:
		return ExpandString(node)
	case map[string]any:
		out := make(map[string]any, len(node))
		for k, child := range node {
			expanded, err := ExpandValue(child)
			if err != nil {
				return nil, err
			}
			out[k] = expanded
		}
		return out, nil
	case []any:
		out := make([]any, len(node))
		for i, child := range node {
			expanded, err := ExpandValue(child)
			if err != nil {
				return nil, err
			}
			out[i] = expanded
		}
		return out, nil
	default:
		return v, nil
	}
}

// expandDocument runs env expansion over a raw JSON document by decoding,
// walking, and re-encoding it, so references work anywhere a string value
// appears.
func expandDocument(raw []byte) ([]byte, error) {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}
	expanded, err := ExpandValue(decoded)
	if err != nil {
		return nil, err
	}
	return json.Marshal(expanded)
}
