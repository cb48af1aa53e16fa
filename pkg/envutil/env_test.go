/*
Copyright 2026 Ardika Saputro.
Licensed under the Apache License, Version 2.0.
*/

package envutil

import (
	"testing"
	"time"
)

func TestGetString(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		defaultValue string
		expected     string
	}{
		{"returns env value when set", "custom", "fallback", "custom"},
		{"returns default when unset", "", "fallback", "fallback"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				t.Setenv("ENVUTIL_TEST_STRING", tt.value)
			}
			if got := GetString("ENVUTIL_TEST_STRING", tt.defaultValue); got != tt.expected {
				t.Errorf("GetString() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGetBool(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		defaultValue bool
		expected     bool
	}{
		{"true", "true", false, true},
		{"1", "1", false, true},
		{"yes", "yes", false, true},
		{"false", "false", true, false},
		{"no", "no", true, false},
		{"garbage falls back", "maybe", true, true},
		{"unset falls back", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				t.Setenv("ENVUTIL_TEST_BOOL", tt.value)
			}
			if got := GetBool("ENVUTIL_TEST_BOOL", tt.defaultValue); got != tt.expected {
				t.Errorf("GetBool() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGetInt(t *testing.T) {
	t.Setenv("ENVUTIL_TEST_INT", "42")
	if got := GetInt("ENVUTIL_TEST_INT", 7); got != 42 {
		t.Errorf("GetInt() = %v, want 42", got)
	}
	t.Setenv("ENVUTIL_TEST_INT", "not-a-number")
	if got := GetInt("ENVUTIL_TEST_INT", 7); got != 7 {
		t.Errorf("GetInt() = %v, want 7", got)
	}
}

func TestGetDuration(t *testing.T) {
	t.Setenv("ENVUTIL_TEST_DURATION", "90s")
	if got := GetDuration("ENVUTIL_TEST_DURATION", time.Minute); got != 90*time.Second {
		t.Errorf("GetDuration() = %v, want 90s", got)
	}
	if got := GetDuration("ENVUTIL_TEST_DURATION_UNSET", time.Minute); got != time.Minute {
		t.Errorf("GetDuration() = %v, want 1m", got)
	}
}
