/*
Copyright 2026 Ardika Saputro.
Licensed under the Apache License, Version 2.0.
*/

package config

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested entity or file does not exist.
var ErrNotFound = errors.New("config entity not found")

// ErrNotImplemented marks schema-reserved features with no implementation,
// such as the sqlite discovery method and file type.
var ErrNotImplemented = errors.New("reserved feature not implemented")

// ValidationError reports a schema violation in one config entity.
type ValidationError struct {
	ConfigType string
	ConfigID   string
	Field      string
	Reason     string
}

func (e *ValidationError) Error() string {
	s := e.ConfigType
	if e.ConfigID != "" {
		s += "/" + e.ConfigID
	}
	if e.Field != "" {
		s += "." + e.Field
	}
	return fmt.Sprintf("%s: %s", s, e.Reason)
}

func validationErr(configType, configID, field, format string, args ...any) *ValidationError {
	return &ValidationError{
		ConfigType: configType,
		ConfigID:   configID,
		Field:      field,
		Reason:     fmt.Sprintf(format, args...),
	}
}

// EnvError reports an unresolved required environment variable inside a
// config value. Fatal at load time.
type EnvError struct {
	Variable string
}

func (e *EnvError) Error() string {
	return fmt.Sprintf("environment variable %s is not set", e.Variable)
}
