/*
Copyright 2026 Ardika Saputro.
Licensed under the Apache License, Version 2.0.
*/

// Package discovery resolves log file paths and bodies to canonical server
// identities. A client config picks one of four strategies: a static list, a
// filesystem scan over file contents, a JSON catalog file, or sqlite
// (reserved, unimplemented).
package discovery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-logr/logr"

	"github.com/ardikabs/ircnotify/internal/config"
	"github.com/ardikabs/ircnotify/internal/template"
)

// Entry is one discovered server identity.
type Entry struct {
	Hostname string
	Name     string
	UUID     string
}

// Result is the outcome of a discovery run for one client.
type Result struct {
	Entries []Entry

	// path → hostname and dirname(path) → hostname maps filled by the
	// filesystem strategy for reverse lookup from log file locations.
	byPath map[string]string
	byDir  map[string]string
}

// HostnameForPath returns the hostname recovered from the given file.
func (r *Result) HostnameForPath(path string) (string, bool) {
	h, ok := r.byPath[path]
	return h, ok
}

// HostnameForDir returns the hostname recovered from any file in dir.
func (r *Result) HostnameForDir(dir string) (string, bool) {
	h, ok := r.byDir[dir]
	return h, ok
}

// Match resolves a path-derived identifier to a discovered entry. The
// identifier may be a server name, a hostname, a full UUID, or the
// TheLounge-style last-three-segment UUID suffix.
func (r *Result) Match(identifier string) (Entry, bool) {
	if identifier == "" {
		return Entry{}, false
	}
	for _, e := range r.Entries {
		if e.Name != "" && strings.EqualFold(e.Name, identifier) {
			return e, true
		}
		if e.Hostname != "" && strings.EqualFold(e.Hostname, identifier) {
			return e, true
		}
		if e.UUID != "" && MatchesUUID(e.UUID, identifier) {
			return e, true
		}
	}
	return Entry{}, false
}

// MatchesUUID reports whether identifier is the UUID itself or its last
// three dash-separated segments.
func MatchesUUID(uuid, identifier string) bool {
	if strings.EqualFold(uuid, identifier) {
		return true
	}
	segments := strings.Split(uuid, "-")
	if len(segments) < 3 {
		return false
	}
	suffix := strings.Join(segments[len(segments)-3:], "-")
	return strings.EqualFold(suffix, identifier)
}

// Discover runs the configured strategy. A nil config yields an empty
// result.
func Discover(cfg *config.ServerDiscovery, logDir string, log logr.Logger) (*Result, error) {
	result := &Result{
		byPath: map[string]string{},
		byDir:  map[string]string{},
	}
	if cfg == nil {
		return result, nil
	}

	switch cfg.Method {
	case config.DiscoveryStatic:
		for _, s := range cfg.Servers {
			result.Entries = append(result.Entries, Entry{
				Hostname: s.Hostname,
				Name:     s.Name,
				UUID:     s.UUID,
			})
		}
		return result, nil

	case config.DiscoveryFilesystem:
		return discoverFilesystem(cfg, logDir, result, log)

	case config.DiscoveryJSON:
		return discoverJSON(cfg, logDir, result)

	case config.DiscoverySQLite:
		return nil, fmt.Errorf("sqlite server discovery: %w", config.ErrNotImplemented)

	default:
		return nil, fmt.Errorf("unknown discovery method %q", cfg.Method)
	}
}

// discoverFilesystem globs candidate files and recovers a hostname from each
// body via the configured pattern.
func discoverFilesystem(cfg *config.ServerDiscovery, logDir string, result *Result, log logr.Logger) (*Result, error) {
	pattern := cfg.SearchPattern
	if !filepath.IsAbs(pattern) {
		pattern = filepath.Join(logDir, pattern)
	}

	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", cfg.SearchPattern, err)
	}

	hostnameRe, err := regexp.Compile(cfg.HostnamePattern)
	if err != nil {
		return nil, fmt.Errorf("compile hostname pattern: %w", err)
	}
	group := cfg.HostnameGroup
	if group == 0 {
		group = 1
	}

	for _, path := range matches {
		body, err := os.ReadFile(path)
		if err != nil {
			log.V(1).Info("skipping unreadable discovery candidate", "path", path, "error", err.Error())
			continue
		}
		m := hostnameRe.FindStringSubmatch(string(body))
		if m == nil || group >= len(m) {
			continue
		}
		hostname := m[group]
		result.Entries = append(result.Entries, Entry{Hostname: hostname})
		result.byPath[path] = hostname
		result.byDir[filepath.Dir(path)] = hostname
	}
	return result, nil
}

// discoverJSON loads a catalog file and extracts one entry per element of
// the configured array path.
func discoverJSON(cfg *config.ServerDiscovery, logDir string, result *Result) (*Result, error) {
	path := cfg.JSONPath
	if !filepath.IsAbs(path) {
		path = filepath.Join(logDir, path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read discovery catalog: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse discovery catalog: %w", err)
	}

	node := doc
	if cfg.ArrayPath != "" {
		resolved, ok := template.Resolve(cfg.ArrayPath, doc)
		if !ok {
			return nil, fmt.Errorf("array path %q not found in %s", cfg.ArrayPath, path)
		}
		node = resolved
	}
	arr, ok := node.([]any)
	if !ok {
		return nil, fmt.Errorf("array path %q in %s is not an array", cfg.ArrayPath, path)
	}

	field := func(element any, dotted string) string {
		if dotted == "" {
			return ""
		}
		v, ok := template.Resolve(dotted, element)
		if !ok {
			return ""
		}
		s, _ := v.(string)
		return s
	}

	for _, element := range arr {
		hostname := field(element, cfg.HostnameField)
		if hostname == "" {
			continue
		}
		result.Entries = append(result.Entries, Entry{
			Hostname: hostname,
			Name:     field(element, cfg.NameField),
			UUID:     field(element, cfg.UUIDField),
		})
	}
	return result, nil
}
