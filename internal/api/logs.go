/*
Copyright 2026 Ardika Saputro.
Licensed under the Apache License, Version 2.0.
*/

package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/ardikabs/ircnotify/internal/config"
	"github.com/ardikabs/ircnotify/internal/message"
	"github.com/ardikabs/ircnotify/internal/parser"
)

// logFileInfo describes one discovered log file with its path-derived
// context.
type logFileInfo struct {
	Path     string `json:"path"`
	ClientID string `json:"clientId"`
	Server   string `json:"server,omitempty"`
	Target   string `json:"target,omitempty"`
	Type     string `json:"type,omitempty"`
}

// enumerateLogFiles globs one client's patterns and classifies every match
// through the client's path extraction rules.
func enumerateLogFiles(clientCfg *config.Client) ([]logFileInfo, error) {
	p, err := parser.New(clientCfg)
	if err != nil {
		return nil, err
	}

	var patterns []string
	if d := clientCfg.Discovery; d != nil && d.Patterns != nil {
		for _, group := range [][]string{d.Patterns.Console, d.Patterns.Channels, d.Patterns.Queries} {
			patterns = append(patterns, group...)
		}
	}
	if len(patterns) == 0 {
		patterns = []string{"**/*"}
	}

	seen := map[string]struct{}{}
	var out []logFileInfo
	for _, pattern := range patterns {
		full := pattern
		if !filepath.IsAbs(full) {
			full = filepath.Join(clientCfg.LogDirectory, pattern)
		}
		matches, err := doublestar.FilepathGlob(full)
		if err != nil {
			continue
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil || info.IsDir() {
				continue
			}
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}

			partial := p.PartialFromPath(m, nil)
			entry := logFileInfo{Path: m, ClientID: clientCfg.ID}
			if v, ok := partial.Metadata["serverIdentifier"].(string); ok {
				entry.Server = v
			}
			if partial.Target != nil {
				entry.Target = partial.Target.Name
				entry.Type = partial.Target.Type
			}
			out = append(out, entry)
		}
	}
	return out, nil
}

// serverMatches checks a path-derived server identifier against a
// configured server's displayName or id.
func serverMatches(identifier, serverID string, reg *config.Registry) bool {
	if serverID == "" {
		return true
	}
	server, ok := reg.Servers[serverID]
	if !ok {
		return false
	}
	return strings.EqualFold(identifier, server.ID) ||
		(server.DisplayName != "" && identifier == server.DisplayName)
}

func (s *Server) enabledClients() []*config.Client {
	reg := s.store.Registry()
	if reg == nil {
		return nil
	}
	var out []*config.Client
	for _, c := range reg.SortedClients() {
		if c.IsEnabled() {
			out = append(out, c)
		}
	}
	return out
}

// handleLogTargets enumerates channels, queries, and consoles for a
// (client, server) pair.
func (s *Server) handleLogTargets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	reg := s.store.Registry()
	if reg == nil {
		writeError(w, http.StatusNotFound, "configuration not loaded")
		return
	}

	clientID := r.URL.Query().Get("clientId")
	serverID := r.URL.Query().Get("serverId")

	targets := map[string][]string{
		message.TargetChannel: {},
		message.TargetQuery:   {},
		message.TargetConsole: {},
	}
	for _, clientCfg := range s.enabledClients() {
		if clientID != "" && clientCfg.ID != clientID {
			continue
		}
		files, err := enumerateLogFiles(clientCfg)
		if err != nil {
			continue
		}
		for _, f := range files {
			if !serverMatches(f.Server, serverID, reg) {
				continue
			}
			if f.Type == "" {
				continue
			}
			targets[f.Type] = append(targets[f.Type], f.Target)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"channels": targets[message.TargetChannel],
		"queries":  targets[message.TargetQuery],
		"console":  targets[message.TargetConsole],
	})
}

// handleLogMessages pages raw lines out of the log file matching the
// requested client/server/target.
func (s *Server) handleLogMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	reg := s.store.Registry()
	if reg == nil {
		writeError(w, http.StatusNotFound, "configuration not loaded")
		return
	}

	q := r.URL.Query()
	clientID := q.Get("clientId")
	serverID := q.Get("serverId")
	target := q.Get("target")
	targetType := q.Get("type")
	offset := intParam(q.Get("offset"), 0)
	limit := intParam(q.Get("limit"), 100)

	for _, clientCfg := range s.enabledClients() {
		if clientID != "" && clientCfg.ID != clientID {
			continue
		}
		files, err := enumerateLogFiles(clientCfg)
		if err != nil {
			continue
		}
		for _, f := range files {
			if !serverMatches(f.Server, serverID, reg) {
				continue
			}
			if target != "" && f.Target != target {
				continue
			}
			if targetType != "" && f.Type != targetType {
				continue
			}

			lines, total, err := readLines(f.Path, offset, limit)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"path":   f.Path,
				"offset": offset,
				"limit":  limit,
				"total":  total,
				"lines":  lines,
			})
			return
		}
	}
	writeError(w, http.StatusNotFound, "no matching log file")
}

// handleLogDiscover returns the filesystem view of available log files.
func (s *Server) handleLogDiscover(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	q := r.URL.Query()
	clientID := q.Get("clientId")
	server := q.Get("server")
	if server == "" {
		server = q.Get("serverId")
	}
	channel := q.Get("channel")
	query := q.Get("query")
	targetType := q.Get("type")

	files := []logFileInfo{}
	for _, clientCfg := range s.enabledClients() {
		if clientID != "" && clientCfg.ID != clientID {
			continue
		}
		found, err := enumerateLogFiles(clientCfg)
		if err != nil {
			continue
		}
		for _, f := range found {
			if server != "" && !strings.EqualFold(f.Server, server) {
				continue
			}
			if channel != "" && (f.Type != message.TargetChannel || f.Target != channel) {
				continue
			}
			if query != "" && (f.Type != message.TargetQuery || f.Target != query) {
				continue
			}
			if targetType != "" && f.Type != targetType {
				continue
			}
			files = append(files, f)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

// handleLogRead serves raw lines from a path confined to enabled clients'
// log directories.
func (s *Server) handleLogRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	q := r.URL.Query()
	path := q.Get("path")
	offset := intParam(q.Get("offset"), 0)
	limit := intParam(q.Get("limit"), 100)

	resolved, ok := s.confinePath(path)
	if !ok {
		writeError(w, http.StatusForbidden, "path is outside configured log directories")
		return
	}

	lines, total, err := readLines(resolved, offset, limit)
	if err != nil {
		if os.IsNotExist(err) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"path": resolved, "offset": offset, "limit": limit, "total": total, "lines": lines,
	})
}

// handleLogTail serves the last N lines of a confined path.
func (s *Server) handleLogTail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	q := r.URL.Query()
	path := q.Get("path")
	n := intParam(q.Get("lines"), 50)

	resolved, ok := s.confinePath(path)
	if !ok {
		writeError(w, http.StatusForbidden, "path is outside configured log directories")
		return
	}

	all, total, err := readLines(resolved, 0, -1)
	if err != nil {
		if os.IsNotExist(err) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if n < len(all) {
		all = all[len(all)-n:]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"path": resolved, "total": total, "lines": all,
	})
}

// confinePath normalizes a requested path and verifies it sits inside some
// enabled client's log directory.
func (s *Server) confinePath(path string) (string, bool) {
	if path == "" {
		return "", false
	}
	resolved, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", false
	}
	for _, clientCfg := range s.enabledClients() {
		root, err := filepath.Abs(filepath.Clean(clientCfg.LogDirectory))
		if err != nil || root == "" {
			continue
		}
		if resolved == root || strings.HasPrefix(resolved, root+string(filepath.Separator)) {
			return resolved, true
		}
	}
	return "", false
}

func readLines(path string, offset, limit int) ([]string, int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	content := strings.TrimSuffix(string(raw), "\n")
	if content == "" {
		return []string{}, 0, nil
	}
	lines := strings.Split(content, "\n")
	total := len(lines)

	if offset >= total {
		return []string{}, total, nil
	}
	lines = lines[offset:]
	if limit >= 0 && limit < len(lines) {
		lines = lines[:limit]
	}
	return lines, total, nil
}

func intParam(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return v
}
