/*
Copyright 2026 Ardika Saputro.
Licensed under the Apache License, Version 2.0.
*/

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/ardikabs/ircnotify/pkg/atomicfile"
)

// AuthTokenFile holds the generated control-plane bearer token. It is never
// exported and never served.
const AuthTokenFile = "auth_token.txt"

// Registry is the in-memory truth for all loaded config entities.
type Registry struct {
	Root    *Root
	Dir     string
	Clients map[string]*Client
	Servers map[string]*Server
	Events  map[string]*Event
	Sinks   map[string]*Sink
}

// SortedClients returns clients ordered by id.
func (r *Registry) SortedClients() []*Client {
	return sortedValues(r.Clients, func(c *Client) string { return c.ID })
}

// SortedServers returns servers ordered by id.
func (r *Registry) SortedServers() []*Server {
	return sortedValues(r.Servers, func(s *Server) string { return s.ID })
}

// SortedEvents returns events ordered by id.
func (r *Registry) SortedEvents() []*Event {
	return sortedValues(r.Events, func(e *Event) string { return e.ID })
}

// SortedSinks returns sinks ordered by id.
func (r *Registry) SortedSinks() []*Sink {
	return sortedValues(r.Sinks, func(s *Sink) string { return s.ID })
}

func sortedValues[T any](m map[string]T, key func(T) string) []T {
	out := lo.Values(m)
	sort.Slice(out, func(i, j int) bool { return key(out[i]) < key(out[j]) })
	return out
}

// Store owns the on-disk configuration tree. All writes are atomic
// (temp + rename); mutation entry points serialize through a single mutex.
type Store struct {
	log      logr.Logger
	rootPath string

	mu       sync.RWMutex
	registry *Registry
}

// NewStore creates a store rooted at the given config.json path.
func NewStore(rootPath string, log logr.Logger) *Store {
	return &Store{
		log:      log.WithName("config"),
		rootPath: rootPath,
	}
}

// RootPath returns the path of the root config file.
func (s *Store) RootPath() string { return s.rootPath }

// Registry returns the most recently loaded registry, or nil before the
// first successful Load.
func (s *Store) Registry() *Registry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry
}

// Dir returns the config directory of the last load, falling back to the
// root file's directory.
func (s *Store) Dir() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.registry != nil {
		return s.registry.Dir
	}
	return filepath.Dir(s.rootPath)
}

// Load reads the whole configuration tree: the root file, then every
// category directory, applying env expansion, id/filename synchronization,
// validation, and cross-reference pruning. On success the registry becomes
// the new in-memory truth; on failure the previous registry is preserved.
func (s *Store) Load() (*Registry, error) {
	root, err := s.loadRoot()
	if err != nil {
		return nil, err
	}

	dir := root.ConfigDirectory
	if dir == "" {
		dir = filepath.Dir(s.rootPath)
	}
	for _, category := range Categories {
		if err := os.MkdirAll(filepath.Join(dir, category), 0o755); err != nil {
			return nil, fmt.Errorf("create %s directory: %w", category, err)
		}
	}

	reg := &Registry{
		Root:    root,
		Dir:     dir,
		Clients: map[string]*Client{},
		Servers: map[string]*Server{},
		Events:  map[string]*Event{},
		Sinks:   map[string]*Sink{},
	}

	if err := loadCategory(s, dir, CategoryClients, reg.Clients,
		func(c *Client) string { return c.ID },
		func(c *Client, id string) { c.ID = id },
		ValidateClient,
	); err != nil {
		return nil, err
	}
	if err := loadCategory(s, dir, CategoryServers, reg.Servers,
		func(v *Server) string { return v.ID },
		func(v *Server, id string) { v.ID = id },
		ValidateServer,
	); err != nil {
		return nil, err
	}
	if err := loadCategory(s, dir, CategorySinks, reg.Sinks,
		func(v *Sink) string { return v.ID },
		func(v *Sink, id string) { v.ID = id },
		ValidateSink,
	); err != nil {
		return nil, err
	}
	if err := loadCategory(s, dir, CategoryEvents, reg.Events,
		func(v *Event) string { return v.ID },
		func(v *Event, id string) { v.ID = id },
		ValidateEvent,
	); err != nil {
		return nil, err
	}

	if err := s.pruneEventReferences(reg); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.registry = reg
	s.mu.Unlock()

	return reg, nil
}

func (s *Store) loadRoot() (*Root, error) {
	raw, err := os.ReadFile(s.rootPath)
	if err != nil {
		return nil, fmt.Errorf("read root config: %w", err)
	}
	expanded, err := expandDocument(raw)
	if err != nil {
		return nil, fmt.Errorf("root config: %w", err)
	}

	// Unknown fields, including the deprecated root-level listing arrays,
	// are dropped here and never written back.
	var root Root
	if err := json.Unmarshal(expanded, &root); err != nil {
		return nil, fmt.Errorf("parse root config: %w", err)
	}
	if err := ValidateRoot(&root); err != nil {
		return nil, err
	}
	return &root, nil
}

// loadCategory reads every JSON document of one category, defaults missing
// ids to the filename stem, renames files whose id drifted from their stem,
// and deletes duplicate-id files in favour of the canonically named one.
func loadCategory[T any](s *Store, dir, category string, out map[string]*T,
	getID func(*T) string, setID func(*T, string), validate func(*T) error,
) error {
	categoryDir := filepath.Join(dir, category)
	names, err := listJSONFiles(categoryDir)
	if err != nil {
		return err
	}

	type entry struct {
		path   string
		stem   string
		entity *T
	}

	var entries []entry
	for _, name := range names {
		path := filepath.Join(categoryDir, name)
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		expanded, err := expandDocument(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		entity := new(T)
		if err := json.Unmarshal(expanded, entity); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		stem := strings.TrimSuffix(name, ".json")
		if getID(entity) == "" {
			setID(entity, stem)
		}
		if err := validate(entity); err != nil {
			return err
		}
		entries = append(entries, entry{path: path, stem: stem, entity: entity})
	}

	// Canonical entries (stem == id) win over misnamed duplicates.
	byID := map[string]entry{}
	for _, e := range entries {
		id := getID(e.entity)
		existing, seen := byID[id]
		if !seen {
			byID[id] = e
			continue
		}
		keep, drop := existing, e
		if e.stem == id && existing.stem != id {
			keep, drop = e, existing
		}
		s.log.Info("removing duplicate config file", "category", category, "id", id, "path", drop.path)
		if err := os.Remove(drop.path); err != nil {
			return fmt.Errorf("remove duplicate %s: %w", drop.path, err)
		}
		byID[id] = keep
	}

	for id, e := range byID {
		if e.stem != id {
			canonical := filepath.Join(categoryDir, id+".json")
			s.log.Info("renaming config file to match id", "category", category, "from", e.path, "to", canonical)
			if err := os.Rename(e.path, canonical); err != nil {
				return fmt.Errorf("rename %s: %w", e.path, err)
			}
		}
		out[id] = e.entity
	}
	return nil
}

// pruneEventReferences removes dangling server and sink ids from every
// event; changed events are rewritten on disk so runtime and disk agree.
func (s *Store) pruneEventReferences(reg *Registry) error {
	for _, event := range reg.SortedEvents() {
		changed := false

		kept := make([]string, 0, len(event.ServerIDs))
		for _, id := range event.ServerIDs {
			if id == WildcardServerID || reg.Servers[id] != nil {
				kept = append(kept, id)
				continue
			}
			s.log.Info("pruning dangling server reference", "event", event.ID, "server", id)
			changed = true
		}
		event.ServerIDs = kept

		keptSinks := make([]string, 0, len(event.SinkIDs))
		for _, id := range event.SinkIDs {
			if reg.Sinks[id] != nil {
				keptSinks = append(keptSinks, id)
				continue
			}
			s.log.Info("pruning dangling sink reference", "event", event.ID, "sink", id)
			changed = true
		}
		event.SinkIDs = keptSinks

		if changed {
			if err := s.writeEntity(reg.Dir, CategoryEvents, event.ID, event); err != nil {
				return err
			}
		}
	}
	return nil
}

// SaveRoot persists the root config file.
func (s *Store) SaveRoot(root *Root) error {
	data, err := json.MarshalIndent(root, "", "  ")
	if err != nil {
		return fmt.Errorf("encode root config: %w", err)
	}
	return atomicfile.WriteFile(s.rootPath, append(data, '\n'), 0o644)
}

// SaveEntityDocument validates and persists one entity document under
// category. The filename is forced to match the document's id; if the
// document arrived under a different name the old file is removed and, for
// servers and sinks, every event referencing the old id is rewritten to the
// new one. Returns the effective id.
func (s *Store) SaveEntityDocument(category, name string, doc []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name = strings.TrimSuffix(name, ".json")

	expanded, err := expandDocument(doc)
	if err != nil {
		return "", err
	}

	id, pretty, err := decodeAndValidate(category, name, expanded)
	if err != nil {
		return "", err
	}

	dir := s.dirLocked()
	if err := atomicfile.WriteFile(filepath.Join(dir, category, id+".json"), pretty, 0o644); err != nil {
		return "", err
	}

	if id != name {
		oldPath := filepath.Join(dir, category, name+".json")
		if _, err := os.Stat(oldPath); err == nil {
			if err := os.Remove(oldPath); err != nil {
				return "", fmt.Errorf("remove renamed file: %w", err)
			}
			if category == CategoryServers || category == CategorySinks {
				if err := s.cascadeRename(dir, category, name, id); err != nil {
					return "", err
				}
			}
		}
	}

	return id, nil
}

// DeleteEntity removes an entity file and, for servers and sinks, prunes its
// id from every event on disk.
func (s *Store) DeleteEntity(category, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.dirLocked()
	path := filepath.Join(dir, category, id+".json")
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s/%s: %w", category, id, ErrNotFound)
		}
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}

	if category == CategoryServers || category == CategorySinks {
		return s.cascadeDelete(dir, category, id)
	}
	return nil
}

func (s *Store) dirLocked() string {
	if s.registry != nil {
		return s.registry.Dir
	}
	return filepath.Dir(s.rootPath)
}

// cascadeDelete removes id from the relevant reference list of every event
// file, persisting each change.
func (s *Store) cascadeDelete(dir, category, id string) error {
	return s.rewriteEvents(dir, func(event *Event) bool {
		var changed bool
		if category == CategoryServers {
			next := lo.Without(event.ServerIDs, id)
			changed = len(next) != len(event.ServerIDs)
			event.ServerIDs = next
		} else {
			next := lo.Without(event.SinkIDs, id)
			changed = len(next) != len(event.SinkIDs)
			event.SinkIDs = next
		}
		if changed {
			s.log.Info("cascading delete into event", "event", event.ID, "category", category, "removed", id)
		}
		return changed
	})
}

// cascadeRename substitutes oldID with newID in every event file.
func (s *Store) cascadeRename(dir, category, oldID, newID string) error {
	return s.rewriteEvents(dir, func(event *Event) bool {
		replace := func(ids []string) ([]string, bool) {
			changed := false
			out := make([]string, len(ids))
			for i, v := range ids {
				if v == oldID {
					out[i] = newID
					changed = true
				} else {
					out[i] = v
				}
			}
			return out, changed
		}

		var changed bool
		if category == CategoryServers {
			event.ServerIDs, changed = replace(event.ServerIDs)
		} else {
			event.SinkIDs, changed = replace(event.SinkIDs)
		}
		if changed {
			s.log.Info("cascading rename into event", "event", event.ID, "category", category, "from", oldID, "to", newID)
		}
		return changed
	})
}

func (s *Store) rewriteEvents(dir string, mutate func(*Event) bool) error {
	eventsDir := filepath.Join(dir, CategoryEvents)
	names, err := listJSONFiles(eventsDir)
	if err != nil {
		return err
	}
	for _, name := range names {
		path := filepath.Join(eventsDir, name)
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		var event Event
		if err := json.Unmarshal(raw, &event); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if event.ID == "" {
			event.ID = strings.TrimSuffix(name, ".json")
		}
		if mutate(&event) {
			if err := s.writeEntity(dir, CategoryEvents, event.ID, &event); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Store) writeEntity(dir, category, id string, entity any) error {
	data, err := json.MarshalIndent(entity, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", category, id, err)
	}
	return atomicfile.WriteFile(filepath.Join(dir, category, id+".json"), append(data, '\n'), 0o644)
}

// decodeAndValidate parses a document as its category's kind, defaults the
// id to the provided name, validates, and re-encodes it canonically.
func decodeAndValidate(category, name string, doc []byte) (string, []byte, error) {
	encode := func(id string, entity any) (string, []byte, error) {
		pretty, err := json.MarshalIndent(entity, "", "  ")
		if err != nil {
			return "", nil, err
		}
		return id, append(pretty, '\n'), nil
	}

	switch category {
	case CategoryClients:
		var c Client
		if err := json.Unmarshal(doc, &c); err != nil {
			return "", nil, fmt.Errorf("parse client: %w", err)
		}
		if c.ID == "" {
			c.ID = name
		}
		if err := ValidateClient(&c); err != nil {
			return "", nil, err
		}
		return encode(c.ID, &c)
	case CategoryServers:
		var v Server
		if err := json.Unmarshal(doc, &v); err != nil {
			return "", nil, fmt.Errorf("parse server: %w", err)
		}
		if v.ID == "" {
			v.ID = name
		}
		if err := ValidateServer(&v); err != nil {
			return "", nil, err
		}
		return encode(v.ID, &v)
	case CategoryEvents:
		var e Event
		if err := json.Unmarshal(doc, &e); err != nil {
			return "", nil, fmt.Errorf("parse event: %w", err)
		}
		if e.ID == "" {
			e.ID = name
		}
		if err := ValidateEvent(&e); err != nil {
			return "", nil, err
		}
		return encode(e.ID, &e)
	case CategorySinks:
		var v Sink
		if err := json.Unmarshal(doc, &v); err != nil {
			return "", nil, fmt.Errorf("parse sink: %w", err)
		}
		if v.ID == "" {
			v.ID = name
		}
		if err := ValidateSink(&v); err != nil {
			return "", nil, err
		}
		return encode(v.ID, &v)
	}
	return "", nil, fmt.Errorf("unknown category %q", category)
}

// ListFiles returns the JSON filenames of one category.
func (s *Store) ListFiles(category string) ([]string, error) {
	if !lo.Contains(Categories, category) {
		return nil, fmt.Errorf("unknown category %q", category)
	}
	return listJSONFiles(filepath.Join(s.Dir(), category))
}

// ReadFile returns the raw bytes of one entity file.
func (s *Store) ReadFile(category, id string) ([]byte, error) {
	if !lo.Contains(Categories, category) {
		return nil, fmt.Errorf("unknown category %q", category)
	}
	raw, err := os.ReadFile(filepath.Join(s.Dir(), category, id+".json"))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%s/%s: %w", category, id, ErrNotFound)
	}
	return raw, err
}

// EnsureAuthToken returns the configured token, or reads (creating if
// necessary) the generated token file in the config directory.
func (s *Store) EnsureAuthToken(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}

	path := filepath.Join(s.Dir(), AuthTokenFile)
	if raw, err := os.ReadFile(path); err == nil {
		token := strings.TrimSpace(string(raw))
		if token != "" {
			return token, nil
		}
	}

	token := uuid.NewString()
	if err := atomicfile.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("write auth token: %w", err)
	}
	s.log.Info("generated control plane auth token", "path", path)
	return token, nil
}

func listJSONFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read directory %s: %w", dir, err)
	}
	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") || strings.Contains(name, AuthTokenFile) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
