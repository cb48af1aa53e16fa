/*
Copyright 2026 Ardika Saputro.
Licensed under the Apache License, Version 2.0.
*/

package config

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ardikabs/ircnotify/pkg/atomicfile"
)

// BundleVersion identifies the bundle schema written by this build.
const BundleVersion = "1"

// Import modes.
const (
	ImportReplace = "replace"
	ImportMerge   = "merge"
)

// Bundle is the gzip-compressed JSON archive of a whole configuration tree.
// The generated auth token is deliberately absent.
type Bundle struct {
	Version   string         `json:"version"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  BundleMetadata `json:"metadata"`
	Config    *Root          `json:"config"`
	Clients   []*Client      `json:"clients"`
	Servers   []*Server      `json:"servers"`
	Events    []*Event       `json:"events"`
	Sinks     []*Sink        `json:"sinks"`
}

// BundleMetadata records where the bundle came from.
type BundleMetadata struct {
	SourceConfigPath string `json:"sourceConfigPath,omitempty"`
	ConfigDirectory  string `json:"configDirectory,omitempty"`
	UnpackConfigDir  string `json:"unpackConfigDir,omitempty"`
}

// ExportBundle streams the current registry as a gzip bundle. Load must have
// succeeded at least once.
func (s *Store) ExportBundle(w io.Writer) error {
	reg := s.Registry()
	if reg == nil {
		return fmt.Errorf("no configuration loaded")
	}

	bundle := Bundle{
		Version:   BundleVersion,
		Timestamp: time.Now().UTC(),
		Metadata: BundleMetadata{
			SourceConfigPath: s.rootPath,
			ConfigDirectory:  reg.Dir,
		},
		Config:  reg.Root,
		Clients: reg.SortedClients(),
		Servers: reg.SortedServers(),
		Events:  reg.SortedEvents(),
		Sinks:   reg.SortedSinks(),
	}

	gz := gzip.NewWriter(w)
	if err := json.NewEncoder(gz).Encode(&bundle); err != nil {
		gz.Close()
		return fmt.Errorf("encode bundle: %w", err)
	}
	return gz.Close()
}

// ReadBundle decodes a gzip bundle from r.
func ReadBundle(r io.Reader) (*Bundle, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("open bundle: %w", err)
	}
	defer gz.Close()

	var bundle Bundle
	if err := json.NewDecoder(gz).Decode(&bundle); err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}
	return &bundle, nil
}

// ReadBundleFile decodes the bundle at path.
func ReadBundleFile(path string) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadBundle(f)
}

// ImportBundle applies a bundle to the on-disk tree. In replace mode every
// category directory is wiped first; in merge mode existing files are kept
// unless preferIncoming is set. The caller is expected to reload afterwards.
func (s *Store) ImportBundle(r io.Reader, mode string, preferIncoming bool) error {
	bundle, err := ReadBundle(r)
	if err != nil {
		return err
	}
	return s.ApplyBundle(bundle, mode, preferIncoming)
}

// ApplyBundle writes a decoded bundle to disk.
func (s *Store) ApplyBundle(bundle *Bundle, mode string, preferIncoming bool) error {
	if mode != ImportReplace && mode != ImportMerge {
		return fmt.Errorf("unknown import mode %q", mode)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	dir := s.dirLocked()

	if mode == ImportReplace {
		for _, category := range Categories {
			names, err := listJSONFiles(filepath.Join(dir, category))
			if err != nil {
				return err
			}
			for _, name := range names {
				if err := os.Remove(filepath.Join(dir, category, name)); err != nil {
					return fmt.Errorf("wipe %s/%s: %w", category, name, err)
				}
			}
		}
	}

	writeIfWanted := func(category, id string, entity any) error {
		path := filepath.Join(dir, category, id+".json")
		if mode == ImportMerge && !preferIncoming {
			if _, err := os.Stat(path); err == nil {
				return nil
			}
		}
		return s.writeEntity(dir, category, id, entity)
	}

	for _, c := range bundle.Clients {
		if err := writeIfWanted(CategoryClients, c.ID, c); err != nil {
			return err
		}
	}
	for _, v := range bundle.Servers {
		if err := writeIfWanted(CategoryServers, v.ID, v); err != nil {
			return err
		}
	}
	for _, v := range bundle.Sinks {
		if err := writeIfWanted(CategorySinks, v.ID, v); err != nil {
			return err
		}
	}
	for _, e := range bundle.Events {
		if err := writeIfWanted(CategoryEvents, e.ID, e); err != nil {
			return err
		}
	}

	if bundle.Config != nil {
		writeRoot := mode == ImportReplace || preferIncoming
		if !writeRoot {
			if _, err := os.Stat(s.rootPath); os.IsNotExist(err) {
				writeRoot = true
			}
		}
		if writeRoot {
			// Keep the local config directory rather than the exporter's.
			rootCopy := *bundle.Config
			rootCopy.ConfigDirectory = ""
			data, err := json.MarshalIndent(&rootCopy, "", "  ")
			if err != nil {
				return fmt.Errorf("encode root config: %w", err)
			}
			if err := atomicfile.WriteFile(s.rootPath, append(data, '\n'), 0o644); err != nil {
				return err
			}
		}
	}

	return nil
}
