/*
Copyright 2026 Ardika Saputro.
Licensed under the Apache License, Version 2.0.
*/

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ardikabs/ircnotify/internal/config"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, s.orch.Status())
}

// handleRootConfig serves and replaces config.json. The typed Root model
// drops the deprecated root-level listing arrays on both paths.
func (s *Server) handleRootConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		reg := s.store.Registry()
		if reg == nil {
			writeError(w, http.StatusNotFound, "configuration not loaded")
			return
		}
		writeJSON(w, http.StatusOK, reg.Root)

	case http.MethodPut:
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable body")
			return
		}
		var root config.Root
		if err := json.Unmarshal(body, &root); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
			return
		}
		if err := config.ValidateRoot(&root); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := s.store.SaveRoot(&root); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.orch.RequestReload()
		writeJSON(w, http.StatusOK, &root)

	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if err := s.orch.ReloadFull(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Disposition", `attachment; filename="ircnotify-config.json.gz"`)
	if err := s.store.ExportBundle(w); err != nil {
		s.log.Error(err, "bundle export failed")
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = config.ImportMerge
	}
	if mode != config.ImportReplace && mode != config.ImportMerge {
		writeError(w, http.StatusBadRequest, "mode must be replace or merge")
		return
	}
	preferIncoming := r.URL.Query().Get("preferIncoming") == "true" || mode == config.ImportReplace

	if err := s.store.ImportBundle(r.Body, mode, preferIncoming); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.orch.ReloadFull(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "imported", "mode": mode})
}

func (s *Server) handleFileList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	listing := map[string][]string{}
	for _, category := range config.Categories {
		names, err := s.store.ListFiles(category)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if names == nil {
			names = []string{}
		}
		listing[category] = names
	}
	writeJSON(w, http.StatusOK, listing)
}

// handleFile is the per-entity CRUD endpoint:
// /api/config/file/<category>/<name>.
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	if !s.fileOps {
		writeError(w, http.StatusForbidden, "file operations are disabled")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/config/file/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	category, name := parts[0], strings.TrimSuffix(parts[1], ".json")

	validCategory := false
	for _, c := range config.Categories {
		if c == category {
			validCategory = true
		}
	}
	if !validCategory {
		writeError(w, http.StatusNotFound, "unknown category")
		return
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, "/\\") {
		writeError(w, http.StatusForbidden, "invalid name")
		return
	}
	if strings.Contains(strings.ToLower(name), config.AuthTokenFile) ||
		strings.Contains(strings.ToLower(name), "auth_token") {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	switch r.Method {
	case http.MethodGet:
		raw, err := s.store.ReadFile(category, name)
		if err != nil {
			if errors.Is(err, config.ErrNotFound) {
				writeError(w, http.StatusNotFound, "not found")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(raw)

	case http.MethodPost, http.MethodPut:
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable body")
			return
		}
		id, err := s.store.SaveEntityDocument(category, name, body)
		if err != nil {
			var verr *config.ValidationError
			if errors.As(err, &verr) {
				writeError(w, http.StatusBadRequest, verr.Error())
				return
			}
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.orch.RequestReload()
		writeJSON(w, http.StatusOK, map[string]string{"id": id, "category": category})

	case http.MethodDelete:
		if err := s.store.DeleteEntity(category, name); err != nil {
			if errors.Is(err, config.ErrNotFound) {
				writeError(w, http.StatusNotFound, "not found")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.orch.RequestReload()
		writeJSON(w, http.StatusOK, map[string]string{"deleted": name, "category": category})

	default:
		methodNotAllowed(w)
	}
}
