/*
Copyright 2026 Ardika Saputro.
Licensed under the Apache License, Version 2.0.
*/

// Package api is the HTTP control plane: authenticated CRUD over the config
// tree, reload and bundle endpoints, log browsing, a derived data-flow
// view, prometheus metrics, and a websocket feed of deliveries.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ardikabs/ircnotify/internal/config"
	"github.com/ardikabs/ircnotify/internal/orchestrator"
)

// Server is the control plane listener.
type Server struct {
	orch    *orchestrator.Orchestrator
	store   *config.Store
	log     logr.Logger
	token   string
	fileOps bool

	httpServer *http.Server
	stream     *streamHub
}

// Options configures the control plane.
type Options struct {
	Orchestrator *orchestrator.Orchestrator
	Settings     *config.APISettings
	Log          logr.Logger
}

// NewServer builds the control plane. The auth token is taken from the
// settings or generated into the config directory on first start.
func NewServer(opts Options) (*Server, error) {
	settings := opts.Settings
	if settings == nil || !settings.Enabled {
		return nil, fmt.Errorf("api is not enabled")
	}

	store := opts.Orchestrator.Store()
	token, err := store.EnsureAuthToken(settings.AuthToken)
	if err != nil {
		return nil, err
	}

	s := &Server{
		orch:    opts.Orchestrator,
		store:   store,
		log:     opts.Log.WithName("api"),
		token:   token,
		fileOps: settings.FileOpsEnabled(),
		stream:  newStreamHub(opts.Log),
	}
	opts.Orchestrator.SetDeliveryListener(s.stream.Broadcast)

	host := settings.Host
	if host == "" {
		host = "127.0.0.1"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.auth(s.handleHealth))
	mux.HandleFunc("/api/status", s.auth(s.handleStatus))
	mux.HandleFunc("/api/config", s.auth(s.handleRootConfig))
	mux.HandleFunc("/api/config/reload", s.auth(s.handleReload))
	mux.HandleFunc("/api/config/export", s.auth(s.handleExport))
	mux.HandleFunc("/api/config/upload", s.auth(s.handleUpload))
	mux.HandleFunc("/api/config/files", s.auth(s.handleFileList))
	mux.HandleFunc("/api/config/file/", s.auth(s.handleFile))
	mux.HandleFunc("/api/logs/targets", s.auth(s.handleLogTargets))
	mux.HandleFunc("/api/logs/messages", s.auth(s.handleLogMessages))
	mux.HandleFunc("/api/logs/discover", s.auth(s.handleLogDiscover))
	mux.HandleFunc("/api/logs/read", s.auth(s.handleLogRead))
	mux.HandleFunc("/api/logs/tail", s.auth(s.handleLogTail))
	mux.HandleFunc("/api/data-flow", s.auth(s.handleDataFlow))
	mux.HandleFunc("/api/events/stream", s.auth(s.handleStream))
	mux.Handle("/api/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, settings.Port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Handler exposes the route table, mainly for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start serves until the context ends.
func (s *Server) Start(ctx context.Context) error {
	s.log.Info("starting control plane", "address", s.httpServer.Addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.Error(err, "error shutting down control plane")
		}
		s.stream.Close()
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("control plane: %w", err)
	}
	return nil
}

// auth wraps a handler with bearer-token authentication. Websocket clients
// may pass the token as a query parameter instead.
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		presented := ""
		if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
			presented = strings.TrimPrefix(header, "Bearer ")
		} else if token := r.URL.Query().Get("token"); token != "" {
			presented = token
		}

		if subtle.ConstantTimeCompare([]byte(presented), []byte(s.token)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
