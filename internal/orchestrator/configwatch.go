/*
Copyright 2026 Ardika Saputro.
Licensed under the Apache License, Version 2.0.
*/

package orchestrator

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/go-logr/logr"

	"github.com/ardikabs/ircnotify/internal/config"
)

// configWatcher turns filesystem changes under the config tree into reload
// requests. Debouncing happens in the orchestrator, so raw bursts of events
// (editors write temp files, then rename) fold into a single reload.
type configWatcher struct {
	fs      *fsnotify.Watcher
	trigger func()
	log     logr.Logger

	stopOnce sync.Once
	done     chan struct{}
}

func newConfigWatcher(store *config.Store, trigger func(), log logr.Logger) (*configWatcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := store.Dir()
	if err := fs.Add(dir); err != nil {
		fs.Close()
		return nil, err
	}
	for _, category := range config.Categories {
		if err := fs.Add(filepath.Join(dir, category)); err != nil {
			fs.Close()
			return nil, err
		}
	}

	return &configWatcher{
		fs:      fs,
		trigger: trigger,
		log:     log.WithName("configwatch"),
		done:    make(chan struct{}),
	}, nil
}

// Start consumes filesystem events until the context ends or Stop is
// called.
func (w *configWatcher) Start(ctx context.Context) {
	go func() {
		defer close(w.done)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.fs.Events:
				if !ok {
					return
				}
				if w.relevant(event) {
					w.log.V(1).Info("config change detected", "path", event.Name, "op", event.Op.String())
					w.trigger()
				}
			case err, ok := <-w.fs.Errors:
				if !ok {
					return
				}
				w.log.V(1).Info("config watch error", "error", err.Error())
			}
		}
	}()
}

// relevant filters out temp files and the auth token.
func (w *configWatcher) relevant(event fsnotify.Event) bool {
	name := filepath.Base(event.Name)
	if strings.HasSuffix(name, ".tmp") || strings.Contains(name, config.AuthTokenFile) {
		return false
	}
	if !strings.HasSuffix(name, ".json") {
		return false
	}
	return event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0
}

// Stop closes the underlying watcher.
func (w *configWatcher) Stop() {
	w.stopOnce.Do(func() {
		w.fs.Close()
	})
}
