/*
Copyright 2026 Ardika Saputro.
Licensed under the Apache License, Version 2.0.
*/

// Package orchestrator wires the pipeline together and owns component
// lifecycle: watchers, parsers, discovery results, sinks, and the event
// processor. Reloads diff components by id, destroying removed ones,
// constructing added ones, and keeping unchanged ones running.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/go-cmp/cmp"

	"github.com/ardikabs/ircnotify/internal/config"
	"github.com/ardikabs/ircnotify/internal/discovery"
	"github.com/ardikabs/ircnotify/internal/message"
	"github.com/ardikabs/ircnotify/internal/metrics"
	"github.com/ardikabs/ircnotify/internal/parser"
	"github.com/ardikabs/ircnotify/internal/processor"
	"github.com/ardikabs/ircnotify/internal/sink"
	"github.com/ardikabs/ircnotify/internal/watcher"
)

// ReloadDebounce coalesces bursts of reload triggers.
const ReloadDebounce = 500 * time.Millisecond

// BackupsDir is the sibling directory scanned for bootstrap bundles.
const BackupsDir = "backups"

// DeliveryNote summarizes one successful delivery for live observers.
type DeliveryNote struct {
	Sink      string    `json:"sink"`
	SinkType  string    `json:"sinkType"`
	Event     string    `json:"event"`
	Client    string    `json:"client"`
	Server    string    `json:"server,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type clientRuntime struct {
	cfg     *config.Client
	parser  *parser.Parser
	disc    *discovery.Result
	watch   *watcher.Watcher
	partial map[string]*message.Context
	mu      sync.Mutex
}

// Orchestrator owns the pipeline. Lifecycle state is guarded by mu; the
// hot-path view of the processor and sinks sits behind pipeMu so watcher
// goroutines never contend with lifecycle operations.
type Orchestrator struct {
	store *config.Store
	log   logr.Logger

	mu      sync.Mutex
	clients map[string]*clientRuntime
	running bool

	pipeMu   sync.RWMutex
	sinks    map[string]sink.Sink
	sinkCfgs map[string]*config.Sink
	proc     *processor.Processor

	reloadMu    sync.Mutex
	debounce    *time.Timer
	baseCtx     context.Context
	onDelivery  func(DeliveryNote)
	configWatch *configWatcher
}

// New creates an orchestrator over a config store.
func New(store *config.Store, log logr.Logger) *Orchestrator {
	return &Orchestrator{
		store:    store,
		log:      log.WithName("orchestrator"),
		clients:  map[string]*clientRuntime{},
		sinks:    map[string]sink.Sink{},
		sinkCfgs: map[string]*config.Sink{},
	}
}

// SetDeliveryListener registers a callback invoked after every successful
// delivery. Set before Start.
func (o *Orchestrator) SetDeliveryListener(fn func(DeliveryNote)) {
	o.onDelivery = fn
}

// Store exposes the config store to the control plane.
func (o *Orchestrator) Store() *config.Store { return o.store }

// Initialize prepares the config tree, bootstrapping from the newest backup
// bundle when no root config exists, then loads everything and constructs
// the initial component set.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	o.baseCtx = ctx

	if _, err := os.Stat(o.store.RootPath()); os.IsNotExist(err) {
		if err := o.bootstrapFromBackup(); err != nil {
			return err
		}
	}

	reg, err := o.store.Load()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(reg.Dir, BackupsDir), 0o755); err != nil {
		return fmt.Errorf("create backups directory: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	return o.buildComponents(ctx, reg)
}

// bootstrapFromBackup restores the newest bundle under backups/, picking by
// the bundle's embedded timestamp rather than file mtime.
func (o *Orchestrator) bootstrapFromBackup() error {
	dir := filepath.Join(filepath.Dir(o.store.RootPath()), BackupsDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return o.writeEmptyRoot()
		}
		return err
	}

	var newest *config.Bundle
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json.gz") {
			continue
		}
		bundle, err := config.ReadBundleFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			o.log.Info("skipping unreadable backup", "file", entry.Name(), "error", err.Error())
			continue
		}
		if newest == nil || bundle.Timestamp.After(newest.Timestamp) {
			newest = bundle
		}
	}

	if newest == nil {
		return o.writeEmptyRoot()
	}

	o.log.Info("bootstrapping configuration from backup", "timestamp", newest.Timestamp)
	return o.store.ApplyBundle(newest, config.ImportMerge, true)
}

func (o *Orchestrator) writeEmptyRoot() error {
	o.log.Info("no root config found, writing defaults", "path", o.store.RootPath())
	return o.store.SaveRoot(&config.Root{PollInterval: config.DefaultPollIntervalMs})
}

// buildComponents constructs parsers, discovery results, watchers, sinks,
// and the processor for one registry snapshot. Caller holds o.mu.
func (o *Orchestrator) buildComponents(ctx context.Context, reg *config.Registry) error {
	o.pipeMu.Lock()
	defer o.pipeMu.Unlock()

	for _, clientCfg := range reg.SortedClients() {
		if !clientCfg.IsEnabled() {
			continue
		}
		if _, exists := o.clients[clientCfg.ID]; exists {
			continue
		}
		rt, err := o.newClientRuntime(reg, clientCfg)
		if err != nil {
			return err
		}
		o.clients[clientCfg.ID] = rt
	}

	for _, sinkCfg := range reg.SortedSinks() {
		if !sinkCfg.IsEnabled() {
			continue
		}
		if _, exists := o.sinks[sinkCfg.ID]; exists {
			continue
		}
		s, err := sink.New(sinkCfg, o.log)
		if err != nil {
			return fmt.Errorf("sink %s: %w", sinkCfg.ID, err)
		}
		if err := s.Initialize(ctx); err != nil {
			return fmt.Errorf("sink %s: %w", sinkCfg.ID, err)
		}
		o.sinks[sinkCfg.ID] = s
		o.sinkCfgs[sinkCfg.ID] = sinkCfg
	}

	proc, err := processor.New(reg.SortedEvents(), reg.SortedServers(), reg.SortedSinks(), o.log)
	if err != nil {
		return err
	}
	o.proc = proc
	return nil
}

func (o *Orchestrator) newClientRuntime(reg *config.Registry, clientCfg *config.Client) (*clientRuntime, error) {
	if clientCfg.FileType != nil && clientCfg.FileType.Type == config.FileTypeSQLite {
		return nil, fmt.Errorf("client %s: sqlite file type: %w", clientCfg.ID, config.ErrNotImplemented)
	}

	p, err := parser.New(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("client %s: %w", clientCfg.ID, err)
	}

	logDir := clientCfg.LogDirectory
	if logDir == "" {
		logDir = reg.Root.DefaultLogDirectory
	}
	disc, err := discovery.Discover(clientCfg.ServerDiscovery, logDir, o.log)
	if err != nil {
		return nil, fmt.Errorf("client %s discovery: %w", clientCfg.ID, err)
	}

	rt := &clientRuntime{
		cfg:     clientCfg,
		parser:  p,
		disc:    disc,
		partial: map[string]*message.Context{},
	}

	interval := time.Duration(reg.Root.PollInterval) * time.Millisecond
	if clientCfg.FileType != nil && clientCfg.FileType.PollInterval > 0 {
		// More specific wins.
		interval = time.Duration(clientCfg.FileType.PollInterval) * time.Millisecond
	}

	w, err := watcher.New(watcher.Options{
		Client:        clientCfg,
		PollInterval:  interval,
		RescanOnStart: reg.Root.RescanLogsOnStartup,
		Handler: func(path, line string) {
			o.handleLine(rt, path, line)
		},
		Log: o.log,
	})
	if err != nil {
		return nil, fmt.Errorf("client %s: %w", clientCfg.ID, err)
	}
	rt.watch = w
	return rt, nil
}

// handleLine runs one line through parser, processor, and sinks. Failures
// never cross message boundaries.
func (o *Orchestrator) handleLine(rt *clientRuntime, path, line string) {
	metrics.LinesRead.WithLabelValues(rt.cfg.ID).Inc()

	rt.mu.Lock()
	partial, ok := rt.partial[path]
	if !ok {
		partial = rt.parser.PartialFromPath(path, rt.disc)
		rt.partial[path] = partial
	}
	rt.mu.Unlock()

	ctx := rt.parser.ParseLine(line, partial)
	if ctx == nil {
		return
	}
	metrics.LinesParsed.WithLabelValues(rt.cfg.ID).Inc()

	o.pipeMu.RLock()
	proc := o.proc
	o.pipeMu.RUnlock()
	if proc == nil {
		return
	}

	for _, match := range proc.Process(ctx) {
		metrics.EventsMatched.WithLabelValues(match.Event.ID).Inc()
		o.dispatch(match)
	}
}

func (o *Orchestrator) dispatch(match processor.Match) {
	for _, sinkID := range match.Event.SinkIDs {
		o.pipeMu.RLock()
		s := o.sinks[sinkID]
		cfg := o.sinkCfgs[sinkID]
		o.pipeMu.RUnlock()
		if s == nil {
			continue
		}

		if err := s.Send(o.baseCtx, match.Ctx, match.Event); err != nil {
			o.log.Error(err, "delivery failed", "sink", sinkID, "event", match.Event.ID)
			continue
		}
		if o.onDelivery != nil {
			note := DeliveryNote{
				Sink:      sinkID,
				Event:     match.Event.ID,
				Client:    match.Ctx.Client.ID,
				Server:    match.Ctx.Server.ID,
				Timestamp: time.Now(),
			}
			if cfg != nil {
				note.SinkType = cfg.Type
			}
			o.onDelivery(note)
		}
	}
}

// Start launches all watchers and the config directory watcher.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	for _, rt := range o.clients {
		rt.watch.Start(ctx)
	}
	o.running = true
	o.mu.Unlock()

	cw, err := newConfigWatcher(o.store, o.RequestReload, o.log)
	if err != nil {
		o.log.Info("config watching disabled", "error", err.Error())
	} else {
		o.configWatch = cw
		cw.Start(ctx)
	}

	o.log.Info("orchestrator started")
	return nil
}

// Running reports whether watchers are active.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// RequestReload schedules a debounced full reload; repeated triggers inside
// the window fold into one.
func (o *Orchestrator) RequestReload() {
	o.reloadMu.Lock()
	defer o.reloadMu.Unlock()

	if o.debounce != nil {
		o.debounce.Reset(ReloadDebounce)
		return
	}
	o.debounce = time.AfterFunc(ReloadDebounce, func() {
		o.reloadMu.Lock()
		o.debounce = nil
		o.reloadMu.Unlock()

		if err := o.ReloadFull(); err != nil {
			o.log.Error(err, "reload failed")
		}
	})
}

// ReloadFull quiesces watchers, reloads configuration, diffs the component
// sets by id, and resumes. A failed load preserves the previous good state.
func (o *Orchestrator) ReloadFull() error {
	start := time.Now()

	o.mu.Lock()
	defer o.mu.Unlock()

	wasRunning := o.running
	for _, rt := range o.clients {
		rt.watch.Stop()
	}

	reg, err := o.store.Load()
	if err != nil {
		metrics.ReloadTotal.WithLabelValues("error").Inc()
		// Keep the previous good state running.
		if wasRunning {
			for _, rt := range o.clients {
				rt.watch.Start(o.baseCtx)
			}
		}
		return fmt.Errorf("reload: %w", err)
	}

	o.diffClients(reg)

	o.pipeMu.Lock()
	o.diffSinks(reg)
	proc, err := processor.New(reg.SortedEvents(), reg.SortedServers(), reg.SortedSinks(), o.log)
	if err == nil {
		o.proc = proc
	}
	o.pipeMu.Unlock()
	if err != nil {
		metrics.ReloadTotal.WithLabelValues("error").Inc()
		return err
	}

	if wasRunning {
		for _, rt := range o.clients {
			rt.watch.Start(o.baseCtx)
		}
	}

	metrics.ReloadTotal.WithLabelValues("ok").Inc()
	metrics.ReloadDuration.Observe(time.Since(start).Seconds())
	o.log.Info("configuration reloaded", "duration", time.Since(start))
	return nil
}

// diffClients destroys removed clients, constructs added ones, and rebuilds
// changed ones; unchanged clients keep their runtime (and offsets).
func (o *Orchestrator) diffClients(reg *config.Registry) {
	desired := map[string]*config.Client{}
	for _, c := range reg.SortedClients() {
		if c.IsEnabled() {
			desired[c.ID] = c
		}
	}

	for id, rt := range o.clients {
		next, keep := desired[id]
		if keep && cmp.Equal(rt.cfg, next) {
			delete(desired, id)
			continue
		}
		rt.watch.Stop()
		delete(o.clients, id)
		if !keep {
			o.log.Info("client removed", "client", id)
		}
	}

	for id, clientCfg := range desired {
		rt, err := o.newClientRuntime(reg, clientCfg)
		if err != nil {
			o.log.Error(err, "skipping client after reload", "client", id)
			continue
		}
		o.clients[id] = rt
		o.log.Info("client added", "client", id)
	}
}

// diffSinks mirrors diffClients for sinks.
func (o *Orchestrator) diffSinks(reg *config.Registry) {
	desired := map[string]*config.Sink{}
	for _, s := range reg.SortedSinks() {
		if s.IsEnabled() {
			desired[s.ID] = s
		}
	}

	for id, s := range o.sinks {
		next, keep := desired[id]
		if keep && cmp.Equal(o.sinkCfgs[id], next) {
			o.sinkCfgs[id] = next
			delete(desired, id)
			continue
		}
		if err := s.Destroy(); err != nil {
			o.log.Error(err, "sink destroy failed", "sink", id)
		}
		delete(o.sinks, id)
		delete(o.sinkCfgs, id)
		if !keep {
			o.log.Info("sink removed", "sink", id)
		}
	}

	for id, sinkCfg := range desired {
		s, err := sink.New(sinkCfg, o.log)
		if err != nil {
			o.log.Error(err, "skipping sink after reload", "sink", id)
			continue
		}
		if err := s.Initialize(o.baseCtx); err != nil {
			o.log.Error(err, "skipping sink after reload", "sink", id)
			continue
		}
		o.sinks[id] = s
		o.sinkCfgs[id] = sinkCfg
		o.log.Info("sink added", "sink", id)
	}
}

// Stop halts watchers, then sinks, then the config watcher.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, rt := range o.clients {
		rt.watch.Stop()
	}
	o.pipeMu.Lock()
	for id, s := range o.sinks {
		if err := s.Destroy(); err != nil {
			o.log.Error(err, "sink destroy failed", "sink", id)
		}
	}
	o.sinks = map[string]sink.Sink{}
	o.sinkCfgs = map[string]*config.Sink{}
	o.pipeMu.Unlock()
	if o.configWatch != nil {
		o.configWatch.Stop()
	}
	o.running = false
	o.log.Info("orchestrator stopped")
}

// Status summarizes the runtime for the control plane.
type Status struct {
	Running   bool   `json:"running"`
	Clients   int    `json:"clients"`
	Sinks     int    `json:"sinks"`
	Events    int    `json:"events"`
	Servers   int    `json:"servers"`
	ConfigDir string `json:"configDirectory"`
}

// Status reports component counts and the config directory.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.pipeMu.RLock()
	sinkCount := len(o.sinks)
	o.pipeMu.RUnlock()

	st := Status{
		Running:   o.running,
		Clients:   len(o.clients),
		Sinks:     sinkCount,
		ConfigDir: o.store.Dir(),
	}
	if reg := o.store.Registry(); reg != nil {
		st.Events = len(reg.Events)
		st.Servers = len(reg.Servers)
	}
	return st
}

// DiscoveredHostnames lists the hostnames discovered for one client, used
// by the data-flow view to associate servers with clients.
func (o *Orchestrator) DiscoveredHostnames(clientID string) []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	rt, ok := o.clients[clientID]
	if !ok || rt.disc == nil {
		return nil
	}
	seen := map[string]struct{}{}
	var out []string
	for _, e := range rt.disc.Entries {
		if e.Hostname == "" {
			continue
		}
		if _, dup := seen[e.Hostname]; dup {
			continue
		}
		seen[e.Hostname] = struct{}{}
		out = append(out, e.Hostname)
	}
	sort.Strings(out)
	return out
}
