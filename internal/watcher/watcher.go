/*
Copyright 2026 Ardika Saputro.
Licensed under the Apache License, Version 2.0.
*/

// Package watcher tails the log files of one client: it discovers files by
// glob, keeps a byte offset per file, detects rotation and truncation, and
// hands complete lines to a handler in file order. Offsets are committed
// only after lines are handed over, so delivery is at-least-once.
package watcher

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-logr/logr"

	"github.com/ardikabs/ircnotify/internal/config"
)

// LineHandler receives each complete line together with the file it came
// from. Handlers run on the watcher's poll goroutine; a slow handler slows
// the poll loop, nothing else.
type LineHandler func(path, line string)

// Options configures a Watcher.
type Options struct {
	Client       *config.Client
	PollInterval time.Duration
	// RescanOnStart replays every file from offset zero on the first tick;
	// otherwise existing content is skipped and only new lines flow.
	RescanOnStart bool
	Handler       LineHandler
	Log           logr.Logger
}

type fileState struct {
	offset  int64
	info    os.FileInfo
	partial string
}

// Watcher polls one client's files. The poll goroutine owns all file state.
type Watcher struct {
	client   *config.Client
	patterns []string
	interval time.Duration
	rescan   bool
	handler  LineHandler
	log      logr.Logger

	files     map[string]*fileState
	firstTick bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a watcher from the client's discovery patterns. Without
// explicit patterns every regular file under the log directory is tailed.
func New(opts Options) (*Watcher, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("client is required")
	}
	if opts.Handler == nil {
		return nil, fmt.Errorf("line handler is required")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Duration(config.DefaultPollIntervalMs) * time.Millisecond
	}

	var patterns []string
	if d := opts.Client.Discovery; d != nil && d.Patterns != nil {
		for _, group := range [][]string{d.Patterns.Console, d.Patterns.Channels, d.Patterns.Queries} {
			patterns = append(patterns, group...)
		}
	}
	if len(patterns) == 0 {
		patterns = []string{"**/*"}
	}

	return &Watcher{
		client:    opts.Client,
		patterns:  patterns,
		interval:  opts.PollInterval,
		rescan:    opts.RescanOnStart,
		handler:   opts.Handler,
		log:       opts.Log.WithName("watcher").WithValues("client", opts.Client.ID),
		files:     map[string]*fileState{},
		firstTick: true,
	}, nil
}

// Start launches the poll loop. The first tick runs immediately.
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		w.tick()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.tick()
			}
		}
	}()
	w.log.Info("watcher started", "patterns", strings.Join(w.patterns, ","), "interval", w.interval)
}

// Stop halts the poll loop and waits for the in-flight tick to finish.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

// tick runs one poll cycle: refresh the directory scan, then read every
// known file forward from its committed offset.
func (w *Watcher) tick() {
	for _, path := range w.discover() {
		if _, known := w.files[path]; !known {
			w.files[path] = w.newFileState(path)
		}
	}
	w.firstTick = false

	for path, state := range w.files {
		if err := w.readFile(path, state); err != nil {
			w.log.V(1).Info("poll read failed", "path", path, "error", err.Error())
		}
	}
}

// newFileState seeds the offset for a newly seen file. On the first tick the
// startup policy applies; files appearing later are genuinely new and read
// from the beginning.
func (w *Watcher) newFileState(path string) *fileState {
	state := &fileState{}
	if w.firstTick && !w.rescan {
		if info, err := os.Stat(path); err == nil {
			state.offset = info.Size()
			state.info = info
		}
	}
	return state
}

// discover returns the union of glob matches for all patterns, relative to
// the client's log directory.
func (w *Watcher) discover() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, pattern := range w.patterns {
		full := pattern
		if !filepath.IsAbs(full) {
			full = filepath.Join(w.client.LogDirectory, pattern)
		}
		matches, err := doublestar.FilepathGlob(full)
		if err != nil {
			w.log.V(1).Info("glob failed", "pattern", pattern, "error", err.Error())
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
			out = append(out, m)
		}
	}
	return out
}

// readFile advances one file: rotation and truncation reset the offset to
// zero, new bytes are split into lines, and the trailing partial line is
// buffered until a later tick completes it.
func (w *Watcher) readFile(path string, state *fileState) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	rotated := state.info != nil && !os.SameFile(state.info, info)
	truncated := info.Size() < state.offset
	if rotated || truncated {
		w.log.V(1).Info("file reset detected", "path", path, "rotated", rotated, "truncated", truncated)
		state.offset = 0
		state.partial = ""
	}
	state.info = info

	if info.Size() <= state.offset {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Seek(state.offset, io.SeekStart); err != nil {
		return err
	}
	buf := make([]byte, info.Size()-state.offset)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return err
	}
	chunk := state.partial + string(buf[:n])

	lines := strings.Split(chunk, "\n")
	state.partial = lines[len(lines)-1]
	for _, line := range lines[:len(lines)-1] {
		w.handler(path, strings.TrimSuffix(line, "\r"))
	}

	// Commit only after the handler saw every complete line.
	state.offset += int64(n)
	return nil
}
