// Copyright (C) 2026 JurisDesk (dev@jurisdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadHandler is called with the freshly loaded configuration after
// a debounced change to the config file.
type ReloadHandler func(Config)

// Watcher reloads the configuration when its file changes on disk.
//
// # Debouncing
//
// Editors typically emit several write and rename events per save.
// Events are collected and the reload fires once after the debounce
// window passes without further events. A reload that fails to parse
// or validate is logged and dropped; the previous configuration stays
// in effect.
//
// # Thread Safety
//
// Safe for concurrent use. Handler calls are serialized.
type Watcher struct {
	path     string
	handler  ReloadHandler
	debounce time.Duration
	log      *slog.Logger

	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
	reloadMu sync.Mutex
}

// NewWatcher creates a watcher for the config file at path. A zero
// debounce defaults to 250ms; a nil logger uses slog.Default().
func NewWatcher(path string, handler ReloadHandler, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		path:     path,
		handler:  handler,
		debounce: debounce,
		log:      logger,
		watcher:  fw,
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching. The parent directory is watched rather than
// the file itself so atomic save-and-rename writes are observed.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	go w.loop(ctx)
	return nil
}

// Stop stops watching. Idempotent.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.watcher.Close()
	})
}

func (w *Watcher) loop(ctx context.Context) {
	// Cancel-and-reschedule with AfterFunc rather than Reset on a
	// shared channel; a Reset racing an already-fired timer can leave
	// a stale tick in the channel and lose the final reload.
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, w.reload)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("config watch error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()
	cfg, err := Load(w.path)
	if err != nil {
		w.log.Warn("config reload rejected, keeping previous configuration",
			"path", w.path, "error", err)
		return
	}
	w.log.Info("configuration reloaded", "path", w.path)
	if w.handler != nil {
		w.handler(cfg)
	}
}
