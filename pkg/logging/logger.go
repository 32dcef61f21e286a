// Copyright (C) 2026 JurisDesk (dev@jurisdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging builds the process-wide structured logger.
//
// Output goes to stderr by default, in JSON or text format. When a log
// file is configured, entries are duplicated there in JSON regardless
// of the stderr format, since file logs are for machines. Every entry
// carries a "service" attribute so aggregated logs can be filtered by
// component.
//
// # Thread Safety
//
// The returned *slog.Logger is safe for concurrent use.
//
// # Security Considerations
//
// Nothing here redacts sensitive data. Callers must not log client
// matter details, tokens, or secrets:
//
//	// BAD: logs the token
//	log.Info("auth", "token", token)
//
//	// GOOD: logs metadata only
//	log.Info("auth", "token_present", token != "")
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Options configures the logger. The zero value writes Info+ text to
// stderr with service "jurisdesk".
type Options struct {
	// Level is the minimum severity: debug, info, warn or error.
	Level string

	// Format is the stderr format, "json" or "text".
	Format string

	// File, when set, duplicates entries to this path in JSON. The
	// parent directory is created if missing.
	File string

	// Service is attached to every entry as the "service" attribute.
	Service string

	// LevelVar, when set, controls the minimum level at runtime. It is
	// initialized from Level; callers keep the reference and may retune
	// it later, e.g. on config reload.
	LevelVar *slog.LevelVar
}

// ParseLevel maps a level name to its slog level. Unknown names
// return an error.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", name)
	}
}

// New builds a logger from the options. The returned close function
// flushes and closes the log file, if any; call it on shutdown.
func New(opts Options) (*slog.Logger, func() error, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}
	var leveler slog.Leveler = level
	if opts.LevelVar != nil {
		opts.LevelVar.Set(level)
		leveler = opts.LevelVar
	}
	hopts := &slog.HandlerOptions{Level: leveler}

	var stderr slog.Handler
	if opts.Format == "text" {
		stderr = slog.NewTextHandler(os.Stderr, hopts)
	} else {
		stderr = slog.NewJSONHandler(os.Stderr, hopts)
	}
	handlers := []slog.Handler{stderr}

	closeFn := func() error { return nil }
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0750); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		file, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		handlers = append(handlers, slog.NewJSONHandler(file, hopts))
		closeFn = func() error {
			if err := file.Sync(); err != nil {
				_ = file.Close()
				return err
			}
			return file.Close()
		}
	}

	var handler slog.Handler
	if len(handlers) == 1 {
		handler = handlers[0]
	} else {
		handler = &fanoutHandler{handlers: handlers}
	}

	service := opts.Service
	if service == "" {
		service = "jurisdesk"
	}
	handler = handler.WithAttrs([]slog.Attr{slog.String("service", service)})

	return slog.New(handler), closeFn, nil
}

// fanoutHandler duplicates records to several handlers, enabling
// text on stderr alongside JSON in the log file.
type fanoutHandler struct {
	handlers []slog.Handler
}

func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, r.Level) {
			continue
		}
		if err := handler.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &fanoutHandler{handlers: handlers}
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &fanoutHandler{handlers: handlers}
}
