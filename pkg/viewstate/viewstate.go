// Copyright (C) 2026 JurisDesk (dev@jurisdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package viewstate persists per-table view state (sort, column
// visibility, sizing, pinning) to durable key-value storage, keyed by
// a stable table identifier so multiple tables coexist independently.
//
// Saves update an in-memory mirror before the durable write, so a Load
// in the same session always reflects the latest Save even when the
// underlying storage write fails. Storage failures are logged and never
// propagated; persistence is best-effort.
package viewstate

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Store is the durable key-value facility backing the manager.
// storage/badger provides the production implementation.
type Store interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// SortRule is the active sort for a table.
type SortRule struct {
	Column    string `json:"column"`
	Direction string `json:"direction"`
}

// TableState is the persisted view state for one table. Nil sub-states
// in a Save call mean "leave that sub-state untouched"; they never wipe
// previously saved values.
type TableState struct {
	Sort       *SortRule         `json:"sort,omitempty"`
	Visibility map[string]bool   `json:"visibility,omitempty"`
	Widths     map[string]int    `json:"widths,omitempty"`
	Pins       map[string]string `json:"pins,omitempty"`
}

// Manager persists table view state keyed by table identifier.
//
// # Thread Safety
//
// Manager is safe for concurrent use.
type Manager struct {
	mu    sync.Mutex
	store Store
	cache map[string]TableState
	log   *slog.Logger
}

// NewManager creates a Manager over the given store. A nil logger uses
// slog.Default().
func NewManager(store Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store: store,
		cache: make(map[string]TableState),
		log:   logger,
	}
}

// storageKey namespaces view state so table ids never collide with
// other consumers of the same store.
func storageKey(tableID string) string {
	return "viewstate:" + tableID
}

// Save merges the provided sub-states into the persisted object for
// tableID. Only non-nil sub-states are written; everything else keeps
// its previously saved value. The in-memory mirror updates before the
// durable write, so a same-session Load reflects this Save even if the
// write fails.
func (m *Manager) Save(tableID string, partial TableState) {
	m.mu.Lock()
	current := m.loadLocked(tableID)
	if partial.Sort != nil {
		rule := *partial.Sort
		current.Sort = &rule
	}
	if partial.Visibility != nil {
		current.Visibility = cloneMap(partial.Visibility)
	}
	if partial.Widths != nil {
		current.Widths = cloneMap(partial.Widths)
	}
	if partial.Pins != nil {
		current.Pins = cloneMap(partial.Pins)
	}
	m.cache[tableID] = current
	m.mu.Unlock()

	data, err := json.Marshal(current)
	if err != nil {
		m.log.Error("failed to encode table view state", "table_id", tableID, "error", err)
		return
	}
	if err := m.store.Set(storageKey(tableID), data); err != nil {
		m.log.Warn("table view state write failed, in-memory mirror retained",
			"table_id", tableID, "error", err)
	}
}

// Load returns the full persisted state for tableID, or an empty state
// if nothing was ever saved.
func (m *Manager) Load(tableID string) TableState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLocked(tableID).clone()
}

// Clear wipes the persisted state for tableID only.
func (m *Manager) Clear(tableID string) {
	m.mu.Lock()
	delete(m.cache, tableID)
	m.mu.Unlock()

	if err := m.store.Delete(storageKey(tableID)); err != nil {
		m.log.Warn("table view state delete failed", "table_id", tableID, "error", err)
	}
}

// loadLocked consults the mirror first, then the durable store.
func (m *Manager) loadLocked(tableID string) TableState {
	if state, ok := m.cache[tableID]; ok {
		return state
	}
	data, ok, err := m.store.Get(storageKey(tableID))
	if err != nil {
		m.log.Warn("table view state read failed", "table_id", tableID, "error", err)
		return TableState{}
	}
	if !ok {
		return TableState{}
	}
	var state TableState
	if err := json.Unmarshal(data, &state); err != nil {
		m.log.Warn("persisted table view state is corrupt, ignoring", "table_id", tableID, "error", err)
		return TableState{}
	}
	m.cache[tableID] = state
	return state
}

func (s TableState) clone() TableState {
	out := s
	if s.Sort != nil {
		rule := *s.Sort
		out.Sort = &rule
	}
	out.Visibility = cloneMap(s.Visibility)
	out.Widths = cloneMap(s.Widths)
	out.Pins = cloneMap(s.Pins)
	return out
}

func cloneMap[V any](in map[string]V) map[string]V {
	if in == nil {
		return nil
	}
	out := make(map[string]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
