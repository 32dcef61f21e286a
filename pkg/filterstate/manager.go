// Copyright (C) 2026 JurisDesk (dev@jurisdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package filterstate

import (
	"encoding/json"
	"log/slog"
	"net/url"
	"sync"
	"time"
)

// DefaultDebounceWindow is the quiescent interval after the last
// mutation before sinks and the change callback are notified.
const DefaultDebounceWindow = 300 * time.Millisecond

// Store is the durable key-value facility used for filter persistence.
// storage/badger provides the production implementation.
type Store interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// Sink receives the filter state after each debounced change. Sink
// failures are logged and never propagated; persistence is best-effort
// and must not block the primary UI action.
type Sink interface {
	Flush(s State) error
}

// SinkFunc adapts a plain function to the Sink interface.
type SinkFunc func(State) error

func (f SinkFunc) Flush(s State) error { return f(s) }

// QuerySink serializes the filter state into URL query parameters and
// hands them to the routing facility's replace function.
type QuerySink struct {
	Apply func(url.Values)
}

func (q QuerySink) Flush(s State) error {
	q.Apply(Encode(s))
	return nil
}

// StoreSink persists the filter state as JSON under a caller-supplied
// storage key.
type StoreSink struct {
	Store Store
	Key   string
}

func (ss StoreSink) Flush(s State) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return ss.Store.Set(ss.Key, data)
}

// Options configures a Manager.
type Options struct {
	// Defaults is the state installed at creation and restored by Reset.
	Defaults State

	// DebounceWindow collapses rapid mutations into a single downstream
	// update. Default: DefaultDebounceWindow.
	DebounceWindow time.Duration

	// OnChange fires with the current state after each debounced flush.
	OnChange func(State)

	// Sinks receive the state after each debounced flush.
	Sinks []Sink

	// Logger receives sink-failure events. Default: slog.Default().
	Logger *slog.Logger

	// Now supplies the reference time for date presets. Default: time.Now.
	Now func() time.Time
}

// Manager holds a filter object and debounces its propagation.
//
// Mutations are applied synchronously to the in-memory state; each one
// reschedules a single pending flush timer (cancel-and-reschedule), so
// exactly one downstream update reaches the sinks per quiescent period
// regardless of how many keystrokes preceded it.
//
// # Thread Safety
//
// Manager is safe for concurrent use.
type Manager struct {
	mu     sync.Mutex
	state  State
	timer  *time.Timer
	closed bool

	defaults State
	window   time.Duration
	onChange func(State)
	sinks    []Sink
	log      *slog.Logger
	now      func() time.Time
}

// NewManager creates a Manager. A nil opts uses defaults throughout.
func NewManager(opts *Options) *Manager {
	if opts == nil {
		opts = &Options{}
	}
	window := opts.DebounceWindow
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		state:    opts.Defaults.clone(),
		defaults: opts.Defaults.clone(),
		window:   window,
		onChange: opts.OnChange,
		sinks:    opts.Sinks,
		log:      log,
		now:      now,
	}
}

// State returns a copy of the current filter object.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

// Set replaces the whole filter object.
func (m *Manager) Set(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s.clone()
	m.scheduleLocked()
}

// SetDateRange sets the date dimension. Either bound may be empty for
// an open-ended range.
func (m *Manager) SetDateRange(start, end string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.StartDate, m.state.EndDate = start, end
	m.scheduleLocked()
}

// SetCategory sets the category dimension.
func (m *Manager) SetCategory(category string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Category = category
	m.scheduleLocked()
}

// SetQuery sets the free-text dimension.
func (m *Manager) SetQuery(query string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Query = query
	m.scheduleLocked()
}

// SetAmountRange sets the amount bounds. Nil means unbounded.
func (m *Manager) SetAmountRange(min, max *int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.MinAmount, m.state.MaxAmount = copyInt64(min), copyInt64(max)
	m.scheduleLocked()
}

// SetTags sets the tag dimension.
func (m *Manager) SetTags(tagIDs []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.TagIDs = append([]string(nil), tagIDs...)
	m.scheduleLocked()
}

// SetSort sets the sort key and direction.
func (m *Manager) SetSort(key, dir string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.SortKey, m.state.SortDir = key, dir
	m.scheduleLocked()
}

// ApplyDatePreset computes a named preset at call time and applies it
// as the date range. Unknown keys return an error and change nothing.
func (m *Manager) ApplyDatePreset(key string) error {
	start, end, err := PresetRange(key, m.now())
	if err != nil {
		return err
	}
	m.SetDateRange(start, end)
	return nil
}

// ClearDimension resets exactly one dimension to unset. Grouped
// dimensions (date, amount, sort) clear both of their parts together.
func (m *Manager) ClearDimension(dim Dimension) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.clearDimension(dim)
	m.scheduleLocked()
}

// Reset restores the entire filter object to its defaults.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = m.defaults.clone()
	m.scheduleLocked()
}

// HasActiveFilters reports whether any constraining dimension is set.
func (m *Manager) HasActiveFilters() bool { return m.State().HasActiveFilters() }

// ActiveFilterCount returns the number of set constraining dimensions.
func (m *Manager) ActiveFilterCount() int { return m.State().ActiveFilterCount() }

// Summary returns the removable-chip view of the active filters.
func (m *Manager) Summary() []Chip { return m.State().Summary() }

// Validate surfaces structural violations in the current state.
func (m *Manager) Validate() []string { return Validate(m.State()) }

// Hydrate initializes the filter object from the current URL query,
// falling back to the persisted copy under storeKey when the URL
// carries no filter parameters. URL values take precedence. Hydration
// does not schedule a flush; nothing changed downstream.
func (m *Manager) Hydrate(values url.Values, store Store, storeKey string) {
	if hasFilterParams(values) {
		decoded := Decode(values)
		m.mu.Lock()
		m.state = decoded
		m.mu.Unlock()
		return
	}
	if store == nil {
		return
	}
	data, ok, err := store.Get(storeKey)
	if err != nil {
		m.log.Warn("filter hydration from store failed", "key", storeKey, "error", err)
		return
	}
	if !ok {
		return
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		m.log.Warn("persisted filter state is corrupt, ignoring", "key", storeKey, "error", err)
		return
	}
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Flush forces any pending debounced update to run immediately.
func (m *Manager) Flush() {
	m.mu.Lock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	snapshot := m.state.clone()
	m.mu.Unlock()
	m.deliver(snapshot)
}

// Close stops the debounce timer, delivering a final flush if one was
// pending. The manager must not be mutated after Close.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	pending := m.timer != nil
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	snapshot := m.state.clone()
	m.mu.Unlock()
	if pending {
		m.deliver(snapshot)
	}
}

// scheduleLocked cancels and reschedules the single pending flush
// timer. Exactly one flush reaches the sinks per quiescent period.
func (m *Manager) scheduleLocked() {
	if m.closed {
		return
	}
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.window, m.debouncedFlush)
}

func (m *Manager) debouncedFlush() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	snapshot := m.state.clone()
	m.mu.Unlock()
	m.deliver(snapshot)
}

func (m *Manager) deliver(s State) {
	if m.onChange != nil {
		m.onChange(s)
	}
	for _, sink := range m.sinks {
		if err := sink.Flush(s); err != nil {
			m.log.Warn("filter sink flush failed", "error", err)
		}
	}
}

func (s State) clone() State {
	out := s
	out.MinAmount = copyInt64(s.MinAmount)
	out.MaxAmount = copyInt64(s.MaxAmount)
	if s.TagIDs != nil {
		out.TagIDs = append([]string(nil), s.TagIDs...)
	}
	return out
}

func copyInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}

func hasFilterParams(values url.Values) bool {
	for _, key := range []string{
		paramStartDate, paramEndDate, paramCategory, paramQuery,
		paramMinAmount, paramMaxAmount, paramTags, paramSortKey, paramSortDir,
	} {
		if values.Get(key) != "" {
			return true
		}
	}
	return false
}
