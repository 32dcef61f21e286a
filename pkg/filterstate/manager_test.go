// Copyright (C) 2026 JurisDesk (dev@jurisdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package filterstate

import (
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is a minimal in-memory Store for tests.
type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
}

func newMemStore() *memStore { return &memStore{data: make(map[string][]byte)} }

func (s *memStore) Get(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, false, s.err
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *memStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.data[key] = value
	return nil
}

func (s *memStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// changeRecorder counts debounced deliveries.
type changeRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *changeRecorder) record(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *changeRecorder) snapshot() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func TestDebounceCollapsesRapidMutations(t *testing.T) {
	rec := &changeRecorder{}
	m := NewManager(&Options{
		DebounceWindow: 30 * time.Millisecond,
		OnChange:       rec.record,
	})
	defer m.Close()

	// Simulated keystrokes inside one debounce window.
	m.SetQuery("t")
	m.SetQuery("ta")
	m.SetQuery("tax")
	m.SetQuery("taxi")

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)

	states := rec.snapshot()
	assert.Equal(t, "taxi", states[0].Query, "only the last mutation in the window propagates")
}

func TestMutationsAreSynchronousPropagationIsNot(t *testing.T) {
	rec := &changeRecorder{}
	m := NewManager(&Options{DebounceWindow: time.Hour, OnChange: rec.record})
	defer m.Close()

	m.SetCategory("transport")
	assert.Equal(t, "transport", m.State().Category, "in-memory state updates immediately")
	assert.Empty(t, rec.snapshot(), "downstream update waits for the debounce window")
}

func TestFlushForcesPendingUpdate(t *testing.T) {
	rec := &changeRecorder{}
	store := newMemStore()
	m := NewManager(&Options{
		DebounceWindow: time.Hour,
		OnChange:       rec.record,
		Sinks:          []Sink{StoreSink{Store: store, Key: "filters:expenses"}},
	})
	defer m.Close()

	m.SetCategory("lodging")
	m.Flush()

	require.Len(t, rec.snapshot(), 1)
	data, ok, err := store.Get("filters:expenses")
	require.NoError(t, err)
	require.True(t, ok)

	var persisted State
	require.NoError(t, json.Unmarshal(data, &persisted))
	assert.Equal(t, "lodging", persisted.Category)
}

func TestCloseDeliversFinalPendingFlush(t *testing.T) {
	rec := &changeRecorder{}
	m := NewManager(&Options{DebounceWindow: time.Hour, OnChange: rec.record})

	m.SetQuery("deposition")
	m.Close()

	states := rec.snapshot()
	require.Len(t, states, 1)
	assert.Equal(t, "deposition", states[0].Query)

	// Close is idempotent and never double-delivers.
	m.Close()
	assert.Len(t, rec.snapshot(), 1)
}

func TestSinkFailureIsSwallowed(t *testing.T) {
	failing := SinkFunc(func(State) error { return errors.New("quota exceeded") })
	rec := &changeRecorder{}
	m := NewManager(&Options{
		DebounceWindow: 10 * time.Millisecond,
		Sinks:          []Sink{failing, SinkFunc(func(s State) error { rec.record(s); return nil })},
	})
	defer m.Close()

	m.SetCategory("transport")

	// The failing sink must not prevent later sinks or future flushes.
	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestClearDimensionGroups(t *testing.T) {
	m := NewManager(&Options{DebounceWindow: time.Hour})
	defer m.Close()

	m.Set(State{
		StartDate: "2024-01-01",
		EndDate:   "2024-03-10",
		MinAmount: int64Ptr(100),
		MaxAmount: int64Ptr(900),
		Category:  "transport",
	})

	m.ClearDimension(DimensionDate)
	s := m.State()
	assert.Empty(t, s.StartDate)
	assert.Empty(t, s.EndDate)
	assert.Equal(t, "transport", s.Category, "other dimensions untouched")

	m.ClearDimension(DimensionAmount)
	s = m.State()
	assert.Nil(t, s.MinAmount)
	assert.Nil(t, s.MaxAmount)
}

func TestResetRestoresDefaults(t *testing.T) {
	defaults := State{SortKey: "incurred_on", SortDir: "desc"}
	m := NewManager(&Options{Defaults: defaults, DebounceWindow: time.Hour})
	defer m.Close()

	m.SetCategory("transport")
	m.SetQuery("taxi")
	m.Reset()

	assert.Equal(t, defaults, m.State())
}

func TestApplyDatePresetUsesClock(t *testing.T) {
	now := time.Date(2024, time.May, 15, 0, 0, 0, 0, time.UTC)
	m := NewManager(&Options{
		DebounceWindow: time.Hour,
		Now:            func() time.Time { return now },
	})
	defer m.Close()

	require.NoError(t, m.ApplyDatePreset(PresetThisMonth))
	s := m.State()
	assert.Equal(t, "2024-05-01", s.StartDate)
	assert.Equal(t, "2024-05-31", s.EndDate)

	assert.Error(t, m.ApplyDatePreset("bogus"))
}

func TestHydratePrefersURLOverStore(t *testing.T) {
	store := newMemStore()
	persisted, _ := json.Marshal(State{Category: "lodging"})
	require.NoError(t, store.Set("filters:expenses", persisted))

	m := NewManager(&Options{DebounceWindow: time.Hour})
	defer m.Close()

	values := url.Values{}
	values.Set("category", "transport")
	m.Hydrate(values, store, "filters:expenses")
	assert.Equal(t, "transport", m.State().Category)
}

func TestHydrateFallsBackToStore(t *testing.T) {
	store := newMemStore()
	persisted, _ := json.Marshal(State{Category: "lodging", TagIDs: []string{"billable"}})
	require.NoError(t, store.Set("filters:expenses", persisted))

	m := NewManager(&Options{DebounceWindow: time.Hour})
	defer m.Close()

	m.Hydrate(url.Values{}, store, "filters:expenses")
	s := m.State()
	assert.Equal(t, "lodging", s.Category)
	assert.Equal(t, []string{"billable"}, s.TagIDs)
}

func TestHydrateSurvivesStoreFailureAndCorruption(t *testing.T) {
	m := NewManager(&Options{DebounceWindow: time.Hour})
	defer m.Close()

	broken := newMemStore()
	broken.err = errors.New("disk gone")
	m.Hydrate(url.Values{}, broken, "filters:expenses")
	assert.Equal(t, State{}, m.State())

	corrupt := newMemStore()
	require.NoError(t, corrupt.Set("filters:expenses", []byte("{not json")))
	corrupt.err = nil
	m.Hydrate(url.Values{}, corrupt, "filters:expenses")
	assert.Equal(t, State{}, m.State())
}

func TestStateGetterReturnsCopy(t *testing.T) {
	m := NewManager(&Options{DebounceWindow: time.Hour})
	defer m.Close()

	m.SetTags([]string{"matter-104"})
	s := m.State()
	s.TagIDs[0] = "mutated"
	s.StartDate = "2024-01-01"

	assert.Equal(t, []string{"matter-104"}, m.State().TagIDs)
	assert.Empty(t, m.State().StartDate)
}
