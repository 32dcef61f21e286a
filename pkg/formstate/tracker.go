// Copyright (C) 2026 JurisDesk (dev@jurisdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package formstate tracks per-field edits against a committed baseline.
//
// A Tracker holds one FieldState per registered form field and derives
// dirtiness by comparing the live value against a snapshot captured at
// (re-)initialization. It is pure bookkeeping: no I/O, no goroutines,
// and query paths never panic. Reads of unregistered fields return
// zero values.
//
// # Basic Usage
//
//	tracker := formstate.NewTracker(nil)
//	tracker.InitializeField("amount", 0)
//	tracker.UpdateField("amount", 1000)
//	tracker.IsDirty()          // true
//	tracker.ChangedValues()    // map[amount:1000]
//	tracker.Rebaseline()       // after a confirmed save
//	tracker.IsDirty()          // false
//
// # Thread Safety
//
// Tracker is safe for concurrent use. All state is guarded by a mutex.
package formstate

import (
	"reflect"
	"sync"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// EqualFunc compares two field values for semantic equality.
//
// The default implementation performs deep structural comparison
// (order-independent for map keys, nil and empty collections treated
// as equal). Callers may substitute a custom comparator for fields
// whose values are textually different but semantically the same,
// e.g. normalized phone numbers.
type EqualFunc func(a, b any) bool

// DefaultEqual is the structural comparator used when Options.Equal is
// nil. Struct values with unexported fields, which go-cmp refuses to
// compare, fall back to reflect.DeepEqual so query paths never panic.
func DefaultEqual(a, b any) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = reflect.DeepEqual(a, b)
		}
	}()
	return cmp.Equal(a, b, cmpopts.EquateEmpty())
}

// FieldState is the tracked state of a single form field.
type FieldState struct {
	// Original is the baseline snapshot captured at initialization.
	Original any

	// Current is the live value.
	Current any

	// Touched is set once the field has received user interaction.
	Touched bool

	// LastModified is the time of the most recent UpdateField call.
	// Zero if the field has never been updated.
	LastModified time.Time
}

// Options configures a Tracker.
type Options struct {
	// Equal is the comparator used to derive dirtiness.
	// Default: DefaultEqual.
	Equal EqualFunc

	// IgnoreFields are excluded from ChangedValues and the global
	// IsDirty computation. Per-field queries still see them.
	IgnoreFields []string

	// TrackTouch enables TouchField bookkeeping.
	// Default: true.
	TrackTouch bool
}

// DefaultOptions returns the default Tracker configuration.
func DefaultOptions() Options {
	return Options{
		Equal:      DefaultEqual,
		TrackTouch: true,
	}
}

// Tracker detects per-field changes against an original snapshot.
type Tracker struct {
	mu      sync.RWMutex
	fields  map[string]*FieldState
	equal   EqualFunc
	ignored map[string]struct{}
	touch   bool
}

// NewTracker creates a Tracker. A nil opts uses DefaultOptions.
func NewTracker(opts *Options) *Tracker {
	if opts == nil {
		defaults := DefaultOptions()
		opts = &defaults
	}
	equal := opts.Equal
	if equal == nil {
		equal = DefaultEqual
	}
	ignored := make(map[string]struct{}, len(opts.IgnoreFields))
	for _, name := range opts.IgnoreFields {
		ignored[name] = struct{}{}
	}
	return &Tracker{
		fields:  make(map[string]*FieldState),
		equal:   equal,
		ignored: ignored,
		touch:   opts.TrackTouch,
	}
}

// InitializeField registers a field, setting both the baseline and the
// current value to a deep clone of value. Re-initializing an existing
// field overwrites its baseline; this is used when the underlying
// record is reloaded from the server.
func (t *Tracker) InitializeField(name string, value any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fields[name] = &FieldState{
		Original: deepClone(value),
		Current:  deepClone(value),
	}
}

// UpdateField sets the current value of a field. A field that was
// never initialized is implicitly initialized with value as its
// baseline, so a first update is never dirty.
func (t *Tracker) UpdateField(name string, value any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fs, ok := t.fields[name]
	if !ok {
		fs = &FieldState{Original: deepClone(value)}
		t.fields[name] = fs
	}
	fs.Current = value
	fs.LastModified = time.Now()
}

// TouchField marks a field as having received user interaction.
// No-op when touch tracking is disabled or the field is unregistered.
func (t *Tracker) TouchField(name string) {
	if !t.touch {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if fs, ok := t.fields[name]; ok {
		fs.Touched = true
	}
}

// Touched reports whether a field has been touched.
func (t *Tracker) Touched(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	fs, ok := t.fields[name]
	return ok && fs.Touched
}

// ResetField restores a field's current value to its baseline and
// clears the touched flag. No-op for unregistered fields.
func (t *Tracker) ResetField(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetLocked(name)
}

// ResetAll restores every field to its baseline. Idempotent.
func (t *Tracker) ResetAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for name := range t.fields {
		t.resetLocked(name)
	}
}

func (t *Tracker) resetLocked(name string) {
	fs, ok := t.fields[name]
	if !ok {
		return
	}
	fs.Current = deepClone(fs.Original)
	fs.Touched = false
	fs.LastModified = time.Time{}
}

// Rebaseline makes every field's current value its new baseline.
// Called after a confirmed save so the committed state is clean.
func (t *Tracker) Rebaseline() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, fs := range t.fields {
		fs.Original = deepClone(fs.Current)
		fs.Touched = false
	}
}

// IsFieldDirty reports whether a field's current value differs from
// its baseline. Unregistered fields are never dirty.
func (t *Tracker) IsFieldDirty(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	fs, ok := t.fields[name]
	if !ok {
		return false
	}
	return !t.equal(fs.Original, fs.Current)
}

// IsDirty reports whether any non-ignored field is dirty.
func (t *Tracker) IsDirty() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for name, fs := range t.fields {
		if _, skip := t.ignored[name]; skip {
			continue
		}
		if !t.equal(fs.Original, fs.Current) {
			return true
		}
	}
	return false
}

// Original returns a field's baseline value. The second return is
// false for unregistered fields.
func (t *Tracker) Original(name string) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	fs, ok := t.fields[name]
	if !ok {
		return nil, false
	}
	return fs.Original, true
}

// Value returns a field's current value. The second return is false
// for unregistered fields.
func (t *Tracker) Value(name string) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	fs, ok := t.fields[name]
	if !ok {
		return nil, false
	}
	return fs.Current, true
}

// ChangedValues returns the current values of all dirty, non-ignored
// fields. The returned map is a fresh copy.
func (t *Tracker) ChangedValues() map[string]any {
	t.mu.RLock()
	defer t.mu.RUnlock()
	changed := make(map[string]any)
	for name, fs := range t.fields {
		if _, skip := t.ignored[name]; skip {
			continue
		}
		if !t.equal(fs.Original, fs.Current) {
			changed[name] = fs.Current
		}
	}
	return changed
}

// FieldNames returns the names of all registered fields.
func (t *Tracker) FieldNames() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.fields))
	for name := range t.fields {
		names = append(names, name)
	}
	return names
}

// deepClone copies a value structurally, preserving the dynamic type
// of every element so a clone compares equal to its source. Maps,
// slices, arrays, pointers, and exported struct fields are copied
// recursively; channels, funcs, and unexported struct fields are
// carried by reference. Cyclic values must not be tracked.
func deepClone(v any) any {
	if v == nil {
		return nil
	}
	return cloneValue(reflect.ValueOf(v)).Interface()
}

func cloneValue(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Type().Elem())
		out.Elem().Set(cloneValue(v.Elem()))
		return out
	case reflect.Interface:
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Type()).Elem()
		out.Set(cloneValue(v.Elem()))
		return out
	case reflect.Map:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(cloneValue(iter.Key()), cloneValue(iter.Value()))
		}
		return out
	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(cloneValue(v.Index(i)))
		}
		return out
	case reflect.Array:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(cloneValue(v.Index(i)))
		}
		return out
	case reflect.Struct:
		out := reflect.New(v.Type()).Elem()
		// Whole-value assignment carries unexported fields; exported
		// fields are then re-set with deep copies.
		out.Set(v)
		for i := 0; i < v.NumField(); i++ {
			if out.Field(i).CanSet() {
				out.Field(i).Set(cloneValue(v.Field(i)))
			}
		}
		return out
	default:
		return v
	}
}
