// Copyright (C) 2026 JurisDesk (dev@jurisdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package optimistic wraps an async save call with speculative local
// update, rollback on failure, and version-conflict detection.
//
// # State Machine
//
// Each Controller moves through the following states per submission:
//
//	Idle ──Submit()──▶ Submitting ──success──▶ Idle (new baseline)
//	                       │
//	                       ├──conflict──▶ resolve (resolver or server wins)
//	                       └──failure───▶ Idle (rollback, error recorded)
//
// In optimistic mode the working copy is snapshotted and exposed as the
// visible value before the remote call resolves; the snapshot is either
// committed (merged into the baseline) or discarded (visible value
// reverts to the last committed copy) when the call settles. The user
// is never left viewing a value that was not actually persisted.
//
// # Overlapping Submissions
//
// A Controller serializes nothing itself beyond an explicit guard:
// Submit returns ErrSubmitInFlight while a prior call is pending.
// Queueing a follow-up submission is a caller decision.
//
// # Thread Safety
//
// Controller is safe for concurrent use. Callbacks are invoked outside
// the internal lock and must not re-enter the controller synchronously
// in a way that assumes submission state has settled.
package optimistic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"
)

// ErrSubmitInFlight is returned by Submit when a prior submission on
// the same controller has not yet settled.
var ErrSubmitInFlight = errors.New("optimistic: submission already in flight")

// Committed is what a SubmitFunc resolves to on server acceptance.
type Committed[T any] struct {
	// Data is the entity as the server committed it.
	Data T

	// Version is the server's version for the committed entity.
	// Zero means the server did not return one; the controller then
	// increments its local version instead.
	Version int64
}

// SubmitFunc performs exactly one remote save call. Implementations
// reject with *ConflictError when the server's copy has advanced past
// the submitted version, and with any other error for generic failure.
type SubmitFunc[T any] func(ctx context.Context, data T, version int64) (Committed[T], error)

// ConflictError is the distinguished rejection shape for a version
// mismatch. It carries the server's copy so the controller can resolve
// without a second round-trip.
type ConflictError[T any] struct {
	ServerData    T
	ServerVersion int64
}

func (e *ConflictError[T]) Error() string {
	return fmt.Sprintf("optimistic: version conflict, server at version %d", e.ServerVersion)
}

// AsConflict unwraps err into a *ConflictError[T] if it is one.
func AsConflict[T any](err error) (*ConflictError[T], bool) {
	var ce *ConflictError[T]
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// Conflict describes a detected version conflict for a Resolver.
type Conflict[T any] struct {
	// LocalVersion is the version the client assumed when submitting.
	LocalVersion int64

	// ServerVersion is the version the server's copy has advanced to.
	ServerVersion int64

	// Fields lists the JSON field names whose values differ between
	// the local and server payloads, sorted.
	Fields []string

	// Local is the payload the client attempted to submit.
	Local T

	// Server is the server's current copy.
	Server T
}

// Resolver reconciles a conflict into a single entity, which becomes
// the new baseline at the server's version.
type Resolver[T any] func(Conflict[T]) (T, error)

// Options configures a Controller.
type Options[T any] struct {
	// Optimistic enables speculative application of the submitted
	// value before the remote call resolves.
	Optimistic bool

	// OnApplied fires with the speculative value at submit start,
	// before the remote call, so the UI can render it immediately.
	// Only fires in optimistic mode.
	OnApplied func(T)

	// OnReverted fires with the last committed value after a rollback
	// (generic failure or conflict).
	OnReverted func(T)

	// OnError fires on generic submission failure.
	OnError func(error)

	// Resolver reconciles version conflicts. When nil the server's
	// copy wins unconditionally and local edits are discarded.
	Resolver Resolver[T]

	// Logger receives rollback and conflict events. Default: slog.Default().
	Logger *slog.Logger
}

// Controller owns the submission state for one entity instance.
type Controller[T any] struct {
	mu   sync.Mutex
	fn   SubmitFunc[T]
	opts Options[T]
	log  *slog.Logger

	data       T  // working copy, possibly edited
	original   T  // last known-committed copy
	optimistic *T // speculative value, set only while a submission is in flight
	version    int64

	submitting bool
	conflict   bool
	lastErr    error
}

// NewController creates a controller for one entity instance, starting
// at version 1 with initial as the committed baseline.
func NewController[T any](initial T, fn SubmitFunc[T], opts Options[T]) *Controller[T] {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Controller[T]{
		fn:       fn,
		opts:     opts,
		log:      log,
		data:     initial,
		original: initial,
		version:  1,
	}
}

// SetData replaces the working copy. The baseline is unchanged.
func (c *Controller[T]) SetData(data T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = data
}

// Data returns the visible value: the speculative snapshot while a
// submission is in flight in optimistic mode, otherwise the working copy.
func (c *Controller[T]) Data() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.optimistic != nil {
		return *c.optimistic
	}
	return c.data
}

// Committed returns the last known-committed baseline.
func (c *Controller[T]) Committed() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.original
}

// Version returns the current entity version. It advances only on
// confirmed server acceptance.
func (c *Controller[T]) Version() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// IsSubmitting reports whether a submission is in flight.
func (c *Controller[T]) IsSubmitting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitting
}

// HasOptimisticUpdate reports whether a speculative value is visible.
// True implies a submission is in flight in optimistic mode.
func (c *Controller[T]) HasOptimisticUpdate() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.optimistic != nil
}

// ConflictDetected reports whether the most recent submission hit a
// version conflict. Cleared at the next Submit or Reset.
func (c *Controller[T]) ConflictDetected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conflict
}

// LastError returns the error recorded by the most recent failed
// submission, or nil.
func (c *Controller[T]) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Reset clears error and conflict flags. No-op while submitting.
func (c *Controller[T]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.submitting {
		return
	}
	c.lastErr = nil
	c.conflict = false
}

// Submit issues the remote save call for the current working copy.
//
// In optimistic mode the working copy becomes the visible value
// immediately and OnApplied fires before the network call. On success
// the server entity replaces both the working copy and the baseline.
// On any rejection the speculative value is discarded first, so the
// caller never observes an unpersisted value after settlement.
//
// Returns ErrSubmitInFlight when called while a prior submission is
// pending; the second call is rejected, not queued.
func (c *Controller[T]) Submit(ctx context.Context) error {
	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return ErrSubmitInFlight
	}
	c.submitting = true
	c.lastErr = nil
	c.conflict = false
	payload := c.data
	localVersion := c.version
	if c.opts.Optimistic {
		snap := payload
		c.optimistic = &snap
	}
	c.mu.Unlock()

	if c.opts.Optimistic && c.opts.OnApplied != nil {
		c.opts.OnApplied(payload)
	}

	result, err := c.fn(ctx, payload, localVersion)
	if err == nil {
		return c.commit(result, localVersion)
	}
	if ce, ok := AsConflict[T](err); ok {
		return c.resolveConflict(payload, localVersion, ce)
	}
	return c.fail(err)
}

// commit installs a server-accepted entity as the new baseline.
func (c *Controller[T]) commit(result Committed[T], localVersion int64) error {
	c.mu.Lock()
	c.data = result.Data
	c.original = result.Data
	if result.Version > 0 {
		c.version = result.Version
	} else {
		c.version = localVersion + 1
	}
	c.optimistic = nil
	c.submitting = false
	c.mu.Unlock()
	return nil
}

// fail rolls back the speculative value and records the error.
func (c *Controller[T]) fail(err error) error {
	c.mu.Lock()
	c.optimistic = nil
	c.lastErr = err
	c.submitting = false
	committed := c.data
	c.mu.Unlock()

	c.log.Warn("submission failed, optimistic update rolled back", "error", err)
	if c.opts.OnReverted != nil {
		c.opts.OnReverted(committed)
	}
	if c.opts.OnError != nil {
		c.opts.OnError(err)
	}
	return err
}

// resolveConflict rolls back the speculative value and reconciles the
// local and server copies. With no resolver configured the server's
// copy is adopted unconditionally, discarding local edits.
func (c *Controller[T]) resolveConflict(payload T, localVersion int64, ce *ConflictError[T]) error {
	c.mu.Lock()
	c.optimistic = nil
	c.conflict = true
	committed := c.data
	c.mu.Unlock()

	if c.opts.OnReverted != nil {
		c.opts.OnReverted(committed)
	}

	conflict := Conflict[T]{
		LocalVersion:  localVersion,
		ServerVersion: ce.ServerVersion,
		Fields:        diffFields(payload, ce.ServerData),
		Local:         payload,
		Server:        ce.ServerData,
	}

	resolved := ce.ServerData
	if c.opts.Resolver != nil {
		var err error
		resolved, err = c.opts.Resolver(conflict)
		if err != nil {
			c.mu.Lock()
			c.lastErr = err
			c.submitting = false
			c.mu.Unlock()
			if c.opts.OnError != nil {
				c.opts.OnError(err)
			}
			return err
		}
	} else {
		c.log.Warn("version conflict with no resolver, server copy adopted and local edits discarded",
			"local_version", localVersion,
			"server_version", ce.ServerVersion,
			"conflicting_fields", conflict.Fields,
		)
	}

	c.mu.Lock()
	c.data = resolved
	c.original = resolved
	c.version = ce.ServerVersion
	c.lastErr = ce
	c.submitting = false
	c.mu.Unlock()
	return ce
}

// diffFields returns the sorted JSON field names whose values differ
// between two payloads. Non-object payloads yield nil.
func diffFields[T any](local, server T) []string {
	localMap, ok1 := toJSONMap(local)
	serverMap, ok2 := toJSONMap(server)
	if !ok1 || !ok2 {
		return nil
	}
	seen := make(map[string]struct{}, len(localMap))
	var fields []string
	for name, lv := range localMap {
		seen[name] = struct{}{}
		sv, present := serverMap[name]
		if !present || !reflect.DeepEqual(lv, sv) {
			fields = append(fields, name)
		}
	}
	for name := range serverMap {
		if _, done := seen[name]; !done {
			fields = append(fields, name)
		}
	}
	sort.Strings(fields)
	return fields
}

func toJSONMap(v any) (map[string]any, bool) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, false
	}
	return m, true
}
