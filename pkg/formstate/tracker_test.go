// Copyright (C) 2026 JurisDesk (dev@jurisdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package formstate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeFieldIsClean(t *testing.T) {
	tracker := NewTracker(nil)
	tracker.InitializeField("description", "taxi to court")

	assert.False(t, tracker.IsFieldDirty("description"))
	assert.False(t, tracker.IsDirty())

	original, ok := tracker.Original("description")
	require.True(t, ok)
	assert.Equal(t, "taxi to court", original)
}

func TestUpdateThenResetField(t *testing.T) {
	tracker := NewTracker(nil)
	tracker.InitializeField("amount", 500)

	tracker.UpdateField("amount", 1200)
	assert.True(t, tracker.IsFieldDirty("amount"))

	tracker.ResetField("amount")
	assert.False(t, tracker.IsFieldDirty("amount"))

	value, ok := tracker.Value("amount")
	require.True(t, ok)
	assert.Equal(t, 500, value)
}

func TestImplicitInitializationIsNeverDirty(t *testing.T) {
	tracker := NewTracker(nil)

	// First update of an unregistered field becomes its baseline.
	tracker.UpdateField("category", "transport")
	assert.False(t, tracker.IsFieldDirty("category"))

	tracker.UpdateField("category", "lodging")
	assert.True(t, tracker.IsFieldDirty("category"))
}

func TestReinitializeOverwritesBaseline(t *testing.T) {
	tracker := NewTracker(nil)
	tracker.InitializeField("amount", 100)
	tracker.UpdateField("amount", 900)
	require.True(t, tracker.IsFieldDirty("amount"))

	// Record reloaded from the server.
	tracker.InitializeField("amount", 900)
	assert.False(t, tracker.IsFieldDirty("amount"))
}

func TestResetAllIsIdempotent(t *testing.T) {
	tracker := NewTracker(nil)
	tracker.InitializeField("description", "lunch")
	tracker.InitializeField("amount", 800)
	tracker.UpdateField("description", "client lunch")
	tracker.UpdateField("amount", 1600)
	tracker.TouchField("description")

	tracker.ResetAll()
	first := tracker.ChangedValues()
	tracker.ResetAll()
	second := tracker.ChangedValues()

	assert.Empty(t, first)
	assert.Equal(t, first, second)
	assert.False(t, tracker.IsDirty())
	assert.False(t, tracker.Touched("description"))
}

func TestChangedValuesExcludesIgnoredFields(t *testing.T) {
	tracker := NewTracker(&Options{IgnoreFields: []string{"updated_at"}, TrackTouch: true})
	tracker.InitializeField("amount", 0)
	tracker.InitializeField("updated_at", int64(1))

	tracker.UpdateField("amount", 1000)
	tracker.UpdateField("updated_at", int64(2))

	changed := tracker.ChangedValues()
	assert.Equal(t, map[string]any{"amount": 1000}, changed)

	// Ignored fields still answer per-field queries.
	assert.True(t, tracker.IsFieldDirty("updated_at"))
	assert.True(t, tracker.IsDirty())

	tracker.ResetField("amount")
	assert.False(t, tracker.IsDirty(), "global dirty must skip ignored fields")
}

func TestCustomComparator(t *testing.T) {
	normalize := func(v any) string {
		s, _ := v.(string)
		return strings.ReplaceAll(strings.ReplaceAll(s, "-", ""), " ", "")
	}
	tracker := NewTracker(&Options{
		Equal: func(a, b any) bool { return normalize(a) == normalize(b) },
	})
	tracker.InitializeField("phone", "03-1234-5678")
	tracker.UpdateField("phone", "0312345678")

	assert.False(t, tracker.IsFieldDirty("phone"), "semantically equal values must not be dirty")
}

func TestDeepCloneProtectsBaseline(t *testing.T) {
	tracker := NewTracker(nil)
	tags := []string{"matter-104"}
	tracker.InitializeField("tags", tags)

	// Mutating the caller's slice must not silently change the baseline.
	tags[0] = "matter-999"
	original, ok := tracker.Original("tags")
	require.True(t, ok)
	assert.Equal(t, []string{"matter-104"}, original)
}

func TestNestedValuesCompareStructurally(t *testing.T) {
	tracker := NewTracker(nil)
	tracker.InitializeField("receipt", map[string]any{"file": "r1.pdf", "pages": 2})

	tracker.UpdateField("receipt", map[string]any{"pages": 2, "file": "r1.pdf"})
	assert.False(t, tracker.IsFieldDirty("receipt"), "map key order must not matter")

	tracker.UpdateField("receipt", map[string]any{"pages": 3, "file": "r1.pdf"})
	assert.True(t, tracker.IsFieldDirty("receipt"))
}

func TestClonePreservesDynamicTypes(t *testing.T) {
	tracker := NewTracker(nil)
	tracker.InitializeField("receipt", map[string]any{"file": "r1.pdf", "pages": 2})

	// The baseline snapshot must keep every nested element's concrete
	// type, so re-submitting identical data stays clean.
	original, ok := tracker.Original("receipt")
	require.True(t, ok)
	snapshot, ok := original.(map[string]any)
	require.True(t, ok)
	assert.IsType(t, 0, snapshot["pages"])
	assert.Equal(t, 2, snapshot["pages"])

	tracker.UpdateField("receipt", map[string]any{"file": "r1.pdf", "pages": 2})
	assert.False(t, tracker.IsFieldDirty("receipt"))
}

func TestStructWithUnexportedFields(t *testing.T) {
	type phoneNumber struct {
		Display string
		raw     string
	}

	tracker := NewTracker(nil)
	tracker.InitializeField("phone", phoneNumber{Display: "03-1234-5678", raw: "0312345678"})

	// Values go-cmp refuses to compare must still answer dirtiness
	// queries instead of panicking.
	assert.NotPanics(t, func() {
		assert.False(t, tracker.IsFieldDirty("phone"))

		tracker.UpdateField("phone", phoneNumber{Display: "03-9999-0000", raw: "0399990000"})
		assert.True(t, tracker.IsFieldDirty("phone"))
		assert.True(t, tracker.IsDirty())
	})
}

func TestTouchTrackingDisabled(t *testing.T) {
	tracker := NewTracker(&Options{TrackTouch: false})
	tracker.InitializeField("memo", "")
	tracker.TouchField("memo")
	assert.False(t, tracker.Touched("memo"))
}

func TestUnregisteredFieldQueriesReturnZeroValues(t *testing.T) {
	tracker := NewTracker(nil)

	assert.False(t, tracker.IsFieldDirty("missing"))
	assert.False(t, tracker.Touched("missing"))

	_, ok := tracker.Original("missing")
	assert.False(t, ok)
	_, ok = tracker.Value("missing")
	assert.False(t, ok)

	// Resets on unknown fields must not panic.
	tracker.ResetField("missing")
	tracker.ResetAll()
}

func TestRebaselineAfterSave(t *testing.T) {
	tracker := NewTracker(nil)
	tracker.InitializeField("amount", 0)
	tracker.UpdateField("amount", 1000)
	require.True(t, tracker.IsDirty())

	tracker.Rebaseline()
	assert.False(t, tracker.IsDirty())

	original, ok := tracker.Original("amount")
	require.True(t, ok)
	assert.Equal(t, 1000, original)
}
