// Copyright (C) 2026 JurisDesk (dev@jurisdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package filterstate

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(n int64) *int64 { return &n }

func TestValidateDateOrdering(t *testing.T) {
	t.Run("inverted range produces a message", func(t *testing.T) {
		problems := Validate(State{StartDate: "2024-03-10", EndDate: "2024-01-01"})
		assert.NotEmpty(t, problems)
	})

	t.Run("ordered range produces none", func(t *testing.T) {
		problems := Validate(State{StartDate: "2024-01-01", EndDate: "2024-03-10"})
		assert.Empty(t, problems)
	})

	t.Run("open-ended bounds are valid", func(t *testing.T) {
		assert.Empty(t, Validate(State{StartDate: "2024-01-01"}))
		assert.Empty(t, Validate(State{EndDate: "2024-03-10"}))
	})

	t.Run("malformed dates are reported", func(t *testing.T) {
		problems := Validate(State{StartDate: "03/10/2024"})
		assert.Len(t, problems, 1)
	})
}

func TestValidateAmountOrdering(t *testing.T) {
	problems := Validate(State{MinAmount: int64Ptr(5000), MaxAmount: int64Ptr(100)})
	assert.NotEmpty(t, problems)

	assert.Empty(t, Validate(State{MinAmount: int64Ptr(100), MaxAmount: int64Ptr(5000)}))
	assert.Empty(t, Validate(State{MinAmount: int64Ptr(100)}))
}

func TestValidateSortDirection(t *testing.T) {
	assert.Empty(t, Validate(State{SortKey: "amount", SortDir: "desc"}))
	assert.NotEmpty(t, Validate(State{SortKey: "amount", SortDir: "descending"}))
}

func TestActiveFilterViews(t *testing.T) {
	empty := State{}
	assert.False(t, empty.HasActiveFilters())
	assert.Zero(t, empty.ActiveFilterCount())
	assert.Empty(t, empty.Summary())

	s := State{
		StartDate: "2024-01-01",
		EndDate:   "2024-03-10",
		Category:  "transport",
		MinAmount: int64Ptr(1000),
		TagIDs:    []string{"matter-104", "billable"},
		SortKey:   "amount",
		SortDir:   "desc",
	}
	assert.True(t, s.HasActiveFilters())
	assert.Equal(t, 4, s.ActiveFilterCount(), "sort is not a constraint")

	chips := s.Summary()
	require.Len(t, chips, 4)
	assert.Equal(t, DimensionDate, chips[0].Dimension)
	assert.Equal(t, "2024-01-01 to 2024-03-10", chips[0].Label)
	assert.Equal(t, "transport", chips[1].Label)
	assert.Equal(t, "at least 1000", chips[2].Label)
	assert.Equal(t, "matter-104, billable", chips[3].Label)
}

func TestSummaryOpenEndedBounds(t *testing.T) {
	chips := State{StartDate: "2024-01-01"}.Summary()
	require.Len(t, chips, 1)
	assert.Equal(t, "from 2024-01-01", chips[0].Label)

	chips = State{EndDate: "2024-03-10"}.Summary()
	require.Len(t, chips, 1)
	assert.Equal(t, "until 2024-03-10", chips[0].Label)
}

func TestCodecRoundTrip(t *testing.T) {
	original := State{
		StartDate: "2024-01-01",
		EndDate:   "2024-03-10",
		Category:  "lodging",
		Query:     "osaka trip",
		MinAmount: int64Ptr(0),
		MaxAmount: int64Ptr(250000),
		TagIDs:    []string{"matter-104", "billable"},
		SortKey:   "incurred_on",
		SortDir:   "asc",
	}

	decoded := Decode(Encode(original))
	assert.Equal(t, original, decoded)
}

func TestEncodeStripsUnsetDimensions(t *testing.T) {
	values := Encode(State{Category: "transport"})
	assert.Equal(t, "transport", values.Get("category"))
	assert.Len(t, values, 1, "unset dimensions must not appear in the query")
}

func TestDecodeIgnoresMalformedAmounts(t *testing.T) {
	values := url.Values{}
	values.Set("min_amount", "abc")
	values.Set("tags", " matter-104 ,, billable ")

	s := Decode(values)
	assert.Nil(t, s.MinAmount)
	assert.Equal(t, []string{"matter-104", "billable"}, s.TagIDs)
}

func TestPresetRangesComputedAtCallTime(t *testing.T) {
	now := time.Date(2024, time.May, 15, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		key        string
		start, end string
	}{
		{PresetThisMonth, "2024-05-01", "2024-05-31"},
		{PresetLastMonth, "2024-04-01", "2024-04-30"},
		{PresetThisQuarter, "2024-04-01", "2024-06-30"},
		{PresetLastQuarter, "2024-01-01", "2024-03-31"},
		{PresetThisYear, "2024-01-01", "2024-12-31"},
		{PresetLast30Days, "2024-04-15", "2024-05-15"},
	}
	for _, tc := range cases {
		t.Run(tc.key, func(t *testing.T) {
			start, end, err := PresetRange(tc.key, now)
			require.NoError(t, err)
			assert.Equal(t, tc.start, start)
			assert.Equal(t, tc.end, end)
		})
	}
}

func TestPresetRangeAcrossYearBoundary(t *testing.T) {
	now := time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)

	start, end, err := PresetRange(PresetLastMonth, now)
	require.NoError(t, err)
	assert.Equal(t, "2023-12-01", start)
	assert.Equal(t, "2023-12-31", end)

	start, end, err = PresetRange(PresetLastQuarter, now)
	require.NoError(t, err)
	assert.Equal(t, "2023-10-01", start)
	assert.Equal(t, "2023-12-31", end)
}

func TestPresetRangeUnknownKey(t *testing.T) {
	_, _, err := PresetRange("fiscal_eon", time.Now())
	assert.Error(t, err)
}
