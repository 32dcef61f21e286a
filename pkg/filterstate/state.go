// Copyright (C) 2026 JurisDesk (dev@jurisdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package filterstate manages a flat filter object for list views:
// synchronous in-memory mutation, debounced propagation to persistence
// sinks (URL query, durable storage), named date presets, and derived
// summary views for removable filter chips.
//
// A zero value on any dimension means "no constraint". Validation only
// surfaces warnings; it never blocks mutation.
package filterstate

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format for filter dates.
const DateLayout = "2006-01-02"

// Dimension names one independently clearable axis of the filter.
type Dimension string

const (
	DimensionDate     Dimension = "date"
	DimensionCategory Dimension = "category"
	DimensionQuery    Dimension = "query"
	DimensionAmount   Dimension = "amount"
	DimensionTags     Dimension = "tags"
	DimensionSort     Dimension = "sort"
)

// State is the flat filter object. All dimensions are optional; a date
// range with only one bound is valid and applied as an open-ended bound.
type State struct {
	StartDate string   `json:"start_date,omitempty"`
	EndDate   string   `json:"end_date,omitempty"`
	Category  string   `json:"category,omitempty"`
	Query     string   `json:"query,omitempty"`
	MinAmount *int64   `json:"min_amount,omitempty"`
	MaxAmount *int64   `json:"max_amount,omitempty"`
	TagIDs    []string `json:"tag_ids,omitempty"`
	SortKey   string   `json:"sort_key,omitempty"`
	SortDir   string   `json:"sort_dir,omitempty"`
}

// Chip is one entry of the human-readable active-filter summary,
// rendered by the UI as a removable chip.
type Chip struct {
	Dimension Dimension `json:"dimension"`
	Label     string    `json:"label"`
}

// HasActiveFilters reports whether any constraining dimension is set.
// Sort is presentation state, not a constraint, and is not counted.
func (s State) HasActiveFilters() bool {
	return s.ActiveFilterCount() > 0
}

// ActiveFilterCount returns the number of set constraining dimensions.
func (s State) ActiveFilterCount() int {
	count := 0
	if s.StartDate != "" || s.EndDate != "" {
		count++
	}
	if s.Category != "" {
		count++
	}
	if s.Query != "" {
		count++
	}
	if s.MinAmount != nil || s.MaxAmount != nil {
		count++
	}
	if len(s.TagIDs) > 0 {
		count++
	}
	return count
}

// Summary returns one chip per set constraining dimension.
func (s State) Summary() []Chip {
	var chips []Chip
	switch {
	case s.StartDate != "" && s.EndDate != "":
		chips = append(chips, Chip{DimensionDate, s.StartDate + " to " + s.EndDate})
	case s.StartDate != "":
		chips = append(chips, Chip{DimensionDate, "from " + s.StartDate})
	case s.EndDate != "":
		chips = append(chips, Chip{DimensionDate, "until " + s.EndDate})
	}
	if s.Category != "" {
		chips = append(chips, Chip{DimensionCategory, s.Category})
	}
	if s.Query != "" {
		chips = append(chips, Chip{DimensionQuery, fmt.Sprintf("%q", s.Query)})
	}
	switch {
	case s.MinAmount != nil && s.MaxAmount != nil:
		chips = append(chips, Chip{DimensionAmount, fmt.Sprintf("%d to %d", *s.MinAmount, *s.MaxAmount)})
	case s.MinAmount != nil:
		chips = append(chips, Chip{DimensionAmount, fmt.Sprintf("at least %d", *s.MinAmount)})
	case s.MaxAmount != nil:
		chips = append(chips, Chip{DimensionAmount, fmt.Sprintf("at most %d", *s.MaxAmount)})
	}
	if len(s.TagIDs) > 0 {
		chips = append(chips, Chip{DimensionTags, strings.Join(s.TagIDs, ", ")})
	}
	return chips
}

// clearDimension resets exactly one dimension to unset. Grouped
// dimensions clear together: date clears both ends, amount clears both
// bounds, sort clears key and direction.
func (s *State) clearDimension(dim Dimension) {
	switch dim {
	case DimensionDate:
		s.StartDate, s.EndDate = "", ""
	case DimensionCategory:
		s.Category = ""
	case DimensionQuery:
		s.Query = ""
	case DimensionAmount:
		s.MinAmount, s.MaxAmount = nil, nil
	case DimensionTags:
		s.TagIDs = nil
	case DimensionSort:
		s.SortKey, s.SortDir = "", ""
	}
}

// Validate checks structural ordering rules and returns human-readable
// violations. An empty result means the state is well formed. The
// caller decides whether and how to display the warnings; mutation is
// never blocked.
func Validate(s State) []string {
	var problems []string

	start, err := parseDate(s.StartDate)
	if s.StartDate != "" && err != nil {
		problems = append(problems, fmt.Sprintf("start date %q is not a valid date (want YYYY-MM-DD)", s.StartDate))
	}
	end, err := parseDate(s.EndDate)
	if s.EndDate != "" && err != nil {
		problems = append(problems, fmt.Sprintf("end date %q is not a valid date (want YYYY-MM-DD)", s.EndDate))
	}
	if !start.IsZero() && !end.IsZero() && start.After(end) {
		problems = append(problems, fmt.Sprintf("start date %s is after end date %s", s.StartDate, s.EndDate))
	}

	if s.MinAmount != nil && s.MaxAmount != nil && *s.MinAmount > *s.MaxAmount {
		problems = append(problems, fmt.Sprintf("minimum amount %d exceeds maximum amount %d", *s.MinAmount, *s.MaxAmount))
	}

	if s.SortDir != "" && s.SortDir != "asc" && s.SortDir != "desc" {
		problems = append(problems, fmt.Sprintf("sort direction %q must be asc or desc", s.SortDir))
	}
	return problems
}

func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(DateLayout, value)
}

// =============================================================================
// Date Presets
// =============================================================================

// Preset keys accepted by PresetRange and Manager.ApplyDatePreset.
const (
	PresetThisMonth   = "this_month"
	PresetLastMonth   = "last_month"
	PresetThisQuarter = "this_quarter"
	PresetLastQuarter = "last_quarter"
	PresetThisYear    = "this_year"
	PresetLast30Days  = "last_30_days"
)

// PresetRange computes the concrete date range for a named preset at
// the given reference time. Ranges are computed at call time, never
// cached, so "this month" applied in April differs from March.
func PresetRange(key string, now time.Time) (start, end string, err error) {
	year, month, _ := now.Date()
	loc := now.Location()

	switch key {
	case PresetThisMonth:
		first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
		last := first.AddDate(0, 1, -1)
		return first.Format(DateLayout), last.Format(DateLayout), nil
	case PresetLastMonth:
		first := time.Date(year, month, 1, 0, 0, 0, 0, loc).AddDate(0, -1, 0)
		last := time.Date(year, month, 1, 0, 0, 0, 0, loc).AddDate(0, 0, -1)
		return first.Format(DateLayout), last.Format(DateLayout), nil
	case PresetThisQuarter:
		first := quarterStart(now)
		last := first.AddDate(0, 3, -1)
		return first.Format(DateLayout), last.Format(DateLayout), nil
	case PresetLastQuarter:
		first := quarterStart(now).AddDate(0, -3, 0)
		last := quarterStart(now).AddDate(0, 0, -1)
		return first.Format(DateLayout), last.Format(DateLayout), nil
	case PresetThisYear:
		first := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
		last := time.Date(year, time.December, 31, 0, 0, 0, 0, loc)
		return first.Format(DateLayout), last.Format(DateLayout), nil
	case PresetLast30Days:
		return now.AddDate(0, 0, -30).Format(DateLayout), now.Format(DateLayout), nil
	default:
		return "", "", fmt.Errorf("unknown date preset %q", key)
	}
}

func quarterStart(now time.Time) time.Time {
	year, month, _ := now.Date()
	quarterMonth := time.Month(((int(month)-1)/3)*3 + 1)
	return time.Date(year, quarterMonth, 1, 0, 0, 0, 0, now.Location())
}
