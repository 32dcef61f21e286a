// Copyright (C) 2026 JurisDesk (dev@jurisdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package office

import (
	"sort"
	"strings"

	"github.com/jurisdesk/jurisdesk/pkg/filterstate"
	"github.com/jurisdesk/jurisdesk/services/office/datatypes"
)

// FilterExpenses applies every set filter dimension as an AND
// condition over the collection, then sorts the result. Date and
// amount bounds are inclusive; a range with only one bound is applied
// as an open-ended bound. The tag dimension matches an expense holding
// any of the requested tags. Free text matches description or category
// case-insensitively.
//
// This is the pure client-side counterpart of the server-side list
// endpoint, usable for local views and tests without a round-trip.
func FilterExpenses(items []datatypes.Expense, f filterstate.State) []datatypes.Expense {
	matched := make([]datatypes.Expense, 0, len(items))
	for _, e := range items {
		if matchExpense(e, f) {
			matched = append(matched, e)
		}
	}
	sortExpenses(matched, f)
	return matched
}

func matchExpense(e datatypes.Expense, f filterstate.State) bool {
	// ISO dates compare chronologically as strings.
	if f.StartDate != "" && e.IncurredOn < f.StartDate {
		return false
	}
	if f.EndDate != "" && (e.IncurredOn == "" || e.IncurredOn > f.EndDate) {
		return false
	}
	if f.Category != "" && !strings.EqualFold(e.Category, f.Category) {
		return false
	}
	if f.Query != "" {
		needle := strings.ToLower(f.Query)
		if !strings.Contains(strings.ToLower(e.Description), needle) &&
			!strings.Contains(strings.ToLower(e.Category), needle) {
			return false
		}
	}
	if f.MinAmount != nil && e.Amount < *f.MinAmount {
		return false
	}
	if f.MaxAmount != nil && e.Amount > *f.MaxAmount {
		return false
	}
	if len(f.TagIDs) > 0 && !hasAnyTag(e.TagIDs, f.TagIDs) {
		return false
	}
	return true
}

func hasAnyTag(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

// sortExpenses orders the slice by the filter's sort dimension,
// defaulting to newest incurred date first. ID breaks ties so the
// order is stable across calls.
func sortExpenses(items []datatypes.Expense, f filterstate.State) {
	key := f.SortKey
	if key == "" {
		key = "incurred_on"
	}
	descending := f.SortDir == "desc" || (f.SortDir == "" && f.SortKey == "")

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if descending {
			a, b = b, a
		}
		switch key {
		case "amount":
			if a.Amount != b.Amount {
				return a.Amount < b.Amount
			}
		case "description":
			if a.Description != b.Description {
				return a.Description < b.Description
			}
		case "updated_at":
			if a.UpdatedAt != b.UpdatedAt {
				return a.UpdatedAt < b.UpdatedAt
			}
		default: // incurred_on
			if a.IncurredOn != b.IncurredOn {
				return a.IncurredOn < b.IncurredOn
			}
		}
		return a.ID < b.ID
	})
}
