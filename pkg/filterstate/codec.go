// Copyright (C) 2026 JurisDesk (dev@jurisdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package filterstate

import (
	"net/url"
	"strconv"
	"strings"
)

// Query parameter names used by Encode and Decode. Shared with the
// REST list endpoints so a browser URL round-trips through the server.
const (
	paramStartDate = "start_date"
	paramEndDate   = "end_date"
	paramCategory  = "category"
	paramQuery     = "q"
	paramMinAmount = "min_amount"
	paramMaxAmount = "max_amount"
	paramTags      = "tags"
	paramSortKey   = "sort"
	paramSortDir   = "dir"
)

// tagDelimiter joins array values into a single query parameter.
const tagDelimiter = ","

// Encode serializes the non-empty dimensions of a State into URL query
// parameters. Unset dimensions produce no parameter at all, so the
// resulting query string carries only active constraints.
func Encode(s State) url.Values {
	values := url.Values{}
	setNonEmpty(values, paramStartDate, s.StartDate)
	setNonEmpty(values, paramEndDate, s.EndDate)
	setNonEmpty(values, paramCategory, s.Category)
	setNonEmpty(values, paramQuery, s.Query)
	if s.MinAmount != nil {
		values.Set(paramMinAmount, strconv.FormatInt(*s.MinAmount, 10))
	}
	if s.MaxAmount != nil {
		values.Set(paramMaxAmount, strconv.FormatInt(*s.MaxAmount, 10))
	}
	if len(s.TagIDs) > 0 {
		values.Set(paramTags, strings.Join(s.TagIDs, tagDelimiter))
	}
	setNonEmpty(values, paramSortKey, s.SortKey)
	setNonEmpty(values, paramSortDir, s.SortDir)
	return values
}

// Decode rebuilds a State from URL query parameters. Empty values and
// unparseable amounts are treated as unset; Decode never fails.
func Decode(values url.Values) State {
	s := State{
		StartDate: values.Get(paramStartDate),
		EndDate:   values.Get(paramEndDate),
		Category:  values.Get(paramCategory),
		Query:     values.Get(paramQuery),
		SortKey:   values.Get(paramSortKey),
		SortDir:   values.Get(paramSortDir),
	}
	if raw := values.Get(paramMinAmount); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			s.MinAmount = &n
		}
	}
	if raw := values.Get(paramMaxAmount); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			s.MaxAmount = &n
		}
	}
	if raw := values.Get(paramTags); raw != "" {
		for _, tag := range strings.Split(raw, tagDelimiter) {
			if tag = strings.TrimSpace(tag); tag != "" {
				s.TagIDs = append(s.TagIDs, tag)
			}
		}
	}
	return s
}

func setNonEmpty(values url.Values, key, value string) {
	if value != "" {
		values.Set(key, value)
	}
}
