// Copyright (C) 2026 JurisDesk (dev@jurisdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes defines the wire types for the office service.
package datatypes

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// expenseValidate is the shared validator instance. validator.Validate
// caches struct metadata, so a single instance is reused.
var expenseValidate = validator.New()

// Expense is a single office expense record.
//
// Version is a monotonically increasing integer used for optimistic
// concurrency: updates must carry the version the client last saw, and
// the server rejects the write with a conflict when its copy has
// advanced past it. Version increments only on confirmed acceptance.
type Expense struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Category    string   `json:"category,omitempty"`
	Amount      int64    `json:"amount"`
	IncurredOn  string   `json:"incurred_on,omitempty"`
	TagIDs      []string `json:"tag_ids,omitempty"`
	Version     int64    `json:"version"`
	UpdatedAt   int64    `json:"updated_at,omitempty"`
}

// ExpenseInput carries the client-editable fields of an expense.
//
// # Validation
//
// Uses go-playground/validator:
//   - Description: required, max 2048 bytes
//   - Category: max 128 bytes
//   - Amount: >= 0 (yen, no fractional unit)
//   - IncurredOn: optional, YYYY-MM-DD
//   - TagIDs: max 32 entries, each max 64 bytes
type ExpenseInput struct {
	Description string   `json:"description" validate:"required,max=2048"`
	Category    string   `json:"category" validate:"max=128"`
	Amount      int64    `json:"amount" validate:"gte=0"`
	IncurredOn  string   `json:"incurred_on" validate:"omitempty,datetime=2006-01-02"`
	TagIDs      []string `json:"tag_ids" validate:"max=32,dive,max=64"`
}

// CreateExpenseRequest is the body of POST /expenses.
type CreateExpenseRequest struct {
	ExpenseInput
}

// Validate checks the request against its validator tags. Call after
// binding the JSON body.
func (r *CreateExpenseRequest) Validate() error {
	return expenseValidate.Struct(r)
}

// UpdateExpenseRequest is the body of PUT /expenses/:id. Version is
// the version the client last saw; a mismatch with the server's copy
// produces a 409 carrying the server data and version.
type UpdateExpenseRequest struct {
	ExpenseInput
	Version int64 `json:"version" validate:"required,gt=0"`
}

// Validate checks the request against its validator tags.
func (r *UpdateExpenseRequest) Validate() error {
	return expenseValidate.Struct(r)
}

// Apply copies the editable fields onto an expense record.
func (in ExpenseInput) Apply(e *Expense) {
	e.Description = in.Description
	e.Category = in.Category
	e.Amount = in.Amount
	e.IncurredOn = in.IncurredOn
	e.TagIDs = append([]string(nil), in.TagIDs...)
}

// Touch stamps the record with the current time.
func (e *Expense) Touch() {
	e.UpdatedAt = time.Now().UnixMilli()
}
