// Copyright (C) 2026 JurisDesk (dev@jurisdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package office

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jurisdesk/jurisdesk/pkg/filterstate"
	"github.com/jurisdesk/jurisdesk/pkg/optimistic"
	"github.com/jurisdesk/jurisdesk/services/office/datatypes"
)

// Client is the typed HTTP client for the office service. It is the
// bridge between the form-state layer and the REST surface: its
// SubmitFunc adapter turns a versioned PUT into the shape the
// optimistic submission controller expects, including translating a
// 409 body back into a typed conflict.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the given base URL, e.g.
// "http://localhost:12310". A nil httpClient uses a 30-second timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

// CreateExpense stores a new expense and returns the server's copy.
func (c *Client) CreateExpense(ctx context.Context, input datatypes.ExpenseInput) (datatypes.Expense, error) {
	var expense datatypes.Expense
	err := c.do(ctx, http.MethodPost, "/api/v1/expenses", datatypes.CreateExpenseRequest{ExpenseInput: input}, http.StatusCreated, &expense)
	return expense, err
}

// GetExpense reads a single expense.
func (c *Client) GetExpense(ctx context.Context, id string) (datatypes.Expense, error) {
	var expense datatypes.Expense
	err := c.do(ctx, http.MethodGet, "/api/v1/expenses/"+url.PathEscape(id), nil, http.StatusOK, &expense)
	return expense, err
}

// ListExpenses returns expenses matching the filter, plus any filter
// validation warnings the server surfaced.
func (c *Client) ListExpenses(ctx context.Context, filters filterstate.State) ([]datatypes.Expense, []string, error) {
	path := "/api/v1/expenses"
	if query := filterstate.Encode(filters).Encode(); query != "" {
		path += "?" + query
	}
	var resp ListExpensesResponse
	if err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &resp); err != nil {
		return nil, nil, err
	}
	return resp.Items, resp.Warnings, nil
}

// UpdateExpense applies a versioned update. A 409 response is returned
// as *optimistic.ConflictError[datatypes.Expense].
func (c *Client) UpdateExpense(ctx context.Context, id string, req datatypes.UpdateExpenseRequest) (datatypes.Expense, error) {
	var expense datatypes.Expense
	err := c.do(ctx, http.MethodPut, "/api/v1/expenses/"+url.PathEscape(id), req, http.StatusOK, &expense)
	return expense, err
}

// DeleteExpense removes an expense.
func (c *Client) DeleteExpense(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/expenses/"+url.PathEscape(id), nil, http.StatusNoContent, nil)
}

// LoadViewState fetches the persisted view state for a table.
func (c *Client) LoadViewState(ctx context.Context, tableID string, out any) error {
	return c.do(ctx, http.MethodGet, "/api/v1/viewstate/"+url.PathEscape(tableID), nil, http.StatusOK, out)
}

// SubmitFunc adapts the versioned update endpoint for an
// optimistic.Controller managing the expense with the given id.
func (c *Client) SubmitFunc(id string) optimistic.SubmitFunc[datatypes.Expense] {
	return func(ctx context.Context, data datatypes.Expense, version int64) (optimistic.Committed[datatypes.Expense], error) {
		req := datatypes.UpdateExpenseRequest{
			ExpenseInput: datatypes.ExpenseInput{
				Description: data.Description,
				Category:    data.Category,
				Amount:      data.Amount,
				IncurredOn:  data.IncurredOn,
				TagIDs:      data.TagIDs,
			},
			Version: version,
		}
		updated, err := c.UpdateExpense(ctx, id, req)
		if err != nil {
			return optimistic.Committed[datatypes.Expense]{}, err
		}
		return optimistic.Committed[datatypes.Expense]{Data: updated, Version: updated.Version}, nil
	}
}

// do issues one request and decodes the response. Responses other than
// wantStatus become errors; 409 becomes a typed conflict.
func (c *Client) do(ctx context.Context, method, path string, body any, wantStatus int, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		var conflict ConflictResponse
		if err := json.NewDecoder(resp.Body).Decode(&conflict); err != nil {
			return fmt.Errorf("decode conflict response: %w", err)
		}
		return &optimistic.ConflictError[datatypes.Expense]{
			ServerData:    conflict.ServerData,
			ServerVersion: conflict.ServerVersion,
		}
	}
	if resp.StatusCode != wantStatus {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: unexpected status %d: %s", method, path, resp.StatusCode, data)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response body: %w", err)
		}
	}
	return nil
}
