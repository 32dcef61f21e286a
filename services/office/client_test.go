// Copyright (C) 2026 JurisDesk (dev@jurisdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package office

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jurisdesk/jurisdesk/pkg/filterstate"
	"github.com/jurisdesk/jurisdesk/pkg/formstate"
	"github.com/jurisdesk/jurisdesk/pkg/optimistic"
	"github.com/jurisdesk/jurisdesk/services/office/datatypes"
)

func setupTestServer(t *testing.T) *Client {
	t.Helper()

	router := setupTestRouter(t)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return NewClient(server.URL, server.Client())
}

func TestClientExpenseRoundTrip(t *testing.T) {
	client := setupTestServer(t)
	ctx := context.Background()

	created, err := client.CreateExpense(ctx, datatypes.ExpenseInput{
		Description: "Court filing fee",
		Category:    "filing",
		Amount:      15000,
		IncurredOn:  "2026-03-04",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.Version)

	got, err := client.GetExpense(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	updated, err := client.UpdateExpense(ctx, created.ID, datatypes.UpdateExpenseRequest{
		ExpenseInput: datatypes.ExpenseInput{
			Description: "Court filing fee",
			Category:    "filing",
			Amount:      16000,
			IncurredOn:  "2026-03-04",
		},
		Version: created.Version,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, int64(16000), updated.Amount)

	require.NoError(t, client.DeleteExpense(ctx, created.ID))
	_, err = client.GetExpense(ctx, created.ID)
	assert.Error(t, err)
}

func TestClientListExpensesAppliesFilters(t *testing.T) {
	client := setupTestServer(t)
	ctx := context.Background()

	_, err := client.CreateExpense(ctx, datatypes.ExpenseInput{Description: "Taxi to court", Category: "travel", Amount: 3200, IncurredOn: "2026-02-10"})
	require.NoError(t, err)
	_, err = client.CreateExpense(ctx, datatypes.ExpenseInput{Description: "Client dinner", Category: "meals", Amount: 12000, IncurredOn: "2026-02-11"})
	require.NoError(t, err)

	items, warnings, err := client.ListExpenses(ctx, filterstate.State{Category: "travel"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Taxi to court", items[0].Description)
	assert.Empty(t, warnings)
}

func TestClientUpdateConflictIsTyped(t *testing.T) {
	client := setupTestServer(t)
	ctx := context.Background()

	created, err := client.CreateExpense(ctx, datatypes.ExpenseInput{Description: "Postage", Amount: 1200})
	require.NoError(t, err)

	// Another writer advances the version.
	_, err = client.UpdateExpense(ctx, created.ID, datatypes.UpdateExpenseRequest{
		ExpenseInput: datatypes.ExpenseInput{Description: "Postage", Amount: 1500},
		Version:      1,
	})
	require.NoError(t, err)

	_, err = client.UpdateExpense(ctx, created.ID, datatypes.UpdateExpenseRequest{
		ExpenseInput: datatypes.ExpenseInput{Description: "Postage", Amount: 9999},
		Version:      1,
	})
	require.Error(t, err)

	ce, ok := optimistic.AsConflict[datatypes.Expense](err)
	require.True(t, ok, "expected a typed conflict, got %v", err)
	assert.Equal(t, int64(2), ce.ServerVersion)
	assert.Equal(t, int64(1500), ce.ServerData.Amount)
}

// TestFormEditSubmitLifecycle walks the full edit path: the tracker
// watches a form seeded from the server copy, one edit makes it dirty,
// the controller submits through the real endpoint, and the accepted
// server copy becomes the clean baseline at the next version.
func TestFormEditSubmitLifecycle(t *testing.T) {
	client := setupTestServer(t)
	ctx := context.Background()

	created, err := client.CreateExpense(ctx, datatypes.ExpenseInput{
		Description: "Client dinner",
		Category:    "meals",
		Amount:      0,
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), created.Version)

	tracker := formstate.NewTracker(nil)
	tracker.InitializeField("description", created.Description)
	tracker.InitializeField("amount", created.Amount)
	require.False(t, tracker.IsDirty())

	tracker.UpdateField("amount", int64(1000))
	require.True(t, tracker.IsDirty())
	require.True(t, tracker.IsFieldDirty("amount"))
	require.False(t, tracker.IsFieldDirty("description"))

	ctrl := optimistic.NewController(created, client.SubmitFunc(created.ID), optimistic.Options[datatypes.Expense]{
		Optimistic: true,
	})

	edited := created
	edited.Amount = 1000
	ctrl.SetData(edited)

	require.NoError(t, ctrl.Submit(ctx))
	assert.Equal(t, int64(2), ctrl.Version())
	assert.Equal(t, int64(1000), ctrl.Data().Amount)
	assert.False(t, ctrl.IsSubmitting())

	// The accepted copy becomes the new clean baseline.
	tracker.Rebaseline()
	assert.False(t, tracker.IsDirty())

	server, err := client.GetExpense(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), server.Version)
	assert.Equal(t, int64(1000), server.Amount)
}

// TestFormSubmitConflictServerWins exercises the conflict path over the
// wire: a concurrent writer advances the record, the stale submission
// is rejected, and the controller adopts the server copy and version.
func TestFormSubmitConflictServerWins(t *testing.T) {
	client := setupTestServer(t)
	ctx := context.Background()

	created, err := client.CreateExpense(ctx, datatypes.ExpenseInput{
		Description: "Expert witness retainer",
		Amount:      200000,
	})
	require.NoError(t, err)

	ctrl := optimistic.NewController(created, client.SubmitFunc(created.ID), optimistic.Options[datatypes.Expense]{
		Optimistic: true,
	})

	// A second session commits first.
	_, err = client.UpdateExpense(ctx, created.ID, datatypes.UpdateExpenseRequest{
		ExpenseInput: datatypes.ExpenseInput{Description: "Expert witness retainer", Amount: 250000},
		Version:      1,
	})
	require.NoError(t, err)

	edited := created
	edited.Amount = 180000
	ctrl.SetData(edited)

	err = ctrl.Submit(ctx)
	require.Error(t, err)
	_, ok := optimistic.AsConflict[datatypes.Expense](err)
	require.True(t, ok)

	assert.True(t, ctrl.ConflictDetected())
	assert.Equal(t, int64(2), ctrl.Version())
	assert.Equal(t, int64(250000), ctrl.Data().Amount, "server copy wins by default")
}
