// Copyright (C) 2026 JurisDesk (dev@jurisdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package office

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jurisdesk/jurisdesk/pkg/filterstate"
	"github.com/jurisdesk/jurisdesk/pkg/optimistic"
	"github.com/jurisdesk/jurisdesk/pkg/validation"
	"github.com/jurisdesk/jurisdesk/pkg/viewstate"
	"github.com/jurisdesk/jurisdesk/services/office/datatypes"
)

// ServiceVersion is reported by the health endpoint.
const ServiceVersion = "0.3.0"

const savedFilterKeyPrefix = "filters:"

// ConflictResponse is the 409 body for a rejected versioned update.
// It carries the server's copy so the client can resolve locally.
type ConflictResponse struct {
	Error         string            `json:"error"`
	ServerData    datatypes.Expense `json:"server_data"`
	ServerVersion int64             `json:"server_version"`
}

// ListExpensesResponse is the body of GET /expenses. Warnings carry
// filter validation messages; they never block the listing.
type ListExpensesResponse struct {
	Items    []datatypes.Expense `json:"items"`
	Total    int                 `json:"total"`
	Warnings []string            `json:"warnings,omitempty"`
}

// Handlers bundles the office service dependencies for route handlers.
type Handlers struct {
	store       *ExpenseStore
	views       *viewstate.Manager
	filterStore filterstate.Store
	hub         *Hub
	audit       *AuditTrail
	log         *slog.Logger
}

// NewHandlers wires the service dependencies. A nil audit trail
// disables audit recording; a nil logger uses slog.Default().
func NewHandlers(store *ExpenseStore, views *viewstate.Manager, filterStore filterstate.Store, hub *Hub, audit *AuditTrail, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		store:       store,
		views:       views,
		filterStore: filterStore,
		hub:         hub,
		audit:       audit,
		log:         logger,
	}
}

// recordAudit appends an audit entry. Audit failures are logged and
// never block the mutation that already committed.
func (h *Handlers) recordAudit(expenseID string, action AuditAction, version int64, snapshot *datatypes.Expense) {
	if h.audit == nil {
		return
	}
	if err := h.audit.Record(expenseID, action, version, snapshot); err != nil {
		h.log.Warn("audit record failed", "expense_id", expenseID, "action", action, "error", err)
	}
}

// HandleHealth reports service liveness.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "version": ServiceVersion})
}

// HandleListExpenses returns expenses matching the filters encoded in
// the query string. Structural filter problems are surfaced as
// warnings alongside the (still filtered) result.
func (h *Handlers) HandleListExpenses(c *gin.Context) {
	filters := filterstate.Decode(c.Request.URL.Query())
	warnings := filterstate.Validate(filters)

	items, err := h.store.List(filters)
	if err != nil {
		h.log.Error("failed to list expenses", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list expenses"})
		return
	}
	c.JSON(http.StatusOK, ListExpensesResponse{
		Items:    items,
		Total:    len(items),
		Warnings: warnings,
	})
}

// HandleCreateExpense stores a new expense at version 1.
func (h *Handlers) HandleCreateExpense(c *gin.Context) {
	var req datatypes.CreateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	expense, err := h.store.Create(req.ExpenseInput)
	if err != nil {
		h.log.Error("failed to create expense", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create expense"})
		return
	}
	h.hub.Broadcast(ChangeEvent{Type: "created", ExpenseID: expense.ID, Version: expense.Version})
	h.recordAudit(expense.ID, AuditCreated, expense.Version, &expense)
	c.JSON(http.StatusCreated, expense)
}

// HandleGetExpense returns a single expense by id.
func (h *Handlers) HandleGetExpense(c *gin.Context) {
	expense, err := h.store.Get(c.Param("id"))
	if errors.Is(err, ErrExpenseNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "expense not found"})
		return
	}
	if err != nil {
		h.log.Error("failed to read expense", "expense_id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read expense"})
		return
	}
	c.JSON(http.StatusOK, expense)
}

// HandleUpdateExpense applies a versioned update. A version mismatch
// yields 409 with the server copy and version, never a silent
// overwrite.
func (h *Handlers) HandleUpdateExpense(c *gin.Context) {
	var req datatypes.UpdateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := c.Param("id")
	expense, err := h.store.Update(id, req)
	if err != nil {
		if ce, ok := optimistic.AsConflict[datatypes.Expense](err); ok {
			h.recordAudit(id, AuditConflictRejected, req.Version, nil)
			c.JSON(http.StatusConflict, ConflictResponse{
				Error:         "version conflict: another writer changed this expense",
				ServerData:    ce.ServerData,
				ServerVersion: ce.ServerVersion,
			})
			return
		}
		if errors.Is(err, ErrExpenseNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "expense not found"})
			return
		}
		h.log.Error("failed to update expense", "expense_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update expense"})
		return
	}
	h.hub.Broadcast(ChangeEvent{Type: "updated", ExpenseID: expense.ID, Version: expense.Version})
	h.recordAudit(expense.ID, AuditUpdated, expense.Version, &expense)
	c.JSON(http.StatusOK, expense)
}

// HandleDeleteExpense removes an expense.
func (h *Handlers) HandleDeleteExpense(c *gin.Context) {
	id := c.Param("id")
	err := h.store.Delete(id)
	if errors.Is(err, ErrExpenseNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "expense not found"})
		return
	}
	if err != nil {
		h.log.Error("failed to delete expense", "expense_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete expense"})
		return
	}
	h.hub.Broadcast(ChangeEvent{Type: "deleted", ExpenseID: id})
	h.recordAudit(id, AuditDeleted, 0, nil)
	c.Status(http.StatusNoContent)
}

// pathIdentifier reads a path parameter that will be embedded in a
// storage key, rejecting the request if it is not storage-safe.
func pathIdentifier(c *gin.Context, name string) (string, bool) {
	id := c.Param(name)
	if err := validation.ValidateIdentifier(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return id, true
}

// HandleGetViewState returns the persisted view state for a table.
func (h *Handlers) HandleGetViewState(c *gin.Context) {
	tableID, ok := pathIdentifier(c, "tableId")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.views.Load(tableID))
}

// HandleSaveViewState merges the provided sub-states into the
// persisted view state. Omitted sub-states keep their saved values.
func (h *Handlers) HandleSaveViewState(c *gin.Context) {
	tableID, ok := pathIdentifier(c, "tableId")
	if !ok {
		return
	}
	var partial viewstate.TableState
	if err := c.ShouldBindJSON(&partial); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid view state"})
		return
	}
	h.views.Save(tableID, partial)
	c.JSON(http.StatusOK, h.views.Load(tableID))
}

// HandleClearViewState wipes the view state for one table.
func (h *Handlers) HandleClearViewState(c *gin.Context) {
	tableID, ok := pathIdentifier(c, "tableId")
	if !ok {
		return
	}
	h.views.Clear(tableID)
	c.Status(http.StatusNoContent)
}

// HandleGetSavedFilter returns a persisted filter set by key.
func (h *Handlers) HandleGetSavedFilter(c *gin.Context) {
	name, ok := pathIdentifier(c, "key")
	if !ok {
		return
	}
	key := savedFilterKeyPrefix + name
	data, ok, err := h.filterStore.Get(key)
	if err != nil {
		h.log.Error("failed to read saved filter", "key", key, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read saved filter"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "saved filter not found"})
		return
	}
	var filters filterstate.State
	if err := json.Unmarshal(data, &filters); err != nil {
		h.log.Warn("saved filter is corrupt", "key", key, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "saved filter not found"})
		return
	}
	c.JSON(http.StatusOK, filters)
}

// HandleSaveFilter persists a filter set under a key. Structural
// problems are returned as warnings but do not block the save.
func (h *Handlers) HandleSaveFilter(c *gin.Context) {
	name, ok := pathIdentifier(c, "key")
	if !ok {
		return
	}
	var filters filterstate.State
	if err := c.ShouldBindJSON(&filters); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid filter state"})
		return
	}
	data, err := json.Marshal(filters)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid filter state"})
		return
	}
	key := savedFilterKeyPrefix + name
	if err := h.filterStore.Set(key, data); err != nil {
		h.log.Error("failed to persist saved filter", "key", key, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist saved filter"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": true, "warnings": filterstate.Validate(filters)})
}

// HandleDeleteSavedFilter removes a persisted filter set.
func (h *Handlers) HandleDeleteSavedFilter(c *gin.Context) {
	name, ok := pathIdentifier(c, "key")
	if !ok {
		return
	}
	key := savedFilterKeyPrefix + name
	if err := h.filterStore.Delete(key); err != nil {
		h.log.Error("failed to delete saved filter", "key", key, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete saved filter"})
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleExpenseAudit returns the mutation history for one expense in
// chronological order. The history survives deletion of the expense.
func (h *Handlers) HandleExpenseAudit(c *gin.Context) {
	if h.audit == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "audit trail disabled"})
		return
	}
	id := c.Param("id")
	entries, err := h.audit.List(id)
	if err != nil {
		h.log.Error("failed to read audit trail", "expense_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read audit trail"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "total": len(entries)})
}

// HandleChangeFeed upgrades to the websocket change feed.
func (h *Handlers) HandleChangeFeed(c *gin.Context) {
	h.hub.Serve(c)
}
