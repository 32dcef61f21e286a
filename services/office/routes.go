// Copyright (C) 2026 JurisDesk (dev@jurisdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package office is the REST backend for the expense screens: CRUD
// with optimistic concurrency, saved filter sets, table view-state
// persistence, and a websocket change feed.
package office

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all office endpoints with the given router
// group (typically /api/v1). Middleware is the caller's concern.
//
// Expense Endpoints:
//
//	GET    /api/v1/expenses          - List, filters in query string
//	POST   /api/v1/expenses          - Create
//	GET    /api/v1/expenses/:id      - Read
//	PUT    /api/v1/expenses/:id      - Versioned update (409 on conflict)
//	DELETE /api/v1/expenses/:id      - Delete
//	GET    /api/v1/expenses/:id/audit - Mutation history
//
// View State Endpoints:
//
//	GET    /api/v1/viewstate/:tableId - Load table view state
//	PUT    /api/v1/viewstate/:tableId - Merge-save table view state
//	DELETE /api/v1/viewstate/:tableId - Clear table view state
//
// Saved Filter Endpoints:
//
//	GET    /api/v1/filters/:key - Load a saved filter set
//	PUT    /api/v1/filters/:key - Save a filter set
//	DELETE /api/v1/filters/:key - Delete a saved filter set
//
// Other Endpoints:
//
//	GET /api/v1/ws     - Websocket change feed
//	GET /api/v1/health - Liveness
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	rg.GET("/expenses", h.HandleListExpenses)
	rg.POST("/expenses", h.HandleCreateExpense)
	rg.GET("/expenses/:id", h.HandleGetExpense)
	rg.PUT("/expenses/:id", h.HandleUpdateExpense)
	rg.DELETE("/expenses/:id", h.HandleDeleteExpense)
	rg.GET("/expenses/:id/audit", h.HandleExpenseAudit)

	rg.GET("/viewstate/:tableId", h.HandleGetViewState)
	rg.PUT("/viewstate/:tableId", h.HandleSaveViewState)
	rg.DELETE("/viewstate/:tableId", h.HandleClearViewState)

	rg.GET("/filters/:key", h.HandleGetSavedFilter)
	rg.PUT("/filters/:key", h.HandleSaveFilter)
	rg.DELETE("/filters/:key", h.HandleDeleteSavedFilter)

	rg.GET("/ws", h.HandleChangeFeed)
	rg.GET("/health", h.HandleHealth)
}
