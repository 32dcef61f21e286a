// Copyright (C) 2026 JurisDesk (dev@jurisdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package office

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jurisdesk/jurisdesk/services/office/datatypes"
	kvstore "github.com/jurisdesk/jurisdesk/storage/badger"
)

const auditKeyPrefix = "audit:"

// AuditAction is the kind of mutation an audit entry records.
type AuditAction string

const (
	AuditCreated          AuditAction = "created"
	AuditUpdated          AuditAction = "updated"
	AuditDeleted          AuditAction = "deleted"
	AuditConflictRejected AuditAction = "conflict_rejected"
)

// AuditEntry is one immutable record of an expense mutation. Entries
// are append-only; nothing in the service rewrites or deletes them.
type AuditEntry struct {
	ID         string             `json:"id"`
	ExpenseID  string             `json:"expense_id"`
	Action     AuditAction        `json:"action"`
	Version    int64              `json:"version,omitempty"`
	RecordedAt int64              `json:"recorded_at"`
	Snapshot   *datatypes.Expense `json:"snapshot,omitempty"`
}

// AuditTrail persists the mutation history of expense records. Law
// offices reconcile expenses against client billing, so every write,
// delete, and rejected stale write leaves a trace.
//
// Thread Safety: safe for concurrent use.
type AuditTrail struct {
	db  *kvstore.DB
	log *slog.Logger
	seq atomic.Uint64
}

// NewAuditTrail creates a trail over the given database. A nil logger
// uses slog.Default().
func NewAuditTrail(db *kvstore.DB, logger *slog.Logger) *AuditTrail {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditTrail{db: db, log: logger}
}

// auditKey orders entries per expense chronologically: the zero-padded
// timestamp makes the lexicographic scan order the time order, and the
// sequence number keeps same-millisecond entries in write order.
func auditKey(expenseID string, recordedAt int64, seq uint64) string {
	return fmt.Sprintf("%s%s:%020d:%012d", auditKeyPrefix, expenseID, recordedAt, seq)
}

// Record appends an entry for the given expense. The snapshot, when
// non-nil, is the expense as committed by the mutation.
func (a *AuditTrail) Record(expenseID string, action AuditAction, version int64, snapshot *datatypes.Expense) error {
	entry := AuditEntry{
		ID:         uuid.NewString(),
		ExpenseID:  expenseID,
		Action:     action,
		Version:    version,
		RecordedAt: time.Now().UnixMilli(),
		Snapshot:   snapshot,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode audit entry: %w", err)
	}
	return a.db.Set(auditKey(expenseID, entry.RecordedAt, a.seq.Add(1)), data)
}

// List returns the entries for one expense in chronological order.
// Corrupt entries are skipped with a warning rather than failing the
// whole history.
func (a *AuditTrail) List(expenseID string) ([]AuditEntry, error) {
	entries := make([]AuditEntry, 0)
	err := a.db.ScanPrefix(auditKeyPrefix+expenseID+":", func(key string, value []byte) error {
		var entry AuditEntry
		if err := json.Unmarshal(value, &entry); err != nil {
			a.log.Warn("skipping corrupt audit entry", "key", key, "error", err)
			return nil
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
