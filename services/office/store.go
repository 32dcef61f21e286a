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
	"fmt"
	"log/slog"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jurisdesk/jurisdesk/pkg/filterstate"
	"github.com/jurisdesk/jurisdesk/pkg/optimistic"
	"github.com/jurisdesk/jurisdesk/services/office/datatypes"
	kvstore "github.com/jurisdesk/jurisdesk/storage/badger"
)

// ErrExpenseNotFound indicates the requested expense does not exist.
var ErrExpenseNotFound = errors.New("expense not found")

const expenseKeyPrefix = "expense:"

var (
	storeOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "office_expense_store_operations_total",
		Help: "Expense store operations by type and status",
	}, []string{"operation", "status"})

	storeOpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "office_expense_store_operation_seconds",
		Help:    "Expense store operation latency",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	}, []string{"operation"})

	versionConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "office_expense_version_conflicts_total",
		Help: "Updates rejected because the server copy had advanced",
	})
)

// ExpenseStore persists expense records with optimistic concurrency.
//
// Each record carries a monotonically increasing version. Updates are
// compare-and-swap on that version inside a single Badger transaction;
// a mismatch returns *optimistic.ConflictError[datatypes.Expense]
// carrying the server's copy so the client can resolve without a
// second round-trip.
//
// Thread Safety: safe for concurrent use.
type ExpenseStore struct {
	db  *kvstore.DB
	log *slog.Logger
}

// NewExpenseStore creates a store over the given database. A nil
// logger uses slog.Default().
func NewExpenseStore(db *kvstore.DB, logger *slog.Logger) *ExpenseStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpenseStore{db: db, log: logger}
}

func expenseKey(id string) string { return expenseKeyPrefix + id }

// Create stores a new expense at version 1 and returns it.
func (s *ExpenseStore) Create(input datatypes.ExpenseInput) (datatypes.Expense, error) {
	timer := prometheus.NewTimer(storeOpDuration.WithLabelValues("create"))
	defer timer.ObserveDuration()

	expense := datatypes.Expense{
		ID:      uuid.NewString(),
		Version: 1,
	}
	input.Apply(&expense)
	expense.Touch()

	data, err := json.Marshal(expense)
	if err != nil {
		storeOpsTotal.WithLabelValues("create", "error").Inc()
		return datatypes.Expense{}, fmt.Errorf("encode expense: %w", err)
	}
	if err := s.db.Set(expenseKey(expense.ID), data); err != nil {
		storeOpsTotal.WithLabelValues("create", "error").Inc()
		return datatypes.Expense{}, err
	}
	storeOpsTotal.WithLabelValues("create", "ok").Inc()
	return expense, nil
}

// Get returns the expense with the given id, or ErrExpenseNotFound.
func (s *ExpenseStore) Get(id string) (datatypes.Expense, error) {
	data, ok, err := s.db.Get(expenseKey(id))
	if err != nil {
		return datatypes.Expense{}, err
	}
	if !ok {
		return datatypes.Expense{}, ErrExpenseNotFound
	}
	var expense datatypes.Expense
	if err := json.Unmarshal(data, &expense); err != nil {
		return datatypes.Expense{}, fmt.Errorf("decode expense %s: %w", id, err)
	}
	return expense, nil
}

// Update applies the request to the stored expense if and only if the
// stored version equals the request's version. The read-check-write
// runs inside one transaction. On version mismatch the returned error
// is *optimistic.ConflictError[datatypes.Expense] with the server copy.
func (s *ExpenseStore) Update(id string, req datatypes.UpdateExpenseRequest) (datatypes.Expense, error) {
	timer := prometheus.NewTimer(storeOpDuration.WithLabelValues("update"))
	defer timer.ObserveDuration()

	var updated datatypes.Expense
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(expenseKey(id)))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrExpenseNotFound
		}
		if err != nil {
			return err
		}
		var stored datatypes.Expense
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stored)
		}); err != nil {
			return fmt.Errorf("decode expense %s: %w", id, err)
		}

		if stored.Version != req.Version {
			return &optimistic.ConflictError[datatypes.Expense]{
				ServerData:    stored,
				ServerVersion: stored.Version,
			}
		}

		req.ExpenseInput.Apply(&stored)
		stored.Version++
		stored.Touch()

		data, err := json.Marshal(stored)
		if err != nil {
			return fmt.Errorf("encode expense %s: %w", id, err)
		}
		if err := txn.Set([]byte(expenseKey(id)), data); err != nil {
			return err
		}
		updated = stored
		return nil
	})
	if err != nil {
		if _, conflict := optimistic.AsConflict[datatypes.Expense](err); conflict {
			versionConflictsTotal.Inc()
			storeOpsTotal.WithLabelValues("update", "conflict").Inc()
			s.log.Info("expense update rejected on version mismatch",
				"expense_id", id, "client_version", req.Version)
		} else {
			storeOpsTotal.WithLabelValues("update", "error").Inc()
		}
		return datatypes.Expense{}, err
	}
	storeOpsTotal.WithLabelValues("update", "ok").Inc()
	return updated, nil
}

// Delete removes the expense with the given id, or returns
// ErrExpenseNotFound if it does not exist.
func (s *ExpenseStore) Delete(id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		key := []byte(expenseKey(id))
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return ErrExpenseNotFound
		} else if err != nil {
			return err
		}
		return txn.Delete(key)
	})
	if err != nil {
		if !errors.Is(err, ErrExpenseNotFound) {
			storeOpsTotal.WithLabelValues("delete", "error").Inc()
		}
		return err
	}
	storeOpsTotal.WithLabelValues("delete", "ok").Inc()
	return nil
}

// List returns all expenses matching the filter, sorted per its sort
// dimension.
func (s *ExpenseStore) List(f filterstate.State) ([]datatypes.Expense, error) {
	timer := prometheus.NewTimer(storeOpDuration.WithLabelValues("list"))
	defer timer.ObserveDuration()

	var all []datatypes.Expense
	err := s.db.ScanPrefix(expenseKeyPrefix, func(key string, value []byte) error {
		var expense datatypes.Expense
		if err := json.Unmarshal(value, &expense); err != nil {
			// A single corrupt record must not take down the listing.
			s.log.Warn("skipping corrupt expense record", "key", key, "error", err)
			return nil
		}
		all = append(all, expense)
		return nil
	})
	if err != nil {
		storeOpsTotal.WithLabelValues("list", "error").Inc()
		return nil, err
	}
	storeOpsTotal.WithLabelValues("list", "ok").Inc()
	return FilterExpenses(all, f), nil
}
