// Copyright 2023 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package fixture provides in-memory test doubles for the loader
// contract and load-history store, plus builders for synthetic release
// archives, so the orchestrator's end-to-end behavior can be exercised
// without a database or the upstream site.
package fixture

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/faers-sink/faers-sink/internal/staging/writer"
	"github.com/faers-sink/faers-sink/internal/target"
	"github.com/faers-sink/faers-sink/internal/types"
)

// StoredRow is a committed row in the in-memory target.
type StoredRow struct {
	CaseID    string
	PrimaryID string
	Fields    map[string]string
}

// Backend is an in-memory implementation of target.Backend. A
// transaction operates on a deep copy of the committed state; Commit
// swaps the copy in atomically, Rollback discards it, which gives the
// same all-or-nothing visibility a database transaction would.
//
// FailOn, when set, is invoked before each mutating operation with the
// operation name (BulkLoad, DeleteCases, DeltaMerge, ExecDqChecks,
// Commit); returning an error aborts that operation, which is how
// tests simulate mid-merge constraint failures.
type Backend struct {
	FailOn func(op string) error

	mu     sync.Mutex
	tables map[types.Table][]StoredRow
	closed bool
}

var _ target.Backend = (*Backend)(nil)

// NewBackend returns an empty in-memory target.
func NewBackend() *Backend {
	return &Backend{tables: make(map[types.Table][]StoredRow)}
}

// Rows returns the committed rows for table.
func (b *Backend) Rows(table types.Table) []StoredRow {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]StoredRow(nil), b.tables[table]...)
}

// PrimaryIDs returns the set of committed PRIMARYIDs in table.
func (b *Backend) PrimaryIDs(table types.Table) map[string]struct{} {
	ret := make(map[string]struct{})
	for _, row := range b.Rows(table) {
		ret[row.PrimaryID] = struct{}{}
	}
	return ret
}

// CaseIDs returns the set of committed CASEIDs across all seven tables.
func (b *Backend) CaseIDs() map[string]struct{} {
	ret := make(map[string]struct{})
	for _, table := range types.AllTables {
		for _, row := range b.Rows(table) {
			ret[row.CaseID] = struct{}{}
		}
	}
	return ret
}

// PrepareSchema implements target.Backend; the in-memory store needs no
// DDL.
func (b *Backend) PrepareSchema(context.Context) error { return nil }

// BeginTxn implements target.Backend.
func (b *Backend) BeginTxn(context.Context) (target.Txn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	snapshot := make(map[types.Table][]StoredRow, len(b.tables))
	for table, rows := range b.tables {
		snapshot[table] = append([]StoredRow(nil), rows...)
	}
	return &memTxn{backend: b, pending: snapshot}, nil
}

// Close implements target.Backend.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *Backend) failOn(op string) error {
	if b.FailOn == nil {
		return nil
	}
	return b.FailOn(op)
}

type memTxn struct {
	backend *Backend
	pending map[types.Table][]StoredRow
	done    bool
}

var _ target.Txn = (*memTxn)(nil)

func (t *memTxn) BulkLoad(ctx context.Context, table types.Table, chunk string) (int64, error) {
	if err := t.backend.failOn("BulkLoad"); err != nil {
		return 0, err
	}
	var count int64
	err := writer.ReadChunk(chunk, table, func(row types.Row) error {
		t.pending[table] = append(t.pending[table], StoredRow{
			CaseID:    row.CaseID,
			PrimaryID: row.PrimaryID,
			Fields:    row.Fields,
		})
		count++
		return nil
	})
	return count, err
}

func (t *memTxn) DeleteCases(ctx context.Context, caseIDs []string) (int64, error) {
	if err := t.backend.failOn("DeleteCases"); err != nil {
		return 0, err
	}
	doomed := make(map[string]struct{}, len(caseIDs))
	for _, id := range caseIDs {
		doomed[id] = struct{}{}
	}
	var total int64
	for table, rows := range t.pending {
		kept := rows[:0]
		for _, row := range rows {
			if _, dead := doomed[row.CaseID]; dead {
				total++
				continue
			}
			kept = append(kept, row)
		}
		t.pending[table] = kept
	}
	return total, nil
}

func (t *memTxn) DeltaMerge(
	ctx context.Context, caseIDs []string, loads []target.TableLoad,
) (types.MergeResult, error) {
	ret := types.MergeResult{Loaded: make(map[types.Table]int64)}
	if err := t.backend.failOn("DeltaMerge"); err != nil {
		return ret, err
	}
	deleted, err := t.DeleteCases(ctx, caseIDs)
	if err != nil {
		return ret, err
	}
	ret.Deleted = deleted
	for _, load := range loads {
		for _, chunk := range load.Chunks {
			count, err := t.BulkLoad(ctx, load.Table, chunk)
			if err != nil {
				return ret, err
			}
			ret.Loaded[load.Table] += count
		}
	}
	return ret, nil
}

func (t *memTxn) ExecDqChecks(
	ctx context.Context, expected []types.RowCount,
) (types.DqReport, error) {
	if err := t.backend.failOn("ExecDqChecks"); err != nil {
		return types.DqReport{}, err
	}
	report := types.DqReport{Passed: true}

	parents := make(map[string]struct{})
	for _, row := range t.pending[types.TableDemo] {
		parents[row.PrimaryID] = struct{}{}
	}
	for _, table := range types.AllTables {
		if !table.IsChild() {
			continue
		}
		orphans := 0
		for _, row := range t.pending[table] {
			if _, ok := parents[row.PrimaryID]; !ok {
				orphans++
			}
		}
		check := types.DqCheckResult{
			Name:   "cascade_" + string(table),
			Passed: orphans == 0,
		}
		report.Checks = append(report.Checks, check)
		report.Passed = report.Passed && check.Passed
	}
	if !report.Passed {
		return report, errors.Wrap(target.ErrDqFail, "cascade check failed")
	}
	return report, nil
}

func (t *memTxn) Commit(context.Context) error {
	if err := t.backend.failOn("Commit"); err != nil {
		return err
	}
	t.done = true
	t.backend.mu.Lock()
	defer t.backend.mu.Unlock()
	t.backend.tables = t.pending
	return nil
}

func (t *memTxn) Rollback(context.Context) error {
	t.done = true
	t.pending = nil
	return nil
}
