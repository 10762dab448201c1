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

// Package metadata maintains the process-metadata tables colocated
// with the target store: one load_history row per load attempt and the
// per-table row counts recorded for it. All methods accept a Querier
// so a caller may run them inside the same transaction as the data
// mutations they describe.
package metadata

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/faers-sink/faers-sink/internal/types"
	"github.com/faers-sink/faers-sink/internal/util/ident"
	"github.com/faers-sink/faers-sink/internal/util/quarterid"
)

// Table names under the reserved process-metadata prefix.
const (
	historyTable = "_faers_load_history"
	countsTable  = "_faers_row_counts"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS %s (
  load_id         TEXT NOT NULL PRIMARY KEY,
  quarter         TEXT NOT NULL,
  mode            TEXT NOT NULL,
  status          TEXT NOT NULL,
  started_at      TIMESTAMPTZ NOT NULL,
  finished_at     TIMESTAMPTZ,
  source_checksum TEXT,
  error           TEXT
)`

const countsSchema = `
CREATE TABLE IF NOT EXISTS %s (
  load_id          TEXT NOT NULL,
  table_name       TEXT NOT NULL,
  rows_in          BIGINT NOT NULL,
  rows_after_dedup BIGINT NOT NULL,
  PRIMARY KEY (load_id, table_name)
)`

// EnsureSchema creates the metadata tables in schema if absent.
func EnsureSchema(ctx context.Context, db types.Querier, schema string) error {
	for _, stmt := range []string{
		fmt.Sprintf(historySchema, qualify(schema, historyTable)),
		fmt.Sprintf(countsSchema, qualify(schema, countsTable)),
	} {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return errors.Wrap(err, "could not create metadata tables")
		}
	}
	return nil
}

func qualify(schema, table string) string {
	return ident.NewTable(ident.NewSchema(schema), table).Raw()
}

// Store reads and writes the metadata tables within one schema.
type Store struct {
	history string
	counts  string
}

// New constructs a Store against the given schema.
func New(schema string) *Store {
	return &Store{
		history: qualify(schema, historyTable),
		counts:  qualify(schema, countsTable),
	}
}

// RecordStarted appends the STARTED row for a new load_id.
func (s *Store) RecordStarted(ctx context.Context, db types.Querier, h types.LoadHistory) error {
	_, err := db.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %s (load_id, quarter, mode, status, started_at, source_checksum)
		 VALUES ($1, $2, $3, $4, $5, $6)`, s.history),
		h.LoadID, h.Quarter, string(h.Mode), string(types.StatusStarted), h.StartedAt, h.SourceChecksum)
	return errors.WithStack(err)
}

// RecordChecksum fills in the archive checksum once integrity
// validation has computed it.
func (s *Store) RecordChecksum(ctx context.Context, db types.Querier, loadID, checksum string) error {
	_, err := db.Exec(ctx, fmt.Sprintf(
		`UPDATE %s SET source_checksum = $2 WHERE load_id = $1`, s.history),
		loadID, checksum)
	return errors.WithStack(err)
}

// RecordResult moves a load_id to its terminal status.
func (s *Store) RecordResult(
	ctx context.Context, db types.Querier, loadID string, status types.LoadStatus, errMsg string,
) error {
	_, err := db.Exec(ctx, fmt.Sprintf(
		`UPDATE %s SET status = $2, finished_at = $3, error = nullif($4, '') WHERE load_id = $1`,
		s.history),
		loadID, string(status), time.Now().UTC(), errMsg)
	return errors.WithStack(err)
}

// RecordCounts writes the per-table before/after-dedup row counts.
func (s *Store) RecordCounts(
	ctx context.Context, db types.Querier, loadID string, counts []types.RowCount,
) error {
	for _, c := range counts {
		if _, err := db.Exec(ctx, fmt.Sprintf(
			`INSERT INTO %s (load_id, table_name, rows_in, rows_after_dedup)
			 VALUES ($1, $2, $3, $4)`, s.counts),
			loadID, string(c.Table), c.RowsIn, c.RowsAfterDedup); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

// LatestSuccessQuarter returns the greatest quarter with a SUCCESS row,
// or ok=false when no quarter has ever loaded.
func (s *Store) LatestSuccessQuarter(
	ctx context.Context, db types.Querier,
) (quarterid.ID, bool, error) {
	var raw string
	err := db.QueryRow(ctx, fmt.Sprintf(
		`SELECT quarter FROM %s WHERE status = $1 ORDER BY quarter DESC LIMIT 1`, s.history),
		string(types.StatusSuccess)).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return quarterid.ID{}, false, nil
	}
	if err != nil {
		return quarterid.ID{}, false, errors.WithStack(err)
	}
	id, err := quarterid.Parse(raw)
	if err != nil {
		return quarterid.ID{}, false, err
	}
	return id, true, nil
}

// History returns every load attempt recorded for quarter, newest
// first.
func (s *Store) History(
	ctx context.Context, db types.Querier, quarter quarterid.ID,
) ([]types.LoadHistory, error) {
	rows, err := db.Query(ctx, fmt.Sprintf(
		`SELECT load_id, quarter, mode, status, started_at,
		        coalesce(finished_at, 'epoch'::timestamptz),
		        coalesce(source_checksum, ''), coalesce(error, '')
		 FROM %s WHERE quarter = $1 ORDER BY started_at DESC`, s.history),
		quarter.String())
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.LoadHistory, error) {
		var h types.LoadHistory
		var mode, status string
		err := row.Scan(&h.LoadID, &h.Quarter, &mode, &status,
			&h.StartedAt, &h.FinishedAt, &h.SourceChecksum, &h.ErrorMessage)
		h.Mode = types.LoadMode(mode)
		h.Status = types.LoadStatus(status)
		return h, errors.WithStack(err)
	})
}
