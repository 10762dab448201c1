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

package metadata

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/faers-sink/faers-sink/internal/types"
	"github.com/faers-sink/faers-sink/internal/util/quarterid"
)

// MySQL renditions of the metadata tables, for deployments that host
// the control plane separately from the target warehouse. Table names
// are unqualified; the connection's database selects the namespace.
const myHistorySchema = `
CREATE TABLE IF NOT EXISTS ` + historyTable + ` (
  load_id         VARCHAR(64) NOT NULL PRIMARY KEY,
  quarter         VARCHAR(8) NOT NULL,
  mode            VARCHAR(16) NOT NULL,
  status          VARCHAR(16) NOT NULL,
  started_at      DATETIME(6) NOT NULL,
  finished_at     DATETIME(6),
  source_checksum VARCHAR(64),
  error           TEXT
)`

const myCountsSchema = `
CREATE TABLE IF NOT EXISTS ` + countsTable + ` (
  load_id          VARCHAR(64) NOT NULL,
  table_name       VARCHAR(16) NOT NULL,
  rows_in          BIGINT NOT NULL,
  rows_after_dedup BIGINT NOT NULL,
  PRIMARY KEY (load_id, table_name)
)`

// EnsureMySQLSchema creates the metadata tables on a MySQL-hosted
// control plane if absent.
func EnsureMySQLSchema(ctx context.Context, db types.SQLQuerier) error {
	for _, stmt := range []string{myHistorySchema, myCountsSchema} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "could not create metadata tables")
		}
	}
	return nil
}

// MyStore is the MySQL flavor of Store. Because MySQL never shares a
// transaction with the pg-wire data load, every write here commits on
// its own connection; the orchestrator treats this profile like any
// backend that can't couple metadata to the data commit.
type MyStore struct{}

// NewMyStore constructs a MyStore.
func NewMyStore() *MyStore { return &MyStore{} }

// RecordStarted appends the STARTED row for a new load_id.
func (s *MyStore) RecordStarted(ctx context.Context, db types.SQLQuerier, h types.LoadHistory) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO `+historyTable+` (load_id, quarter, mode, status, started_at, source_checksum)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		h.LoadID, h.Quarter, string(h.Mode), string(types.StatusStarted), h.StartedAt, h.SourceChecksum)
	return errors.WithStack(err)
}

// RecordChecksum fills in the archive checksum once computed.
func (s *MyStore) RecordChecksum(ctx context.Context, db types.SQLQuerier, loadID, checksum string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE `+historyTable+` SET source_checksum = ? WHERE load_id = ?`,
		checksum, loadID)
	return errors.WithStack(err)
}

// RecordResult moves a load_id to its terminal status.
func (s *MyStore) RecordResult(
	ctx context.Context, db types.SQLQuerier, loadID string, status types.LoadStatus, errMsg string,
) error {
	_, err := db.ExecContext(ctx,
		`UPDATE `+historyTable+` SET status = ?, finished_at = ?, error = nullif(?, '') WHERE load_id = ?`,
		string(status), time.Now().UTC(), errMsg, loadID)
	return errors.WithStack(err)
}

// RecordCounts writes the per-table before/after-dedup row counts.
func (s *MyStore) RecordCounts(
	ctx context.Context, db types.SQLQuerier, loadID string, counts []types.RowCount,
) error {
	for _, c := range counts {
		if _, err := db.ExecContext(ctx,
			`INSERT INTO `+countsTable+` (load_id, table_name, rows_in, rows_after_dedup)
			 VALUES (?, ?, ?, ?)`,
			loadID, string(c.Table), c.RowsIn, c.RowsAfterDedup); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

// LatestSuccessQuarter returns the greatest quarter with a SUCCESS row,
// or ok=false when no quarter has ever loaded.
func (s *MyStore) LatestSuccessQuarter(
	ctx context.Context, db types.SQLQuerier,
) (quarterid.ID, bool, error) {
	var raw string
	err := db.QueryRowContext(ctx,
		`SELECT quarter FROM `+historyTable+` WHERE status = ? ORDER BY quarter DESC LIMIT 1`,
		string(types.StatusSuccess)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
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
func (s *MyStore) History(
	ctx context.Context, db types.SQLQuerier, quarter quarterid.ID,
) ([]types.LoadHistory, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT load_id, quarter, mode, status, started_at,
		        coalesce(finished_at, '1970-01-01'),
		        coalesce(source_checksum, ''), coalesce(error, '')
		 FROM `+historyTable+` WHERE quarter = ? ORDER BY started_at DESC`,
		quarter.String())
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer rows.Close()

	var ret []types.LoadHistory
	for rows.Next() {
		var h types.LoadHistory
		var mode, status string
		if err := rows.Scan(&h.LoadID, &h.Quarter, &mode, &status,
			&h.StartedAt, &h.FinishedAt, &h.SourceChecksum, &h.ErrorMessage); err != nil {
			return nil, errors.WithStack(err)
		}
		h.Mode = types.LoadMode(mode)
		h.Status = types.LoadStatus(status)
		ret = append(ret, h)
	}
	return ret, errors.WithStack(rows.Err())
}
