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

// Package target defines the loader contract that isolates all
// backend-specific work. The parse, staging and dedup layers never see
// anything below these interfaces; a backend only sees deduplicated
// chunk-file references and CASEID sets.
package target

import (
	"context"

	"github.com/faers-sink/faers-sink/internal/types"
)

// Config carries the connection parameters a Factory needs to open a
// Backend. Password is supplied separately from the config file, via an
// environment variable or secret source.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Schema   string
}

// TableLoad names the staged, deduplicated chunk files to bulk-load
// into one table.
type TableLoad struct {
	Table  types.Table
	Chunks []string
}

// Backend is a live connection to one target store. Implementations are
// obtained through the registry (see Open) and must be safe for use by
// a single orchestrator goroutine; they are not required to be safe for
// concurrent use.
type Backend interface {
	// PrepareSchema creates the seven FAERS tables and the process
	// metadata tables if they don't already exist.
	PrepareSchema(ctx context.Context) error

	// BeginTxn opens the transactional boundary that a single quarter's
	// mutations happen inside.
	BeginTxn(ctx context.Context) (Txn, error)

	// Close releases the underlying connection pool.
	Close() error
}

// Txn is one quarter's transactional unit of work against a Backend.
// Exactly one of Commit or Rollback must be called; Rollback after a
// failed Commit is a no-op.
type Txn interface {
	// BulkLoad streams one staged chunk file into table using the
	// backend's native bulk path. It returns the number of rows loaded.
	BulkLoad(ctx context.Context, table types.Table, chunk string) (int64, error)

	// DeleteCases removes every row, in all seven tables, belonging to
	// the given CASEIDs. Used for upstream nullifications.
	DeleteCases(ctx context.Context, caseIDs []string) (int64, error)

	// DeltaMerge replaces all existing versions of the CASEIDs present
	// in the incoming load set: existing rows for those CASEIDs are
	// deleted across the seven tables, then the staged chunks are
	// bulk-loaded. The result is latest-version-only state.
	DeltaMerge(ctx context.Context, caseIDs []string, loads []TableLoad) (types.MergeResult, error)

	// ExecDqChecks runs the post-load data-quality checks. The expected
	// counts are this load's rows_after_dedup figures; a failed check
	// is reported in the DqReport, and the caller rolls back.
	ExecDqChecks(ctx context.Context, expected []types.RowCount) (types.DqReport, error)

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// MetadataWriter is optionally implemented by a Txn whose backend can
// host the process-metadata tables inside the same transaction as the
// data mutations. When available, the orchestrator couples the SUCCESS
// metadata row to the data commit; otherwise metadata is written on a
// separate connection after the data transaction resolves.
type MetadataWriter interface {
	MetadataQuerier() types.Querier
}
