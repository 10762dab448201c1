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

// Package types contains the data types and interfaces that define the
// major functional blocks of the FAERS ETL pipeline. Keeping them in one
// package makes it easy to compose functionality as the pipeline evolves
// without introducing import cycles between the acquisition, parsing,
// staging, dedup and loader layers.
package types

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Table identifies one of the seven FAERS relational tables.
type Table string

// The seven FAERS tables named in the upstream release.
const (
	TableDemo Table = "demo"
	TableDrug Table = "drug"
	TableReac Table = "reac"
	TableOutc Table = "outc"
	TableRpsr Table = "rpsr"
	TableTher Table = "ther"
	TableIndi Table = "indi"
)

// AllTables lists the seven tables in a fixed, deterministic order: DEMO
// first since it drives dedup selection, followed by the six child
// tables in their conventional release order.
var AllTables = []Table{TableDemo, TableDrug, TableReac, TableOutc, TableRpsr, TableTher, TableIndi}

// IsChild reports whether t is one of the six tables keyed by PRIMARYID
// rather than the DEMO table itself.
func (t Table) IsChild() bool { return t != TableDemo }

// LoadMode selects one of the three load modes the Orchestrator drives.
type LoadMode string

const (
	ModeDelta   LoadMode = "delta"
	ModePartial LoadMode = "partial"
	ModeFull    LoadMode = "full"
)

// LoadStatus is the terminal or in-flight state of a load_id.
type LoadStatus string

const (
	StatusStarted    LoadStatus = "STARTED"
	StatusSuccess    LoadStatus = "SUCCESS"
	StatusFailed     LoadStatus = "FAILED"
	StatusRolledBack LoadStatus = "ROLLED_BACK"
)

// Row is a single parsed record belonging to exactly one FAERS table. It
// carries the opaque field bag alongside the handful of fields the
// pipeline itself needs to reason about: identity (CaseID/PrimaryID),
// versioning (FdaDt), and provenance (SourceFile/SourceLine) for
// diagnostics.
type Row struct {
	Table      Table
	CaseID     string
	PrimaryID  string
	FdaDt      string // raw string as received; see util/fdadate for parsing
	Fields     map[string]string
	SourceFile string
	SourceLine int
}

// Nullifications is the set of CASEIDs marked for deletion within a
// quarter, gathered from DELE*.TXT (ASCII) or safetyreportnullification
// (XML).
type Nullifications map[string]struct{}

// Add marks caseID as nullified.
func (n Nullifications) Add(caseID string) { n[caseID] = struct{}{} }

// Has reports whether caseID has been nullified.
func (n Nullifications) Has(caseID string) bool {
	_, ok := n[caseID]
	return ok
}

// LoadHistory is an immutable append-row describing the outcome of one
// quarter's load attempt.
type LoadHistory struct {
	LoadID         string
	Quarter        string
	Mode           LoadMode
	Status         LoadStatus
	StartedAt      time.Time
	FinishedAt     time.Time
	SourceChecksum string
	ErrorMessage   string
}

// RowCount records the before/after-dedup row counts for one table
// within one load_id.
type RowCount struct {
	LoadID         string
	Table          Table
	RowsIn         int64
	RowsAfterDedup int64
}

// DqReport is the pass/fail summary returned by ExecDqChecks.
type DqReport struct {
	Passed bool
	Checks []DqCheckResult
}

// DqCheckResult is the outcome of a single named data-quality check.
type DqCheckResult struct {
	Name   string
	Passed bool
	Detail string
}

// MergeResult summarizes the outcome of a DeltaMerge call.
type MergeResult struct {
	Deleted int64
	Loaded  map[Table]int64
}

// Product is an enum type to make it easy to switch on the underlying
// database engine a Backend is driving.
type Product int

// The product families this pipeline can target.
const (
	ProductUnknown Product = iota
	ProductPostgreSQL
	ProductRedshift
	ProductCockroachDB
	ProductMySQL
)

// AnyPool is a generic type constraint for any connection-pool type this
// module supports.
type AnyPool interface {
	*TargetPool | *MetadataPool
	Info() *PoolInfo
}

// PoolInfo describes a database connection pool and what it's connected to.
type PoolInfo struct {
	ConnectionString string
	Product          Product
	Version          string
}

// Info returns the PoolInfo when embedded.
func (i *PoolInfo) Info() *PoolInfo { return i }

type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// TargetPool is an injection point for a connection to the target data
// store that the deduplicated FAERS tables are loaded into.
type TargetPool struct {
	*pgxpool.Pool
	PoolInfo
	_ noCopy
}

// MetadataPool is an injection point for the load_history/row_counts
// metadata store. It is typically the same physical database as
// TargetPool (process metadata is colocated with the data it
// describes) but is modeled separately so a backend may choose to
// host metadata elsewhere (e.g. a MySQL-hosted control plane).
type MetadataPool struct {
	*sql.DB
	PoolInfo
	_ noCopy
}

// Querier is implemented by pgxpool.Pool, pgxpool.Conn, pgxpool.Tx and
// pgx.Tx. It lets code that only needs to run statements accept any of
// those types without committing to one.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...interface{}) pgx.Row
}

var (
	_ Querier = (*pgxpool.Pool)(nil)
	_ Querier = (*pgxpool.Conn)(nil)
	_ Querier = (*pgxpool.Tx)(nil)
	_ Querier = (pgx.Tx)(nil)
)

// SQLQuerier is implemented by [database/sql.DB] and [database/sql.Tx],
// used by the legacy row-oriented backend and MySQL-hosted metadata
// pools.
type SQLQuerier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

var (
	_ SQLQuerier = (*sql.DB)(nil)
	_ SQLQuerier = (*sql.Tx)(nil)
)
