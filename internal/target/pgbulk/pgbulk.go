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

// Package pgbulk is the reference loader backend for Postgres-class
// engines. All row movement goes through the wire protocol's COPY
// path via pgx.CopyFrom; the only per-row SQL this package issues is
// the set-based DELETE used by nullifications and delta-merge.
package pgbulk

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/faers-sink/faers-sink/internal/metadata"
	"github.com/faers-sink/faers-sink/internal/target"
	"github.com/faers-sink/faers-sink/internal/types"
	"github.com/faers-sink/faers-sink/internal/util/ident"
	"github.com/faers-sink/faers-sink/internal/util/stdpool"
)

// deleteBatchSize bounds the number of CASEIDs passed to a single
// DELETE ... WHERE caseid = ANY($1), keeping statement parameters at a
// size every pgx-wire engine accepts.
const deleteBatchSize = 10_000

func init() {
	target.Register("postgresql", func(ctx context.Context, cfg *target.Config) (target.Backend, error) {
		return open(ctx, cfg, types.ProductPostgreSQL)
	})
	target.Register("cockroachdb", func(ctx context.Context, cfg *target.Config) (target.Backend, error) {
		return open(ctx, cfg, types.ProductCockroachDB)
	})
}

// Backend drives a Postgres-class target over a pgx pool.
type Backend struct {
	pool   *types.TargetPool
	schema string
}

var _ target.Backend = (*Backend)(nil)

func open(ctx context.Context, cfg *target.Config, product types.Product) (*Backend, error) {
	conn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
	pool, err := stdpool.OpenPgxAsTarget(ctx, conn, product)
	if err != nil {
		return nil, errors.Wrap(target.ErrUnreachable, err.Error())
	}
	schema := cfg.Schema
	if schema == "" {
		schema = "public"
	}
	return &Backend{pool: pool, schema: schema}, nil
}

// PrepareSchema creates the seven FAERS tables, their caseid indexes,
// and the process-metadata tables if absent.
func (b *Backend) PrepareSchema(ctx context.Context) error {
	for _, table := range types.AllTables {
		qualified := b.qualify(table)
		if _, err := b.pool.Exec(ctx, fmt.Sprintf(createTemplates[table], qualified)); err != nil {
			return errors.Wrapf(target.ErrSchemaConflict, "creating %s: %v", qualified, err)
		}
		if table.IsChild() {
			stmt := fmt.Sprintf(childIndexTemplate, string(table), qualified)
			if _, err := b.pool.Exec(ctx, stmt); err != nil {
				return errors.Wrapf(target.ErrSchemaConflict, "indexing %s: %v", qualified, err)
			}
		}
	}
	return metadata.EnsureSchema(ctx, b.pool, b.schema)
}

// BeginTxn opens the quarter-scoped transaction.
func (b *Backend) BeginTxn(ctx context.Context) (target.Txn, error) {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return nil, errors.Wrap(target.ErrTxnFailed, err.Error())
	}
	return &txn{backend: b, tx: tx}, nil
}

// Close releases the pool.
func (b *Backend) Close() error {
	b.pool.Pool.Close()
	return nil
}

func (b *Backend) qualify(table types.Table) string {
	return ident.NewTable(ident.NewSchema(b.schema), string(table)).Raw()
}

type txn struct {
	backend *Backend
	tx      pgx.Tx
	done    bool
}

var (
	_ target.Txn            = (*txn)(nil)
	_ target.MetadataWriter = (*txn)(nil)
)

// MetadataQuerier exposes the transaction so the process-metadata
// writes commit atomically with the data they describe.
func (t *txn) MetadataQuerier() types.Querier { return t.tx }

// BulkLoad streams one staged chunk into table via COPY.
func (t *txn) BulkLoad(ctx context.Context, table types.Table, chunk string) (int64, error) {
	src, err := newChunkSource(table, chunk)
	if err != nil {
		return 0, errors.Wrapf(target.ErrBulkFormat, "opening chunk %s: %v", chunk, err)
	}
	defer src.Close()

	count, err := t.tx.CopyFrom(ctx,
		pgx.Identifier{t.backend.schema, string(table)},
		Columns[table],
		src,
	)
	if err != nil {
		return 0, classify(errors.Wrapf(err, "bulk load of %s from %s", table, chunk))
	}
	log.WithFields(log.Fields{
		"table": table,
		"chunk": chunk,
		"rows":  count,
	}).Debug("bulk loaded chunk")
	return count, nil
}

// DeleteCases removes every row for the given CASEIDs across all seven
// tables, children first so a foreign-keyed deployment never sees an
// orphaned child.
func (t *txn) DeleteCases(ctx context.Context, caseIDs []string) (int64, error) {
	if len(caseIDs) == 0 {
		return 0, nil
	}
	var total int64
	for i := len(types.AllTables) - 1; i >= 0; i-- {
		table := types.AllTables[i]
		stmt := fmt.Sprintf("DELETE FROM %s WHERE caseid = ANY($1)", t.backend.qualify(table))
		for start := 0; start < len(caseIDs); start += deleteBatchSize {
			end := start + deleteBatchSize
			if end > len(caseIDs) {
				end = len(caseIDs)
			}
			tag, err := t.tx.Exec(ctx, stmt, caseIDs[start:end])
			if err != nil {
				return total, classify(errors.Wrapf(err, "deleting cases from %s", table))
			}
			total += tag.RowsAffected()
		}
	}
	return total, nil
}

// DeltaMerge deletes the incoming CASEIDs' existing versions and then
// bulk-loads the staged replacement rows.
func (t *txn) DeltaMerge(
	ctx context.Context, caseIDs []string, loads []target.TableLoad,
) (types.MergeResult, error) {
	ret := types.MergeResult{Loaded: make(map[types.Table]int64)}

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

// ExecDqChecks runs the post-load checks: no null identity columns and
// the child-to-DEMO cascade. The expected counts are not compared here;
// row counts against the dedup output are checked by the orchestrator.
func (t *txn) ExecDqChecks(
	ctx context.Context, expected []types.RowCount,
) (types.DqReport, error) {
	report := types.DqReport{Passed: true}

	for _, table := range types.AllTables {
		var nulls int64
		stmt := fmt.Sprintf(
			"SELECT count(*) FROM %s WHERE primaryid IS NULL OR caseid IS NULL",
			t.backend.qualify(table))
		if err := t.tx.QueryRow(ctx, stmt).Scan(&nulls); err != nil {
			return report, errors.Wrapf(err, "null-key check on %s", table)
		}
		check := types.DqCheckResult{
			Name:   fmt.Sprintf("null_keys_%s", table),
			Passed: nulls == 0,
			Detail: fmt.Sprintf("%d rows with null identity columns", nulls),
		}
		report.Checks = append(report.Checks, check)
		report.Passed = report.Passed && check.Passed
	}

	for _, table := range types.AllTables {
		if !table.IsChild() {
			continue
		}
		var orphans int64
		stmt := fmt.Sprintf(
			"SELECT count(*) FROM %s c WHERE NOT EXISTS (SELECT 1 FROM %s d WHERE d.primaryid = c.primaryid)",
			t.backend.qualify(table), t.backend.qualify(types.TableDemo))
		if err := t.tx.QueryRow(ctx, stmt).Scan(&orphans); err != nil {
			return report, errors.Wrapf(err, "cascade check on %s", table)
		}
		check := types.DqCheckResult{
			Name:   fmt.Sprintf("cascade_%s", table),
			Passed: orphans == 0,
			Detail: fmt.Sprintf("%d rows without a DEMO parent", orphans),
		}
		report.Checks = append(report.Checks, check)
		report.Passed = report.Passed && check.Passed
	}

	if !report.Passed {
		return report, errors.Wrap(target.ErrDqFail, summarize(report))
	}
	_ = expected // row-count drift is checked by the orchestrator against MergeResult
	return report, nil
}

func (t *txn) Commit(ctx context.Context) error {
	t.done = true
	if err := t.tx.Commit(ctx); err != nil {
		return errors.Wrap(target.ErrTxnFailed, err.Error())
	}
	return nil
}

func (t *txn) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return errors.Wrap(target.ErrTxnFailed, err.Error())
	}
	return nil
}

func summarize(report types.DqReport) string {
	for _, c := range report.Checks {
		if !c.Passed {
			return fmt.Sprintf("%s: %s", c.Name, c.Detail)
		}
	}
	return "unknown check failure"
}

// classify maps driver-level errors onto the contract's sentinel error
// classes. SQLSTATE class 23 is an integrity-constraint violation;
// classes 22 and 42 indicate the payload or statement was malformed.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case len(pgErr.Code) >= 2 && pgErr.Code[:2] == "23":
			return errors.Wrap(target.ErrConstraint, err.Error())
		case len(pgErr.Code) >= 2 && (pgErr.Code[:2] == "22" || pgErr.Code[:2] == "42"):
			return errors.Wrap(target.ErrBulkFormat, err.Error())
		}
	}
	return err
}
