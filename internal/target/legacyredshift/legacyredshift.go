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

// Package legacyredshift is a loader backend for Redshift deployments
// whose COPY path requires object-store staging that isn't configured.
// Rows move through batched multi-row INSERT statements over
// database/sql and lib/pq instead of the wire-protocol COPY path the
// pgbulk backend uses.
//
// Because database/sql cannot share a physical transaction with the
// orchestrator's pgx metadata writes, this backend does not implement
// target.MetadataWriter; the SUCCESS metadata row commits on its own
// connection after the data transaction resolves.
package legacyredshift

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/faers-sink/faers-sink/internal/staging/writer"
	"github.com/faers-sink/faers-sink/internal/target"
	"github.com/faers-sink/faers-sink/internal/target/pgbulk"
	"github.com/faers-sink/faers-sink/internal/types"
)

// insertBatchSize bounds the rows packed into one multi-row INSERT.
// Redshift caps a statement at 32k parameter placeholders; the widest
// table (DEMO, 25 columns) stays well below that at this batch size.
const insertBatchSize = 500

const deleteBatchSize = 10_000

func init() {
	target.Register("redshift", func(ctx context.Context, cfg *target.Config) (target.Backend, error) {
		return open(ctx, cfg)
	})
}

// Backend drives Redshift through database/sql.
type Backend struct {
	db     *sql.DB
	schema string
}

var _ target.Backend = (*Backend)(nil)

func open(ctx context.Context, cfg *target.Config) (*Backend, error) {
	conn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=prefer",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
	db, err := sql.Open("postgres", conn)
	if err != nil {
		return nil, errors.Wrap(target.ErrUnreachable, err.Error())
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(target.ErrUnreachable, err.Error())
	}
	return &Backend{db: db, schema: cfg.Schema}, nil
}

// PrepareSchema creates the seven FAERS tables if absent. The process
// metadata tables are owned by the orchestrator's own pool.
func (b *Backend) PrepareSchema(ctx context.Context) error {
	return CreateTables(ctx, b.db, b.schema)
}

// BeginTxn opens the quarter-scoped transaction.
func (b *Backend) BeginTxn(ctx context.Context) (target.Txn, error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(target.ErrTxnFailed, err.Error())
	}
	return &txn{backend: b, tx: tx}, nil
}

// Close releases the connection pool.
func (b *Backend) Close() error { return b.db.Close() }

type txn struct {
	backend *Backend
	tx      *sql.Tx
	done    bool
}

var _ target.Txn = (*txn)(nil)

// BulkLoad reads one staged chunk and applies it as batched multi-row
// INSERT statements.
func (t *txn) BulkLoad(ctx context.Context, table types.Table, chunk string) (int64, error) {
	cols := pgbulk.Columns[table]
	batch := make([]types.Row, 0, insertBatchSize)
	var total int64

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := t.insertBatch(ctx, table, cols, batch); err != nil {
			return err
		}
		total += int64(len(batch))
		batch = batch[:0]
		return nil
	}

	err := writer.ReadChunk(chunk, table, func(row types.Row) error {
		batch = append(batch, row)
		if len(batch) >= insertBatchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return total, err
	}
	if err := flush(); err != nil {
		return total, err
	}
	log.WithFields(log.Fields{
		"table": table,
		"chunk": chunk,
		"rows":  total,
	}).Debug("loaded chunk via batched inserts")
	return total, nil
}

// insertBatch builds one INSERT INTO ... VALUES (...), (...) statement
// for the batch.
func (t *txn) insertBatch(
	ctx context.Context, table types.Table, cols []string, batch []types.Row,
) error {
	var statement strings.Builder
	fmt.Fprintf(&statement, "INSERT INTO %s (%s) VALUES ",
		qualify(t.backend.schema, table), strings.Join(cols, ", "))

	values := make([]interface{}, 0, len(batch)*len(cols))
	for i, row := range batch {
		if i > 0 {
			fmt.Fprint(&statement, ", ")
		}
		fmt.Fprint(&statement, "(")
		for j, col := range cols {
			if j > 0 {
				fmt.Fprint(&statement, ", ")
			}
			// Placeholder index always starts at 1.
			fmt.Fprintf(&statement, "$%d", len(values)+1)
			values = append(values, fieldValue(row, col))
		}
		fmt.Fprint(&statement, ")")
	}

	if _, err := t.tx.ExecContext(ctx, statement.String(), values...); err != nil {
		return classify(errors.Wrapf(err, "inserting batch into %s", table))
	}
	return nil
}

// DeleteCases removes every row for the given CASEIDs, children first.
func (t *txn) DeleteCases(ctx context.Context, caseIDs []string) (int64, error) {
	if len(caseIDs) == 0 {
		return 0, nil
	}
	var total int64
	for i := len(types.AllTables) - 1; i >= 0; i-- {
		table := types.AllTables[i]
		stmt := fmt.Sprintf("DELETE FROM %s WHERE caseid = ANY($1)",
			qualify(t.backend.schema, table))
		for start := 0; start < len(caseIDs); start += deleteBatchSize {
			end := start + deleteBatchSize
			if end > len(caseIDs) {
				end = len(caseIDs)
			}
			res, err := t.tx.ExecContext(ctx, stmt, pq.Array(caseIDs[start:end]))
			if err != nil {
				return total, classify(errors.Wrapf(err, "deleting cases from %s", table))
			}
			if n, err := res.RowsAffected(); err == nil {
				total += n
			}
		}
	}
	return total, nil
}

// DeltaMerge deletes existing versions of the incoming CASEIDs and
// loads the staged replacements.
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

// ExecDqChecks runs the same check catalog as the pgbulk backend.
func (t *txn) ExecDqChecks(
	ctx context.Context, expected []types.RowCount,
) (types.DqReport, error) {
	report := types.DqReport{Passed: true}

	for _, table := range types.AllTables {
		var nulls int64
		stmt := fmt.Sprintf(
			"SELECT count(*) FROM %s WHERE primaryid IS NULL OR caseid IS NULL",
			qualify(t.backend.schema, table))
		if err := t.tx.QueryRowContext(ctx, stmt).Scan(&nulls); err != nil {
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
			qualify(t.backend.schema, table), qualify(t.backend.schema, types.TableDemo))
		if err := t.tx.QueryRowContext(ctx, stmt).Scan(&orphans); err != nil {
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
		return report, errors.Wrap(target.ErrDqFail, "post-load checks failed")
	}
	_ = expected
	return report, nil
}

func (t *txn) Commit(ctx context.Context) error {
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return errors.Wrap(target.ErrTxnFailed, err.Error())
	}
	return nil
}

func (t *txn) Rollback(context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return errors.Wrap(target.ErrTxnFailed, err.Error())
	}
	return nil
}

// fieldValue projects one column from a staged row, with the identity
// columns falling back to the row's own fields and empty strings
// becoming SQL NULL.
func fieldValue(row types.Row, col string) interface{} {
	val := row.Fields[col]
	if val == "" {
		switch col {
		case "caseid":
			val = row.CaseID
		case "primaryid":
			val = row.PrimaryID
		case "fda_dt":
			val = row.FdaDt
		}
	}
	if val == "" {
		return nil
	}
	return val
}

// classify maps lib/pq errors onto the contract's sentinel classes.
func classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "23":
			return errors.Wrap(target.ErrConstraint, err.Error())
		case "22", "42":
			return errors.Wrap(target.ErrBulkFormat, err.Error())
		}
	}
	return err
}
