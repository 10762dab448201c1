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

package legacyredshift

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/faers-sink/faers-sink/internal/target"
	"github.com/faers-sink/faers-sink/internal/target/pgbulk"
	"github.com/faers-sink/faers-sink/internal/types"
	"github.com/faers-sink/faers-sink/internal/util/ident"
)

// Redshift has no TEXT-with-TOAST equivalent; the widest upstream
// fields (lit_ref, drugname, dose_vbm) fit comfortably in the default
// VARCHAR width used here.
const columnType = "VARCHAR(4096)"

// tableSchema is the CREATE TABLE template; %s is the qualified table
// name, %s the column list. DISTKEY on caseid keeps all versions of a
// case on one slice, which makes the caseid-keyed deletes local.
const tableSchema = `
CREATE TABLE IF NOT EXISTS %s (
%s
) DISTKEY(caseid)`

// CreateTables issues DDL for the seven FAERS tables. Redshift ignores
// secondary-index DDL, so unlike the pgbulk backend there's no caseid
// index to create.
func CreateTables(ctx context.Context, db *sql.DB, schema string) error {
	for _, table := range types.AllTables {
		var cols strings.Builder
		for i, col := range pgbulk.Columns[table] {
			if i > 0 {
				fmt.Fprint(&cols, ",\n")
			}
			fmt.Fprintf(&cols, "  %s %s", col, columnType)
			if col == "caseid" || col == "primaryid" {
				fmt.Fprint(&cols, " NOT NULL")
			}
			if table == types.TableDemo && col == "primaryid" {
				fmt.Fprint(&cols, " PRIMARY KEY")
			}
		}
		stmt := fmt.Sprintf(tableSchema, qualify(schema, table), cols.String())
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(target.ErrSchemaConflict, "creating %s: %v", table, err)
		}
	}
	return nil
}

// TableExists checks the information schema for a table.
func TableExists(ctx context.Context, db *sql.DB, schema string, table types.Table) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT count(*) FROM information_schema.tables
		 WHERE table_schema = $1 AND table_name = $2`,
		schemaOrPublic(schema), string(table)).Scan(&count)
	if err != nil {
		return false, errors.WithStack(err)
	}
	return count > 0, nil
}

func schemaOrPublic(schema string) string {
	return ident.NewSchema(schema).Raw()
}

func qualify(schema string, table types.Table) string {
	return ident.NewTable(ident.NewSchema(schema), string(table)).Raw()
}
