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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/faers-sink/faers-sink/internal/target/pgbulk"
	"github.com/faers-sink/faers-sink/internal/types"
)

func TestQualify(t *testing.T) {
	a := assert.New(t)
	a.Equal("public.demo", qualify("", types.TableDemo))
	a.Equal("faers.reac", qualify("faers", types.TableReac))
}

func TestFieldValue(t *testing.T) {
	a := assert.New(t)

	row := types.Row{
		CaseID:    "100",
		PrimaryID: "1001",
		FdaDt:     "20230115",
		Fields:    map[string]string{"sex": "F"},
	}

	a.Equal("F", fieldValue(row, "sex"))
	a.Equal("100", fieldValue(row, "caseid"))
	a.Equal("1001", fieldValue(row, "primaryid"))
	a.Equal("20230115", fieldValue(row, "fda_dt"))
	a.Nil(fieldValue(row, "age"))
}

func TestInsertBatchSizeWithinPlaceholderCap(t *testing.T) {
	// Redshift rejects statements with more than 32767 parameters; the
	// widest table must stay under that at the configured batch size.
	widest := 0
	for _, table := range types.AllTables {
		if n := len(pgbulk.Columns[table]); n > widest {
			widest = n
		}
	}
	assert.Less(t, insertBatchSize*widest, 32767)
}
