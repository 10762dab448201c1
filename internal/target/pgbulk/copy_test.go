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

package pgbulk

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faers-sink/faers-sink/internal/staging/writer"
	"github.com/faers-sink/faers-sink/internal/types"
)

func TestRowValues(t *testing.T) {
	a := assert.New(t)

	row := types.Row{
		Table:     types.TableReac,
		CaseID:    "100",
		PrimaryID: "1001",
		Fields:    map[string]string{"pt": "Headache"},
	}
	vals := rowValues(Columns[types.TableReac], row)

	a.Equal([]interface{}{"1001", "100", "Headache", nil}, vals)
}

func TestChunkSourceStreamsAllRows(t *testing.T) {
	r := require.New(t)
	a := assert.New(t)

	rows := make([]types.Row, 1000)
	for i := range rows {
		rows[i] = types.Row{
			Table:     types.TableOutc,
			CaseID:    "100",
			PrimaryID: "1001",
			Fields:    map[string]string{"caseid": "100", "primaryid": "1001", "outc_cod": "HO"},
		}
	}
	chunk := filepath.Join(t.TempDir(), "outc-000001.csv.gz")
	_, err := writer.WriteChunk(chunk, rows)
	r.NoError(err)

	src, err := newChunkSource(types.TableOutc, chunk)
	r.NoError(err)
	defer src.Close()

	count := 0
	for src.Next() {
		vals, err := src.Values()
		r.NoError(err)
		a.Len(vals, len(Columns[types.TableOutc]))
		a.Equal("HO", vals[2])
		count++
	}
	r.NoError(src.Err())
	a.Equal(len(rows), count)
}

func TestChunkSourceAbandoned(t *testing.T) {
	r := require.New(t)

	rows := make([]types.Row, 5000)
	for i := range rows {
		rows[i] = types.Row{Table: types.TableRpsr, CaseID: "1", PrimaryID: "10",
			Fields: map[string]string{"rpsr_cod": "FGN"}}
	}
	chunk := filepath.Join(t.TempDir(), "rpsr-000001.csv.gz")
	_, err := writer.WriteChunk(chunk, rows)
	r.NoError(err)

	src, err := newChunkSource(types.TableRpsr, chunk)
	r.NoError(err)
	r.True(src.Next())
	// Walking away mid-chunk must not leak the reader goroutine or
	// surface an error.
	src.Close()
}

func TestClassify(t *testing.T) {
	// classify on a non-pg error passes it through unchanged.
	err := assert.AnError
	assert.Equal(t, err, classify(err))
}
