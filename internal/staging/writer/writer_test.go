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

package writer

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/faers-sink/faers-sink/internal/types"
)

func TestWriteReadChunkRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "demo-000001.csv.gz")

	rows := []types.Row{
		{
			CaseID: "100", PrimaryID: "1001", FdaDt: "20230115",
			Fields: map[string]string{"age": "45", "sex": "M"}, SourceFile: "DEMO23Q1.txt", SourceLine: 2,
		},
		{
			CaseID: "101", PrimaryID: "1010", FdaDt: "20230102",
			Fields: map[string]string{"age": "", "sex": "F"}, SourceFile: "DEMO23Q1.txt", SourceLine: 3,
		},
	}

	n, err := WriteChunk(path, rows)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	var out []types.Row
	require.NoError(t, ReadChunk(path, types.TableDemo, func(r types.Row) error {
		out = append(out, r)
		return nil
	}))

	require.Len(t, out, 2)
	require.Equal(t, "100", out[0].CaseID)
	require.Equal(t, "1001", out[0].PrimaryID)
	require.Equal(t, "20230115", out[0].FdaDt)
	require.Equal(t, 2, out[0].SourceLine)
	require.Equal(t, "45", out[0].Fields["age"])
	require.Equal(t, types.TableDemo, out[0].Table)

	require.Equal(t, "101", out[1].CaseID)
	require.Equal(t, "", out[1].Fields["age"])
	require.Equal(t, "F", out[1].Fields["sex"])
}

func TestWriteChunkEmptyRowsNoOp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.csv.gz")
	n, err := WriteChunk(path, nil)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}
