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

package dedup

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/faers-sink/faers-sink/internal/types"
)

type fakeSource struct {
	rows map[types.Table][]types.Row
}

func (f *fakeSource) Select(table types.Table, fn func(types.Row) error) error {
	for _, r := range f.rows[table] {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

func TestRunAppliesCaseVersionRuleAndCascades(t *testing.T) {
	src := &fakeSource{rows: map[types.Table][]types.Row{
		types.TableDemo: {
			{Table: types.TableDemo, CaseID: "100", PrimaryID: "1001", FdaDt: "20230115"},
			{Table: types.TableDemo, CaseID: "100", PrimaryID: "1002", FdaDt: "20230220"},
			{Table: types.TableDemo, CaseID: "101", PrimaryID: "1010", FdaDt: "20230101"},
			{Table: types.TableDemo, CaseID: "102", PrimaryID: "1020", FdaDt: "20230101"},
		},
		types.TableDrug: {
			{Table: types.TableDrug, CaseID: "100", PrimaryID: "1001"}, // stale version, should be dropped
			{Table: types.TableDrug, CaseID: "100", PrimaryID: "1002"}, // surviving version
			{Table: types.TableDrug, CaseID: "101", PrimaryID: "1010"},
			{Table: types.TableDrug, CaseID: "102", PrimaryID: "1020"}, // nullified case
		},
	}}

	nulls := types.Nullifications{}
	nulls.Add("102")

	var accepted []types.Row
	sink := SinkFunc(func(r types.Row) error {
		accepted = append(accepted, r)
		return nil
	})

	counts, err := Run(src, sink, nulls)
	require.NoError(t, err)

	var demoOut, drugOut []types.Row
	for _, r := range accepted {
		switch r.Table {
		case types.TableDemo:
			demoOut = append(demoOut, r)
		case types.TableDrug:
			drugOut = append(drugOut, r)
		}
	}

	require.Len(t, demoOut, 2) // 1002 survives for case 100, 1010 survives for 101; 102 nullified
	require.Len(t, drugOut, 2) // only primaryid 1002 and 1010 drug rows survive

	var drugPrimaryIDs []string
	for _, r := range drugOut {
		drugPrimaryIDs = append(drugPrimaryIDs, r.PrimaryID)
	}
	require.ElementsMatch(t, []string{"1002", "1010"}, drugPrimaryIDs)

	require.Len(t, counts, len(types.AllTables))
	for _, c := range counts {
		if c.Table == types.TableDemo {
			require.Equal(t, int64(4), c.RowsIn)
			require.Equal(t, int64(2), c.RowsAfterDedup)
		}
	}
}

func TestRunEmptyDemo(t *testing.T) {
	src := &fakeSource{rows: map[types.Table][]types.Row{}}
	counts, err := Run(src, SinkFunc(func(types.Row) error { return nil }), nil)
	require.NoError(t, err)
	require.Len(t, counts, len(types.AllTables))
}
