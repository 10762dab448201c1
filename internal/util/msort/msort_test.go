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

package msort

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/faers-sink/faers-sink/internal/types"
)

func demoRow(caseID, primaryID, fdaDt string) types.Row {
	return types.Row{Table: types.TableDemo, CaseID: caseID, PrimaryID: primaryID, FdaDt: fdaDt}
}

func TestLatestVersionPerCaseSurvives(t *testing.T) {
	rows := []types.Row{
		demoRow("100", "1001", "20230115"),
		demoRow("100", "1002", "20230220"),
		demoRow("101", "1010", "20230101"),
	}

	survivors := UniqueByCase(rows)
	ids := primaryIDs(survivors)
	require.ElementsMatch(t, []string{"1002", "1010"}, ids)
}

func TestEqualDatesBreakTiesByPrimaryID(t *testing.T) {
	rows := []types.Row{
		demoRow("200", "500", "20230301"),
		demoRow("200", "501", "20230301"),
	}

	survivors := UniqueByCase(rows)
	require.Len(t, survivors, 1)
	require.Equal(t, "501", survivors[0].PrimaryID)
}

func TestYearOnlyDateLosesToFullDate(t *testing.T) {
	rows := []types.Row{
		demoRow("300", "700", "2022"),
		demoRow("300", "701", "20220315"),
	}

	survivors := UniqueByCase(rows)
	require.Len(t, survivors, 1)
	require.Equal(t, "701", survivors[0].PrimaryID)
}

func TestUniqueByCasePanicsOnEmptyCaseID(t *testing.T) {
	rows := []types.Row{demoRow("", "1", "2022")}
	require.Panics(t, func() { UniqueByCase(rows) })
}

func TestDeterminism(t *testing.T) {
	rows := []types.Row{
		demoRow("1", "a", "20230101"),
		demoRow("2", "b", "20230102"),
		demoRow("1", "c", "20230103"),
		demoRow("3", "d", "20230101"),
		demoRow("2", "e", "20230101"),
	}
	cp1 := append([]types.Row(nil), rows...)
	cp2 := append([]types.Row(nil), rows...)

	out1 := UniqueByCase(cp1)
	out2 := UniqueByCase(cp2)

	sort.Slice(out1, func(i, j int) bool { return out1[i].CaseID < out1[j].CaseID })
	sort.Slice(out2, func(i, j int) bool { return out2[i].CaseID < out2[j].CaseID })
	require.Equal(t, out1, out2)
}

func primaryIDs(rows []types.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.PrimaryID
	}
	return out
}
