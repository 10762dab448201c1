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

// Package msort contains utility functions for selecting and
// de-duplicating batches of FAERS DEMO rows by the FDA case-version
// rule.
package msort

import (
	"github.com/faers-sink/faers-sink/internal/types"
	"github.com/faers-sink/faers-sink/internal/util/fdadate"
)

// UniqueByCase implements the FDA case-version selection rule: for
// each CASEID, keep the row with the maximum FDA_DT,
// breaking ties with the maximum PRIMARYID. If two rows share the same
// CASEID, FDA_DT and PRIMARYID, exactly one is chosen arbitrarily.
//
// The modified slice is returned.
//
// This function will panic if any input row has an empty CaseID, since
// that indicates an upstream parsing defect rather than a legitimate
// degraded record (an unparseable FDA_DT is fine and handled via
// fdadate.Parse; a missing CaseID is not).
func UniqueByCase(rows []types.Row) []types.Row {
	// For any given CASEID, track the index in the slice that holds the
	// current best row for that case.
	best := make(map[string]int, len(rows))

	// Iterate backwards, moving the running-best row for each CASEID to
	// the rear of the slice as we encounter ties or improvements.
	dest := len(rows)
	for src := len(rows) - 1; src >= 0; src-- {
		if rows[src].CaseID == "" {
			panic("empty case id")
		}
		key := rows[src].CaseID

		if curIdx, found := best[key]; found {
			if wins(rows[src], rows[curIdx]) {
				rows[curIdx] = rows[src]
			}
		} else {
			dest--
			best[key] = dest
			rows[dest] = rows[src]
		}
	}

	return rows[dest:]
}

// wins reports whether candidate should replace incumbent under the
// version ordering: FDA_DT descending, PRIMARYID descending as a
// tie-break.
func wins(candidate, incumbent types.Row) bool {
	c := fdadate.Compare(fdadate.Parse(candidate.FdaDt), fdadate.Parse(incumbent.FdaDt))
	if c != 0 {
		return c > 0
	}
	return candidate.PrimaryID > incumbent.PrimaryID
}

// SurvivingPrimaryIDs extracts the set of PRIMARYIDs present in a DEMO
// slice that has already been reduced by UniqueByCase.
func SurvivingPrimaryIDs(demo []types.Row) map[string]struct{} {
	out := make(map[string]struct{}, len(demo))
	for _, row := range demo {
		out[row.PrimaryID] = struct{}{}
	}
	return out
}
