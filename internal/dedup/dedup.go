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

// Package dedup applies the FDA case-version selection rule across a
// quarter's staged chunks: DEMO drives selection of the
// surviving PRIMARYID set, and the six child tables are filtered to
// match.
package dedup

import (
	log "github.com/sirupsen/logrus"

	"github.com/faers-sink/faers-sink/internal/types"
	"github.com/faers-sink/faers-sink/internal/util/msort"
)

// Source reads back previously staged rows for one table. It is
// satisfied by *stage.Stage's Select method.
type Source interface {
	Select(table types.Table, fn func(types.Row) error) error
}

// Sink receives deduplicated rows for one table, in the order Run
// produces them. It is satisfied by a Loader Contract's staging/ingest
// side, or by a test double.
type Sink interface {
	Accept(types.Row) error
}

// SinkFunc adapts a plain function to Sink.
type SinkFunc func(types.Row) error

// Accept implements Sink.
func (f SinkFunc) Accept(r types.Row) error { return f(r) }

// Run executes the full dedup pass: scan all
// DEMO rows from src, reduce them with msort.UniqueByCase, remove any
// CASEID present in nulls, then stream DEMO followed by all six child
// tables to sink, filtered to the surviving PRIMARYID set.
//
// DEMO rows are buffered in memory for the duration of the pass since
// the selection rule is inherently a full-key reduction; the six child
// tables are streamed row-by-row without buffering, since they only
// need a membership test against the (already bounded) surviving set.
func Run(src Source, sink Sink, nulls types.Nullifications) ([]types.RowCount, error) {
	var demo []types.Row
	var demoRowsIn int64

	if err := src.Select(types.TableDemo, func(r types.Row) error {
		demoRowsIn++
		if nulls != nil && nulls.Has(r.CaseID) {
			return nil
		}
		demo = append(demo, r)
		return nil
	}); err != nil {
		return nil, err
	}

	demo = msort.UniqueByCase(demo)
	surviving := msort.SurvivingPrimaryIDs(demo)

	for _, row := range demo {
		if err := sink.Accept(row); err != nil {
			return nil, err
		}
	}

	log.WithFields(log.Fields{
		"rows_in":   demoRowsIn,
		"surviving": len(demo),
	}).Debug("deduplicated DEMO")

	counts := []types.RowCount{{Table: types.TableDemo, RowsIn: demoRowsIn, RowsAfterDedup: int64(len(demo))}}

	for _, table := range types.AllTables {
		if table == types.TableDemo {
			continue
		}
		var childRowsIn, childSurviving int64
		err := src.Select(table, func(r types.Row) error {
			childRowsIn++
			if nulls != nil && nulls.Has(r.CaseID) {
				return nil
			}
			if _, ok := surviving[r.PrimaryID]; !ok {
				return nil
			}
			childSurviving++
			return sink.Accept(r)
		})
		if err != nil {
			return nil, err
		}
		log.WithFields(log.Fields{
			"table":     table,
			"rows_in":   childRowsIn,
			"surviving": childSurviving,
		}).Debug("filtered child table")
		counts = append(counts, types.RowCount{Table: table, RowsIn: childRowsIn, RowsAfterDedup: childSurviving})
	}

	return counts, nil
}
