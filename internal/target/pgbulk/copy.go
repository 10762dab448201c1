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
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/faers-sink/faers-sink/internal/staging/writer"
	"github.com/faers-sink/faers-sink/internal/types"
)

// chunkSource adapts one staged chunk file to pgx.CopyFromSource. The
// chunk is decompressed on a reader goroutine that pushes rows over a
// bounded channel, so memory stays bounded regardless of chunk size;
// the COPY consumer pulls at its own pace.
type chunkSource struct {
	cols  []string
	rows  chan types.Row
	stop  chan struct{}
	err   error
	errCh chan error

	current []interface{}
}

var _ pgx.CopyFromSource = (*chunkSource)(nil)

func newChunkSource(table types.Table, chunk string) (*chunkSource, error) {
	src := &chunkSource{
		cols:  Columns[table],
		rows:  make(chan types.Row, 256),
		stop:  make(chan struct{}),
		errCh: make(chan error, 1),
	}
	go func() {
		defer close(src.rows)
		src.errCh <- writer.ReadChunk(chunk, table, func(row types.Row) error {
			select {
			case src.rows <- row:
				return nil
			case <-src.stop:
				return errAbandoned
			}
		})
	}()
	return src, nil
}

// errAbandoned is returned by the reader callback when the COPY
// consumer went away before draining the chunk.
var errAbandoned = errors.New("chunk reader abandoned")

// Next implements pgx.CopyFromSource.
func (s *chunkSource) Next() bool {
	row, ok := <-s.rows
	if !ok {
		if err := <-s.errCh; err != nil && !errors.Is(err, errAbandoned) {
			s.err = err
		}
		return false
	}
	s.current = rowValues(s.cols, row)
	return true
}

// Values implements pgx.CopyFromSource.
func (s *chunkSource) Values() ([]interface{}, error) { return s.current, nil }

// Err implements pgx.CopyFromSource.
func (s *chunkSource) Err() error { return s.err }

// Close releases the reader goroutine if COPY stopped early.
func (s *chunkSource) Close() { close(s.stop) }

// rowValues projects a staged row onto the physical column order.
// Empty fields become SQL NULL, the contract's default sentinel. The
// identity columns fall back to the row's own identity fields so a
// source file that omits them still loads coherently.
func rowValues(cols []string, row types.Row) []interface{} {
	out := make([]interface{}, len(cols))
	for i, col := range cols {
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
			out[i] = nil
		} else {
			out[i] = val
		}
	}
	return out
}
