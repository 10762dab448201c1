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

// Package writer implements the delimited-text staging format used
// between the parse, dedup and load stages. The preferred format for this
// kind of intermediate data is columnar (e.g. Parquet), but no columnar
// writer was available to build against, so rows are staged as
// gzip-compressed CSV instead, chunked by a row-count threshold so that
// a single table's worth of a quarter never has to fit in memory at
// once.
package writer

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"

	"github.com/faers-sink/faers-sink/internal/types"
)

// DefaultChunkRows bounds the number of rows buffered into a single
// staging chunk file before it's flushed and a new one started.
const DefaultChunkRows = 250_000

// columnOrder is the sorted set of field names present in one chunk's
// rows, so a chunk's column layout doesn't depend on map iteration
// order. Readers take the layout from each chunk's header row.
type columnOrder struct {
	cols []string
}

func newColumnOrder(rows []types.Row) columnOrder {
	seen := make(map[string]struct{})
	var cols []string
	for _, r := range rows {
		for k := range r.Fields {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	return columnOrder{cols: cols}
}

// header returns the on-disk column list, with the identity columns
// fixed at the front.
func (c columnOrder) header() []string {
	return append([]string{"__case_id", "__primary_id", "__fda_dt", "__source_file", "__source_line"}, c.cols...)
}

func (c columnOrder) record(r types.Row) []string {
	out := make([]string, 0, len(c.cols)+5)
	out = append(out, r.CaseID, r.PrimaryID, r.FdaDt, r.SourceFile, itoa(r.SourceLine))
	for _, col := range c.cols {
		out = append(out, r.Fields[col])
	}
	return out
}

func itoa(i int) string {
	if i == 0 {
		return ""
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

// WriteChunk writes rows to path as a gzip-compressed CSV file and
// returns the number of rows written. The caller is responsible for
// picking a path that doesn't collide with a concurrent writer; Stage
// (see internal/staging/stage) handles that by chunk-numbering within a
// table+quarter directory.
func WriteChunk(path string, rows []types.Row) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	cols := newColumnOrder(rows)

	f, err := os.CreateTemp(filepath.Dir(path), ".stage-*.tmp")
	if err != nil {
		return 0, errors.Wrap(err, "could not create staging chunk")
	}
	tmpName := f.Name()
	defer os.Remove(tmpName) // no-op once renamed

	gz, err := gzip.NewWriterLevel(f, gzip.BestSpeed)
	if err != nil {
		_ = f.Close()
		return 0, errors.Wrap(err, "could not create gzip writer")
	}
	bw := bufio.NewWriterSize(gz, 1<<20)
	cw := csv.NewWriter(bw)

	if err := cw.Write(cols.header()); err != nil {
		_ = f.Close()
		return 0, errors.Wrap(err, "could not write chunk header")
	}
	for _, r := range rows {
		if err := cw.Write(cols.record(r)); err != nil {
			_ = f.Close()
			return 0, errors.Wrap(err, "could not write chunk row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		_ = f.Close()
		return 0, errors.Wrap(err, "could not flush chunk rows")
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		return 0, errors.Wrap(err, "could not flush chunk buffer")
	}
	if err := gz.Close(); err != nil {
		_ = f.Close()
		return 0, errors.Wrap(err, "could not close gzip writer")
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return 0, errors.Wrap(err, "could not sync staging chunk")
	}
	if err := f.Close(); err != nil {
		return 0, errors.Wrap(err, "could not close staging chunk")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return 0, errors.Wrap(err, "could not publish staging chunk")
	}
	return len(rows), nil
}

// ReadChunk streams the rows in a previously-written chunk to fn, in
// file order. Iteration stops at the first error, including one
// returned by fn.
func ReadChunk(path string, table types.Table, fn func(types.Row) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "could not open staging chunk")
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return errors.Wrap(err, "could not open gzip reader")
	}
	defer gz.Close()

	cr := csv.NewReader(bufio.NewReaderSize(gz, 1<<20))
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil
		}
		return errors.Wrap(err, "could not read chunk header")
	}
	cols := append([]string(nil), header[5:]...)

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "could not read chunk row")
		}

		fields := make(map[string]string, len(cols))
		for i, col := range cols {
			fields[col] = rec[5+i]
		}
		row := types.Row{
			Table:      table,
			CaseID:     rec[0],
			PrimaryID:  rec[1],
			FdaDt:      rec[2],
			SourceFile: rec[3],
			SourceLine: atoi(rec[4]),
			Fields:     fields,
		}
		if err := fn(row); err != nil {
			return err
		}
	}
}

func atoi(s string) int {
	neg := false
	if len(s) > 0 && s[0] == '-' {
		neg = true
		s = s[1:]
	}
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	if neg {
		return -n
	}
	return n
}
