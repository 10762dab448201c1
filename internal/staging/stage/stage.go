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

package stage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/faers-sink/faers-sink/internal/staging/writer"
	"github.com/faers-sink/faers-sink/internal/types"
	"github.com/faers-sink/faers-sink/internal/util/quarterid"
)

// Stage manages the on-disk staging chunks for a single release
// quarter: one gzip-compressed CSV chunk sequence per table, rooted
// under baseDir/<quarter>/<table>/.
type Stage struct {
	baseDir   string
	quarter   quarterid.ID
	chunkRows int

	mu      sync.Mutex
	buffers map[types.Table][]types.Row
	seq     map[types.Table]int
	chunks  map[types.Table][]string
}

// New constructs a Stage rooted at baseDir for the given quarter. A
// chunkRows of 0 selects writer.DefaultChunkRows.
func New(baseDir string, quarter quarterid.ID, chunkRows int) *Stage {
	if chunkRows <= 0 {
		chunkRows = writer.DefaultChunkRows
	}
	return &Stage{
		baseDir:   baseDir,
		quarter:   quarter,
		chunkRows: chunkRows,
		buffers:   make(map[types.Table][]types.Row),
		seq:       make(map[types.Table]int),
		chunks:    make(map[types.Table][]string),
	}
}

func (s *Stage) dir(table types.Table) string {
	return filepath.Join(s.baseDir, s.quarter.String(), string(table))
}

// Store buffers row for its table, flushing a chunk to disk once the
// buffer reaches the configured chunk size.
func (s *Stage) Store(row types.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buffers[row.Table] = append(s.buffers[row.Table], row)
	stageStoreCount.WithLabelValues(s.quarter.String(), string(row.Table)).Inc()

	if len(s.buffers[row.Table]) >= s.chunkRows {
		return s.flushLocked(row.Table)
	}
	return nil
}

// Flush forces any buffered rows for table to disk as a final,
// possibly-short chunk. It is idempotent if there's nothing buffered.
func (s *Stage) Flush(table types.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked(table)
}

// FlushAll flushes every table that has buffered rows.
func (s *Stage) FlushAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for table := range s.buffers {
		if err := s.flushLocked(table); err != nil {
			return err
		}
	}
	return nil
}

func (s *Stage) flushLocked(table types.Table) error {
	rows := s.buffers[table]
	if len(rows) == 0 {
		return nil
	}

	start := time.Now()
	if err := os.MkdirAll(s.dir(table), 0o755); err != nil {
		stageStoreErrors.WithLabelValues(s.quarter.String(), string(table)).Inc()
		return errors.Wrap(err, "could not create staging directory")
	}

	s.seq[table]++
	path := filepath.Join(s.dir(table), fmt.Sprintf("%s-%06d.csv.gz", table, s.seq[table]))

	if _, err := writer.WriteChunk(path, rows); err != nil {
		stageStoreErrors.WithLabelValues(s.quarter.String(), string(table)).Inc()
		return errors.Wrapf(err, "could not write staging chunk %s", path)
	}
	stageStoreDurations.WithLabelValues(s.quarter.String(), string(table)).Observe(time.Since(start).Seconds())

	s.chunks[table] = append(s.chunks[table], path)
	s.buffers[table] = s.buffers[table][:0]

	log.WithFields(log.Fields{
		"quarter": s.quarter.String(),
		"table":   table,
		"rows":    len(rows),
		"path":    path,
	}).Debug("wrote staging chunk")
	return nil
}

// Select streams every row previously staged for table across all of
// its chunks, in the order the chunks were written.
func (s *Stage) Select(table types.Table, fn func(types.Row) error) error {
	s.mu.Lock()
	chunks := append([]string(nil), s.chunks[table]...)
	s.mu.Unlock()

	for _, path := range chunks {
		start := time.Now()
		count := 0
		err := writer.ReadChunk(path, table, func(row types.Row) error {
			count++
			return fn(row)
		})
		stageSelectDurations.WithLabelValues(s.quarter.String(), string(table)).Observe(time.Since(start).Seconds())
		if err != nil {
			stageSelectErrors.WithLabelValues(s.quarter.String(), string(table)).Inc()
			return errors.Wrapf(err, "could not read staging chunk %s", path)
		}
		stageSelectCount.WithLabelValues(s.quarter.String(), string(table)).Add(float64(count))
	}
	return nil
}

// Chunks returns the paths of every chunk written for table so far, in
// write order. Callers get their own copy; the loader hands these paths
// to a Backend's BulkLoad as read-only references.
func (s *Stage) Chunks(table types.Table) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.chunks[table]...)
}

// Retire deletes every chunk staged for table, once the dedup and load
// stages no longer need it.
func (s *Stage) Retire(table types.Table) error {
	s.mu.Lock()
	chunks := s.chunks[table]
	delete(s.chunks, table)
	s.mu.Unlock()

	start := time.Now()
	for _, path := range chunks {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			stageRetireErrors.WithLabelValues(s.quarter.String(), string(table)).Inc()
			return errors.Wrapf(err, "could not retire staging chunk %s", path)
		}
	}
	stageRetireDurations.WithLabelValues(s.quarter.String(), string(table)).Observe(time.Since(start).Seconds())
	_ = os.Remove(s.dir(table)) // best-effort; ignore ENOTEMPTY from races
	return nil
}

// RetireAll retires every table's chunks for this quarter.
func (s *Stage) RetireAll() error {
	for _, table := range types.AllTables {
		if err := s.Retire(table); err != nil {
			return err
		}
	}
	return os.Remove(filepath.Join(s.baseDir, s.quarter.String()))
}
