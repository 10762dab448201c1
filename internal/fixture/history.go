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

package fixture

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/faers-sink/faers-sink/internal/types"
	"github.com/faers-sink/faers-sink/internal/util/quarterid"
)

// History is an in-memory load-history store satisfying the
// orchestrator's history interface.
type History struct {
	mu      sync.Mutex
	records []types.LoadHistory
	counts  map[string][]types.RowCount
}

// NewHistory returns an empty History.
func NewHistory() *History {
	return &History{counts: make(map[string][]types.RowCount)}
}

// Records returns every load attempt recorded so far, oldest first.
func (h *History) Records() []types.LoadHistory {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]types.LoadHistory(nil), h.records...)
}

// Counts returns the row counts recorded for loadID.
func (h *History) Counts(loadID string) []types.RowCount {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]types.RowCount(nil), h.counts[loadID]...)
}

// LatestSuccess returns the greatest quarter with a SUCCESS record.
func (h *History) LatestSuccess(context.Context) (quarterid.ID, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var best quarterid.ID
	found := false
	for _, rec := range h.records {
		if rec.Status != types.StatusSuccess {
			continue
		}
		q, err := quarterid.Parse(rec.Quarter)
		if err != nil {
			return quarterid.ID{}, false, err
		}
		if !found || quarterid.Before(best, q) {
			best = q
			found = true
		}
	}
	return best, found, nil
}

// LoadStarted appends a STARTED record.
func (h *History) LoadStarted(_ context.Context, rec types.LoadHistory) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	rec.Status = types.StatusStarted
	h.records = append(h.records, rec)
	return nil
}

// LoadChecksum records the archive checksum for loadID.
func (h *History) LoadChecksum(_ context.Context, loadID, checksum string) error {
	return h.update(loadID, func(rec *types.LoadHistory) {
		rec.SourceChecksum = checksum
	})
}

// LoadSucceeded moves loadID to SUCCESS and records its counts. The
// querier is ignored; the in-memory store has no transaction to join.
func (h *History) LoadSucceeded(
	_ context.Context, _ types.Querier, loadID string, counts []types.RowCount,
) error {
	if err := h.update(loadID, func(rec *types.LoadHistory) {
		rec.Status = types.StatusSuccess
		rec.FinishedAt = time.Now()
	}); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.counts[loadID] = append([]types.RowCount(nil), counts...)
	return nil
}

// LoadFailed moves loadID to FAILED with a reason.
func (h *History) LoadFailed(_ context.Context, loadID, reason string) error {
	return h.update(loadID, func(rec *types.LoadHistory) {
		rec.Status = types.StatusFailed
		rec.FinishedAt = time.Now()
		rec.ErrorMessage = reason
	})
}

func (h *History) update(loadID string, fn func(*types.LoadHistory)) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.records {
		if h.records[i].LoadID == loadID {
			fn(&h.records[i])
			return nil
		}
	}
	return errors.Errorf("unknown load_id %s", loadID)
}
