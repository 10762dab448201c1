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

package orchestrator

import (
	"context"

	"github.com/faers-sink/faers-sink/internal/metadata"
	"github.com/faers-sink/faers-sink/internal/types"
	"github.com/faers-sink/faers-sink/internal/util/quarterid"
)

// History is the orchestrator's view of the load-history store. The
// production implementation writes to the metadata tables colocated
// with the target; tests substitute an in-memory one.
type History interface {
	// LatestSuccess returns the greatest quarter ever loaded with
	// SUCCESS, or ok=false for an empty target.
	LatestSuccess(ctx context.Context) (quarterid.ID, bool, error)

	// LoadStarted appends the STARTED row for a new load_id.
	LoadStarted(ctx context.Context, rec types.LoadHistory) error

	// LoadChecksum records the archive checksum once computed.
	LoadChecksum(ctx context.Context, loadID, checksum string) error

	// LoadSucceeded moves loadID to SUCCESS with its row counts. When q
	// is non-nil it is the data transaction's querier, coupling the
	// metadata write to the data commit.
	LoadSucceeded(ctx context.Context, q types.Querier, loadID string, counts []types.RowCount) error

	// LoadFailed moves loadID to FAILED with a reason.
	LoadFailed(ctx context.Context, loadID, reason string) error
}

// txnCoupled marks a History whose LoadSucceeded can ride the data
// transaction's querier. The orchestrator only hands a transaction
// querier to implementations carrying this marker; anything else gets
// its SUCCESS write after the data commit.
type txnCoupled interface {
	coupledToTargetTxn()
}

// pgHistory adapts metadata.Store + a pool into History. The STARTED
// and FAILED writes commit on the pool immediately (they must be
// visible regardless of the data transaction's fate); the SUCCESS write
// joins the data transaction when the backend offers one.
type pgHistory struct {
	store *metadata.Store
	pool  *types.TargetPool
}

var (
	_ History    = (*pgHistory)(nil)
	_ txnCoupled = (*pgHistory)(nil)
)

func (h *pgHistory) coupledToTargetTxn() {}

// NewHistory wraps the metadata store for the orchestrator.
func NewHistory(store *metadata.Store, pool *types.TargetPool) History {
	return &pgHistory{store: store, pool: pool}
}

func (h *pgHistory) LatestSuccess(ctx context.Context) (quarterid.ID, bool, error) {
	return h.store.LatestSuccessQuarter(ctx, h.pool)
}

func (h *pgHistory) LoadStarted(ctx context.Context, rec types.LoadHistory) error {
	return h.store.RecordStarted(ctx, h.pool, rec)
}

func (h *pgHistory) LoadChecksum(ctx context.Context, loadID, checksum string) error {
	return h.store.RecordChecksum(ctx, h.pool, loadID, checksum)
}

func (h *pgHistory) LoadSucceeded(
	ctx context.Context, q types.Querier, loadID string, counts []types.RowCount,
) error {
	if q == nil {
		q = h.pool
	}
	if err := h.store.RecordCounts(ctx, q, loadID, counts); err != nil {
		return err
	}
	return h.store.RecordResult(ctx, q, loadID, types.StatusSuccess, "")
}

func (h *pgHistory) LoadFailed(ctx context.Context, loadID, reason string) error {
	return h.store.RecordResult(ctx, h.pool, loadID, types.StatusFailed, reason)
}

// myHistory adapts a MySQL-hosted control plane into History. MySQL
// never shares a physical transaction with the pg-wire data load, so
// LoadSucceeded ignores the offered querier and commits on its own
// connection immediately after the data commit; the SUCCESS row lags
// the data by that narrow window.
type myHistory struct {
	store *metadata.MyStore
	pool  *types.MetadataPool
}

var _ History = (*myHistory)(nil)

// NewMySQLHistory wraps a MySQL metadata store for the orchestrator.
func NewMySQLHistory(store *metadata.MyStore, pool *types.MetadataPool) History {
	return &myHistory{store: store, pool: pool}
}

func (h *myHistory) LatestSuccess(ctx context.Context) (quarterid.ID, bool, error) {
	return h.store.LatestSuccessQuarter(ctx, h.pool)
}

func (h *myHistory) LoadStarted(ctx context.Context, rec types.LoadHistory) error {
	return h.store.RecordStarted(ctx, h.pool, rec)
}

func (h *myHistory) LoadChecksum(ctx context.Context, loadID, checksum string) error {
	return h.store.RecordChecksum(ctx, h.pool, loadID, checksum)
}

func (h *myHistory) LoadSucceeded(
	ctx context.Context, _ types.Querier, loadID string, counts []types.RowCount,
) error {
	if err := h.store.RecordCounts(ctx, h.pool, loadID, counts); err != nil {
		return err
	}
	return h.store.RecordResult(ctx, h.pool, loadID, types.StatusSuccess, "")
}

func (h *myHistory) LoadFailed(ctx context.Context, loadID, reason string) error {
	return h.store.RecordResult(ctx, h.pool, loadID, types.StatusFailed, reason)
}
