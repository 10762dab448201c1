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
	"math/rand"

	"github.com/pkg/errors"

	"github.com/faers-sink/faers-sink/internal/target"
	"github.com/faers-sink/faers-sink/internal/types"
)

// ErrChaos is the error that will be injected by the WithChaos wrapper.
var ErrChaos = errors.New("chaos")

// WithChaos returns a wrapper around a Backend that injects errors at
// various points throughout a load, to exercise the rollback and
// FAILED-status paths. The backend is returned unwrapped if prob is
// less than or equal to zero.
func WithChaos(delegate target.Backend, prob float32) target.Backend {
	if prob <= 0 {
		return delegate
	}
	return &chaosBackend{delegate: delegate, prob: prob}
}

// This could include a *rand.Rand, but as soon as we start calling
// methods from multiple goroutines, there's no hope of repeatable
// behavior.
type chaosBackend struct {
	delegate target.Backend
	prob     float32
}

var _ target.Backend = (*chaosBackend)(nil)

func (b *chaosBackend) PrepareSchema(ctx context.Context) error {
	if rand.Float32() < b.prob {
		return doChaos("PrepareSchema")
	}
	return b.delegate.PrepareSchema(ctx)
}

func (b *chaosBackend) BeginTxn(ctx context.Context) (target.Txn, error) {
	if rand.Float32() < b.prob {
		return nil, doChaos("BeginTxn")
	}
	delegate, err := b.delegate.BeginTxn(ctx)
	if err != nil {
		return nil, err
	}
	return &chaosTxn{delegate: delegate, prob: b.prob}, nil
}

func (b *chaosBackend) Close() error {
	return b.delegate.Close()
}

type chaosTxn struct {
	// Don't embed, we want the compile to break on new methods.
	delegate target.Txn
	prob     float32
}

var (
	_ target.Txn            = (*chaosTxn)(nil)
	_ target.MetadataWriter = (*chaosTxn)(nil)
)

// MetadataQuerier passes through the delegate's transaction-coupled
// metadata path when it offers one; a nil return tells the caller to
// write metadata outside the data transaction.
func (t *chaosTxn) MetadataQuerier() types.Querier {
	if mw, ok := t.delegate.(target.MetadataWriter); ok {
		return mw.MetadataQuerier()
	}
	return nil
}

func (t *chaosTxn) BulkLoad(ctx context.Context, table types.Table, chunk string) (int64, error) {
	if rand.Float32() < t.prob {
		return 0, doChaos("BulkLoad")
	}
	return t.delegate.BulkLoad(ctx, table, chunk)
}

func (t *chaosTxn) DeleteCases(ctx context.Context, caseIDs []string) (int64, error) {
	if rand.Float32() < t.prob {
		return 0, doChaos("DeleteCases")
	}
	return t.delegate.DeleteCases(ctx, caseIDs)
}

func (t *chaosTxn) DeltaMerge(
	ctx context.Context, caseIDs []string, loads []target.TableLoad,
) (types.MergeResult, error) {
	if rand.Float32() < t.prob {
		return types.MergeResult{}, doChaos("DeltaMerge")
	}
	return t.delegate.DeltaMerge(ctx, caseIDs, loads)
}

func (t *chaosTxn) ExecDqChecks(
	ctx context.Context, expected []types.RowCount,
) (types.DqReport, error) {
	if rand.Float32() < t.prob {
		return types.DqReport{}, doChaos("ExecDqChecks")
	}
	return t.delegate.ExecDqChecks(ctx, expected)
}

func (t *chaosTxn) Commit(ctx context.Context) error {
	if rand.Float32() < t.prob {
		return doChaos("Commit")
	}
	return t.delegate.Commit(ctx)
}

func (t *chaosTxn) Rollback(ctx context.Context) error {
	// Rollback is never chaos-injected: the wrapper exists to prove
	// that failures roll back cleanly, which requires Rollback itself
	// to work.
	return t.delegate.Rollback(ctx)
}

// doChaos is a convenient place to set a breakpoint.
func doChaos(msg string) error {
	return errors.WithMessage(ErrChaos, msg)
}
