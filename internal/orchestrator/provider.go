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
	"fmt"
	"net/url"

	"github.com/google/wire"
	"github.com/pkg/errors"

	"github.com/faers-sink/faers-sink/internal/metadata"
	"github.com/faers-sink/faers-sink/internal/target"
	"github.com/faers-sink/faers-sink/internal/types"
	"github.com/faers-sink/faers-sink/internal/util/stdpool"
)

// Set is the wire provider set for a production orchestrator.
var Set = wire.NewSet(
	ProvideBackend,
	ProvideHistory,
	ProvideOrchestrator,
)

// ProvideBackend opens the configured backend via the registry.
func ProvideBackend(ctx context.Context, cfg *Config) (target.Backend, func(), error) {
	backend, err := target.Open(ctx, cfg.TargetName, &cfg.Target)
	if err != nil {
		return nil, nil, err
	}
	return backend, func() { _ = backend.Close() }, nil
}

// ProvideHistory opens the configured metadata profile. The default
// colocates the metadata tables with the target over a pg-wire pool,
// which lets the SUCCESS row ride the data transaction; the mysql
// profile hosts them on a separate control-plane database whose writes
// commit on their own connection.
func ProvideHistory(ctx context.Context, cfg *Config) (History, func(), error) {
	switch cfg.MetadataBackend {
	case MetadataMySQL:
		u, err := url.Parse(cfg.MetadataDSN)
		if err != nil {
			return nil, nil, errors.Wrap(err, "could not parse metadataDSN")
		}
		pool, err := stdpool.OpenMySQLAsMetadata(ctx, cfg.MetadataDSN, u)
		if err != nil {
			return nil, nil, err
		}
		if err := metadata.EnsureMySQLSchema(ctx, pool); err != nil {
			_ = pool.Close()
			return nil, nil, err
		}
		return NewMySQLHistory(metadata.NewMyStore(), pool), func() { _ = pool.Close() }, nil

	default:
		conn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
			cfg.Target.User, cfg.Target.Password, cfg.Target.Host, cfg.Target.Port, cfg.Target.Database)
		pool, err := stdpool.OpenPgxAsTarget(ctx, conn, productFor(cfg.TargetName))
		if err != nil {
			return nil, nil, err
		}
		return NewHistory(metadata.New(cfg.Target.Schema), pool), func() { pool.Pool.Close() }, nil
	}
}

// ProvideOrchestrator assembles the orchestrator itself.
func ProvideOrchestrator(cfg *Config, backend target.Backend, history History) (*Orchestrator, error) {
	return New(cfg, backend, history)
}

func productFor(name string) types.Product {
	switch name {
	case "postgresql":
		return types.ProductPostgreSQL
	case "cockroachdb":
		return types.ProductCockroachDB
	case "redshift":
		return types.ProductRedshift
	default:
		return types.ProductUnknown
	}
}
