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

// Package stdpool creates standardized database connection pools for
// the target and metadata stores.
package stdpool

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/faers-sink/faers-sink/internal/types"
)

// Option configures a pool constructed by this package.
type Option interface {
	apply(*options)
}

type options struct {
	maxConnLifetime time.Duration
	maxConns        int32
	waitForStartup  bool
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) { f(o) }

// WithConnectionLifetime bounds how long a pooled connection may be
// reused before it's recycled, which keeps long-running orchestrator
// processes from holding connections across a target database's own
// restarts or failovers.
func WithConnectionLifetime(d time.Duration) Option {
	return optionFunc(func(o *options) { o.maxConnLifetime = d })
}

// WithPoolSize bounds the maximum number of connections a pool may
// open.
func WithPoolSize(n int32) Option {
	return optionFunc(func(o *options) { o.maxConns = n })
}

// WithWaitForStartup retries the initial ping for up to a minute
// instead of failing immediately, for use against a database that may
// still be starting up (e.g. in a docker-compose-driven integration
// test).
func WithWaitForStartup() Option {
	return optionFunc(func(o *options) { o.waitForStartup = true })
}

func resolve(opts []Option) options {
	o := options{maxConnLifetime: time.Hour, maxConns: 16}
	for _, opt := range opts {
		opt.apply(&o)
	}
	return o
}

// OpenPgxAsTarget opens connectString as a TargetPool. product
// distinguishes PostgreSQL from a Redshift or CockroachDB endpoint
// reached via the same wire protocol, which Backend implementations use
// to select dialect-specific SQL.
func OpenPgxAsTarget(
	ctx context.Context, connectString string, product types.Product, opts ...Option,
) (*types.TargetPool, error) {
	pool, info, err := openPgx(ctx, connectString, product, opts)
	if err != nil {
		return nil, err
	}
	return &types.TargetPool{Pool: pool, PoolInfo: *info}, nil
}

func openPgx(
	ctx context.Context, connectString string, product types.Product, opts []Option,
) (*pgxpool.Pool, *types.PoolInfo, error) {
	o := resolve(opts)

	cfg, err := pgxpool.ParseConfig(connectString)
	if err != nil {
		return nil, nil, errors.Wrap(err, "could not parse connection string")
	}
	cfg.MaxConns = o.maxConns
	cfg.MaxConnLifetime = o.maxConnLifetime

	var pool *pgxpool.Pool
	deadline := time.Now().Add(time.Minute)
	for {
		pool, err = pgxpool.NewWithConfig(ctx, cfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				break
			}
			pool.Close()
		}
		if !o.waitForStartup || time.Now().After(deadline) {
			return nil, nil, errors.Wrap(err, "could not connect to database")
		}
		log.WithError(err).Info("waiting for database to become ready")
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}

	var version string
	if err := pool.QueryRow(ctx, "SHOW server_version").Scan(&version); err != nil {
		// Not every pgx-wire-compatible product supports this pragma;
		// the version string is diagnostic only, so don't fail startup.
		log.WithError(err).Debug("could not query server_version")
	}

	info := &types.PoolInfo{ConnectionString: connectString, Product: product, Version: version}
	log.WithFields(log.Fields{"product": product, "version": version}).Info("connected to database")
	return pool, info, nil
}
