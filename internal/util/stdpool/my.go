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

package stdpool

import (
	"context"
	"database/sql"
	sqldriver "database/sql/driver"
	"fmt"
	"net/url"
	"time"

	_ "github.com/go-sql-driver/mysql" // register driver
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/faers-sink/faers-sink/internal/types"
)

// OpenMySQLAsMetadata opens a MySQL-hosted control-plane database,
// returning it as a MetadataPool. This lets an operator host load_history
// and row_counts bookkeeping separately from the target store, e.g. when
// the target is a data warehouse without the transactional guarantees
// the metadata tables want.
func OpenMySQLAsMetadata(
	ctx context.Context, connectString string, u *url.URL, opts ...Option,
) (*types.MetadataPool, error) {
	path := "/"
	if u.Path != "" {
		path = u.Path
	}
	// Setting sql_mode so we can use quotes (") for Ident.
	mySQLString := fmt.Sprintf("%s@tcp(%s)%s?%s", u.User.String(), u.Host,
		path, "sql_mode=ansi")
	o := resolve(opts)

	log.Info(connectString)

	connector, err := sql.Open("mysql", mySQLString)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	ret := &types.MetadataPool{
		DB: connector,
		PoolInfo: types.PoolInfo{
			ConnectionString: connectString,
			Product:          types.ProductMySQL,
		},
	}

	deadline := time.Now().Add(time.Minute)
ping:
	if err := ret.Ping(); err != nil {
		if o.waitForStartup && isMySQLStartupError(err) && time.Now().Before(deadline) {
			log.WithError(err).Info("waiting for database to become ready")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(2 * time.Second):
				goto ping
			}
		}
		return nil, errors.Wrap(err, "could not ping the database")
	}

	if err := ret.QueryRow("SELECT VERSION();").Scan(&ret.Version); err != nil {
		return nil, errors.Wrap(err, "could not query version")
	}
	var mode string
	if err := ret.QueryRow("SELECT @@sql_mode").Scan(&mode); err != nil {
		return nil, errors.Wrap(err, "could not query sql mode")
	}
	log.Infof("Version %s. Mode %s", ret.Version, mode)

	ret.DB.SetConnMaxLifetime(o.maxConnLifetime)
	ret.DB.SetMaxOpenConns(int(o.maxConns))

	return ret, nil
}

// TODO (silvano): verify error codes
func isMySQLStartupError(err error) bool {
	switch err {
	case sqldriver.ErrBadConn:
		return true
	default:
		return false
	}
}
