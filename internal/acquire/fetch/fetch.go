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

// Package fetch downloads FAERS release archives with a retrying HTTP
// session, treating a partially-written file as absent on restart.
package fetch

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Policy configures the retrying HTTP session used to fetch archives.
type Policy struct {
	// Retries bounds the number of attempts beyond the first.
	Retries int
	// BackoffFactor scales the exponential wait between attempts; the
	// retryablehttp client multiplies RetryWaitMin by 2^attempt, so a
	// factor below 1 is approximated by scaling RetryWaitMin down.
	BackoffFactor float64
}

// DefaultPolicy matches the minimums named for the acquisition stage:
// backoff factor >= 0.3, retry on connect/read errors and 5xx statuses.
var DefaultPolicy = Policy{Retries: 5, BackoffFactor: 0.3}

// NewClient builds a *retryablehttp.Client configured per p. Retries are
// attempted only for connection/read errors and the status codes named
// for the acquisition stage: 500, 502, 503, 504.
func NewClient(p Policy) *retryablehttp.Client {
	if p.Retries <= 0 {
		p = DefaultPolicy
	}
	client := retryablehttp.NewClient()
	client.RetryMax = p.Retries
	client.RetryWaitMin = time.Duration(p.BackoffFactor*1000) * time.Millisecond
	client.RetryWaitMax = 30 * time.Second
	client.Logger = nil
	client.CheckRetry = checkRetry
	return client
}

func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		// Connection and read errors: retry.
		return true, nil
	}
	switch resp.StatusCode {
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true, nil
	}
	return false, nil
}

// Fetch downloads srcURL into destPath using client. The archive is
// written to a temporary sibling file and atomically renamed into place
// on success, so a process that dies mid-download leaves no partial
// file at destPath; a caller restarting a failed fetch can treat the
// absence of destPath as "not yet fetched" without any range-resumption
// logic.
func Fetch(ctx context.Context, client *retryablehttp.Client, srcURL, destPath string) error {
	if _, err := os.Stat(destPath); err == nil {
		log.WithField("path", destPath).Debug("archive already present, skipping fetch")
		return nil
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return errors.Wrap(err, "could not build fetch request")
	}

	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "could not fetch %s", srcURL)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("fetch of %s returned status %d", srcURL, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return errors.Wrap(err, "could not create download directory")
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".fetch-*.tmp")
	if err != nil {
		return errors.Wrap(err, "could not create temp download file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	written, err := io.Copy(tmp, resp.Body)
	if err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "could not write %s", destPath)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "could not sync downloaded archive")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "could not close downloaded archive")
	}
	if err := os.Rename(tmpName, destPath); err != nil {
		return errors.Wrap(err, "could not publish downloaded archive")
	}

	log.WithFields(log.Fields{"url": srcURL, "path": destPath, "bytes": written}).Info("fetched archive")
	return nil
}
