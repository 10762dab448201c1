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

package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFetchWritesFileAtomically(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("zip-bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "2023Q1.zip")

	client := NewClient(DefaultPolicy)
	require.NoError(t, Fetch(context.Background(), client, srv.URL, dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, "zip-bytes", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no leftover temp files")
}

func TestFetchSkipsExistingFile(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "2023Q1.zip")
	require.NoError(t, os.WriteFile(dest, []byte("already here"), 0o644))

	client := NewClient(DefaultPolicy)
	require.NoError(t, Fetch(context.Background(), client, "http://unused.invalid", dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, "already here", string(data))
}

func TestFetchNonOKStatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "missing.zip")

	client := NewClient(Policy{Retries: 1, BackoffFactor: 0.1})
	err := Fetch(context.Background(), client, srv.URL, dest)
	require.Error(t, err)

	_, statErr := os.Stat(dest)
	require.True(t, os.IsNotExist(statErr))
}
