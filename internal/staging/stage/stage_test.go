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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/faers-sink/faers-sink/internal/types"
	"github.com/faers-sink/faers-sink/internal/util/quarterid"
)

func TestStoreSelectRetire(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, quarterid.MustParse("2023Q1"), 1)

	require.NoError(t, s.Store(types.Row{Table: types.TableDemo, CaseID: "1", PrimaryID: "10", FdaDt: "20230101"}))
	require.NoError(t, s.Store(types.Row{Table: types.TableDemo, CaseID: "2", PrimaryID: "20", FdaDt: "20230102"}))
	require.NoError(t, s.Flush(types.TableDemo))

	var seen []string
	require.NoError(t, s.Select(types.TableDemo, func(r types.Row) error {
		seen = append(seen, r.CaseID)
		return nil
	}))
	require.ElementsMatch(t, []string{"1", "2"}, seen)

	require.NoError(t, s.Retire(types.TableDemo))

	var afterRetire []string
	require.NoError(t, s.Select(types.TableDemo, func(r types.Row) error {
		afterRetire = append(afterRetire, r.CaseID)
		return nil
	}))
	require.Empty(t, afterRetire)
}

func TestFlushNoBufferedRowsIsNoOp(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, quarterid.MustParse("2023Q2"), 10)
	require.NoError(t, s.Flush(types.TableDrug))
}
