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

package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQualify(t *testing.T) {
	a := assert.New(t)
	a.Equal("public._faers_load_history", qualify("", historyTable))
	a.Equal("faers._faers_row_counts", qualify("faers", countsTable))
}

func TestNewUsesReservedPrefix(t *testing.T) {
	a := assert.New(t)
	s := New("analytics")
	a.Equal("analytics._faers_load_history", s.history)
	a.Equal("analytics._faers_row_counts", s.counts)
}
