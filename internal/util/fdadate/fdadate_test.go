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

package fdadate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFormats(t *testing.T) {
	full := Parse("20220315")
	require.True(t, full.Valid)
	require.Equal(t, "2022-03-15", full.Pad())

	month := Parse("202203")
	require.True(t, month.Valid)
	require.Equal(t, "2022-03-01", month.Pad())

	year := Parse("2022")
	require.True(t, year.Valid)
	require.Equal(t, "2022-01-01", year.Pad())

	missing := Parse("")
	require.False(t, missing.Valid)

	garbage := Parse("not-a-date")
	require.False(t, garbage.Valid)
}

func TestCompareMissingSortsLow(t *testing.T) {
	missing := Parse("")
	partial := Parse("2022")
	full := Parse("20220315")

	require.Equal(t, -1, Compare(missing, partial))
	require.Equal(t, 1, Compare(partial, missing))
	require.Equal(t, 0, Compare(missing, Parse("")))
	require.Equal(t, -1, Compare(partial, full))
}

func TestFullDateBeatsYearPartial(t *testing.T) {
	// "2022" loses to "20220315" for the same CASEID.
	older := Parse("2022")
	newer := Parse("20220315")
	require.True(t, Compare(newer, older) > 0, "full date must win over year-partial")
}
