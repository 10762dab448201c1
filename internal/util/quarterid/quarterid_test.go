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

package quarterid

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCanonicalizesCase(t *testing.T) {
	id, err := Parse("2023q1")
	require.NoError(t, err)
	require.Equal(t, ID{Year: 2023, Quarter: 1}, id)
	require.Equal(t, "2023Q1", id.String())
}

func TestParseRejectsBadInput(t *testing.T) {
	for _, bad := range []string{"", "2023", "2023Q5", "Q12023", "20231", "abcdQ1"} {
		_, err := Parse(bad)
		require.Error(t, err, bad)
	}
}

func TestCompareAndSort(t *testing.T) {
	a := MustParse("2022Q4")
	b := MustParse("2023Q1")
	c := MustParse("2023Q2")

	require.True(t, Before(a, b))
	require.True(t, Before(b, c))
	require.Equal(t, 0, Compare(a, a))

	ids := []ID{c, a, b}
	Sort(ids)
	require.Equal(t, []ID{a, b, c}, ids)
}
