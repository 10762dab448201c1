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

package discover

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/faers-sink/faers-sink/internal/util/quarterid"
)

const sampleIndex = `
<html><body>
<a href="/data/faers_ascii_2023Q1.zip">2023 Quarter 1</a>
<a href="/data/faers_ascii_2023q2.zip">2023 Quarter 2</a>
<a href="/data/faers_xml_2023Q1.zip">2023 Quarter 1 (XML, longer token 2023Q1x)</a>
<a href="/other/page.html">not a release</a>
</body></html>
`

func TestParseIndexSortsAndDedupes(t *testing.T) {
	entries, err := parseIndex(sampleIndex, "https://example.test/index.html")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, quarterid.MustParse("2023Q1"), entries[0].Quarter)
	require.Equal(t, quarterid.MustParse("2023Q2"), entries[1].Quarter)
	require.Contains(t, entries[0].URL, "https://example.test/")
}

func TestParseIndexIgnoresNonQuarterLinks(t *testing.T) {
	entries, err := parseIndex(`<a href="/robots.txt">x</a>`, "https://example.test/")
	require.NoError(t, err)
	require.Empty(t, entries)
}
