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

package xml

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/faers-sink/faers-sink/internal/types"
)

const sampleRelease = `<?xml version="1.0"?>
<ichicsr>
  <safetyreport>
    <safetyreportid>100</safetyreportid>
    <safetyreportversion>01</safetyreportversion>
    <receiptdate>20230115</receiptdate>
    <safetyreportnullification>false</safetyreportnullification>
    <patient>
      <patientonsetage>45</patientonsetage>
      <patientsex>1</patientsex>
      <drug>
        <medicinalproduct>ASPIRIN</medicinalproduct>
        <actiondrug>4</actiondrug>
        <drugindication>HEADACHE</drugindication>
      </drug>
      <reaction>
        <reactionmeddrapt>NAUSEA</reactionmeddrapt>
      </reaction>
    </patient>
  </safetyreport>
  <safetyreport>
    <safetyreportid>200</safetyreportid>
    <safetyreportversion>01</safetyreportversion>
    <safetyreportnullification>true</safetyreportnullification>
    <patient></patient>
  </safetyreport>
</ichicsr>
`

func TestParseReleaseXMLEmitsRowsAndNullifications(t *testing.T) {
	var rows []types.Row
	nulls := make(types.Nullifications)

	err := ParseReleaseXML("FAERS23Q1.xml", strings.NewReader(sampleRelease), func(r types.Row) error {
		rows = append(rows, r)
		return nil
	}, nulls)
	require.NoError(t, err)

	require.True(t, nulls.Has("200"))
	require.False(t, nulls.Has("100"))

	var demoCount, drugCount, reacCount, indiCount int
	for _, r := range rows {
		require.Equal(t, "100", r.CaseID)
		switch r.Table {
		case types.TableDemo:
			demoCount++
			require.Equal(t, "20230115", r.FdaDt)
		case types.TableDrug:
			drugCount++
		case types.TableReac:
			reacCount++
		case types.TableIndi:
			indiCount++
		}
	}
	require.Equal(t, 1, demoCount)
	require.Equal(t, 1, drugCount)
	require.Equal(t, 1, reacCount)
	require.Equal(t, 1, indiCount)
}

func TestParseReleaseXMLSkipsReportWithoutID(t *testing.T) {
	const release = `<?xml version="1.0"?>
<ichicsr>
  <safetyreport>
    <receiptdate>20230115</receiptdate>
    <patient>
      <reaction><reactionmeddrapt>NAUSEA</reactionmeddrapt></reaction>
    </patient>
  </safetyreport>
</ichicsr>
`
	var rows []types.Row
	nulls := make(types.Nullifications)
	err := ParseReleaseXML("FAERS23Q1.xml", strings.NewReader(release), func(r types.Row) error {
		rows = append(rows, r)
		return nil
	}, nulls)
	require.NoError(t, err)
	require.Empty(t, rows)
	require.Empty(t, nulls)
}

func TestParseReleaseXMLOutcomeColumn(t *testing.T) {
	const release = `<?xml version="1.0"?>
<ichicsr>
  <safetyreport>
    <safetyreportid>700</safetyreportid>
    <patient>
      <reaction>
        <reactionmeddrapt>RASH</reactionmeddrapt>
        <reactionoutcome>2</reactionoutcome>
      </reaction>
    </patient>
  </safetyreport>
</ichicsr>
`
	var outc []types.Row
	err := ParseReleaseXML("FAERS23Q1.xml", strings.NewReader(release), func(r types.Row) error {
		if r.Table == types.TableOutc {
			outc = append(outc, r)
		}
		return nil
	}, nil)
	require.NoError(t, err)
	require.Len(t, outc, 1)
	require.Equal(t, "2", outc[0].Fields["outc_cod"])
}

func TestSplitReportID(t *testing.T) {
	caseID, primaryID := splitReportID("555", "02")
	require.Equal(t, "555", caseID)
	require.Equal(t, "55502", primaryID)

	caseID, primaryID = splitReportID("555", "")
	require.Equal(t, "555", caseID)
	require.Equal(t, "55501", primaryID)
}
