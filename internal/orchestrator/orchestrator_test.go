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

package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faers-sink/faers-sink/internal/fixture"
	"github.com/faers-sink/faers-sink/internal/target"
	"github.com/faers-sink/faers-sink/internal/types"
)

func testConfig(t *testing.T, indexURL string) *Config {
	t.Helper()
	cfg := &Config{
		TargetName:        "fixture",
		IndexURL:          indexURL,
		DownloadDir:       t.TempDir(),
		StagingDir:        t.TempDir(),
		StagingFormat:     StagingCSV,
		ChunkRows:         16,
		PartialDatePolicy: DatePolicyRaw,
	}
	require.NoError(t, cfg.Preflight())
	return cfg
}

func newUnderTest(
	t *testing.T, cfg *Config, backend *fixture.Backend, history *fixture.History,
) *Orchestrator {
	t.Helper()
	o, err := New(cfg, backend, history)
	require.NoError(t, err)
	return o
}

func successQuarters(h *fixture.History) []string {
	var out []string
	for _, rec := range h.Records() {
		if rec.Status == types.StatusSuccess {
			out = append(out, rec.Quarter)
		}
	}
	return out
}

func TestSingleDeltaQuarter(t *testing.T) {
	r := require.New(t)
	a := assert.New(t)

	archive, err := (&fixture.ASCIIArchive{
		Quarter: "23Q1",
		Demo: []fixture.DemoRow{
			{CaseID: "100", PrimaryID: "1001", FdaDt: "20230115"},
			{CaseID: "100", PrimaryID: "1002", FdaDt: "20230220"},
			{CaseID: "101", PrimaryID: "1010", FdaDt: "20230101"},
		},
		Reac: map[string][]string{
			"1001": {"Nausea"},
			"1002": {"Headache"},
			"1010": {"Dizziness"},
		},
	}).Build()
	r.NoError(err)

	upstream := fixture.NewUpstream(map[string][]byte{"2023Q1": archive})
	defer upstream.Close()

	backend := fixture.NewBackend()
	history := fixture.NewHistory()
	o := newUnderTest(t, testConfig(t, upstream.IndexURL()), backend, history)

	r.NoError(o.RunDelta(context.Background()))

	a.Equal(map[string]struct{}{"1002": {}, "1010": {}}, backend.PrimaryIDs(types.TableDemo))
	// The superseded version's children went with it.
	a.Equal(map[string]struct{}{"1002": {}, "1010": {}}, backend.PrimaryIDs(types.TableReac))
	a.Equal([]string{"2023Q1"}, successQuarters(history))

	recs := history.Records()
	r.Len(recs, 1)
	a.NotEmpty(recs[0].SourceChecksum)
	counts := history.Counts(recs[0].LoadID)
	a.Contains(counts, types.RowCount{Table: types.TableDemo, RowsIn: 3, RowsAfterDedup: 2})
}

func TestTieBreakByPrimaryID(t *testing.T) {
	r := require.New(t)

	archive, err := (&fixture.ASCIIArchive{
		Quarter: "23Q1",
		Demo: []fixture.DemoRow{
			{CaseID: "200", PrimaryID: "500", FdaDt: "20230301"},
			{CaseID: "200", PrimaryID: "501", FdaDt: "20230301"},
		},
	}).Build()
	r.NoError(err)

	upstream := fixture.NewUpstream(map[string][]byte{"2023Q1": archive})
	defer upstream.Close()

	backend := fixture.NewBackend()
	o := newUnderTest(t, testConfig(t, upstream.IndexURL()), backend, fixture.NewHistory())

	r.NoError(o.RunDelta(context.Background()))
	assert.Equal(t, map[string]struct{}{"501": {}}, backend.PrimaryIDs(types.TableDemo))
}

func TestNullificationHonored(t *testing.T) {
	r := require.New(t)
	a := assert.New(t)

	q1, err := (&fixture.ASCIIArchive{
		Quarter: "23Q1",
		Demo: []fixture.DemoRow{
			{CaseID: "100", PrimaryID: "1002", FdaDt: "20230220"},
			{CaseID: "101", PrimaryID: "1010", FdaDt: "20230101"},
		},
		Reac: map[string][]string{"1002": {"Headache"}},
	}).Build()
	r.NoError(err)

	q2, err := (&fixture.XMLArchive{
		Quarter: "23Q2",
		Reports: []fixture.XMLReport{
			{CaseID: "100", Version: "03", Nullification: true},
			{CaseID: "300", Version: "01", ReceiptDate: "20230501", Reactions: []string{"Rash"}},
		},
	}).Build()
	r.NoError(err)

	upstream := fixture.NewUpstream(map[string][]byte{"2023Q1": q1, "2023Q2": q2})
	defer upstream.Close()

	backend := fixture.NewBackend()
	history := fixture.NewHistory()
	o := newUnderTest(t, testConfig(t, upstream.IndexURL()), backend, history)

	r.NoError(o.RunDelta(context.Background()))

	_, nullified := backend.CaseIDs()["100"]
	a.False(nullified, "nullified case must not exist in any table")
	a.Contains(backend.CaseIDs(), "101")
	a.Contains(backend.CaseIDs(), "300")
	a.Equal([]string{"2023Q1", "2023Q2"}, successQuarters(history))
}

func TestPartialDateSortsLowest(t *testing.T) {
	r := require.New(t)

	archive, err := (&fixture.ASCIIArchive{
		Quarter: "22Q1",
		Demo: []fixture.DemoRow{
			{CaseID: "400", PrimaryID: "4001", FdaDt: "2022"},
			{CaseID: "400", PrimaryID: "4000", FdaDt: "20220315"},
		},
	}).Build()
	r.NoError(err)

	upstream := fixture.NewUpstream(map[string][]byte{"2022Q1": archive})
	defer upstream.Close()

	backend := fixture.NewBackend()
	o := newUnderTest(t, testConfig(t, upstream.IndexURL()), backend, fixture.NewHistory())

	r.NoError(o.RunDelta(context.Background()))
	// The fully-specified date wins even against a higher PRIMARYID
	// carrying only a year.
	assert.Equal(t, map[string]struct{}{"4000": {}}, backend.PrimaryIDs(types.TableDemo))
}

func TestLoadFailureAtomicity(t *testing.T) {
	r := require.New(t)
	a := assert.New(t)

	archive, err := (&fixture.ASCIIArchive{
		Quarter: "23Q1",
		Demo:    []fixture.DemoRow{{CaseID: "100", PrimaryID: "1001", FdaDt: "20230115"}},
	}).Build()
	r.NoError(err)

	upstream := fixture.NewUpstream(map[string][]byte{"2023Q1": archive})
	defer upstream.Close()

	backend := fixture.NewBackend()
	backend.FailOn = func(op string) error {
		if op == "DeltaMerge" {
			return errors.Wrap(target.ErrConstraint, "injected")
		}
		return nil
	}
	history := fixture.NewHistory()
	cfg := testConfig(t, upstream.IndexURL())
	o := newUnderTest(t, cfg, backend, history)

	err = o.RunDelta(context.Background())
	r.Error(err)
	a.True(errors.Is(err, target.ErrConstraint))

	// Nothing committed; terminal FAILED row only.
	for _, table := range types.AllTables {
		a.Empty(backend.Rows(table))
	}
	recs := history.Records()
	r.Len(recs, 1)
	a.Equal(types.StatusFailed, recs[0].Status)
	a.Empty(successQuarters(history))

	// The next delta run selects the same quarter and succeeds.
	backend.FailOn = nil
	o2 := newUnderTest(t, cfg, backend, history)
	r.NoError(o2.RunDelta(context.Background()))
	a.Equal([]string{"2023Q1"}, successQuarters(history))
	a.Contains(backend.PrimaryIDs(types.TableDemo), "1001")
}

func TestDeltaResumption(t *testing.T) {
	r := require.New(t)
	a := assert.New(t)

	build := func(q string, caseID, primaryID string) []byte {
		b, err := (&fixture.ASCIIArchive{
			Quarter: q,
			Demo:    []fixture.DemoRow{{CaseID: caseID, PrimaryID: primaryID, FdaDt: "20230601"}},
		}).Build()
		r.NoError(err)
		return b
	}

	upstream := fixture.NewUpstream(map[string][]byte{
		"2023Q2": build("23Q2", "1", "10"),
		"2023Q3": build("23Q3", "2", "20"),
		"2023Q4": build("23Q4", "3", "30"),
	})
	defer upstream.Close()

	backend := fixture.NewBackend()
	history := fixture.NewHistory()
	// 2023Q2 is already loaded.
	r.NoError(history.LoadStarted(context.Background(), types.LoadHistory{
		LoadID: "pre-existing", Quarter: "2023Q2", Mode: types.ModeDelta, StartedAt: time.Now(),
	}))
	r.NoError(history.LoadSucceeded(context.Background(), nil, "pre-existing", nil))

	o := newUnderTest(t, testConfig(t, upstream.IndexURL()), backend, history)
	r.NoError(o.RunDelta(context.Background()))

	a.Equal([]string{"2023Q2", "2023Q3", "2023Q4"}, successQuarters(history))
	// Only Q3 and Q4 actually loaded in this run.
	a.NotContains(backend.CaseIDs(), "1")
	a.Contains(backend.CaseIDs(), "2")
	a.Contains(backend.CaseIDs(), "3")
}

func TestPartialIdempotence(t *testing.T) {
	r := require.New(t)
	a := assert.New(t)

	archive, err := (&fixture.ASCIIArchive{
		Quarter: "23Q1",
		Demo: []fixture.DemoRow{
			{CaseID: "100", PrimaryID: "1001", FdaDt: "20230115"},
			{CaseID: "101", PrimaryID: "1010", FdaDt: "20230101"},
		},
		Reac: map[string][]string{"1001": {"Nausea"}},
	}).Build()
	r.NoError(err)

	upstream := fixture.NewUpstream(map[string][]byte{"2023Q1": archive})
	defer upstream.Close()

	backend := fixture.NewBackend()
	history := fixture.NewHistory()
	o := newUnderTest(t, testConfig(t, upstream.IndexURL()), backend, history)

	r.NoError(o.RunPartial(context.Background(), []string{"2023q1"}))
	first := backend.Rows(types.TableDemo)

	r.NoError(o.RunPartial(context.Background(), []string{"2023Q1"}))
	second := backend.Rows(types.TableDemo)

	a.ElementsMatch(first, second)
	a.Len(successQuarters(history), 2)
}

func TestPartialRejectsUnadvertisedQuarter(t *testing.T) {
	upstream := fixture.NewUpstream(map[string][]byte{})
	defer upstream.Close()

	o := newUnderTest(t, testConfig(t, upstream.IndexURL()), fixture.NewBackend(), fixture.NewHistory())
	err := o.RunPartial(context.Background(), []string{"2030Q1"})
	assert.True(t, errors.Is(err, ErrNotAdvertised))
}

func TestCancellationMarksFailed(t *testing.T) {
	r := require.New(t)
	a := assert.New(t)

	archive, err := (&fixture.ASCIIArchive{
		Quarter: "23Q1",
		Demo:    []fixture.DemoRow{{CaseID: "100", PrimaryID: "1001", FdaDt: "20230115"}},
	}).Build()
	r.NoError(err)

	upstream := fixture.NewUpstream(map[string][]byte{"2023Q1": archive})
	defer upstream.Close()

	backend := fixture.NewBackend()
	history := fixture.NewHistory()
	o := newUnderTest(t, testConfig(t, upstream.IndexURL()), backend, history)

	ctx, cancel := context.WithCancel(context.Background())
	backend.FailOn = func(op string) error {
		// Cancel mid-load; the orchestrator aborts at its next check.
		cancel()
		return ctx.Err()
	}

	err = o.RunDelta(ctx)
	r.Error(err)

	recs := history.Records()
	r.Len(recs, 1)
	a.Equal(types.StatusFailed, recs[0].Status)
	a.Equal("CANCELLED", recs[0].ErrorMessage)
	for _, table := range types.AllTables {
		a.Empty(backend.Rows(table))
	}
}

func TestChaosRollsBack(t *testing.T) {
	r := require.New(t)
	a := assert.New(t)

	archive, err := (&fixture.ASCIIArchive{
		Quarter: "23Q1",
		Demo:    []fixture.DemoRow{{CaseID: "100", PrimaryID: "1001", FdaDt: "20230115"}},
	}).Build()
	r.NoError(err)

	upstream := fixture.NewUpstream(map[string][]byte{"2023Q1": archive})
	defer upstream.Close()

	backend := fixture.NewBackend()
	history := fixture.NewHistory()
	cfg := testConfig(t, upstream.IndexURL())
	cfg.ChaosProb = 1
	o := newUnderTest(t, cfg, backend, history)

	err = o.RunDelta(context.Background())
	r.Error(err)
	a.True(errors.Is(err, ErrChaos))
	for _, table := range types.AllTables {
		a.Empty(backend.Rows(table))
	}
}

func TestPadPolicyNormalizesPartialDates(t *testing.T) {
	r := require.New(t)

	archive, err := (&fixture.ASCIIArchive{
		Quarter: "22Q1",
		Demo:    []fixture.DemoRow{{CaseID: "400", PrimaryID: "4001", FdaDt: "202203"}},
	}).Build()
	r.NoError(err)

	upstream := fixture.NewUpstream(map[string][]byte{"2022Q1": archive})
	defer upstream.Close()

	backend := fixture.NewBackend()
	cfg := testConfig(t, upstream.IndexURL())
	cfg.PartialDatePolicy = DatePolicyPad
	o := newUnderTest(t, cfg, backend, fixture.NewHistory())

	r.NoError(o.RunDelta(context.Background()))
	rows := backend.Rows(types.TableDemo)
	r.Len(rows, 1)
	assert.Equal(t, "2022-03-01", rows[0].Fields["fda_dt"])
}
