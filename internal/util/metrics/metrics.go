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

// Package metrics holds label sets and bucket definitions shared by the
// Prometheus vectors registered throughout the pipeline, so that every
// package's histograms and counters stay comparable to one another.
package metrics

// TableLabels is the label set used by metrics that vary per FAERS
// table (demo, drug, reac, outc, rpsr, ther, indi).
var TableLabels = []string{"table"}

// QuarterLabels is the label set used by metrics that vary per release
// quarter but are not specific to a single table, such as acquisition
// and dedup-pass counters.
var QuarterLabels = []string{"quarter"}

// QuarterTableLabels is the label set used by metrics that vary by both
// release quarter and table, such as per-table row counts within a
// single load.
var QuarterTableLabels = []string{"quarter", "table"}

// LatencyBuckets are the histogram buckets, in seconds, used for
// latency-style measurements across the pipeline. FAERS stages range
// from sub-second dedup passes to multi-minute bulk loads, so the
// buckets span from 10ms to roughly 20 minutes.
var LatencyBuckets = []float64{
	.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1200,
}
