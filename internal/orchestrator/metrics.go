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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/faers-sink/faers-sink/internal/util/metrics"
)

var (
	quarterDurations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "load_quarter_duration_seconds",
		Help:    "the length of time it took to fully load one quarter",
		Buckets: metrics.LatencyBuckets,
	}, metrics.QuarterLabels)
	quarterFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "load_quarter_failures_total",
		Help: "the number of terminal FAILED outcomes per quarter",
	}, metrics.QuarterLabels)
	quarterSuccesses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "load_quarter_successes_total",
		Help: "the number of terminal SUCCESS outcomes per quarter",
	}, metrics.QuarterLabels)
	nullificationsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "load_nullified_cases_total",
		Help: "the number of upstream case nullifications applied",
	}, metrics.QuarterLabels)
)
