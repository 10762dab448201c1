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

// Package stage writes and retrieves the gzip-compressed, delimited-text
// chunks that hold a quarter's FAERS rows between pipeline stages: the
// parsed rows between parse and dedup, and the deduplicated rows
// between dedup and load.
package stage

import (
	"github.com/faers-sink/faers-sink/internal/util/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stageRetireDurations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stage_retire_duration_seconds",
		Help:    "the length of time it took to successfully retire a staged chunk",
		Buckets: metrics.LatencyBuckets,
	}, metrics.QuarterTableLabels)
	stageRetireErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stage_retire_errors_total",
		Help: "the number of times an error was encountered while retiring a staged chunk",
	}, metrics.QuarterTableLabels)

	stageSelectCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stage_select_rows_total",
		Help: "the number of staged rows read back for this table",
	}, metrics.QuarterTableLabels)
	stageSelectDurations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stage_select_duration_seconds",
		Help:    "the length of time it took to successfully read back staged rows",
		Buckets: metrics.LatencyBuckets,
	}, metrics.QuarterTableLabels)
	stageSelectErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stage_select_errors_total",
		Help: "the number of times an error was encountered while reading back staged rows",
	}, metrics.QuarterTableLabels)

	stageStoreCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stage_store_rows_total",
		Help: "the number of rows written to the staging chunk for this table",
	}, metrics.QuarterTableLabels)
	stageStoreDurations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stage_store_duration_seconds",
		Help:    "the length of time it took to successfully write a staging chunk",
		Buckets: metrics.LatencyBuckets,
	}, metrics.QuarterTableLabels)
	stageStoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stage_store_errors_total",
		Help: "the number of times an error was encountered while writing a staging chunk",
	}, metrics.QuarterTableLabels)
)
