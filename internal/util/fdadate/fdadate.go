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

// Package fdadate parses and compares FAERS FDA_DT values, which may be
// full (YYYYMMDD), month-partial (YYYYMM) or year-partial (YYYY). A
// missing or unparseable value sorts below any present date.
package fdadate

import "time"

// Date is a parsed FDA_DT value. A zero-value Date (Valid == false)
// represents a missing or unparseable date and sorts below every valid
// Date.
type Date struct {
	Valid bool
	t     time.Time
	raw   string
}

// Parse attempts to interpret raw as YYYYMMDD, then YYYYMM, then YYYY.
// An empty or unrecognized string yields an invalid Date rather than an
// error: an unparseable FDA_DT degrades dedup
// ordering, it never fails the pipeline.
func Parse(raw string) Date {
	if raw == "" {
		return Date{raw: raw}
	}
	for _, layout := range []string{"20060102", "200601", "2006"} {
		if len(raw) != len(layout) {
			continue
		}
		if t, err := time.Parse(layout, raw); err == nil {
			return Date{Valid: true, t: t, raw: raw}
		}
	}
	return Date{raw: raw}
}

// Raw returns the original string as received.
func (d Date) Raw() string { return d.raw }

// Pad renders the partial-date padding policy:
// YYYY -> YYYY-01-01, YYYYMM -> YYYY-MM-01, and a full date is returned
// as YYYY-MM-DD. An invalid Date returns the empty string.
func (d Date) Pad() string {
	if !d.Valid {
		return ""
	}
	return d.t.Format("2006-01-02")
}

// Compare orders a relative to b with missing/invalid dates sorting
// below any valid date, and valid dates compared chronologically.
func Compare(a, b Date) int {
	switch {
	case !a.Valid && !b.Valid:
		return 0
	case !a.Valid:
		return -1
	case !b.Valid:
		return 1
	case a.t.Before(b.t):
		return -1
	case a.t.After(b.t):
		return 1
	default:
		return 0
	}
}
