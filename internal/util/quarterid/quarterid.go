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

// Package quarterid parses and orders FAERS release quarter identifiers
// of the form YYYYQn.
package quarterid

import (
	"regexp"
	"strconv"

	"github.com/pkg/errors"
)

// ID is a canonicalized, totally-ordered FAERS quarter identifier.
type ID struct {
	Year    int
	Quarter int
}

var pattern = regexp.MustCompile(`^([0-9]{4})[qQ]([1-4])$`)

// Parse canonicalizes s (case-insensitively) into an ID. An error is
// returned if s is not of the form YYYYQn with n in {1,2,3,4}.
func Parse(s string) (ID, error) {
	m := pattern.FindStringSubmatch(s)
	if m == nil {
		return ID{}, errors.Errorf("invalid quarter identifier %q", s)
	}
	year, err := strconv.Atoi(m[1])
	if err != nil {
		return ID{}, errors.Wrapf(err, "invalid quarter identifier %q", s)
	}
	quarter, err := strconv.Atoi(m[2])
	if err != nil {
		return ID{}, errors.Wrapf(err, "invalid quarter identifier %q", s)
	}
	return ID{Year: year, Quarter: quarter}, nil
}

// MustParse is like Parse but panics on error. It exists for tests and
// for constant-looking call sites where the input is known good.
func MustParse(s string) ID {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String renders the canonical upper-case form, e.g. "2023Q1".
func (id ID) String() string {
	return strconv.Itoa(id.Year) + "Q" + strconv.Itoa(id.Quarter)
}

// Compare returns -1, 0 or 1 as a is before, equal to, or after b, in
// (year, quarter) order.
func Compare(a, b ID) int {
	switch {
	case a.Year != b.Year:
		if a.Year < b.Year {
			return -1
		}
		return 1
	case a.Quarter != b.Quarter:
		if a.Quarter < b.Quarter {
			return -1
		}
		return 1
	default:
		return 0
	}
}

// Before reports whether a sorts strictly before b.
func Before(a, b ID) bool { return Compare(a, b) < 0 }

// Sort orders ids ascending in place using a simple insertion sort; the
// catalogs this operates over (one upstream release per quarter) are
// small enough that asymptotic complexity doesn't matter, and insertion
// sort keeps the comparison and swap logic trivially auditable.
func Sort(ids []ID) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && Compare(ids[j-1], ids[j]) > 0; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}
