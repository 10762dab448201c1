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

// Package enrich declares the optional per-table transform hook that
// runs after dedup and before load. RxNorm drug normalization, ISO
// country mapping and age normalization register here when their
// packages are linked in; the core ships none of them.
package enrich

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/faers-sink/faers-sink/internal/types"
)

// Transform rewrites one deduplicated row before it's staged for
// loading. Returning the row unchanged is valid; a Transform must not
// change the row's CaseID or PrimaryID, since dedup has already
// selected on them.
type Transform interface {
	Name() string
	Apply(types.Row) (types.Row, error)
}

var registry struct {
	sync.Mutex
	transforms map[string]Transform
}

// Register installs a transform under its name. Registering a name
// twice panics.
func Register(t Transform) {
	registry.Lock()
	defer registry.Unlock()
	if registry.transforms == nil {
		registry.transforms = make(map[string]Transform)
	}
	if _, dup := registry.transforms[t.Name()]; dup {
		panic(errors.Errorf("enrichment %q registered twice", t.Name()))
	}
	registry.transforms[t.Name()] = t
}

// Chain resolves the named transforms into an application order. An
// empty name list yields a chain that passes rows through untouched.
func Chain(names []string) (*Pipeline, error) {
	registry.Lock()
	defer registry.Unlock()
	ret := &Pipeline{}
	for _, name := range names {
		t, ok := registry.transforms[name]
		if !ok {
			return nil, errors.Errorf("unknown enrichment %q; registered: %v", name, namesLocked())
		}
		ret.transforms = append(ret.transforms, t)
	}
	return ret, nil
}

func namesLocked() []string {
	ret := make([]string, 0, len(registry.transforms))
	for name := range registry.transforms {
		ret = append(ret, name)
	}
	sort.Strings(ret)
	return ret
}

// Pipeline applies its transforms in the order their names were passed
// to Chain.
type Pipeline struct {
	transforms []Transform
}

// Apply runs row through every transform in the chain.
func (p *Pipeline) Apply(row types.Row) (types.Row, error) {
	for _, t := range p.transforms {
		next, err := t.Apply(row)
		if err != nil {
			return row, errors.Wrapf(err, "enrichment %s", t.Name())
		}
		if next.CaseID != row.CaseID || next.PrimaryID != row.PrimaryID {
			return row, errors.Errorf("enrichment %s changed row identity", t.Name())
		}
		row = next
	}
	return row, nil
}
