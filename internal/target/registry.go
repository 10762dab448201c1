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

package target

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// Factory opens a Backend against the configured store.
type Factory func(ctx context.Context, cfg *Config) (Backend, error)

var registry struct {
	sync.Mutex
	factories map[string]Factory
}

// Register installs a backend factory under a stable identifier.
// Backends call this from an init function, so the set of available
// backends is whatever the enclosing binary links in. Registering the
// same name twice panics; it indicates two packages fighting over an
// identifier.
func Register(name string, fn Factory) {
	registry.Lock()
	defer registry.Unlock()
	if registry.factories == nil {
		registry.factories = make(map[string]Factory)
	}
	if _, dup := registry.factories[name]; dup {
		panic(errors.Errorf("backend %q registered twice", name))
	}
	registry.factories[name] = fn
}

// Open looks up name in the registry and opens a Backend.
func Open(ctx context.Context, name string, cfg *Config) (Backend, error) {
	registry.Lock()
	fn, ok := registry.factories[name]
	registry.Unlock()
	if !ok {
		return nil, errors.Errorf("unknown backend %q; registered: %v", name, Names())
	}
	return fn(ctx, cfg)
}

// Names returns the registered backend identifiers, sorted.
func Names() []string {
	registry.Lock()
	defer registry.Unlock()
	ret := make([]string, 0, len(registry.factories))
	for name := range registry.factories {
		ret = append(ret, name)
	}
	sort.Strings(ret)
	return ret
}
