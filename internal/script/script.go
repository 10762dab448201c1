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

// Package script is the hook point for a future user-supplied
// transform language. The pipeline carries a Loader through its wiring
// so a scripting engine can be attached without replumbing; until one
// exists, ProvideLoader returns an inert instance.
package script

import "github.com/pkg/errors"

// Config names the user script to load.
type Config struct {
	MainPath string
}

// Loader holds a compiled user script.
type Loader struct {
	cfg Config
}

// ProvideLoader compiles the configured script. With no script
// configured it returns a loader whose hooks are no-ops.
func ProvideLoader(cfg Config) (*Loader, error) {
	if cfg.MainPath != "" {
		return nil, errors.New("user scripts are not yet supported")
	}
	return &Loader{cfg: cfg}, nil
}

// Enabled reports whether a user script is active.
func (l *Loader) Enabled() bool { return false }
