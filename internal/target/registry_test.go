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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := require.New(t)
	a := assert.New(t)

	called := false
	Register("test-backend", func(context.Context, *Config) (Backend, error) {
		called = true
		return nil, nil
	})

	a.Contains(Names(), "test-backend")

	_, err := Open(context.Background(), "test-backend", &Config{})
	r.NoError(err)
	a.True(called)

	_, err = Open(context.Background(), "no-such-backend", &Config{})
	a.ErrorContains(err, "unknown backend")

	a.Panics(func() {
		Register("test-backend", func(context.Context, *Config) (Backend, error) {
			return nil, nil
		})
	})
}
