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

package ident

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableQualification(t *testing.T) {
	a := assert.New(t)

	tbl := NewTable(NewSchema("faers"), "DEMO")
	a.Equal("faers.demo", tbl.Raw())
	a.Equal("demo", tbl.Name())
	a.Equal("faers", tbl.Schema().Raw())
}

func TestEmptySchemaDefaults(t *testing.T) {
	assert.Equal(t, "public.drug", NewTable(NewSchema(""), "drug").Raw())
}
