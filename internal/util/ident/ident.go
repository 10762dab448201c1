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

// Package ident provides small, comparable identifier types for schemas
// and tables, so that callers never pass around bare strings for things
// that have case-folding and quoting rules attached to them.
package ident

import (
	"fmt"
	"strings"
)

// Schema identifies a target schema (database + namespace) that FAERS
// tables are loaded into.
type Schema struct {
	raw string
}

// NewSchema canonicalizes name into a Schema. An empty name resolves to
// the engine's default namespace.
func NewSchema(name string) Schema {
	if name == "" {
		name = "public"
	}
	return Schema{raw: name}
}

// Raw returns the schema name as it should appear in generated SQL.
func (s Schema) Raw() string { return s.raw }

// String implements fmt.Stringer.
func (s Schema) String() string { return s.raw }

// Table identifies a single table within a Schema.
type Table struct {
	schema Schema
	name   string
}

// NewTable builds a Table reference within schema. Table names are
// folded to lower case to match the persisted layout.
func NewTable(schema Schema, name string) Table {
	return Table{schema: schema, name: strings.ToLower(name)}
}

// Schema returns the owning schema.
func (t Table) Schema() Schema { return t.schema }

// Name returns the bare table name, always lower-cased.
func (t Table) Name() string { return t.name }

// Raw returns the fully qualified "schema.table" identifier.
func (t Table) Raw() string { return fmt.Sprintf("%s.%s", t.schema.raw, t.name) }

// String implements fmt.Stringer.
func (t Table) String() string { return t.Raw() }
