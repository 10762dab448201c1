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

import "github.com/pkg/errors"

// Sentinel errors for the failure classes a Backend reports. Backends
// wrap these with errors.Wrap so callers can classify with errors.Is
// while keeping the driver-level cause in the message.
var (
	ErrAuth           = errors.New("AUTH")
	ErrUnreachable    = errors.New("UNREACHABLE")
	ErrSchemaConflict = errors.New("SCHEMA_CONFLICT")
	ErrTxnFailed      = errors.New("TXN_FAILED")
	ErrBulkFormat     = errors.New("BULK_FORMAT")
	ErrConstraint     = errors.New("CONSTRAINT")
	ErrDqFail         = errors.New("DQ_FAIL")
)
