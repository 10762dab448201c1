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

package pgbulk

import "github.com/faers-sink/faers-sink/internal/types"

// Columns is the physical column catalog per FAERS table, matching the
// upstream ASCII release layouts with names lower-cased. Every column
// is TEXT except where noted in createTemplates; the raw strings from
// the release are preserved and typed interpretation is left to
// downstream consumers.
var Columns = map[types.Table][]string{
	types.TableDemo: {
		"primaryid", "caseid", "caseversion", "i_f_code", "event_dt",
		"mfr_dt", "init_fda_dt", "fda_dt", "rept_cod", "auth_num",
		"mfr_num", "mfr_sndr", "lit_ref", "age", "age_cod", "age_grp",
		"sex", "e_sub", "wt", "wt_cod", "rept_dt", "to_mfr", "occp_cod",
		"reporter_country", "occr_country",
	},
	types.TableDrug: {
		"primaryid", "caseid", "drug_seq", "role_cod", "drugname",
		"prod_ai", "val_vbm", "route", "dose_vbm", "cum_dose_chr",
		"cum_dose_unit", "dechal", "rechal", "lot_num", "exp_dt",
		"nda_num", "dose_amt", "dose_unit", "dose_form", "dose_freq",
	},
	types.TableReac: {"primaryid", "caseid", "pt", "drug_rec_act"},
	types.TableOutc: {"primaryid", "caseid", "outc_cod"},
	types.TableRpsr: {"primaryid", "caseid", "rpsr_cod"},
	types.TableTher: {
		"primaryid", "caseid", "dsg_drug_seq", "start_dt", "end_dt",
		"dur", "dur_cod",
	},
	types.TableIndi: {"primaryid", "caseid", "indi_drug_seq", "indi_pt"},
}

// createTemplates are the CREATE TABLE IF NOT EXISTS statements, keyed
// by table, with a single %s substitution for the qualified table name.
// DEMO carries the PRIMARY KEY; the child tables are keyed only by
// convention since a PRIMARYID legitimately repeats across their rows.
var createTemplates = map[types.Table]string{
	types.TableDemo: `
CREATE TABLE IF NOT EXISTS %s (
  primaryid        TEXT NOT NULL PRIMARY KEY,
  caseid           TEXT NOT NULL,
  caseversion      TEXT,
  i_f_code         TEXT,
  event_dt         TEXT,
  mfr_dt           TEXT,
  init_fda_dt      TEXT,
  fda_dt           TEXT,
  rept_cod         TEXT,
  auth_num         TEXT,
  mfr_num          TEXT,
  mfr_sndr         TEXT,
  lit_ref          TEXT,
  age              TEXT,
  age_cod          TEXT,
  age_grp          TEXT,
  sex              TEXT,
  e_sub            TEXT,
  wt               TEXT,
  wt_cod           TEXT,
  rept_dt          TEXT,
  to_mfr           TEXT,
  occp_cod         TEXT,
  reporter_country TEXT,
  occr_country     TEXT
)`,
	types.TableDrug: `
CREATE TABLE IF NOT EXISTS %s (
  primaryid     TEXT NOT NULL,
  caseid        TEXT NOT NULL,
  drug_seq      TEXT,
  role_cod      TEXT,
  drugname      TEXT,
  prod_ai       TEXT,
  val_vbm       TEXT,
  route         TEXT,
  dose_vbm      TEXT,
  cum_dose_chr  TEXT,
  cum_dose_unit TEXT,
  dechal        TEXT,
  rechal        TEXT,
  lot_num       TEXT,
  exp_dt        TEXT,
  nda_num       TEXT,
  dose_amt      TEXT,
  dose_unit     TEXT,
  dose_form     TEXT,
  dose_freq     TEXT
)`,
	types.TableReac: `
CREATE TABLE IF NOT EXISTS %s (
  primaryid    TEXT NOT NULL,
  caseid       TEXT NOT NULL,
  pt           TEXT,
  drug_rec_act TEXT
)`,
	types.TableOutc: `
CREATE TABLE IF NOT EXISTS %s (
  primaryid TEXT NOT NULL,
  caseid    TEXT NOT NULL,
  outc_cod  TEXT
)`,
	types.TableRpsr: `
CREATE TABLE IF NOT EXISTS %s (
  primaryid TEXT NOT NULL,
  caseid    TEXT NOT NULL,
  rpsr_cod  TEXT
)`,
	types.TableTher: `
CREATE TABLE IF NOT EXISTS %s (
  primaryid    TEXT NOT NULL,
  caseid       TEXT NOT NULL,
  dsg_drug_seq TEXT,
  start_dt     TEXT,
  end_dt       TEXT,
  dur          TEXT,
  dur_cod      TEXT
)`,
	types.TableIndi: `
CREATE TABLE IF NOT EXISTS %s (
  primaryid     TEXT NOT NULL,
  caseid        TEXT NOT NULL,
  indi_drug_seq TEXT,
  indi_pt       TEXT
)`,
}

// childIndexTemplate speeds up the caseid-keyed deletes DeltaMerge and
// DeleteCases issue against the child tables.
const childIndexTemplate = `CREATE INDEX IF NOT EXISTS %s_caseid_idx ON %s (caseid)`
