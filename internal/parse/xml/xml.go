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

// Package xml streams ICH E2B-compliant FAERS XML releases one
// <safetyreport> element at a time, so a multi-gigabyte release never
// has to be held in memory as a single tree.
package xml

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/faers-sink/faers-sink/internal/types"
)

// safetyReport mirrors the subset of the E2B(R3)-style report structure
// this pipeline projects into rows. Unrecognized elements are ignored
// by encoding/xml by default, which is what lets this stay a partial
// mapping instead of a full E2B schema implementation.
type safetyReport struct {
	XMLName              xml.Name `xml:"safetyreport"`
	SafetyReportID       string   `xml:"safetyreportid"`
	ReceiptDate          string   `xml:"receiptdate"`
	SafetyReportVersion  string   `xml:"safetyreportversion"`
	Nullification        bool     `xml:"safetyreportnullification"`
	Patient              patient  `xml:"patient"`
}

type patient struct {
	Age       string     `xml:"patientonsetage"`
	Sex       string     `xml:"patientsex"`
	Drugs     []drug     `xml:"drug"`
	Reactions []reaction `xml:"reaction"`
	Outcomes  []outcome  `xml:"patientoutcome"` // distinguished from drug.actiondrug by tag name, per E2B layout
}

type drug struct {
	DrugName    string           `xml:"medicinalproduct"`
	ActionDrug  string           `xml:"actiondrug"`
	Indications []indicationElem `xml:"drugindication"`
	Therapies   []therapyElem    `xml:"drugstartdate"`
}

type indicationElem struct {
	Text string `xml:",chardata"`
}

type therapyElem struct {
	Text string `xml:",chardata"`
}

type reaction struct {
	MedDRAPreferredTerm string `xml:"reactionmeddrapt"`
	Outcome             string `xml:"reactionoutcome"`
}

type outcome struct {
	Code string `xml:",chardata"`
}

// ParseReleaseXML streams r, decoding one <safetyreport> element at a
// time via Decoder.Token, projecting each into rows for the seven
// tables. A nullified report contributes only to nulls and emits no
// rows. Each decoded element is discarded (the value DecodeElement
// filled goes out of scope) before the decoder advances to the next
// sibling, bounding memory to one report at a time regardless of file
// size.
func ParseReleaseXML(sourceFile string, r io.Reader, fn func(types.Row) error, nulls types.Nullifications) error {
	dec := xml.NewDecoder(r)
	lineNo := 0

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "could not read %s", sourceFile)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "safetyreport" {
			continue
		}
		lineNo++

		var report safetyReport
		if err := dec.DecodeElement(&report, &start); err != nil {
			log.WithFields(log.Fields{"file": sourceFile, "report": lineNo}).
				WithError(err).Warn("skipping malformed safetyreport element")
			continue
		}

		caseID, primaryID := splitReportID(report.SafetyReportID, report.SafetyReportVersion)
		if caseID == "" {
			// A report without an identifier can't participate in dedup
			// or nullification; skip it the way the ASCII path skips a
			// DEMO row without a CASEID.
			log.WithFields(log.Fields{"file": sourceFile, "report": lineNo}).
				Warn("safetyreport missing safetyreportid, skipping")
			continue
		}
		if report.Nullification {
			if nulls != nil {
				nulls.Add(caseID)
			}
			continue
		}

		if err := emitRows(sourceFile, lineNo, caseID, primaryID, report, fn); err != nil {
			return err
		}
	}
}

// splitReportID derives (CASEID, PRIMARYID) from the E2B identifiers.
// PRIMARYID combines the case identifier with its version the way
// FAERS' own ASCII extracts do (caseid + two-digit version suffix) so
// that the two formats agree on identity for a given upstream release.
func splitReportID(safetyReportID, version string) (caseID, primaryID string) {
	caseID = safetyReportID
	if version == "" {
		version = "01"
	}
	if len(version) == 1 {
		version = "0" + version
	}
	return caseID, caseID + version
}

func emitRows(sourceFile string, lineNo int, caseID, primaryID string, report safetyReport, fn func(types.Row) error) error {
	demoFields := map[string]string{
		"age": report.Patient.Age,
		"sex": report.Patient.Sex,
	}
	if err := fn(types.Row{
		Table: types.TableDemo, CaseID: caseID, PrimaryID: primaryID, FdaDt: report.ReceiptDate,
		Fields: demoFields, SourceFile: sourceFile, SourceLine: lineNo,
	}); err != nil {
		return err
	}

	for _, d := range report.Patient.Drugs {
		if err := fn(types.Row{
			Table: types.TableDrug, CaseID: caseID, PrimaryID: primaryID, FdaDt: report.ReceiptDate,
			Fields:     map[string]string{"drugname": d.DrugName, "actiondrug": d.ActionDrug},
			SourceFile: sourceFile, SourceLine: lineNo,
		}); err != nil {
			return err
		}
		for _, ind := range d.Indications {
			if err := fn(types.Row{
				Table: types.TableIndi, CaseID: caseID, PrimaryID: primaryID, FdaDt: report.ReceiptDate,
				Fields:     map[string]string{"indi_drug_seq": d.DrugName, "indi_pt": strings.TrimSpace(ind.Text)},
				SourceFile: sourceFile, SourceLine: lineNo,
			}); err != nil {
				return err
			}
		}
		for _, t := range d.Therapies {
			if err := fn(types.Row{
				Table: types.TableTher, CaseID: caseID, PrimaryID: primaryID, FdaDt: report.ReceiptDate,
				Fields:     map[string]string{"dsg_drug_seq": d.DrugName, "start_dt": strings.TrimSpace(t.Text)},
				SourceFile: sourceFile, SourceLine: lineNo,
			}); err != nil {
				return err
			}
		}
	}

	for _, r := range report.Patient.Reactions {
		if err := fn(types.Row{
			Table: types.TableReac, CaseID: caseID, PrimaryID: primaryID, FdaDt: report.ReceiptDate,
			Fields:     map[string]string{"pt": r.MedDRAPreferredTerm},
			SourceFile: sourceFile, SourceLine: lineNo,
		}); err != nil {
			return err
		}
		if r.Outcome != "" {
			if err := fn(types.Row{
				Table: types.TableOutc, CaseID: caseID, PrimaryID: primaryID, FdaDt: report.ReceiptDate,
				Fields:     map[string]string{"outc_cod": r.Outcome},
				SourceFile: sourceFile, SourceLine: lineNo,
			}); err != nil {
				return err
			}
		}
	}

	for _, o := range report.Patient.Outcomes {
		code := strings.TrimSpace(o.Code)
		if code == "" {
			continue
		}
		if err := fn(types.Row{
			Table: types.TableRpsr, CaseID: caseID, PrimaryID: primaryID, FdaDt: report.ReceiptDate,
			Fields:     map[string]string{"rpsr_cod": code},
			SourceFile: sourceFile, SourceLine: lineNo,
		}); err != nil {
			return err
		}
	}

	return nil
}
