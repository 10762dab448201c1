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

package fixture

import (
	"archive/zip"
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/pkg/errors"
)

// DemoRow is one synthetic DEMO record for an ASCII archive.
type DemoRow struct {
	CaseID    string
	PrimaryID string
	FdaDt     string
}

// ASCIIArchive describes a synthetic FAERS ASCII release.
type ASCIIArchive struct {
	Quarter string // e.g. 23Q1, used in member file names
	Demo    []DemoRow
	// Reac maps a PRIMARYID to reaction preferred terms, emitted as
	// REAC child rows. Other child tables follow the same pattern and
	// are omitted until a test needs them.
	Reac map[string][]string
	// Deleted CASEIDs, emitted as a DELE member when non-empty.
	Deleted []string
}

// Build renders the archive as zip bytes.
func (a *ASCIIArchive) Build() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	var demo strings.Builder
	demo.WriteString("primaryid$caseid$fda_dt$sex\n")
	for _, row := range a.Demo {
		fmt.Fprintf(&demo, "%s$%s$%s$F\n", row.PrimaryID, row.CaseID, row.FdaDt)
	}
	if err := addMember(zw, fmt.Sprintf("DEMO%s.TXT", a.Quarter), demo.String()); err != nil {
		return nil, err
	}

	if len(a.Reac) > 0 {
		var reac strings.Builder
		reac.WriteString("primaryid$caseid$pt\n")
		for _, row := range a.Demo {
			for _, pt := range a.Reac[row.PrimaryID] {
				fmt.Fprintf(&reac, "%s$%s$%s\n", row.PrimaryID, row.CaseID, pt)
			}
		}
		if err := addMember(zw, fmt.Sprintf("REAC%s.TXT", a.Quarter), reac.String()); err != nil {
			return nil, err
		}
	}

	if len(a.Deleted) > 0 {
		content := "caseid\n" + strings.Join(a.Deleted, "\n") + "\n"
		if err := addMember(zw, fmt.Sprintf("DELE%s.TXT", a.Quarter), content); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(err, "could not finish archive")
	}
	return buf.Bytes(), nil
}

// XMLArchive describes a synthetic E2B XML release.
type XMLArchive struct {
	Quarter string
	Reports []XMLReport
}

// XMLReport is one <safetyreport> element.
type XMLReport struct {
	CaseID        string
	Version       string
	ReceiptDate   string
	Nullification bool
	Reactions     []string
}

// Build renders the archive as zip bytes.
func (a *XMLArchive) Build() ([]byte, error) {
	var doc strings.Builder
	doc.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n<ichicsr>\n")
	for _, rep := range a.Reports {
		doc.WriteString("<safetyreport>\n")
		fmt.Fprintf(&doc, "  <safetyreportid>%s</safetyreportid>\n", rep.CaseID)
		fmt.Fprintf(&doc, "  <safetyreportversion>%s</safetyreportversion>\n", rep.Version)
		fmt.Fprintf(&doc, "  <receiptdate>%s</receiptdate>\n", rep.ReceiptDate)
		if rep.Nullification {
			doc.WriteString("  <safetyreportnullification>true</safetyreportnullification>\n")
		}
		doc.WriteString("  <patient>\n")
		for _, pt := range rep.Reactions {
			fmt.Fprintf(&doc, "    <reaction><reactionmeddrapt>%s</reactionmeddrapt></reaction>\n", pt)
		}
		doc.WriteString("  </patient>\n</safetyreport>\n")
	}
	doc.WriteString("</ichicsr>\n")

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if err := addMember(zw, fmt.Sprintf("ADR%s.XML", a.Quarter), doc.String()); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(err, "could not finish archive")
	}
	return buf.Bytes(), nil
}

func addMember(zw *zip.Writer, name, content string) error {
	w, err := zw.Create(name)
	if err != nil {
		return errors.Wrapf(err, "could not add member %s", name)
	}
	_, err = w.Write([]byte(content))
	return errors.Wrapf(err, "could not write member %s", name)
}

// Upstream serves synthetic archives over HTTP the way the FAERS site
// does: an HTML index page linking one zip per quarter.
type Upstream struct {
	server   *httptest.Server
	archives map[string][]byte // keyed by canonical quarter, e.g. 2023Q1
}

// NewUpstream starts a test server over the given quarter->zip map.
// The caller owns Close.
func NewUpstream(archives map[string][]byte) *Upstream {
	u := &Upstream{archives: archives}
	mux := http.NewServeMux()
	mux.HandleFunc("/index.html", u.index)
	mux.HandleFunc("/content/", u.download)
	u.server = httptest.NewServer(mux)
	return u
}

// IndexURL is the catalog page the Discovery layer scrapes.
func (u *Upstream) IndexURL() string { return u.server.URL + "/index.html" }

// Close shuts the server down.
func (u *Upstream) Close() { u.server.Close() }

func (u *Upstream) index(w http.ResponseWriter, _ *http.Request) {
	var page strings.Builder
	page.WriteString("<html><body>\n")
	for quarter := range u.archives {
		fmt.Fprintf(&page, `<a href="/content/faers_ascii_%s.zip">ASCII</a>`+"\n",
			strings.ToLower(quarter))
	}
	page.WriteString("</body></html>\n")
	_, _ = w.Write([]byte(page.String()))
}

func (u *Upstream) download(w http.ResponseWriter, r *http.Request) {
	for quarter, content := range u.archives {
		if strings.Contains(strings.ToLower(r.URL.Path), strings.ToLower(quarter)) {
			_, _ = w.Write(content)
			return
		}
	}
	http.NotFound(w, r)
}
