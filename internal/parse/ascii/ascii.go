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

// Package ascii parses FAERS' `$`-delimited ASCII table files, one per
// table, with a header row naming the columns.
package ascii

import (
	"bufio"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/faers-sink/faers-sink/internal/types"
)

// identityColumns are recognized case-insensitively regardless of which
// table they appear in.
const (
	colPrimaryID = "primaryid"
	colCaseID    = "caseid"
	colFdaDt     = "fda_dt"
)

// ParseTable streams r as a `$`-delimited FAERS ASCII table file,
// calling fn once per data row. Malformed lines (wrong column count)
// are skipped and logged with their source file and line number rather
// than aborting the whole file.
func ParseTable(sourceFile string, table types.Table, r io.Reader, fn func(types.Row) error) error {
	decoded := decodeWithFallback(r)
	scanner := bufio.NewScanner(decoded)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	lineNo := 0
	var header []string
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if lineNo == 1 {
			header = splitNormalize(line)
			continue
		}
		if line == "" {
			continue
		}
		fields := strings.Split(line, "$")
		if len(fields) != len(header) {
			log.WithFields(log.Fields{
				"file": sourceFile,
				"line": lineNo,
				"want": len(header),
				"got":  len(fields),
			}).Warn("skipping malformed ASCII row")
			continue
		}

		row := types.Row{
			Table:      table,
			Fields:     make(map[string]string, len(header)),
			SourceFile: sourceFile,
			SourceLine: lineNo,
		}
		for i, col := range header {
			row.Fields[col] = fields[i]
			switch col {
			case colPrimaryID:
				row.PrimaryID = fields[i]
			case colCaseID:
				row.CaseID = fields[i]
			case colFdaDt:
				row.FdaDt = fields[i]
			}
		}
		if row.CaseID == "" && !table.IsChild() {
			// DEMO rows are keyed by CASEID; a DEMO row without one can't
			// participate in dedup and is dropped rather than crashing
			// the pipeline.
			log.WithFields(log.Fields{"file": sourceFile, "line": lineNo}).Warn("DEMO row missing caseid, skipping")
			continue
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "could not read %s", sourceFile)
	}
	return nil
}

func splitNormalize(header string) []string {
	fields := strings.Split(header, "$")
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = strings.ToLower(strings.TrimSpace(f))
	}
	return out
}

// decodeWithFallback returns a reader that yields valid UTF-8: if r's
// bytes don't validate as UTF-8 it's treated as Latin-1 (ISO-8859-1),
// where every byte maps 1:1 to its Unicode code point.
func decodeWithFallback(r io.Reader) io.Reader {
	return &sniffingReader{src: bufio.NewReader(r)}
}

type sniffingReader struct {
	src     *bufio.Reader
	decided bool
	latin1  bool
	pending []byte
}

func (s *sniffingReader) Read(p []byte) (int, error) {
	if !s.decided {
		peek, _ := s.src.Peek(4096)
		s.latin1 = !utf8.Valid(peek)
		s.decided = true
	}
	if !s.latin1 {
		return s.src.Read(p)
	}
	return s.readLatin1(p)
}

func (s *sniffingReader) readLatin1(p []byte) (int, error) {
	if len(s.pending) == 0 {
		buf := make([]byte, 4096)
		n, err := s.src.Read(buf)
		if n == 0 {
			return 0, err
		}
		for _, b := range buf[:n] {
			s.pending = utf8.AppendRune(s.pending, rune(b))
		}
		if err != nil && err != io.EOF {
			return 0, err
		}
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

// ExtractNullifications reads a DELE*.TXT-style file, one CASEID per
// line (optionally header-prefixed with "caseid"), and returns the set
// of nullified CASEIDs.
func ExtractNullifications(r io.Reader) (types.Nullifications, error) {
	out := make(types.Nullifications)
	scanner := bufio.NewScanner(decodeWithFallback(r))
	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if first {
			first = false
			if strings.EqualFold(line, colCaseID) {
				continue
			}
		}
		out.Add(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "could not read nullification file")
	}
	return out, nil
}

// IsNullificationFile reports whether name matches the DELE*.TXT naming
// convention FAERS uses for the deletion file inside an ASCII release.
func IsNullificationFile(name string) bool {
	upper := strings.ToUpper(name)
	return strings.HasPrefix(upper, "DELE") && strings.HasSuffix(upper, ".TXT")
}
