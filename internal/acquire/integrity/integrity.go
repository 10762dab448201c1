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

// Package integrity validates a downloaded FAERS release archive before
// it's handed to the parser: structural zip validation by per-member
// CRC32, followed by a whole-archive SHA-256 checksum for provenance.
package integrity

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/pkg/errors"
)

// ErrArchiveCorrupt is returned when the zip's central directory fails
// to validate, or any member fails its CRC32 check.
var ErrArchiveCorrupt = errors.New("archive corrupt")

// Report is the outcome of validating one archive.
type Report struct {
	SHA256     string
	MemberCRCs map[string]uint32
}

// Validate opens path as a zip archive, checks every member's CRC32 by
// reading it fully, and computes a SHA-256 over the whole file. A
// structural or CRC failure is wrapped in ErrArchiveCorrupt.
func Validate(path string) (Report, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return Report{}, errors.Wrapf(ErrArchiveCorrupt, "could not open central directory of %s: %v", path, err)
	}
	defer zr.Close()

	crcs := make(map[string]uint32, len(zr.File))
	for _, f := range zr.File {
		if err := checkMember(f); err != nil {
			return Report{}, errors.Wrapf(ErrArchiveCorrupt, "member %s failed CRC32 validation: %v", f.Name, err)
		}
		crcs[f.Name] = f.CRC32
	}

	sum, err := sha256File(path)
	if err != nil {
		return Report{}, errors.Wrap(err, "could not checksum archive")
	}

	return Report{SHA256: sum, MemberCRCs: crcs}, nil
}

func checkMember(f *zip.File) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	// Reading to completion causes the flate/zip reader to validate the
	// member's CRC32 against its recorded value and return an error on
	// mismatch.
	_, err = io.Copy(io.Discard, rc)
	return err
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// CompareChecksum reports whether observed matches previouslyRecorded.
// Per the acquisition stage's integrity rule, a mismatch here is a
// warning for the caller to log, not a validation failure: the upstream
// source file is authoritative, a stored checksum from a prior run is
// just provenance.
func CompareChecksum(observed, previouslyRecorded string) bool {
	if previouslyRecorded == "" {
		return true
	}
	return observed == previouslyRecorded
}
