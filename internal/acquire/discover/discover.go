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

// Package discover scrapes the upstream FAERS index page to enumerate
// the (quarter, download URL) pairs available for acquisition.
package discover

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"

	"github.com/pkg/errors"

	"github.com/faers-sink/faers-sink/internal/util/quarterid"
)

// Entry is one quarterly release as enumerated from the upstream index.
type Entry struct {
	Quarter quarterid.ID
	URL     string
}

var hrefPattern = regexp.MustCompile(`(?i)href\s*=\s*["']([^"']+)["']`)
var quarterToken = regexp.MustCompile(`(?i)([0-9]{4})q([1-4])`)

// Discover fetches indexURL and returns the quarterly releases it links
// to, sorted ascending by quarter. Duplicate quarters are de-conflicted
// by preferring the longest quarter token matched in the link target,
// then lexically smallest URL, matching the tie-break spec'd for the upstream scraping rule.
func Discover(ctx context.Context, client *http.Client, indexURL string) ([]Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, indexURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "could not build discovery request")
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "could not fetch upstream index")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("upstream index returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "could not read upstream index body")
	}

	return parseIndex(string(body), indexURL)
}

// parseIndex extracts quarterly entries from raw HTML, without a full
// HTML parse tree: the spec's own matching rule operates on link target
// tokens, so a regexp-based href extraction followed by a quarter-token
// match is sufficient and keeps this package dependency-free.
func parseIndex(html, base string) ([]Entry, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, errors.Wrap(err, "could not parse base URL")
	}

	type candidate struct {
		href  string
		token string
	}
	best := make(map[string]candidate)

	for _, m := range hrefPattern.FindAllStringSubmatch(html, -1) {
		href := m[1]
		tm := quarterToken.FindString(href)
		if tm == "" {
			continue
		}
		key := normalizeToken(tm)
		cur, exists := best[key]
		switch {
		case !exists:
			best[key] = candidate{href: href, token: tm}
		case len(tm) > len(cur.token):
			best[key] = candidate{href: href, token: tm}
		case len(tm) == len(cur.token) && href < cur.href:
			best[key] = candidate{href: href, token: tm}
		}
	}

	entries := make([]Entry, 0, len(best))
	for key, c := range best {
		id, err := quarterid.Parse(key)
		if err != nil {
			continue
		}
		resolved, err := baseURL.Parse(c.href)
		if err != nil {
			return nil, errors.Wrapf(err, "could not resolve link %q", c.href)
		}
		entries = append(entries, Entry{Quarter: id, URL: resolved.String()})
	}

	sort.Slice(entries, func(i, j int) bool {
		return quarterid.Before(entries[i].Quarter, entries[j].Quarter)
	})
	return entries, nil
}

func normalizeToken(tok string) string {
	m := quarterToken.FindStringSubmatch(tok)
	if m == nil {
		return tok
	}
	return m[1] + "Q" + m[2]
}
