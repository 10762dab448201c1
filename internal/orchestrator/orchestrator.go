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

// Package orchestrator drives the per-quarter unit of work: acquire,
// parse, stage, dedup, load, record. Quarters are processed strictly
// sequentially against a single target; within a quarter the stages
// are connected by bounded staging chunks on disk. The dedup pass holds
// all of a quarter's DEMO rows in memory at once, so peak memory grows
// with the quarter's DEMO row count; the six child tables stream.
package orchestrator

import (
	"archive/zip"
	"context"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/faers-sink/faers-sink/internal/acquire/discover"
	"github.com/faers-sink/faers-sink/internal/acquire/fetch"
	"github.com/faers-sink/faers-sink/internal/acquire/integrity"
	"github.com/faers-sink/faers-sink/internal/dedup"
	"github.com/faers-sink/faers-sink/internal/enrich"
	"github.com/faers-sink/faers-sink/internal/parse/ascii"
	faersxml "github.com/faers-sink/faers-sink/internal/parse/xml"
	"github.com/faers-sink/faers-sink/internal/script"
	"github.com/faers-sink/faers-sink/internal/staging/stage"
	"github.com/faers-sink/faers-sink/internal/target"
	"github.com/faers-sink/faers-sink/internal/types"
	"github.com/faers-sink/faers-sink/internal/util/fdadate"
	"github.com/faers-sink/faers-sink/internal/util/quarterid"
)

// Terminal failure reasons recorded to load_history.
const (
	reasonCancelled      = "CANCELLED"
	reasonArchiveCorrupt = "ARCHIVE_CORRUPT"
)

// ErrNotAdvertised is returned when a requested quarter doesn't appear
// in the upstream catalog.
var ErrNotAdvertised = errors.New("quarter not advertised by upstream catalog")

// ErrParse marks an unrecoverable structural parse failure; row-level
// problems are logged and skipped, never surfaced through it.
var ErrParse = errors.New("parse failed")

// Orchestrator owns the load-mode state machine for one target.
type Orchestrator struct {
	cfg     *Config
	backend target.Backend
	history History
	client  *retryablehttp.Client
	enrich  *enrich.Pipeline

	catalog []discover.Entry // cached for the lifetime of one run
}

// New assembles an Orchestrator. The backend is wrapped for chaos
// injection when the configuration asks for it.
func New(cfg *Config, backend target.Backend, history History) (*Orchestrator, error) {
	if _, err := script.ProvideLoader(script.Config{MainPath: cfg.UserScript}); err != nil {
		return nil, err
	}
	pipeline, err := enrich.Chain(cfg.Enrichments)
	if err != nil {
		return nil, err
	}
	if cfg.StagingFormat == StagingParquet {
		log.Warn("parquet staging is not yet available; falling back to compressed csv")
	}
	return &Orchestrator{
		cfg:     cfg,
		backend: WithChaos(backend, cfg.ChaosProb),
		history: history,
		client:  fetch.NewClient(cfg.Fetch),
		enrich:  pipeline,
	}, nil
}

// Catalog scrapes the upstream index once and caches the result, so a
// multi-quarter batch doesn't re-fetch the page per quarter.
func (o *Orchestrator) Catalog(ctx context.Context) ([]discover.Entry, error) {
	if o.catalog == nil {
		entries, err := discover.Discover(ctx, o.client.StandardClient(), o.cfg.IndexURL)
		if err != nil {
			return nil, err
		}
		o.catalog = entries
	}
	return o.catalog, nil
}

// RunDelta loads every advertised quarter strictly greater than the
// latest SUCCESS, in ascending order, stopping at the first failure so
// already-committed quarters stay committed.
func (o *Orchestrator) RunDelta(ctx context.Context) error {
	entries, err := o.Catalog(ctx)
	if err != nil {
		return err
	}
	latest, loaded, err := o.history.LatestSuccess(ctx)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if loaded && !quarterid.Before(latest, entry.Quarter) {
			continue
		}
		if err := o.loadQuarter(ctx, entry, types.ModeDelta); err != nil {
			return err
		}
	}
	return nil
}

// RunPartial loads an explicit quarter set in ascending order. The
// quarters are independent: a failure marks that quarter FAILED and
// moves on, and the first failure is returned once the batch ends.
func (o *Orchestrator) RunPartial(ctx context.Context, quarters []string) error {
	ids := make([]quarterid.ID, 0, len(quarters))
	for _, raw := range quarters {
		id, err := quarterid.Parse(raw)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}
	quarterid.Sort(ids)

	entries, err := o.Catalog(ctx)
	if err != nil {
		return err
	}

	var firstErr error
	for _, id := range ids {
		entry, err := findEntry(entries, id)
		if err != nil {
			return err
		}
		if err := o.loadQuarter(ctx, entry, types.ModePartial); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			if ctx.Err() != nil {
				break
			}
		}
	}
	return firstErr
}

// RunFull loads the entire advertised history as per-quarter sequential
// loads with delta semantics. Replaying quarters in ascending order
// converges on the same deduplicated state as a global pass, because
// each quarter's delta-merge replaces any older version of its cases;
// a failure leaves the completed prefix committed and resumable, which
// a global one-shot pass would not.
func (o *Orchestrator) RunFull(ctx context.Context) error {
	entries, err := o.Catalog(ctx)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := o.loadQuarter(ctx, entry, types.ModeFull); err != nil {
			return err
		}
	}
	return nil
}

// Download acquires one quarter's archive (or the latest advertised
// when quarter is empty) without loading it.
func (o *Orchestrator) Download(ctx context.Context, quarter string) (string, error) {
	entries, err := o.Catalog(ctx)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("upstream catalog is empty")
	}
	entry := entries[len(entries)-1]
	if quarter != "" {
		id, err := quarterid.Parse(quarter)
		if err != nil {
			return "", err
		}
		if entry, err = findEntry(entries, id); err != nil {
			return "", err
		}
	}
	dest := o.archivePath(entry.Quarter)
	if err := fetch.Fetch(ctx, o.client, entry.URL, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// Verify runs the post-load data-quality checks against the current
// committed state, outside any load.
func (o *Orchestrator) Verify(ctx context.Context) (types.DqReport, error) {
	txn, err := o.backend.BeginTxn(ctx)
	if err != nil {
		return types.DqReport{}, err
	}
	defer func() { _ = txn.Rollback(ctx) }()
	return txn.ExecDqChecks(ctx, nil)
}

func (o *Orchestrator) archivePath(q quarterid.ID) string {
	return filepath.Join(o.cfg.DownloadDir, q.String()+".zip")
}

func findEntry(entries []discover.Entry, id quarterid.ID) (discover.Entry, error) {
	for _, e := range entries {
		if quarterid.Compare(e.Quarter, id) == 0 {
			return e, nil
		}
	}
	return discover.Entry{}, errors.Wrap(ErrNotAdvertised, id.String())
}

// loadQuarter is the quarter-unit-of-work state machine. Exactly one
// terminal history status is recorded per invocation.
func (o *Orchestrator) loadQuarter(
	ctx context.Context, entry discover.Entry, mode types.LoadMode,
) error {
	loadID := uuid.NewString()
	quarter := entry.Quarter.String()
	start := time.Now()
	logger := log.WithFields(log.Fields{
		"load_id": loadID,
		"quarter": quarter,
		"mode":    mode,
	})
	logger.Info("starting quarter load")

	if err := o.history.LoadStarted(ctx, types.LoadHistory{
		LoadID:    loadID,
		Quarter:   entry.Quarter.String(),
		Mode:      mode,
		StartedAt: time.Now().UTC(),
	}); err != nil {
		return err
	}

	fail := func(err error) error {
		reason := failureReason(ctx, err)
		quarterFailures.WithLabelValues(quarter).Inc()
		logger.WithError(err).Error("quarter load failed")
		if hErr := o.history.LoadFailed(context.WithoutCancel(ctx), loadID, reason); hErr != nil {
			logger.WithError(hErr).Error("could not record FAILED status")
		}
		return errors.Wrapf(err, "loading %s", entry.Quarter)
	}

	// Acquire.
	archive := o.archivePath(entry.Quarter)
	if err := fetch.Fetch(ctx, o.client, entry.URL, archive); err != nil {
		return fail(err)
	}
	report, err := integrity.Validate(archive)
	if err != nil {
		return fail(err)
	}
	if err := o.history.LoadChecksum(ctx, loadID, report.SHA256); err != nil {
		return fail(err)
	}

	// Parse and stage.
	rawStage := stage.New(filepath.Join(o.cfg.StagingDir, "raw"), entry.Quarter, o.cfg.ChunkRows)
	dedupStage := stage.New(filepath.Join(o.cfg.StagingDir, "dedup"), entry.Quarter, o.cfg.ChunkRows)
	retire := func(failed bool) {
		if failed && o.cfg.KeepStagingOnFailure {
			logger.Info("keeping staged chunks for forensics")
			return
		}
		if err := rawStage.RetireAll(); err != nil {
			logger.WithError(err).Warn("could not retire raw staging")
		}
		if err := dedupStage.RetireAll(); err != nil {
			logger.WithError(err).Warn("could not retire dedup staging")
		}
	}

	nulls := make(types.Nullifications)
	if err := o.parseArchive(ctx, archive, rawStage, nulls); err != nil {
		retire(true)
		if !errors.Is(err, integrity.ErrArchiveCorrupt) && ctx.Err() == nil {
			err = errors.Wrapf(ErrParse, "%v", err)
		}
		return fail(err)
	}
	if err := rawStage.FlushAll(); err != nil {
		retire(true)
		return fail(err)
	}

	// Dedup, applying the partial-date policy and enrichment chain to
	// each surviving row on its way into the load staging area.
	var caseIDs []string
	sink := dedup.SinkFunc(func(row types.Row) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		row = o.applyDatePolicy(row)
		row, err := o.enrich.Apply(row)
		if err != nil {
			return err
		}
		if row.Table == types.TableDemo {
			caseIDs = append(caseIDs, row.CaseID)
		}
		return dedupStage.Store(row)
	})
	counts, err := dedup.Run(rawStage, sink, nulls)
	if err != nil {
		retire(true)
		return fail(err)
	}
	if err := dedupStage.FlushAll(); err != nil {
		retire(true)
		return fail(err)
	}

	// Load: nullifications, then delta-merge, then checks, all inside
	// one transaction.
	if err := o.loadStaged(ctx, logger, loadID, dedupStage, nulls, caseIDs, counts); err != nil {
		retire(true)
		return fail(err)
	}

	retire(false)
	quarterSuccesses.WithLabelValues(quarter).Inc()
	nullificationsApplied.WithLabelValues(quarter).Add(float64(len(nulls)))
	quarterDurations.WithLabelValues(quarter).Observe(time.Since(start).Seconds())
	logger.Info("quarter load succeeded")
	return nil
}

func (o *Orchestrator) loadStaged(
	ctx context.Context,
	logger *log.Entry,
	loadID string,
	dedupStage *stage.Stage,
	nulls types.Nullifications,
	caseIDs []string,
	counts []types.RowCount,
) error {
	txn, err := o.backend.BeginTxn(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = txn.Rollback(context.WithoutCancel(ctx)) }()

	if len(nulls) > 0 {
		doomed := make([]string, 0, len(nulls))
		for caseID := range nulls {
			doomed = append(doomed, caseID)
		}
		sort.Strings(doomed)
		deleted, err := txn.DeleteCases(ctx, doomed)
		if err != nil {
			return err
		}
		logger.WithFields(log.Fields{
			"nullified": len(doomed),
			"deleted":   deleted,
		}).Info("applied nullifications")
	}

	loads := make([]target.TableLoad, 0, len(types.AllTables))
	for _, table := range types.AllTables {
		if chunks := dedupStage.Chunks(table); len(chunks) > 0 {
			loads = append(loads, target.TableLoad{Table: table, Chunks: chunks})
		}
	}
	merge, err := txn.DeltaMerge(ctx, caseIDs, loads)
	if err != nil {
		return err
	}

	// Row-count drift between the dedup output and what the backend
	// accepted indicates a bulk-path fault; treat it like a failed DQ
	// check.
	for _, c := range counts {
		if merge.Loaded[c.Table] != c.RowsAfterDedup {
			return errors.Wrapf(target.ErrDqFail,
				"row-count drift on %s: staged %d, loaded %d",
				c.Table, c.RowsAfterDedup, merge.Loaded[c.Table])
		}
	}

	if _, err := txn.ExecDqChecks(ctx, counts); err != nil {
		return err
	}

	// Couple the SUCCESS metadata row to the data commit when both the
	// backend can host it in the same transaction and the history
	// store's writes can ride that transaction.
	var mq types.Querier
	if _, ok := o.history.(txnCoupled); ok {
		if mw, ok := txn.(target.MetadataWriter); ok {
			mq = mw.MetadataQuerier()
		}
	}
	if mq != nil {
		if err := o.history.LoadSucceeded(ctx, mq, loadID, counts); err != nil {
			return err
		}
	}
	if err := txn.Commit(ctx); err != nil {
		return err
	}
	if mq == nil {
		if err := o.history.LoadSucceeded(ctx, nil, loadID, counts); err != nil {
			return err
		}
	}

	logger.WithFields(log.Fields{
		"replaced": merge.Deleted,
		"cases":    len(caseIDs),
	}).Debug("committed delta merge")
	return nil
}

// parseArchive walks the zip members, routing each to the ASCII table
// parser, the nullification extractor, or the XML stream parser by
// member name.
func (o *Orchestrator) parseArchive(
	ctx context.Context, archive string, rawStage *stage.Stage, nulls types.Nullifications,
) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return errors.Wrapf(integrity.ErrArchiveCorrupt, "could not reopen %s: %v", archive, err)
	}
	defer zr.Close()

	store := func(row types.Row) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return rawStage.Store(row)
	}

	for _, member := range zr.File {
		name := filepath.Base(member.Name)
		upper := strings.ToUpper(name)

		switch {
		case ascii.IsNullificationFile(name):
			rc, err := member.Open()
			if err != nil {
				return errors.Wrapf(err, "could not open member %s", member.Name)
			}
			found, err := ascii.ExtractNullifications(rc)
			_ = rc.Close()
			if err != nil {
				return err
			}
			for caseID := range found {
				nulls.Add(caseID)
			}

		case strings.HasSuffix(upper, ".TXT"):
			table, ok := tableForMember(upper)
			if !ok {
				log.WithField("member", member.Name).Debug("skipping unrecognized archive member")
				continue
			}
			rc, err := member.Open()
			if err != nil {
				return errors.Wrapf(err, "could not open member %s", member.Name)
			}
			err = ascii.ParseTable(member.Name, table, rc, store)
			_ = rc.Close()
			if err != nil {
				return err
			}

		case strings.HasSuffix(upper, ".XML"):
			rc, err := member.Open()
			if err != nil {
				return errors.Wrapf(err, "could not open member %s", member.Name)
			}
			err = faersxml.ParseReleaseXML(member.Name, rc, store, nulls)
			_ = rc.Close()
			if err != nil {
				return err
			}

		default:
			log.WithField("member", member.Name).Debug("skipping unrecognized archive member")
		}
	}
	return nil
}

// applyDatePolicy normalizes a DEMO row's FDA_DT per the configured
// partial-date policy.
func (o *Orchestrator) applyDatePolicy(row types.Row) types.Row {
	if o.cfg.PartialDatePolicy != DatePolicyPad || row.Table != types.TableDemo {
		return row
	}
	if padded := fdadate.Parse(row.FdaDt).Pad(); padded != "" {
		fields := make(map[string]string, len(row.Fields))
		for k, v := range row.Fields {
			fields[k] = v
		}
		fields["fda_dt"] = padded
		row.Fields = fields
		row.FdaDt = padded
	}
	return row
}

// tableForMember maps an upper-cased ASCII member name like DEMO23Q1.TXT
// to its FAERS table.
func tableForMember(upper string) (types.Table, bool) {
	for _, table := range types.AllTables {
		if strings.HasPrefix(upper, strings.ToUpper(string(table))) {
			return table, true
		}
	}
	return "", false
}

// failureReason condenses an error into the reason recorded in
// load_history.
func failureReason(ctx context.Context, err error) string {
	switch {
	case errors.Is(err, context.Canceled), ctx.Err() != nil:
		return reasonCancelled
	case errors.Is(err, integrity.ErrArchiveCorrupt):
		return reasonArchiveCorrupt
	}
	msg := err.Error()
	if len(msg) > 500 {
		msg = msg[:500]
	}
	return msg
}
