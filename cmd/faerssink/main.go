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

// faerssink loads FDA FAERS quarterly releases into a relational
// store. The command tree is a thin binding over the orchestrator; the
// pipeline itself lives under internal/.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/faers-sink/faers-sink/internal/acquire/integrity"
	"github.com/faers-sink/faers-sink/internal/orchestrator"
	"github.com/faers-sink/faers-sink/internal/target"
	_ "github.com/faers-sink/faers-sink/internal/target/legacyredshift"
	_ "github.com/faers-sink/faers-sink/internal/target/pgbulk"
)

// Exit codes per the operational contract.
const (
	exitOK          = 0
	exitGeneric     = 1
	exitConfig      = 2
	exitAcquisition = 3
	exitParse       = 4
	exitLoad        = 5
	exitIntegrity   = 6
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := &orchestrator.Config{}
	var logFormat, logLevel string
	var quarters []string
	var mode string

	root := &cobra.Command{
		Use:           "faerssink",
		Short:         "faerssink loads FAERS quarterly releases into a relational store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if err := configureLogging(logFormat, logLevel); err != nil {
				return errors.Wrapf(errConfig, "%v", err)
			}
			if err := cfg.Preflight(); err != nil {
				return errors.Wrapf(errConfig, "%v", err)
			}
			return nil
		},
	}
	cfg.Bind(root.PersistentFlags())
	root.PersistentFlags().StringVar(&logFormat, "logFormat", "text", "text or json")
	root.PersistentFlags().StringVar(&logLevel, "logLevel", "info", "DEBUG, INFO, WARN, or ERROR")

	db := &cobra.Command{Use: "db", Short: "target store management"}
	db.AddCommand(
		&cobra.Command{
			Use:   "init",
			Short: "create the FAERS tables and process metadata if absent",
			RunE: func(cmd *cobra.Command, _ []string) error {
				backend, cleanup, err := orchestrator.ProvideBackend(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				defer cleanup()
				return backend.PrepareSchema(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "verify",
			Short: "run the post-load data-quality checks against loaded state",
			RunE: func(cmd *cobra.Command, _ []string) error {
				o, cleanup, err := orchestrator.Start(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				defer cleanup()
				report, err := o.Verify(cmd.Context())
				for _, check := range report.Checks {
					fmt.Printf("%-24s %v %s\n", check.Name, check.Passed, check.Detail)
				}
				return err
			},
		},
	)
	root.AddCommand(db)

	download := &cobra.Command{
		Use:   "download",
		Short: "acquire release archives without loading them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			o, cleanup, err := orchestrator.Start(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()
			if len(quarters) == 0 {
				quarters = []string{""}
			}
			for _, q := range quarters {
				path, err := o.Download(cmd.Context(), q)
				if err != nil {
					return err
				}
				fmt.Println(path)
			}
			return nil
		},
	}
	download.Flags().StringSliceVar(&quarters, "quarter", nil,
		"quarter(s) to download, e.g. 2023Q1; latest advertised when omitted")
	root.AddCommand(download)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "execute load(s) against the target",
		RunE: func(cmd *cobra.Command, _ []string) error {
			o, cleanup, err := orchestrator.Start(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()
			switch mode {
			case "delta":
				return o.RunDelta(cmd.Context())
			case "partial":
				if len(quarters) == 0 {
					return errors.New("partial mode requires at least one --quarter")
				}
				return o.RunPartial(cmd.Context(), quarters)
			case "full":
				return o.RunFull(cmd.Context())
			default:
				return errors.Errorf("unknown mode %q", mode)
			}
		},
	}
	runCmd.Flags().StringVar(&mode, "mode", "delta", "delta, partial, or full")
	runCmd.Flags().StringSliceVar(&quarters, "quarter", nil, "quarter(s) for partial mode")
	root.AddCommand(runCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		log.WithError(err).Error("exiting")
		return exitCode(err)
	}
	return exitOK
}

// errConfig marks a configuration-class failure for exit-code mapping.
var errConfig = errors.New("configuration error")

func configureLogging(format, level string) error {
	switch format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "text":
		log.SetFormatter(&log.TextFormatter{})
	default:
		return errors.Errorf("unknown logFormat %q", format)
	}
	parsed, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetLevel(parsed)
	return nil
}

// exitCode maps an error to the documented exit code family.
func exitCode(err error) int {
	switch {
	case errors.Is(err, errConfig):
		return exitConfig
	case errors.Is(err, integrity.ErrArchiveCorrupt):
		return exitIntegrity
	case errors.Is(err, orchestrator.ErrNotAdvertised):
		return exitAcquisition
	case errors.Is(err, orchestrator.ErrParse):
		return exitParse
	case errors.Is(err, target.ErrAuth),
		errors.Is(err, target.ErrUnreachable),
		errors.Is(err, target.ErrSchemaConflict),
		errors.Is(err, target.ErrTxnFailed),
		errors.Is(err, target.ErrBulkFormat),
		errors.Is(err, target.ErrConstraint),
		errors.Is(err, target.ErrDqFail):
		return exitLoad
	default:
		return exitGeneric
	}
}
