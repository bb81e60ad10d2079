// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianGraph/pkg/ux"
	"github.com/AleutianAI/AleutianGraph/services/graph/config"
)

// newRootCmd builds the command tree. Each call returns independent flag
// state.
func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	var printer *ux.Printer

	root := &cobra.Command{
		Use:   "aleutiangraph",
		Short: "Train and serve component graphs",
		Long: `aleutiangraph turns a configuration document into a graph of
components, trains it with cached, fingerprinted artifacts and serves
predictions from the trained model.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			printer = ux.NewPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(),
				ux.DetectPersonality(flags.personality, stdoutFile(cmd)))
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", config.DefaultPath(), "Path to the aleutiangraph configuration file")
	pf.IntVar(&flags.workers, "workers", 0, "Maximum concurrently running nodes (0 uses the configured value)")
	pf.BoolVar(&flags.force, "force", false, "Retrain every node, ignoring cached artifacts")
	pf.StringVar(&flags.personality, "personality", "", "Output style: full, minimal or machine")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")

	// withApp runs fn with an opened app and reports its error once.
	withApp := func(fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			a, err := newApp(ctx, flags, printer)
			if err != nil {
				printer.Error(err.Error())
				return err
			}
			defer func() { _ = a.Close() }()

			if err := fn(ctx, a, args); err != nil {
				printer.Error(err.Error())
				return err
			}
			return nil
		}
	}

	root.AddCommand(
		newValidateCmd(withApp),
		newSchemaCmd(withApp),
		newTrainCmd(withApp),
		newPredictCmd(withApp),
		newServeCmd(withApp),
	)
	return root
}

type appRunner func(fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error

// stdoutFile returns the command's output as a file when it is one, for
// terminal detection.
func stdoutFile(cmd *cobra.Command) *os.File {
	if f, ok := cmd.OutOrStdout().(*os.File); ok {
		return f
	}
	return nil
}
