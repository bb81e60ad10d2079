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
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianGraph/services/graph"
)

func newPredictCmd(run appRunner) *cobra.Command {
	var (
		manifest    string
		diagnostics bool
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "predict <text...>",
		Short: "Run a trained graph on one message",
		Args:  cobra.MinimumNArgs(1),
		RunE: run(func(ctx context.Context, a *app, args []string) error {
			path := a.manifestPath(manifest)
			if !fileExists(path) {
				return fmt.Errorf("no manifest at %s: run 'aleutiangraph train' first", path)
			}
			m, err := graph.LoadManifest(path)
			if err != nil {
				return err
			}

			res, err := a.engine.Predict(ctx, m, strings.Join(args, " "), graph.RunOptions{Diagnostics: diagnostics})
			if err != nil {
				return fmt.Errorf("predict: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(a.printer.Out())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{"run_id": res.RunID, "outputs": res.Outputs})
			}

			names := make([]string, 0, len(res.Outputs))
			for name := range res.Outputs {
				names = append(names, name)
			}
			sort.Strings(names)
			a.printer.KeyValue("run_id", res.RunID)
			for _, name := range names {
				out, err := json.Marshal(res.Outputs[name])
				if err != nil {
					return fmt.Errorf("encode output of %s: %w", name, err)
				}
				a.printer.KeyValue(name, string(out))
			}
			return nil
		}),
	}
	cmd.Flags().StringVarP(&manifest, "manifest", "m", "", "Manifest path (defaults to server.manifest from the configuration)")
	cmd.Flags().BoolVar(&diagnostics, "diagnostics", false, "Ask components to record diagnostic data")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the outputs as JSON")
	return cmd
}
