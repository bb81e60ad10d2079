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
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianGraph/pkg/ux"
	"github.com/AleutianAI/AleutianGraph/services/graph"
	"github.com/AleutianAI/AleutianGraph/services/graph/components"
	"github.com/AleutianAI/AleutianGraph/services/graph/executor"
	"github.com/AleutianAI/AleutianGraph/services/graph/recipe"
	"github.com/AleutianAI/AleutianGraph/services/graph/schema"
)

func newTrainCmd(run appRunner) *cobra.Command {
	var (
		out         string
		finetune    bool
		diagnostics bool
	)

	cmd := &cobra.Command{
		Use:   "train <config.yml> <data.yml>",
		Short: "Train a graph and write its manifest",
		Long: `Trains every trainable node of the configuration on the training data.
Nodes whose inputs and configuration are unchanged since a previous run
are restored from the resource store instead of retrained. The manifest
needed for prediction is written to --out.`,
		Args: cobra.ExactArgs(2),
		RunE: run(func(ctx context.Context, a *app, args []string) error {
			doc, err := recipe.Load(args[0])
			if err != nil {
				return err
			}
			td, err := components.LoadTrainingData(args[1])
			if err != nil {
				return err
			}

			res, err := a.engine.Train(ctx, doc, td, graph.RunOptions{Finetune: finetune, Diagnostics: diagnostics})
			if res != nil && res.Result != nil {
				printTrainNodes(a.printer, res.Schema, res.Result)
			}
			if err != nil {
				return fmt.Errorf("train: %w", err)
			}

			path := a.manifestPath(out)
			if err := graph.SaveManifest(res.Manifest, path); err != nil {
				return err
			}
			stats := a.store.Stats()
			a.slog().Info("manifest written",
				slog.String("path", path),
				slog.Int64("artifacts_written", stats.Writes),
			)
			a.printer.Success(fmt.Sprintf("Trained %d nodes in %s (%d cached, %d written)",
				len(res.Manifest.Resources), res.Result.Duration.Round(time.Millisecond),
				len(res.Result.CacheHits), stats.Writes))
			a.printer.KeyValue("manifest", path)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Manifest path (defaults to server.manifest from the configuration)")
	cmd.Flags().BoolVar(&finetune, "finetune", false, "Pass the finetuning flag to components")
	cmd.Flags().BoolVar(&diagnostics, "diagnostics", false, "Ask components to record diagnostic data")
	return cmd
}

// printTrainNodes lists each train node as trained, cached, failed or
// skipped.
func printTrainNodes(p *ux.Printer, s *schema.Schema, res *executor.Result) {
	if s == nil {
		return
	}
	cached := make(map[string]bool, len(res.CacheHits))
	for _, name := range res.CacheHits {
		cached[name] = true
	}
	skipped := make(map[string]bool, len(res.Skipped))
	for _, name := range res.Skipped {
		skipped[name] = true
	}

	for _, name := range s.TopologicalOrder() {
		n, _ := s.Node(name)
		if n.Kind != schema.KindTrain {
			continue
		}
		switch {
		case name == res.FailedNode:
			p.Status(name, ux.IconError, "failed")
		case skipped[name]:
			p.Status(name, ux.IconWarning, "skipped")
		case cached[name]:
			p.Status(name, ux.IconCached, "cached")
		default:
			if _, ok := res.Resources[name]; ok {
				p.Status(name, ux.IconSuccess, res.NodeDurations[name].Round(time.Millisecond).String())
			}
		}
	}
}
