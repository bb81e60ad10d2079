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
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianGraph/pkg/ux"
	"github.com/AleutianAI/AleutianGraph/services/graph/recipe"
	"github.com/AleutianAI/AleutianGraph/services/graph/schema"
)

func newValidateCmd(run appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config.yml>",
		Short: "Check that a configuration translates and runs in this environment",
		Long: `Translates the configuration document for both run modes and checks
every component's language support and package dependencies. Nothing
is trained.`,
		Args: cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, a *app, args []string) error {
			doc, err := recipe.Load(args[0])
			if err != nil {
				return err
			}
			for _, mode := range []schema.Mode{schema.ModeTrain, schema.ModePredict} {
				s, err := a.engine.Validate(ctx, doc, mode)
				if err != nil {
					return fmt.Errorf("%s graph: %w", mode, err)
				}
				a.printer.Success(fmt.Sprintf("%s graph: %d nodes, targets %s",
					mode, s.Len(), strings.Join(s.Targets(), ", ")))
			}
			return nil
		}),
	}
}

func newSchemaCmd(run appRunner) *cobra.Command {
	var modeFlag, format string

	cmd := &cobra.Command{
		Use:   "schema <config.yml>",
		Short: "Print the graph a configuration translates to",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, a *app, args []string) error {
			mode, err := schema.ParseMode(modeFlag)
			if err != nil {
				return err
			}
			doc, err := recipe.Load(args[0])
			if err != nil {
				return err
			}
			s, err := a.engine.Validate(ctx, doc, mode)
			if err != nil {
				return err
			}

			switch format {
			case "yaml":
				nodes := make([]schema.Node, 0, s.Len())
				for _, name := range s.TopologicalOrder() {
					n, _ := s.Node(name)
					nodes = append(nodes, n)
				}
				out, err := yaml.Marshal(map[string]any{"mode": s.Mode(), "nodes": nodes})
				if err != nil {
					return fmt.Errorf("marshal schema: %w", err)
				}
				_, err = a.printer.Out().Write(out)
				return err
			case "table":
				printSchemaTable(a.printer, s)
				return nil
			default:
				return fmt.Errorf("unknown format %q (want table or yaml)", format)
			}
		}),
	}
	cmd.Flags().StringVar(&modeFlag, "mode", string(schema.ModeTrain), "Run mode: train or predict")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or yaml")
	return cmd
}

func printSchemaTable(p *ux.Printer, s *schema.Schema) {
	targets := make(map[string]bool)
	for _, t := range s.Targets() {
		targets[t] = true
	}

	rows := make([][]string, 0, s.Len())
	for _, name := range s.TopologicalOrder() {
		n, _ := s.Node(name)
		var inputs []string
		for _, in := range n.Inputs {
			inputs = append(inputs, in.Param+"="+in.From)
		}
		if n.Source {
			inputs = append(inputs, "<input>")
		}
		if n.ResourceFrom != "" {
			inputs = append(inputs, "resource<"+n.ResourceFrom)
		}
		marker := ""
		if targets[name] {
			marker = "target"
		}
		rows = append(rows, []string{name, n.Component, string(n.Kind), strings.Join(inputs, " "), marker})
	}
	p.Title(fmt.Sprintf("%s graph", s.Mode()))
	p.Table([]string{"NODE", "COMPONENT", "KIND", "INPUTS", ""}, rows)
}
