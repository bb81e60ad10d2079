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
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianGraph/services/graph"
	"github.com/AleutianAI/AleutianGraph/services/graph/server"
)

func newServeCmd(run appRunner) *cobra.Command {
	var (
		manifest string
		port     int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve predictions over HTTP",
		Long: `Starts the HTTP server on the configured port. Without a manifest the
server still starts and reports not ready until one is trained.`,
		Args: cobra.NoArgs,
		RunE: run(func(ctx context.Context, a *app, _ []string) error {
			var m *graph.Manifest
			path := a.manifestPath(manifest)
			if fileExists(path) {
				loaded, err := graph.LoadManifest(path)
				if err != nil {
					return err
				}
				m = loaded
				a.printer.Success(fmt.Sprintf("Loaded model trained at %s", m.TrainedAt.Format(time.RFC3339)))
			} else {
				a.printer.Warning(fmt.Sprintf("No manifest at %s; predictions return 503", path))
			}

			if port == 0 {
				port = a.cfg.Server.Port
			}
			gin.SetMode(gin.ReleaseMode)
			h := server.NewHandlers(a.engine, m, a.slog())
			router := server.NewRouter(h, a.cfg.Telemetry.ServiceName)

			a.printer.KeyValue("listening", fmt.Sprintf("http://localhost:%d/v1/graph", port))
			timeout := time.Duration(a.cfg.Server.ShutdownSeconds) * time.Second
			return server.Run(ctx, router, port, timeout, a.slog())
		}),
	}
	cmd.Flags().StringVarP(&manifest, "manifest", "m", "", "Manifest path (defaults to server.manifest from the configuration)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port (defaults to server.port from the configuration)")
	return cmd
}
