// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command aleutiangraph trains and serves component graphs described by a
// configuration document.
//
// Usage:
//
//	aleutiangraph validate config.yml
//	aleutiangraph schema config.yml --mode predict --format yaml
//	aleutiangraph train config.yml data.yml --out model.json
//	aleutiangraph predict "book a flight to Paris" --manifest model.json
//	aleutiangraph serve --manifest model.json
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
