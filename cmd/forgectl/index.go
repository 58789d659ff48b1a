// Forge is a parametric 3D-model build service.
// Copyright (C) 2025  Matthew Burns
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	flag "github.com/spf13/pflag"

	"forge/internal/database"
	"forge/internal/indexer"
	"forge/internal/metrics"
	"forge/pkg/config"
)

// runIndex executes the index command: it rebuilds the metadata store and
// the workspace from the configured model tree. The indexer must not run
// while the server is up.
//
// Flags:
//   - --restore: carry cached instances through the re-index
//   - --strict: validate manifest parts against the script's modules
//   - --metrics-addr: HTTP address for Prometheus metrics (default: disabled)
func runIndex(args []string) error {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	restore := fs.Bool("restore", false, "Restore the cached instances after re-indexing")
	strict := fs.Bool("strict", false, "Validate declared parts against the SCAD script")
	metricsAddr := fs.String("metrics-addr", "", "HTTP listen address for Prometheus metrics (empty to disable)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.ModelsPath == "" || cfg.BuildPath == "" || cfg.DatabasePath == "" {
		return fmt.Errorf("not configured; run `forgectl config <models> <build> <database> <limit>` first")
	}

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.Migrate(ctx); err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	opts := indexer.Options{
		Restore: *restore,
		Strict:  *strict,
		Progress: func(done, total int, name string) {
			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetDescription("Indexing models"),
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionShowCount(),
					progressbar.OptionClearOnFinish(),
				)
			}
			bar.Describe(name)
			_ = bar.Add(1)
		},
	}

	if err := indexer.New(db, cfg).Run(ctx, opts); err != nil {
		return err
	}

	color.Green("Indexed %s", cfg.ModelsPath)
	return nil
}
