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

// Package main implements the forgectl CLI for configuring the service and
// indexing the model tree.
//
// Usage:
//
//	forgectl config <models> <build> <database> <limit>   Persist configuration
//	forgectl index [--restore] [--strict]                 Rebuild the metadata store
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	flag "github.com/spf13/pflag"

	"forge/internal/logging"
)

func main() {
	var (
		logLevel = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		noColor  = flag.Bool("no-color", false, "Disable color output")
	)

	// Stop parsing at the first non-flag argument (the command name) so
	// subcommand flags like `index --restore` reach the subcommand parser.
	flag.SetInterspersed(false)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `forgectl - model tree indexer for the forge build service

Usage:
  forgectl [flags] <command> [args]

Commands:
  config <models> <build> <database> <limit>   Persist service configuration
  index [--restore] [--strict]                 Rebuild the metadata store from the model tree

Flags:
`)
		flag.PrintDefaults()
	}
	flag.Parse()

	slog.SetDefault(logging.New(*logLevel))
	if *noColor {
		color.NoColor = true
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	var err error
	switch args[0] {
	case "config":
		err = runConfig(args[1:])
	case "index":
		err = runIndex(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q. Use `forgectl --help` for more information.\n", args[0])
		os.Exit(1)
	}

	if err != nil {
		color.Red("Failed to %s: %v", args[0], err)
		os.Exit(1)
	}
}
