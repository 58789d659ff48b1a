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
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/fatih/color"

	"forge/pkg/config"
)

// runConfig persists the four configuration values for later index and
// server runs.
func runConfig(args []string) error {
	if len(args) != 4 {
		return fmt.Errorf("expected 4 arguments: <models> <build> <database> <limit>")
	}

	modelsPath, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("failed to resolve models path: %w", err)
	}
	buildPath, err := filepath.Abs(args[1])
	if err != nil {
		return fmt.Errorf("failed to resolve build path: %w", err)
	}
	databasePath, err := filepath.Abs(args[2])
	if err != nil {
		return fmt.Errorf("failed to resolve database path: %w", err)
	}
	limit, err := strconv.ParseInt(args[3], 10, 64)
	if err != nil {
		return fmt.Errorf("model limit must be an integer: %w", err)
	}

	cfg := config.Config{
		ModelsPath:   modelsPath,
		BuildPath:    buildPath,
		DatabasePath: databasePath,
		ModelLimit:   limit,
	}
	if err := config.Save(cfg); err != nil {
		return err
	}

	path, err := config.Path()
	if err != nil {
		return err
	}
	color.Green("Configuration written to %s", path)
	return nil
}
