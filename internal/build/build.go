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

// Package build materializes mesh artifacts by piping a synthesized SCAD
// call into the external compiler.
package build

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"forge/pkg/models"
)

// DefaultCompiler is the mesh compiler binary invoked unless overridden.
const DefaultCompiler = "openscad"

// ScadError reports a compiler run that exited non-zero. The partial output
// at Path has already been removed when this error is returned.
type ScadError struct {
	Path string
}

func (e *ScadError) Error() string {
	return fmt.Sprintf("could not generate part instance (path: %s)", e.Path)
}

// Driver invokes the external compiler inside a workspace directory.
type Driver struct {
	Compiler  string
	Workspace string
}

// New returns a Driver using the default compiler binary.
func New(workspace string) *Driver {
	return &Driver{Compiler: DefaultCompiler, Workspace: workspace}
}

// CommandText synthesizes the SCAD snippet piped to the compiler:
// `use <ABS_SCRIPT_PATH>;PART(name1=v1, name2=v2);`.
func CommandText(scadPath, partName string, values []models.NamedValue) string {
	var args strings.Builder
	for i, v := range values {
		if i > 0 {
			args.WriteString(", ")
		}
		args.WriteString(v.Name)
		args.WriteString("=")
		args.WriteString(v.Value.Render())
	}

	return fmt.Sprintf("use <%s>;%s(%s);", scadPath, partName, args.String())
}

// Build runs the compiler with commandText on stdin, writing the artifact to
// outRel below the workspace. A failed or cancelled run leaves no partial
// output behind.
func (d *Driver) Build(ctx context.Context, commandText, outRel string) error {
	outPath := filepath.Join(d.Workspace, outRel)

	shellCmd := fmt.Sprintf(`echo "%s" | %s -o %s /dev/stdin`, commandText, d.Compiler, outPath)
	cmd := exec.CommandContext(ctx, "sh", "-c", shellCmd)

	if err := cmd.Run(); err != nil {
		if removeErr := os.Remove(outPath); removeErr != nil && !os.IsNotExist(removeErr) {
			slog.Error("Failed to remove partial artifact", "path", outPath, "error", removeErr)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &ScadError{Path: outPath}
	}

	return nil
}

// Dimensions scans the artifact at outRel for `vertex x y z` lines and
// returns the bounding-box extent per axis. The running minima and maxima
// start at zero, so the box always includes the origin; meshes entirely on
// one side of an axis report the distance to the origin on that axis.
func (d *Driver) Dimensions(outRel string) ([3]float64, error) {
	var dims [3]float64

	f, err := os.Open(filepath.Join(d.Workspace, outRel))
	if err != nil {
		return dims, fmt.Errorf("failed to open artifact: %w", err)
	}
	defer f.Close()

	var min, max [3]float64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || fields[0] != "vertex" {
			continue
		}
		if len(fields) < 4 {
			return dims, fmt.Errorf("malformed vertex line in %s", outRel)
		}
		for axis := 0; axis < 3; axis++ {
			v, err := strconv.ParseFloat(fields[axis+1], 64)
			if err != nil {
				return dims, fmt.Errorf("failed to parse vertex coordinate: %w", err)
			}
			if v < min[axis] {
				min[axis] = v
			} else if v > max[axis] {
				max[axis] = v
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return dims, fmt.Errorf("failed to read artifact: %w", err)
	}

	for axis := 0; axis < 3; axis++ {
		dims[axis] = max[axis] - min[axis]
	}
	return dims, nil
}
