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

package schema

import (
	"fmt"
	"os"
	"strings"
)

// ValidateScad checks each manifest part against the script's module
// declarations: the module must exist and its signature must name every
// declared parameter. Invoked only for strict index runs.
func ValidateScad(parts []ManifestPart, scadPath string) error {
	data, err := os.ReadFile(scadPath)
	if err != nil {
		return fmt.Errorf("failed to read script %s: %w", scadPath, err)
	}

	modules := scanModules(string(data))

	for _, part := range parts {
		signature, ok := modules[part.Name]
		if !ok {
			return &PartNotPresentError{Part: part.Name}
		}
		for _, param := range part.Parameters {
			if !containsString(signature, param.ParamName()) {
				return &ParameterNotPresentError{Part: part.Name, Parameter: param.ParamName()}
			}
		}
	}

	return nil
}

// scanModules extracts module declarations of the form
// `module name(a, b=1, ...)` into a name → parameter-names map.
func scanModules(script string) map[string][]string {
	modules := make(map[string][]string)

	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		rest, ok := strings.CutPrefix(trimmed, "module ")
		if !ok {
			continue
		}
		name, args, ok := strings.Cut(rest, "(")
		if !ok {
			continue
		}
		args, _, ok = strings.Cut(args, ")")
		if !ok {
			continue
		}

		var params []string
		for _, arg := range strings.Split(args, ",") {
			param, _, _ := strings.Cut(arg, "=")
			if param = strings.TrimSpace(param); param != "" {
				params = append(params, param)
			}
		}
		modules[strings.TrimSpace(name)] = params
	}

	return modules
}
