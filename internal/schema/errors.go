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

import "fmt"

// InvalidFormattingError marks a parameter with conflicting or missing
// restriction keys.
type InvalidFormattingError struct {
	Name string
}

func (e *InvalidFormattingError) Error() string {
	return fmt.Sprintf("invalid parameter formatting for '%s'", e.Name)
}

// UnsupportedTypeError marks a parameter whose default has a type outside
// the variant set.
type UnsupportedTypeError struct {
	Name string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported parameter type for '%s'", e.Name)
}

// InvalidRangeError marks equal range bounds or a non-positive length.
type InvalidRangeError struct {
	Name string
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid parameter restriction range for '%s'", e.Name)
}

// InvalidListError marks an allow-list that is empty or holds an element of
// the wrong type.
type InvalidListError struct {
	Name string
}

func (e *InvalidListError) Error() string {
	return fmt.Sprintf("invalid parameter list for '%s'", e.Name)
}

// PartNotPresentError marks a manifest part with no matching module in the
// SCAD script.
type PartNotPresentError struct {
	Part string
}

func (e *PartNotPresentError) Error() string {
	return fmt.Sprintf("part '%s' not present in script", e.Part)
}

// ParameterNotPresentError marks a declared parameter missing from the
// script module's signature.
type ParameterNotPresentError struct {
	Part      string
	Parameter string
}

func (e *ParameterNotPresentError) Error() string {
	return fmt.Sprintf("parameter '%s' not present in part '%s'", e.Parameter, e.Part)
}
