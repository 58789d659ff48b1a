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

// Package schema parses model manifests into the typed parameter schema.
//
// A parameter entry is a free-form mapping carrying a name, a default and
// optional restriction keys (lower, upper, length, allowed). The variant is
// chosen by probing the dynamic type of the default and checking the
// restriction keys for exactly one valid combination.
package schema

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"forge/pkg/models"
)

// Manifest is the parsed and validated form of a model's manifest.json.
type Manifest struct {
	Name        string
	Date        string
	Description string
	Author      string
	Parts       []ManifestPart
}

// ManifestPart is one declared part with its validated parameter schema.
// Parameter IDs are assigned from the sequence supplied by the caller.
type ManifestPart struct {
	Name       string
	Parameters []models.Parameter
}

// Sequence hands out monotonically increasing IDs across an index pass.
type Sequence struct {
	next int64
}

// Next returns the next ID in the sequence.
func (s *Sequence) Next() int64 {
	id := s.next
	s.next++
	return id
}

// ParseManifest validates manifest bytes into a Manifest. ids allocates
// parameter IDs in declaration order across the whole index pass.
func ParseManifest(data []byte, ids *Sequence) (*Manifest, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("manifest is not valid JSON")
	}
	root := gjson.ParseBytes(data)

	m := &Manifest{
		Name:        root.Get("name").String(),
		Date:        root.Get("date").String(),
		Description: root.Get("description").String(),
		Author:      root.Get("author").String(),
	}
	if m.Name == "" {
		return nil, fmt.Errorf("manifest has no name")
	}
	if _, err := time.Parse("2006-01-02", m.Date); err != nil {
		return nil, fmt.Errorf("manifest date %q is not YYYY-MM-DD: %w", m.Date, err)
	}

	parts := root.Get("parts")
	if !parts.IsArray() {
		return nil, fmt.Errorf("manifest has no parts array")
	}
	for _, part := range parts.Array() {
		name := part.Get("name").String()
		if name == "" {
			return nil, fmt.Errorf("part in model %s has no name", m.Name)
		}
		params, err := parseParameters(part.Get("parameters"), m.Name, ids)
		if err != nil {
			return nil, err
		}
		m.Parts = append(m.Parts, ManifestPart{Name: name, Parameters: params})
	}

	return m, nil
}

// parseParameters validates the parameter entries of one part, dispatching
// on the dynamic type of each entry's default.
func parseParameters(list gjson.Result, modelName string, ids *Sequence) ([]models.Parameter, error) {
	if !list.Exists() {
		return nil, nil
	}
	if !list.IsArray() {
		return nil, fmt.Errorf("parameters of model %s is not an array", modelName)
	}

	var out []models.Parameter
	for _, entry := range list.Array() {
		name := entry.Get("name").String()
		if name == "" {
			return nil, fmt.Errorf("parameter in model %s has no name", modelName)
		}

		def := entry.Get("default")
		lower := entry.Get("lower")
		upper := entry.Get("upper")
		length := entry.Get("length")
		allowed := entry.Get("allowed")

		switch {
		case def.Type == gjson.True || def.Type == gjson.False:
			if present(lower) || present(upper) || present(length) || present(allowed) {
				return nil, &InvalidFormattingError{Name: name}
			}
			out = append(out, models.BoolParameter{
				ParameterID: ids.Next(),
				Name:        name,
				Default:     def.Bool(),
			})

		case isIntLiteral(def):
			p, err := parseIntParameter(name, modelName, def, lower, upper, length, allowed, ids)
			if err != nil {
				return nil, err
			}
			out = append(out, p)

		case def.Type == gjson.Number:
			p, err := parseFloatParameter(name, modelName, def, lower, upper, length, allowed, ids)
			if err != nil {
				return nil, err
			}
			out = append(out, p)

		case def.Type == gjson.String:
			p, err := parseStringParameter(name, modelName, def, lower, upper, length, allowed, ids)
			if err != nil {
				return nil, err
			}
			out = append(out, p)

		default:
			return nil, &UnsupportedTypeError{Name: name}
		}
	}

	return out, nil
}

func parseIntParameter(name, modelName string, def, lower, upper, length, allowed gjson.Result, ids *Sequence) (models.Parameter, error) {
	switch {
	case isIntLiteral(lower) && isIntLiteral(upper) && !present(allowed) && !present(length):
		lo, hi, err := orderBounds(name, modelName, lower.Int(), upper.Int())
		if err != nil {
			return nil, err
		}
		return models.IntRangeParameter{
			ParameterID: ids.Next(),
			Name:        name,
			Default:     def.Int(),
			Lower:       lo,
			Upper:       hi,
		}, nil

	case allowed.IsArray() && !present(lower) && !present(upper) && !present(length):
		var items []int64
		for _, element := range allowed.Array() {
			if !isIntLiteral(element) {
				return nil, &InvalidListError{Name: name}
			}
			v := element.Int()
			if containsInt(items, v) {
				slog.Warn("Ignored duplicate allowed value", "value", v, "parameter", name, "model", modelName)
				continue
			}
			items = append(items, v)
		}
		if len(items) == 0 {
			return nil, &InvalidListError{Name: name}
		}
		return models.IntListParameter{
			ParameterID: ids.Next(),
			Name:        name,
			Default:     def.Int(),
			Items:       items,
		}, nil

	default:
		return nil, &InvalidFormattingError{Name: name}
	}
}

func parseFloatParameter(name, modelName string, def, lower, upper, length, allowed gjson.Result, ids *Sequence) (models.Parameter, error) {
	// Integer literals are accepted wherever a float is expected.
	switch {
	case isNumber(lower) && isNumber(upper) && !present(allowed) && !present(length):
		lo, hi, err := orderFloatBounds(name, modelName, lower.Float(), upper.Float())
		if err != nil {
			return nil, err
		}
		return models.FloatRangeParameter{
			ParameterID: ids.Next(),
			Name:        name,
			Default:     def.Float(),
			Lower:       lo,
			Upper:       hi,
		}, nil

	case allowed.IsArray() && !present(lower) && !present(upper) && !present(length):
		var items []float64
		for _, element := range allowed.Array() {
			if !isNumber(element) {
				return nil, &InvalidListError{Name: name}
			}
			v := element.Float()
			if containsFloat(items, v) {
				slog.Warn("Ignored duplicate allowed value", "value", v, "parameter", name, "model", modelName)
				continue
			}
			items = append(items, v)
		}
		if len(items) == 0 {
			return nil, &InvalidListError{Name: name}
		}
		return models.FloatListParameter{
			ParameterID: ids.Next(),
			Name:        name,
			Default:     def.Float(),
			Items:       items,
		}, nil

	default:
		return nil, &InvalidFormattingError{Name: name}
	}
}

func parseStringParameter(name, modelName string, def, lower, upper, length, allowed gjson.Result, ids *Sequence) (models.Parameter, error) {
	switch {
	case isIntLiteral(length) && !present(lower) && !present(upper) && !present(allowed):
		if length.Int() <= 0 {
			return nil, &InvalidRangeError{Name: name}
		}
		return models.StringLengthParameter{
			ParameterID: ids.Next(),
			Name:        name,
			Default:     def.String(),
			Length:      length.Int(),
		}, nil

	case allowed.IsArray() && !present(lower) && !present(upper) && !present(length):
		var items []string
		for _, element := range allowed.Array() {
			if element.Type != gjson.String {
				return nil, &InvalidListError{Name: name}
			}
			v := element.String()
			if containsString(items, v) {
				slog.Warn("Ignored duplicate allowed value", "value", v, "parameter", name, "model", modelName)
				continue
			}
			items = append(items, v)
		}
		if len(items) == 0 {
			return nil, &InvalidListError{Name: name}
		}
		return models.StringListParameter{
			ParameterID: ids.Next(),
			Name:        name,
			Default:     def.String(),
			Items:       items,
		}, nil

	default:
		return nil, &InvalidFormattingError{Name: name}
	}
}

// orderBounds accepts lower < upper, swaps reversed bounds with a warning
// and rejects equal bounds.
func orderBounds(name, modelName string, lower, upper int64) (int64, int64, error) {
	switch {
	case lower < upper:
		return lower, upper, nil
	case lower > upper:
		slog.Warn("Swapped reversed range bounds", "parameter", name, "model", modelName)
		return upper, lower, nil
	default:
		return 0, 0, &InvalidRangeError{Name: name}
	}
}

func orderFloatBounds(name, modelName string, lower, upper float64) (float64, float64, error) {
	switch {
	case lower < upper:
		return lower, upper, nil
	case lower > upper:
		slog.Warn("Swapped reversed range bounds", "parameter", name, "model", modelName)
		return upper, lower, nil
	default:
		return 0, 0, &InvalidRangeError{Name: name}
	}
}

// isIntLiteral reports whether the value is a JSON number written without a
// fraction or exponent. 5 is an integer literal; 5.0 and 5e0 are not.
func isIntLiteral(r gjson.Result) bool {
	return r.Type == gjson.Number && !strings.ContainsAny(r.Raw, ".eE")
}

func isNumber(r gjson.Result) bool {
	return r.Type == gjson.Number
}

// present reports whether a restriction key was supplied with a value.
// An explicit JSON null counts as absent.
func present(r gjson.Result) bool {
	return r.Exists() && r.Type != gjson.Null
}

func containsInt(s []int64, v int64) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func containsFloat(s []float64, v float64) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func containsString(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
