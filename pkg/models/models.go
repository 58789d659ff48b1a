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

package models

import (
	"encoding/json"
	"strconv"
)

// Model represents one parametric design: a manifest, a SCAD script and a
// preview image, discovered as a directory under the model root.
type Model struct {
	ID           int64  `json:"model_id" db:"model_id"`
	Name         string `json:"name" db:"name"`
	CreationDate string `json:"creation_date" db:"creation_date"`
	Description  string `json:"description" db:"description"`
	Author       string `json:"author" db:"author"`
	ImagePath    string `json:"image_path" db:"image_path"`
	ScadPath     string `json:"script_path" db:"scad_path"`
	Parts        []Part `json:"parts,omitempty"`
}

// Part is a named callable unit inside a model's SCAD script.
type Part struct {
	ID         int64       `json:"part_id" db:"part_id"`
	Name       string      `json:"name" db:"name"`
	ModelID    int64       `json:"-" db:"model_id"`
	Parameters []Parameter `json:"parameters,omitempty"`
}

// Parameter kinds, used as the JSON discriminator on the tagged variants.
const (
	KindBool         = "bool"
	KindIntRange     = "int_range"
	KindFloatRange   = "float_range"
	KindStringLength = "string_length"
	KindIntList      = "int_list"
	KindFloatList    = "float_list"
	KindStringList   = "string_list"
)

// Parameter is the tagged variant over the seven parameter kinds. Each
// variant is owned by exactly one Part and stored in its own table.
type Parameter interface {
	Kind() string
	ID() int64
	ParamName() string
}

// BoolParameter has no restriction beyond its type.
type BoolParameter struct {
	ParameterID int64  `json:"parameter_id"`
	Name        string `json:"name"`
	Default     bool   `json:"default"`
}

func (p BoolParameter) Kind() string      { return KindBool }
func (p BoolParameter) ID() int64         { return p.ParameterID }
func (p BoolParameter) ParamName() string { return p.Name }

// IntRangeParameter restricts an integer to lower <= v <= upper.
type IntRangeParameter struct {
	ParameterID int64  `json:"parameter_id"`
	Name        string `json:"name"`
	Default     int64  `json:"default"`
	Lower       int64  `json:"lower"`
	Upper       int64  `json:"upper"`
}

func (p IntRangeParameter) Kind() string      { return KindIntRange }
func (p IntRangeParameter) ID() int64         { return p.ParameterID }
func (p IntRangeParameter) ParamName() string { return p.Name }

// FloatRangeParameter restricts a float to lower <= v <= upper.
type FloatRangeParameter struct {
	ParameterID int64   `json:"parameter_id"`
	Name        string  `json:"name"`
	Default     float64 `json:"default"`
	Lower       float64 `json:"lower"`
	Upper       float64 `json:"upper"`
}

func (p FloatRangeParameter) Kind() string      { return KindFloatRange }
func (p FloatRangeParameter) ID() int64         { return p.ParameterID }
func (p FloatRangeParameter) ParamName() string { return p.Name }

// StringLengthParameter restricts a string to at most Length characters.
type StringLengthParameter struct {
	ParameterID int64  `json:"parameter_id"`
	Name        string `json:"name"`
	Default     string `json:"default"`
	Length      int64  `json:"length"`
}

func (p StringLengthParameter) Kind() string      { return KindStringLength }
func (p StringLengthParameter) ID() int64         { return p.ParameterID }
func (p StringLengthParameter) ParamName() string { return p.Name }

// IntListParameter restricts an integer to an explicit allow-list.
type IntListParameter struct {
	ParameterID int64   `json:"parameter_id"`
	Name        string  `json:"name"`
	Default     int64   `json:"default"`
	Items       []int64 `json:"items"`
}

func (p IntListParameter) Kind() string      { return KindIntList }
func (p IntListParameter) ID() int64         { return p.ParameterID }
func (p IntListParameter) ParamName() string { return p.Name }

// FloatListParameter restricts a float to an explicit allow-list.
type FloatListParameter struct {
	ParameterID int64     `json:"parameter_id"`
	Name        string    `json:"name"`
	Default     float64   `json:"default"`
	Items       []float64 `json:"items"`
}

func (p FloatListParameter) Kind() string      { return KindFloatList }
func (p FloatListParameter) ID() int64         { return p.ParameterID }
func (p FloatListParameter) ParamName() string { return p.Name }

// StringListParameter restricts a string to an explicit allow-list.
type StringListParameter struct {
	ParameterID int64    `json:"parameter_id"`
	Name        string   `json:"name"`
	Default     string   `json:"default"`
	Items       []string `json:"items"`
}

func (p StringListParameter) Kind() string      { return KindStringList }
func (p StringListParameter) ID() int64         { return p.ParameterID }
func (p StringListParameter) ParamName() string { return p.Name }

func tagged(kind string, v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	m["kind"] = kind
	return json.Marshal(m)
}

// MarshalJSON adds the "kind" discriminator so the HTTP surface serves a
// self-describing variant.
func (p BoolParameter) MarshalJSON() ([]byte, error) {
	type plain BoolParameter
	return tagged(KindBool, plain(p))
}

func (p IntRangeParameter) MarshalJSON() ([]byte, error) {
	type plain IntRangeParameter
	return tagged(KindIntRange, plain(p))
}

func (p FloatRangeParameter) MarshalJSON() ([]byte, error) {
	type plain FloatRangeParameter
	return tagged(KindFloatRange, plain(p))
}

func (p StringLengthParameter) MarshalJSON() ([]byte, error) {
	type plain StringLengthParameter
	return tagged(KindStringLength, plain(p))
}

func (p IntListParameter) MarshalJSON() ([]byte, error) {
	type plain IntListParameter
	return tagged(KindIntList, plain(p))
}

func (p FloatListParameter) MarshalJSON() ([]byte, error) {
	type plain FloatListParameter
	return tagged(KindFloatList, plain(p))
}

func (p StringListParameter) MarshalJSON() ([]byte, error) {
	type plain StringListParameter
	return tagged(KindStringList, plain(p))
}

// Instance records one materialized artifact. Path is relative to the build
// workspace and doubles as the cache key. Age is the insertion sequence and
// breaks eviction ties toward the oldest entry.
type Instance struct {
	Path        string `json:"path" db:"path"`
	CommandText string `json:"command_text" db:"command_text"`
	Usage       int64  `json:"usage" db:"usage"`
	Age         int64  `json:"age" db:"age"`
	PartID      int64  `json:"part_id" db:"part_id"`
}

// ValueKind discriminates the request-time value union.
type ValueKind int

const (
	ValueBool ValueKind = iota
	ValueInt
	ValueFloat
	ValueString
)

// ParamValue is a concrete value supplied for one parameter in a generate
// request. Exactly one field matching Kind is meaningful.
type ParamValue struct {
	Kind  ValueKind
	Bool  bool
	Int   int64
	Float float64
	Str   string
}

// BoolValue returns a ParamValue holding a bool.
func BoolValue(v bool) ParamValue { return ParamValue{Kind: ValueBool, Bool: v} }

// IntValue returns a ParamValue holding an int64.
func IntValue(v int64) ParamValue { return ParamValue{Kind: ValueInt, Int: v} }

// FloatValue returns a ParamValue holding a float64.
func FloatValue(v float64) ParamValue { return ParamValue{Kind: ValueFloat, Float: v} }

// StringValue returns a ParamValue holding a string.
func StringValue(v string) ParamValue { return ParamValue{Kind: ValueString, Str: v} }

// Render converts the value to its canonical string form: integers decimal,
// floats in Go's shortest decimal form, booleans true/false, strings
// verbatim. Both the artifact key and the SCAD call use this rendering, so
// equivalent parameterizations always collapse to the same artifact.
func (v ParamValue) Render() string {
	switch v.Kind {
	case ValueBool:
		return strconv.FormatBool(v.Bool)
	case ValueInt:
		return strconv.FormatInt(v.Int, 10)
	case ValueFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	default:
		return v.Str
	}
}

// NamedValue pairs a parameter name with its supplied value, in schema order.
type NamedValue struct {
	Name  string
	Value ParamValue
}
