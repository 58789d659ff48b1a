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
	"testing"
)

func TestRender(t *testing.T) {
	cases := []struct {
		value ParamValue
		want  string
	}{
		{BoolValue(true), "true"},
		{BoolValue(false), "false"},
		{IntValue(42), "42"},
		{IntValue(-7), "-7"},
		{FloatValue(2.5), "2.5"},
		{FloatValue(10), "10"},
		{StringValue("matte"), "matte"},
	}
	for _, c := range cases {
		if got := c.value.Render(); got != c.want {
			t.Errorf("Render() = %q, want %q", got, c.want)
		}
	}
}

func TestParameterTaggedJSON(t *testing.T) {
	p := IntRangeParameter{ParameterID: 3, Name: "width", Default: 10, Lower: 1, Upper: 100}
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["kind"] != "int_range" {
		t.Fatalf("expected kind int_range, got %v", m["kind"])
	}
	if m["name"] != "width" || m["lower"] != float64(1) {
		t.Fatalf("unexpected payload: %v", m)
	}
}

func TestParameterInterfaceRoundTrip(t *testing.T) {
	params := []Parameter{
		BoolParameter{ParameterID: 0, Name: "a"},
		IntRangeParameter{ParameterID: 1, Name: "b"},
		FloatListParameter{ParameterID: 2, Name: "c", Items: []float64{1}},
		StringLengthParameter{ParameterID: 3, Name: "d", Length: 4},
	}
	kinds := []string{KindBool, KindIntRange, KindFloatList, KindStringLength}
	for i, p := range params {
		if p.Kind() != kinds[i] {
			t.Errorf("parameter %d: kind %s, want %s", i, p.Kind(), kinds[i])
		}
		if p.ID() != int64(i) {
			t.Errorf("parameter %d: id %d", i, p.ID())
		}
	}
}
