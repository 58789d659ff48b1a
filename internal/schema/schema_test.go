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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forge/pkg/models"
)

func manifestWithParams(params string) []byte {
	return fmt.Appendf(nil, `{
		"name": "bracket",
		"date": "2023-04-01",
		"description": "A mounting bracket",
		"author": "alice",
		"parts": [ { "name": "base", "parameters": [ %s ] } ]
	}`, params)
}

func parseOne(t *testing.T, param string) models.Parameter {
	t.Helper()
	m, err := ParseManifest(manifestWithParams(param), &Sequence{})
	require.NoError(t, err)
	require.Len(t, m.Parts, 1)
	require.Len(t, m.Parts[0].Parameters, 1)
	return m.Parts[0].Parameters[0]
}

func parseErr(t *testing.T, param string) error {
	t.Helper()
	_, err := ParseManifest(manifestWithParams(param), &Sequence{})
	require.Error(t, err)
	return err
}

func TestParseManifestHeader(t *testing.T) {
	m, err := ParseManifest(manifestWithParams(""), &Sequence{})
	require.NoError(t, err)
	assert.Equal(t, "bracket", m.Name)
	assert.Equal(t, "2023-04-01", m.Date)
	assert.Equal(t, "alice", m.Author)
	require.Len(t, m.Parts, 1)
	assert.Equal(t, "base", m.Parts[0].Name)
}

func TestParseManifestBadDate(t *testing.T) {
	_, err := ParseManifest([]byte(`{"name":"x","date":"01-04-2023","description":"","author":"","parts":[]}`), &Sequence{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "YYYY-MM-DD")
}

func TestParseManifestInvalidJSON(t *testing.T) {
	_, err := ParseManifest([]byte(`{"name":`), &Sequence{})
	require.Error(t, err)
}

func TestBoolParameter(t *testing.T) {
	p := parseOne(t, `{"name": "rounded", "default": true}`)
	b, ok := p.(models.BoolParameter)
	require.True(t, ok)
	assert.True(t, b.Default)
}

func TestBoolParameterRejectsRestrictions(t *testing.T) {
	err := parseErr(t, `{"name": "rounded", "default": true, "lower": 1}`)
	var formatErr *InvalidFormattingError
	require.ErrorAs(t, err, &formatErr)
	assert.Equal(t, "rounded", formatErr.Name)
}

func TestNullRestrictionKeysCountAsAbsent(t *testing.T) {
	p := parseOne(t, `{"name": "rounded", "default": true, "lower": null, "allowed": null}`)
	_, ok := p.(models.BoolParameter)
	require.True(t, ok)
}

func TestIntRangeParameter(t *testing.T) {
	p := parseOne(t, `{"name": "width", "default": 10, "lower": 1, "upper": 100}`)
	r, ok := p.(models.IntRangeParameter)
	require.True(t, ok)
	assert.Equal(t, int64(1), r.Lower)
	assert.Equal(t, int64(100), r.Upper)
	assert.Equal(t, int64(10), r.Default)
}

func TestIntRangeSwapsReversedBounds(t *testing.T) {
	p := parseOne(t, `{"name": "width", "default": 7, "lower": 10, "upper": 5}`)
	r, ok := p.(models.IntRangeParameter)
	require.True(t, ok)
	assert.Equal(t, int64(5), r.Lower)
	assert.Equal(t, int64(10), r.Upper)
}

func TestIntRangeEqualBoundsRejected(t *testing.T) {
	err := parseErr(t, `{"name": "width", "default": 5, "lower": 5, "upper": 5}`)
	var rangeErr *InvalidRangeError
	require.ErrorAs(t, err, &rangeErr)
	assert.Equal(t, "width", rangeErr.Name)
}

func TestIntRangeRejectsFloatBound(t *testing.T) {
	err := parseErr(t, `{"name": "width", "default": 5, "lower": 1.5, "upper": 10}`)
	var formatErr *InvalidFormattingError
	require.ErrorAs(t, err, &formatErr)
}

func TestIntListParameter(t *testing.T) {
	p := parseOne(t, `{"name": "teeth", "default": 12, "allowed": [8, 12, 16]}`)
	l, ok := p.(models.IntListParameter)
	require.True(t, ok)
	assert.Equal(t, []int64{8, 12, 16}, l.Items)
}

func TestIntListDropsDuplicates(t *testing.T) {
	p := parseOne(t, `{"name": "teeth", "default": 12, "allowed": [8, 12, 8, 16]}`)
	l, ok := p.(models.IntListParameter)
	require.True(t, ok)
	assert.Equal(t, []int64{8, 12, 16}, l.Items)
}

func TestIntListRejectsWrongElementType(t *testing.T) {
	err := parseErr(t, `{"name": "teeth", "default": 12, "allowed": [8, "x"]}`)
	var listErr *InvalidListError
	require.ErrorAs(t, err, &listErr)
}

func TestIntListRejectsEmpty(t *testing.T) {
	err := parseErr(t, `{"name": "teeth", "default": 12, "allowed": []}`)
	var listErr *InvalidListError
	require.ErrorAs(t, err, &listErr)
}

func TestIntWithListAndRangeRejected(t *testing.T) {
	err := parseErr(t, `{"name": "width", "default": 5, "lower": 1, "upper": 9, "allowed": [5]}`)
	var formatErr *InvalidFormattingError
	require.ErrorAs(t, err, &formatErr)
}

func TestFloatDispatchOnFractionalLiteral(t *testing.T) {
	p := parseOne(t, `{"name": "thickness", "default": 2.0, "lower": 0.5, "upper": 10.0}`)
	_, ok := p.(models.FloatRangeParameter)
	require.True(t, ok, "2.0 must dispatch as float, got %T", p)
}

func TestFloatRangeAcceptsIntegerBounds(t *testing.T) {
	p := parseOne(t, `{"name": "thickness", "default": 2.5, "lower": 1, "upper": 10}`)
	r, ok := p.(models.FloatRangeParameter)
	require.True(t, ok)
	assert.Equal(t, 1.0, r.Lower)
	assert.Equal(t, 10.0, r.Upper)
}

func TestFloatListAcceptsMixedLiterals(t *testing.T) {
	p := parseOne(t, `{"name": "pitch", "default": 1.5, "allowed": [1, 1.5, 2]}`)
	l, ok := p.(models.FloatListParameter)
	require.True(t, ok)
	assert.Equal(t, []float64{1, 1.5, 2}, l.Items)
}

func TestStringLengthParameter(t *testing.T) {
	p := parseOne(t, `{"name": "label", "default": "abc", "length": 16}`)
	s, ok := p.(models.StringLengthParameter)
	require.True(t, ok)
	assert.Equal(t, int64(16), s.Length)
}

func TestStringLengthMustBePositive(t *testing.T) {
	err := parseErr(t, `{"name": "label", "default": "abc", "length": 0}`)
	var rangeErr *InvalidRangeError
	require.ErrorAs(t, err, &rangeErr)
}

func TestStringListParameter(t *testing.T) {
	p := parseOne(t, `{"name": "finish", "default": "matte", "allowed": ["matte", "gloss"]}`)
	l, ok := p.(models.StringListParameter)
	require.True(t, ok)
	assert.Equal(t, []string{"matte", "gloss"}, l.Items)
}

func TestStringWithRangeKeysRejected(t *testing.T) {
	err := parseErr(t, `{"name": "label", "default": "abc", "lower": 1, "upper": 5}`)
	var formatErr *InvalidFormattingError
	require.ErrorAs(t, err, &formatErr)
}

func TestUnsupportedDefaultType(t *testing.T) {
	err := parseErr(t, `{"name": "weird", "default": [1, 2]}`)
	var typeErr *UnsupportedTypeError
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, "weird", typeErr.Name)
}

func TestParameterIDsAreSequential(t *testing.T) {
	params := `{"name": "a", "default": true}, {"name": "b", "default": 1, "lower": 0, "upper": 2}, {"name": "c", "default": "x", "length": 4}`
	ids := &Sequence{}
	m, err := ParseManifest(manifestWithParams(params), ids)
	require.NoError(t, err)
	got := m.Parts[0].Parameters
	require.Len(t, got, 3)
	for i, p := range got {
		assert.Equal(t, int64(i), p.ID())
	}
}

func TestRoundTripAcceptsSwappedForm(t *testing.T) {
	// A manifest with reversed bounds parses to the normalized range; the
	// normalized form must parse cleanly with no further changes.
	p := parseOne(t, `{"name": "width", "default": 7, "lower": 10, "upper": 5}`)
	r := p.(models.IntRangeParameter)
	normalized := fmt.Sprintf(`{"name": "width", "default": 7, "lower": %d, "upper": %d}`, r.Lower, r.Upper)
	q := parseOne(t, normalized)
	assert.Equal(t, r.Lower, q.(models.IntRangeParameter).Lower)
	assert.Equal(t, r.Upper, q.(models.IntRangeParameter).Upper)
}

func TestValidateScad(t *testing.T) {
	dir := t.TempDir()
	scadPath := filepath.Join(dir, "bracket.scad")
	script := "// bracket\nmodule base(width, rounded=false) {\n}\nmodule lid(depth) {\n}\n"
	require.NoError(t, os.WriteFile(scadPath, []byte(script), 0o644))

	parts := []ManifestPart{{
		Name: "base",
		Parameters: []models.Parameter{
			models.IntRangeParameter{Name: "width", Lower: 1, Upper: 10},
			models.BoolParameter{Name: "rounded"},
		},
	}}
	require.NoError(t, ValidateScad(parts, scadPath))

	missing := []ManifestPart{{Name: "hinge"}}
	err := ValidateScad(missing, scadPath)
	var partErr *PartNotPresentError
	require.ErrorAs(t, err, &partErr)
	assert.Equal(t, "hinge", partErr.Part)

	missingParam := []ManifestPart{{
		Name:       "lid",
		Parameters: []models.Parameter{models.IntRangeParameter{Name: "height"}},
	}}
	err = ValidateScad(missingParam, scadPath)
	var paramErr *ParameterNotPresentError
	require.ErrorAs(t, err, &paramErr)
	assert.Equal(t, "height", paramErr.Parameter)
}
