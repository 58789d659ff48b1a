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

package config

import (
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.ModelLimit != 100 {
		t.Fatalf("expected default model limit 100, got %d", cfg.ModelLimit)
	}
}

func TestLoadMissingFileYieldsDefault(t *testing.T) {
	// Point the user config dir at an empty directory.
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ModelLimit != 100 {
		t.Fatalf("expected default config, got %+v", cfg)
	}
}

func TestSaveAndLoad(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	dir := t.TempDir()
	cfg := Config{
		ModelsPath:   dir,
		BuildPath:    dir,
		DatabasePath: filepath.Join(dir, "forge.db"),
		ModelLimit:   25,
	}
	if err := Save(cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != cfg {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, cfg)
	}
}

func TestSaveRejectsMissingPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := Config{
		ModelsPath:   filepath.Join(t.TempDir(), "missing"),
		BuildPath:    t.TempDir(),
		DatabasePath: "forge.db",
		ModelLimit:   10,
	}
	if err := Save(cfg); err == nil {
		t.Fatal("expected error for missing models path")
	}
}

func TestSaveRejectsNonPositiveLimit(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	dir := t.TempDir()
	cfg := Config{ModelsPath: dir, BuildPath: dir, DatabasePath: "forge.db", ModelLimit: 0}
	if err := Save(cfg); err == nil {
		t.Fatal("expected error for non-positive limit")
	}
}
