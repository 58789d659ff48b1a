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

package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"forge/pkg/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migration failed: %v", err)
	}
	return db
}

func seedModel(t *testing.T, db *DB) {
	t.Helper()
	ctx := context.Background()
	model := &models.Model{
		ID:           0,
		Name:         "bracket",
		CreationDate: "2023-04-01",
		Description:  "A mounting bracket",
		Author:       "alice",
		ImagePath:    "images/bracket.jpg",
		ScadPath:     "scad/bracket.scad",
	}
	if err := db.CreateModel(ctx, model); err != nil {
		t.Fatalf("create model: %v", err)
	}
	part := &models.Part{ID: 0, Name: "base", ModelID: 0}
	if err := db.CreatePart(ctx, part); err != nil {
		t.Fatalf("create part: %v", err)
	}
}

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatalf("Database file was not created")
	}
}

func TestMigrate(t *testing.T) {
	db := newTestDB(t)

	if _, err := db.GetModels(context.Background()); err != nil {
		t.Fatalf("Failed to query models table after migration: %v", err)
	}
}

func TestParameterInsertionOrder(t *testing.T) {
	db := newTestDB(t)
	seedModel(t, db)
	ctx := context.Background()

	// Interleave variants so ordering cannot come from per-table reads.
	params := []models.Parameter{
		models.IntRangeParameter{ParameterID: 0, Name: "width", Default: 10, Lower: 1, Upper: 100},
		models.BoolParameter{ParameterID: 1, Name: "rounded", Default: true},
		models.StringListParameter{ParameterID: 2, Name: "finish", Default: "matte", Items: []string{"matte", "gloss"}},
		models.FloatRangeParameter{ParameterID: 3, Name: "thickness", Default: 2.5, Lower: 0.5, Upper: 10},
	}
	for _, p := range params {
		if err := db.CreateParameter(ctx, 0, p); err != nil {
			t.Fatalf("create parameter %s: %v", p.ParamName(), err)
		}
	}

	got, err := db.GetParameters(ctx, 0)
	if err != nil {
		t.Fatalf("get parameters: %v", err)
	}
	if len(got) != len(params) {
		t.Fatalf("expected %d parameters, got %d", len(params), len(got))
	}
	for i, p := range got {
		if p.ID() != int64(i) {
			t.Fatalf("parameter %d out of order: got id %d", i, p.ID())
		}
		if p.ParamName() != params[i].ParamName() {
			t.Fatalf("parameter %d: got name %s want %s", i, p.ParamName(), params[i].ParamName())
		}
	}

	sl, ok := got[2].(models.StringListParameter)
	if !ok {
		t.Fatalf("expected StringListParameter at index 2, got %T", got[2])
	}
	if len(sl.Items) != 2 || sl.Items[0] != "matte" || sl.Items[1] != "gloss" {
		t.Fatalf("string list items mismatch: %v", sl.Items)
	}
}

func TestGetModelWithParts(t *testing.T) {
	db := newTestDB(t)
	seedModel(t, db)
	ctx := context.Background()

	if err := db.CreateParameter(ctx, 0, models.IntRangeParameter{ParameterID: 0, Name: "width", Default: 10, Lower: 1, Upper: 100}); err != nil {
		t.Fatalf("create parameter: %v", err)
	}

	m, err := db.GetModel(ctx, 0)
	if err != nil {
		t.Fatalf("get model: %v", err)
	}
	if m == nil {
		t.Fatal("expected model, got nil")
	}
	if len(m.Parts) != 1 || m.Parts[0].Name != "base" {
		t.Fatalf("parts mismatch: %+v", m.Parts)
	}
	if len(m.Parts[0].Parameters) != 1 {
		t.Fatalf("expected 1 parameter, got %d", len(m.Parts[0].Parameters))
	}

	missing, err := db.GetModel(ctx, 42)
	if err != nil {
		t.Fatalf("get missing model: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing model, got %+v", missing)
	}
}

func TestInstanceLifecycle(t *testing.T) {
	db := newTestDB(t)
	seedModel(t, db)
	ctx := context.Background()

	first := &models.Instance{Path: "stls/0-0_7.stl", CommandText: "use <a.scad>;base(width=7);", PartID: 0}
	if err := db.CreateInstance(ctx, first); err != nil {
		t.Fatalf("create instance: %v", err)
	}
	second := &models.Instance{Path: "stls/0-0_8.stl", CommandText: "use <a.scad>;base(width=8);", PartID: 0}
	if err := db.CreateInstance(ctx, second); err != nil {
		t.Fatalf("create instance: %v", err)
	}

	got, err := db.GetInstance(ctx, first.Path)
	if err != nil {
		t.Fatalf("get instance: %v", err)
	}
	if got == nil || got.Usage != 0 {
		t.Fatalf("expected fresh instance with usage 0, got %+v", got)
	}

	if err := db.IncrementUsage(ctx, first.Path); err != nil {
		t.Fatalf("increment usage: %v", err)
	}
	got, err = db.GetInstance(ctx, first.Path)
	if err != nil {
		t.Fatalf("get instance: %v", err)
	}
	if got.Usage != 1 {
		t.Fatalf("expected usage 1, got %d", got.Usage)
	}

	if err := db.DeleteInstance(ctx, second.Path); err != nil {
		t.Fatalf("delete instance: %v", err)
	}
	gone, err := db.GetInstance(ctx, second.Path)
	if err != nil {
		t.Fatalf("get deleted instance: %v", err)
	}
	if gone != nil {
		t.Fatalf("expected deleted instance to be gone, got %+v", gone)
	}
}

func TestIncrementUsageMissingPath(t *testing.T) {
	db := newTestDB(t)

	if err := db.IncrementUsage(context.Background(), "stls/0-0_404.stl"); err == nil {
		t.Fatal("expected error for missing instance path")
	}
}

func TestFindLeastValuableInstance(t *testing.T) {
	db := newTestDB(t)
	seedModel(t, db)
	ctx := context.Background()

	paths := []string{"stls/0-0_1.stl", "stls/0-0_2.stl", "stls/0-0_3.stl"}
	for _, p := range paths {
		if err := db.CreateInstance(ctx, &models.Instance{Path: p, CommandText: "cmd", PartID: 0}); err != nil {
			t.Fatalf("create instance %s: %v", p, err)
		}
	}

	// Bump usage on the first two; the third becomes the sole minimum.
	for _, p := range paths[:2] {
		if err := db.IncrementUsage(ctx, p); err != nil {
			t.Fatalf("increment usage: %v", err)
		}
	}

	victim, err := db.FindLeastValuableInstance(ctx)
	if err != nil {
		t.Fatalf("find least valuable: %v", err)
	}
	if victim == nil || victim.Path != paths[2] {
		t.Fatalf("expected victim %s, got %+v", paths[2], victim)
	}

	// Equalize usage; the tie now breaks toward the oldest insertion.
	if err := db.IncrementUsage(ctx, paths[2]); err != nil {
		t.Fatalf("increment usage: %v", err)
	}
	victim, err = db.FindLeastValuableInstance(ctx)
	if err != nil {
		t.Fatalf("find least valuable: %v", err)
	}
	if victim == nil || victim.Path != paths[0] {
		t.Fatalf("expected oldest instance %s on tie, got %+v", paths[0], victim)
	}
}

func TestSnapshotAndRestore(t *testing.T) {
	db := newTestDB(t)
	seedModel(t, db)
	ctx := context.Background()

	inst := &models.Instance{Path: "stls/0-0_7.stl", CommandText: "use <a.scad>;base(width=7);", PartID: 0}
	if err := db.CreateInstance(ctx, inst); err != nil {
		t.Fatalf("create instance: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := db.IncrementUsage(ctx, inst.Path); err != nil {
			t.Fatalf("increment usage: %v", err)
		}
	}

	snapshot, err := db.SnapshotInstances(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snapshot) != 1 {
		t.Fatalf("expected snapshot of 1, got %d", len(snapshot))
	}

	if err := db.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	seedModel(t, db)

	if err := db.RestoreInstance(ctx, snapshot[0]); err != nil {
		t.Fatalf("restore instance: %v", err)
	}
	restored, err := db.GetInstance(ctx, inst.Path)
	if err != nil {
		t.Fatalf("get restored instance: %v", err)
	}
	if restored == nil || restored.Usage != 3 || restored.Age != snapshot[0].Age {
		t.Fatalf("restored instance not verbatim: %+v vs %+v", restored, snapshot[0])
	}
}

func TestReset(t *testing.T) {
	db := newTestDB(t)
	seedModel(t, db)
	ctx := context.Background()

	if err := db.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}

	ms, err := db.GetModels(ctx)
	if err != nil {
		t.Fatalf("get models after reset: %v", err)
	}
	if len(ms) != 0 {
		t.Fatalf("expected empty store after reset, got %d models", len(ms))
	}
}
