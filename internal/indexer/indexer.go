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

// Package indexer rebuilds the metadata store and the build workspace from
// the model source tree.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	cp "github.com/otiai10/copy"

	"forge/internal/build"
	"forge/internal/database"
	"forge/internal/metrics"
	"forge/internal/schema"
	"forge/internal/walker"
	"forge/pkg/config"
	"forge/pkg/models"
)

// Options controls one index pass.
type Options struct {
	// Restore carries the pre-index instance records through the re-index,
	// rebuilding artifacts whose files have disappeared.
	Restore bool
	// Strict additionally validates each manifest part against the script's
	// module declarations.
	Strict bool
	// Progress, when set, is called once per model as it is indexed.
	Progress func(done, total int, name string)
}

// Indexer orchestrates the walker, the schema validator and the store.
// It is single-writer: it must not run while the server is handling
// requests.
type Indexer struct {
	db     *database.DB
	cfg    config.Config
	driver *build.Driver
}

// New creates an indexer over the configured paths.
func New(db *database.DB, cfg config.Config) *Indexer {
	return &Indexer{
		db:     db,
		cfg:    cfg,
		driver: build.New(cfg.BuildPath),
	}
}

// Run performs a full index pass. Failures surface immediately and leave the
// store in its intermediate state; a second run recovers.
func (ix *Indexer) Run(ctx context.Context, opts Options) error {
	if err := ix.ensureWorkspace(); err != nil {
		return err
	}

	var snapshot []models.Instance
	if opts.Restore {
		var err error
		snapshot, err = ix.db.SnapshotInstances(ctx)
		if err != nil {
			return err
		}
		slog.Info("Snapshotted instances for restore", "count", len(snapshot))
	}

	for _, dir := range []string{"scad", "images"} {
		if err := truncateDir(filepath.Join(ix.cfg.BuildPath, dir)); err != nil {
			return err
		}
	}
	if err := ix.db.Reset(ctx); err != nil {
		return err
	}

	sources, err := walker.Walk(ix.cfg.ModelsPath)
	if err != nil {
		return err
	}

	var modelID, partID int64
	paramIDs := &schema.Sequence{}
	for i, src := range sources {
		name, err := ix.indexModel(ctx, src, modelID, &partID, paramIDs, opts.Strict)
		if err != nil {
			return err
		}
		modelID++
		if opts.Progress != nil {
			opts.Progress(i+1, len(sources), name)
		}
	}
	slog.Info("Indexed model tree", "models", modelID)

	if opts.Restore {
		if err := ix.restore(ctx, snapshot); err != nil {
			return fmt.Errorf("restore failed (the rebuilt schema is intact; re-run index without --restore): %w", err)
		}
	}

	return nil
}

// indexModel parses one manifest, copies its sources into the workspace and
// inserts the model, part and parameter rows.
func (ix *Indexer) indexModel(ctx context.Context, src walker.ModelSource, modelID int64, partID *int64, paramIDs *schema.Sequence, strict bool) (string, error) {
	data, err := os.ReadFile(src.ManifestPath)
	if err != nil {
		return "", fmt.Errorf("failed to read manifest %s: %w", src.ManifestPath, err)
	}

	manifest, err := schema.ParseManifest(data, paramIDs)
	if err != nil {
		return "", fmt.Errorf("failed to validate manifest %s: %w", src.ManifestPath, err)
	}

	if strict {
		if err := schema.ValidateScad(manifest.Parts, src.ScadPath); err != nil {
			return "", fmt.Errorf("script validation failed for model %s: %w", manifest.Name, err)
		}
	}

	scadRel := filepath.Join("scad", manifest.Name+".scad")
	imageRel := filepath.Join("images", manifest.Name+".jpg")
	if err := cp.Copy(src.ScadPath, filepath.Join(ix.cfg.BuildPath, scadRel)); err != nil {
		return "", fmt.Errorf("failed to copy script for model %s: %w", manifest.Name, err)
	}
	if err := cp.Copy(src.ImagePath, filepath.Join(ix.cfg.BuildPath, imageRel)); err != nil {
		return "", fmt.Errorf("failed to copy image for model %s: %w", manifest.Name, err)
	}

	model := &models.Model{
		ID:           modelID,
		Name:         manifest.Name,
		CreationDate: manifest.Date,
		Description:  manifest.Description,
		Author:       manifest.Author,
		ImagePath:    imageRel,
		ScadPath:     scadRel,
	}
	if err := ix.db.CreateModel(ctx, model); err != nil {
		return "", err
	}

	for _, part := range manifest.Parts {
		p := &models.Part{ID: *partID, Name: part.Name, ModelID: modelID}
		if err := ix.db.CreatePart(ctx, p); err != nil {
			return "", err
		}
		for _, param := range part.Parameters {
			if err := ix.db.CreateParameter(ctx, p.ID, param); err != nil {
				return "", err
			}
		}
		*partID++
	}

	return manifest.Name, nil
}

// restore reconciles the pre-index snapshot against the regenerated schema:
// rows whose files survived are reinserted verbatim, rows whose files are
// gone are rebuilt from their recorded command text. Only a compiler
// rejection drops a row; any other failure aborts the restore so the
// operator sees it reported as failed while the rebuilt schema stands.
func (ix *Indexer) restore(ctx context.Context, snapshot []models.Instance) error {
	for _, inst := range snapshot {
		if _, err := os.Stat(filepath.Join(ix.cfg.BuildPath, inst.Path)); err == nil {
			if err := ix.db.RestoreInstance(ctx, inst); err != nil {
				return err
			}
			metrics.ObserveRestore(metrics.RestoreSkipped)
			slog.Info("Restored instance, rebuild skipped", "path", inst.Path)
			continue
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat artifact %s: %w", inst.Path, err)
		}

		if err := ix.driver.Build(ctx, inst.CommandText, inst.Path); err != nil {
			var scadErr *build.ScadError
			if errors.As(err, &scadErr) {
				slog.Warn("Dropped instance, rebuild failed", "path", inst.Path, "error", err)
				metrics.ObserveRestore(metrics.RestoreDropped)
				continue
			}
			return err
		}
		if err := ix.db.RestoreInstance(ctx, inst); err != nil {
			return err
		}
		metrics.ObserveRestore(metrics.RestoreRebuilt)
		slog.Info("Restored instance, artifact rebuilt", "path", inst.Path)
	}

	return nil
}

// ensureWorkspace creates the scad/, images/ and stls/ subdirectories if
// missing.
func (ix *Indexer) ensureWorkspace() error {
	for _, dir := range []string{"scad", "images", "stls"} {
		if err := os.MkdirAll(filepath.Join(ix.cfg.BuildPath, dir), 0o755); err != nil {
			return fmt.Errorf("failed to create workspace directory %s: %w", dir, err)
		}
	}
	return nil
}

// truncateDir removes the contents of dir but not dir itself.
func truncateDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read workspace directory %s: %w", dir, err)
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("failed to truncate workspace directory %s: %w", dir, err)
		}
	}
	return nil
}
