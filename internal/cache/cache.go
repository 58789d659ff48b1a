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

// Package cache serves mesh artifacts from the bounded on-disk workspace,
// invoking the build driver on misses and evicting the least valuable
// instance when the workspace is full.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"forge/internal/build"
	"forge/internal/database"
	"forge/internal/metrics"
	"forge/pkg/models"
)

// Identifier derives the canonical artifact key for a parameter assignment:
// stls/<model>-<part>_<v1>-<v2>-...-<vN>.stl. It is a pure function of its
// inputs; values render in schema order.
func Identifier(modelID, partID int64, values []models.NamedValue) string {
	var rendered strings.Builder
	for i, v := range values {
		if i > 0 {
			rendered.WriteString("-")
		}
		rendered.WriteString(v.Value.Render())
	}

	return fmt.Sprintf("stls/%d-%d_%s.stl", modelID, partID, rendered.String())
}

// Request names the part instance to materialize.
type Request struct {
	ModelID  int64
	PartID   int64
	PartName string
	// ScadPath is the absolute path of the script copied into the workspace
	// during indexing.
	ScadPath string
	// Values are the supplied parameter values in schema order.
	Values []models.NamedValue
}

// Result reports the served artifact.
type Result struct {
	Filename   string     `json:"filename"`
	Dimensions [3]float64 `json:"dimensions"`
	Hit        bool       `json:"-"`
}

// Cache is the capacity-bounded artifact store.
type Cache struct {
	db        *database.DB
	workspace string
	limit     int64
	driver    *build.Driver
	locks     keyedMutex
}

// New creates a cache over the workspace. limit bounds the number of files
// in stls/.
func New(db *database.DB, workspace string, limit int64, driver *build.Driver) *Cache {
	return &Cache{
		db:        db,
		workspace: workspace,
		limit:     limit,
		driver:    driver,
	}
}

// Generate serves the artifact for the request: a hit bumps usage, a miss
// builds (evicting first when the workspace is full) and records the new
// instance. Requests for the same key are serialized so concurrent misses
// cannot race the compiler or the eviction policy.
func (c *Cache) Generate(ctx context.Context, req Request) (*Result, error) {
	key := Identifier(req.ModelID, req.PartID, req.Values)

	unlock := c.locks.lock(key)
	defer unlock()

	if _, err := os.Stat(filepath.Join(c.workspace, key)); err == nil {
		if err := c.db.IncrementUsage(ctx, key); err != nil {
			return nil, err
		}
		metrics.ObserveCacheRequest(metrics.OutcomeHit)
		slog.Debug("Cache hit", "key", key)
		return c.finish(key, true)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat artifact %s: %w", key, err)
	}

	count, err := c.countArtifacts()
	if err != nil {
		return nil, err
	}
	if count >= c.limit {
		if err := c.evict(ctx); err != nil {
			return nil, err
		}
	}

	commandText := build.CommandText(req.ScadPath, req.PartName, req.Values)

	start := time.Now()
	if err := c.driver.Build(ctx, commandText, key); err != nil {
		return nil, err
	}
	metrics.ObserveBuild(time.Since(start))

	instance := &models.Instance{
		Path:        key,
		CommandText: commandText,
		PartID:      req.PartID,
	}
	if err := c.db.CreateInstance(ctx, instance); err != nil {
		return nil, err
	}

	metrics.ObserveCacheRequest(metrics.OutcomeMiss)
	slog.Info("Built artifact", "key", key, "part", req.PartName)
	return c.finish(key, false)
}

func (c *Cache) finish(key string, hit bool) (*Result, error) {
	dims, err := c.driver.Dimensions(key)
	if err != nil {
		return nil, err
	}
	return &Result{Filename: key, Dimensions: dims, Hit: hit}, nil
}

// evict removes the least valuable instance: its file first, then its
// record, so the membership predicate never claims a missing file.
func (c *Cache) evict(ctx context.Context) error {
	victim, err := c.db.FindLeastValuableInstance(ctx)
	if err != nil {
		return err
	}
	if victim == nil {
		return fmt.Errorf("workspace is full but no instance is recorded")
	}

	if err := os.Remove(filepath.Join(c.workspace, victim.Path)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete evicted artifact %s: %w", victim.Path, err)
	}
	if err := c.db.DeleteInstance(ctx, victim.Path); err != nil {
		return err
	}

	metrics.ObserveEviction()
	slog.Info("Evicted artifact", "key", victim.Path, "usage", victim.Usage, "age", victim.Age)
	return nil
}

// countArtifacts counts regular files in stls/, the quantity bounded by the
// model limit.
func (c *Cache) countArtifacts() (int64, error) {
	entries, err := os.ReadDir(filepath.Join(c.workspace, "stls"))
	if err != nil {
		return 0, fmt.Errorf("failed to read stls directory: %w", err)
	}

	var count int64
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			count++
		}
	}
	return count, nil
}
