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

// Package database is the relational metadata store for models, parts, the
// typed parameter schema and cached instance records.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"

	"forge/pkg/models"

	_ "modernc.org/sqlite"
)

// DB wraps the database connection and provides methods for data access
type DB struct {
	conn *sql.DB
}

// New creates a new database connection
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Migrate runs database migrations
func (db *DB) Migrate(ctx context.Context) error {
	slog.Info("Running database migrations")

	migrations := []string{
		`CREATE TABLE IF NOT EXISTS models (
			model_id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			creation_date TEXT NOT NULL,
			description TEXT NOT NULL,
			author TEXT NOT NULL,
			image_path TEXT NOT NULL,
			scad_path TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS parts (
			part_id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			model_id INTEGER NOT NULL,
			FOREIGN KEY (model_id) REFERENCES models(model_id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS bool_parameters (
			parameter_id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			default_value BOOLEAN NOT NULL,
			part_id INTEGER NOT NULL,
			FOREIGN KEY (part_id) REFERENCES parts(part_id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS int_range_parameters (
			parameter_id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			default_value INTEGER NOT NULL,
			lower INTEGER NOT NULL,
			upper INTEGER NOT NULL,
			part_id INTEGER NOT NULL,
			FOREIGN KEY (part_id) REFERENCES parts(part_id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS float_range_parameters (
			parameter_id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			default_value REAL NOT NULL,
			lower REAL NOT NULL,
			upper REAL NOT NULL,
			part_id INTEGER NOT NULL,
			FOREIGN KEY (part_id) REFERENCES parts(part_id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS string_length_parameters (
			parameter_id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			default_value TEXT NOT NULL,
			length INTEGER NOT NULL,
			part_id INTEGER NOT NULL,
			FOREIGN KEY (part_id) REFERENCES parts(part_id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS int_list_parameters (
			parameter_id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			default_value INTEGER NOT NULL,
			part_id INTEGER NOT NULL,
			FOREIGN KEY (part_id) REFERENCES parts(part_id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS float_list_parameters (
			parameter_id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			default_value REAL NOT NULL,
			part_id INTEGER NOT NULL,
			FOREIGN KEY (part_id) REFERENCES parts(part_id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS string_list_parameters (
			parameter_id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			default_value TEXT NOT NULL,
			part_id INTEGER NOT NULL,
			FOREIGN KEY (part_id) REFERENCES parts(part_id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS int_list_items (
			item_id INTEGER PRIMARY KEY AUTOINCREMENT,
			parameter_id INTEGER NOT NULL,
			value INTEGER NOT NULL,
			FOREIGN KEY (parameter_id) REFERENCES int_list_parameters(parameter_id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS float_list_items (
			item_id INTEGER PRIMARY KEY AUTOINCREMENT,
			parameter_id INTEGER NOT NULL,
			value REAL NOT NULL,
			FOREIGN KEY (parameter_id) REFERENCES float_list_parameters(parameter_id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS string_list_items (
			item_id INTEGER PRIMARY KEY AUTOINCREMENT,
			parameter_id INTEGER NOT NULL,
			value TEXT NOT NULL,
			FOREIGN KEY (parameter_id) REFERENCES string_list_parameters(parameter_id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS instances (
			path TEXT PRIMARY KEY,
			command_text TEXT NOT NULL,
			usage INTEGER NOT NULL DEFAULT 0,
			age INTEGER NOT NULL,
			part_id INTEGER NOT NULL,
			FOREIGN KEY (part_id) REFERENCES parts(part_id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_parts_model ON parts(model_id)`,
		`CREATE INDEX IF NOT EXISTS idx_instances_part ON instances(part_id)`,
		`CREATE INDEX IF NOT EXISTS idx_instances_value ON instances(usage, age)`,
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, migration := range migrations {
		if _, err := tx.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	return tx.Commit()
}

// Reset truncates all tables in dependency order so a fresh index pass can
// repopulate the store.
func (db *DB) Reset(ctx context.Context) error {
	tables := []string{
		"int_list_items",
		"float_list_items",
		"string_list_items",
		"bool_parameters",
		"int_range_parameters",
		"float_range_parameters",
		"string_length_parameters",
		"int_list_parameters",
		"float_list_parameters",
		"string_list_parameters",
		"instances",
		"parts",
		"models",
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range tables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to truncate %s: %w", table, err)
		}
	}

	return tx.Commit()
}

// Model operations

// CreateModel inserts a model row with the indexer-assigned ID.
func (db *DB) CreateModel(ctx context.Context, model *models.Model) error {
	query := `INSERT INTO models (model_id, name, creation_date, description, author, image_path, scad_path) VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := db.conn.ExecContext(ctx, query, model.ID, model.Name, model.CreationDate,
		model.Description, model.Author, model.ImagePath, model.ScadPath)
	if err != nil {
		return fmt.Errorf("failed to create model: %w", err)
	}

	return nil
}

// GetModels returns the display listing of all models, without parts.
func (db *DB) GetModels(ctx context.Context) ([]models.Model, error) {
	query := `SELECT model_id, name, creation_date, description, author, image_path, scad_path FROM models ORDER BY model_id`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query models: %w", err)
	}
	defer rows.Close()

	var out []models.Model
	for rows.Next() {
		var m models.Model
		if err := rows.Scan(&m.ID, &m.Name, &m.CreationDate, &m.Description, &m.Author, &m.ImagePath, &m.ScadPath); err != nil {
			return nil, fmt.Errorf("failed to scan model: %w", err)
		}
		out = append(out, m)
	}

	return out, rows.Err()
}

// GetModel returns a single model with its parts and their parameter schema.
func (db *DB) GetModel(ctx context.Context, id int64) (*models.Model, error) {
	query := `SELECT model_id, name, creation_date, description, author, image_path, scad_path FROM models WHERE model_id = ?`

	var m models.Model
	err := db.conn.QueryRowContext(ctx, query, id).Scan(
		&m.ID, &m.Name, &m.CreationDate, &m.Description, &m.Author, &m.ImagePath, &m.ScadPath)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get model: %w", err)
	}

	parts, err := db.GetParts(ctx, id)
	if err != nil {
		return nil, err
	}
	m.Parts = parts

	return &m, nil
}

// Part operations

// CreatePart inserts a part row with the indexer-assigned ID.
func (db *DB) CreatePart(ctx context.Context, part *models.Part) error {
	query := `INSERT INTO parts (part_id, name, model_id) VALUES (?, ?, ?)`

	_, err := db.conn.ExecContext(ctx, query, part.ID, part.Name, part.ModelID)
	if err != nil {
		return fmt.Errorf("failed to create part: %w", err)
	}

	return nil
}

// GetParts returns the parts of a model, each populated with its parameters.
func (db *DB) GetParts(ctx context.Context, modelID int64) ([]models.Part, error) {
	query := `SELECT part_id, name, model_id FROM parts WHERE model_id = ? ORDER BY part_id`

	rows, err := db.conn.QueryContext(ctx, query, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to query parts: %w", err)
	}
	defer rows.Close()

	var parts []models.Part
	for rows.Next() {
		var p models.Part
		if err := rows.Scan(&p.ID, &p.Name, &p.ModelID); err != nil {
			return nil, fmt.Errorf("failed to scan part: %w", err)
		}
		parts = append(parts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range parts {
		params, err := db.GetParameters(ctx, parts[i].ID)
		if err != nil {
			return nil, err
		}
		parts[i].Parameters = params
	}

	return parts, nil
}

// GetPart returns a single part, with parameters, or nil when absent.
func (db *DB) GetPart(ctx context.Context, partID int64) (*models.Part, error) {
	query := `SELECT part_id, name, model_id FROM parts WHERE part_id = ?`

	var p models.Part
	err := db.conn.QueryRowContext(ctx, query, partID).Scan(&p.ID, &p.Name, &p.ModelID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get part: %w", err)
	}

	params, err := db.GetParameters(ctx, partID)
	if err != nil {
		return nil, err
	}
	p.Parameters = params

	return &p, nil
}

// Parameter operations

// CreateParameter inserts a parameter variant row (and list items for the
// list variants) under the given part.
func (db *DB) CreateParameter(ctx context.Context, partID int64, param models.Parameter) error {
	switch p := param.(type) {
	case models.BoolParameter:
		_, err := db.conn.ExecContext(ctx,
			`INSERT INTO bool_parameters (parameter_id, name, default_value, part_id) VALUES (?, ?, ?, ?)`,
			p.ParameterID, p.Name, p.Default, partID)
		if err != nil {
			return fmt.Errorf("failed to create bool parameter: %w", err)
		}
	case models.IntRangeParameter:
		_, err := db.conn.ExecContext(ctx,
			`INSERT INTO int_range_parameters (parameter_id, name, default_value, lower, upper, part_id) VALUES (?, ?, ?, ?, ?, ?)`,
			p.ParameterID, p.Name, p.Default, p.Lower, p.Upper, partID)
		if err != nil {
			return fmt.Errorf("failed to create int range parameter: %w", err)
		}
	case models.FloatRangeParameter:
		_, err := db.conn.ExecContext(ctx,
			`INSERT INTO float_range_parameters (parameter_id, name, default_value, lower, upper, part_id) VALUES (?, ?, ?, ?, ?, ?)`,
			p.ParameterID, p.Name, p.Default, p.Lower, p.Upper, partID)
		if err != nil {
			return fmt.Errorf("failed to create float range parameter: %w", err)
		}
	case models.StringLengthParameter:
		_, err := db.conn.ExecContext(ctx,
			`INSERT INTO string_length_parameters (parameter_id, name, default_value, length, part_id) VALUES (?, ?, ?, ?, ?)`,
			p.ParameterID, p.Name, p.Default, p.Length, partID)
		if err != nil {
			return fmt.Errorf("failed to create string length parameter: %w", err)
		}
	case models.IntListParameter:
		return db.createListParameter(ctx,
			`INSERT INTO int_list_parameters (parameter_id, name, default_value, part_id) VALUES (?, ?, ?, ?)`,
			`INSERT INTO int_list_items (parameter_id, value) VALUES (?, ?)`,
			p.ParameterID, p.Name, p.Default, partID, intsToAny(p.Items))
	case models.FloatListParameter:
		return db.createListParameter(ctx,
			`INSERT INTO float_list_parameters (parameter_id, name, default_value, part_id) VALUES (?, ?, ?, ?)`,
			`INSERT INTO float_list_items (parameter_id, value) VALUES (?, ?)`,
			p.ParameterID, p.Name, p.Default, partID, floatsToAny(p.Items))
	case models.StringListParameter:
		return db.createListParameter(ctx,
			`INSERT INTO string_list_parameters (parameter_id, name, default_value, part_id) VALUES (?, ?, ?, ?)`,
			`INSERT INTO string_list_items (parameter_id, value) VALUES (?, ?)`,
			p.ParameterID, p.Name, p.Default, partID, stringsToAny(p.Items))
	default:
		return fmt.Errorf("unknown parameter variant %T", param)
	}

	return nil
}

func (db *DB) createListParameter(ctx context.Context, paramQuery, itemQuery string, id int64, name string, def any, partID int64, items []any) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, paramQuery, id, name, def, partID); err != nil {
		return fmt.Errorf("failed to create list parameter: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, itemQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare list item insert: %w", err)
	}
	defer stmt.Close()

	for _, item := range items {
		if _, err := stmt.ExecContext(ctx, id, item); err != nil {
			return fmt.Errorf("failed to create list item: %w", err)
		}
	}

	return tx.Commit()
}

func intsToAny(in []int64) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

func floatsToAny(in []float64) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

func stringsToAny(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

// GetParameters returns all parameter variants of a part in insertion order.
// The order is what the key derivation and command synthesis iterate, so it
// must be stable across fetches.
func (db *DB) GetParameters(ctx context.Context, partID int64) ([]models.Parameter, error) {
	var params []models.Parameter

	boolRows, err := db.conn.QueryContext(ctx,
		`SELECT parameter_id, name, default_value FROM bool_parameters WHERE part_id = ?`, partID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bool parameters: %w", err)
	}
	defer boolRows.Close()
	for boolRows.Next() {
		var p models.BoolParameter
		if err := boolRows.Scan(&p.ParameterID, &p.Name, &p.Default); err != nil {
			return nil, fmt.Errorf("failed to scan bool parameter: %w", err)
		}
		params = append(params, p)
	}
	if err := boolRows.Err(); err != nil {
		return nil, err
	}

	intRows, err := db.conn.QueryContext(ctx,
		`SELECT parameter_id, name, default_value, lower, upper FROM int_range_parameters WHERE part_id = ?`, partID)
	if err != nil {
		return nil, fmt.Errorf("failed to query int range parameters: %w", err)
	}
	defer intRows.Close()
	for intRows.Next() {
		var p models.IntRangeParameter
		if err := intRows.Scan(&p.ParameterID, &p.Name, &p.Default, &p.Lower, &p.Upper); err != nil {
			return nil, fmt.Errorf("failed to scan int range parameter: %w", err)
		}
		params = append(params, p)
	}
	if err := intRows.Err(); err != nil {
		return nil, err
	}

	floatRows, err := db.conn.QueryContext(ctx,
		`SELECT parameter_id, name, default_value, lower, upper FROM float_range_parameters WHERE part_id = ?`, partID)
	if err != nil {
		return nil, fmt.Errorf("failed to query float range parameters: %w", err)
	}
	defer floatRows.Close()
	for floatRows.Next() {
		var p models.FloatRangeParameter
		if err := floatRows.Scan(&p.ParameterID, &p.Name, &p.Default, &p.Lower, &p.Upper); err != nil {
			return nil, fmt.Errorf("failed to scan float range parameter: %w", err)
		}
		params = append(params, p)
	}
	if err := floatRows.Err(); err != nil {
		return nil, err
	}

	lengthRows, err := db.conn.QueryContext(ctx,
		`SELECT parameter_id, name, default_value, length FROM string_length_parameters WHERE part_id = ?`, partID)
	if err != nil {
		return nil, fmt.Errorf("failed to query string length parameters: %w", err)
	}
	defer lengthRows.Close()
	for lengthRows.Next() {
		var p models.StringLengthParameter
		if err := lengthRows.Scan(&p.ParameterID, &p.Name, &p.Default, &p.Length); err != nil {
			return nil, fmt.Errorf("failed to scan string length parameter: %w", err)
		}
		params = append(params, p)
	}
	if err := lengthRows.Err(); err != nil {
		return nil, err
	}

	intListParams, err := db.getIntListParameters(ctx, partID)
	if err != nil {
		return nil, err
	}
	params = append(params, intListParams...)

	floatListParams, err := db.getFloatListParameters(ctx, partID)
	if err != nil {
		return nil, err
	}
	params = append(params, floatListParams...)

	stringListParams, err := db.getStringListParameters(ctx, partID)
	if err != nil {
		return nil, err
	}
	params = append(params, stringListParams...)

	// Parameter IDs are monotonic across the index pass, so sorting on them
	// restores the manifest's insertion order across the variant tables.
	sort.Slice(params, func(i, j int) bool {
		return params[i].ID() < params[j].ID()
	})

	return params, nil
}

func (db *DB) getIntListParameters(ctx context.Context, partID int64) ([]models.Parameter, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT parameter_id, name, default_value FROM int_list_parameters WHERE part_id = ?`, partID)
	if err != nil {
		return nil, fmt.Errorf("failed to query int list parameters: %w", err)
	}
	defer rows.Close()

	var out []models.Parameter
	var pending []models.IntListParameter
	for rows.Next() {
		var p models.IntListParameter
		if err := rows.Scan(&p.ParameterID, &p.Name, &p.Default); err != nil {
			return nil, fmt.Errorf("failed to scan int list parameter: %w", err)
		}
		pending = append(pending, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, p := range pending {
		items, err := db.conn.QueryContext(ctx,
			`SELECT value FROM int_list_items WHERE parameter_id = ? ORDER BY item_id`, p.ParameterID)
		if err != nil {
			return nil, fmt.Errorf("failed to query int list items: %w", err)
		}
		for items.Next() {
			var v int64
			if err := items.Scan(&v); err != nil {
				items.Close()
				return nil, fmt.Errorf("failed to scan int list item: %w", err)
			}
			p.Items = append(p.Items, v)
		}
		if err := items.Err(); err != nil {
			items.Close()
			return nil, err
		}
		items.Close()
		out = append(out, p)
	}

	return out, nil
}

func (db *DB) getFloatListParameters(ctx context.Context, partID int64) ([]models.Parameter, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT parameter_id, name, default_value FROM float_list_parameters WHERE part_id = ?`, partID)
	if err != nil {
		return nil, fmt.Errorf("failed to query float list parameters: %w", err)
	}
	defer rows.Close()

	var out []models.Parameter
	var pending []models.FloatListParameter
	for rows.Next() {
		var p models.FloatListParameter
		if err := rows.Scan(&p.ParameterID, &p.Name, &p.Default); err != nil {
			return nil, fmt.Errorf("failed to scan float list parameter: %w", err)
		}
		pending = append(pending, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, p := range pending {
		items, err := db.conn.QueryContext(ctx,
			`SELECT value FROM float_list_items WHERE parameter_id = ? ORDER BY item_id`, p.ParameterID)
		if err != nil {
			return nil, fmt.Errorf("failed to query float list items: %w", err)
		}
		for items.Next() {
			var v float64
			if err := items.Scan(&v); err != nil {
				items.Close()
				return nil, fmt.Errorf("failed to scan float list item: %w", err)
			}
			p.Items = append(p.Items, v)
		}
		if err := items.Err(); err != nil {
			items.Close()
			return nil, err
		}
		items.Close()
		out = append(out, p)
	}

	return out, nil
}

func (db *DB) getStringListParameters(ctx context.Context, partID int64) ([]models.Parameter, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT parameter_id, name, default_value FROM string_list_parameters WHERE part_id = ?`, partID)
	if err != nil {
		return nil, fmt.Errorf("failed to query string list parameters: %w", err)
	}
	defer rows.Close()

	var out []models.Parameter
	var pending []models.StringListParameter
	for rows.Next() {
		var p models.StringListParameter
		if err := rows.Scan(&p.ParameterID, &p.Name, &p.Default); err != nil {
			return nil, fmt.Errorf("failed to scan string list parameter: %w", err)
		}
		pending = append(pending, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, p := range pending {
		items, err := db.conn.QueryContext(ctx,
			`SELECT value FROM string_list_items WHERE parameter_id = ? ORDER BY item_id`, p.ParameterID)
		if err != nil {
			return nil, fmt.Errorf("failed to query string list items: %w", err)
		}
		for items.Next() {
			var v string
			if err := items.Scan(&v); err != nil {
				items.Close()
				return nil, fmt.Errorf("failed to scan string list item: %w", err)
			}
			p.Items = append(p.Items, v)
		}
		if err := items.Err(); err != nil {
			items.Close()
			return nil, err
		}
		items.Close()
		out = append(out, p)
	}

	return out, nil
}

// Instance operations

// CreateInstance inserts a new instance with usage 0 and the next age in the
// insertion sequence.
func (db *DB) CreateInstance(ctx context.Context, instance *models.Instance) error {
	query := `INSERT INTO instances (path, command_text, usage, age, part_id)
		VALUES (?, ?, 0, (SELECT COALESCE(MAX(age), 0) + 1 FROM instances), ?)`

	_, err := db.conn.ExecContext(ctx, query, instance.Path, instance.CommandText, instance.PartID)
	if err != nil {
		return fmt.Errorf("failed to create instance: %w", err)
	}

	return nil
}

// RestoreInstance reinserts a snapshot row verbatim, preserving its usage
// count and age.
func (db *DB) RestoreInstance(ctx context.Context, instance models.Instance) error {
	query := `INSERT INTO instances (path, command_text, usage, age, part_id) VALUES (?, ?, ?, ?, ?)`

	_, err := db.conn.ExecContext(ctx, query, instance.Path, instance.CommandText,
		instance.Usage, instance.Age, instance.PartID)
	if err != nil {
		return fmt.Errorf("failed to restore instance: %w", err)
	}

	return nil
}

// GetInstance returns the instance keyed by path, or nil when absent.
func (db *DB) GetInstance(ctx context.Context, path string) (*models.Instance, error) {
	query := `SELECT path, command_text, usage, age, part_id FROM instances WHERE path = ?`

	var inst models.Instance
	err := db.conn.QueryRowContext(ctx, query, path).Scan(
		&inst.Path, &inst.CommandText, &inst.Usage, &inst.Age, &inst.PartID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}

	return &inst, nil
}

// DeleteInstance removes the instance keyed by path.
func (db *DB) DeleteInstance(ctx context.Context, path string) error {
	query := `DELETE FROM instances WHERE path = ?`

	_, err := db.conn.ExecContext(ctx, query, path)
	if err != nil {
		return fmt.Errorf("failed to delete instance: %w", err)
	}

	return nil
}

// IncrementUsage bumps the usage counter recorded for a cache hit.
func (db *DB) IncrementUsage(ctx context.Context, path string) error {
	query := `UPDATE instances SET usage = usage + 1 WHERE path = ?`

	res, err := db.conn.ExecContext(ctx, query, path)
	if err != nil {
		return fmt.Errorf("failed to increment instance usage: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("no instance with path %s", path)
	}

	return nil
}

// FindLeastValuableInstance returns the eviction victim: lowest usage, ties
// broken by lowest age (the oldest insertion).
func (db *DB) FindLeastValuableInstance(ctx context.Context) (*models.Instance, error) {
	query := `SELECT path, command_text, usage, age, part_id FROM instances ORDER BY usage ASC, age ASC LIMIT 1`

	var inst models.Instance
	err := db.conn.QueryRowContext(ctx, query).Scan(
		&inst.Path, &inst.CommandText, &inst.Usage, &inst.Age, &inst.PartID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find least valuable instance: %w", err)
	}

	return &inst, nil
}

// SnapshotInstances returns all instance rows, ordered by age, for the
// restore protocol.
func (db *DB) SnapshotInstances(ctx context.Context) ([]models.Instance, error) {
	query := `SELECT path, command_text, usage, age, part_id FROM instances ORDER BY age`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot instances: %w", err)
	}
	defer rows.Close()

	var out []models.Instance
	for rows.Next() {
		var inst models.Instance
		if err := rows.Scan(&inst.Path, &inst.CommandText, &inst.Usage, &inst.Age, &inst.PartID); err != nil {
			return nil, fmt.Errorf("failed to scan instance: %w", err)
		}
		out = append(out, inst)
	}

	return out, rows.Err()
}
