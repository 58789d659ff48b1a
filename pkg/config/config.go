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

// Package config persists the shared service configuration in the platform
// configuration directory, under the application name.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	appName    = "forge"
	configFile = "config.yaml"
)

// Config holds the paths and limits shared by the server and the indexer.
type Config struct {
	ModelsPath   string `yaml:"models_path"`
	BuildPath    string `yaml:"build_path"`
	DatabasePath string `yaml:"database_path"`
	ModelLimit   int64  `yaml:"model_limit"`
}

// Default returns the configuration used before any `forgectl config` run.
func Default() Config {
	return Config{ModelLimit: 100}
}

// Path returns the location of the persisted configuration file.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve user config directory: %w", err)
	}
	return filepath.Join(dir, appName, configFile), nil
}

// Load reads the persisted configuration. A missing file yields Default().
func Load() (Config, error) {
	path, err := Path()
	if err != nil {
		return Config{}, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Save validates that the models and build paths exist and that the model
// limit is positive, then writes the config file, creating the directory if
// needed. The database path is not checked.
func Save(cfg Config) error {
	for _, p := range []string{cfg.ModelsPath, cfg.BuildPath} {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("failed to stat configured path %s: %w", p, err)
		}
	}
	if cfg.ModelLimit <= 0 {
		return fmt.Errorf("model limit must be positive, got %d", cfg.ModelLimit)
	}

	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
