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

// Package walker discovers model source triples one level below the model
// root.
package walker

import (
	"fmt"
	"os"
	"path/filepath"
)

// ModelSource is the (image, script, manifest) triple found in one model
// directory. All paths are absolute with symlinks resolved.
type ModelSource struct {
	Dir          string
	ImagePath    string
	ScadPath     string
	ManifestPath string
}

// Walk scans the immediate subdirectories of root. Within each candidate,
// one file per recognized extension is picked up (.jpg image, .scad script,
// .json manifest); when several files share an extension the last in lexical
// order wins. Other files are ignored. Candidates missing any of the three
// files fail the walk.
//
// Subdirectories are visited in lexical order so that an unchanged tree
// yields the same sequence, and therefore stable IDs, on re-index.
func Walk(root string) ([]ModelSource, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read model root %s: %w", root, err)
	}

	var sources []ModelSource
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		src, err := scanCandidate(dir)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}

	return sources, nil
}

func scanCandidate(dir string) (ModelSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ModelSource{}, fmt.Errorf("failed to read model directory %s: %w", dir, err)
	}

	src := ModelSource{Dir: dir}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		switch filepath.Ext(entry.Name()) {
		case ".jpg":
			src.ImagePath = path
		case ".scad":
			src.ScadPath = path
		case ".json":
			src.ManifestPath = path
		}
	}

	switch {
	case src.ImagePath == "":
		return ModelSource{}, fmt.Errorf("model directory %s has no .jpg image", dir)
	case src.ScadPath == "":
		return ModelSource{}, fmt.Errorf("model directory %s has no .scad script", dir)
	case src.ManifestPath == "":
		return ModelSource{}, fmt.Errorf("model directory %s has no .json manifest", dir)
	}

	for _, p := range []*string{&src.Dir, &src.ImagePath, &src.ScadPath, &src.ManifestPath} {
		resolved, err := canonicalize(*p)
		if err != nil {
			return ModelSource{}, err
		}
		*p = resolved
	}

	return src, nil
}

func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("failed to resolve symlinks for %s: %w", abs, err)
	}
	return resolved, nil
}
