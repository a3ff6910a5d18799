package manifest

import (
	"os"
	"path/filepath"
)

// WalkRepository finds every component directory under root: a
// directory containing a MANIFEST file is a component, and its
// subdirectories are not searched further. Grounded on
// original_source/src/firewheel/control/model_component_path_iterator.py's
// _walk_dir/_is_path_model_component pair. A missing root is tolerated
// (returns no paths, no error), matching the original's warn-and-skip
// behavior for a repository whose directory has vanished.
func WalkRepository(root string) ([]string, error) {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil, nil
	}
	return walkDir(root)
}

func walkDir(dir string) ([]string, error) {
	if isComponentDir(dir) {
		return []string{dir}, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sub, err := walkDir(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}
	return out, nil
}

func isComponentDir(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, FileName))
	return err == nil
}

// LoadAll loads every component manifest reachable from root, keyed by
// component name. Later components with the same name overwrite
// earlier ones in the returned map — callers needing duplicate
// detection should inspect the Manifest's Path field across repeated
// repository roots themselves.
func LoadAll(roots []string) (map[string]*Manifest, error) {
	byName := make(map[string]*Manifest)
	for _, root := range roots {
		paths, err := WalkRepository(root)
		if err != nil {
			return nil, err
		}
		for _, path := range paths {
			m, err := Load(path)
			if err != nil {
				return nil, err
			}
			byName[m.Name] = m
		}
	}
	return byName, nil
}
