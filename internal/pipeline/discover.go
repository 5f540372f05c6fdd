package pipeline

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultExtensions are matched by [Discover] when no extensions are given.
var DefaultExtensions = []string{".png"}

// Discover lists the regular files under root whose extension matches one
// of exts (case-insensitive).
//
// Non-recursive discovery returns the immediate children of root only;
// recursive discovery walks the whole subtree. Paths are returned in
// lexical order, so the result is stable for a given filesystem state.
// Unreadable subdirectories are skipped.
func Discover(root string, recursive bool, exts []string) ([]string, error) {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}

	if !recursive {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, fmt.Errorf("failed to read directory %s: %w", root, err)
		}

		var paths []string
		for _, entry := range entries {
			if entry.Type().IsRegular() && matchExt(entry.Name(), exts) {
				paths = append(paths, filepath.Join(root, entry.Name()))
			}
		}
		return paths, nil
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && matchExt(d.Name(), exts) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory %s: %w", root, err)
	}
	return paths, nil
}

func matchExt(name string, exts []string) bool {
	ext := filepath.Ext(name)
	for _, e := range exts {
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}
