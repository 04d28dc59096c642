// Package file contains helpers for reading local files as datasources and
// for discovering the input files of a batch.
package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultExtensions is used by Discover when no extensions are given.
var DefaultExtensions = []string{".csv"}

// Discover lists the regular files directly inside dir whose extension
// matches one of exts (case-insensitive), sorted by name.
//
// Hidden files (leading '.') and subdirectories are skipped. Symlinks are
// followed and kept only when they resolve to a regular file. The order is
// lexical so that runs over the same directory are reproducible.
func Discover(dir string, exts []string) ([]string, error) {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", dir, err)
	}

	var out []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") || !hasExt(name, exts) {
			continue
		}
		path := filepath.Join(dir, name)
		switch {
		case e.Type().IsRegular():
		case e.Type()&os.ModeSymlink != 0:
			fi, err := os.Stat(path)
			if err != nil || !fi.Mode().IsRegular() {
				continue
			}
		default:
			continue
		}
		out = append(out, path)
	}
	return out, nil
}

func hasExt(name string, exts []string) bool {
	ext := filepath.Ext(name)
	for _, want := range exts {
		if !strings.HasPrefix(want, ".") {
			want = "." + want
		}
		if strings.EqualFold(ext, want) {
			return true
		}
	}
	return false
}
