// Package loader finds history logs and merges them into one newest-first
// sequence.
package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/asheshgoplani/osh/internal/codec"
)

// Patterns matched below the history root.
var (
	TextPattern   = "**/*" + codec.TextExt
	BinaryPattern = "**/*" + codec.BinaryExt
)

// DefaultPatterns reads both encodings.
func DefaultPatterns() []string {
	return []string{TextPattern, BinaryPattern}
}

// Discover globs patterns below root and returns absolute, symlink-resolved
// paths, deduplicated and sorted. A missing root yields no files.
func Discover(root string, patterns ...string) ([]string, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns()
	}
	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", root, err)
	}

	fsys := os.DirFS(abs)
	seen := make(map[string]struct{})
	var out []string
	for _, pattern := range patterns {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly(), doublestar.WithFailOnIOErrors())
		if err != nil {
			return nil, fmt.Errorf("glob %s in %s: %w", pattern, abs, err)
		}
		for _, m := range matches {
			p := filepath.Join(abs, filepath.FromSlash(m))
			if real, err := filepath.EvalSymlinks(p); err == nil {
				p = real
			}
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	slices.Sort(out)
	loaderLog.Debug("discovered", "root", abs, "files", len(out))
	return out, nil
}
