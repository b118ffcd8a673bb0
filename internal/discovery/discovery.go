// Package discovery locates quest files (*.sql) under a directory tree.
package discovery

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Discover walks root and returns the absolute paths of all *.sql files,
// sorted for stable batch ordering. Hidden directories and common
// dependency directories are skipped.
func Discover(root string) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root path: %w", err)
	}

	// Verify root exists before walking
	if _, err := os.Stat(absRoot); err != nil {
		return nil, fmt.Errorf("root path: %w", err)
	}

	var quests []string

	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip inaccessible entries
		}

		if d.IsDir() && path != absRoot && strings.HasPrefix(d.Name(), ".") {
			return fs.SkipDir
		}
		if d.IsDir() && (d.Name() == "node_modules" || d.Name() == "vendor") {
			return fs.SkipDir
		}

		if !d.IsDir() && strings.EqualFold(filepath.Ext(d.Name()), ".sql") {
			quests = append(quests, path)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory %s: %w", absRoot, err)
	}

	sort.Strings(quests)
	return quests, nil
}

// Expand resolves glob patterns relative to baseDir into a sorted,
// de-duplicated list of quest paths. Used when a batch manifest lists
// patterns instead of a directory.
func Expand(baseDir string, patterns []string) ([]string, error) {
	seen := make(map[string]struct{})
	var quests []string

	for _, pattern := range patterns {
		fullPattern := pattern
		if !filepath.IsAbs(fullPattern) {
			fullPattern = filepath.Join(baseDir, pattern)
		}
		matches, err := filepath.Glob(fullPattern)
		if err != nil {
			return nil, fmt.Errorf("bad quest pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			quests = append(quests, m)
		}
	}

	if len(quests) == 0 {
		return nil, fmt.Errorf("no quest files matched patterns: %v in directory: %s", patterns, baseDir)
	}

	sort.Strings(quests)
	return quests, nil
}
