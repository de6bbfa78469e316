// Package scan enumerates candidate media files under the watched
// roots. Excluded directory names are pruned during the walk and only
// files with a convertible extension survive.
package scan

import (
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"reconform/internal/logging"
)

// Options configures one enumeration.
type Options struct {
	Roots []string
	// Exclude lists directory names (not paths) skipped wherever
	// they appear.
	Exclude []string
	// Extensions lists convertible file extensions without the dot.
	Extensions []string
}

// Candidates walks every root and returns the matching file paths in
// walk order. Unreadable entries are logged and skipped; a run never
// dies because one directory went away mid-scan.
func Candidates(logger *slog.Logger, opts Options) []string {
	if logger == nil {
		logger = logging.NewNop()
	}

	extensions := make(map[string]bool, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		extensions[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}

	var paths []string
	for _, root := range opts.Roots {
		logger.Info("scanning", logging.String("root", root))
		started := time.Now()
		count := 0

		err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				logger.Warn("scan entry skipped", logging.String("path", path), logging.Error(err))
				if entry != nil && entry.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if entry.IsDir() {
				if path != root && slices.Contains(opts.Exclude, entry.Name()) {
					return fs.SkipDir
				}
				return nil
			}
			if extensions[extensionOf(entry.Name())] {
				paths = append(paths, path)
				count++
			}
			return nil
		})
		if err != nil {
			logger.Warn("scan aborted for root", logging.String("root", root), logging.Error(err))
		}

		logger.Info("scan complete",
			logging.String("root", root),
			logging.Int("candidates", count),
			logging.Duration("elapsed", time.Since(started).Round(time.Millisecond)))
	}
	return paths
}

func extensionOf(name string) string {
	ext := filepath.Ext(name)
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
