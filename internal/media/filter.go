package media

import (
	"path"
	"strings"
)

// ignoredDirs reject any path containing them.
var ignoredDirs = []string{".git", "node_modules"}

// ignoredFiles reject paths whose last element matches.
var ignoredFiles = map[string]bool{
	".DS_Store":       true,
	"watch_filter.js": true,
}

// Filter reports whether p should be indexed or watched.
func Filter(p string) bool {
	p = strings.ReplaceAll(p, "\\", "/")

	for _, dir := range ignoredDirs {
		if strings.Contains(p, dir) {
			return false
		}
	}

	return !ignoredFiles[path.Base(p)]
}
