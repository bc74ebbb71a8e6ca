package workspace

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// IgnoreFiles are read in every directory of a scanned tree.
var IgnoreFiles = []string{".gitignore", ".codeshieldignore"}

// IgnoreMatcher matches paths relative to a root against gitignore patterns.
type IgnoreMatcher struct {
	matcher gitignore.Matcher
	count   int
}

// LoadIgnorePatterns loads every ignore file found under root. Patterns from a
// nested file only apply below that file's directory.
func LoadIgnorePatterns(root string) (*IgnoreMatcher, error) {
	var all []gitignore.Pattern

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && isSkippedDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		for _, name := range IgnoreFiles {
			if d.Name() == name {
				patterns, err := loadIgnoreFile(path, root)
				if err != nil {
					return err
				}
				all = append(all, patterns...)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &IgnoreMatcher{matcher: gitignore.NewMatcher(all), count: len(all)}, nil
}

func loadIgnoreFile(ignoreFilePath, root string) ([]gitignore.Pattern, error) {
	data, err := os.ReadFile(ignoreFilePath) // #nosec G304 - path comes from the walk
	if err != nil {
		return nil, err
	}

	relDir, err := filepath.Rel(root, filepath.Dir(ignoreFilePath))
	if err != nil {
		return nil, err
	}

	var domain []string
	if relDir != "." {
		domain = strings.Split(relDir, string(filepath.Separator))
	}

	lines := strings.Split(string(data), "\n")
	patterns := make([]gitignore.Pattern, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, domain))
	}
	return patterns, nil
}

// Match reports whether rel (relative to the root) is ignored.
func (m *IgnoreMatcher) Match(rel string, isDir bool) bool {
	if m == nil || m.count == 0 {
		return false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	return m.matcher.Match(parts, isDir)
}

// Len returns the number of loaded patterns.
func (m *IgnoreMatcher) Len() int {
	if m == nil {
		return 0
	}
	return m.count
}
