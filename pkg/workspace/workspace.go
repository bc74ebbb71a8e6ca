// Package workspace discovers the source files to scan.
package workspace

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/alecthomas/chroma/v2/lexers"
	"go.uber.org/zap"

	"github.com/brad07/codeshield/pkg/signatures"
)

// DefaultMaxFileBytes is the default size limit for a scanned file.
const DefaultMaxFileBytes = 1 << 20

// binarySniffBytes is how much of a file is checked for NUL bytes.
const binarySniffBytes = 8000

var skipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"vendor":       true,
	"node_modules": true,
	".venv":        true,
	"__pycache__":  true,
}

func isSkippedDir(name string) bool {
	return skipDirs[name]
}

// Skip reasons.
const (
	SkipIgnored  = "ignored"
	SkipTooLarge = "too_large"
	SkipBinary   = "binary"
	SkipLanguage = "unknown_language"
)

// File is a file selected for scanning.
type File struct {
	Path     string // as given or joined from the walk root
	Language string // "" when unknown
	Size     int64
}

// Skipped records a file that was not selected.
type Skipped struct {
	Path   string
	Reason string
}

// Options control file discovery.
type Options struct {
	MaxFileBytes int64

	// KnownLanguagesOnly drops files whose language cannot be detected.
	KnownLanguagesOnly bool

	Logger *zap.Logger
}

// Result is the outcome of Collect.
type Result struct {
	Files   []File
	Skipped []Skipped
}

// Collect expands paths into files. Directories are walked recursively with
// vendored and VCS directories skipped and ignore files honored. Files named
// explicitly are always included unless they are binary or too large.
func Collect(paths []string, opts Options) (*Result, error) {
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = DefaultMaxFileBytes
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	res := &Result{}
	seen := make(map[string]bool)

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", p, err)
		}

		if !info.IsDir() {
			res.add(p, info.Size(), opts, seen)
			continue
		}

		if err := res.walk(p, opts, seen); err != nil {
			return nil, err
		}
	}

	sort.Slice(res.Files, func(i, j int) bool { return res.Files[i].Path < res.Files[j].Path })
	return res, nil
}

func (r *Result) walk(root string, opts Options, seen map[string]bool) error {
	ignore, err := LoadIgnorePatterns(root)
	if err != nil {
		return fmt.Errorf("failed to load ignore files under %s: %w", root, err)
	}
	opts.Logger.Debug("walking directory", zap.String("root", root), zap.Int("ignore_patterns", ignore.Len()))

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		if d.IsDir() {
			if isSkippedDir(d.Name()) || ignore.Match(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if ignore.Match(rel, false) {
			r.Skipped = append(r.Skipped, Skipped{Path: path, Reason: SkipIgnored})
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		r.add(path, info.Size(), opts, seen)
		return nil
	})
}

func (r *Result) add(path string, size int64, opts Options, seen map[string]bool) {
	if seen[path] {
		return
	}
	seen[path] = true

	if size > opts.MaxFileBytes {
		r.Skipped = append(r.Skipped, Skipped{Path: path, Reason: SkipTooLarge})
		return
	}

	binary, err := IsBinary(path)
	if err != nil {
		opts.Logger.Warn("failed to inspect file", zap.String("path", path), zap.Error(err))
		return
	}
	if binary {
		r.Skipped = append(r.Skipped, Skipped{Path: path, Reason: SkipBinary})
		return
	}

	lang := DetectLanguage(path)
	if lang == "" && opts.KnownLanguagesOnly {
		r.Skipped = append(r.Skipped, Skipped{Path: path, Reason: SkipLanguage})
		return
	}

	r.Files = append(r.Files, File{Path: path, Language: lang, Size: size})
}

// IsBinary reports whether the file looks binary: a NUL byte in its first
// few kilobytes.
func IsBinary(path string) (bool, error) {
	f, err := os.Open(path) // #nosec G304 - caller selected the path
	if err != nil {
		return false, err
	}
	defer f.Close()

	buf := make([]byte, binarySniffBytes)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false, err
	}
	return bytes.IndexByte(buf[:n], 0) >= 0, nil
}

// DetectLanguage maps a filename to a language tag. Extensions are checked
// first, then chroma's lexer registry, which knows many filenames such as
// Dockerfile or Makefile.
func DetectLanguage(filename string) string {
	if lang := signatures.LanguageFromFilename(filename); lang != "" {
		return lang
	}

	lexer := lexers.Match(filepath.Base(filename))
	if lexer == nil {
		return ""
	}
	return signatures.NormalizeLanguage(lexer.Config().Name)
}

// ReadFile reads a selected file as text.
func ReadFile(f File) (string, error) {
	data, err := os.ReadFile(f.Path) // #nosec G304 - path comes from Collect
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", f.Path, err)
	}
	return string(data), nil
}
