package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

func relPaths(t *testing.T, root string, files []File) []string {
	t.Helper()
	out := make([]string, 0, len(files))
	for _, f := range files {
		rel, err := filepath.Rel(root, f.Path)
		require.NoError(t, err)
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}

func TestCollectWalksAndSkips(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"main.go":                   "package main\n",
		"app/server.py":             "print('hi')\n",
		"app/generated/models.py":   "x = 1\n",
		"web/index.ts":              "export {}\n",
		"vendor/lib/lib.go":         "package lib\n",
		"node_modules/pkg/index.js": "module.exports = {}\n",
		".git/config":               "[core]\n",
		"build/out.js":              "var a\n",
		"logo.png":                  "\x89PNG\x00\x00binary",
		".gitignore":                "build/\n",
		"app/.codeshieldignore":     "generated/\n",
	})

	res, err := Collect([]string{root}, Options{})
	require.NoError(t, err)

	paths := relPaths(t, root, res.Files)
	assert.Contains(t, paths, "main.go")
	assert.Contains(t, paths, "app/server.py")
	assert.Contains(t, paths, "web/index.ts")
	assert.NotContains(t, paths, "vendor/lib/lib.go")
	assert.NotContains(t, paths, "node_modules/pkg/index.js")
	assert.NotContains(t, paths, ".git/config")
	assert.NotContains(t, paths, "build/out.js")
	assert.NotContains(t, paths, "app/generated/models.py")
	assert.NotContains(t, paths, "logo.png")

	var binary bool
	for _, s := range res.Skipped {
		if s.Reason == SkipBinary && filepath.Base(s.Path) == "logo.png" {
			binary = true
		}
	}
	assert.True(t, binary, "logo.png should be skipped as binary")

	for i := 1; i < len(res.Files); i++ {
		assert.Less(t, res.Files[i-1].Path, res.Files[i].Path, "files should be sorted")
	}
}

func TestCollectIgnoredFileRecorded(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"secrets.env": "TOKEN=abc\n",
		"keep.go":     "package keep\n",
		".gitignore":  "*.env\n",
	})

	res, err := Collect([]string{root}, Options{})
	require.NoError(t, err)

	assert.NotContains(t, relPaths(t, root, res.Files), "secrets.env")
	require.NotEmpty(t, res.Skipped)
	assert.Equal(t, SkipIgnored, res.Skipped[0].Reason)
}

func TestCollectSizeLimit(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"big.go":   "package big\n// " + strings.Repeat("x", 200) + "\n",
		"small.go": "package small\n",
	})

	res, err := Collect([]string{root}, Options{MaxFileBytes: 100})
	require.NoError(t, err)

	paths := relPaths(t, root, res.Files)
	assert.Equal(t, []string{"small.go"}, paths)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, SkipTooLarge, res.Skipped[0].Reason)
}

func TestCollectExplicitFile(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"notes.txt":  "hello\n",
		".gitignore": "*.txt\n",
	})

	file := filepath.Join(root, "notes.txt")
	res, err := Collect([]string{file, file}, Options{})
	require.NoError(t, err)
	require.Len(t, res.Files, 1, "explicit files bypass ignore files and are deduplicated")
	assert.Equal(t, file, res.Files[0].Path)
}

func TestCollectKnownLanguagesOnly(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"data.unknownext": "???\n",
		"main.go":         "package main\n",
	})

	res, err := Collect([]string{root}, Options{KnownLanguagesOnly: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"main.go"}, relPaths(t, root, res.Files))
}

func TestCollectMissingPath(t *testing.T) {
	_, err := Collect([]string{filepath.Join(t.TempDir(), "missing")}, Options{})
	assert.Error(t, err)
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"main.go", "go"},
		{"app.PY", "python"},
		{"index.tsx", "typescript"},
		{"script.sh", "shell"},
		{"Query.java", "java"},
		{"data.unknownext", ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectLanguage(tt.filename))
		})
	}
}

func TestDetectLanguageChromaFallback(t *testing.T) {
	// Not in the extension table; chroma knows it.
	assert.Equal(t, "lua", DetectLanguage("init.lua"))
}

func TestIsBinary(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"text.go": "package main\n",
		"bin.dat": "abc\x00def",
		"empty":   "",
	})

	for name, want := range map[string]bool{"text.go": false, "bin.dat": true, "empty": false} {
		got, err := IsBinary(filepath.Join(root, name))
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}
}

func TestReadFile(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.go": "package a\n"})

	code, err := ReadFile(File{Path: filepath.Join(root, "a.go")})
	require.NoError(t, err)
	assert.Equal(t, "package a\n", code)

	_, err = ReadFile(File{Path: filepath.Join(root, "nope.go")})
	assert.Error(t, err)
}
