package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brad07/codeshield/pkg/api"
	"github.com/brad07/codeshield/pkg/output"
	"github.com/brad07/codeshield/pkg/signatures/packs"
)

const vulnerableGo = `package main

func find(db *sql.DB, userId string) {
	query := "SELECT * FROM users WHERE id = " + userId
	db.Query(query)
}
`

const cleanPy = "def add(a, b):\n    return a + b\n"

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	// Keep the user's config and .env files out of the test.
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	root := newRootCmd(buildInfo{version: "test", commit: "abc", date: "today"})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append(args, "--color", "never"))

	err := root.Execute()
	return out.String(), err
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return dir
}

func decodeReport(t *testing.T, out string) output.Report {
	t.Helper()
	var report output.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report), out)
	return report
}

func TestScanDirectoryJSON(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"main.go":      vulnerableGo,
		"lib/add.py":   cleanPy,
		"image.bin":    "\x00\x01\x02",
		".gitignore":   "build/\n",
		"build/gen.go": vulnerableGo,
	})

	out, err := execute(t, "", "scan", dir, "--format", "json", "--fail-on", "low", "--exit-code", "3")

	var exitErr *exitError
	require.True(t, errors.As(err, &exitErr), "expected exit error, got %v", err)
	assert.Equal(t, 3, exitErr.code)

	report := decodeReport(t, out)
	assert.Equal(t, "test", report.Version)

	byName := make(map[string]bool)
	for _, r := range report.Results {
		rel, err := filepath.Rel(dir, r.Filename)
		require.NoError(t, err)
		byName[filepath.ToSlash(rel)] = true
	}
	assert.True(t, byName["main.go"])
	assert.True(t, byName["lib/add.py"])
	assert.False(t, byName["build/gen.go"], "ignored directory was scanned")
	assert.False(t, byName["image.bin"], "binary file was scanned")

	assert.Positive(t, report.Summary.Critical)
	assert.Positive(t, report.SkippedFiles)
}

func TestScanCleanPasses(t *testing.T) {
	dir := writeTree(t, map[string]string{"add.py": cleanPy})

	out, err := execute(t, "", "scan", dir, "--format", "json")
	require.NoError(t, err)

	report := decodeReport(t, out)
	require.Len(t, report.Results, 1)
	assert.Equal(t, 100.0, report.LowestScore)
}

func TestScanFailOnThreshold(t *testing.T) {
	dir := writeTree(t, map[string]string{"main.go": vulnerableGo})

	// Default fail_on is critical,high.
	_, err := execute(t, "", "scan", dir, "--format", "json")
	var exitErr *exitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 1, exitErr.code)
}

func TestScanStdin(t *testing.T) {
	out, err := execute(t, vulnerableGo, "scan", "--stdin", "--stdin-filename", "handler.go", "--format", "json", "--fail-on", "low", "--exit-code", "1")
	require.Error(t, err)

	report := decodeReport(t, out)
	require.Len(t, report.Results, 1)
	assert.Equal(t, "handler.go", report.Results[0].Filename)
	assert.Equal(t, "go", report.Results[0].Language)
}

func TestScanStdinWithPathsRejected(t *testing.T) {
	_, err := execute(t, "", "scan", "--stdin", "main.go")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--stdin")
}

func TestScanSARIFToFile(t *testing.T) {
	dir := writeTree(t, map[string]string{"main.go": vulnerableGo})
	outPath := filepath.Join(t.TempDir(), "results.sarif")

	out, err := execute(t, "", "scan", dir, "--format", "sarif", "-o", outPath, "--fail-on", "")
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"version": "2.1.0"`)
	assert.Contains(t, string(data), "sqli-concat")
}

func TestScanHumanOutput(t *testing.T) {
	dir := writeTree(t, map[string]string{"main.go": vulnerableGo})

	out, err := execute(t, "", "scan", dir, "--fail-on", "")
	require.NoError(t, err)
	assert.Contains(t, out, "main.go")
	assert.Contains(t, out, "CRITICAL")
}

func TestScanPackSelection(t *testing.T) {
	dir := writeTree(t, map[string]string{"main.go": vulnerableGo})

	out, err := execute(t, "", "scan", dir, "--format", "json", "--packs", "crypto", "--fail-on", "")
	require.NoError(t, err)

	report := decodeReport(t, out)
	for _, f := range report.Results[0].Vulnerabilities {
		assert.NotEqual(t, "sqli-concat", f.SignatureID)
	}
}

func TestScanNoSuppressions(t *testing.T) {
	code := strings.Replace(vulnerableGo, "+ userId", "+ userId // codeshield:ignore sqli-concat", 1)
	dir := writeTree(t, map[string]string{"main.go": code})

	out, err := execute(t, "", "scan", dir, "--format", "json", "--fail-on", "")
	require.NoError(t, err)
	suppressed := decodeReport(t, out).Results[0]
	assert.Equal(t, 1, suppressed.Suppressed)

	out, err = execute(t, "", "scan", dir, "--format", "json", "--fail-on", "", "--no-suppressions")
	require.NoError(t, err)
	assert.Zero(t, decodeReport(t, out).Results[0].Suppressed)
}

func TestScanInvalidFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"format", []string{"scan", ".", "--format", "xml"}},
		{"fail-on", []string{"scan", ".", "--fail-on", "urgent"}},
		{"pack", []string{"scan", ".", "--packs", "nope"}},
		{"exit code", []string{"scan", ".", "--exit-code", "0"}},
		{"provider", []string{"scan", ".", "--llm-provider", "bard"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, "", tt.args...)
			require.Error(t, err)
			var exitErr *exitError
			assert.False(t, errors.As(err, &exitErr))
		})
	}
}

func TestInvalidColor(t *testing.T) {
	root := newRootCmd(buildInfo{version: "test"})
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"version", "--color", "rainbow"})
	assert.Error(t, root.Execute())
}

func TestSignaturesCommand(t *testing.T) {
	out, err := execute(t, "", "signatures", "--json", "--language", "python")
	require.NoError(t, err)

	var resp api.SignaturesResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "python", resp.Language)
	assert.Positive(t, resp.Count)
	assert.Less(t, resp.Count, packs.MustDefault().Len()+1)
}

func TestSignaturesHuman(t *testing.T) {
	out, err := execute(t, "", "signatures")
	require.NoError(t, err)
	assert.Contains(t, out, "sqli-concat")
	assert.Contains(t, out, "signatures")
}

func TestSignaturesPacks(t *testing.T) {
	out, err := execute(t, "", "signatures", "--packs")
	require.NoError(t, err)
	for _, name := range packs.ValidPackNames() {
		assert.Contains(t, out, string(name))
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "codeshield test (commit: abc, built: today)\n", out)
}

func TestInitCommand(t *testing.T) {
	out, err := execute(t, "", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Created")
}
