package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/brad07/codeshield/pkg/signatures"
)

const customPack = `id: custom
name: Custom rules
version: "1.0"
signatures:
  - id: internal-debug-endpoint
    name: Internal Debug Endpoint
    severity: medium
    languages: ["*"]
    pattern: '/internal/debug'
    description: Debug endpoint exposed.
    remediation: Remove the endpoint from production builds.
`

type recordingTarget struct {
	mu  sync.Mutex
	reg *signatures.Registry
	n   int
}

func (r *recordingTarget) SetRegistry(reg *signatures.Registry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reg = reg
	r.n++
}

func (r *recordingTarget) get() (*signatures.Registry, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reg, r.n
}

func baseRegistry() *signatures.Registry {
	return signatures.MustNewRegistry(signatures.Signature{
		ID:        "builtin",
		Name:      "Built-in",
		Pattern:   `danger`,
		Severity:  signatures.SeverityHigh,
		Languages: []string{"*"},
	})
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestLoadRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	writeFile(t, path, customPack)

	r, err := LoadRegistry(baseRegistry(), path)
	if err != nil {
		t.Fatalf("LoadRegistry() error = %v", err)
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
	if _, ok := r.Lookup("internal-debug-endpoint"); !ok {
		t.Error("custom signature missing")
	}
}

func TestLoadRegistryDuplicateBuiltin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	writeFile(t, path, `id: dup
name: Dup
signatures:
  - id: builtin
    name: Shadow
    severity: low
    languages: ["*"]
    pattern: 'x+'
`)

	if _, err := LoadRegistry(baseRegistry(), path); err == nil {
		t.Error("expected duplicate id error")
	}
}

func TestReloadKeepsRegistryOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	writeFile(t, path, customPack)

	target := &recordingTarget{}
	w, err := New(baseRegistry(), target, DefaultConfig(path))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer w.Stop()

	if err := w.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	good, n := target.get()
	if n != 1 {
		t.Fatalf("SetRegistry called %d times, want 1", n)
	}

	writeFile(t, path, "signatures: [ {id: broken, pattern: '('} ]")
	if err := w.Reload(); err == nil {
		t.Fatal("expected reload error for invalid pack")
	}

	current, n := target.get()
	if n != 1 || current != good {
		t.Error("failed reload replaced the registry")
	}
	if w.Reloads() != 1 || w.Failures() != 1 {
		t.Errorf("Reloads() = %d, Failures() = %d, want 1 and 1", w.Reloads(), w.Failures())
	}
}

func TestNewRequiresPath(t *testing.T) {
	if _, err := New(baseRegistry(), &recordingTarget{}, Config{}); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	writeFile(t, path, "id: empty\n")

	target := &recordingTarget{}
	cfg := DefaultConfig(path)
	cfg.DebounceInterval = 50 * time.Millisecond
	w, err := New(baseRegistry(), target, cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Let the watch register before writing.
	time.Sleep(50 * time.Millisecond)
	writeFile(t, path, customPack)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if reg, _ := target.get(); reg != nil {
			if _, ok := reg.Lookup("internal-debug-endpoint"); ok {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
	}

	reg, _ := target.get()
	if reg == nil {
		t.Fatal("registry was not reloaded after write")
	}
	if _, ok := reg.Lookup("builtin"); !ok {
		t.Error("reloaded registry lost built-in signatures")
	}

	if err := w.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}
