package progress

import (
	"bytes"
	"testing"
)

func TestIsCI(t *testing.T) {
	t.Setenv("CI", "true")
	if !IsCI() {
		t.Error("Expected IsCI() with CI set")
	}
}

func TestNewFilesDisabled(t *testing.T) {
	var buf bytes.Buffer
	tr := NewFiles(&buf, 10, "scanning", true)

	if _, ok := tr.(nopTracker); !ok {
		t.Fatalf("Expected no-op tracker, got %T", tr)
	}
	if err := tr.Add(1); err != nil {
		t.Errorf("Add: %v", err)
	}
	if err := tr.Finish(); err != nil {
		t.Errorf("Finish: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("Expected no output, got %q", buf.String())
	}
}

func TestNewFilesSingleFile(t *testing.T) {
	if _, ok := NewFiles(&bytes.Buffer{}, 1, "scanning", false).(nopTracker); !ok {
		t.Error("Expected no-op tracker for a single file")
	}
}
