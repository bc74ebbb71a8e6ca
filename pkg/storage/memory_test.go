package storage

import (
	"fmt"
	"testing"
	"time"

	"github.com/brad07/codeshield/pkg/engine"
	"github.com/brad07/codeshield/pkg/score"
)

func record(id string, at time.Time, lang string, sc float64) ScanRecord {
	return ScanRecord{
		ID:             id,
		Timestamp:      at,
		Language:       lang,
		Score:          sc,
		MaxScore:       100,
		Summary:        score.Summary{High: 1, Total: 1},
		SemanticStatus: "ok",
	}
}

func TestNewRecord(t *testing.T) {
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	rec := NewRecord(&engine.ScanResult{
		ID:            "scan-9",
		Filename:      "a.go",
		Language:      "go",
		SecurityScore: 85.8,
		MaxScore:      100,
		Summary:       score.Summary{High: 1, Total: 1},
		Suppressed:    3,
		Semantic:      engine.Semantic{Status: engine.SemanticCached},
	}, at)

	if rec.ID != "scan-9" || rec.Score != 85.8 || rec.Suppressed != 3 {
		t.Errorf("unexpected record %+v", rec)
	}
	if rec.SemanticStatus != "cached" {
		t.Errorf("SemanticStatus = %q, want cached", rec.SemanticStatus)
	}
	if !rec.Timestamp.Equal(at) {
		t.Errorf("Timestamp = %v, want %v", rec.Timestamp, at)
	}
}

func TestMemoryStoreQuery(t *testing.T) {
	s := NewMemoryStore(0)
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	_ = s.Save(record("a", base, "go", 100))
	_ = s.Save(record("b", base.Add(time.Hour), "python", 60))
	_ = s.Save(record("c", base.Add(2*time.Hour), "go", 75))

	threshold := 80.0
	since := base.Add(30 * time.Minute)

	tests := []struct {
		name string
		opts QueryOptions
		want []string
	}{
		{"all newest first", QueryOptions{}, []string{"c", "b", "a"}},
		{"language", QueryOptions{Language: "go"}, []string{"c", "a"}},
		{"since", QueryOptions{Since: &since}, []string{"c", "b"}},
		{"max score", QueryOptions{MaxScore: &threshold}, []string{"c", "b"}},
		{"limit", QueryOptions{Limit: 1}, []string{"c"}},
		{"offset", QueryOptions{Offset: 2}, []string{"a"}},
		{"offset past end", QueryOptions{Offset: 5}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Query(tt.opts)
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Query() returned %d records, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].ID != tt.want[i] {
					t.Errorf("record %d = %s, want %s", i, got[i].ID, tt.want[i])
				}
			}
		})
	}
}

func TestMemoryStoreCapacity(t *testing.T) {
	s := NewMemoryStore(3)
	for i := 0; i < 5; i++ {
		_ = s.Save(record(fmt.Sprintf("r%d", i), time.Now(), "go", 100))
	}

	if s.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", s.Len())
	}
	got, _ := s.Query(QueryOptions{})
	if got[0].ID != "r4" || got[2].ID != "r2" {
		t.Errorf("expected r4..r2, got %s..%s", got[0].ID, got[2].ID)
	}
}

func TestMemoryStoreStats(t *testing.T) {
	now := time.Date(2026, 5, 2, 15, 0, 0, 0, time.UTC)
	s := NewMemoryStore(0)
	s.now = func() time.Time { return now }

	_ = s.Save(record("old", now.Add(-24*time.Hour), "go", 50))
	_ = s.Save(record("today", now.Add(-time.Hour), "python", 100))
	tenPoint := record("scale10", now, "go", 7.5)
	tenPoint.MaxScore = 10
	tenPoint.SemanticStatus = "unavailable"
	tenPoint.Suppressed = 2
	_ = s.Save(tenPoint)

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}

	if stats.TotalScans != 3 {
		t.Errorf("TotalScans = %d, want 3", stats.TotalScans)
	}
	if stats.ScansToday != 2 {
		t.Errorf("ScansToday = %d, want 2", stats.ScansToday)
	}
	if stats.Findings.High != 3 || stats.Findings.Total != 3 {
		t.Errorf("Findings = %+v, want 3 high", stats.Findings)
	}
	if stats.Suppressed != 2 {
		t.Errorf("Suppressed = %d, want 2", stats.Suppressed)
	}
	// (50 + 100 + 75) / 3
	if stats.AverageScore != 75 {
		t.Errorf("AverageScore = %v, want 75", stats.AverageScore)
	}
	if stats.SemanticStatus["ok"] != 2 || stats.SemanticStatus["unavailable"] != 1 {
		t.Errorf("SemanticStatus = %v", stats.SemanticStatus)
	}
	if stats.Languages["go"] != 2 {
		t.Errorf("Languages = %v", stats.Languages)
	}
}

func TestMemoryStoreEmptyStats(t *testing.T) {
	stats, err := NewMemoryStore(0).Stats()
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalScans != 0 || stats.AverageScore != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestMemoryStoreClear(t *testing.T) {
	s := NewMemoryStore(0)
	_ = s.Save(record("a", time.Now(), "go", 100))
	s.Clear()
	if s.Len() != 0 {
		t.Errorf("Len() = %d after Clear, want 0", s.Len())
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
