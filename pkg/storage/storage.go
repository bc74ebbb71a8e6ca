// Package storage records scan summaries for the daemon's statistics.
package storage

import (
	"time"

	"github.com/brad07/codeshield/pkg/engine"
	"github.com/brad07/codeshield/pkg/score"
)

// ScanRecord is the stored summary of one scan. Findings themselves are not
// kept.
type ScanRecord struct {
	ID             string        `json:"scan_id"`
	Timestamp      time.Time     `json:"timestamp"`
	Filename       string        `json:"filename,omitempty"`
	Language       string        `json:"language,omitempty"`
	Score          float64       `json:"score"`
	MaxScore       float64       `json:"max_score"`
	Summary        score.Summary `json:"summary"`
	Suppressed     int           `json:"suppressed"`
	SemanticStatus string        `json:"semantic_status"`
	DurationMS     int64         `json:"duration_ms"`
}

// NewRecord summarizes a scan result.
func NewRecord(r *engine.ScanResult, at time.Time) ScanRecord {
	return ScanRecord{
		ID:             r.ID,
		Timestamp:      at,
		Filename:       r.Filename,
		Language:       r.Language,
		Score:          r.SecurityScore,
		MaxScore:       r.MaxScore,
		Summary:        r.Summary,
		Suppressed:     r.Suppressed,
		SemanticStatus: string(r.Semantic.Status),
		DurationMS:     r.DurationMS,
	}
}

// Stats aggregates stored scans.
type Stats struct {
	TotalScans     int64            `json:"total_scans"`
	ScansToday     int64            `json:"scans_today"`
	Findings       score.Summary    `json:"findings"`
	Suppressed     int64            `json:"suppressed"`
	AverageScore   float64          `json:"average_score"`
	SemanticStatus map[string]int64 `json:"semantic_status"`
	Languages      map[string]int64 `json:"languages"`
}

// Store defines the interface for scan record storage.
type Store interface {
	// Save stores a record.
	Save(rec ScanRecord) error

	// Query retrieves records matching the given criteria, newest first.
	Query(opts QueryOptions) ([]ScanRecord, error)

	// Stats aggregates every record still held.
	Stats() (Stats, error)

	// Close closes the storage.
	Close() error
}

// QueryOptions specifies criteria for querying records.
type QueryOptions struct {
	Limit          int
	Offset         int
	Since          *time.Time
	Until          *time.Time
	Language       string
	SemanticStatus string
	MaxScore       *float64 // only records scoring at or below this value
}
