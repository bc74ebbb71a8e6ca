package engine

import (
	"github.com/brad07/codeshield/pkg/scanners"
	"github.com/brad07/codeshield/pkg/score"
)

// Request is one file to scan.
type Request struct {
	Filename string `json:"filename,omitempty"`
	Code     string `json:"code"`
	Language string `json:"language,omitempty"` // inferred from Filename when empty

	// SkipReview disables the semantic reviewer for this request only.
	SkipReview bool `json:"skipReview,omitempty"`
}

// SemanticStatus describes what happened to the semantic review of a scan.
type SemanticStatus string

const (
	SemanticOK          SemanticStatus = "ok"
	SemanticCached      SemanticStatus = "cached"
	SemanticDisabled    SemanticStatus = "disabled"
	SemanticSkipped     SemanticStatus = "skipped"
	SemanticUnavailable SemanticStatus = "unavailable"
)

// Degraded reports whether the scan ran without semantic input even though a
// reviewer was configured.
func (s SemanticStatus) Degraded() bool {
	return s == SemanticUnavailable
}

// Semantic reports the reviewer's contribution to a scan.
type Semantic struct {
	Status          SemanticStatus `json:"status"`
	Provider        string         `json:"provider,omitempty"`
	Error           string         `json:"error,omitempty"`
	Findings        int            `json:"findings"`
	OverallRisk     string         `json:"overallRisk,omitempty"`
	Summary         string         `json:"summary,omitempty"`
	Recommendations []string       `json:"recommendations,omitempty"`
}

// ScanResult is the outcome of one scan.
type ScanResult struct {
	ID              string                `json:"id"`
	Filename        string                `json:"filename,omitempty"`
	Language        string                `json:"language,omitempty"`
	Vulnerabilities []scanners.Finding    `json:"vulnerabilities"`
	SecurityScore   float64               `json:"securityScore"`
	MaxScore        float64               `json:"maxScore"`
	Summary         score.Summary         `json:"summary"`
	Semantic        Semantic              `json:"semantic"`
	Suppressed      int                   `json:"suppressed"`
	Diagnostics     []scanners.Diagnostic `json:"diagnostics,omitempty"`
	DurationMS      int64                 `json:"durationMs"`
}
