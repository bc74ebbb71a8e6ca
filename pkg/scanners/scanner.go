// Package scanners implements the deterministic pattern scanner for CodeShield
// and the Finding type shared by every detection source.
package scanners

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/brad07/codeshield/pkg/signatures"
)

// DetectionMethod records which source produced a finding.
type DetectionMethod string

const (
	MethodPattern  DetectionMethod = "pattern"
	MethodSemantic DetectionMethod = "semantic"
	MethodHybrid   DetectionMethod = "hybrid"
)

// Finding represents a single detected potential vulnerability.
type Finding struct {
	ID              string              `json:"id"`
	Type            string              `json:"type"` // signature name or reviewer label
	Severity        signatures.Severity `json:"severity"`
	Location        Location            `json:"location"`
	Message         string              `json:"message"`
	Suggestion      string              `json:"suggestion,omitempty"`
	Confidence      float64             `json:"confidence"` // 0 to 100
	DetectionMethod DetectionMethod     `json:"detectionMethod"`

	// Set on pattern findings only.
	SignatureID string `json:"signatureId,omitempty"`
	CWE         string `json:"cwe,omitempty"`
	Snippet     string `json:"snippet,omitempty"`
}

// Location represents where a finding was detected.
type Location struct {
	Line   int  `json:"line"`             // 1-based
	Column *int `json:"column,omitempty"` // 0-based rune offset, nil when unknown
}

// Col returns a pointer to c for use in Location literals.
func Col(c int) *int {
	return &c
}

// Clone returns a deep copy of f.
func (f Finding) Clone() Finding {
	if f.Location.Column != nil {
		f.Location.Column = Col(*f.Location.Column)
	}
	return f
}

var findingNamespace = uuid.MustParse("b6c1f7a2-3d54-4e8f-9a0b-7c2d1e6f4a38")

// FindingID derives a stable id from the signature or category key, the
// location and a sequence number. Identical input always yields identical ids.
func FindingID(key string, line, column, seq int) string {
	name := fmt.Sprintf("%s:%d:%d:%d", key, line, column, seq)
	return uuid.NewSHA1(findingNamespace, []byte(name)).String()
}

// ClampConfidence bounds c to [0, 100].
func ClampConfidence(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 100:
		return 100
	default:
		return c
	}
}
