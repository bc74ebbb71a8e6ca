package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brad07/codeshield/pkg/scanners"
	"github.com/brad07/codeshield/pkg/signatures"
)

func ptr(f float64) *float64 { return &f }

func TestToFindingsNil(t *testing.T) {
	findings, diags := ToFindings(nil)
	assert.NotNil(t, findings)
	assert.Empty(t, findings)
	assert.Empty(t, diags)
}

func TestToFindings(t *testing.T) {
	r := &Review{Vulnerabilities: []Vulnerability{
		{Type: "SQL Injection Risk", Severity: "critical", Line: 11, Description: "Query concatenation", Remediation: "Bind parameters", Confidence: ptr(85)},
		{Type: "Weak Hash", Severity: "Moderate", Line: 4, Description: "MD5", Confidence: ptr(0.7)},
	}}

	findings, diags := ToFindings(r)
	require.Len(t, findings, 2)
	assert.Empty(t, diags)

	f := findings[0]
	assert.Equal(t, "SQL Injection Risk", f.Type)
	assert.Equal(t, signatures.SeverityCritical, f.Severity)
	assert.Equal(t, 11, f.Location.Line)
	assert.Nil(t, f.Location.Column)
	assert.Equal(t, "Query concatenation", f.Message)
	assert.Equal(t, "Bind parameters", f.Suggestion)
	assert.Equal(t, 85.0, f.Confidence)
	assert.Equal(t, scanners.MethodSemantic, f.DetectionMethod)
	assert.NotEmpty(t, f.ID)

	assert.Equal(t, signatures.SeverityMedium, findings[1].Severity)
	assert.InDelta(t, 70.0, findings[1].Confidence, 1e-9)
}

func TestToFindingsNormalizes(t *testing.T) {
	r := &Review{Vulnerabilities: []Vulnerability{
		{Type: "Mystery", Severity: "apocalyptic", Line: 0, Description: "d", Confidence: ptr(140)},
		{Type: "", Severity: "low", Line: 2},
		{Type: "Negative", Severity: "high", Line: -5, Confidence: ptr(-3)},
	}}

	findings, diags := ToFindings(r)
	require.Len(t, findings, 3)

	assert.Equal(t, signatures.SeverityLow, findings[0].Severity)
	assert.Equal(t, 1, findings[0].Location.Line)
	assert.Equal(t, 100.0, findings[0].Confidence)

	assert.Equal(t, "Security Issue", findings[1].Type)
	assert.Equal(t, 50.0, findings[1].Confidence)
	assert.Equal(t, "Security Issue", findings[1].Message)

	assert.Equal(t, 1, findings[2].Location.Line)
	assert.Equal(t, 0.0, findings[2].Confidence)

	codes := map[string]int{}
	for _, d := range diags {
		codes[d.Code]++
		assert.NotEmpty(t, d.FindingID)
	}
	assert.Equal(t, 1, codes[scanners.DiagUnknownSeverity])
	assert.Equal(t, 2, codes[scanners.DiagInvalidLine])
	assert.Equal(t, 2, codes[scanners.DiagConfidenceClamped])
	assert.Equal(t, 1, codes[scanners.DiagMissingConfidence])
	assert.Equal(t, 1, codes[scanners.DiagMissingType])
}

func TestToFindingsDeterministicIDs(t *testing.T) {
	r := &Review{Vulnerabilities: []Vulnerability{
		{Type: "XSS", Severity: "high", Line: 3, Confidence: ptr(60)},
		{Type: "XSS", Severity: "high", Line: 3, Confidence: ptr(60)},
	}}

	a, _ := ToFindings(r)
	b, _ := ToFindings(r)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a[0].ID, a[1].ID)
}
