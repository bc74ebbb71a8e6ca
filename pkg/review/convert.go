package review

import (
	"fmt"
	"strings"

	"github.com/brad07/codeshield/pkg/scanners"
	"github.com/brad07/codeshield/pkg/signatures"
)

const (
	defaultConfidence = 50
	defaultType       = "Security Issue"
)

// ToFindings converts a review into semantic findings. Values the reviewer
// got wrong are normalized and reported as diagnostics: unknown severities
// become low, confidences given as fractions are scaled to percent, and
// missing confidences default to 50. A nil review yields no findings.
func ToFindings(r *Review) ([]scanners.Finding, []scanners.Diagnostic) {
	findings := make([]scanners.Finding, 0)
	if r == nil {
		return findings, nil
	}

	var diags []scanners.Diagnostic
	for i, v := range r.Vulnerabilities {
		typ := strings.TrimSpace(v.Type)
		line := v.Line
		if line < 1 {
			line = 1
		}
		id := scanners.FindingID("semantic:"+strings.ToLower(typ), line, -1, i)

		if typ == "" {
			typ = defaultType
			diags = append(diags, scanners.Diagnostic{
				Code:      scanners.DiagMissingType,
				Message:   "reviewer finding has no type",
				FindingID: id,
			})
		}

		if v.Line < 1 {
			diags = append(diags, scanners.Diagnostic{
				Code:      scanners.DiagInvalidLine,
				Message:   fmt.Sprintf("line %d replaced with 1", v.Line),
				FindingID: id,
			})
		}

		sev, ok := signatures.ParseSeverity(v.Severity)
		if !ok {
			diags = append(diags, scanners.Diagnostic{
				Code:      scanners.DiagUnknownSeverity,
				Message:   fmt.Sprintf("unknown severity %q treated as low", v.Severity),
				FindingID: id,
			})
		}

		confidence, diag := normalizeConfidence(v.Confidence)
		if diag != "" {
			code := scanners.DiagConfidenceClamped
			if v.Confidence == nil {
				code = scanners.DiagMissingConfidence
			}
			diags = append(diags, scanners.Diagnostic{Code: code, Message: diag, FindingID: id})
		}

		message := strings.TrimSpace(v.Description)
		if message == "" {
			message = typ
		}

		findings = append(findings, scanners.Finding{
			ID:              id,
			Type:            typ,
			Severity:        sev,
			Location:        scanners.Location{Line: line},
			Message:         message,
			Suggestion:      strings.TrimSpace(v.Remediation),
			Confidence:      confidence,
			DetectionMethod: scanners.MethodSemantic,
		})
	}

	return findings, diags
}

// normalizeConfidence maps a reviewer confidence onto [0, 100]. Values in
// [0, 1] are read as fractions.
func normalizeConfidence(c *float64) (float64, string) {
	if c == nil {
		return defaultConfidence, fmt.Sprintf("missing confidence set to %d", defaultConfidence)
	}

	v := *c
	if v >= 0 && v <= 1 {
		v *= 100
	}
	clamped := scanners.ClampConfidence(v)
	if clamped != v {
		return clamped, fmt.Sprintf("confidence %v clamped to %v", *c, clamped)
	}
	return clamped, ""
}
