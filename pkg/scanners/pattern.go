package scanners

import (
	"strings"
	"unicode/utf8"

	"github.com/brad07/codeshield/pkg/signatures"
)

// PatternScanner applies a signature registry to source text line by line.
type PatternScanner struct {
	registry *signatures.Registry
}

// NewPatternScanner creates a pattern scanner over registry.
func NewPatternScanner(registry *signatures.Registry) *PatternScanner {
	return &PatternScanner{registry: registry}
}

// Name returns the scanner's name.
func (s *PatternScanner) Name() string {
	return "pattern"
}

// Detect returns one finding per non-overlapping match of every signature
// applicable to language, ordered by line, then registry order, then column.
// Signatures firing on the same span are all kept.
func (s *PatternScanner) Detect(text, language string) []Finding {
	findings := make([]Finding, 0)
	if text == "" || s.registry == nil {
		return findings
	}

	sigs := s.registry.Applicable(language)
	if len(sigs) == 0 {
		return findings
	}

	for i, line := range SplitLines(text) {
		if line == "" {
			continue
		}
		lineNo := i + 1

		for j := range sigs {
			sig := &sigs[j]
			re := sig.Regexp()
			if re == nil {
				continue
			}

			for _, match := range re.FindAllStringIndex(line, -1) {
				column := utf8.RuneCountInString(line[:match[0]])
				findings = append(findings, Finding{
					ID:              FindingID(sig.ID, lineNo, column, len(findings)),
					Type:            sig.Name,
					Severity:        sig.Severity,
					Location:        Location{Line: lineNo, Column: Col(column)},
					Message:         sig.Description,
					Suggestion:      sig.Remediation,
					Confidence:      Confidence(sig.Severity, line[match[0]:match[1]], line),
					DetectionMethod: MethodPattern,
					SignatureID:     sig.ID,
					CWE:             sig.CWE,
					Snippet:         strings.TrimSpace(line),
				})
			}
		}
	}

	return findings
}

// SplitLines splits text on "\n" and drops a trailing "\r" from each line so
// CRLF input keeps the same line numbering.
func SplitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
