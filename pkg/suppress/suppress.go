// Package suppress handles inline codeshield:ignore annotations that silence
// findings on the annotated line and the line after it.
package suppress

import (
	"strings"

	"github.com/brad07/codeshield/pkg/scanners"
)

const marker = "codeshield:ignore"

// commentPrefixes are the language-agnostic comment markers we recognize.
var commentPrefixes = []string{"//", "#", "--", "/*", "<!--", "*"}

// Suppression is one codeshield:ignore annotation.
type Suppression struct {
	Line   int      `json:"line"`
	IDs    []string `json:"ids,omitempty"` // empty means every finding
	Reason string   `json:"reason,omitempty"`
}

// Covers reports whether the suppression applies to finding f.
func (s Suppression) Covers(f scanners.Finding) bool {
	if f.Location.Line != s.Line && f.Location.Line != s.Line+1 {
		return false
	}
	if len(s.IDs) == 0 {
		return true
	}
	for _, id := range s.IDs {
		if id == f.SignatureID || strings.EqualFold(id, f.Type) {
			return true
		}
	}
	return false
}

// Parse collects the annotations in code. Line numbers are 1-based.
func Parse(code string) []Suppression {
	if !strings.Contains(code, marker) {
		return nil
	}

	var result []Suppression
	for i, line := range scanners.SplitLines(code) {
		if s, ok := parseLine(line); ok {
			s.Line = i + 1
			result = append(result, s)
		}
	}
	return result
}

// parseLine extracts an annotation from a line containing
// "codeshield:ignore [id[,id...]] [-- reason]" inside a comment. The comment
// may trail code on the same line.
func parseLine(line string) (Suppression, bool) {
	idx := strings.Index(line, marker)
	if idx < 0 || !inComment(line[:idx]) {
		return Suppression{}, false
	}

	rest := line[idx+len(marker):]
	if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
		// e.g. codeshield:ignored
		return Suppression{}, false
	}

	rest = strings.TrimSpace(rest)
	rest = strings.TrimSpace(strings.TrimSuffix(rest, "*/"))
	rest = strings.TrimSpace(strings.TrimSuffix(rest, "-->"))

	var s Suppression
	if dashIdx := strings.Index(rest, "--"); dashIdx >= 0 {
		s.Reason = strings.TrimSpace(rest[dashIdx+2:])
		rest = rest[:dashIdx]
	}

	for _, id := range strings.FieldsFunc(rest, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' }) {
		s.IDs = append(s.IDs, id)
	}
	return s, true
}

// inComment reports whether text preceding the marker opens a comment.
func inComment(before string) bool {
	trimmed := strings.TrimSpace(before)
	for _, prefix := range commentPrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	for _, prefix := range []string{"//", "#", "--", "/*", "<!--"} {
		if strings.Contains(before, prefix) {
			return true
		}
	}
	return false
}

// Apply splits findings into those kept and those covered by a suppression.
// Order is preserved in both slices.
func Apply(findings []scanners.Finding, sups []Suppression) (kept, suppressed []scanners.Finding) {
	kept = make([]scanners.Finding, 0, len(findings))
	if len(sups) == 0 {
		return append(kept, findings...), nil
	}

	for _, f := range findings {
		if covered(f, sups) {
			suppressed = append(suppressed, f)
			continue
		}
		kept = append(kept, f)
	}
	return kept, suppressed
}

func covered(f scanners.Finding, sups []Suppression) bool {
	for _, s := range sups {
		if s.Covers(f) {
			return true
		}
	}
	return false
}
