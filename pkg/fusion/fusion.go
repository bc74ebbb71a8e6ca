// Package fusion merges pattern findings with findings from an external
// semantic reviewer into one list.
package fusion

import (
	"strings"

	"github.com/brad07/codeshield/pkg/scanners"
)

const (
	overlapBoost = 15
	novelBoost   = 10

	// maxLineDistance is how far apart two findings may be and still describe
	// the same issue.
	maxLineDistance = 1

	suggestionAddendum = "\n\nAI suggestion: "
)

// Merge fuses semantic findings into pattern findings.
//
// A semantic finding that overlaps a pattern finding (within one line, and
// whose type starts with the pattern type's first word) boosts that pattern
// finding by 15, marks it hybrid and appends its suggestion. Only the first
// overlapping pattern finding is updated. A semantic finding with no overlap
// is appended as hybrid with a boost of 10. Confidence never exceeds 100.
//
// The result holds the pattern findings in their original order followed by
// the novel semantic findings in input order. Nothing is ever removed and the
// input slices are not modified.
func Merge(pattern, semantic []scanners.Finding) []scanners.Finding {
	result := make([]scanners.Finding, 0, len(pattern)+len(semantic))
	for _, p := range pattern {
		result = append(result, p.Clone())
	}

	// Novel findings are appended past this index and are never overlap
	// candidates themselves.
	candidates := len(pattern)

	for _, s := range semantic {
		idx := findOverlap(result[:candidates], s)
		if idx < 0 {
			novel := s.Clone()
			novel.DetectionMethod = scanners.MethodHybrid
			novel.Confidence = scanners.ClampConfidence(s.Confidence + novelBoost)
			result = append(result, novel)
			continue
		}

		p := &result[idx]
		p.Confidence = scanners.ClampConfidence(p.Confidence + overlapBoost)
		p.DetectionMethod = scanners.MethodHybrid
		p.Suggestion = appendSuggestion(p.Suggestion, s.Suggestion)
	}

	return result
}

func findOverlap(pattern []scanners.Finding, s scanners.Finding) int {
	for i := range pattern {
		if Overlaps(pattern[i], s) {
			return i
		}
	}
	return -1
}

// Overlaps reports whether pattern finding p and semantic finding s describe
// the same issue: their lines differ by at most one and the first word of
// p.Type, case-insensitively, is a prefix of the first word of s.Type.
func Overlaps(p, s scanners.Finding) bool {
	d := p.Location.Line - s.Location.Line
	if d < -maxLineDistance || d > maxLineDistance {
		return false
	}

	pt, st := firstToken(p.Type), firstToken(s.Type)
	if pt == "" {
		return false
	}
	return strings.HasPrefix(st, pt)
}

func firstToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}

// appendSuggestion adds extra to base as a delimited addendum. Empty or
// already present text is not added again.
func appendSuggestion(base, extra string) string {
	extra = strings.TrimSpace(extra)
	switch {
	case extra == "":
		return base
	case strings.TrimSpace(base) == "":
		return extra
	case base == extra, strings.Contains(base, extra):
		return base
	default:
		return base + suggestionAddendum + extra
	}
}
