package scanners

import (
	"strings"

	"github.com/brad07/codeshield/pkg/signatures"
)

const (
	baseConfidence = 70
	minConfidence  = 30
	maxConfidence  = 100

	codeContextBonus = 10
	testContextMalus = 20
)

var commentMarkers = []string{"//", "/*", "#"}

// Confidence scores a pattern match. Severity raises it, a comment or test
// context lowers it, and the result always lies in [30, 100]. The matched text
// does not currently affect the score.
func Confidence(severity signatures.Severity, match, line string) float64 {
	c := float64(baseConfidence)

	switch severity {
	case signatures.SeverityCritical:
		c += 20
	case signatures.SeverityHigh:
		c += 15
	case signatures.SeverityMedium:
		c += 10
	}

	if !isCommentLine(line) {
		c += codeContextBonus
	}

	lower := strings.ToLower(line)
	if strings.Contains(lower, "test") || strings.Contains(lower, "mock") {
		c -= testContextMalus
	}

	switch {
	case c < minConfidence:
		return minConfidence
	case c > maxConfidence:
		return maxConfidence
	default:
		return c
	}
}

func isCommentLine(line string) bool {
	trimmed := strings.TrimLeft(line, " \t")
	for _, marker := range commentMarkers {
		if strings.HasPrefix(trimmed, marker) {
			return true
		}
	}
	return false
}
