package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/brad07/codeshield/pkg/engine"
	"github.com/brad07/codeshield/pkg/scanners"
)

// HumanFormatter writes a terminal report.
type HumanFormatter struct {
	// Verbose adds diagnostics and reviewer recommendations.
	Verbose bool
}

// Format implements Formatter.
func (f *HumanFormatter) Format(report *Report, w io.Writer) error {
	s := DefaultStyles()
	var b strings.Builder

	for _, res := range report.Results {
		f.writeResult(&b, s, res)
	}

	b.WriteString(s.Title.Render("Summary"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "  Files scanned: %d", len(report.Results))
	if report.SkippedFiles > 0 {
		fmt.Fprintf(&b, " (%d skipped)", report.SkippedFiles)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "  Findings: %d  %s %d  %s %d  %s %d  %s %d\n",
		report.Summary.Total,
		s.CriticalBadge.Render("C"), report.Summary.Critical,
		s.HighBadge.Render("H"), report.Summary.High,
		s.MediumBadge.Render("M"), report.Summary.Medium,
		s.LowBadge.Render("L"), report.Summary.Low)
	if len(report.Results) > 0 {
		maxScore := report.Results[0].MaxScore
		fmt.Fprintf(&b, "  Lowest score: %s\n",
			s.Score(report.LowestScore, maxScore).Render(formatScore(report.LowestScore, maxScore)))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (f *HumanFormatter) writeResult(b *strings.Builder, s *Styles, res *engine.ScanResult) {
	name := res.Filename
	if name == "" {
		name = "<stdin>"
	}

	b.WriteString(s.FileHeader.Render(name))
	b.WriteString("  ")
	b.WriteString(s.Score(res.SecurityScore, res.MaxScore).Render(formatScore(res.SecurityScore, res.MaxScore)))
	if res.Language != "" {
		b.WriteString(s.Muted.Render("  " + res.Language))
	}
	b.WriteString("\n")

	if res.Semantic.Status.Degraded() {
		b.WriteString(s.Warning.Render(fmt.Sprintf("  semantic review unavailable (%s): %s", res.Semantic.Provider, res.Semantic.Error)))
		b.WriteString("\n")
	}

	if len(res.Vulnerabilities) == 0 {
		b.WriteString(s.Muted.Render("  no findings"))
		b.WriteString("\n\n")
		return
	}

	for _, finding := range res.Vulnerabilities {
		writeFinding(b, s, name, finding)
	}

	if res.Suppressed > 0 {
		b.WriteString(s.Muted.Render(fmt.Sprintf("  %d finding(s) suppressed inline", res.Suppressed)))
		b.WriteString("\n")
	}

	if f.Verbose {
		for _, d := range res.Diagnostics {
			b.WriteString(s.Muted.Render(fmt.Sprintf("  diagnostic %s: %s", d.Code, d.Message)))
			b.WriteString("\n")
		}
		for _, r := range res.Semantic.Recommendations {
			b.WriteString(s.Suggestion.Render("  recommendation: " + r))
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
}

func writeFinding(b *strings.Builder, s *Styles, filename string, finding scanners.Finding) {
	loc := fmt.Sprintf("%s:%d", filename, finding.Location.Line)
	if finding.Location.Column != nil {
		loc = fmt.Sprintf("%s:%d", loc, *finding.Location.Column+1)
	}

	fmt.Fprintf(b, "  %s %s %s\n",
		s.Badge(finding.Severity).Render(strings.ToUpper(string(finding.Severity))),
		s.Title.Render(finding.Type),
		s.Location.Render(loc))

	meta := fmt.Sprintf("%s, confidence %.0f%%", finding.DetectionMethod, finding.Confidence)
	if finding.CWE != "" {
		meta += ", " + finding.CWE
	}
	b.WriteString(s.Muted.Render("    " + meta))
	b.WriteString("\n")

	if finding.Message != "" && finding.Message != finding.Type {
		fmt.Fprintf(b, "    %s\n", finding.Message)
	}
	if finding.Snippet != "" {
		b.WriteString(s.Code.Render(HighlightLine(finding.Snippet, filename)))
		b.WriteString("\n")
	}
	if finding.Suggestion != "" {
		for _, line := range strings.Split(finding.Suggestion, "\n") {
			if line == "" {
				continue
			}
			b.WriteString(s.Suggestion.Render("    → " + line))
			b.WriteString("\n")
		}
	}
}

func formatScore(score, max float64) string {
	return fmt.Sprintf("%.1f/%.0f", score, max)
}
