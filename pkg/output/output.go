// Package output provides formatters for scan reports.
package output

import (
	"fmt"
	"io"
	"time"

	"github.com/brad07/codeshield/pkg/engine"
	"github.com/brad07/codeshield/pkg/score"
	"github.com/brad07/codeshield/pkg/signatures"
)

// Report groups the results of one CLI or API invocation.
type Report struct {
	Tool         string               `json:"tool"`
	Version      string               `json:"version"`
	StartedAt    time.Time            `json:"startedAt"`
	Results      []*engine.ScanResult `json:"results"`
	Summary      score.Summary        `json:"summary"`
	LowestScore  float64              `json:"lowestScore"`
	SkippedFiles int                  `json:"skippedFiles,omitempty"`
}

// NewReport builds a report and computes its totals.
func NewReport(version string, started time.Time, results []*engine.ScanResult) *Report {
	r := &Report{
		Tool:      "codeshield",
		Version:   version,
		StartedAt: started.UTC(),
		Results:   results,
	}

	for i, res := range results {
		r.Summary.Critical += res.Summary.Critical
		r.Summary.High += res.Summary.High
		r.Summary.Medium += res.Summary.Medium
		r.Summary.Low += res.Summary.Low
		r.Summary.Total += res.Summary.Total
		if i == 0 || res.SecurityScore < r.LowestScore {
			r.LowestScore = res.SecurityScore
		}
	}
	return r
}

// Formatter writes a report.
type Formatter interface {
	Format(report *Report, w io.Writer) error
}

// Formats lists the supported format names.
func Formats() []string {
	return []string{"human", "json", "sarif"}
}

// GetFormatter returns the formatter for format.
func GetFormatter(format string) (Formatter, error) {
	switch format {
	case "human":
		return &HumanFormatter{}, nil
	case "json":
		return &JSONFormatter{}, nil
	case "sarif":
		return &SARIFFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// ShouldFail reports whether any finding in the report has one of the given
// severities.
func ShouldFail(report *Report, failOn []signatures.Severity) bool {
	severityMap := make(map[signatures.Severity]bool, len(failOn))
	for _, sev := range failOn {
		severityMap[sev] = true
	}

	for _, res := range report.Results {
		for _, f := range res.Vulnerabilities {
			if severityMap[f.Severity] {
				return true
			}
		}
	}
	return false
}
