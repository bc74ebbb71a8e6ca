// Package score turns a finding list into a bounded security score and a
// per-severity summary.
package score

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/brad07/codeshield/pkg/scanners"
	"github.com/brad07/codeshield/pkg/signatures"
)

// Scale is the maximum score, awarded when there are no findings.
type Scale float64

const (
	Scale100 Scale = 100
	Scale10  Scale = 10
)

var baseWeights = map[signatures.Severity]float64{
	signatures.SeverityCritical: 25,
	signatures.SeverityHigh:     15,
	signatures.SeverityMedium:   8,
	signatures.SeverityLow:      3,
}

// Weight returns the penalty weight of severity on a 0-100 scale. Unknown
// severities weigh as low.
func Weight(severity signatures.Severity) float64 {
	if w, ok := baseWeights[severity]; ok {
		return w
	}
	return baseWeights[signatures.SeverityLow]
}

// Summary counts findings per severity bucket.
type Summary struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Total    int `json:"total"`
}

// Result is the outcome of Aggregate.
type Result struct {
	Score       float64               `json:"securityScore"`
	Max         float64               `json:"maxScore"`
	Summary     Summary               `json:"summary"`
	Diagnostics []scanners.Diagnostic `json:"diagnostics,omitempty"`
}

// Aggregator computes scores on a fixed scale.
type Aggregator struct {
	scale  Scale
	logger *zap.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithScale sets the maximum score. Non-positive values are ignored.
func WithScale(s Scale) Option {
	return func(a *Aggregator) {
		if s > 0 {
			a.scale = s
		}
	}
}

// WithLogger sets the logger used for data-quality warnings.
func WithLogger(l *zap.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// New creates an Aggregator. The default scale is 100.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{scale: Scale100, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate scores findings on the default 0-100 scale.
func Aggregate(findings []scanners.Finding) Result {
	return New().Aggregate(findings)
}

// Aggregate scores findings. Each finding costs weight(severity) scaled by
// its confidence; the total is subtracted from the maximum and the result is
// clamped to [0, max] and rounded to one decimal.
func (a *Aggregator) Aggregate(findings []scanners.Finding) Result {
	ceiling := float64(a.scale)
	ratio := ceiling / float64(Scale100)

	result := Result{Score: ceiling, Max: ceiling}
	if len(findings) == 0 {
		return result
	}

	var penalty float64
	for _, f := range findings {
		sev := f.Severity
		if !sev.IsValid() {
			result.Diagnostics = append(result.Diagnostics, scanners.Diagnostic{
				Code:      scanners.DiagUnknownSeverity,
				Message:   fmt.Sprintf("unknown severity %q scored as low", f.Severity),
				FindingID: f.ID,
			})
			a.logger.Warn("unknown finding severity, scoring as low",
				zap.String("finding_id", f.ID),
				zap.String("severity", string(f.Severity)))
			sev = signatures.SeverityLow
		}

		switch sev {
		case signatures.SeverityCritical:
			result.Summary.Critical++
		case signatures.SeverityHigh:
			result.Summary.High++
		case signatures.SeverityMedium:
			result.Summary.Medium++
		default:
			result.Summary.Low++
		}

		penalty += Weight(sev) * ratio * scanners.ClampConfidence(f.Confidence) / 100
	}
	result.Summary.Total = len(findings)

	result.Score = round1(clamp(ceiling-penalty, 0, ceiling))
	return result
}

// Summarize counts findings per severity without scoring them.
func Summarize(findings []scanners.Finding) Summary {
	return Aggregate(findings).Summary
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
