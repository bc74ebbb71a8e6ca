// Package engine orchestrates a scan: pattern detection and semantic review
// run concurrently, their findings are fused, suppressions are applied and
// the result is scored.
package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brad07/codeshield/pkg/fusion"
	"github.com/brad07/codeshield/pkg/review"
	"github.com/brad07/codeshield/pkg/scanners"
	"github.com/brad07/codeshield/pkg/score"
	"github.com/brad07/codeshield/pkg/signatures"
	"github.com/brad07/codeshield/pkg/suppress"
)

// Config holds configuration for the engine.
type Config struct {
	Reviewer            review.Reviewer // nil disables semantic review
	ReviewTimeout       time.Duration
	Scale               score.Scale
	DisableSuppressions bool
	Logger              *zap.Logger
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		ReviewTimeout: 60 * time.Second,
		Scale:         score.Scale100,
	}
}

// Engine runs scans. It is safe for concurrent use; the signature registry
// can be swapped while scans are running and each scan uses one snapshot.
type Engine struct {
	registry   atomic.Pointer[signatures.Registry]
	reviewer   review.Reviewer
	aggregator *score.Aggregator
	config     Config
	logger     *zap.Logger
}

// New creates an engine over registry.
func New(registry *signatures.Registry, config Config) *Engine {
	if config.ReviewTimeout <= 0 {
		config.ReviewTimeout = DefaultConfig().ReviewTimeout
	}
	if config.Scale <= 0 {
		config.Scale = score.Scale100
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		reviewer:   config.Reviewer,
		aggregator: score.New(score.WithScale(config.Scale), score.WithLogger(logger)),
		config:     config,
		logger:     logger,
	}
	e.registry.Store(registry)
	return e
}

// Registry returns the active signature registry.
func (e *Engine) Registry() *signatures.Registry {
	return e.registry.Load()
}

// SetRegistry replaces the active signature registry. Scans already running
// keep the registry they started with.
func (e *Engine) SetRegistry(r *signatures.Registry) {
	if r == nil {
		return
	}
	e.registry.Store(r)
	e.logger.Info("signature registry updated", zap.Int("signatures", r.Len()))
}

// Reviewer returns the configured reviewer, or nil.
func (e *Engine) Reviewer() review.Reviewer {
	return e.reviewer
}

// Detect runs the pattern scanner only.
func (e *Engine) Detect(text, language string) []scanners.Finding {
	return scanners.NewPatternScanner(e.registry.Load()).Detect(text, language)
}

// Merge fuses pattern and semantic findings.
func (e *Engine) Merge(pattern, semantic []scanners.Finding) []scanners.Finding {
	return fusion.Merge(pattern, semantic)
}

// Aggregate scores findings on the engine's scale.
func (e *Engine) Aggregate(findings []scanners.Finding) score.Result {
	return e.aggregator.Aggregate(findings)
}

type reviewOutcome struct {
	review *review.Review
	err    error
}

// Scan scans one file. It always returns a result: reviewer failures,
// timeouts and malformed answers degrade the scan to pattern findings only
// and are reported in the Semantic block.
func (e *Engine) Scan(ctx context.Context, req Request) *ScanResult {
	started := time.Now()
	registry := e.registry.Load()

	language := req.Language
	if strings.TrimSpace(language) == "" {
		language = signatures.LanguageFromFilename(req.Filename)
	}
	language = signatures.NormalizeLanguage(language)

	result := &ScanResult{
		ID:       uuid.New().String(),
		Filename: req.Filename,
		Language: language,
		Semantic: Semantic{Status: SemanticDisabled},
	}

	// Start the review first so it overlaps with pattern detection.
	var reviewCh chan reviewOutcome
	var reviewCtx context.Context
	switch {
	case e.reviewer == nil:
	case req.SkipReview:
	case strings.TrimSpace(req.Code) == "":
		result.Semantic = Semantic{Status: SemanticSkipped, Provider: e.reviewer.Name()}
	default:
		var cancel context.CancelFunc
		reviewCtx, cancel = context.WithTimeout(ctx, e.config.ReviewTimeout)
		defer cancel()

		reviewCh = make(chan reviewOutcome, 1)
		go func() {
			r, err := e.reviewer.ReviewCode(reviewCtx, req.Filename, req.Code)
			reviewCh <- reviewOutcome{review: r, err: err}
		}()
	}

	patternFindings := scanners.NewPatternScanner(registry).Detect(req.Code, language)

	var semanticFindings []scanners.Finding
	if reviewCh != nil {
		var outcome reviewOutcome
		select {
		case outcome = <-reviewCh:
		case <-reviewCtx.Done():
			outcome.err = reviewCtx.Err()
		}
		semanticFindings, result.Semantic, result.Diagnostics = e.semantic(outcome, req.Filename)
	}

	merged := fusion.Merge(patternFindings, semanticFindings)

	kept := merged
	if !e.config.DisableSuppressions {
		var suppressed []scanners.Finding
		kept, suppressed = suppress.Apply(merged, suppress.Parse(req.Code))
		result.Suppressed = len(suppressed)
	}

	scored := e.aggregator.Aggregate(kept)
	result.Vulnerabilities = kept
	result.SecurityScore = scored.Score
	result.MaxScore = scored.Max
	result.Summary = scored.Summary
	result.Diagnostics = append(result.Diagnostics, scored.Diagnostics...)
	result.DurationMS = time.Since(started).Milliseconds()

	e.logger.Debug("scan completed",
		zap.String("scan_id", result.ID),
		zap.String("filename", req.Filename),
		zap.String("language", language),
		zap.Int("pattern_findings", len(patternFindings)),
		zap.Int("semantic_findings", len(semanticFindings)),
		zap.Int("findings", len(kept)),
		zap.Int("suppressed", result.Suppressed),
		zap.Float64("score", result.SecurityScore),
		zap.String("semantic_status", string(result.Semantic.Status)))

	return result
}

func (e *Engine) semantic(outcome reviewOutcome, filename string) ([]scanners.Finding, Semantic, []scanners.Diagnostic) {
	sem := Semantic{Provider: e.reviewer.Name()}

	if outcome.err != nil || outcome.review == nil {
		err := outcome.err
		if err == nil {
			err = review.ErrUnavailable
		}
		sem.Status = SemanticUnavailable
		sem.Error = err.Error()

		level := zap.WarnLevel
		if errors.Is(err, context.Canceled) {
			level = zap.DebugLevel
		}
		if ce := e.logger.Check(level, "semantic review unavailable, using pattern findings only"); ce != nil {
			ce.Write(zap.String("provider", sem.Provider), zap.String("filename", filename), zap.Error(err))
		}
		return nil, sem, nil
	}

	r := outcome.review
	findings, diags := review.ToFindings(r)

	sem.Status = SemanticOK
	if r.Cached {
		sem.Status = SemanticCached
	}
	sem.Findings = len(findings)
	sem.OverallRisk = r.OverallRisk
	sem.Summary = r.Summary
	sem.Recommendations = r.Recommendations
	return findings, sem, diags
}

// ScanBatch scans requests with at most parallelism scans in flight.
// Results are returned in request order.
func (e *Engine) ScanBatch(ctx context.Context, reqs []Request, parallelism int) []*ScanResult {
	return e.ScanBatchNotify(ctx, reqs, parallelism, nil)
}

// ScanBatchNotify is ScanBatch with a callback invoked after each scan
// completes. The callback may run concurrently from several goroutines.
func (e *Engine) ScanBatchNotify(ctx context.Context, reqs []Request, parallelism int, done func(idx int, r *ScanResult)) []*ScanResult {
	if len(reqs) == 0 {
		return nil
	}
	if parallelism < 1 {
		parallelism = 1
	}
	if parallelism > len(reqs) {
		parallelism = len(reqs)
	}

	results := make([]*ScanResult, len(reqs))
	sem := make(chan struct{}, parallelism)
	var wg sync.WaitGroup

	for idx, req := range reqs {
		wg.Add(1)
		go func(idx int, req Request) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[idx] = e.Scan(ctx, req)
			if done != nil {
				done(idx, results[idx])
			}
		}(idx, req)
	}

	wg.Wait()
	return results
}
