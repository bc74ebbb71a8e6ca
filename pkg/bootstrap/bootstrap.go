// Package bootstrap assembles the scan engine and its collaborators from a
// loaded configuration. Both the CLI and the daemon build their engine here.
package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/brad07/codeshield/pkg/config"
	"github.com/brad07/codeshield/pkg/engine"
	"github.com/brad07/codeshield/pkg/review"
	"github.com/brad07/codeshield/pkg/score"
	"github.com/brad07/codeshield/pkg/signatures"
	"github.com/brad07/codeshield/pkg/signatures/packs"
	"github.com/brad07/codeshield/pkg/watch"
)

// BaseRegistry builds a registry from the named built-in packs, in the order
// given. An empty list selects every pack.
func BaseRegistry(packNames []string) (*signatures.Registry, error) {
	if len(packNames) == 0 {
		return packs.Default()
	}

	var all []signatures.Signature
	for _, name := range packNames {
		p, err := packs.LoadByName(name)
		if err != nil {
			return nil, err
		}
		all = append(all, p.Signatures...)
	}
	return signatures.NewRegistry(all...)
}

// Registry builds the active registry: the selected built-in packs followed
// by the custom pack, if one is configured.
func Registry(cfg config.SignaturesConfig) (*signatures.Registry, error) {
	base, err := BaseRegistry(cfg.Packs)
	if err != nil {
		return nil, fmt.Errorf("failed to load signature packs: %w", err)
	}
	if cfg.CustomPath == "" {
		return base, nil
	}
	return watch.LoadRegistry(base, cfg.CustomPath)
}

// Reviewer holds the configured semantic reviewer and whatever must be
// released with it.
type Reviewer struct {
	review.Reviewer
	closers []func() error
}

// Close releases the review cache.
func (r *Reviewer) Close() error {
	var firstErr error
	for _, c := range r.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NewReviewer builds the semantic reviewer described by cfg. It returns nil
// when the reviewer is disabled. A Redis cache that cannot be reached falls
// back to the in-memory cache.
func NewReviewer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Reviewer, error) {
	if !cfg.LLM.Enabled {
		return nil, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	rc := review.DefaultConfig(review.ProviderType(cfg.LLM.Provider))
	if cfg.LLM.Endpoint != "" {
		rc.Endpoint = cfg.LLM.Endpoint
	}
	if cfg.LLM.Model != "" {
		rc.Model = cfg.LLM.Model
	}
	if cfg.LLM.Timeout > 0 {
		rc.Timeout = cfg.LLM.Timeout
	}
	if cfg.LLM.MaxCodeBytes > 0 {
		rc.MaxCodeBytes = cfg.LLM.MaxCodeBytes
	}
	rc.APIKey = cfg.LLM.APIKey
	rc.MaxRetries = cfg.LLM.MaxRetries
	rc.RedactPII = cfg.LLM.RedactPII
	rc.Logger = logger

	provider, err := review.NewProvider(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s reviewer: %w", cfg.LLM.Provider, err)
	}

	r := &Reviewer{Reviewer: provider}

	switch cfg.Cache.Backend {
	case "none":
		return r, nil
	case "redis":
		rcache, err := review.NewRedisCache(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB, cfg.Cache.TTL)
		if err == nil {
			logger.Info("review cache", zap.String("backend", "redis"), zap.String("addr", cfg.Cache.RedisAddr))
			r.Reviewer = review.NewCachingReviewer(provider, rcache, logger)
			r.closers = append(r.closers, rcache.Close)
			return r, nil
		}
		logger.Warn("redis review cache unavailable, using memory cache",
			zap.String("addr", cfg.Cache.RedisAddr), zap.Error(err))
	}

	r.Reviewer = review.NewCachingReviewer(provider,
		review.NewMemoryCache(cfg.Cache.TTL, cfg.Cache.MaxEntries), logger)
	return r, nil
}

// NewEngine creates the scan engine. reviewer may be nil.
func NewEngine(registry *signatures.Registry, reviewer *Reviewer, cfg *config.Config, logger *zap.Logger) *engine.Engine {
	ec := engine.Config{
		ReviewTimeout:       cfg.LLM.Timeout,
		Scale:               score.Scale(cfg.Scan.Scale),
		DisableSuppressions: cfg.Scan.DisableSuppressions,
		Logger:              logger,
	}
	if reviewer != nil {
		ec.Reviewer = reviewer
	}
	return engine.New(registry, ec)
}
