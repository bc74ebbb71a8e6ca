package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brad07/codeshield/pkg/config"
	"github.com/brad07/codeshield/pkg/review"
	"github.com/brad07/codeshield/pkg/score"
	"github.com/brad07/codeshield/pkg/signatures/packs"
)

const customPack = `id: custom
name: Custom rules
version: "1.0"
signatures:
  - id: internal-debug-endpoint
    name: Internal Debug Endpoint
    severity: medium
    languages: ["*"]
    pattern: '/internal/debug'
    description: Debug endpoint exposed.
    remediation: Remove the endpoint from production builds.
`

func TestBaseRegistryAllPacks(t *testing.T) {
	reg, err := BaseRegistry(nil)
	require.NoError(t, err)
	assert.Equal(t, packs.MustDefault().Len(), reg.Len())
}

func TestBaseRegistrySubset(t *testing.T) {
	reg, err := BaseRegistry([]string{"secrets"})
	require.NoError(t, err)

	p, err := packs.Load(packs.Secrets)
	require.NoError(t, err)
	assert.Equal(t, len(p.Signatures), reg.Len())
}

func TestBaseRegistryUnknownPack(t *testing.T) {
	_, err := BaseRegistry([]string{"nope"})
	assert.Error(t, err)
}

func TestRegistryWithCustomPack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(customPack), 0644))

	reg, err := Registry(config.SignaturesConfig{CustomPath: path})
	require.NoError(t, err)

	assert.Equal(t, packs.MustDefault().Len()+1, reg.Len())
	_, ok := reg.Lookup("internal-debug-endpoint")
	assert.True(t, ok)
}

func TestRegistryMissingCustomPack(t *testing.T) {
	_, err := Registry(config.SignaturesConfig{CustomPath: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

func TestNewReviewerDisabled(t *testing.T) {
	cfg := config.DefaultConfig()

	r, err := NewReviewer(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Nil(t, r)

	eng := NewEngine(packs.MustDefault(), r, cfg, nil)
	assert.Nil(t, eng.Reviewer())
}

func TestNewReviewerCacheBackends(t *testing.T) {
	tests := []struct {
		name    string
		backend string
		cached  bool
	}{
		{"memory", "memory", true},
		{"none", "none", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.LLM.Enabled = true
			cfg.Cache.Backend = tt.backend

			r, err := NewReviewer(context.Background(), cfg, nil)
			require.NoError(t, err)
			require.NotNil(t, r)
			defer r.Close()

			assert.Equal(t, "ollama", r.Name())
			_, isCaching := r.Reviewer.(*review.CachingReviewer)
			assert.Equal(t, tt.cached, isCaching)
		})
	}
}

func TestNewReviewerRedisFallback(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LLM.Enabled = true
	cfg.Cache.Backend = "redis"
	cfg.Cache.RedisAddr = "127.0.0.1:1"

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	r, err := NewReviewer(ctx, cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, r)

	_, isCaching := r.Reviewer.(*review.CachingReviewer)
	assert.True(t, isCaching)
	assert.NoError(t, r.Close())
}

func TestNewReviewerUnknownProvider(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LLM.Enabled = true
	cfg.LLM.Provider = "bard"

	_, err := NewReviewer(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, review.ErrUnknownProvider)
}

func TestNewEngineUsesConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Scan.Scale = 10

	eng := NewEngine(packs.MustDefault(), nil, cfg, nil)
	res := eng.Aggregate(nil)
	assert.Equal(t, float64(score.Scale10), res.Max)
}
