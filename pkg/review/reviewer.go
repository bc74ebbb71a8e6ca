// Package review provides semantic code review through LLM providers
// (Ollama, LM Studio and other OpenAI-compatible servers) and converts
// their answers into findings.
package review

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/brad07/codeshield/pkg/httpclient"
	"github.com/brad07/codeshield/pkg/redact"
)

// Reviewer reviews source code and reports vulnerabilities it believes are
// present. Implementations must be safe for concurrent use.
type Reviewer interface {
	// Name returns the provider name.
	Name() string

	// IsAvailable checks if the provider is running and accessible.
	IsAvailable(ctx context.Context) bool

	// ReviewCode reviews code from filename. A nil review with a nil error
	// means the reviewer had nothing to say.
	ReviewCode(ctx context.Context, filename, code string) (*Review, error)
}

// Review is a reviewer's answer for one file.
type Review struct {
	Vulnerabilities []Vulnerability `json:"vulnerabilities"`
	OverallRisk     string          `json:"overallRisk,omitempty"`
	Summary         string          `json:"summary,omitempty"`
	Recommendations []string        `json:"recommendations,omitempty"`

	// Cached is set when the review was served from a cache.
	Cached bool `json:"-"`
}

// Vulnerability is one issue reported by a reviewer. Fields are kept as the
// reviewer sent them; ToFindings normalizes them.
type Vulnerability struct {
	Type        string   `json:"type"`
	Severity    string   `json:"severity"`
	Line        int      `json:"line"`
	Description string   `json:"description"`
	Remediation string   `json:"remediation,omitempty"`
	Confidence  *float64 `json:"confidence,omitempty"`
}

var (
	// ErrUnavailable is returned when the provider cannot be reached.
	ErrUnavailable = errors.New("reviewer unavailable")

	// ErrMalformedResponse is returned when the provider answer cannot be
	// parsed into a Review.
	ErrMalformedResponse = errors.New("malformed reviewer response")

	// ErrUnknownProvider is returned by NewProvider for unregistered types.
	ErrUnknownProvider = errors.New("unknown provider type")
)

// ProviderType identifies the type of LLM provider.
type ProviderType string

const (
	ProviderOllama   ProviderType = "ollama"
	ProviderLMStudio ProviderType = "lmstudio"
	ProviderOpenAI   ProviderType = "openai"
)

// Config holds common configuration for review providers.
type Config struct {
	Type         ProviderType
	Endpoint     string // API endpoint URL
	Model        string // Model name to use
	APIKey       string // Optional bearer token
	Timeout      time.Duration
	MaxRetries   int
	MaxCodeBytes int  // code beyond this is truncated before prompting
	RedactPII    bool // secrets are always redacted
	Logger       *zap.Logger
}

// DefaultEndpoints returns the default endpoint for each provider type.
func DefaultEndpoints() map[ProviderType]string {
	return map[ProviderType]string{
		ProviderOllama:   "http://localhost:11434",
		ProviderLMStudio: "http://localhost:1234",
		ProviderOpenAI:   "https://api.openai.com",
	}
}

// DefaultConfig returns a default configuration for the given provider type.
func DefaultConfig(providerType ProviderType) Config {
	endpoint, ok := DefaultEndpoints()[providerType]
	if !ok {
		endpoint = "http://localhost:8080"
	}

	model := "default"
	switch providerType {
	case ProviderOllama:
		model = "qwen2.5-coder"
	case ProviderLMStudio:
		model = "local-model"
	case ProviderOpenAI:
		model = "gpt-4o-mini"
	}

	return Config{
		Type:         providerType,
		Endpoint:     endpoint,
		Model:        model,
		Timeout:      60 * time.Second,
		MaxRetries:   2,
		MaxCodeBytes: 48 * 1024,
	}
}

// withDefaults fills unset fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig(c.Type)
	if c.Endpoint == "" {
		c.Endpoint = d.Endpoint
	}
	if c.Model == "" {
		c.Model = d.Model
	}
	if c.Timeout == 0 {
		c.Timeout = d.Timeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.MaxCodeBytes == 0 {
		c.MaxCodeBytes = d.MaxCodeBytes
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// base holds what every HTTP provider shares.
type base struct {
	config   Config
	client   *httpclient.Client
	redactor *redact.Redactor
	logger   *zap.Logger
}

func newBase(config Config) base {
	config = config.withDefaults()
	return base{
		config: config,
		client: httpclient.NewClient(httpclient.Config{
			Timeout:  config.Timeout,
			RetryMax: config.MaxRetries,
			Logger:   config.Logger,
		}),
		redactor: redact.NewRedactor(),
		logger:   config.Logger,
	}
}

// prepare redacts and truncates code before it leaves the process.
func (b *base) prepare(code string) string {
	result := b.redactor.RedactSecrets(code)
	code = result.Redacted
	if b.config.RedactPII {
		code = b.redactor.RedactPII(code).Redacted
	}
	if result.HasChanges {
		b.logger.Debug("redacted secrets before review", zap.Int("replacements", len(result.Replacements)))
	}
	return truncateLines(code, b.config.MaxCodeBytes)
}

// ProviderFactory creates a provider from config.
type ProviderFactory func(config Config) (Reviewer, error)

var providerFactories = make(map[ProviderType]ProviderFactory)

// RegisterProvider registers a provider factory.
func RegisterProvider(providerType ProviderType, factory ProviderFactory) {
	providerFactories[providerType] = factory
}

// NewProvider creates a new provider based on the config.
func NewProvider(config Config) (Reviewer, error) {
	factory, ok := providerFactories[config.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, config.Type)
	}
	return factory(config)
}

// AvailableProviders returns the registered provider types, sorted.
func AvailableProviders() []ProviderType {
	types := make([]ProviderType, 0, len(providerFactories))
	for t := range providerFactories {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
