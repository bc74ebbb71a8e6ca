// Package config handles CodeShield configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/brad07/codeshield/pkg/signatures"
	"github.com/brad07/codeshield/pkg/signatures/packs"
)

const (
	// DefaultConfigDir is the default configuration directory name.
	DefaultConfigDir = ".codeshield"
	// DefaultConfigFile is the default configuration file name.
	DefaultConfigFile = "config.yaml"
	// ProjectConfigFile is the project-level override file name, looked up
	// under <project>/.codeshield/.
	ProjectConfigFile = "config.yaml"
)

// Environment variables read after the config files.
const (
	EnvAPIKey       = "CODESHIELD_LLM_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	EnvRedisAddr    = "CODESHIELD_REDIS_ADDR"
	EnvNatsURL      = "CODESHIELD_NATS_URL"
	EnvWebhookURL   = "CODESHIELD_WEBHOOK_URL"
	EnvWebhookKey   = "CODESHIELD_WEBHOOK_SECRET"
)

// Config holds the CodeShield configuration.
type Config struct {
	// Server settings
	Server ServerConfig `yaml:"server"`

	// Scan settings
	Scan ScanConfig `yaml:"scan"`

	// Signature catalog settings
	Signatures SignaturesConfig `yaml:"signatures"`

	// Semantic reviewer settings (optional)
	LLM LLMConfig `yaml:"llm"`

	// Review cache settings
	Cache CacheConfig `yaml:"cache"`

	// Event publishing settings
	Events EventsConfig `yaml:"events"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ScanConfig holds scan settings.
type ScanConfig struct {
	Parallelism         int      `yaml:"parallelism"`
	MaxFileBytes        int64    `yaml:"max_file_bytes"`
	Format              string   `yaml:"format"`
	FailOn              []string `yaml:"fail_on"`
	Scale               int      `yaml:"scale"`
	DisableSuppressions bool     `yaml:"disable_suppressions"`
	ProjectPath         string   `yaml:"-"` // Path where project override was loaded from
}

// SignaturesConfig selects built-in packs and an optional custom pack file.
type SignaturesConfig struct {
	Packs      []string `yaml:"packs"`
	CustomPath string   `yaml:"custom_path,omitempty"`
	Watch      bool     `yaml:"watch"`
}

// LLMConfig holds optional semantic reviewer settings.
type LLMConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Provider     string        `yaml:"provider"` // "ollama", "lmstudio" or "openai"
	Endpoint     string        `yaml:"endpoint"`
	Model        string        `yaml:"model"`
	APIKey       string        `yaml:"api_key,omitempty"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	MaxCodeBytes int           `yaml:"max_code_bytes"`
	RedactPII    bool          `yaml:"redact_pii"`
}

// CacheConfig holds review cache settings.
type CacheConfig struct {
	Backend       string        `yaml:"backend"` // "memory", "redis" or "none"
	TTL           time.Duration `yaml:"ttl"`
	MaxEntries    int           `yaml:"max_entries"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password,omitempty"`
	RedisDB       int           `yaml:"redis_db"`
}

// EventsConfig holds scan event publishing settings. NATS publishing is
// controlled by Enabled; the webhook is used whenever WebhookURL is set.
type EventsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	NatsURL       string `yaml:"nats_url"`
	Subject       string `yaml:"subject"`
	WebhookURL    string `yaml:"webhook_url,omitempty"`
	WebhookSecret string `yaml:"webhook_secret,omitempty"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "console"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	packNames := make([]string, 0, len(packs.ValidPackNames()))
	for _, name := range packs.ValidPackNames() {
		packNames = append(packNames, string(name))
	}

	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 7676,
		},
		Scan: ScanConfig{
			Parallelism:  4,
			MaxFileBytes: 1 << 20,
			Format:       "human",
			FailOn:       []string{"critical", "high"},
			Scale:        100,
		},
		Signatures: SignaturesConfig{
			Packs: packNames,
		},
		LLM: LLMConfig{
			Enabled:      false,
			Provider:     "ollama",
			Endpoint:     "http://localhost:11434",
			Model:        "qwen2.5-coder",
			Timeout:      60 * time.Second,
			MaxRetries:   2,
			MaxCodeBytes: 48 * 1024,
		},
		Cache: CacheConfig{
			Backend:    "memory",
			TTL:        24 * time.Hour,
			MaxEntries: 1000,
			RedisAddr:  "localhost:6379",
		},
		Events: EventsConfig{
			Enabled: false,
			NatsURL: "nats://localhost:4222",
			Subject: "codeshield.scan.completed",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads the configuration from the default location (~/.codeshield/config.yaml).
// If the config file doesn't exist, it returns the default configuration.
// If projectDir is provided, it also looks for project-level overrides.
func Load(projectDir string) (*Config, error) {
	configPath, err := DefaultConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to determine config path: %w", err)
	}

	return LoadFrom(configPath, projectDir)
}

// LoadFrom loads configuration from a specific path with optional project overrides.
// Environment variables (after loading any .env file) are applied last.
func LoadFrom(configPath, projectDir string) (*Config, error) {
	cfg := DefaultConfig()

	expandedPath, err := ExpandPath(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to expand config path: %w", err)
	}

	if _, err := os.Stat(expandedPath); err == nil {
		data, err := os.ReadFile(expandedPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if projectDir != "" {
		if err := loadProjectOverrides(cfg, projectDir); err != nil {
			return nil, fmt.Errorf("failed to load project overrides: %w", err)
		}
	}

	LoadEnvFiles(projectDir)
	cfg.applyEnv()

	if err := cfg.expandPaths(); err != nil {
		return nil, fmt.Errorf("failed to expand paths in config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadEnvFiles loads the first .env file found in dir or the working
// directory. Variables already set in the environment win.
func LoadEnvFiles(dir string) bool {
	envPaths := []string{".env"}
	if dir != "" {
		envPaths = append([]string{filepath.Join(dir, ".env")}, envPaths...)
	}

	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			return true
		}
	}
	return false
}

func (c *Config) applyEnv() {
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = firstEnv(EnvAPIKey, EnvOpenAIAPIKey)
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		c.Cache.RedisAddr = v
	}
	if v := os.Getenv(EnvNatsURL); v != "" {
		c.Events.NatsURL = v
	}
	if v := os.Getenv(EnvWebhookURL); v != "" {
		c.Events.WebhookURL = v
	}
	if c.Events.WebhookSecret == "" {
		c.Events.WebhookSecret = os.Getenv(EnvWebhookKey)
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// loadProjectOverrides loads and merges project-level overrides.
func loadProjectOverrides(cfg *Config, projectDir string) error {
	projectConfigPath := filepath.Join(projectDir, DefaultConfigDir, ProjectConfigFile)

	if _, err := os.Stat(projectConfigPath); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(projectConfigPath)
	if err != nil {
		return fmt.Errorf("failed to read project config: %w", err)
	}

	var override ProjectOverride
	if err := yaml.Unmarshal(data, &override); err != nil {
		return fmt.Errorf("failed to parse project config: %w", err)
	}

	if override.Scan != nil {
		if override.Scan.FailOn != nil {
			cfg.Scan.FailOn = override.Scan.FailOn
		}
		if override.Scan.DisableSuppressions != nil {
			cfg.Scan.DisableSuppressions = *override.Scan.DisableSuppressions
		}
	}
	cfg.Scan.ProjectPath = projectConfigPath

	if override.Signatures != nil {
		if override.Signatures.Packs != nil {
			cfg.Signatures.Packs = override.Signatures.Packs
		}
		if override.Signatures.CustomPath != "" {
			// Relative custom packs are resolved against the project.
			custom := override.Signatures.CustomPath
			if !filepath.IsAbs(custom) && !strings.HasPrefix(custom, "~") {
				custom = filepath.Join(projectDir, custom)
			}
			cfg.Signatures.CustomPath = custom
		}
	}

	if override.LLM != nil && override.LLM.Enabled != nil {
		cfg.LLM.Enabled = *override.LLM.Enabled
	}

	return nil
}

// ProjectOverride represents the allowed project-level configuration overrides.
type ProjectOverride struct {
	Scan *struct {
		FailOn              []string `yaml:"fail_on"`
		DisableSuppressions *bool    `yaml:"disable_suppressions"`
	} `yaml:"scan"`
	Signatures *struct {
		Packs      []string `yaml:"packs"`
		CustomPath string   `yaml:"custom_path"`
	} `yaml:"signatures"`
	LLM *struct {
		Enabled *bool `yaml:"enabled"`
	} `yaml:"llm"`
}

// expandPaths expands ~ and environment variables in path fields.
func (c *Config) expandPaths() error {
	if c.Signatures.CustomPath == "" {
		return nil
	}
	var err error
	c.Signatures.CustomPath, err = ExpandPath(c.Signatures.CustomPath)
	if err != nil {
		return fmt.Errorf("failed to expand custom signatures path: %w", err)
	}
	return nil
}

var (
	validProviders = map[string]bool{"ollama": true, "lmstudio": true, "openai": true}
	validFormats   = map[string]bool{"json": true, "sarif": true, "human": true}
	validBackends  = map[string]bool{"memory": true, "redis": true, "none": true}
)

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid server port: %d (must be 1-65535)", c.Server.Port))
	}

	if c.Scan.Parallelism < 1 {
		errs = append(errs, "scan parallelism must be at least 1")
	}
	if c.Scan.MaxFileBytes < 1 {
		errs = append(errs, "scan max_file_bytes must be at least 1")
	}
	if !validFormats[c.Scan.Format] {
		errs = append(errs, fmt.Sprintf("invalid output format: %s (must be json, sarif, or human)", c.Scan.Format))
	}
	for _, s := range c.Scan.FailOn {
		if !signatures.Severity(strings.ToLower(s)).IsValid() {
			errs = append(errs, fmt.Sprintf("invalid fail_on severity: %s", s))
		}
	}
	if c.Scan.Scale != 10 && c.Scan.Scale != 100 {
		errs = append(errs, fmt.Sprintf("invalid score scale: %d (must be 10 or 100)", c.Scan.Scale))
	}

	for _, p := range c.Signatures.Packs {
		if !packs.IsValidPackName(p) {
			errs = append(errs, fmt.Sprintf("unknown signature pack: %s", p))
		}
	}
	if len(c.Signatures.Packs) == 0 && c.Signatures.CustomPath == "" {
		errs = append(errs, "at least one signature pack or a custom signature file is required")
	}
	if c.Signatures.Watch && c.Signatures.CustomPath == "" {
		errs = append(errs, "signatures watch requires custom_path")
	}

	if c.LLM.Enabled {
		if !validProviders[c.LLM.Provider] {
			errs = append(errs, fmt.Sprintf("invalid llm provider: %s (must be ollama, lmstudio, or openai)", c.LLM.Provider))
		}
		if c.LLM.Endpoint == "" {
			errs = append(errs, "llm endpoint is required when enabled")
		}
		if c.LLM.Model == "" {
			errs = append(errs, "llm model is required when enabled")
		}
		if c.LLM.Provider == "openai" && c.LLM.APIKey == "" {
			errs = append(errs, fmt.Sprintf("llm api_key is required for openai (or set %s)", EnvAPIKey))
		}
		if c.LLM.Timeout <= 0 {
			errs = append(errs, "llm timeout must be positive")
		}
	}

	if !validBackends[c.Cache.Backend] {
		errs = append(errs, fmt.Sprintf("invalid cache backend: %s (must be memory, redis, or none)", c.Cache.Backend))
	}
	if c.Cache.Backend == "redis" && c.Cache.RedisAddr == "" {
		errs = append(errs, "cache redis_addr is required for the redis backend")
	}

	if c.Events.Enabled {
		if c.Events.NatsURL == "" {
			errs = append(errs, "events nats_url is required when enabled")
		}
		if c.Events.Subject == "" {
			errs = append(errs, "events subject is required when enabled")
		}
	}
	if c.Events.WebhookURL != "" {
		if u, err := url.Parse(c.Events.WebhookURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("invalid events webhook_url: %s", c.Events.WebhookURL))
		}
	}

	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Sprintf("invalid logging level: %s", c.Logging.Level))
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		errs = append(errs, fmt.Sprintf("invalid logging format: %s (must be json or console)", c.Logging.Format))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// FailOnSeverities returns the parsed fail_on list.
func (c *Config) FailOnSeverities() []signatures.Severity {
	result := make([]signatures.Severity, 0, len(c.Scan.FailOn))
	for _, s := range c.Scan.FailOn {
		if sev, ok := signatures.ParseSeverity(s); ok {
			result = append(result, sev)
		}
	}
	return result
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, DefaultConfigDir, DefaultConfigFile), nil
}

// DefaultConfigDirPath returns the default configuration directory path.
func DefaultConfigDirPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, DefaultConfigDir), nil
}

// ExpandPath expands ~ to the user's home directory and environment variables.
func ExpandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(homeDir, path[2:])
	} else if path == "~" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = homeDir
	}

	return os.ExpandEnv(path), nil
}

var configHeader = []byte(`# CodeShield Configuration
# API keys are read from CODESHIELD_LLM_API_KEY when api_key is empty.

`)

// Initialize creates the default configuration directory and file if they don't exist.
// Returns the path to the config file and whether it was newly created.
func Initialize() (string, bool, error) {
	configDir, err := DefaultConfigDirPath()
	if err != nil {
		return "", false, fmt.Errorf("failed to determine config directory: %w", err)
	}

	configPath := filepath.Join(configDir, DefaultConfigFile)
	if _, err := os.Stat(configPath); err == nil {
		return configPath, false, nil
	}

	if err := DefaultConfig().SaveTo(configPath); err != nil {
		return "", false, err
	}
	return configPath, true, nil
}

// Save writes the configuration to the default location.
func (c *Config) Save() error {
	configPath, err := DefaultConfigPath()
	if err != nil {
		return fmt.Errorf("failed to determine config path: %w", err)
	}

	return c.SaveTo(configPath)
}

// SaveTo writes the configuration to a specific path. The API key and the
// webhook secret are never written.
func (c *Config) SaveTo(path string) error {
	expandedPath, err := ExpandPath(path)
	if err != nil {
		return fmt.Errorf("failed to expand path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(expandedPath), 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	out := *c
	out.LLM.APIKey = ""
	out.Events.WebhookSecret = ""
	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(expandedPath, append(configHeader, data...), 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Address returns the server listen address.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
