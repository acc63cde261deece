package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	kenv "github.com/knadh/koanf/providers/env"
	kfile "github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	moderr "github.com/lizzyg/aether/errors"
	"github.com/lizzyg/aether/internal/providers/retry"
)

// Config is the relay's root config structure. It is built once at startup
// and handed to the components that need it.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Upstream UpstreamConfig `koanf:"upstream"`
	Retry    RetryConfig    `koanf:"retry"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	StaticDir       string        `koanf:"static_dir"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitRPS    float64       `koanf:"rate_limit_rps"`
	RateLimitBurst  int           `koanf:"rate_limit_burst"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// MetricsConfig controls the Prometheus listener. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// UpstreamConfig describes the generation provider.
type UpstreamConfig struct {
	TextProvider string `koanf:"text_provider"`
	APIKey       string `koanf:"api_key"`
	BaseURL      string `koanf:"base_url"`
	TextModel    string `koanf:"text_model"`
	ImageModel   string `koanf:"image_model"`
	SpeechModel  string `koanf:"speech_model"`
	DefaultVoice string `koanf:"default_voice"`

	OpenAIAPIKey  string `koanf:"openai_api_key"`
	OpenAIBaseURL string `koanf:"openai_base_url"`
	OpenAIModel   string `koanf:"openai_model"`
}

type RetryConfig struct {
	MaxAttempts    int           `koanf:"max_attempts"`
	BaseDelay      time.Duration `koanf:"base_delay"`
	MaxDelay       time.Duration `koanf:"max_delay"`
	AttemptTimeout time.Duration `koanf:"attempt_timeout"`
	RetryStatuses  []int         `koanf:"retry_statuses"`
}

// Policy converts the retry section into the shared retry configuration.
func (r RetryConfig) Policy() retry.Config {
	return retry.Config{
		MaxAttempts:    r.MaxAttempts,
		BaseDelay:      r.BaseDelay,
		MaxDelay:       r.MaxDelay,
		AttemptTimeout: r.AttemptTimeout,
	}
}

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Load reads configuration from path (skipped when empty), applies AETHER__
// environment overrides, expands ${VAR} references, fills defaults and
// validates the result.
//
// Environment overrides use double underscores between levels:
// AETHER__RELAY__UPSTREAM__API_KEY=...
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(kfile.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	if err := k.Load(kenv.Provider("AETHER__", "__", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "AETHER__"))
	}), nil); err != nil {
		return nil, fmt.Errorf("config: env overrides: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("relay", &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	resolveEnvVars(&cfg)
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	s := &cfg.Server
	if s.Addr == "" {
		s.Addr = ":3000"
	}
	if len(s.CORSOrigins) == 0 {
		s.CORSOrigins = []string{"*"}
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = 10 * time.Second
	}

	u := &cfg.Upstream
	if u.TextProvider == "" {
		u.TextProvider = ProviderGemini
	}
	if u.APIKey == "" {
		u.APIKey = os.Getenv("API_KEY")
	}
	if u.BaseURL == "" {
		u.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if u.TextModel == "" {
		u.TextModel = "gemini-2.5-flash-preview-05-20"
	}
	if u.ImageModel == "" {
		u.ImageModel = "imagen-3.0-generate-002"
	}
	if u.SpeechModel == "" {
		u.SpeechModel = "gemini-2.5-flash-preview-tts"
	}
	if u.DefaultVoice == "" {
		u.DefaultVoice = "Kore"
	}
	if u.OpenAIAPIKey == "" {
		u.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	}
	if u.OpenAIBaseURL == "" {
		u.OpenAIBaseURL = "https://api.openai.com/v1"
	}
	if u.OpenAIModel == "" {
		u.OpenAIModel = "gpt-4o-mini"
	}

	r := &cfg.Retry
	def := retry.DefaultConfig()
	if r.MaxAttempts == 0 {
		r.MaxAttempts = def.MaxAttempts
	}
	if r.BaseDelay == 0 {
		r.BaseDelay = def.BaseDelay
	}
	if r.AttemptTimeout == 0 {
		r.AttemptTimeout = 60 * time.Second
	}
	if len(r.RetryStatuses) == 0 {
		r.RetryStatuses = []int{429}
	}
}

// Validate reports configuration the relay cannot start with.
func (c *Config) Validate() error {
	switch c.Upstream.TextProvider {
	case ProviderGemini:
	case ProviderOpenAI:
		if c.Upstream.OpenAIAPIKey == "" {
			return fmt.Errorf("config: text_provider openai: %w", moderr.ErrMissingAPIKey)
		}
	default:
		return fmt.Errorf("config: text_provider %q: %w", c.Upstream.TextProvider, moderr.ErrUnknownProvider)
	}
	// Image and speech always go to the primary upstream.
	if strings.TrimSpace(c.Upstream.APIKey) == "" {
		return fmt.Errorf("config: upstream.api_key (or API_KEY): %w", moderr.ErrMissingAPIKey)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("config: retry.max_attempts must be >= 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.BaseDelay < 0 || c.Retry.AttemptTimeout < 0 {
		return fmt.Errorf("config: retry delays must not be negative")
	}
	return nil
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// resolveEnvVars resolves ${VAR} patterns in config string fields
func resolveEnvVars(cfg *Config) {
	u := &cfg.Upstream
	for _, p := range []*string{
		&u.TextProvider, &u.APIKey, &u.BaseURL, &u.TextModel, &u.ImageModel, &u.SpeechModel,
		&u.DefaultVoice, &u.OpenAIAPIKey, &u.OpenAIBaseURL, &u.OpenAIModel,
		&cfg.Server.Addr, &cfg.Server.StaticDir, &cfg.Metrics.Addr,
	} {
		*p = resolveEnvString(*p)
	}
}

// resolveEnvString replaces ${VAR} with environment variable values.
// Unset variables expand to the empty string.
func resolveEnvString(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1] // Remove ${ and }
		return os.Getenv(varName)
	})
}
