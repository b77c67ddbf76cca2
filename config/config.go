// Package config loads service settings from defaults, an optional config
// or .env file and the environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/scttfrdmn/decisionkit/decisionkit-go/adapter/llm"
	"github.com/scttfrdmn/decisionkit/decisionkit-go/decisionkit"
)

// Config holds every setting. Field tags name the environment variable.
type Config struct {
	LLMProvider     string  `mapstructure:"llm_provider"`
	OpenAIAPIKey    string  `mapstructure:"openai_api_key"`
	OpenAIModel     string  `mapstructure:"openai_model"`
	OpenAIBaseURL   string  `mapstructure:"openai_base_url"`
	GeminiAPIKey    string  `mapstructure:"gemini_api_key"`
	GeminiModel     string  `mapstructure:"gemini_model"`
	BedrockModelID  string  `mapstructure:"bedrock_model_id"`
	AWSRegion       string  `mapstructure:"aws_region"`
	Temperature     float64 `mapstructure:"agent_temperature"`
	MaxTokens       int     `mapstructure:"agent_max_tokens"`
	MaxSteps        int     `mapstructure:"agent_max_steps"`
	CompletionLimit float64 `mapstructure:"agent_completion_rate_limit"`
	RetryAttempts   int     `mapstructure:"agent_retry_attempts"`

	RefreshInterval    int           `mapstructure:"data_refresh_interval"`
	MarketingEndpoint  string        `mapstructure:"marketing_data_endpoint"`
	SalesEndpoint      string        `mapstructure:"sales_data_endpoint"`
	LogisticsEndpoint  string        `mapstructure:"logistics_data_endpoint"`
	CollectionEndpoint string        `mapstructure:"collection_data_endpoint"`
	CacheDir           string        `mapstructure:"data_cache_dir"`
	CacheBackend       string        `mapstructure:"cache_backend"`
	RedisURL           string        `mapstructure:"redis_url"`
	MemoryBackend      string        `mapstructure:"memory_backend"`
	MemoryTTL          time.Duration `mapstructure:"memory_ttl"`

	MarketingKeywords  string `mapstructure:"keywords_marketing"`
	SalesKeywords      string `mapstructure:"keywords_sales"`
	LogisticsKeywords  string `mapstructure:"keywords_logistics"`
	CollectionKeywords string `mapstructure:"keywords_collection"`

	Host             string        `mapstructure:"host"`
	Port             int           `mapstructure:"port"`
	Debug            bool          `mapstructure:"debug"`
	CORSOrigins      string        `mapstructure:"cors_origins"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	ResponseCacheTTL time.Duration `mapstructure:"response_cache_ttl"`

	MaxQueryLength     int `mapstructure:"max_query_length"`
	InjectionThreshold int `mapstructure:"injection_threshold"`

	LogLevel     string `mapstructure:"log_level"`
	LogFormat    string `mapstructure:"log_format"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	TraceConsole bool   `mapstructure:"trace_console"`
	AuditLogFile string `mapstructure:"audit_log_file"`
}

var defaults = map[string]interface{}{
	"llm_provider":                "openai",
	"openai_model":                llm.DefaultOpenAIModel,
	"gemini_model":                llm.DefaultGeminiModel,
	"bedrock_model_id":            llm.DefaultBedrockModel,
	"aws_region":                  "us-east-1",
	"agent_temperature":           0.2,
	"agent_max_tokens":            4000,
	"agent_max_steps":             6,
	"agent_completion_rate_limit": 0.0,
	"agent_retry_attempts":        3,
	"data_refresh_interval":       86400,
	"data_cache_dir":              "data/cached",
	"cache_backend":               "file",
	"redis_url":                   "redis://localhost:6379/0",
	"memory_backend":              "memory",
	"memory_ttl":                  24 * time.Hour,
	"host":                        "0.0.0.0",
	"port":                        5000,
	"debug":                       false,
	"cors_origins":                "*",
	"request_timeout":             120 * time.Second,
	"response_cache_ttl":          time.Duration(0),
	"max_query_length":            5000,
	"injection_threshold":         10,
	"log_level":                   "info",
	"log_format":                  "text",
	"trace_console":               false,
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
		// Unmarshal only sees environment keys that are bound.
		_ = v.BindEnv(key, strings.ToUpper(key))
	}
	for _, key := range []string{
		"openai_api_key", "openai_base_url", "gemini_api_key",
		"marketing_data_endpoint", "sales_data_endpoint", "logistics_data_endpoint", "collection_data_endpoint",
		"keywords_marketing", "keywords_sales", "keywords_logistics", "keywords_collection",
		"otlp_endpoint", "audit_log_file",
	} {
		_ = v.BindEnv(key, strings.ToUpper(key))
	}
	v.AutomaticEnv()
	return v
}

// Load reads configuration. file may name a YAML/JSON/TOML/.env file; when
// empty, a ".env" file in the working directory is used if present.
func Load(file string) (*Config, error) {
	v := New()
	if err := readFile(v, file); err != nil {
		return nil, err
	}
	return FromViper(v)
}

func readFile(v *viper.Viper, file string) error {
	if file == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		file = ".env"
	}
	v.SetConfigFile(file)
	if strings.HasSuffix(file, ".env") {
		v.SetConfigType("env")
	}
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", file, err)
	}
	return nil
}

// FromViper decodes and validates the settings held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(cfg.LLMProvider))
	cfg.CacheBackend = strings.ToLower(strings.TrimSpace(cfg.CacheBackend))
	cfg.MemoryBackend = strings.ToLower(strings.TrimSpace(cfg.MemoryBackend))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, fmt.Errorf("AGENT_TEMPERATURE must be between 0 and 2, got %v", c.Temperature))
	}
	if c.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("AGENT_MAX_TOKENS must be positive, got %d", c.MaxTokens))
	}
	if c.MaxSteps <= 0 {
		errs = append(errs, fmt.Errorf("AGENT_MAX_STEPS must be positive, got %d", c.MaxSteps))
	}
	if c.CompletionLimit < 0 {
		errs = append(errs, fmt.Errorf("AGENT_COMPLETION_RATE_LIMIT cannot be negative, got %v", c.CompletionLimit))
	}
	if c.RefreshInterval <= 0 {
		errs = append(errs, fmt.Errorf("DATA_REFRESH_INTERVAL must be positive, got %d", c.RefreshInterval))
	}
	if c.MaxQueryLength <= 0 {
		errs = append(errs, fmt.Errorf("MAX_QUERY_LENGTH must be positive, got %d", c.MaxQueryLength))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}
	switch c.LLMProvider {
	case "openai", "gemini", "bedrock", "mock":
	default:
		errs = append(errs, fmt.Errorf("LLM_PROVIDER must be openai, gemini, bedrock or mock, got %q", c.LLMProvider))
	}
	switch c.CacheBackend {
	case "file", "redis":
	default:
		errs = append(errs, fmt.Errorf("CACHE_BACKEND must be file or redis, got %q", c.CacheBackend))
	}
	switch c.MemoryBackend {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("MEMORY_BACKEND must be memory or redis, got %q", c.MemoryBackend))
	}
	return errors.Join(errs...)
}

// Endpoints returns the configured data endpoints by domain.
func (c *Config) Endpoints() map[decisionkit.Domain]string {
	return map[decisionkit.Domain]string{
		decisionkit.DomainMarketing:  c.MarketingEndpoint,
		decisionkit.DomainSales:      c.SalesEndpoint,
		decisionkit.DomainLogistics:  c.LogisticsEndpoint,
		decisionkit.DomainCollection: c.CollectionEndpoint,
	}
}

// ExtraKeywords returns the comma separated KEYWORDS_<DOMAIN> settings.
func (c *Config) ExtraKeywords() map[decisionkit.Domain][]string {
	out := make(map[decisionkit.Domain][]string)
	for domain, raw := range map[decisionkit.Domain]string{
		decisionkit.DomainMarketing:  c.MarketingKeywords,
		decisionkit.DomainSales:      c.SalesKeywords,
		decisionkit.DomainLogistics:  c.LogisticsKeywords,
		decisionkit.DomainCollection: c.CollectionKeywords,
	} {
		for _, kw := range strings.Split(raw, ",") {
			if kw = strings.TrimSpace(kw); kw != "" {
				out[domain] = append(out[domain], kw)
			}
		}
	}
	return out
}

// CORSOriginList splits CORS_ORIGINS on commas.
func (c *Config) CORSOriginList() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		out = []string{"*"}
	}
	return out
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RefreshEvery is DATA_REFRESH_INTERVAL as a duration.
func (c *Config) RefreshEvery() time.Duration {
	return time.Duration(c.RefreshInterval) * time.Second
}

// CompletionInterval is the minimum spacing between completions; zero
// disables rate limiting.
func (c *Config) CompletionInterval() time.Duration {
	return time.Duration(c.CompletionLimit * float64(time.Second))
}
