// Package config loads the chatcore configuration.
//
// Values start from Default, are overlaid by an optional YAML file and
// then by CHATCORE_* environment variables. Validate reports every
// problem at once.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CHATCORE_"

const (
	SourceNone           = "none"
	SourceSupabaseBucket = "supabase_bucket"
	SourceSupabaseTable  = "supabase_table"
	SourceQdrant         = "qdrant"

	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config is the complete chatcore configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Store     StoreConfig     `yaml:"store"`
	Limits    LimitsConfig    `yaml:"limits"`
	Session   SessionConfig   `yaml:"session"`
	Context   ContextConfig   `yaml:"context"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Inference InferenceConfig `yaml:"inference"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Listen            string        `yaml:"listen"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is json or text.
	Format string `yaml:"format"`
}

// StoreConfig selects the key-value driver.
type StoreConfig struct {
	// Driver is memory, redis or bolt.
	Driver string      `yaml:"driver"`
	Redis  RedisConfig `yaml:"redis"`
	Bolt   BoltConfig  `yaml:"bolt"`
	// SweepInterval paces the janitor for drivers without native expiry.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type BoltConfig struct {
	Path string `yaml:"path"`
}

// LimitsConfig holds the per-request budgets.
type LimitsConfig struct {
	DailyRequests   int `yaml:"daily_requests"`
	MaxMessageChars int `yaml:"max_message_chars"`
}

// SessionConfig bounds stored conversations.
type SessionConfig struct {
	MaxMessages int           `yaml:"max_messages"`
	TTL         time.Duration `yaml:"ttl"`
	// TokenBudget additionally bounds stored conversations by estimated
	// tokens. Zero disables it.
	TokenBudget int `yaml:"token_budget"`
}

// ContextConfig configures the context digest and its cache.
type ContextConfig struct {
	TTL          time.Duration `yaml:"ttl"`
	MaxDocuments int           `yaml:"max_documents"`
	MaxChars     int           `yaml:"max_chars"`
	ScanLimit    int           `yaml:"scan_limit"`
	Suffix       string        `yaml:"suffix"`
	Title        string        `yaml:"title"`
	Source       SourceConfig  `yaml:"source"`
}

// SourceConfig selects where source documents come from.
type SourceConfig struct {
	// Type is none, supabase_bucket, supabase_table or qdrant.
	Type     string         `yaml:"type"`
	Supabase SupabaseConfig `yaml:"supabase"`
	Qdrant   QdrantConfig   `yaml:"qdrant"`
}

type SupabaseConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
	Table  string `yaml:"table"`
}

type QdrantConfig struct {
	URL                    string         `yaml:"url"`
	Collection             string         `yaml:"collection"`
	APIKey                 string         `yaml:"api_key"`
	ContentField           string         `yaml:"content_field"`
	Filter                 map[string]any `yaml:"filter"`
	SkipCompatibilityCheck bool           `yaml:"skip_compatibility_check"`
}

// AnalyticsConfig configures record retention.
type AnalyticsConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// InferenceConfig configures the model provider and generation.
type InferenceConfig struct {
	// Provider is openai or anthropic.
	Provider      string  `yaml:"provider"`
	Model         string  `yaml:"model"`
	APIKey        string  `yaml:"api_key"`
	BaseURL       string  `yaml:"base_url"`
	MaxRetries    int     `yaml:"max_retries"`
	MaxTokens     int     `yaml:"max_tokens"`
	Temperature   float64 `yaml:"temperature"`
	TopP          float64 `yaml:"top_p"`
	SystemPrompt  string  `yaml:"system_prompt"`
	FallbackReply string  `yaml:"fallback_reply"`
}

// Default returns the free-tier configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:            ":8787",
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "json"},
		Store: StoreConfig{
			Driver:        "memory",
			Redis:         RedisConfig{Addr: "localhost:6379"},
			Bolt:          BoltConfig{Path: "chatcore.db"},
			SweepInterval: time.Minute,
		},
		Limits: LimitsConfig{DailyRequests: 100, MaxMessageChars: 500},
		Session: SessionConfig{
			MaxMessages: 10,
			TTL:         time.Hour,
		},
		Context: ContextConfig{
			TTL:          time.Hour,
			MaxDocuments: 5,
			MaxChars:     300,
			ScanLimit:    50,
			Suffix:       ".html",
			Title:        "Nội dung website:",
			Source:       SourceConfig{Type: SourceNone},
		},
		Analytics: AnalyticsConfig{TTL: 30 * 24 * time.Hour},
		Inference: InferenceConfig{
			Provider:    ProviderOpenAI,
			MaxTokens:   1000,
			Temperature: 0.7,
			TopP:        0.9,
		},
	}
}

// Load returns Default overlaid by the YAML file at path (skipped when
// path is empty) and then by the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

type setter func(string) error

func setString(dst *string) setter {
	return func(v string) error { *dst = v; return nil }
}

func setInt(dst *int) setter {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

func setFloat(dst *float64) setter {
	return func(v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*dst = f
		return nil
	}
}

func setDuration(dst *time.Duration) setter {
	return func(v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*dst = d
		return nil
	}
}

func (c *Config) envSetters() map[string]setter {
	return map[string]setter{
		"LISTEN":                setString(&c.Server.Listen),
		"LOG_LEVEL":             setString(&c.Log.Level),
		"LOG_FORMAT":            setString(&c.Log.Format),
		"STORE_DRIVER":          setString(&c.Store.Driver),
		"REDIS_ADDR":            setString(&c.Store.Redis.Addr),
		"REDIS_PASSWORD":        setString(&c.Store.Redis.Password),
		"REDIS_DB":              setInt(&c.Store.Redis.DB),
		"BOLT_PATH":             setString(&c.Store.Bolt.Path),
		"SWEEP_INTERVAL":        setDuration(&c.Store.SweepInterval),
		"DAILY_REQUESTS":        setInt(&c.Limits.DailyRequests),
		"MAX_MESSAGE_CHARS":     setInt(&c.Limits.MaxMessageChars),
		"SESSION_MAX_MESSAGES":  setInt(&c.Session.MaxMessages),
		"SESSION_TTL":           setDuration(&c.Session.TTL),
		"CONTEXT_TTL":           setDuration(&c.Context.TTL),
		"SOURCE_TYPE":           setString(&c.Context.Source.Type),
		"SUPABASE_URL":          setString(&c.Context.Source.Supabase.URL),
		"SUPABASE_API_KEY":      setString(&c.Context.Source.Supabase.APIKey),
		"SUPABASE_BUCKET":       setString(&c.Context.Source.Supabase.Bucket),
		"SUPABASE_TABLE":        setString(&c.Context.Source.Supabase.Table),
		"QDRANT_URL":            setString(&c.Context.Source.Qdrant.URL),
		"QDRANT_API_KEY":        setString(&c.Context.Source.Qdrant.APIKey),
		"QDRANT_COLLECTION":     setString(&c.Context.Source.Qdrant.Collection),
		"INFERENCE_PROVIDER":    setString(&c.Inference.Provider),
		"INFERENCE_MODEL":       setString(&c.Inference.Model),
		"INFERENCE_API_KEY":     setString(&c.Inference.APIKey),
		"INFERENCE_BASE_URL":    setString(&c.Inference.BaseURL),
		"INFERENCE_MAX_TOKENS":  setInt(&c.Inference.MaxTokens),
		"INFERENCE_TEMPERATURE": setFloat(&c.Inference.Temperature),
		"INFERENCE_TOP_P":       setFloat(&c.Inference.TopP),
	}
}

// applyEnv applies CHATCORE_* overrides. When no key is configured the
// provider's conventional variable (OPENAI_API_KEY, ANTHROPIC_API_KEY)
// is used.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	for name, set := range c.envSetters() {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			continue
		}
		if err := set(v); err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
		}
	}

	if c.Inference.APIKey == "" {
		var conventional string
		switch c.Inference.Provider {
		case ProviderOpenAI:
			conventional = "OPENAI_API_KEY"
		case ProviderAnthropic:
			conventional = "ANTHROPIC_API_KEY"
		}
		if v, ok := lookup(conventional); ok && conventional != "" {
			c.Inference.APIKey = v
		}
	}
	return errors.Join(errs...)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Listen == "" {
		errs = append(errs, errors.New("server.listen is required"))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid log.level: %q", c.Log.Level))
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		errs = append(errs, fmt.Errorf("invalid log.format: %q", c.Log.Format))
	}

	switch c.Store.Driver {
	case "memory":
	case "redis":
		if c.Store.Redis.Addr == "" {
			errs = append(errs, errors.New("store.redis.addr is required"))
		}
	case "bolt":
		if c.Store.Bolt.Path == "" {
			errs = append(errs, errors.New("store.bolt.path is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid store.driver: %q", c.Store.Driver))
	}

	positive := []struct {
		name  string
		value int
	}{
		{"limits.daily_requests", c.Limits.DailyRequests},
		{"limits.max_message_chars", c.Limits.MaxMessageChars},
		{"session.max_messages", c.Session.MaxMessages},
		{"context.max_documents", c.Context.MaxDocuments},
		{"context.max_chars", c.Context.MaxChars},
		{"context.scan_limit", c.Context.ScanLimit},
		{"inference.max_tokens", c.Inference.MaxTokens},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", p.name))
		}
	}
	if c.Session.TTL <= 0 || c.Context.TTL <= 0 || c.Analytics.TTL <= 0 {
		errs = append(errs, errors.New("session.ttl, context.ttl and analytics.ttl must be positive"))
	}
	if c.Session.TokenBudget < 0 {
		errs = append(errs, errors.New("session.token_budget must not be negative"))
	}

	src := c.Context.Source
	switch src.Type {
	case SourceNone:
	case SourceSupabaseBucket, SourceSupabaseTable:
		if src.Supabase.URL == "" || src.Supabase.APIKey == "" {
			errs = append(errs, errors.New("context.source.supabase url and api_key are required"))
		}
		if src.Type == SourceSupabaseBucket && src.Supabase.Bucket == "" {
			errs = append(errs, errors.New("context.source.supabase.bucket is required"))
		}
	case SourceQdrant:
		if src.Qdrant.URL == "" || src.Qdrant.Collection == "" {
			errs = append(errs, errors.New("context.source.qdrant url and collection are required"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid context.source.type: %q", src.Type))
	}

	switch c.Inference.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		errs = append(errs, fmt.Errorf("invalid inference.provider: %q", c.Inference.Provider))
	}
	if c.Inference.APIKey == "" {
		errs = append(errs, errors.New("inference.api_key is required"))
	}
	if c.Inference.Temperature < 0 || c.Inference.TopP < 0 || c.Inference.TopP > 1 {
		errs = append(errs, errors.New("inference.temperature must be >= 0 and inference.top_p within [0, 1]"))
	}

	return errors.Join(errs...)
}
