package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, ":8787", cfg.Server.Listen)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 100, cfg.Limits.DailyRequests)
	assert.Equal(t, 500, cfg.Limits.MaxMessageChars)
	assert.Equal(t, 10, cfg.Session.MaxMessages)
	assert.Equal(t, time.Hour, cfg.Session.TTL)
	assert.Equal(t, time.Hour, cfg.Context.TTL)
	assert.Equal(t, 5, cfg.Context.MaxDocuments)
	assert.Equal(t, 300, cfg.Context.MaxChars)
	assert.Equal(t, 50, cfg.Context.ScanLimit)
	assert.Equal(t, ".html", cfg.Context.Suffix)
	assert.Equal(t, 30*24*time.Hour, cfg.Analytics.TTL)
	assert.Equal(t, 1000, cfg.Inference.MaxTokens)
	assert.InDelta(t, 0.7, cfg.Inference.Temperature, 1e-9)
	assert.InDelta(t, 0.9, cfg.Inference.TopP, 1e-9)

	// Only the API key is missing.
	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, "inference.api_key is required", err.Error())

	cfg.Inference.APIKey = "sk-test"
	assert.NoError(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatcore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  listen: ":9000"
store:
  driver: redis
  redis:
    addr: redis:6379
    db: 2
limits:
  daily_requests: 20
session:
  ttl: 30m
context:
  source:
    type: qdrant
    qdrant:
      url: http://qdrant:6334
      collection: pages
      filter:
        site: mhcomputer
inference:
  provider: anthropic
  api_key: sk-file
  temperature: 0.2
`), 0o600))

	t.Setenv("CHATCORE_LISTEN", "")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":9000", cfg.Server.Listen)
	assert.Equal(t, "redis", cfg.Store.Driver)
	assert.Equal(t, "redis:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, 2, cfg.Store.Redis.DB)
	assert.Equal(t, 20, cfg.Limits.DailyRequests)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
	assert.Equal(t, SourceQdrant, cfg.Context.Source.Type)
	assert.Equal(t, "mhcomputer", cfg.Context.Source.Qdrant.Filter["site"])
	assert.Equal(t, ProviderAnthropic, cfg.Inference.Provider)
	assert.Equal(t, "sk-file", cfg.Inference.APIKey)
	assert.InDelta(t, 0.2, cfg.Inference.Temperature, 1e-9)

	// Untouched fields keep their defaults.
	assert.Equal(t, 500, cfg.Limits.MaxMessageChars)
	assert.Equal(t, 0.9, cfg.Inference.TopP)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(env(map[string]string{
		"CHATCORE_STORE_DRIVER":    "bolt",
		"CHATCORE_BOLT_PATH":       "/var/lib/chatcore.db",
		"CHATCORE_DAILY_REQUESTS":  "50",
		"CHATCORE_SESSION_TTL":     "2h",
		"CHATCORE_INFERENCE_TOP_P": "0.5",
		"CHATCORE_LOG_LEVEL":       "",
		"OPENAI_API_KEY":           "sk-env",
	}))
	require.NoError(t, err)

	assert.Equal(t, "bolt", cfg.Store.Driver)
	assert.Equal(t, "/var/lib/chatcore.db", cfg.Store.Bolt.Path)
	assert.Equal(t, 50, cfg.Limits.DailyRequests)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.InDelta(t, 0.5, cfg.Inference.TopP, 1e-9)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "sk-env", cfg.Inference.APIKey)
}

func TestApplyEnvExplicitKeyWins(t *testing.T) {
	cfg := Default()
	cfg.Inference.Provider = ProviderAnthropic
	require.NoError(t, cfg.applyEnv(env(map[string]string{
		"CHATCORE_INFERENCE_API_KEY": "sk-chatcore",
		"ANTHROPIC_API_KEY":          "sk-anthropic",
	})))
	assert.Equal(t, "sk-chatcore", cfg.Inference.APIKey)
}

func TestApplyEnvRejectsBadValues(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(env(map[string]string{
		"CHATCORE_DAILY_REQUESTS": "lots",
		"CHATCORE_SESSION_TTL":    "forever",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHATCORE_DAILY_REQUESTS")
	assert.Contains(t, err.Error(), "CHATCORE_SESSION_TTL")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad driver", func(c *Config) { c.Store.Driver = "etcd" }, `invalid store.driver: "etcd"`},
		{"redis without addr", func(c *Config) { c.Store.Driver = "redis"; c.Store.Redis.Addr = "" }, "store.redis.addr is required"},
		{"bolt without path", func(c *Config) { c.Store.Driver = "bolt"; c.Store.Bolt.Path = "" }, "store.bolt.path is required"},
		{"zero cap", func(c *Config) { c.Limits.DailyRequests = 0 }, "limits.daily_requests must be positive"},
		{"negative budget", func(c *Config) { c.Session.TokenBudget = -1 }, "session.token_budget must not be negative"},
		{"zero ttl", func(c *Config) { c.Context.TTL = 0 }, "must be positive"},
		{"bucket without name", func(c *Config) {
			c.Context.Source = SourceConfig{Type: SourceSupabaseBucket, Supabase: SupabaseConfig{URL: "u", APIKey: "k"}}
		}, "context.source.supabase.bucket is required"},
		{"qdrant without collection", func(c *Config) {
			c.Context.Source = SourceConfig{Type: SourceQdrant, Qdrant: QdrantConfig{URL: "u"}}
		}, "context.source.qdrant url and collection are required"},
		{"unknown source", func(c *Config) { c.Context.Source.Type = "s3" }, `invalid context.source.type: "s3"`},
		{"unknown provider", func(c *Config) { c.Inference.Provider = "gemini" }, `invalid inference.provider: "gemini"`},
		{"top_p out of range", func(c *Config) { c.Inference.TopP = 1.5 }, "inference.top_p"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, `invalid log.format: "xml"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Inference.APIKey = "sk-test"
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
