package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creastat/chatcore/chat"
	"github.com/creastat/chatcore/config"
	"github.com/creastat/chatcore/identity"
	"github.com/creastat/chatcore/inference"
	"github.com/creastat/chatcore/source/qdrant"
	"github.com/creastat/chatcore/source/supabase"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Inference.APIKey = "sk-test"
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, config.LogConfig{Level: "warn", Format: "json"}).Info("hidden")
	assert.Empty(t, buf.String())

	newLogger(&buf, config.LogConfig{Level: "debug", Format: "json"}).Debug("shown", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	buf.Reset()
	newLogger(&buf, config.LogConfig{Level: "bogus", Format: "text"}).Info("plain")
	assert.Contains(t, buf.String(), "msg=plain")
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	mem, err := openStore(ctx, config.StoreConfig{Driver: "memory"})
	require.NoError(t, err)
	removed, err := sweepOnce(ctx, mem)
	require.NoError(t, err)
	assert.Zero(t, removed)
	require.NoError(t, mem.Close())

	bolt, err := openStore(ctx, config.StoreConfig{Driver: "bolt", Bolt: config.BoltConfig{Path: filepath.Join(t.TempDir(), "kv.db")}})
	require.NoError(t, err)
	require.NoError(t, bolt.Put(ctx, "k", "v", time.Nanosecond))
	time.Sleep(time.Millisecond)
	removed, err = sweepOnce(ctx, bolt)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	require.NoError(t, bolt.Close())

	mr := miniredis.RunT(t)
	rdb, err := openStore(ctx, config.StoreConfig{Driver: "redis", Redis: config.RedisConfig{Addr: mr.Addr()}})
	require.NoError(t, err)
	removed, err = sweepOnce(ctx, rdb)
	require.NoError(t, err)
	assert.Equal(t, -1, removed)
	require.NoError(t, rdb.Close())

	mr.Close()
	_, err = openStore(ctx, config.StoreConfig{Driver: "redis", Redis: config.RedisConfig{Addr: mr.Addr()}})
	assert.Error(t, err)

	_, err = openStore(ctx, config.StoreConfig{Driver: "etcd"})
	assert.Error(t, err)
}

func TestOpenSource(t *testing.T) {
	src, closer, err := openSource(config.SourceConfig{Type: config.SourceNone})
	require.NoError(t, err)
	assert.Nil(t, src)
	assert.Nil(t, closer)

	sb := config.SupabaseConfig{URL: "https://project.supabase.co", APIKey: "anon", Bucket: "site"}
	src, _, err = openSource(config.SourceConfig{Type: config.SourceSupabaseBucket, Supabase: sb})
	require.NoError(t, err)
	assert.IsType(t, &supabase.Bucket{}, src)

	src, _, err = openSource(config.SourceConfig{Type: config.SourceSupabaseTable, Supabase: sb})
	require.NoError(t, err)
	assert.IsType(t, &supabase.Table{}, src)

	src, closer, err = openSource(config.SourceConfig{Type: config.SourceQdrant, Qdrant: config.QdrantConfig{URL: "http://localhost:6334", Collection: "pages", SkipCompatibilityCheck: true}})
	require.NoError(t, err)
	assert.IsType(t, &qdrant.Collection{}, src)
	require.NotNil(t, closer)
	assert.NoError(t, closer.Close())
}

func TestNewProvider(t *testing.T) {
	p, err := newProvider(config.InferenceConfig{Provider: config.ProviderOpenAI, APIKey: "sk"})
	require.NoError(t, err)
	assert.IsType(t, &inference.OpenAI{}, p)
	assert.Equal(t, inference.DefaultOpenAIModel, p.Model())

	p, err = newProvider(config.InferenceConfig{Provider: config.ProviderAnthropic, APIKey: "sk", Model: "claude-test"})
	require.NoError(t, err)
	assert.IsType(t, &inference.Anthropic{}, p)

	_, err = newProvider(config.InferenceConfig{Provider: config.ProviderOpenAI})
	assert.ErrorIs(t, err, inference.ErrMissingAPIKey)
}

func TestBuild(t *testing.T) {
	cfg := testConfig(t)
	a, err := build(context.Background(), cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	require.NotNil(t, a.service)

	limits := a.service.Limits()
	assert.Equal(t, cfg.Limits.DailyRequests, limits.DailyRequests)
	assert.Equal(t, cfg.Session.MaxMessages, limits.MaxConversationLength)
	assert.Equal(t, 3600, limits.ConversationTimeout)
	assert.NoError(t, a.Close())
}

func TestBuildWithoutSourceCachesTitle(t *testing.T) {
	var (
		mu            sync.Mutex
		systemPrompts []string
	)
	model := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Messages)
		require.Equal(t, "system", req.Messages[0].Role)
		mu.Lock()
		systemPrompts = append(systemPrompts, req.Messages[0].Content)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"m",` +
			`"choices":[{"index":0,"message":{"role":"assistant","content":"xin chào"},"finish_reason":"stop"}]}`))
	}))
	defer model.Close()

	cfg := testConfig(t)
	cfg.Inference.BaseURL = model.URL + "/v1/"
	a, err := build(context.Background(), cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	for range 2 {
		res, err := a.service.SubmitTurn(ctx, chat.TurnRequest{Message: "hi", User: identity.UserInfo{IP: "198.51.100.4"}})
		require.NoError(t, err)
		assert.Equal(t, "xin chào", res.Response)
	}

	cached, found, err := a.store.Get(ctx, "cache:website_context")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, cfg.Context.Title+"\n\n", cached)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, systemPrompts, 2)
	assert.Contains(t, systemPrompts[0], cfg.Context.Title)
	assert.Equal(t, systemPrompts[0], systemPrompts[1])
}

func TestBuildFailsOnBadSource(t *testing.T) {
	cfg := testConfig(t)
	cfg.Context.Source = config.SourceConfig{Type: config.SourceSupabaseBucket}
	_, err := build(context.Background(), cfg, slog.New(slog.DiscardHandler))
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, version+"\n", out.String())
}
