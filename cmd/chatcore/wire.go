package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/creastat/chatcore/analytics"
	"github.com/creastat/chatcore/chat"
	"github.com/creastat/chatcore/config"
	"github.com/creastat/chatcore/contextcache"
	"github.com/creastat/chatcore/digest"
	"github.com/creastat/chatcore/inference"
	"github.com/creastat/chatcore/kv"
	"github.com/creastat/chatcore/ratelimit"
	"github.com/creastat/chatcore/session"
	"github.com/creastat/chatcore/source"
	"github.com/creastat/chatcore/source/qdrant"
	"github.com/creastat/chatcore/source/supabase"
)

// app holds the wired components and what must be closed on exit.
type app struct {
	store   kv.Store
	service *chat.Service
	closers []io.Closer
}

// Close releases the source client and the store.
func (a *app) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	errs = append(errs, a.store.Close())
	return errors.Join(errs...)
}

func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func openStore(ctx context.Context, cfg config.StoreConfig) (kv.Store, error) {
	switch kv.StoreType(cfg.Driver) {
	case kv.StoreTypeRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return kv.NewStore(kv.StoreTypeRedis, kv.WithRedisClient(client))
	case kv.StoreTypeBolt:
		return kv.NewStore(kv.StoreTypeBolt, kv.WithBoltPath(cfg.Bolt.Path))
	default:
		return kv.NewStore(kv.StoreType(cfg.Driver))
	}
}

// sweepOnce purges expired keys and returns how many were removed, or
// -1 when the store expires keys natively.
func sweepOnce(ctx context.Context, store kv.Store) (int, error) {
	sweeper, ok := store.(kv.Sweeper)
	if !ok {
		return -1, nil
	}
	removed, err := sweeper.Sweep(ctx)
	if err != nil {
		return 0, fmt.Errorf("sweep failed: %w", err)
	}
	return removed, nil
}

// openSource returns the configured document source, or nil for none.
func openSource(cfg config.SourceConfig) (source.Source, io.Closer, error) {
	sb := supabase.Config{
		URL:    cfg.Supabase.URL,
		APIKey: cfg.Supabase.APIKey,
		Bucket: cfg.Supabase.Bucket,
		Prefix: cfg.Supabase.Prefix,
		Table:  cfg.Supabase.Table,
	}
	switch cfg.Type {
	case config.SourceSupabaseBucket:
		b, err := supabase.NewBucket(sb)
		return b, nil, err
	case config.SourceSupabaseTable:
		t, err := supabase.NewTable(sb)
		return t, nil, err
	case config.SourceQdrant:
		c, err := qdrant.New(qdrant.Config{
			URL:            cfg.Qdrant.URL,
			CollectionName: cfg.Qdrant.Collection,
			APIKey:         cfg.Qdrant.APIKey,
			ContentField:   cfg.Qdrant.ContentField,
			Filter:         cfg.Qdrant.Filter,

			SkipCompatibilityCheck: cfg.Qdrant.SkipCompatibilityCheck,
		})
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil
	default:
		return nil, nil, nil
	}
}

func newProvider(cfg config.InferenceConfig) (inference.Provider, error) {
	switch cfg.Provider {
	case config.ProviderAnthropic:
		return inference.NewAnthropic(inference.AnthropicConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			MaxRetries: cfg.MaxRetries,
		})
	default:
		return inference.NewOpenAI(inference.OpenAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			MaxRetries: cfg.MaxRetries,
		})
	}
}

// build wires every component from cfg.
func build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	a := &app{store: store}

	src, closer, err := openSource(cfg.Context.Source)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to open context source: %w", err)
	}
	if closer != nil {
		a.closers = append(a.closers, closer)
	}

	provider := digest.NewBuilder(src, digest.Config{
		MaxDocuments: cfg.Context.MaxDocuments,
		MaxChars:     cfg.Context.MaxChars,
		ScanLimit:    cfg.Context.ScanLimit,
		Suffix:       cfg.Context.Suffix,
		Title:        cfg.Context.Title,
	}, logger)

	model, err := newProvider(cfg.Inference)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to create inference provider: %w", err)
	}

	a.service, err = chat.NewService(chat.Deps{
		Limiter: ratelimit.New(store, ratelimit.WithDailyCap(cfg.Limits.DailyRequests)),
		Sessions: session.NewStore(store,
			session.WithMaxMessages(cfg.Session.MaxMessages),
			session.WithTTL(cfg.Session.TTL),
			session.WithTokenBudget(cfg.Session.TokenBudget),
			session.WithLogger(logger),
		),
		Context:  contextcache.New(store, provider, cfg.Context.TTL),
		Provider: model,
		Analytics: analytics.NewRecorder(store,
			analytics.WithTTL(cfg.Analytics.TTL),
			analytics.WithLogger(logger),
		),
	}, chat.Config{
		MaxMessageChars: cfg.Limits.MaxMessageChars,
		SystemPrompt:    cfg.Inference.SystemPrompt,
		FallbackReply:   cfg.Inference.FallbackReply,
		Params: inference.Params{
			MaxTokens:   cfg.Inference.MaxTokens,
			Temperature: cfg.Inference.Temperature,
			TopP:        cfg.Inference.TopP,
		},
	}, chat.WithLogger(logger))
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}
