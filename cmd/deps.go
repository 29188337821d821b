package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spigell/scheme-matcher/internal/aadhaar"
	"github.com/spigell/scheme-matcher/internal/ai"
	"github.com/spigell/scheme-matcher/internal/ai/embedcache"
	"github.com/spigell/scheme-matcher/internal/ai/gemini"
	"github.com/spigell/scheme-matcher/internal/recommend"
	"github.com/spigell/scheme-matcher/internal/secrets"
	"github.com/spigell/scheme-matcher/internal/store"
	"github.com/spigell/scheme-matcher/internal/store/postgres"
	"github.com/spigell/scheme-matcher/internal/store/supabase"
)

// deps holds everything a command needs. close releases open connections.
type deps struct {
	store       store.Store
	checks      map[string]store.Pinger
	recommender *recommend.Recommender
	verifier    *aadhaar.Verifier
	closers     []func() error
}

func (d *deps) close(logger *zap.Logger) {
	for _, c := range d.closers {
		if err := c(); err != nil {
			logger.Warn("closing dependency", zap.Error(err))
		}
	}
}

func buildDeps(ctx context.Context, config *Config, logger *zap.Logger) (*deps, error) {
	d := &deps{checks: make(map[string]store.Pinger)}

	s, err := newStore(config.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}
	d.store = s
	if pinger, ok := s.(store.Pinger); ok {
		d.checks["store"] = pinger
	}
	if pg, ok := s.(*postgres.Store); ok {
		d.closers = append(d.closers, pg.Close)
	}

	client, err := newGemini(ctx, config.Gemini, logger)
	if err != nil {
		logger.Warn("gemini is not available, similarity ranking and aadhaar verification are disabled", zap.Error(err))
	}

	var embedder ai.Embedder
	if client != nil {
		embedder = client.Embedder()
		d.verifier = aadhaar.NewVerifier(s, client.TextExtractor(), logger)

		if config.Cache.Enabled {
			rdb := embedcache.NewRedis(config.Cache)
			d.closers = append(d.closers, rdb.Close)
			d.checks["cache"] = redisPinger{rdb}
			embedder = embedcache.New(embedder, rdb, config.Cache.TTL, logger)
		}
	}

	d.recommender = recommend.New(s, embedder, config.Recommend, logger)

	return d, nil
}

func newStore(cfg StoreConfig, logger *zap.Logger) (store.Store, error) {
	switch backend := strings.ToLower(strings.TrimSpace(cfg.Backend)); backend {
	case store.BackendPostgres:
		return postgres.Open(cfg.Postgres, logger)
	case store.BackendSupabase, "":
		key, err := secrets.Load(secrets.Source{
			Name:  "supabase key",
			Value: cfg.Supabase.Key,
			File:  cfg.Supabase.KeyFile,
			Env:   "SUPABASE_ANON_KEY",
		})
		if err != nil {
			return nil, err
		}
		return supabase.New(cfg.Supabase, key, logger)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Backend)
	}
}

func newGemini(ctx context.Context, cfg GeminiConfig, logger *zap.Logger) (*gemini.Client, error) {
	key, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.APIKey,
		File:  cfg.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, err
	}

	geminiCfg := cfg.Config
	geminiCfg.APIKey = key
	return gemini.NewClient(ctx, geminiCfg, logger)
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
