package main

import (
	"context"
	"fmt"

	"github.com/RichardoC/blinky/internal/chat"
	"github.com/RichardoC/blinky/internal/config"
	"github.com/RichardoC/blinky/internal/db"
	"github.com/RichardoC/blinky/internal/llm"
	"github.com/RichardoC/blinky/internal/metrics"
	"github.com/RichardoC/blinky/internal/personality"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// app holds the components shared by every subcommand that talks to the
// model.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	database *db.Database
	cache    *personality.Cache
	metrics  *metrics.Metrics
	engine   *chat.Engine
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	database, err := db.New(cfg.DB.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database %s: %w", cfg.DB.Path, err)
	}

	a := &app{cfg: cfg, logger: logger, database: database}
	if err := a.init(ctx); err != nil {
		return nil, multierr.Append(err, database.Close())
	}
	return a, nil
}

func (a *app) init(ctx context.Context) error {
	if path := a.cfg.Personalities.SeedFile; path != "" {
		n, err := personality.SeedFile(ctx, path, a.database)
		if err != nil {
			return fmt.Errorf("failed to seed personalities: %w", err)
		}
		a.logger.Info("Seeded personalities", zap.String("file", path), zap.Int("count", n))
	}

	a.cache = personality.NewCache(a.database, a.logger)
	if err := a.cache.Load(ctx); err != nil {
		return fmt.Errorf("failed to load personalities: %w", err)
	}
	if a.cache.Len() == 0 {
		a.logger.Warn("No personalities configured; prompts will fail until one is created")
	}

	a.metrics = metrics.New()
	a.metrics.TrackPersonalities(a.cache.Len)

	client, err := llm.New(llm.Config{
		Provider: a.cfg.LLM.Provider,
		BaseURL:  a.cfg.LLM.BaseURL,
		APIKey:   a.cfg.LLM.APIKey,
		Model:    a.cfg.LLM.Model,
		Timeout:  a.cfg.LLM.Timeout,
		Options: llm.Options{
			Temperature: a.cfg.LLM.Temperature,
			TopP:        a.cfg.LLM.TopP,
			NumPredict:  a.cfg.LLM.NumPredict,
		},
	}, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM client: %w", err)
	}

	var opts []chat.Option
	if a.cfg.Context.TokenBudget > 0 {
		counter, err := llm.NewTokenCounter(a.cfg.Context.Encoding)
		if err != nil {
			return fmt.Errorf("failed to initialize token counter: %w", err)
		}
		opts = append(opts, chat.WithTokenCounter(counter))
	}

	a.engine = chat.NewEngine(a.database, a.database, a.cache, client, a.metrics, a.logger, chat.Config{
		Model:       a.cfg.LLM.Model,
		Window:      a.cfg.Context.Window,
		TokenBudget: a.cfg.Context.TokenBudget,
	}, opts...)

	names := make([]string, 0, a.cache.Len())
	for _, p := range a.cache.All() {
		names = append(names, p.Name)
	}
	a.logger.Info("Initialized conversation engine",
		zap.String("provider", a.cfg.LLM.Provider),
		zap.String("model", a.cfg.LLM.Model),
		zap.Int("window", a.cfg.Context.Window),
		zap.Strings("personalities", names))
	return nil
}

func (a *app) Close() error {
	return a.database.Close()
}
