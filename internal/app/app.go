// Package app assembles configuration, adapters and pipelines into a
// runnable agent.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"PoolsAgent/internal/config"
	"PoolsAgent/internal/generation"
	"PoolsAgent/internal/grading"
	"PoolsAgent/internal/infrastructure/chain"
	"PoolsAgent/internal/infrastructure/image"
	"PoolsAgent/internal/infrastructure/llm"
	"PoolsAgent/internal/infrastructure/scheduler"
	"PoolsAgent/internal/infrastructure/search"
	"PoolsAgent/internal/infrastructure/social"
	"PoolsAgent/internal/infrastructure/storage"
	"PoolsAgent/internal/infrastructure/subgraph"
)

// App owns both pipelines and the schedulers that drive them.
type App struct {
	cfg    config.Config
	logger *slog.Logger

	generation *generation.Pipeline
	grading    *grading.Pipeline

	store *storage.PostgresRepository

	genSched  *scheduler.Interval
	gradSched *scheduler.Interval
}

// New wires every adapter and builds both pipelines. Missing contract
// credentials abort construction: a generation run without a chain client
// would burn model and image spend with nothing to commit.
func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	chainClient, err := chain.NewClient(cfg.Chain)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	store, err := storage.NewPostgresRepository(cfg.Database.DSN, cfg.Pipeline.UpsertBatchSize, logger)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	tavily := search.NewTavilyClient(cfg.Tavily)

	gen, err := generation.New(generation.Deps{
		Source: social.NewClient(cfg.Social, logger),
		Store:  store,
		News:   search.NewNewsClient(cfg.News),
		Web:    tavily,
		Model:  llm.NewAnthropicClient(cfg.Anthropic, cfg.Anthropic.SmallModel),
		Images: image.NewFluxClient(cfg.Flux),
		Chain:  chainClient,
		Logger: logger,
		Policy: generation.Policy{
			AccountID:       cfg.Social.AccountID,
			MaxItems:        cfg.Pipeline.MaxItemsPerRun,
			AgeCutoff:       cfg.Pipeline.AgeCutoffEnabled,
			MaxAge:          cfg.Pipeline.MaxPostAge(),
			MaxImages:       cfg.Pipeline.MaxImagesPerRun,
			PollInterval:    cfg.Flux.PollInterval(),
			MaxPollAttempts: cfg.Flux.MaxPollAttempts,
		},
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("app: %w", err)
	}

	grad, err := grading.New(grading.Deps{
		Pools:  subgraph.NewClient(cfg.Chain.SubgraphURL),
		Model:  llm.NewAnthropicClient(cfg.Anthropic, cfg.Anthropic.LargeModel),
		Search: tavily,
		Logger: logger,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("app: %w", err)
	}

	return &App{
		cfg:        cfg,
		logger:     logger,
		generation: gen,
		grading:    grad,
		store:      store,
		genSched:   scheduler.NewInterval(cfg.Scheduler.GenerationInterval()),
		gradSched:  scheduler.NewInterval(cfg.Scheduler.GradingInterval()),
	}, nil
}

// RunGeneration executes a single generation pass.
func (a *App) RunGeneration(ctx context.Context) error {
	set, err := a.generation.Run(ctx)
	if err != nil {
		return fmt.Errorf("generation run: %w", err)
	}
	a.logger.Info("generation run finished", "items", set.Len())
	return nil
}

// RunGrading executes a single grading pass.
func (a *App) RunGrading(ctx context.Context) error {
	set, err := a.grading.Run(ctx)
	if err != nil {
		return fmt.Errorf("grading run: %w", err)
	}
	a.logger.Info("grading run finished", "pools", set.Len())
	return nil
}

// Start launches both schedulers and blocks until the context is cancelled,
// then drains in-flight runs before returning.
func (a *App) Start(ctx context.Context) error {
	if err := a.genSched.Start(ctx, func(time.Time) {
		if err := a.RunGeneration(ctx); err != nil {
			a.logger.Error("generation run failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("start generation scheduler: %w", err)
	}
	if err := a.gradSched.Start(ctx, func(time.Time) {
		if err := a.RunGrading(ctx); err != nil {
			a.logger.Error("grading run failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("start grading scheduler: %w", err)
	}

	<-ctx.Done()
	return a.Shutdown()
}

// Shutdown stops the schedulers, waits briefly for in-flight runs and
// closes the store.
func (a *App) Shutdown() error {
	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := a.genSched.Stop(stopCtx); err != nil {
		a.logger.Warn("generation scheduler stop", "error", err)
	}
	if err := a.gradSched.Stop(stopCtx); err != nil {
		a.logger.Warn("grading scheduler stop", "error", err)
	}
	return a.store.Close()
}
