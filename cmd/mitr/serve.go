package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/siddham-jain/msme-mitr-sub000/internal/analytics"
	"github.com/siddham-jain/msme-mitr-sub000/internal/api"
	"github.com/siddham-jain/msme-mitr-sub000/internal/events"
	"github.com/siddham-jain/msme-mitr-sub000/internal/extractor"
	"github.com/siddham-jain/msme-mitr-sub000/internal/llm"
	"github.com/siddham-jain/msme-mitr-sub000/internal/queue"
	"github.com/siddham-jain/msme-mitr-sub000/internal/schemes"
	"github.com/siddham-jain/msme-mitr-sub000/internal/trigger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the extraction pipeline and the analytics API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	cfg := a.cfg

	if err := a.db.Migrate(ctx); err != nil {
		return err
	}
	slog.Info("database ready")

	llmClient := llm.NewClient(llm.Options{
		APIKey:        cfg.OpenAI.APIKey,
		BaseURL:       cfg.OpenAI.BaseURL,
		PrimaryModel:  cfg.OpenAI.PrimaryModel,
		FallbackModel: cfg.OpenAI.FallbackModel,
		MaxTokens:     cfg.OpenAI.MaxTokens,
		Temperature:   float32(cfg.OpenAI.Temperature),
	}, slog.Default())
	slog.Info("generation client ready",
		"primary", cfg.OpenAI.PrimaryModel, "fallback", cfg.OpenAI.FallbackModel)

	natsClient, err := events.NewClient(cfg.NATS.URL, cfg.NATS.Token, slog.Default())
	if err != nil {
		return err
	}
	defer natsClient.Close()
	slog.Info("nats connected", "url", cfg.NATS.URL)

	ext := extractor.New(llmClient, a.db, a.db, schemes.NewSubstringMatcher(),
		cfg.Extraction.FallbackConfidence, slog.Default())

	cache := analytics.NewTTLCache(cfg.Analytics.CacheTTL)
	agg := analytics.NewAggregator(a.db, a.db, cache, slog.Default())

	proc := queue.New(a.db, a.db, a.db, ext, cache, natsClient, queue.Config{
		BatchSize:           cfg.Queue.BatchSize,
		PollInterval:        cfg.Queue.PollInterval,
		MaxRetries:          cfg.Queue.MaxRetries,
		BaseDelay:           cfg.Queue.BaseDelay,
		BackoffMultiplier:   cfg.Queue.BackoffMultiplier,
		ConfidenceThreshold: cfg.Extraction.ConfidenceThreshold,
		RetentionPeriod:     cfg.Queue.Retention(),
	}, slog.Default())

	eval := trigger.New(a.db, a.db, cfg.Trigger.MessageThreshold, slog.Default())
	listener := events.NewListener(eval, a.db, slog.Default())
	if err := listener.Start(ctx, natsClient); err != nil {
		return err
	}

	srv := api.NewServer(cfg.Port, agg, proc, slog.Default())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return proc.Run(gctx) })
	g.Go(func() error { return srv.Start(gctx) })

	slog.Info("mitr ready", "port", cfg.Port)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("mitr stopped")
	return nil
}
