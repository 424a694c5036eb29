package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"OpenMCP-Intent/internal/api"
	"OpenMCP-Intent/internal/config"
	"OpenMCP-Intent/internal/observability/metrics"
	"OpenMCP-Intent/pkg/logger"
)

// main 是意图解析守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("intentd 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(config.PathFromEnv())
	if err != nil {
		return err
	}

	if err := logger.Init(loggerConfig(cfg)); err != nil {
		return err
	}
	defer logger.Sync()
	appLog := logger.Named("intentd")

	if err := os.MkdirAll(cfg.Runtime.DataDir, 0o755); err != nil {
		return err
	}

	deps, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	appLog.Info("词表已加载",
		slog.Int("networks", len(deps.Catalog.Networks)),
		slog.Int("tokens", len(deps.Catalog.Tokens)),
		slog.String("cache", cfg.Cache.Driver),
		slog.String("corpus", cfg.Corpus.Driver),
		slog.String("feed", cfg.Feed.Driver),
	)

	server := api.NewServer(api.Options{
		Address:      cfg.Server.Address,
		Parser:       deps.Parser,
		Catalog:      deps.Catalog,
		Cache:        deps.Cache,
		Corpus:       deps.Corpus,
		Logger:       logger.Named("api"),
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		RateLimit: api.RateLimit{
			RequestsPerSecond: cfg.Server.RateLimit.RequestsPerSecond,
			Burst:             cfg.Server.RateLimit.Burst,
		},
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Start(gctx) })
	if cfg.Metrics.Enabled {
		g.Go(func() error { return metrics.StartServer(gctx, cfg.Metrics.Address) })
	}
	if cfg.Heartbeat.URL != "" {
		g.Go(func() error {
			return api.Heartbeat{
				URL:      cfg.Heartbeat.URL,
				Interval: cfg.Heartbeat.Interval(),
				Logger:   logger.Named("heartbeat"),
			}.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	appLog.Info("intentd 已退出")
	return nil
}

func loggerConfig(cfg *config.Config) logger.Config {
	return logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: cfg.Logging.Outputs,
		Audit: logger.AuditConfig{
			Enabled:    cfg.Logging.Audit.Enabled,
			Path:       cfg.Logging.Audit.Path,
			MaxSizeMB:  cfg.Logging.Audit.MaxSizeMB,
			MaxBackups: cfg.Logging.Audit.MaxBackups,
			MaxAgeDays: cfg.Logging.Audit.MaxAgeDays,
			Compress:   cfg.Logging.Audit.Compress,
		},
	}
}
