package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"OpenMCP-Intent/internal/cache"
	"OpenMCP-Intent/internal/chain"
	"OpenMCP-Intent/internal/config"
	"OpenMCP-Intent/internal/corpus"
	"OpenMCP-Intent/internal/intent"
	"OpenMCP-Intent/internal/observability/alerting"
	"OpenMCP-Intent/pkg/logger"
)

// dependencies 汇总守护进程运行所需的组件，Close 按创建的逆序释放。
type dependencies struct {
	Catalog chain.Catalog
	Parser  *intent.Parser
	Cache   cache.Cache
	Corpus  *corpus.Service

	closers []func() error
}

func (d *dependencies) Close() error {
	var err error
	for i := len(d.closers) - 1; i >= 0; i-- {
		err = errors.Join(err, d.closers[i]())
	}
	d.closers = nil
	return err
}

func build(ctx context.Context, cfg *config.Config) (deps *dependencies, err error) {
	deps = &dependencies{}
	defer func() {
		if err != nil {
			_ = deps.Close()
			deps = nil
		}
	}()

	deps.Catalog, err = chain.LoadCatalog(cfg.Parser.VocabularyFile)
	if err != nil {
		return deps, err
	}
	table := intent.NewTable(intent.VocabularyFromCatalog(deps.Catalog))
	deps.Parser = intent.New(intent.Options{Table: table})

	if deps.Cache, err = buildCache(ctx, cfg, deps.Parser.Table().Vocabulary()); err != nil {
		return deps, err
	}
	deps.closers = append(deps.closers, deps.Cache.Close)

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return deps, err
	}
	deps.closers = append(deps.closers, store.Close)

	opts := []corpus.ServiceOption{
		corpus.WithLogger(logger.Named("corpus")),
		corpus.WithAlerts(buildAlerts(cfg)),
	}
	publisher, err := buildPublisher(cfg)
	if err != nil {
		return deps, err
	}
	if publisher != nil {
		deps.closers = append(deps.closers, publisher.Close)
		opts = append(opts, corpus.WithPublisher(publisher))
	}

	deps.Corpus, err = corpus.NewService(store, opts...)
	return deps, err
}

// buildCache 的键前缀带有词表摘要，词表变化后旧的解析结果自然失效。
func buildCache(ctx context.Context, cfg *config.Config, vocab intent.Vocabulary) (cache.Cache, error) {
	prefix := cfg.Cache.Prefix
	if prefix == "" {
		prefix = cache.DefaultPrefix
	}
	opts := cache.Options{
		Prefix: prefix + cache.Fingerprint(vocab.Symbols, vocab.Networks) + ":",
		TTL:    cfg.Cache.TTL(),
	}

	switch cfg.Cache.Driver {
	case "none":
		return cache.Nop{}, nil
	case "memory":
		return cache.NewMemoryCache(cache.MemoryConfig{Options: opts, MaxBytes: cfg.Cache.MaxBytes})
	case "redis":
		return cache.NewRedisCache(ctx, cache.RedisConfig{
			Options:  opts,
			Address:  cfg.Cache.Redis.Address,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
	default:
		return nil, fmt.Errorf("未知的缓存驱动: %s", cfg.Cache.Driver)
	}
}

func buildStore(ctx context.Context, cfg *config.Config) (corpus.Store, error) {
	switch cfg.Corpus.Driver {
	case "file":
		if err := os.MkdirAll(filepath.Dir(cfg.Corpus.FilePath), 0o755); err != nil {
			return nil, err
		}
		return corpus.OpenFileStore(cfg.Corpus.FilePath)
	case "mysql":
		return corpus.NewMySQLStore(ctx, corpus.MySQLConfig{
			DSN:             cfg.Corpus.DSN,
			MaxOpenConns:    cfg.Corpus.MaxOpenConns,
			MaxIdleConns:    cfg.Corpus.MaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.Corpus.ConnMaxLifetimeSeconds) * time.Second,
			ConnMaxIdleTime: time.Duration(cfg.Corpus.ConnMaxIdleTimeSeconds) * time.Second,
		})
	default:
		return nil, fmt.Errorf("未知的语料存储驱动: %s", cfg.Corpus.Driver)
	}
}

func buildPublisher(cfg *config.Config) (corpus.Publisher, error) {
	switch cfg.Feed.Driver {
	case "none":
		return nil, nil
	case "rabbitmq":
		return corpus.NewRabbitMQPublisher(corpus.RabbitMQConfig{
			URL:        cfg.Feed.RabbitMQ.URL,
			Queue:      cfg.Feed.RabbitMQ.Queue,
			Durable:    cfg.Feed.RabbitMQ.Durable,
			AutoDelete: cfg.Feed.RabbitMQ.AutoDelete,
		})
	default:
		return nil, fmt.Errorf("未知的语料转发驱动: %s", cfg.Feed.Driver)
	}
}

func buildAlerts(cfg *config.Config) *alerting.FanoutDispatcher {
	notifiers := []alerting.Notifier{&alerting.LogNotifier{Logger: logger.Named("alert")}}
	if cfg.Alerting.WebhookURL != "" {
		notifiers = append(notifiers, &alerting.WebhookNotifier{
			URL:    cfg.Alerting.WebhookURL,
			Format: alerting.Channel(cfg.Alerting.Format),
		})
	}
	return alerting.NewFanout(notifiers...)
}
