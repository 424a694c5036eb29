package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	xerrors "OpenMCP-Intent/internal/errors"
)

// RedisConfig 描述 Redis 缓存的连接参数。
type RedisConfig struct {
	Options
	Address  string
	Password string
	DB       int
}

// RedisCache 使用 Redis 字符串键缓存解析结果，多实例部署时共享。
type RedisCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisCache 创建 Redis 缓存并检查连通性。
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "Redis address 不能为空")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, xerrors.Wrap(xerrors.CodeCacheFailure, err, "连接 Redis 失败")
	}
	return NewRedisCacheWithClient(client, cfg.Options), nil
}

// NewRedisCacheWithClient 复用已有的 Redis 客户端。
func NewRedisCacheWithClient(client redis.UniversalClient, opts Options) *RedisCache {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisCache{client: client, prefix: opts.prefix(), ttl: ttl}
}

// Get 实现 Cache 接口，redis.Nil 视为未命中。
func (r *RedisCache) Get(ctx context.Context, prompt string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, Key(r.prefix, prompt)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, xerrors.Wrap(xerrors.CodeCacheFailure, err, "读取 Redis 缓存失败")
	}
	return value, true, nil
}

// Set 实现 Cache 接口。
func (r *RedisCache) Set(ctx context.Context, prompt string, value []byte) error {
	if err := r.client.Set(ctx, Key(r.prefix, prompt), value, r.ttl).Err(); err != nil {
		return xerrors.Wrap(xerrors.CodeCacheFailure, err, "写入 Redis 缓存失败")
	}
	return nil
}

// Close 关闭 Redis 连接。
func (r *RedisCache) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

var _ Cache = (*RedisCache)(nil)
