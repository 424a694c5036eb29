package cache

import (
	"context"

	"github.com/dgraph-io/ristretto/v2"

	xerrors "OpenMCP-Intent/internal/errors"
)

// MemoryConfig 描述进程内缓存的容量参数。
type MemoryConfig struct {
	Options
	// MaxBytes 为缓存内容的总字节上限。
	MaxBytes int64
}

// MemoryCache 基于 ristretto 的进程内缓存。
type MemoryCache struct {
	cache  *ristretto.Cache[string, []byte]
	prefix string
	opts   Options
}

const minCounters = 100

// NewMemoryCache 创建进程内缓存。
func NewMemoryCache(cfg MemoryConfig) (*MemoryCache, error) {
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 32 << 20
	}
	// 按每条约 1KB 估算计数器数量，官方建议为条目数的 10 倍；容量很小时保留下限。
	counters := max(maxBytes/1024*10, minCounters)
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: counters,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeCacheFailure, err, "初始化内存缓存失败")
	}
	return &MemoryCache{cache: c, prefix: cfg.prefix(), opts: cfg.Options}, nil
}

// Get 实现 Cache 接口。
func (m *MemoryCache) Get(_ context.Context, prompt string) ([]byte, bool, error) {
	value, ok := m.cache.Get(Key(m.prefix, prompt))
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

// Set 实现 Cache 接口。写入是异步的，ristretto 可能因准入策略丢弃条目。
func (m *MemoryCache) Set(_ context.Context, prompt string, value []byte) error {
	stored := append([]byte(nil), value...)
	key := Key(m.prefix, prompt)
	cost := int64(len(stored))
	if m.opts.TTL > 0 {
		m.cache.SetWithTTL(key, stored, cost, m.opts.TTL)
	} else {
		m.cache.Set(key, stored, cost)
	}
	return nil
}

// Wait 阻塞直到此前的写入全部生效，主要用于测试。
func (m *MemoryCache) Wait() {
	m.cache.Wait()
}

// Close 释放后台协程。
func (m *MemoryCache) Close() error {
	m.cache.Close()
	return nil
}

var _ Cache = (*MemoryCache)(nil)
