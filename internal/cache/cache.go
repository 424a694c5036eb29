package cache

import (
	"context"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
)

// DefaultPrefix 是缓存键的默认前缀。
const DefaultPrefix = "openmcp:intent:"

// Cache 定义解析结果缓存能力。
type Cache interface {
	// Get 返回缓存内容，未命中时第二个返回值为 false。
	Get(ctx context.Context, prompt string) ([]byte, bool, error)
	Set(ctx context.Context, prompt string, value []byte) error
	Close() error
}

// Options 为各实现共享的参数。
type Options struct {
	Prefix string
	TTL    time.Duration
}

func (o Options) prefix() string {
	if strings.TrimSpace(o.Prefix) == "" {
		return DefaultPrefix
	}
	return o.Prefix
}

// Key 以 keccak256(prompt) 派生缓存键，避免原始文本进入键空间。
func Key(prefix, prompt string) string {
	return prefix + crypto.Keccak256Hash([]byte(prompt)).Hex()
}

// Fingerprint 为词表生成短摘要，用于区分不同词表下的缓存。
func Fingerprint(parts ...[]string) string {
	var b strings.Builder
	for _, group := range parts {
		b.WriteString(strings.Join(group, ","))
		b.WriteByte(';')
	}
	return crypto.Keccak256Hash([]byte(b.String())).Hex()[2:10]
}

// Nop 是关闭缓存时使用的空实现。
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (Nop) Set(context.Context, string, []byte) error          { return nil }
func (Nop) Close() error                                       { return nil }

var _ Cache = Nop{}
