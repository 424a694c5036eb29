package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	xerrors "OpenMCP-Intent/internal/errors"
)

func TestKeyIsStableAndPrefixed(t *testing.T) {
	a := Key(DefaultPrefix, "Send 200 ETH to Sophie on Base")
	b := Key(DefaultPrefix, "Send 200 ETH to Sophie on Base")
	if a != b {
		t.Fatalf("key must be deterministic: %s vs %s", a, b)
	}
	if !strings.HasPrefix(a, DefaultPrefix+"0x") || len(a) != len(DefaultPrefix)+66 {
		t.Fatalf("unexpected key format %q", a)
	}
	if a == Key(DefaultPrefix, "Send 200 ETH to Sophie on base") {
		t.Fatalf("different prompts must not collide")
	}
}

func TestFingerprintDependsOnVocabulary(t *testing.T) {
	a := Fingerprint([]string{"ETH", "USDC"}, []string{"Base"})
	b := Fingerprint([]string{"ETH"}, []string{"USDC", "Base"})
	if a == b {
		t.Fatalf("group boundaries must affect fingerprint")
	}
	if len(a) != 8 {
		t.Fatalf("unexpected fingerprint length %d", len(a))
	}
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	c, err := NewMemoryCache(MemoryConfig{MaxBytes: 1 << 20})
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	if _, ok, err := c.Get(ctx, "check balance"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	payload := []byte(`{"status":"success"}`)
	if err := c.Set(ctx, "check balance", payload); err != nil {
		t.Fatalf("set: %v", err)
	}
	c.Wait()
	payload[0] = 'X'

	got, ok, err := c.Get(ctx, "check balance")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if string(got) != `{"status":"success"}` {
		t.Fatalf("cached value must be copied, got %s", got)
	}
}

func TestMemoryCacheWithTinyBudget(t *testing.T) {
	c, err := NewMemoryCache(MemoryConfig{MaxBytes: 512})
	if err != nil {
		t.Fatalf("small budgets must still build a cache: %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	if err := c.Set(ctx, "check balance", []byte(`{"status":"success"}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	c.Wait()
	if _, ok, err := c.Get(ctx, "check balance"); err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
}

func TestMemoryCacheTTL(t *testing.T) {
	c, err := NewMemoryCache(MemoryConfig{Options: Options{TTL: time.Hour}})
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	if err := c.Set(ctx, "swap", []byte("v")); err != nil {
		t.Fatalf("set: %v", err)
	}
	c.Wait()
	if _, ok, _ := c.Get(ctx, "swap"); !ok {
		t.Fatalf("expected entry within TTL")
	}
}

func TestNopCache(t *testing.T) {
	var c Cache = Nop{}
	if err := c.Set(context.Background(), "a", []byte("b")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok, _ := c.Get(context.Background(), "a"); ok {
		t.Fatalf("nop cache never hits")
	}
}

func TestNewRedisCacheRequiresAddress(t *testing.T) {
	_, err := NewRedisCache(context.Background(), RedisConfig{})
	if xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected INVALID_ARGUMENT, got %v", err)
	}
}
