package chain

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultCatalog(t *testing.T) {
	catalog := Default()
	if diff := cmp.Diff([]string{"ETH", "WETH", "USDC", "USDT"}, catalog.Symbols()); diff != "" {
		t.Fatalf("unexpected symbols (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Ethereum", "Optimism", "Arbitrum", "Base"}, catalog.NetworkNames()); diff != "" {
		t.Fatalf("unexpected networks (-want +got):\n%s", diff)
	}
	if id, ok := catalog.ChainID("base"); !ok || id != 8453 {
		t.Fatalf("expected Base chain id 8453, got %d (%v)", id, ok)
	}
	if id, ok := catalog.ChainID("mainnet"); !ok || id != 1 {
		t.Fatalf("expected alias to resolve to 1, got %d (%v)", id, ok)
	}
	if _, ok := catalog.ChainID("Solana"); ok {
		t.Fatalf("unexpected chain id for unknown network")
	}
	if tok, ok := catalog.Token("USDC"); !ok || tok.Decimals != 6 {
		t.Fatalf("unexpected USDC metadata: %+v", tok)
	}
}

func TestLoadCatalogFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocabulary.yaml")
	content := "networks:\n  - name: Polygon\n    chain_id: 137\ntokens:\n  - symbol: MATIC\n    decimals: 18\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	catalog, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	if diff := cmp.Diff([]string{"MATIC"}, catalog.Symbols()); diff != "" {
		t.Fatalf("unexpected symbols (-want +got):\n%s", diff)
	}
	if id, _ := catalog.ChainID("Polygon"); id != 137 {
		t.Fatalf("unexpected chain id %d", id)
	}
}

func TestLoadCatalogEmptyPathUsesDefault(t *testing.T) {
	catalog, err := LoadCatalog("  ")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	if len(catalog.Tokens) != 4 {
		t.Fatalf("expected default catalog, got %+v", catalog)
	}
}

func TestLoadCatalogRejectsDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocabulary.yaml")
	content := "networks:\n  - name: ETH\n    chain_id: 1\ntokens:\n  - symbol: ETH\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	_, err := LoadCatalog(path)
	if err == nil || !strings.Contains(err.Error(), "重复") {
		t.Fatalf("expected duplicate name error, got %v", err)
	}
}

func TestLoadCatalogMissingFile(t *testing.T) {
	if _, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestIsAddress(t *testing.T) {
	cases := map[string]bool{
		"0x1234567890abcdef1234567890abcdef12345678":  true,
		"0xABCDEF7890abcdef1234567890abcdef12345678":  true,
		"1234567890abcdef1234567890abcdef12345678":    false,
		"0x1234567890abcdef1234567890abcdef1234567":   false,
		"0x1234567890abcdef1234567890abcdef123456789": false,
		"0xZZ34567890abcdef1234567890abcdef12345678":  false,
		"0X1234567890abcdef1234567890abcdef12345678":  false,
	}
	for text, want := range cases {
		if got := IsAddress(text); got != want {
			t.Fatalf("IsAddress(%q) = %v, want %v", text, got, want)
		}
	}
}

func TestNormalizeAddress(t *testing.T) {
	got := NormalizeAddress("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	if got != "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed" {
		t.Fatalf("unexpected checksum form %q", got)
	}
	if NormalizeAddress("Sophie") != "Sophie" {
		t.Fatalf("non-address text must be returned unchanged")
	}
}
