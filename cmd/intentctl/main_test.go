package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestParseCommand(t *testing.T) {
	out, err := execute(t, "parse", "Swap", "0.75", "USDC", "to", "ETH", "on", "Ethereum", "mainnet")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var decoded struct {
		Intent     string         `json:"intent"`
		Parameters map[string]any `json:"parameters"`
	}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if decoded.Intent != "Swap" || decoded.Parameters["token2"] != "ETH" {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestParseExplain(t *testing.T) {
	out, err := execute(t, "parse", "--explain", "Send 1 ETH to Ann, bridge it, check balance")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	for _, want := range []string{"clauses: 3", "Transfer", "dropped", "Query", `"intent": "Multi"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("explain output missing %q:\n%s", want, out)
		}
	}
}

func TestCatalogCommand(t *testing.T) {
	out, err := execute(t, "catalog")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	if !strings.Contains(out, "chain_id=42161") || !strings.Contains(out, "USDC") {
		t.Fatalf("unexpected catalog output:\n%s", out)
	}

	if out, err := execute(t, "catalog", "--network", "op-mainnet"); err != nil || strings.TrimSpace(out) != "10" {
		t.Fatalf("unexpected chain id output %q (%v)", out, err)
	}
	if out, err := execute(t, "catalog", "--token", "USDC"); err != nil || !strings.Contains(out, "decimals=6") {
		t.Fatalf("unexpected token output %q (%v)", out, err)
	}
	if _, err := execute(t, "catalog", "--network", "Solana"); err == nil {
		t.Fatalf("expected unknown network error")
	}
	if out, err := execute(t, "catalog", "--verify"); err != nil || !strings.Contains(out, "no network has an rpc_url") {
		t.Fatalf("unexpected verify output %q (%v)", out, err)
	}
	out, err = execute(t, "catalog", "--address", "0x52908400098527886e0f7030069857d2e4169ee7")
	if err != nil || strings.TrimSpace(out) != "0x52908400098527886E0F7030069857D2E4169EE7" {
		t.Fatalf("unexpected address output %q (%v)", out, err)
	}
}

func TestEvalCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train_data.json")
	data := `[
		{"prompt": "Send 200 ETH to Sophie on Base", "entities": [{"start": 5, "end": 8, "label": "AMOUNT"}, {"start": 9, "end": 12, "label": "TOKEN"}], "intent": "Transfer"},
		{"prompt": "Check balance", "entities": [{"start": 6, "end": 13, "label": "QUERY_TYPE"}], "intent": "Query"},
		{"prompt": "Hello there", "entities": [], "intent": "Transfer"},
		{"prompt": "log only", "entities": [], "intent": null}
	]`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write corpus: %v", err)
	}

	out, err := execute(t, "eval", "--corpus", path, "--workers", "2")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if !strings.Contains(out, "annotated records: 3") || !strings.Contains(out, `mismatch: "Hello there" expected=Transfer got=none`) {
		t.Fatalf("unexpected report:\n%s", out)
	}

	if _, err := execute(t, "eval", "--corpus", path, "--min-accuracy", "0.9"); err == nil {
		t.Fatalf("expected threshold failure")
	}
	if _, err := execute(t, "eval"); err == nil {
		t.Fatalf("expected missing corpus error")
	}
}
