package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "intent.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	base := filepath.Dir(path)

	if cfg.Server.Address != ":5000" || cfg.Server.MaxBodyBytes != 1<<20 {
		t.Fatalf("unexpected server defaults: %+v", cfg.Server)
	}
	if cfg.Cache.Driver != "memory" || cfg.Cache.TTL() != 10*time.Minute {
		t.Fatalf("unexpected cache defaults: %+v", cfg.Cache)
	}
	if cfg.Corpus.Driver != "file" || cfg.Corpus.FilePath != filepath.Join(base, "data", "train_data.json") {
		t.Fatalf("unexpected corpus defaults: %+v", cfg.Corpus)
	}
	if cfg.Feed.Driver != "none" {
		t.Fatalf("unexpected feed driver %q", cfg.Feed.Driver)
	}
	if cfg.Runtime.DataDir != filepath.Join(base, "data") {
		t.Fatalf("unexpected data dir %q", cfg.Runtime.DataDir)
	}
	if cfg.Heartbeat.IntervalSeconds != 0 {
		t.Fatalf("heartbeat must stay disabled without url")
	}
}

func TestLoadResolvesRelativePaths(t *testing.T) {
	path := writeConfig(t, `{
		"parser": {"vocabulary_file": "vocabulary.yaml"},
		"runtime": {"data_dir": "state"},
		"logging": {"audit": {"enabled": true}},
		"heartbeat": {"url": "http://monitor.local/ping"}
	}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	base := filepath.Dir(path)
	if cfg.Parser.VocabularyFile != filepath.Join(base, "vocabulary.yaml") {
		t.Fatalf("unexpected vocabulary path %q", cfg.Parser.VocabularyFile)
	}
	if cfg.Logging.Audit.Path != filepath.Join(base, "state", "audit.log") {
		t.Fatalf("unexpected audit path %q", cfg.Logging.Audit.Path)
	}
	if cfg.Heartbeat.Interval() != time.Minute {
		t.Fatalf("unexpected heartbeat interval %v", cfg.Heartbeat.Interval())
	}
}

func TestLoadRejectsInvalidDrivers(t *testing.T) {
	cases := map[string]string{
		"cache":      `{"cache": {"driver": "memcached"}}`,
		"redis addr": `{"cache": {"driver": "redis"}}`,
		"corpus":     `{"corpus": {"driver": "sqlite"}}`,
		"mysql dsn":  `{"corpus": {"driver": "mysql"}}`,
		"feed":       `{"feed": {"driver": "kafka"}}`,
		"rabbitmq":   `{"feed": {"driver": "rabbitmq"}}`,
		"rate limit": `{"server": {"rate_limit": {"requests_per_second": -1}}}`,
		"bad json":   `{"server": `,
		"alerting":   `{"alerting": {"format": "email"}}`,
	}
	for name, content := range cases {
		if _, err := Load(writeConfig(t, content)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadEmptyPath(t *testing.T) {
	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "路径为空") {
		t.Fatalf("expected empty path error, got %v", err)
	}
}

func TestRateLimitBurstDefault(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{"server": {"rate_limit": {"requests_per_second": 0.5}}}`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.RateLimit.Burst != 1 {
		t.Fatalf("expected burst 1, got %d", cfg.Server.RateLimit.Burst)
	}
}

func TestPathFromEnv(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	if got := PathFromEnv(); got != DefaultPath {
		t.Fatalf("expected default path, got %q", got)
	}
	t.Setenv(EnvConfigPath, "/etc/intent.json")
	if got := PathFromEnv(); got != "/etc/intent.json" {
		t.Fatalf("unexpected path %q", got)
	}
}
