package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// EnvConfigPath 指定配置文件路径的环境变量。
const EnvConfigPath = "OPENMCP_INTENT_CONFIG"

// DefaultPath 是未设置环境变量时使用的配置文件路径。
var DefaultPath = filepath.Join("configs", "intent.json")

// Config 描述了意图解析服务在启动阶段需要加载的核心配置。
type Config struct {
	Server    ServerConfig    `json:"server"`
	Metrics   MetricsConfig   `json:"metrics"`
	Parser    ParserConfig    `json:"parser"`
	Cache     CacheConfig     `json:"cache"`
	Corpus    CorpusConfig    `json:"corpus"`
	Feed      FeedConfig      `json:"feed"`
	Heartbeat HeartbeatConfig `json:"heartbeat"`
	Alerting  AlertingConfig  `json:"alerting"`
	Logging   LoggingConfig   `json:"logging"`
	Runtime   RuntimeConfig   `json:"runtime"`
}

// ServerConfig 控制 API 服务的监听地址等参数。
type ServerConfig struct {
	Address      string          `json:"address"`
	MaxBodyBytes int64           `json:"max_body_bytes"`
	RateLimit    RateLimitConfig `json:"rate_limit"`
}

// RateLimitConfig 为令牌桶限流参数，RequestsPerSecond 为 0 表示不限流。
type RateLimitConfig struct {
	RequestsPerSecond float64 `json:"requests_per_second"`
	Burst             int     `json:"burst"`
}

// MetricsConfig 控制 Prometheus 指标的独立监听端口。
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Address string `json:"address"`
}

// ParserConfig 指定词表来源。
type ParserConfig struct {
	// VocabularyFile 为链目录 YAML，留空时使用内置目录。
	VocabularyFile string `json:"vocabulary_file"`
}

// CacheConfig 描述解析结果缓存。
type CacheConfig struct {
	Driver     string      `json:"driver"`
	TTLSeconds int         `json:"ttl_seconds"`
	MaxBytes   int64       `json:"max_bytes"`
	Prefix     string      `json:"prefix"`
	Redis      RedisConfig `json:"redis"`
}

// TTL 返回缓存有效期。
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// RedisConfig 描述 Redis 连接信息。
type RedisConfig struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// CorpusConfig 描述训练语料的存储方式。
type CorpusConfig struct {
	Driver                 string `json:"driver"`
	FilePath               string `json:"file_path"`
	DSN                    string `json:"dsn"`
	MaxOpenConns           int    `json:"max_open_conns"`
	MaxIdleConns           int    `json:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `json:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int    `json:"conn_max_idle_time_seconds"`
}

// FeedConfig 控制新语料是否转发到训练流水线。
type FeedConfig struct {
	Driver   string         `json:"driver"`
	RabbitMQ RabbitMQConfig `json:"rabbitmq"`
}

// RabbitMQConfig 描述消息队列连接信息。
type RabbitMQConfig struct {
	URL        string `json:"url"`
	Queue      string `json:"queue"`
	Durable    bool   `json:"durable"`
	AutoDelete bool   `json:"auto_delete"`
}

// HeartbeatConfig 配置对外部监控地址的周期性探活，URL 为空时关闭。
type HeartbeatConfig struct {
	URL             string `json:"url"`
	IntervalSeconds int    `json:"interval_seconds"`
}

// Interval 返回心跳间隔。
func (h HeartbeatConfig) Interval() time.Duration {
	return time.Duration(h.IntervalSeconds) * time.Second
}

// AlertingConfig 配置告警回调，WebhookURL 为空时告警只写入日志。
type AlertingConfig struct {
	WebhookURL string `json:"webhook_url"`
	// Format 取值 slack、dingtalk 或留空（直接投递事件 JSON）。
	Format string `json:"format"`
}

// LoggingConfig 对应 pkg/logger 的配置。
type LoggingConfig struct {
	Level   string      `json:"level"`
	Format  string      `json:"format"`
	Outputs []string    `json:"outputs"`
	Audit   AuditConfig `json:"audit"`
}

// AuditConfig 控制审计日志的滚动策略。
type AuditConfig struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
	Compress   bool   `json:"compress"`
}

// RuntimeConfig 用于放置运行时的通用参数。
type RuntimeConfig struct {
	DataDir string `json:"data_dir"`
}

// PathFromEnv 返回环境变量指定的配置路径，未设置时返回默认路径。
func PathFromEnv() string {
	if path := strings.TrimSpace(os.Getenv(EnvConfigPath)); path != "" {
		return path
	}
	return DefaultPath
}

// Load 负责解析指定路径的 JSON 配置文件。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开配置文件失败: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default 返回全部取默认值的配置，相对路径以 baseDir 为基准。
func Default(baseDir string) *Config {
	var cfg Config
	cfg.applyDefaults(baseDir)
	return &cfg
}

// Validate 检查驱动名称等枚举字段。
func (c *Config) Validate() error {
	switch c.Cache.Driver {
	case "none", "memory":
	case "redis":
		if c.Cache.Redis.Address == "" {
			return errors.New("cache.redis.address 不能为空")
		}
	default:
		return fmt.Errorf("未知的缓存驱动: %s", c.Cache.Driver)
	}

	switch c.Corpus.Driver {
	case "file":
	case "mysql":
		if c.Corpus.DSN == "" {
			return errors.New("corpus.dsn 不能为空")
		}
	default:
		return fmt.Errorf("未知的语料存储驱动: %s", c.Corpus.Driver)
	}

	switch c.Feed.Driver {
	case "none":
	case "rabbitmq":
		if c.Feed.RabbitMQ.URL == "" {
			return errors.New("feed.rabbitmq.url 不能为空")
		}
	default:
		return fmt.Errorf("未知的语料转发驱动: %s", c.Feed.Driver)
	}

	switch c.Alerting.Format {
	case "", "slack", "dingtalk":
	default:
		return fmt.Errorf("未知的告警格式: %s", c.Alerting.Format)
	}

	if c.Server.RateLimit.RequestsPerSecond < 0 {
		return errors.New("server.rate_limit.requests_per_second 不能为负数")
	}
	return nil
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":5000"
	}
	if c.Server.MaxBodyBytes <= 0 {
		c.Server.MaxBodyBytes = 1 << 20
	}
	if c.Server.RateLimit.RequestsPerSecond > 0 && c.Server.RateLimit.Burst <= 0 {
		c.Server.RateLimit.Burst = int(c.Server.RateLimit.RequestsPerSecond)
		if c.Server.RateLimit.Burst < 1 {
			c.Server.RateLimit.Burst = 1
		}
	}

	if c.Metrics.Address == "" {
		c.Metrics.Address = ":9090"
	}

	c.Parser.VocabularyFile = resolve(baseDir, c.Parser.VocabularyFile)

	c.Cache.Driver = strings.ToLower(strings.TrimSpace(c.Cache.Driver))
	if c.Cache.Driver == "" {
		c.Cache.Driver = "memory"
	}
	if c.Cache.TTLSeconds <= 0 {
		c.Cache.TTLSeconds = 600
	}

	if c.Runtime.DataDir == "" {
		c.Runtime.DataDir = filepath.Join(baseDir, "data")
	} else {
		c.Runtime.DataDir = resolve(baseDir, c.Runtime.DataDir)
	}

	c.Corpus.Driver = strings.ToLower(strings.TrimSpace(c.Corpus.Driver))
	if c.Corpus.Driver == "" {
		c.Corpus.Driver = "file"
	}
	if c.Corpus.FilePath == "" {
		c.Corpus.FilePath = filepath.Join(c.Runtime.DataDir, "train_data.json")
	} else {
		c.Corpus.FilePath = resolve(baseDir, c.Corpus.FilePath)
	}

	c.Feed.Driver = strings.ToLower(strings.TrimSpace(c.Feed.Driver))
	if c.Feed.Driver == "" {
		c.Feed.Driver = "none"
	}

	c.Alerting.Format = strings.ToLower(strings.TrimSpace(c.Alerting.Format))

	if c.Heartbeat.URL != "" && c.Heartbeat.IntervalSeconds <= 0 {
		c.Heartbeat.IntervalSeconds = 60
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Audit.Enabled && c.Logging.Audit.Path == "" {
		c.Logging.Audit.Path = filepath.Join(c.Runtime.DataDir, "audit.log")
	} else if c.Logging.Audit.Path != "" {
		c.Logging.Audit.Path = resolve(baseDir, c.Logging.Audit.Path)
	}
}

// resolve 将相对路径转换为以配置文件目录为基准的路径。
func resolve(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
