package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Heartbeat 周期性请求外部监控地址，告知该实例仍在运行。
type Heartbeat struct {
	URL      string
	Interval time.Duration
	Client   *http.Client
	Logger   *slog.Logger
}

// Run 阻塞执行心跳，直到上下文取消。单次失败只记录日志。
func (h Heartbeat) Run(ctx context.Context) error {
	if h.URL == "" {
		return nil
	}
	interval := h.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	client := h.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	log := h.Logger
	if log == nil {
		log = slog.Default()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		h.beat(ctx, client, log)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (h Heartbeat) beat(ctx context.Context, client *http.Client, log *slog.Logger) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		log.Warn("构造心跳请求失败", slog.Any("error", err))
		return
	}
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn("心跳请求失败", slog.String("url", h.URL), slog.Any("error", err))
		}
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		log.Warn("心跳返回异常状态", slog.String("url", h.URL), slog.Int("status", resp.StatusCode))
		return
	}
	log.Debug("心跳成功", slog.String("url", h.URL))
}
