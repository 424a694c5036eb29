package corpus

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	xerrors "OpenMCP-Intent/internal/errors"
	"OpenMCP-Intent/internal/observability/alerting"
	"OpenMCP-Intent/pkg/logger"
)

// Service 负责语料的校验、落盘与推送。
type Service struct {
	store     Store
	publisher Publisher
	alerts    alerting.Dispatcher
	log       *slog.Logger
	audit     *slog.Logger
	now       func() time.Time
	newID     func() string
}

// ServiceOption 调整 Service 行为。
type ServiceOption func(*Service)

// WithPublisher 设置语料推送器。
func WithPublisher(p Publisher) ServiceOption {
	return func(s *Service) { s.publisher = p }
}

// WithAlerts 设置告警分发器，存储或推送失败时通知运维。
func WithAlerts(d alerting.Dispatcher) ServiceOption {
	return func(s *Service) { s.alerts = d }
}

// WithClock 替换时间来源，便于测试。
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator 替换记录 ID 生成方式。
func WithIDGenerator(fn func() string) ServiceOption {
	return func(s *Service) { s.newID = fn }
}

// WithLogger 设置运行日志实例，不影响审计日志。
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.log = l }
}

// WithAuditLogger 替换审计日志，默认使用 logger.Audit()。
func WithAuditLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.audit = l }
}

// NewService 创建语料服务。
func NewService(store Store, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "语料存储未配置")
	}
	svc := &Service{
		store: store,
		log:   logger.Named("corpus"),
		audit: logger.Audit(),
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

// LogPrompt 记录一条未标注的原始指令。
func (s *Service) LogPrompt(ctx context.Context, prompt string) (Record, error) {
	record := Record{Prompt: prompt, Entities: []Entity{}}
	return s.append(ctx, record)
}

// Annotate 校验并记录一条带标注的指令。
func (s *Service) Annotate(ctx context.Context, record Record) (Record, error) {
	if record.Entities == nil {
		record.Entities = []Entity{}
	}
	record.ID = ""
	return s.append(ctx, record)
}

func (s *Service) append(ctx context.Context, record Record) (Record, error) {
	if err := record.Validate(); err != nil {
		return Record{}, err
	}
	record.ID = s.newID()
	record.CreatedAt = s.now().Unix()

	if err := s.store.Append(ctx, record); err != nil {
		s.alert(ctx, err)
		return Record{}, err
	}
	s.audit.Info("corpus record stored",
		slog.String("id", record.ID),
		slog.Bool("annotated", record.Annotated()),
		slog.Int("entities", len(record.Entities)),
	)

	// 推送失败不影响落盘结果，训练流程可从存储中补齐。
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, record); err != nil {
			s.log.Warn("publish corpus record failed",
				slog.String("id", record.ID),
				slog.String("code", string(xerrors.CodeOf(err))),
				slog.Any("error", err),
			)
			s.alert(ctx, err)
		}
	}
	return record, nil
}

func (s *Service) alert(ctx context.Context, err error) {
	if s.alerts == nil {
		return
	}
	if nerr := s.alerts.Notify(ctx, alerting.NewEvent("corpus", err)); nerr != nil {
		s.log.Warn("send alert failed", slog.Any("error", nerr))
	}
}

// List 返回语料列表。
func (s *Service) List(ctx context.Context, opts ...ListOption) ([]Record, error) {
	return s.store.List(ctx, opts...)
}

// Ping 检查存储是否可用。不支持探活的存储视为可用。
func (s *Service) Ping(ctx context.Context) error {
	if p, ok := s.store.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}
