package corpus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	xerrors "OpenMCP-Intent/internal/errors"
)

// Publisher 将新增语料推送给下游训练流程。
type Publisher interface {
	Publish(ctx context.Context, record Record) error
	Close() error
}

// MemoryPublisher 在内存中保留已发布的记录，用于测试与本地调试。
type MemoryPublisher struct {
	mu       sync.Mutex
	records  []Record
	failWith error
}

// NewMemoryPublisher 创建内存发布器。
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// FailWith 让后续 Publish 返回指定错误，nil 表示恢复正常。
func (m *MemoryPublisher) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

// Publish 实现 Publisher 接口。
func (m *MemoryPublisher) Publish(_ context.Context, record Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.records = append(m.records, cloneRecord(record))
	return nil
}

// Records 返回已发布记录的副本。
func (m *MemoryPublisher) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, cloneRecord(r))
	}
	return out
}

// Close 实现 Publisher 接口。
func (m *MemoryPublisher) Close() error { return nil }

// RabbitMQConfig 描述 RabbitMQ 发布参数。
type RabbitMQConfig struct {
	URL        string
	Queue      string
	Durable    bool
	AutoDelete bool
}

// RabbitMQPublisher 将语料以 JSON 消息投递到 RabbitMQ 队列。
type RabbitMQPublisher struct {
	mu    sync.Mutex
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

// NewRabbitMQPublisher 建立连接并声明队列。
func NewRabbitMQPublisher(cfg RabbitMQConfig) (*RabbitMQPublisher, error) {
	if cfg.URL == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "RabbitMQ URL 不能为空")
	}
	queue := cfg.Queue
	if queue == "" {
		queue = "openmcp.intent.corpus"
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeQueueFailure, err, "连接 RabbitMQ 失败")
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, xerrors.Wrap(xerrors.CodeQueueFailure, err, "创建 RabbitMQ channel 失败")
	}
	if _, err := ch.QueueDeclare(queue, cfg.Durable, cfg.AutoDelete, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, xerrors.Wrap(xerrors.CodeQueueFailure, err, "声明 RabbitMQ 队列失败")
	}
	return &RabbitMQPublisher{conn: conn, ch: ch, queue: queue}, nil
}

// Publish 实现 Publisher 接口。amqp channel 不支持并发发布，这里串行化。
func (p *RabbitMQPublisher) Publish(ctx context.Context, record Record) error {
	if p == nil || p.ch == nil {
		return xerrors.New(xerrors.CodeQueueFailure, "RabbitMQ 发布器未初始化")
	}
	body, err := encodeMessage(record)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    record.ID,
		Timestamp:    time.Unix(record.CreatedAt, 0),
		Type:         messageType(record),
		Body:         body,
	})
	if err != nil {
		if errors.Is(err, amqp.ErrClosed) {
			return xerrors.Wrap(xerrors.CodeQueueFailure, err, "RabbitMQ 连接已关闭")
		}
		return xerrors.Wrap(xerrors.CodeQueueFailure, err, fmt.Sprintf("投递语料 %s 失败", record.ID))
	}
	return nil
}

func encodeMessage(record Record) ([]byte, error) {
	body, err := json.Marshal(record)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeQueueFailure, err, "序列化语料消息失败")
	}
	return body, nil
}

func messageType(record Record) string {
	if record.Annotated() {
		return "prompt.annotated"
	}
	return "prompt.logged"
}

// Close 关闭 RabbitMQ 连接。
func (p *RabbitMQPublisher) Close() error {
	if p == nil {
		return nil
	}
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

var (
	_ Publisher = (*MemoryPublisher)(nil)
	_ Publisher = (*RabbitMQPublisher)(nil)
)
