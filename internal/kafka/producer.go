package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/chatrag/backend-go/internal/logger"
	"go.uber.org/zap"
)

// Producer 检索审计事件生产者
type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

// RetrievalAuditEvent 一次检索的审计事件
// UserQuery与RewriteQuery都保留：检索实际用的是后者，前者用于追溯
type RetrievalAuditEvent struct {
	TenantID     string    `json:"tenant_id"`
	MessageID    string    `json:"message_id"`
	UserQuery    string    `json:"user_query"`
	RewriteQuery string    `json:"rewrite_query,omitempty"`
	QueryID      string    `json:"query_id"`
	ChunkCount   int       `json:"chunk_count"`
	Timestamp    time.Time `json:"timestamp"`
}

var globalProducer *Producer

// InitProducer 初始化Kafka生产者
func InitProducer(brokers []string, topic string) error {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Timeout = 10 * time.Second

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return fmt.Errorf("create kafka producer: %w", err)
	}

	globalProducer = &Producer{
		producer: producer,
		topic:    topic,
	}

	logger.Info("kafka producer initialized",
		zap.Strings("brokers", brokers),
		zap.String("topic", topic))
	return nil
}

// GetProducer 获取全局生产者实例，未初始化时为nil
func GetProducer() *Producer {
	return globalProducer
}

// SendAuditEvent 发送检索审计事件
// 审计失败只记录日志，调用方不把它当作检索失败
func (p *Producer) SendAuditEvent(event *RetrievalAuditEvent) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka producer not initialized")
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.TenantID),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("tenant_id"), Value: []byte(event.TenantID)},
			{Key: []byte("message_id"), Value: []byte(event.MessageID)},
		},
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		logger.Error("send audit event failed", zap.Error(err))
		return fmt.Errorf("send audit event: %w", err)
	}

	logger.Debug("audit event sent",
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
		zap.String("message_id", event.MessageID))
	return nil
}

// Close 关闭生产者
func (p *Producer) Close() error {
	if p != nil && p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
