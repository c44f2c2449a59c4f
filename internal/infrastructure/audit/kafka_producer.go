// Package audit implements the AuditService interface and blacklist replication publishing.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/tenantjwt/internal/config"
	"github.com/turtacn/tenantjwt/internal/domain/models"
	"github.com/turtacn/tenantjwt/internal/domain/service"
	"github.com/turtacn/tenantjwt/pkg/logger"
)

// MessageWriter is the subset of kafka.Writer the producer uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var (
	_ service.AuditService       = (*KafkaProducer)(nil)
	_ service.BlacklistPublisher = (*KafkaProducer)(nil)
)

// KafkaProducer publishes audit events and blacklist changes to their topics.
type KafkaProducer struct {
	audit      MessageWriter
	blacklist  MessageWriter
	signingKey string
	logger     logger.Logger
}

// NewKafkaProducer creates writers for the audit and blacklist topics.
func NewKafkaProducer(cfg config.KafkaConfig, log logger.Logger) *KafkaProducer {
	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 5 * time.Second,
		}
	}
	return NewKafkaProducerWithWriters(newWriter(cfg.AuditTopic), newWriter(cfg.BlacklistTopic), cfg.SigningKey, log)
}

// NewKafkaProducerWithWriters builds the producer over existing writers.
func NewKafkaProducerWithWriters(audit, blacklist MessageWriter, signingKey string, log logger.Logger) *KafkaProducer {
	return &KafkaProducer{
		audit:      audit,
		blacklist:  blacklist,
		signingKey: signingKey,
		logger:     log.WithComponent("KafkaProducer"),
	}
}

// LogEvent sends an audit event to the audit topic, keyed by client id.
func (p *KafkaProducer) LogEvent(ctx context.Context, event *models.AuditEvent) error {
	var (
		payload []byte
		headers []kafka.Header
		err     error
	)
	if p.signingKey != "" {
		var sig string
		sig, payload, err = SignAuditEvent(event, p.signingKey)
		headers = append(headers, kafka.Header{Key: SignatureHeader, Value: []byte(sig)})
	} else {
		payload, err = json.Marshal(event)
	}
	if err != nil {
		p.logger.Error(ctx, "failed to marshal audit event", err)
		return err
	}

	err = p.audit.WriteMessages(ctx, kafka.Message{
		Key:     []byte(event.ClientID),
		Value:   payload,
		Headers: headers,
	})
	if err != nil {
		p.logger.Error(ctx, "failed to write audit event to Kafka", err,
			logger.String("event_type", string(event.EventType)))
	}
	return err
}

// PublishBlacklistChange sends a blacklist mutation to peers. Messages for one
// user share a key so peers apply them in order.
func (p *KafkaProducer) PublishBlacklistChange(ctx context.Context, change service.BlacklistChange) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return err
	}
	err = p.blacklist.WriteMessages(ctx, kafka.Message{
		Key:   []byte(change.ClientID + ":" + change.Username),
		Value: payload,
	})
	if err != nil {
		p.logger.Error(ctx, "failed to publish blacklist change", err,
			logger.String("client_id", change.ClientID))
	}
	return err
}

// Close closes both writers.
func (p *KafkaProducer) Close() error {
	err := p.audit.Close()
	if berr := p.blacklist.Close(); err == nil {
		err = berr
	}
	return err
}
