// Package consumers contains Kafka consumers for background processing.
package consumers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/tenantjwt/internal/config"
	"github.com/turtacn/tenantjwt/internal/domain/service"
	"github.com/turtacn/tenantjwt/pkg/logger"
)

const maxApplyBackoff = 30 * time.Second

// MessageReader is the subset of kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// BlacklistConsumer applies blacklist changes published by peer instances to the
// local blacklist cache. Changes this instance published itself are skipped.
type BlacklistConsumer struct {
	reader     MessageReader
	blacklist  *service.UserBlacklistCache
	instanceID string
	logger     logger.Logger
	backoff    time.Duration
}

// NewBlacklistConsumer creates a consumer. Every instance reads the whole topic,
// so the group id is suffixed with the instance id.
func NewBlacklistConsumer(cfg config.KafkaConfig, blacklist *service.UserBlacklistCache, log logger.Logger) *BlacklistConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.BlacklistTopic,
		GroupID:        cfg.GroupID + "-" + cfg.InstanceID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		StartOffset:    kafka.FirstOffset,
	})
	return NewBlacklistConsumerWithReader(reader, blacklist, cfg.InstanceID, log)
}

// NewBlacklistConsumerWithReader builds the consumer over an existing reader.
func NewBlacklistConsumerWithReader(reader MessageReader, blacklist *service.UserBlacklistCache, instanceID string, log logger.Logger) *BlacklistConsumer {
	return &BlacklistConsumer{
		reader:     reader,
		blacklist:  blacklist,
		instanceID: instanceID,
		logger:     log.WithComponent("BlacklistConsumer"),
		backoff:    time.Second,
	}
}

// Start runs the consumer loop until ctx is canceled. It blocks.
func (c *BlacklistConsumer) Start(ctx context.Context) {
	c.logger.Info(ctx, "starting blacklist consumer")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || stderrors.Is(err, context.Canceled) {
				c.logger.Info(ctx, "stopping blacklist consumer")
				return
			}
			c.logger.Error(ctx, "failed to fetch message from kafka", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.backoff):
			}
			continue
		}

		// a fetched message is never redelivered once a later offset is committed,
		// so it is retried here until it applies
		if !c.apply(ctx, msg) {
			c.logger.Info(ctx, "stopping blacklist consumer")
			return
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Warn(ctx, "failed to commit blacklist message", logger.Err(err))
		}
	}
}

// apply retries handle with exponential backoff. It returns false when ctx ends first.
func (c *BlacklistConsumer) apply(ctx context.Context, msg kafka.Message) bool {
	wait := c.backoff
	for attempt := 1; ; attempt++ {
		err := c.handle(ctx, msg)
		if err == nil {
			return true
		}
		c.logger.Error(ctx, "failed to apply blacklist change", err,
			logger.Int64("offset", msg.Offset), logger.Int("attempt", attempt))
		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
		}
		if wait *= 2; wait > maxApplyBackoff {
			wait = maxApplyBackoff
		}
	}
}

func (c *BlacklistConsumer) handle(ctx context.Context, msg kafka.Message) error {
	var change service.BlacklistChange
	if err := json.Unmarshal(msg.Value, &change); err != nil {
		// poison pill, acknowledged and dropped
		c.logger.Warn(ctx, "dropping undecodable blacklist change", logger.Err(err))
		return nil
	}
	if change.Origin != "" && change.Origin == c.instanceID {
		return nil
	}

	if _, err := service.BlacklistKey(change.ClientID, change.Username); err != nil {
		c.logger.Warn(ctx, "dropping invalid blacklist change", logger.String("client_id", change.ClientID), logger.Err(err))
		return nil
	}

	if change.Blocked {
		return c.blacklist.Put(ctx, change.ClientID, change.Username)
	}
	_, err := c.blacklist.Remove(ctx, change.ClientID, change.Username)
	return err
}

// Stop closes the reader.
func (c *BlacklistConsumer) Stop() {
	if err := c.reader.Close(); err != nil {
		c.logger.Error(context.Background(), "failed to close kafka reader", err)
	}
}
