package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"go-loginguard/pkg/logger"
	"go-loginguard/pkg/metrics"
	"go-loginguard/pkg/models"
)

// Processor classifies one login. *analyzer.LoginAnalyzer satisfies it.
type Processor interface {
	ProcessLoginAt(ctx context.Context, in models.LoginInput, now time.Time, source string) *models.AuditRecord
}

type Options struct {
	Brokers     []string
	GroupID     string
	Version     string
	ConsumeFrom string
}

type Consumer struct {
	consumer  sarama.ConsumerGroup
	processor Processor
	now       func() time.Time
}

func NewConsumer(opts Options, processor Processor) (*Consumer, error) {
	config := sarama.NewConfig()
	version, err := sarama.ParseKafkaVersion(opts.Version)
	if err != nil {
		return nil, err
	}
	config.Version = version
	config.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	config.Consumer.Offsets.Initial = initialOffset(opts.ConsumeFrom)
	config.Consumer.Return.Errors = true
	config.Consumer.Group.Session.Timeout = 20 * time.Second
	config.Consumer.Group.Heartbeat.Interval = 6 * time.Second
	config.Net.DialTimeout = 30 * time.Second
	config.Net.ReadTimeout = 30 * time.Second
	config.Net.WriteTimeout = 30 * time.Second

	logger.Log.Infof("connecting to kafka brokers: %v", opts.Brokers)
	group, err := sarama.NewConsumerGroup(opts.Brokers, opts.GroupID, config)
	if err != nil {
		return nil, err
	}

	return newConsumer(group, processor), nil
}

func newConsumer(group sarama.ConsumerGroup, processor Processor) *Consumer {
	return &Consumer{
		consumer:  group,
		processor: processor,
		now:       time.Now,
	}
}

func initialOffset(from string) int64 {
	if strings.EqualFold(from, "oldest") {
		return sarama.OffsetOldest
	}
	return sarama.OffsetNewest
}

// Start consumes topic until ctx is cancelled or the group is closed.
func (c *Consumer) Start(ctx context.Context, topic string) error {
	topics := []string{topic}

	go func() {
		for err := range c.consumer.Errors() {
			logger.Log.Errorf("kafka consumer error: %v", err)
		}
	}()

	logger.Log.Infof("consuming login events from topic %s", topic)
	for {
		if err := c.consumer.Consume(ctx, topics, c); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			logger.Log.Errorf("consume failed: %v", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(5 * time.Second):
			}
			continue
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Consumer) Setup(_ sarama.ConsumerGroupSession) error {
	return nil
}

func (c *Consumer) Cleanup(_ sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim classifies every message. Malformed messages are marked and
// skipped so they are not redelivered.
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			logger.Log.Debugf("message received: topic=%s partition=%d offset=%d",
				message.Topic, message.Partition, message.Offset)

			in, at, err := decodeEvent(message.Value)
			if err != nil {
				metrics.InvalidRequests.Inc()
				logger.Log.Warnf("skipping malformed login event at offset %d: %v, raw message: %s",
					message.Offset, err, string(message.Value))
				session.MarkMessage(message, "")
				continue
			}
			if at.IsZero() {
				at = c.now()
			}

			c.processor.ProcessLoginAt(session.Context(), in, at, "kafka")
			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}

func (c *Consumer) Close() error {
	return c.consumer.Close()
}

type loginEvent struct {
	models.LoginFields
	Timestamp time.Time `json:"timestamp"`
}

// decodeEvent parses and validates a login event with the same field rules
// as the HTTP API. A zero time means the event carried no timestamp.
func decodeEvent(value []byte) (models.LoginInput, time.Time, error) {
	var ev loginEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		return models.LoginInput{}, time.Time{}, fmt.Errorf("invalid JSON: %w", err)
	}
	in, err := ev.Validate()
	if err != nil {
		return models.LoginInput{}, time.Time{}, err
	}
	return in, ev.Timestamp, nil
}
