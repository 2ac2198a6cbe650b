// Package kafka consumes processing requests from a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"newsagent/logging"

	"github.com/IBM/sarama"
	"github.com/charmbracelet/log"
)

// MessageHandler handles one consumed message.
type MessageHandler interface {
	// HandleMessage returns whether the message's offset should be committed.
	HandleMessage(ctx context.Context, message []byte) (shouldMark bool, err error)
}

// Consumer reads messages of one topic through a consumer group.
type Consumer struct {
	group   sarama.ConsumerGroup
	handler MessageHandler
	topic   string
	groupID string

	ready     chan struct{}
	readyOnce sync.Once
	logger    *log.Logger
}

// ConsumerConfig holds Kafka consumer configuration
type ConsumerConfig struct {
	Brokers  []string
	Topic    string
	GroupID  string
	ClientID string
	// FromOldest starts a group without committed offsets at the oldest retained message.
	FromOldest bool
	Handler    MessageHandler
}

func saramaConfig(config ConsumerConfig) *sarama.Config {
	sc := sarama.NewConfig()
	sc.Version = sarama.V3_6_0_0
	if config.ClientID != "" {
		sc.ClientID = config.ClientID
	}
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	if config.FromOldest {
		sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	}
	sc.Consumer.Return.Errors = true
	return sc
}

// NewConsumer connects a consumer group. Nothing is consumed until Start.
func NewConsumer(config ConsumerConfig) (*Consumer, error) {
	if config.Handler == nil {
		return nil, errors.New("kafka consumer needs a message handler")
	}
	group, err := sarama.NewConsumerGroup(config.Brokers, config.GroupID, saramaConfig(config))
	if err != nil {
		return nil, err
	}

	return &Consumer{
		group:   group,
		handler: config.Handler,
		topic:   config.Topic,
		groupID: config.GroupID,
		ready:   make(chan struct{}),
		logger:  logging.WithPrefix("kafka"),
	}, nil
}

// Start consumes in the background until ctx ends or the consumer is closed.
// It returns once the first group session is set up, or ctx.Err() if ctx ends first.
func (c *Consumer) Start(ctx context.Context) error {
	go func() {
		for err := range c.group.Errors() {
			c.logger.Error("consumer error", "err", err)
		}
	}()

	go func() {
		// Consume returns on every rebalance and must be called again.
		for {
			err := c.group.Consume(ctx, []string{c.topic}, c)
			switch {
			case errors.Is(err, sarama.ErrClosedConsumerGroup), errors.Is(err, context.Canceled):
				c.logger.Info("consumer stopped")
				return
			case err != nil:
				c.logger.Error("consume failed", "err", err)
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	select {
	case <-c.ready:
		c.logger.Info("consumer started", "group", c.groupID, "topic", c.topic)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close leaves the group and stops consuming.
func (c *Consumer) Close() error {
	c.logger.Info("closing consumer")
	return c.group.Close()
}

// Setup implements sarama.ConsumerGroupHandler.
func (c *Consumer) Setup(session sarama.ConsumerGroupSession) error {
	c.readyOnce.Do(func() { close(c.ready) })
	c.logger.Debug("session started", "generation", session.GenerationID(), "claims", session.Claims())
	return nil
}

// Cleanup implements sarama.ConsumerGroupHandler.
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim implements sarama.ConsumerGroupHandler.
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			c.handle(session, msg)
		case <-session.Context().Done():
			return nil
		}
	}
}

func (c *Consumer) handle(session sarama.ConsumerGroupSession, msg *sarama.ConsumerMessage) {
	if msg == nil {
		return
	}
	logger := c.logger.With("partition", msg.Partition, "offset", msg.Offset)
	logger.Debug("received message", "key", string(msg.Key))

	mark, err := c.handler.HandleMessage(session.Context(), msg.Value)
	if err != nil {
		logger.Error("failed to handle message", "err", err)
	}
	if mark {
		session.MarkMessage(msg, "")
	}
}

// TypedMessageHandler decodes JSON messages into T before validating and processing them.
type TypedMessageHandler[T any] struct {
	// Validate may normalize msg; false drops it.
	Validate func(msg *T) bool
	Process  func(ctx context.Context, msg *T) error
	// AlwaysMark commits undecodable and invalid messages so they are not redelivered.
	AlwaysMark bool
}

// HandleMessage implements MessageHandler.
func (h *TypedMessageHandler[T]) HandleMessage(ctx context.Context, message []byte) (bool, error) {
	var msg T
	if err := json.Unmarshal(message, &msg); err != nil {
		logging.Warn("dropping undecodable message", "err", err)
		return h.AlwaysMark, nil
	}
	if h.Validate != nil && !h.Validate(&msg) {
		return h.AlwaysMark, nil
	}
	if err := h.Process(ctx, &msg); err != nil {
		return false, err
	}
	return true, nil
}
