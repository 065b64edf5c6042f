// Package consumer pulls deposit notifications off the message broker and
// feeds them to the ingestion processor through a bounded worker pool.
package consumer

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/tradepoint/deposit-gateway/internal/metrics"
	"github.com/tradepoint/deposit-gateway/pkg/config"
)

// Handler processes one notification payload. A nil return acknowledges the
// message; an error leaves it unacknowledged for redelivery.
type Handler interface {
	Process(ctx context.Context, payload []byte) error
}

// Consumer is a queue-group JetStream consumer. Instances sharing the same
// queue group split the stream between them; each message is delivered to
// one instance at a time, redelivered until acknowledged.
type Consumer struct {
	conn       *nats.Conn
	js         nats.JetStreamContext
	cfg        *config.NATSConfig
	handler    Handler
	logger     *zap.Logger
	instanceID string

	sub  *nats.Subscription
	msgs chan *nats.Msg
	wg   sync.WaitGroup
}

// Connect dials the broker with reconnect logging.
func Connect(cfg *config.NATSConfig, logger *zap.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name("deposit-gateway"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}
	return conn, nil
}

// New creates a consumer on an established connection.
func New(conn *nats.Conn, cfg *config.NATSConfig, handler Handler, logger *zap.Logger) (*Consumer, error) {
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to open JetStream context: %w", err)
	}
	return &Consumer{
		conn:       conn,
		js:         js,
		cfg:        cfg,
		handler:    handler,
		logger:     logger,
		instanceID: uuid.NewString(),
	}, nil
}

// Start subscribes and launches the worker pool. Workers run until Stop.
func (c *Consumer) Start(ctx context.Context) error {
	workers := c.cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	c.msgs = make(chan *nats.Msg, workers*2)

	sub, err := c.js.ChanQueueSubscribe(c.cfg.Subject, c.cfg.QueueGroup, c.msgs,
		nats.ManualAck(),
		nats.Durable(c.cfg.QueueGroup),
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", c.cfg.Subject, err)
	}
	c.sub = sub

	for i := 0; i < workers; i++ {
		c.wg.Add(1)
		go c.worker(ctx, i)
	}

	c.logger.Info("deposit consumer started",
		zap.String("subject", c.cfg.Subject),
		zap.String("queue_group", c.cfg.QueueGroup),
		zap.String("instance", c.instanceID),
		zap.Int("workers", workers))
	return nil
}

// Stop unsubscribes and waits for in-flight messages to finish.
func (c *Consumer) Stop() {
	if c.sub != nil {
		if err := c.sub.Unsubscribe(); err != nil {
			c.logger.Warn("failed to unsubscribe", zap.Error(err))
		}
	}
	close(c.msgs)
	c.wg.Wait()
	c.logger.Info("deposit consumer stopped", zap.String("instance", c.instanceID))
}

func (c *Consumer) worker(ctx context.Context, id int) {
	defer c.wg.Done()
	logger := c.logger.With(zap.Int("worker", id))

	for msg := range c.msgs {
		if err := c.handler.Process(ctx, msg.Data); err != nil {
			// Leave the message unacknowledged so the broker redelivers
			// it. Processing is idempotent, so redelivery is safe.
			logger.Error("notification processing failed, leaving for redelivery", zap.Error(err))
			metrics.ErrorsTotal.WithLabelValues("consumer", "processing").Inc()
			if err := msg.Nak(); err != nil {
				logger.Warn("failed to nak message", zap.Error(err))
			}
			continue
		}
		if err := msg.Ack(); err != nil {
			logger.Warn("failed to ack message", zap.Error(err))
		}
	}
}
