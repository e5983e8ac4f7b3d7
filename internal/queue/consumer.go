package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/EugeneTurkin/fav-movies/internal/metrics"
)

// Consumer reads favorite events from the broker and appends one line per
// event to a log file. Malformed messages are rejected without requeue so a
// bad payload cannot spin the loop.
type Consumer struct {
	url     string
	queue   string
	logPath string
	log     logrus.FieldLogger

	mu sync.Mutex // serializes appends to logPath
}

// NewConsumer builds a consumer for queue on the broker at url.
func NewConsumer(url, queue, logPath string, log logrus.FieldLogger) *Consumer {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &Consumer{url: url, queue: queue, logPath: logPath, log: log.WithField("component", "favorites-consumer")}
}

// Run dials the broker and consumes until ctx is cancelled, reconnecting
// with exponential backoff whenever the connection or channel drops.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		c.log.WithError(err).Warn("consume loop ended, reconnecting")
	}
}

func (c *Consumer) dial(ctx context.Context) (*amqp.Connection, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0 // keep trying until ctx is done

	var conn *amqp.Connection
	op := func() error {
		var err error
		conn, err = amqp.Dial(c.url)
		return err
	}
	notify := func(err error, wait time.Duration) {
		c.log.WithError(err).WithField("retry_in", wait.String()).Warn("failed to dial broker")
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(bo, ctx), notify); err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	return conn, nil
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.WithError(err).Warn("set QoS failed")
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handleMessage(d.Body); err != nil {
				c.log.WithError(err).Warn("handle message failed")
				metrics.RecordQueueOperation("consume", "failure")
				_ = d.Nack(false, false)
				continue
			}
			metrics.RecordQueueOperation("consume", "success")
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) handleMessage(body []byte) error {
	var ev FavoriteEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" || ev.ProfileID == 0 || ev.MovieID == 0 {
		return fmt.Errorf("incomplete event %q", body)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(c.logPath), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(c.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("[%s] %s | profile_id=%d | movie_id=%d\n",
		ev.OccurredAt.UTC().Format(time.RFC3339), ev.Type, ev.ProfileID, ev.MovieID)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
