package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/EugeneTurkin/fav-movies/internal/metrics"
	"github.com/EugeneTurkin/fav-movies/internal/queue"
)

const (
	publishBuffer  = 256
	dialTimeout    = 5 * time.Second
	publishTimeout = 5 * time.Second
)

var (
	// ErrPublishBufferFull is returned when events arrive faster than the
	// broker takes them. The event is dropped.
	ErrPublishBufferFull = errors.New("publish buffer full")
	// ErrPublisherClosed is returned by Publish after Close.
	ErrPublisherClosed = errors.New("publisher closed")
)

// QueuePublisher publishes favorite events to a durable RabbitMQ queue.
// Publish only enqueues; a background goroutine owns the broker connection,
// opens it on first use and reopens it after it drops.
type QueuePublisher struct {
	url         string
	queue       string
	log         logrus.FieldLogger
	dialTimeout time.Duration

	events    chan queue.FavoriteEvent
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// owned by run
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewQueuePublisher builds a publisher for queueName on the broker at url
// and starts its sender goroutine. Call Close to stop it.
func NewQueuePublisher(url, queueName string, log logrus.FieldLogger) *QueuePublisher {
	return newQueuePublisher(url, queueName, publishBuffer, dialTimeout, log)
}

func newQueuePublisher(url, queueName string, buffer int, dial time.Duration, log logrus.FieldLogger) *QueuePublisher {
	if queueName == "" {
		queueName = queue.DefaultQueueName
	}
	p := &QueuePublisher{
		url:         url,
		queue:       queueName,
		log:         log,
		dialTimeout: dial,
		events:      make(chan queue.FavoriteEvent, buffer),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	go p.run()
	return p
}

// Publish hands ev to the sender without waiting for the broker. It fails
// only when the buffer is full or the publisher is closed.
func (p *QueuePublisher) Publish(_ context.Context, ev queue.FavoriteEvent) error {
	select {
	case <-p.quit:
		return ErrPublisherClosed
	default:
	}
	select {
	case p.events <- ev:
		return nil
	default:
		metrics.RecordQueueOperation("publish", "dropped")
		return ErrPublishBufferFull
	}
}

// Close stops the sender after it has tried to send what is buffered.
func (p *QueuePublisher) Close() error {
	p.closeOnce.Do(func() { close(p.quit) })
	<-p.done
	return nil
}

func (p *QueuePublisher) run() {
	defer close(p.done)
	defer p.reset()
	for {
		select {
		case ev := <-p.events:
			p.send(ev)
		case <-p.quit:
			for {
				select {
				case ev := <-p.events:
					p.send(ev)
				default:
					return
				}
			}
		}
	}
}

// send publishes ev as a persistent JSON message routed to the queue.
func (p *QueuePublisher) send(ev queue.FavoriteEvent) {
	entry := p.log.WithFields(logrus.Fields{"event": ev.Type, "profile_id": ev.ProfileID, "movie_id": ev.MovieID})

	body, err := json.Marshal(ev)
	if err != nil {
		entry.WithError(err).Warn("rabbitmq: marshal event")
		return
	}
	ch, err := p.channel()
	if err != nil {
		metrics.RecordQueueOperation("publish", "failure")
		entry.WithError(err).Warn("rabbitmq: channel unavailable, event dropped")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		pub,
	); err != nil {
		metrics.RecordQueueOperation("publish", "failure")
		entry.WithError(err).Warn("rabbitmq: publish failed")
		p.reset()
		return
	}
	metrics.RecordQueueOperation("publish", "success")
}

// channel returns an open channel, dialing if needed.
func (p *QueuePublisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() && p.conn != nil && !p.conn.IsClosed() {
		return p.ch, nil
	}
	p.reset()

	// DefaultDial bounds both the TCP connect and the AMQP handshake.
	conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: amqp.DefaultDial(p.dialTimeout)})
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel open: %w", err)
	}
	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("queue declare: %w", err)
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *QueuePublisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.ch, p.conn = nil, nil
}
