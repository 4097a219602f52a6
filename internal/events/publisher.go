// Package events publishes rating-recomputed notifications to RabbitMQ.
// Publishing happens after commit; a failed publish never undoes the write.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/MohakGupta21/MovieReviewAPIs/internal/domain"
	"github.com/MohakGupta21/MovieReviewAPIs/internal/logger"
)

const eventType = "movie.rating.recomputed"

// Publisher sends RatingRecomputed events to a durable queue on the default
// exchange. The connection is opened lazily and reopened after it closes.
type Publisher struct {
	url    string
	queue  string
	logger *logger.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher returns a Publisher for queue at url. No connection is made
// until the first publish.
func NewPublisher(url, queue string, log *logger.Logger) (*Publisher, error) {
	if url == "" {
		return nil, errors.New("amqp url is required")
	}
	if queue == "" {
		return nil, errors.New("queue name is required")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Publisher{url: url, queue: queue, logger: log.With("component", "rating_events")}, nil
}

// PublishRatingRecomputed sends event as a persistent JSON message.
func (p *Publisher) PublishRatingRecomputed(ctx context.Context, event domain.RatingRecomputed) error {
	msg, err := buildPublishing(event, uuid.NewString())
	if err != nil {
		return fmt.Errorf("encode rating event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		p.resetLocked()
		return fmt.Errorf("publish rating event: %w", err)
	}
	p.logger.Debug("rating event published", "movie_id", event.MovieID, "message_id", msg.MessageId)
	return nil
}

// Close shuts the channel and connection down.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var err error
	if p.ch != nil {
		err = p.ch.Close()
	}
	if p.conn != nil {
		if cerr := p.conn.Close(); cerr != nil && !errors.Is(cerr, amqp.ErrClosed) {
			err = cerr
		}
	}
	p.ch, p.conn = nil, nil
	return err
}

// channel returns an open channel, dialing and declaring the queue if needed.
// Callers hold p.mu.
func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() && p.conn != nil && !p.conn.IsClosed() {
		return p.ch, nil
	}
	p.resetLocked()

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp queue declare: %w", err)
	}

	p.conn, p.ch = conn, ch
	p.logger.Info("amqp publisher connected", "queue", p.queue)
	return ch, nil
}

func (p *Publisher) resetLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.ch, p.conn = nil, nil
}

func buildPublishing(event domain.RatingRecomputed, messageID string) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, err
	}
	ts := event.OccurredAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID,
		Type:         eventType,
		Timestamp:    ts,
		Body:         body,
	}, nil
}
