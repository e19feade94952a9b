// Package messaging publishes moderation events to a RabbitMQ topic
// exchange. Publishing is best effort: callers treat failures as warnings.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Togather-Foundation/tablon/internal/metrics"
	"github.com/oklog/ulid/v2"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const (
	ExchangeKind   = "topic"
	publishTimeout = 5 * time.Second
)

var ErrClosed = errors.New("messaging: publisher closed")

// Publisher is what the moderation workflow depends on.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type dialFunc func() (*amqp.Connection, channel, error)

// RabbitPublisher owns one connection and channel. A closed channel is
// reopened on the next publish.
type RabbitPublisher struct {
	mu       sync.Mutex
	exchange string
	dial     dialFunc
	conn     *amqp.Connection
	ch       channel
	closed   bool
	logger   zerolog.Logger
}

// NewRabbitPublisher dials url and declares a durable topic exchange.
func NewRabbitPublisher(url, exchange string, logger zerolog.Logger) (*RabbitPublisher, error) {
	if url == "" {
		return nil, fmt.Errorf("rabbitmq url is required")
	}
	if exchange == "" {
		return nil, fmt.Errorf("rabbitmq exchange is required")
	}

	p := &RabbitPublisher{
		exchange: exchange,
		logger:   logger.With().Str("component", "messaging").Str("exchange", exchange).Logger(),
	}
	p.dial = func() (*amqp.Connection, channel, error) {
		return dialExchange(url, exchange)
	}

	conn, ch, err := p.dial()
	if err != nil {
		return nil, err
	}
	p.conn, p.ch = conn, ch
	return p, nil
}

func dialExchange(url, exchange string) (*amqp.Connection, channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, ExchangeKind, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("rabbitmq exchange declare: %w", err)
	}
	return conn, ch, nil
}

// Publish sends event as a persistent JSON message under routingKey.
func (p *RabbitPublisher) Publish(ctx context.Context, routingKey string, event any) (err error) {
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		metrics.EventsPublished.WithLabelValues(routingKey, result).Inc()
	}()

	msg, err := newPublishing(event)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	if p.ch == nil {
		if err := p.reconnect(); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
	if errors.Is(err, amqp.ErrClosed) {
		p.logger.Warn().Err(err).Msg("rabbitmq channel closed, reconnecting")
		if rerr := p.reconnect(); rerr != nil {
			return rerr
		}
		err = p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
	}
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}

	p.logger.Debug().Str("routing_key", routingKey).Str("message_id", msg.MessageId).Msg("event published")
	return nil
}

func (p *RabbitPublisher) reconnect() error {
	p.release()
	conn, ch, err := p.dial()
	if err != nil {
		return err
	}
	p.conn, p.ch = conn, ch
	return nil
}

func (p *RabbitPublisher) release() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.release()
	return nil
}

func newPublishing(event any) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal event: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ulid.Make().String(),
		Timestamp:    time.Now().UTC(),
		AppId:        "tablon",
		Body:         body,
	}, nil
}

// LogPublisher stands in when no broker is configured.
type LogPublisher struct {
	logger zerolog.Logger
}

func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With().Str("component", "messaging").Logger()}
}

func (p *LogPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	p.logger.Debug().Str("routing_key", routingKey).RawJSON("event", body).Msg("event not published, no broker configured")
	metrics.EventsPublished.WithLabelValues(routingKey, "skipped").Inc()
	return nil
}

func (p *LogPublisher) Close() error { return nil }

var (
	_ Publisher = (*RabbitPublisher)(nil)
	_ Publisher = (*LogPublisher)(nil)
)
