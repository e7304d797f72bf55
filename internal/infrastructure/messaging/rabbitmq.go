// Package messaging publishes committed domain events to RabbitMQ.
package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher sends one message to the events exchange.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
	Close() error
}

// RabbitMQ publishes to a durable topic exchange. The connection is re-dialed
// lazily after the broker closes it.
type RabbitMQ struct {
	url      string
	exchange string
	logger   *zap.Logger

	mu         sync.Mutex
	connection *amqp.Connection
	channel    *amqp.Channel
}

func NewRabbitMQ(url, exchange string, logger *zap.Logger) *RabbitMQ {
	return &RabbitMQ{url: url, exchange: exchange, logger: logger}
}

// Dial connects and declares the exchange.
func (rmq *RabbitMQ) Dial() error {
	rmq.mu.Lock()
	defer rmq.mu.Unlock()
	return rmq.dialLocked()
}

func (rmq *RabbitMQ) dialLocked() error {
	connection, err := amqp.Dial(rmq.url)
	if err != nil {
		return fmt.Errorf("failed to dial RabbitMQ: %w", err)
	}
	channel, err := connection.Channel()
	if err != nil {
		connection.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}
	if err := channel.ExchangeDeclare(rmq.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		channel.Close()
		connection.Close()
		return fmt.Errorf("failed to declare exchange %s: %w", rmq.exchange, err)
	}
	rmq.connection = connection
	rmq.channel = channel
	rmq.logger.Info("rabbitmq connected", zap.String("exchange", rmq.exchange))
	return nil
}

func (rmq *RabbitMQ) Publish(ctx context.Context, routingKey string, body []byte) error {
	rmq.mu.Lock()
	defer rmq.mu.Unlock()

	if rmq.channel == nil || rmq.channel.IsClosed() {
		rmq.closeLocked()
		if err := rmq.dialLocked(); err != nil {
			return err
		}
	}

	return rmq.channel.PublishWithContext(ctx, rmq.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}

func (rmq *RabbitMQ) Close() error {
	rmq.mu.Lock()
	defer rmq.mu.Unlock()
	return rmq.closeLocked()
}

func (rmq *RabbitMQ) closeLocked() error {
	var firstErr error
	if rmq.channel != nil {
		if err := rmq.channel.Close(); err != nil && err != amqp.ErrClosed {
			firstErr = fmt.Errorf("failed to close channel: %w", err)
		}
		rmq.channel = nil
	}
	if rmq.connection != nil {
		if err := rmq.connection.Close(); err != nil && err != amqp.ErrClosed && firstErr == nil {
			firstErr = fmt.Errorf("failed to close connection: %w", err)
		}
		rmq.connection = nil
	}
	return firstErr
}

// NopPublisher drops messages; used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, []byte) error { return nil }
func (NopPublisher) Close() error { return nil }
