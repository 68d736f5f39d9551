package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Ringer/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeJob MessageType = "job"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// Publish публикует сообщение в указанный exchange с routing key.
// Ненулевой ttl выставляет per-message expiration: по истечении
// сообщение dead-letter-ится согласно аргументам очереди.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message, ttl time.Duration) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		pub := amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
			MessageId:    msg.ID,
			Timestamp:    msg.Timestamp,
			Body:         body,
		}
		if ttl > 0 {
			pub.Expiration = strconv.FormatInt(ttl.Milliseconds(), 10)
		}

		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			pub,
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
			"ttl", ttl,
		)

		return nil
	})
}

// PublishJob публикует job для немедленного выполнения.
// Потребитель: Worker.
func (p *Publisher) PublishJob(ctx context.Context, job *domain.Job) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeJob,
		Payload:   job,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeJobs, RoutingKeyReady, msg, 0)
}

// PublishJobDeferred публикует job с задержкой delay.
// Сообщение лежит в jobs.deferred до истечения TTL и dead-letter-ом
// попадает в jobs.ready. Гарантия односторонняя: job никогда не
// выполнится раньше срока, но может позже (TTL проверяется у головы
// очереди) — опоздания добирает sweep.
func (p *Publisher) PublishJobDeferred(ctx context.Context, job *domain.Job, delay time.Duration) error {
	if delay <= 0 {
		return p.PublishJob(ctx, job)
	}

	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeJob,
		Payload:   job,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeJobs, RoutingKeyDeferred, msg, delay)
}
