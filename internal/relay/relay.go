// Package relay доставляет синтезированные вебхук-события в коллекцию
// webhook_events. Прямой сток пишет в хранилище сразу; сток через RabbitMQ
// публикует события в очередь, откуда их забирает потребитель реле.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/paylab/subscription-sandbox/internal/lib/rabbitmq"
	"github.com/paylab/subscription-sandbox/internal/lib/sl"
	"github.com/paylab/subscription-sandbox/internal/models"
	"github.com/paylab/subscription-sandbox/internal/store"
)

// EventSink контракт стока вебхук-событий.
type EventSink interface {
	Emit(ctx context.Context, event models.WebhookEvent) error
}

// StoreSink пишет события напрямую в документное хранилище.
type StoreSink struct {
	store store.Store
}

// NewStoreSink создает прямой сток.
func NewStoreSink(st store.Store) *StoreSink {
	return &StoreSink{store: st}
}

// Emit добавляет событие в коллекцию webhook_events.
func (s *StoreSink) Emit(ctx context.Context, event models.WebhookEvent) error {
	const op = "relay.StoreSink.Emit"

	doc, err := store.Encode(event)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err := s.store.Add(ctx, store.CollectionWebhookEvents, doc); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// AMQPSink публикует события в очередь RabbitMQ.
type AMQPSink struct {
	ch *amqp.Channel
}

// NewAMQPSink создает сток поверх открытого канала RabbitMQ.
func NewAMQPSink(ch *amqp.Channel) *AMQPSink {
	return &AMQPSink{ch: ch}
}

// Emit публикует событие в exchange реле вебхуков.
func (s *AMQPSink) Emit(_ context.Context, event models.WebhookEvent) error {
	const op = "relay.AMQPSink.Emit"

	if err := rabbitmq.PublishMessage(s.ch, rabbitmq.ExchangeName, rabbitmq.RoutingKey, event); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// RunConsumer запускает потребителя очереди реле: каждое событие из очереди
// записывается в коллекцию webhook_events.
func RunConsumer(ctx context.Context, log *slog.Logger, ch *amqp.Channel, st store.Store) error {
	const op = "relay.RunConsumer"

	sink := NewStoreSink(st)
	err := rabbitmq.ConsumerMessage(ctx, ch, rabbitmq.QueueName, func(body []byte) error {
		var event models.WebhookEvent
		if err := json.Unmarshal(body, &event); err != nil {
			log.Error("failed to decode webhook event from queue", sl.Err(err))
			return err
		}
		return sink.Emit(ctx, event)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
