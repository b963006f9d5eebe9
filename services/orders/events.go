package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

// Tipos de evento publicados após o commit
const (
	EventOrderCreated   = "order.created"
	EventOrderCancelled = "order.cancelled"
)

// OrderEvent é o payload publicado no tópico de eventos de pedido
type OrderEvent struct {
	Type        string          `json:"type"`
	OrderID     string          `json:"order_id"`
	UserID      string          `json:"user_id"`
	Status      string          `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// EventPublisher abstrai a publicação de eventos de pedido
type EventPublisher interface {
	Publish(ctx context.Context, event OrderEvent) error
}

// NoopPublisher descarta eventos; usado quando não há broker configurado
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, event OrderEvent) error {
	return nil
}

// KafkaEventPublisher publica eventos de pedido no Kafka
type KafkaEventPublisher struct {
	writer *kafka.Writer
}

// NewKafkaEventPublisher cria um publisher com a chave da mensagem sendo o
// id do pedido, preservando a ordem por pedido dentro da partição
func NewKafkaEventPublisher(brokers []string, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		},
	}
}

func (p *KafkaEventPublisher) Publish(ctx context.Context, event OrderEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.OrderID),
		Value: data,
		Time:  event.OccurredAt,
	})
}

func (p *KafkaEventPublisher) Close() error {
	return p.writer.Close()
}
