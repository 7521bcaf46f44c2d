package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"localdeals/controlplane/domain"

	"github.com/segmentio/kafka-go"
)

// KafkaPublisher anuncia order.created depois que o pedido foi persistido.
// Chave = userId, para manter a ordem por usuário dentro da partição.
type KafkaPublisher struct {
	w *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}}
}

type orderCreatedEvent struct {
	Type string       `json:"type"`
	Data domain.Order `json:"data"`
}

func (p *KafkaPublisher) OrderCreated(ctx context.Context, o domain.Order) error {
	b, err := json.Marshal(orderCreatedEvent{Type: "order.created", Data: o})
	if err != nil {
		return err
	}
	if err := p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(o.UserID, 10)),
		Value: b,
	}); err != nil {
		return fmt.Errorf("publish order %d: %w", o.ID, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}
