package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/rami2212/digitex-backend/models"
)

const TopicPaymentProcessed = "payment-processed"

// NewKafkaWriter creates a kafka writer with minimal required configuration.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}
}

// KafkaNotifier publishes payment-processed events for the fulfillment side.
type KafkaNotifier struct {
	writer *kafka.Writer
}

func NewKafkaNotifier(brokers []string) *KafkaNotifier {
	return &KafkaNotifier{writer: NewKafkaWriter(brokers, TopicPaymentProcessed)}
}

func (n *KafkaNotifier) PaymentProcessed(ctx context.Context, order *models.Order) error {
	event := PaymentProcessedEvent{
		OrderID:     order.ID,
		OrderRef:    order.OrderRef,
		UserID:      order.UserID,
		AmountCents: order.TotalCents,
		Currency:    order.Currency,
	}
	if order.PaidAt != nil {
		event.PaidAt = *order.PaidAt
	}

	value, err := json.Marshal(event)
	if err != nil {
		return err
	}

	// key = order ref so all events for one order land on the same partition
	message := kafka.Message{
		Key:   []byte(order.OrderRef),
		Value: value,
		Time:  time.Now(),
	}
	if err := n.writer.WriteMessages(ctx, message); err != nil {
		log.Printf("failed to write message to kafka: %v", err)
		return err
	}
	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
