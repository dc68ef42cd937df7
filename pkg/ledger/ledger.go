// Package ledger publishes completed payment and refund events to the
// transaction-ledger collaborator. The engine never persists transient
// payment values itself; the ledger consumer owns that record.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/byronwade/thorbis-payments/pkg/types"
)

// Event kinds published to the ledger topic.
const (
	EventPayment = "payment"
	EventRefund  = "refund"
)

// Event is one ledger entry.
type Event struct {
	Kind          string              `json:"kind"` // payment or refund
	CompanyID     string              `json:"company_id"`
	Processor     types.ProcessorKind `json:"processor"`
	TransactionID string              `json:"transaction_id,omitempty"`
	RefundID      string              `json:"refund_id,omitempty"`
	Amount        int64               `json:"amount"`
	Currency      string              `json:"currency,omitempty"`
	Status        string              `json:"status"`
	Success       bool                `json:"success"`
	FailureCode   string              `json:"failure_code,omitempty"`
	OccurredAt    time.Time           `json:"occurred_at"`
}

// Publisher delivers ledger events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// KafkaPublisher writes ledger events to a Kafka topic, keyed by company so
// one company's events stay ordered within a partition.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a publisher for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// Publish implements Publisher.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal ledger event: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.CompanyID),
		Value: value,
	})
}

// Close implements Publisher.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Nop is a Publisher that drops events. Tests and local setups without a
// broker use it.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }

// Close implements Publisher.
func (Nop) Close() error { return nil }
