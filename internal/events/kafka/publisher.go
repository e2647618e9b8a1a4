package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	interfaces "github.com/sheikh-saqib/funding-ledger/internal/interfaces"
	"github.com/segmentio/kafka-go"
)

// Options configures the kafka publisher.
type Options struct {
	Brokers      []string      `yaml:"Brokers"`
	TopicPrefix  string        `yaml:"TopicPrefix"`
	WriteTimeout time.Duration `yaml:"WriteTimeout"`
}

// Publisher writes ledger events as JSON messages. The topic of every message
// is TopicPrefix followed by the event topic.
type Publisher struct {
	writer *kafka.Writer
	prefix string
}

func NewPublisher(cfg Options) *Publisher {
	timeout := cfg.WriteTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Balancer:               &kafka.LeastBytes{},
			WriteTimeout:           timeout,
			AllowAutoTopicCreation: true,
		},
		prefix: cfg.TopicPrefix,
	}
}

// Publish implements the EventPublisher interface. Events carrying a
// TxID are keyed by it.
func (p *Publisher) Publish(ctx context.Context, topic string, event any) error {
	msg, err := p.message(topic, event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *Publisher) message(topic string, event any) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("kafka: encode %s event: %w", topic, err)
	}
	msg := kafka.Message{
		Topic: p.prefix + topic,
		Value: data,
	}
	var keyed struct {
		TxID string `json:"tx_id"`
	}
	if json.Unmarshal(data, &keyed) == nil && keyed.TxID != "" {
		msg.Key = []byte(keyed.TxID)
	}
	return msg, nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ interfaces.EventPublisher = (*Publisher)(nil)
