// Package memory provides an event publisher keeping events in process, used
// on development networks and in tests.
package memory

import (
	"context"
	"sync"

	interfaces "github.com/sheikh-saqib/funding-ledger/internal/interfaces"
)

// Message is a published event.
type Message struct {
	Topic string
	Event any
}

// Publisher records every published event.
type Publisher struct {
	mu       sync.Mutex
	messages []Message
}

func NewPublisher() *Publisher {
	return &Publisher{}
}

func (p *Publisher) Publish(_ context.Context, topic string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, Message{Topic: topic, Event: event})
	return nil
}

// Messages returns a copy of the published events in publishing order.
func (p *Publisher) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	copied := make([]Message, len(p.messages))
	copy(copied, p.messages)
	return copied
}

func (p *Publisher) Close() error {
	return nil
}

var _ interfaces.EventPublisher = (*Publisher)(nil)
