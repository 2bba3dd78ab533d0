package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	// Subscribe delivers raw payloads until ctx is done, then closes the channel.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Channels published by the services.
const (
	ChannelSOSAlerts    = "sos.alert.created"
	ChannelAppointments = "appointment.events"
	ChannelRequests     = "request.events"
)

type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// LocalBroker fans messages out to in-process subscribers. It serves
// single-instance deployments that run without Redis.
type LocalBroker struct {
	mu     sync.RWMutex
	subs   map[string]map[chan []byte]struct{}
	closed bool
}

func NewLocalBroker() *LocalBroker {
	return &LocalBroker{subs: make(map[string]map[chan []byte]struct{})}
}

func (b *LocalBroker) Publish(_ context.Context, channel string, message interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[channel] {
		select {
		case ch <- payload:
		default:
			// slow subscriber, drop
		}
	}
	return nil
}

func (b *LocalBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("broker closed")
	}

	ch := make(chan []byte, 100)
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[chan []byte]struct{})
	}
	b.subs[channel][ch] = struct{}{}

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[channel][ch]; ok {
			delete(b.subs[channel], ch)
			close(ch)
		}
	}()
	return ch, nil
}

func (b *LocalBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for _, set := range b.subs {
		for ch := range set {
			close(ch)
		}
	}
	b.subs = make(map[string]map[chan []byte]struct{})
	return nil
}
