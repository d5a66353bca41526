// Package mocks provides test doubles for the mqtt package.
package mocks

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/genofl/genofl/pkg/mqtt"
)

// PubSub is a testify mock of the mqtt.PubSub interface.
type PubSub struct {
	mock.Mock
}

var _ mqtt.PubSub = (*PubSub)(nil)

func (m *PubSub) Publish(ctx context.Context, topic string, msg any) error {
	args := m.Called(ctx, topic, msg)

	return args.Error(0)
}

func (m *PubSub) Subscribe(ctx context.Context, topic string, handler mqtt.Handler) error {
	args := m.Called(ctx, topic, handler)

	return args.Error(0)
}

func (m *PubSub) Unsubscribe(ctx context.Context, topic string) error {
	args := m.Called(ctx, topic)

	return args.Error(0)
}

func (m *PubSub) Disconnect(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

// Bus is an in-process loopback implementation of mqtt.PubSub. Messages
// published on a topic are delivered synchronously to every subscriber of
// that topic, after a JSON round trip to mimic the broker wire format.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]mqtt.Handler
}

var _ mqtt.PubSub = (*Bus)(nil)

func NewBus() *Bus {
	return &Bus{
		handlers: make(map[string][]mqtt.Handler),
	}
}

func (b *Bus) Publish(_ context.Context, topic string, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	b.mu.RLock()
	handlers := append([]mqtt.Handler(nil), b.handlers[topic]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(topic, decoded); err != nil {
			return err
		}
	}

	return nil
}

func (b *Bus) Subscribe(_ context.Context, topic string, handler mqtt.Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], handler)

	return nil
}

func (b *Bus) Unsubscribe(_ context.Context, topic string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, topic)

	return nil
}

func (b *Bus) Disconnect(context.Context) error {
	return nil
}
