// Package mq carries audit events over a message broker.
package mq

import (
	"context"
	"errors"
	"fmt"

	"github.com/jjudge-oj/gatekeeper/config"
)

// ErrChannelRequired is returned when a publish or subscribe names no channel.
var ErrChannelRequired = errors.New("mq channel is required")

// Message is a broker-agnostic delivery.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Returning an error requeues it.
type Handler func(ctx context.Context, msg Message) error

// Backend is implemented by each broker driver.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// MQ wraps a backend with a stable API.
type MQ struct {
	backend Backend
	driver  string
}

func New(backend Backend, driver string) *MQ {
	return &MQ{backend: backend, driver: driver}
}

// Open connects the backend selected by cfg.Driver. It returns nil, nil
// when the driver is "none" so callers can skip auditing.
func Open(ctx context.Context, cfg config.MQConfig) (*MQ, error) {
	switch cfg.Driver {
	case "", config.MQDriverNone:
		return nil, nil
	case config.MQDriverRabbitMQ:
		client, err := NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, fmt.Errorf("connect rabbitmq: %w", err)
		}
		return New(client, cfg.Driver), nil
	case config.MQDriverPubSub:
		client, err := NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, fmt.Errorf("connect pubsub: %w", err)
		}
		return New(client, cfg.Driver), nil
	default:
		return nil, fmt.Errorf("unknown mq driver %q", cfg.Driver)
	}
}

// Driver names the backend in use.
func (m *MQ) Driver() string {
	return m.driver
}

func (m *MQ) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if channel == "" {
		return "", ErrChannelRequired
	}
	return m.backend.Publish(ctx, channel, data, attrs)
}

// Subscribe blocks delivering messages from channel until ctx is done.
func (m *MQ) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if channel == "" {
		return ErrChannelRequired
	}
	return m.backend.Subscribe(ctx, channel, handler)
}

func (m *MQ) Close() error {
	if m == nil {
		return nil
	}
	return m.backend.Close()
}
