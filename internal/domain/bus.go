package domain

import (
	"context"
)

// EventBus carries scoring pipeline events between components. The
// community tier runs an in-process channel bus; the pro tier runs
// NATS. Every call is tenant-scoped.
type EventBus interface {
	// Publish sends a payload to the tenant's topic.
	Publish(ctx context.Context, tenantID string, topic string, payload []byte) error

	// Subscribe registers a handler for the tenant's topic and
	// returns a handle for cancelling it.
	Subscribe(ctx context.Context, tenantID string, topic string, handler MessageHandler) (Subscription, error)

	// Ping reports bus health.
	Ping(ctx context.Context) error

	Close() error
}

// MessageHandler processes one delivered message. A returned error is
// logged by the bus; messages are not redelivered.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message is the envelope every bus implementation delivers.
type Message struct {
	ID        string            `json:"id"`
	TenantID  string            `json:"tenantId"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription is an active topic registration.
type Subscription interface {
	Unsubscribe() error
	Topic() string
}

// EventBusConfig selects and tunes the bus implementation.
type EventBusConfig struct {
	// Type is "channel" or "nats".
	Type string `json:"type" yaml:"type"`

	// Channel settings (community tier).
	ChannelBufferSize int `json:"channelBufferSize" yaml:"channelBufferSize"`

	// NATS settings (pro tier).
	NATSUrl           string `json:"natsUrl" yaml:"natsUrl"`
	NATSToken         string `json:"natsToken" yaml:"natsToken"`
	NATSMaxReconnects int    `json:"natsMaxReconnects" yaml:"natsMaxReconnects"`
	NATSReconnectWait int    `json:"natsReconnectWait" yaml:"natsReconnectWait"` // seconds
}

// Topics published by the scoring pipeline.
const (
	TopicScoresIngested = "janus.scores.ingested"
	TopicCaseCreated    = "janus.case.created"
	TopicCaseSuperseded = "janus.case.superseded"
	TopicAlert          = "janus.alert"
)
