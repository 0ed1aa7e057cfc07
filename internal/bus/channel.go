// Package bus provides the event bus implementations for Janus.
package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/janus-audit/janus/internal/domain"
)

// ChannelBus is the in-process community tier bus. Each subscription
// owns a buffered channel drained by its own goroutine; a full buffer
// drops the message for that subscriber rather than blocking the
// publisher.
type ChannelBus struct {
	mu      sync.RWMutex
	bufSize int
	subs    map[string][]*channelSub
	closed  bool
}

type channelSub struct {
	id     string
	topic  string
	inbox  chan *domain.Message
	cancel context.CancelFunc
}

// NewChannelBus creates an in-process bus with the given per
// subscriber buffer size.
func NewChannelBus(bufferSize int) *ChannelBus {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &ChannelBus{
		bufSize: bufferSize,
		subs:    make(map[string][]*channelSub),
	}
}

func subKey(tenantID, topic string) string {
	return tenantID + ":" + topic
}

// Publish delivers payload to every subscriber of the tenant's topic.
func (b *ChannelBus) Publish(ctx context.Context, tenantID string, topic string, payload []byte) error {
	if tenantID == "" {
		return fmt.Errorf("tenantID is required")
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return fmt.Errorf("bus is closed")
	}
	targets := b.subs[subKey(tenantID, topic)]
	b.mu.RUnlock()

	msg := &domain.Message{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Topic:     topic,
		Payload:   payload,
		Metadata:  make(map[string]string),
		Timestamp: time.Now().UnixNano(),
	}

	for _, s := range targets {
		select {
		case s.inbox <- msg:
		default:
			// Subscriber buffer full; message dropped for that subscriber.
		}
	}
	return nil
}

// Subscribe registers handler for the tenant's topic and starts a
// goroutine to drain its inbox.
func (b *ChannelBus) Subscribe(ctx context.Context, tenantID string, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantID is required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("bus is closed")
	}

	subCtx, cancel := context.WithCancel(ctx)
	s := &channelSub{
		id:     uuid.New().String(),
		topic:  topic,
		inbox:  make(chan *domain.Message, b.bufSize),
		cancel: cancel,
	}
	go drain(subCtx, s.inbox, handler)

	k := subKey(tenantID, topic)
	b.subs[k] = append(b.subs[k], s)
	return s, nil
}

func drain(ctx context.Context, inbox <-chan *domain.Message, handler domain.MessageHandler) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-inbox:
			if msg != nil {
				_ = handler(ctx, msg)
			}
		}
	}
}

// Ping reports whether the bus can still accept messages.
func (b *ChannelBus) Ping(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("bus is closed")
	}
	return nil
}

// Close stops all subscriptions. Publish and Subscribe fail afterwards.
func (b *ChannelBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, subs := range b.subs {
		for _, s := range subs {
			s.cancel()
			close(s.inbox)
		}
	}
	b.subs = make(map[string][]*channelSub)
	return nil
}

// Unsubscribe stops the subscription's drain goroutine.
func (s *channelSub) Unsubscribe() error {
	s.cancel()
	return nil
}

func (s *channelSub) Topic() string {
	return s.topic
}
