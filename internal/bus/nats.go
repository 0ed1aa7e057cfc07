package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/janus-audit/janus/internal/domain"
	"github.com/nats-io/nats.go"
)

// NATSBus is the pro tier bus. Subjects are tenant-scoped as
// janus.<tenant>.<topic> so subscriptions never cross tenants.
type NATSBus struct {
	mu   sync.RWMutex
	conn *nats.Conn
	subs map[string]*natsSub
	cfg  domain.EventBusConfig
}

type natsSub struct {
	id    string
	topic string
	sub   *nats.Subscription
}

func natsSubject(tenantID, topic string) string {
	return fmt.Sprintf("janus.%s.%s", tenantID, topic)
}

// NewNATSBus connects to NATS with reconnect handling and bounded
// startup retries.
func NewNATSBus(cfg domain.EventBusConfig) (*NATSBus, error) {
	if cfg.NATSUrl == "" {
		cfg.NATSUrl = nats.DefaultURL
	}
	if cfg.NATSMaxReconnects == 0 {
		cfg.NATSMaxReconnects = 10
	}
	if cfg.NATSReconnectWait == 0 {
		cfg.NATSReconnectWait = 5
	}
	wait := time.Duration(cfg.NATSReconnectWait) * time.Second

	opts := []nats.Option{
		nats.MaxReconnects(cfg.NATSMaxReconnects),
		nats.ReconnectWait(wait),
		nats.ReconnectBufSize(8 * 1024 * 1024),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			slog.Warn("nats disconnected", "error", err, "will_reconnect", !nc.IsClosed())
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			slog.Info("nats connection closed")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			slog.Error("nats error", "error", err, "subject", sub.Subject)
		}),
	}
	if cfg.NATSToken != "" {
		opts = append(opts, nats.Token(cfg.NATSToken))
	}

	var conn *nats.Conn
	var err error
	for attempt := 1; attempt <= cfg.NATSMaxReconnects; attempt++ {
		conn, err = nats.Connect(cfg.NATSUrl, opts...)
		if err == nil {
			break
		}
		slog.Warn("nats connection attempt failed",
			"attempt", attempt,
			"max_attempts", cfg.NATSMaxReconnects,
			"error", err,
		)
		time.Sleep(wait)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS after %d attempts: %w", cfg.NATSMaxReconnects, err)
	}

	slog.Info("nats connected", "url", conn.ConnectedUrl(), "server_id", conn.ConnectedServerId())
	return &NATSBus{
		conn: conn,
		subs: make(map[string]*natsSub),
		cfg:  cfg,
	}, nil
}

// Publish wraps payload in a Message envelope and sends it to the
// tenant's subject.
func (b *NATSBus) Publish(ctx context.Context, tenantID string, topic string, payload []byte) error {
	if tenantID == "" {
		return fmt.Errorf("tenantID is required")
	}
	data, err := json.Marshal(&domain.Message{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Topic:     topic,
		Payload:   payload,
		Metadata:  make(map[string]string),
		Timestamp: time.Now().UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return b.conn.Publish(natsSubject(tenantID, topic), data)
}

// Subscribe registers handler for the tenant's subject. Handler
// errors are logged, never redelivered.
func (b *NATSBus) Subscribe(ctx context.Context, tenantID string, topic string, handler domain.MessageHandler) (domain.Subscription, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantID is required")
	}

	subject := natsSubject(tenantID, topic)
	inner, err := b.conn.Subscribe(subject, func(m *nats.Msg) {
		var msg domain.Message
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			slog.Error("malformed bus message", "subject", m.Subject, "error", err)
			return
		}
		if err := handler(ctx, &msg); err != nil {
			slog.Error("bus handler error", "subject", m.Subject, "message_id", msg.ID, "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	s := &natsSub{id: uuid.New().String(), topic: topic, sub: inner}
	b.mu.Lock()
	b.subs[s.id] = s
	b.mu.Unlock()
	return s, nil
}

// Ping verifies the connection by flushing pending data.
func (b *NATSBus) Ping(ctx context.Context) error {
	if !b.conn.IsConnected() {
		return fmt.Errorf("NATS not connected")
	}
	return b.conn.FlushWithContext(ctx)
}

// Close drops all subscriptions and closes the connection.
func (b *NATSBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		_ = s.sub.Unsubscribe()
	}
	b.subs = make(map[string]*natsSub)
	b.conn.Close()
	return nil
}

func (s *natsSub) Unsubscribe() error {
	return s.sub.Unsubscribe()
}

func (s *natsSub) Topic() string {
	return s.topic
}
