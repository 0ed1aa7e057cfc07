// Package worker consumes ingested module scores asynchronously.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/janus-audit/janus/internal/domain"
	"github.com/janus-audit/janus/internal/pipeline"
)

// Worker subscribes to janus.scores.ingested and runs each delivered
// score set through the scoring pipeline. Detectors that publish to
// the bus get the same validation, case, and report semantics as the
// synchronous API.
type Worker struct {
	bus  domain.EventBus
	pipe *pipeline.Pipeline

	subscriptions []domain.Subscription
	cancel        context.CancelFunc
	ctx           context.Context
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs lists the tenants to consume. Empty means a single
	// subscription on the shared "_global" tenant.
	TenantIDs []string
}

// NewWorker creates an async score consumer.
func NewWorker(bus domain.EventBus, pipe *pipeline.Pipeline) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    bus,
		pipe:   pipe,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start opens one subscription per configured tenant.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobal()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenant(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started", "tenant_count", len(cfg.TenantIDs))
	return nil
}

func (w *Worker) startGlobal() error {
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicScoresIngested, func(ctx context.Context, msg *domain.Message) error {
		return w.processScores(ctx, msg.TenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

func (w *Worker) startTenant(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicScoresIngested, func(ctx context.Context, msg *domain.Message) error {
		return w.processScores(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicScoresIngested,
	)
	return nil
}

// processScores runs one ingested score set through the pipeline. The
// tenant inside the payload wins over the subscription tenant.
func (w *Worker) processScores(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var ts domain.TransactionScores
	if err := json.Unmarshal(msg.Payload, &ts); err != nil {
		slog.Error("failed to parse scores message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}
	if ts.TenantID != "" {
		tenantID = ts.TenantID
	}

	res, err := w.pipe.Score(ctx, tenantID, &ts)
	if err != nil {
		slog.Error("scoring failed",
			"tx_id", ts.TransactionID,
			"tenant_id", tenantID,
			"error", err,
		)
		return err
	}

	caseID := ""
	if res.Case != nil {
		caseID = res.Case.ID
	}
	slog.Info("scores processed",
		"tx_id", ts.TransactionID,
		"tenant_id", tenantID,
		"risk_level", res.Meta.RiskLevel,
		"score", res.Meta.WeightedScore,
		"case_id", caseID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Stop cancels all subscriptions.
func (w *Worker) Stop() error {
	w.cancel()
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe", "topic", sub.Topic(), "error", err)
		}
	}
	w.subscriptions = nil

	slog.Info("workers stopped")
	return nil
}

// Stats reports the worker's active subscriptions.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
