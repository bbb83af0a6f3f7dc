package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/AvagyanVache/patraste-backoffice/internal/metrics"
	"github.com/AvagyanVache/patraste-backoffice/internal/orders"
)

// Processor consumes delayed sweep messages and removes declined orders.
// Deletion is best-effort: the user-facing decline already succeeded, so
// every failure here is logged and swallowed rather than retried into a DLQ.
type Processor struct {
	store   *orders.Store
	metrics *metrics.Emitter
	log     *zap.Logger
}

// NewProcessor creates a sweeper processor.
func NewProcessor(store *orders.Store, em *metrics.Emitter, log *zap.Logger) *Processor {
	return &Processor{
		store:   store,
		metrics: em,
		log:     log,
	}
}

// Handle receives an SQS batch event and processes each message.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) error {
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			// malformed payloads are the only hard failures
			return err
		}
	}
	return nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var msg orders.SweepMessage
	if err := json.Unmarshal([]byte(rec.Body), &msg); err != nil {
		return fmt.Errorf("invalid sweep message body: %w", err)
	}

	order, err := p.store.Get(ctx, msg.OrderID)
	if err != nil {
		p.log.Warn("sweep lookup failed",
			zap.String("order_id", msg.OrderID),
			zap.Error(err))
		return nil
	}
	if order == nil {
		// already gone, nothing to do
		p.log.Info("order already removed", zap.String("order_id", msg.OrderID))
		return nil
	}
	if order.ApprovalStatus != orders.StatusDeclined {
		// the grace window saw a competing transition; leave it alone
		p.log.Warn("skipping sweep of non-declined order",
			zap.String("order_id", msg.OrderID),
			zap.String("approval_status", order.ApprovalStatus))
		return nil
	}

	if err := p.store.Delete(ctx, msg.OrderID); err != nil {
		p.log.Warn("failed to delete declined order",
			zap.String("order_id", msg.OrderID),
			zap.Error(err))
		return nil
	}

	p.metrics.Count(ctx, metrics.OrdersSwept)
	p.log.Info("declined order removed",
		zap.String("order_id", msg.OrderID),
		zap.String("reason", msg.Reason))
	return nil
}
