package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/deskflow/helpdesk-service/internal/events"
	"github.com/deskflow/helpdesk-service/internal/observability"
)

// Clock returns the current time. Services take one so tests can pin it.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c()
}

// EventPublisher hands committed events to the dispatcher on a separate
// goroutine. Failures are logged and counted, never returned to the caller.
type EventPublisher struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	wg         sync.WaitGroup
}

// NewEventPublisher builds the publisher. A nil dispatcher disables publishing.
func NewEventPublisher(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *EventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventPublisher{dispatcher: dispatcher, logger: logger, metrics: metrics}
}

// Publish dispatches event asynchronously. The request context's values are
// kept but its cancellation is not, so a finished request does not abort delivery.
func (p *EventPublisher) Publish(ctx context.Context, event events.Event) {
	if p == nil || p.dispatcher == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.dispatcher.Publish(ctx, event); err != nil {
			p.metrics.RecordNotifyFailure()
			p.logger.Warn("event delivery failed",
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)),
				zap.Int64("ticket_id", event.TicketID),
				zap.Error(err))
		}
	}()
}

// Wait blocks until every in-flight delivery has finished.
func (p *EventPublisher) Wait() {
	if p == nil {
		return
	}
	p.wg.Wait()
}
