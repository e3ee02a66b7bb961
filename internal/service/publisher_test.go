package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/deskflow/helpdesk-service/internal/domain"
	"github.com/deskflow/helpdesk-service/internal/events"
	"github.com/deskflow/helpdesk-service/internal/observability"
)

func TestPublisherDetachesFromRequestContext(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	var delivered atomic.Int32
	dispatcher.Subscribe(events.EventTicketCreated, func(ctx context.Context, _ events.Event) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		delivered.Add(1)
		return nil
	})
	metrics := observability.NewMetrics()
	publisher := NewEventPublisher(dispatcher, nil, metrics)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	publisher.Publish(ctx, events.NewEvent(events.EventTicketCreated, domain.Ticket{ID: 1}, domain.SystemActor(), time.Now(), nil))
	publisher.Wait()

	if delivered.Load() != 1 {
		t.Fatalf("delivered = %d", delivered.Load())
	}
	if n := metrics.Snapshot().NotifyFailures; n != 0 {
		t.Fatalf("notify failures = %d", n)
	}
}

func TestPublisherCountsFailures(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	dispatcher.Subscribe(events.EventTicketAssigned, func(context.Context, events.Event) error {
		return errors.New("boom")
	})
	metrics := observability.NewMetrics()
	publisher := NewEventPublisher(dispatcher, nil, metrics)

	for i := 0; i < 3; i++ {
		publisher.Publish(context.Background(), events.Event{Type: events.EventTicketAssigned})
	}
	publisher.Wait()
	if n := metrics.Snapshot().NotifyFailures; n != 3 {
		t.Fatalf("notify failures = %d", n)
	}
}

func TestPublisherNilSafe(t *testing.T) {
	var publisher *EventPublisher
	publisher.Publish(context.Background(), events.Event{})
	publisher.Wait()

	NewEventPublisher(nil, nil, nil).Publish(context.Background(), events.Event{})
}

func TestClockDefaultsToUTC(t *testing.T) {
	var c Clock
	if loc := c.now().Location(); loc != time.UTC {
		t.Fatalf("location = %v", loc)
	}
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := Clock(func() time.Time { return fixed }).now(); !got.Equal(fixed) {
		t.Fatalf("now = %v", got)
	}
}
