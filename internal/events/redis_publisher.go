package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/deskflow/helpdesk-service/internal/domain"
)

// redisPublisher is the subset of *redis.Client the publisher needs.
type redisPublisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisPublisher forwards committed ticket events to a Redis pub/sub channel
// for realtime consumers.
type RedisPublisher struct {
	client  redisPublisher
	channel string
}

// NewRedisPublisher builds a publisher on the given channel.
func NewRedisPublisher(client redisPublisher, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

// Register subscribes the publisher to every event type.
func (p *RedisPublisher) Register(dispatcher Dispatcher) {
	if p == nil || p.client == nil || dispatcher == nil {
		return
	}
	for _, eventType := range AllEventTypes {
		dispatcher.Subscribe(eventType, p.Handle)
	}
}

// Handle publishes one event.
func (p *RedisPublisher) Handle(ctx context.Context, event Event) error {
	data, err := encodeEvent(event)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s for ticket %d: %w", event.Type, event.TicketID, err)
	}
	return nil
}

type wireEvent struct {
	ID           string              `json:"id"`
	Type         EventType           `json:"type"`
	TicketID     int64               `json:"ticket_id"`
	Actor        Actor               `json:"actor"`
	Timestamp    time.Time           `json:"timestamp"`
	Status       domain.TicketStatus `json:"status"`
	Label        string              `json:"label"`
	DepartmentID int64               `json:"department_id"`
	AssignedTo   *int64              `json:"assigned_to,omitempty"`
	Payload      any                 `json:"payload,omitempty"`
}

func encodeEvent(event Event) ([]byte, error) {
	data, err := json.Marshal(wireEvent{
		ID:           event.ID,
		Type:         event.Type,
		TicketID:     event.TicketID,
		Actor:        event.Actor,
		Timestamp:    event.Timestamp.UTC(),
		Status:       event.Ticket.Status,
		Label:        event.Ticket.Status.Label(),
		DepartmentID: event.Ticket.DepartmentID,
		AssignedTo:   event.Ticket.AssignedTo,
		Payload:      event.Payload,
	})
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", event.Type, err)
	}
	return data, nil
}
