package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/deskflow/helpdesk-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketAutoClosed    EventType = "ticket_auto_closed"
)

// AllEventTypes lists every type a subscriber can register for.
var AllEventTypes = []EventType{
	EventTicketCreated,
	EventTicketStatusChanged,
	EventTicketAssigned,
	EventTicketAutoClosed,
}

// Actor identifies who caused an event. ID is nil for the system actor.
type Actor struct {
	ID   *int64      `json:"id,omitempty"`
	Role domain.Role `json:"role"`
}

// Event is emitted after the transaction that produced it has committed.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  int64     `json:"ticket_id"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	// Ticket is the committed state; handlers must treat it as read-only.
	Ticket domain.Ticket `json:"-"`
	// SkipUserIDs are excluded from any user-facing notification.
	SkipUserIDs []int64 `json:"-"`
	Payload     any     `json:"payload"`
}

// NewEvent stamps an event for the ticket snapshot.
func NewEvent(eventType EventType, ticket domain.Ticket, actor domain.Actor, at time.Time, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticket.ID,
		Actor:     Actor{ID: actor.IDRef(), Role: actor.Role},
		Timestamp: at,
		Ticket:    ticket,
		Payload:   payload,
	}
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	DepartmentID int64  `json:"department_id"`
	Category     string `json:"category"`
	Subject      string `json:"subject"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Label     string              `json:"label"`
	Rule      string              `json:"rule,omitempty"`
	Note      string              `json:"note,omitempty"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	PreviousAssigneeID *int64 `json:"previous_assignee_id,omitempty"`
	AssigneeID         int64  `json:"assignee_id"`
	AssigneeName       string `json:"assignee_name"`
}
