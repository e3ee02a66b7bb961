package workflow

import (
	"time"

	"github.com/deskflow/helpdesk-service/internal/domain"
)

// Stamp records when a milestone happened and who caused it.
type Stamp struct {
	At time.Time
	By *int64
}

// FieldUpdates is the set of audit fields a transition writes.
type FieldUpdates struct {
	LastStateChangeAt time.Time
	FirstResponseAt   *time.Time
	Solved            *Stamp
	Closed            *Stamp
	Canceled          *Stamp
	IncrementReopened bool
}

// DeriveUpdates computes the audit fields for a transition. actorID is nil
// for system driven transitions. The result depends only on its inputs.
func DeriveUpdates(from, to domain.TicketStatus, now time.Time, actorID *int64) FieldUpdates {
	updates := FieldUpdates{LastStateChangeAt: now}

	if from == domain.TicketStatusOpen && to == domain.TicketStatusInProgress {
		at := now
		updates.FirstResponseAt = &at
	}
	if (from == domain.TicketStatusInProgress || from == domain.TicketStatusReopened) && to == domain.TicketStatusSolved {
		updates.Solved = newStamp(now, actorID)
	}
	if from == domain.TicketStatusSolved && to == domain.TicketStatusClosed {
		updates.Closed = newStamp(now, actorID)
	}
	if to == domain.TicketStatusCanceled {
		updates.Canceled = newStamp(now, actorID)
	}
	if to == domain.TicketStatusReopened {
		updates.IncrementReopened = true
	}
	return updates
}

func newStamp(at time.Time, by *int64) *Stamp {
	stamp := &Stamp{At: at}
	if by != nil {
		id := *by
		stamp.By = &id
	}
	return stamp
}

// Apply writes the updates onto the ticket. first_response_at is never overwritten.
func (u FieldUpdates) Apply(ticket *domain.Ticket) {
	changed := u.LastStateChangeAt
	ticket.LastStateChangeAt = &changed

	if u.FirstResponseAt != nil && ticket.FirstResponseAt == nil {
		at := *u.FirstResponseAt
		ticket.FirstResponseAt = &at
	}
	if u.Solved != nil {
		ticket.SolvedAt, ticket.SolvedBy = u.Solved.fields()
	}
	if u.Closed != nil {
		ticket.ClosedAt, ticket.ClosedBy = u.Closed.fields()
	}
	if u.Canceled != nil {
		ticket.CanceledAt, ticket.CanceledBy = u.Canceled.fields()
	}
	if u.IncrementReopened {
		ticket.ReopenedCount++
	}
}

func (s *Stamp) fields() (*time.Time, *int64) {
	at := s.At
	if s.By == nil {
		return &at, nil
	}
	by := *s.By
	return &at, &by
}
