package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusSolved     TicketStatus = "solved"
	TicketStatusReopened   TicketStatus = "reopened"
	TicketStatusClosed     TicketStatus = "closed"
	TicketStatusCanceled   TicketStatus = "canceled"
)

var statusLabels = map[TicketStatus]string{
	TicketStatusOpen:       "Abierto",
	TicketStatusInProgress: "En progreso",
	TicketStatusSolved:     "Solucionado",
	TicketStatusReopened:   "Reabierto",
	TicketStatusClosed:     "Cerrado",
	TicketStatusCanceled:   "Cancelado",
}

// ParseTicketStatus validates a raw status string.
func ParseTicketStatus(raw string) (TicketStatus, bool) {
	status := TicketStatus(raw)
	_, ok := statusLabels[status]
	return status, ok
}

// Label returns the human readable name shown to users.
func (s TicketStatus) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// Ticket is the aggregate for helpdesk requests.
type Ticket struct {
	ID                int64
	Subject           string
	Description       string
	Category          string
	DepartmentID      int64
	CreatedBy         int64
	CreatorName       string
	ContactPhone      *string
	AssignedTo        *int64
	Status            TicketStatus
	OpenedAt          time.Time
	UpdatedAt         time.Time
	LastStateChangeAt *time.Time
	FirstResponseAt   *time.Time
	SolvedAt          *time.Time
	SolvedBy          *int64
	ClosedAt          *time.Time
	ClosedBy          *int64
	CanceledAt        *time.Time
	CanceledBy        *int64
	ReopenedCount     int
}

// IsAssignedTo reports whether userID currently holds the ticket.
func (t *Ticket) IsAssignedTo(userID int64) bool {
	return t.AssignedTo != nil && *t.AssignedTo == userID
}
