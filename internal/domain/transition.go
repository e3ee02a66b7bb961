package domain

import "time"

// RequestMeta captures caller metadata stored with each audit entry.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// TransitionRecord is an append-only audit entry. Assignment-only changes are
// recorded with identical from and to statuses.
type TransitionRecord struct {
	ID         int64
	TicketID   int64
	ActorID    *int64
	ActorRole  Role
	FromStatus TicketStatus
	ToStatus   TicketStatus
	Note       string
	IPAddress  string
	UserAgent  string
	CreatedAt  time.Time
}

// StatusChange reports whether the record moved the ticket to another status.
func (r TransitionRecord) StatusChange() bool {
	return r.FromStatus != r.ToStatus
}
