package workflow

import "github.com/deskflow/helpdesk-service/internal/domain"

// Predicate is a composable filter over tickets. The repository layer renders
// the same tree to SQL, so in-memory and database evaluation agree.
type Predicate interface {
	Matches(ticket *domain.Ticket) bool
}

// MatchAll accepts every ticket.
type MatchAll struct{}

// MatchNone rejects every ticket.
type MatchNone struct{}

// DepartmentIn matches tickets owned by one of the departments.
type DepartmentIn struct{ IDs []int64 }

// AssignedTo matches tickets currently held by the user.
type AssignedTo struct{ UserID int64 }

// CreatedBy matches tickets filed by the user.
type CreatedBy struct{ UserID int64 }

// HasID matches a single ticket.
type HasID struct{ ID int64 }

// Not negates its inner predicate.
type Not struct{ Inner Predicate }

// And matches when every member matches. An empty And matches everything.
type And []Predicate

// Or matches when any member matches. An empty Or matches nothing.
type Or []Predicate

func (MatchAll) Matches(*domain.Ticket) bool  { return true }
func (MatchNone) Matches(*domain.Ticket) bool { return false }

func (p DepartmentIn) Matches(t *domain.Ticket) bool {
	for _, id := range p.IDs {
		if t.DepartmentID == id {
			return true
		}
	}
	return false
}

func (p AssignedTo) Matches(t *domain.Ticket) bool { return t.IsAssignedTo(p.UserID) }
func (p CreatedBy) Matches(t *domain.Ticket) bool  { return t.CreatedBy == p.UserID }
func (p HasID) Matches(t *domain.Ticket) bool      { return t.ID == p.ID }
func (p Not) Matches(t *domain.Ticket) bool        { return !p.Inner.Matches(t) }

func (p And) Matches(t *domain.Ticket) bool {
	for _, inner := range p {
		if !inner.Matches(t) {
			return false
		}
	}
	return true
}

func (p Or) Matches(t *domain.Ticket) bool {
	for _, inner := range p {
		if inner.Matches(t) {
			return true
		}
	}
	return false
}

// AttendScope selects the tickets an actor may work. Staff see their
// departments and their assignments minus the tickets they filed themselves;
// end-users attend nothing.
func AttendScope(actor domain.Actor) Predicate {
	switch {
	case actor.Role == domain.RoleAdmin:
		return MatchAll{}
	case actor.Role.IsStaff() && actor.HasIdentity():
		return And{
			Or{DepartmentIn{IDs: actor.Departments()}, AssignedTo{UserID: actor.ID}},
			Not{Inner: CreatedBy{UserID: actor.ID}},
		}
	default:
		return MatchNone{}
	}
}

// RequestScope selects the tickets an actor filed. An actor without identity matches nothing.
func RequestScope(actor domain.Actor) Predicate {
	if !actor.HasIdentity() {
		return MatchNone{}
	}
	return CreatedBy{UserID: actor.ID}
}

// AccessScope is the union of attend and request scopes.
func AccessScope(actor domain.Actor) Predicate {
	if actor.Role == domain.RoleAdmin {
		return MatchAll{}
	}
	return Or{AttendScope(actor), RequestScope(actor)}
}

// CanAccess evaluates the access scope against an already loaded ticket.
func CanAccess(actor domain.Actor, ticket *domain.Ticket) bool {
	if ticket == nil {
		return false
	}
	return AccessScope(actor).Matches(ticket)
}

// GuardScope restricts the access scope to one ticket id.
func GuardScope(actor domain.Actor, ticketID int64) Predicate {
	return And{HasID{ID: ticketID}, AccessScope(actor)}
}
