// Package workflow holds the ticket state machine: the permission matrix,
// ownership exceptions, timestamp derivation and visibility scopes. Everything
// here is pure so it can be evaluated inside or outside a storage transaction.
package workflow

import (
	"sort"

	"github.com/deskflow/helpdesk-service/internal/domain"
)

type roleSet map[domain.Role]struct{}

func roles(list ...domain.Role) roleSet {
	set := make(roleSet, len(list))
	for _, role := range list {
		set[role] = struct{}{}
	}
	return set
}

var (
	staffRoles = roles(domain.RoleAdmin, domain.RoleManager, domain.RoleAgent)
	everyone   = roles(domain.RoleAdmin, domain.RoleManager, domain.RoleAgent, domain.RoleEndUser)
)

var transitionMatrix = map[domain.TicketStatus]map[domain.TicketStatus]roleSet{
	domain.TicketStatusOpen: {
		domain.TicketStatusInProgress: staffRoles,
		domain.TicketStatusCanceled:   everyone,
	},
	domain.TicketStatusInProgress: {
		domain.TicketStatusOpen:     staffRoles,
		domain.TicketStatusSolved:   staffRoles,
		domain.TicketStatusCanceled: everyone,
	},
	domain.TicketStatusSolved: {
		domain.TicketStatusClosed:   roles(domain.RoleAdmin, domain.RoleManager, domain.RoleEndUser),
		domain.TicketStatusReopened: everyone,
	},
	domain.TicketStatusReopened: {
		domain.TicketStatusInProgress: staffRoles,
		domain.TicketStatusSolved:     staffRoles,
		domain.TicketStatusCanceled:   everyone,
	},
	domain.TicketStatusClosed: {
		domain.TicketStatusReopened: everyone,
	},
	domain.TicketStatusCanceled: {},
}

// DecisionContext is the optional ticket and actor context exception rules inspect.
type DecisionContext struct {
	Ticket  *domain.Ticket
	ActorID int64
}

// ExceptionRule permits a transition the matrix alone would reject.
type ExceptionRule struct {
	Name    string
	Applies func(from, to domain.TicketStatus, role domain.Role, ctx DecisionContext) bool
}

// RuleMatrix names decisions granted by the base matrix.
const RuleMatrix = "matrix"

// RuleCreatorCloses lets staff close a solved ticket they filed themselves.
const RuleCreatorCloses = "creator-closes-own-ticket"

var exceptionRules = []ExceptionRule{
	{Name: RuleCreatorCloses, Applies: creatorClosesOwnTicket},
}

func creatorClosesOwnTicket(from, to domain.TicketStatus, role domain.Role, ctx DecisionContext) bool {
	if from != domain.TicketStatusSolved || to != domain.TicketStatusClosed {
		return false
	}
	if !role.IsStaff() {
		return false
	}
	return ctx.Ticket != nil && ctx.ActorID > 0 && ctx.Ticket.CreatedBy == ctx.ActorID
}

// Decision is the outcome of a permission check and the rule that granted it.
type Decision struct {
	Allowed bool
	Rule    string
}

// MatrixAllows evaluates the base matrix only.
func MatrixAllows(from, to domain.TicketStatus, role domain.Role) bool {
	_, ok := transitionMatrix[from][to][role]
	return ok
}

// Decide evaluates the base matrix and then, in order, the exception rules.
// The system role is never evaluated against the matrix.
func Decide(from, to domain.TicketStatus, role domain.Role, ctx DecisionContext) Decision {
	if role == domain.RoleSystem {
		return Decision{}
	}
	if MatrixAllows(from, to, role) {
		return Decision{Allowed: true, Rule: RuleMatrix}
	}
	for _, rule := range exceptionRules {
		if rule.Applies(from, to, role, ctx) {
			return Decision{Allowed: true, Rule: rule.Name}
		}
	}
	return Decision{}
}

// CanTransition reports whether role may move a ticket from one status to another.
func CanTransition(from, to domain.TicketStatus, role domain.Role, ctx DecisionContext) bool {
	return Decide(from, to, role, ctx).Allowed
}

// IsTerminal reports whether a status has no outgoing transitions.
func IsTerminal(status domain.TicketStatus) bool {
	return len(transitionMatrix[status]) == 0
}

// CustodyViolation names a custody rule that blocks a transition the matrix allows.
type CustodyViolation string

const (
	// CustodyNotDepartment: accepting a ticket needs membership in its department.
	CustodyNotDepartment CustodyViolation = "not-department-member"
	// CustodyNotAssignee: only the holder or a supervisor may release a ticket.
	CustodyNotAssignee CustodyViolation = "not-assignee"
)

// CheckCustody applies the accept and release constraints. It returns the
// empty violation when the actor may proceed.
func CheckCustody(actor domain.Actor, ticket *domain.Ticket, from, to domain.TicketStatus) CustodyViolation {
	accepting := to == domain.TicketStatusInProgress &&
		(from == domain.TicketStatusOpen || from == domain.TicketStatusReopened)
	if accepting && actor.Role != domain.RoleAdmin && !actor.InDepartment(ticket.DepartmentID) {
		return CustodyNotDepartment
	}

	releasing := from == domain.TicketStatusInProgress && to == domain.TicketStatusOpen
	if releasing && !actor.Role.IsSupervisor() && !ticket.IsAssignedTo(actor.ID) {
		return CustodyNotAssignee
	}
	return ""
}

// AllowedTargets lists the statuses the actor may move the ticket to, sorted.
// A target is listed only if both the permission check and custody pass.
func AllowedTargets(ticket *domain.Ticket, actor domain.Actor) []domain.TicketStatus {
	ctx := DecisionContext{Ticket: ticket, ActorID: actor.ID}
	targets := make([]domain.TicketStatus, 0, len(transitionMatrix[ticket.Status]))
	for to := range transitionMatrix[ticket.Status] {
		if !CanTransition(ticket.Status, to, actor.Role, ctx) {
			continue
		}
		if CheckCustody(actor, ticket, ticket.Status, to) != "" {
			continue
		}
		targets = append(targets, to)
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })
	return targets
}
