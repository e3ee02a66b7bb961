package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/deskflow/helpdesk-service/internal/domain"
	"github.com/deskflow/helpdesk-service/internal/events"
	"github.com/deskflow/helpdesk-service/internal/observability"
	"github.com/deskflow/helpdesk-service/internal/repository"
	"github.com/deskflow/helpdesk-service/internal/workflow"
	apperrors "github.com/deskflow/helpdesk-service/pkg/util/errorutil"
)

// DefaultNoteMaxRunes bounds stored transition notes when no limit is configured.
const DefaultNoteMaxRunes = 500

// Error messages callers can tell apart.
const (
	MsgNoAccess          = "you do not have access to this ticket"
	MsgNotDepartment     = "not a member of the ticket's department"
	MsgNotAssignee       = "only the assigned agent can release this ticket"
	MsgAssignRole        = "only managers and admins can assign tickets"
	MsgAssigneeNotStaff  = "assignee must be an agent or manager"
	MsgAssigneeNotMember = "assignee is not a member of the ticket's department"
)

// TransitionService moves tickets through the workflow and records custody changes.
type TransitionService struct {
	store        repository.Store
	publisher    *EventPublisher
	logger       *zap.Logger
	metrics      *observability.Metrics
	clock        Clock
	noteMaxRunes int
}

// TransitionDependencies bundles collaborators for the transition service.
type TransitionDependencies struct {
	Store        repository.Store
	Publisher    *EventPublisher
	Logger       *zap.Logger
	Metrics      *observability.Metrics
	Clock        Clock
	NoteMaxRunes int
}

// TransitionResult describes a committed status change.
type TransitionResult struct {
	Ticket domain.Ticket
	From   domain.TicketStatus
	To     domain.TicketStatus
	Rule   string
	Record domain.TransitionRecord
}

// AssignResult describes the outcome of an assignment. Changed is false when
// the ticket was already held by the requested agent.
type AssignResult struct {
	Ticket  domain.Ticket
	Changed bool
	Record  *domain.TransitionRecord
}

// NewTransitionService constructs the service.
func NewTransitionService(deps TransitionDependencies) *TransitionService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := deps.NoteMaxRunes
	if limit <= 0 {
		limit = DefaultNoteMaxRunes
	}
	return &TransitionService{
		store:        deps.Store,
		publisher:    deps.Publisher,
		logger:       logger,
		metrics:      deps.Metrics,
		clock:        deps.Clock,
		noteMaxRunes: limit,
	}
}

// Transition moves a ticket to target on behalf of actor. The row lock,
// checks, field updates and audit append share one transaction; the event is
// published only after commit.
func (s *TransitionService) Transition(ctx context.Context, actor domain.Actor, ticketID int64, target, note string, meta domain.RequestMeta) (*TransitionResult, error) {
	if err := requireInteractive(actor); err != nil {
		return nil, err
	}
	if ticketID <= 0 {
		return nil, apperrors.NewValidationError("invalid ticket id", nil)
	}
	to, ok := domain.ParseTicketStatus(strings.TrimSpace(target))
	if !ok {
		return nil, apperrors.NewValidationError("unknown target status", map[string]any{"to_status": target})
	}

	var result TransitionResult
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		ticket, err := tx.Tickets().GetForUpdate(ctx, ticketID)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		if err != nil {
			return fmt.Errorf("lock ticket: %w", err)
		}
		if !workflow.CanAccess(actor, ticket) {
			return apperrors.NewForbidden(MsgNoAccess)
		}

		from := ticket.Status
		decision := workflow.Decide(from, to, actor.Role, workflow.DecisionContext{Ticket: ticket, ActorID: actor.ID})
		if !decision.Allowed {
			return apperrors.NewInvalidTransition(string(from), string(to))
		}
		if err := checkCustody(actor, ticket, from, to); err != nil {
			return err
		}

		now := s.clock.now()
		workflow.DeriveUpdates(from, to, now, actor.IDRef()).Apply(ticket)
		applyAssignment(ticket, actor, to)
		ticket.Status = to
		ticket.UpdatedAt = now

		if err := tx.Tickets().UpdateWorkflow(ctx, ticket); err != nil {
			return fmt.Errorf("update ticket: %w", err)
		}
		record := domain.TransitionRecord{
			TicketID:   ticket.ID,
			ActorID:    actor.IDRef(),
			ActorRole:  actor.Role,
			FromStatus: from,
			ToStatus:   to,
			Note:       truncateRunes(strings.TrimSpace(note), s.noteMaxRunes),
			IPAddress:  meta.IPAddress,
			UserAgent:  meta.UserAgent,
			CreatedAt:  now,
		}
		if err := tx.Transitions().Append(ctx, &record); err != nil {
			return fmt.Errorf("append transition: %w", err)
		}

		result = TransitionResult{Ticket: *ticket, From: from, To: to, Rule: decision.Rule, Record: record}
		return nil
	})
	if err != nil {
		return nil, s.fail(err, ticketID, actor)
	}

	s.metrics.RecordTransition(string(result.From), string(result.To), result.Rule)
	event := events.NewEvent(events.EventTicketStatusChanged, result.Ticket, actor, result.Record.CreatedAt, events.TicketStatusChangedPayload{
		OldStatus: result.From,
		NewStatus: result.To,
		Label:     result.To.Label(),
		Rule:      result.Rule,
		Note:      result.Record.Note,
	})
	event.SkipUserIDs = []int64{actor.ID}
	s.publisher.Publish(ctx, event)

	return &result, nil
}

// Assign hands a ticket to a department member without changing its status.
func (s *TransitionService) Assign(ctx context.Context, actor domain.Actor, ticketID, agentID int64, meta domain.RequestMeta) (*AssignResult, error) {
	if err := requireInteractive(actor); err != nil {
		return nil, err
	}
	if ticketID <= 0 {
		return nil, apperrors.NewValidationError("invalid ticket id", nil)
	}
	if agentID <= 0 {
		return nil, apperrors.NewValidationError("agent_id is required", nil)
	}
	if !actor.Role.IsSupervisor() {
		return nil, apperrors.NewForbidden(MsgAssignRole)
	}

	var (
		result   AssignResult
		previous *int64
		assignee *domain.User
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		ticket, err := tx.Tickets().GetForUpdate(ctx, ticketID)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		if err != nil {
			return fmt.Errorf("lock ticket: %w", err)
		}
		if !workflow.CanAccess(actor, ticket) {
			return apperrors.NewForbidden(MsgNoAccess)
		}
		if workflow.IsTerminal(ticket.Status) {
			return apperrors.NewValidationError("canceled tickets cannot be assigned", map[string]any{"status": ticket.Status})
		}

		assignee, err = tx.Users().GetByID(ctx, agentID)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("agent", map[string]any{"agent_id": agentID})
		}
		if err != nil {
			return fmt.Errorf("load assignee: %w", err)
		}
		if !assignee.Role.IsStaff() {
			return apperrors.NewValidationError(MsgAssigneeNotStaff, map[string]any{"agent_id": agentID})
		}
		member, err := tx.Departments().IsMember(ctx, agentID, ticket.DepartmentID)
		if err != nil {
			return fmt.Errorf("check membership: %w", err)
		}
		if !member {
			return apperrors.NewForbidden(MsgAssigneeNotMember)
		}

		if ticket.IsAssignedTo(agentID) {
			result = AssignResult{Ticket: *ticket}
			return nil
		}

		now := s.clock.now()
		previous = ticket.AssignedTo
		id := agentID
		ticket.AssignedTo = &id
		ticket.UpdatedAt = now
		if err := tx.Tickets().UpdateWorkflow(ctx, ticket); err != nil {
			return fmt.Errorf("update ticket: %w", err)
		}
		record := domain.TransitionRecord{
			TicketID:   ticket.ID,
			ActorID:    actor.IDRef(),
			ActorRole:  actor.Role,
			FromStatus: ticket.Status,
			ToStatus:   ticket.Status,
			Note:       truncateRunes(assignmentNote(assignee), s.noteMaxRunes),
			IPAddress:  meta.IPAddress,
			UserAgent:  meta.UserAgent,
			CreatedAt:  now,
		}
		if err := tx.Transitions().Append(ctx, &record); err != nil {
			return fmt.Errorf("append transition: %w", err)
		}
		result = AssignResult{Ticket: *ticket, Changed: true, Record: &record}
		return nil
	})
	if err != nil {
		return nil, s.fail(err, ticketID, actor)
	}

	if result.Changed {
		event := events.NewEvent(events.EventTicketAssigned, result.Ticket, actor, result.Record.CreatedAt, events.TicketAssignedPayload{
			PreviousAssigneeID: previous,
			AssigneeID:         agentID,
			AssigneeName:       assignee.FullName,
		})
		event.SkipUserIDs = []int64{actor.ID}
		s.publisher.Publish(ctx, event)
	}
	return &result, nil
}

// checkCustody maps a custody violation to the error the caller sees.
func checkCustody(actor domain.Actor, ticket *domain.Ticket, from, to domain.TicketStatus) error {
	switch workflow.CheckCustody(actor, ticket, from, to) {
	case workflow.CustodyNotDepartment:
		return apperrors.NewForbidden(MsgNotDepartment)
	case workflow.CustodyNotAssignee:
		return apperrors.NewForbidden(MsgNotAssignee)
	}
	return nil
}

// applyAssignment sets custody as a side effect of the status change. Entering
// in_progress takes the ticket unless someone holds it and the actor is not an
// agent; an agent entering in_progress always takes it.
func applyAssignment(ticket *domain.Ticket, actor domain.Actor, to domain.TicketStatus) {
	switch to {
	case domain.TicketStatusInProgress:
		if ticket.AssignedTo == nil || actor.Role == domain.RoleAgent {
			ticket.AssignedTo = actor.IDRef()
		}
	case domain.TicketStatusOpen:
		ticket.AssignedTo = nil
	}
}

func assignmentNote(assignee *domain.User) string {
	name := strings.TrimSpace(assignee.FullName)
	if name == "" {
		name = assignee.Username
	}
	return "Asignado a " + name
}

func requireInteractive(actor domain.Actor) error {
	if !actor.HasIdentity() {
		return apperrors.NewUnauthorized("authentication required")
	}
	if !actor.Role.Interactive() {
		return apperrors.NewForbidden("role not permitted")
	}
	return nil
}

// fail passes domain errors through and reports anything else as an internal
// error after logging it with the ticket and actor.
func (s *TransitionService) fail(err error, ticketID int64, actor domain.Actor) error {
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	s.logger.Error("ticket transaction failed",
		zap.Int64("ticket_id", ticketID),
		zap.Int64("actor_id", actor.ID),
		zap.String("actor_role", string(actor.Role)),
		zap.Error(err))
	return apperrors.NewInternalError(err)
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
