package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/deskflow/helpdesk-service/internal/domain"
	"github.com/deskflow/helpdesk-service/internal/events"
	"github.com/deskflow/helpdesk-service/internal/repository"
	"github.com/deskflow/helpdesk-service/internal/workflow"
	apperrors "github.com/deskflow/helpdesk-service/pkg/util/errorutil"
)

// List views.
const (
	ViewAttend    = "attend"
	ViewRequested = "requested"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// TicketService covers ticket intake and read access.
type TicketService struct {
	store     repository.Store
	publisher *EventPublisher
	logger    *zap.Logger
	clock     Clock
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store     repository.Store
	Publisher *EventPublisher
	Logger    *zap.Logger
	Clock     Clock
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Subject      string
	Description  string
	DepartmentID int64
	CreatorName  string
	ContactPhone string
}

// TicketListInput selects a page of one list view.
type TicketListInput struct {
	View     string
	Statuses []domain.TicketStatus
	Page     int
	PageSize int
}

// TicketPage is one page of a list view.
type TicketPage struct {
	View     string
	Tickets  []domain.Ticket
	Total    int
	Page     int
	PageSize int
}

// TicketDetail is a ticket plus the statuses the caller may move it to.
type TicketDetail struct {
	Ticket         domain.Ticket
	AllowedTargets []domain.TicketStatus
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{store: deps.Store, publisher: deps.Publisher, logger: logger, clock: deps.Clock}
}

// CreateTicket files a ticket for the actor in the chosen department.
func (s *TicketService) CreateTicket(ctx context.Context, actor domain.Actor, input TicketCreateInput) (*domain.Ticket, error) {
	if err := requireInteractive(actor); err != nil {
		return nil, err
	}

	subject := strings.TrimSpace(input.Subject)
	description := strings.TrimSpace(input.Description)
	creatorName := strings.TrimSpace(input.CreatorName)
	problems := map[string]any{}
	if utf8.RuneCountInString(creatorName) < 3 {
		problems["creator_name"] = "must be at least 3 characters"
	}
	if input.DepartmentID <= 0 {
		problems["department_id"] = "select a valid department"
	}
	if utf8.RuneCountInString(subject) < 5 {
		problems["subject"] = "must be at least 5 characters"
	}
	if utf8.RuneCountInString(description) < 20 {
		problems["description"] = "must be at least 20 characters"
	}
	if len(problems) > 0 {
		return nil, apperrors.NewValidationError("invalid ticket", problems)
	}

	dept, err := s.store.Departments().GetByID(ctx, input.DepartmentID)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && !dept.IsActive) {
		return nil, apperrors.NewValidationError("invalid ticket", map[string]any{"department_id": "select a valid department"})
	}
	if err != nil {
		return nil, s.internal(err, "load department", 0, actor)
	}

	now := s.clock.now()
	ticket := &domain.Ticket{
		Subject:      subject,
		Description:  description,
		Category:     Categorize(subject, dept.Name),
		DepartmentID: dept.ID,
		CreatedBy:    actor.ID,
		CreatorName:  creatorName,
		ContactPhone: sanitizePhone(input.ContactPhone),
		Status:       domain.TicketStatusOpen,
		OpenedAt:     now,
		UpdatedAt:    now,
	}
	if err := s.store.Tickets().Create(ctx, ticket); err != nil {
		return nil, s.internal(err, "create ticket", 0, actor)
	}

	event := events.NewEvent(events.EventTicketCreated, *ticket, actor, now, events.TicketCreatedPayload{
		DepartmentID: ticket.DepartmentID,
		Category:     ticket.Category,
		Subject:      ticket.Subject,
	})
	event.SkipUserIDs = []int64{actor.ID}
	s.publisher.Publish(ctx, event)

	return ticket, nil
}

// ListTickets returns a page of the attend or requested view. End-users have
// nothing to attend and are shown what they filed.
func (s *TicketService) ListTickets(ctx context.Context, actor domain.Actor, input TicketListInput) (*TicketPage, error) {
	if err := requireInteractive(actor); err != nil {
		return nil, err
	}

	view := strings.ToLower(strings.TrimSpace(input.View))
	switch view {
	case "":
		view = ViewAttend
	case ViewAttend, ViewRequested:
	default:
		return nil, apperrors.NewValidationError("unknown view", map[string]any{"view": input.View})
	}
	if view == ViewAttend && actor.Role == domain.RoleEndUser {
		view = ViewRequested
	}

	scope := workflow.RequestScope(actor)
	if view == ViewAttend {
		scope = workflow.AttendScope(actor)
	}

	page, size := normalizePage(input.Page, input.PageSize)
	filter := repository.TicketFilter{
		Scope:    scope,
		Statuses: input.Statuses,
		Limit:    size,
		Offset:   (page - 1) * size,
	}
	tickets, err := s.store.Tickets().List(ctx, filter)
	if err != nil {
		return nil, s.internal(err, "list tickets", 0, actor)
	}
	total, err := s.store.Tickets().Count(ctx, filter)
	if err != nil {
		return nil, s.internal(err, "count tickets", 0, actor)
	}
	return &TicketPage{View: view, Tickets: tickets, Total: total, Page: page, PageSize: size}, nil
}

// GetTicket returns a ticket the actor may see along with its allowed next statuses.
func (s *TicketService) GetTicket(ctx context.Context, actor domain.Actor, ticketID int64) (*TicketDetail, error) {
	if err := s.Authorize(ctx, actor, ticketID); err != nil {
		return nil, err
	}
	ticket, err := s.store.Tickets().GetByID(ctx, ticketID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	if err != nil {
		return nil, s.internal(err, "load ticket", ticketID, actor)
	}
	return &TicketDetail{Ticket: *ticket, AllowedTargets: workflow.AllowedTargets(ticket, actor)}, nil
}

// History returns the audit trail of a ticket the actor may see, oldest first.
func (s *TicketService) History(ctx context.Context, actor domain.Actor, ticketID int64) ([]domain.TransitionRecord, error) {
	if err := s.Authorize(ctx, actor, ticketID); err != nil {
		return nil, err
	}
	records, err := s.store.Transitions().ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, s.internal(err, "list transitions", ticketID, actor)
	}
	return records, nil
}

// Authorize runs the access guard and tells a missing ticket (NotFound)
// from a hidden one (Forbidden).
func (s *TicketService) Authorize(ctx context.Context, actor domain.Actor, ticketID int64) error {
	if err := requireInteractive(actor); err != nil {
		return err
	}
	if ticketID <= 0 {
		return apperrors.NewValidationError("invalid ticket id", nil)
	}
	visible, err := s.store.Tickets().Visible(ctx, workflow.AccessScope(actor), ticketID)
	if err != nil {
		return s.internal(err, "check access", ticketID, actor)
	}
	if visible {
		return nil
	}
	exists, err := s.store.Tickets().Exists(ctx, ticketID)
	if err != nil {
		return s.internal(err, "check existence", ticketID, actor)
	}
	if !exists {
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	return apperrors.NewForbidden(MsgNoAccess)
}

func (s *TicketService) internal(err error, op string, ticketID int64, actor domain.Actor) error {
	s.logger.Error(op+" failed",
		zap.Int64("ticket_id", ticketID),
		zap.Int64("actor_id", actor.ID),
		zap.Error(err))
	return apperrors.NewInternalError(err)
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}
