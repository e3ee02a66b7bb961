package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/deskflow/helpdesk-service/internal/config"
	"github.com/deskflow/helpdesk-service/internal/domain"
	"github.com/deskflow/helpdesk-service/internal/events"
	"github.com/deskflow/helpdesk-service/internal/notification"
	"github.com/deskflow/helpdesk-service/internal/repository"
)

// NotificationService mails department staff about new and closed tickets.
type NotificationService struct {
	dispatcher events.Dispatcher
	store      repository.Store
	rules      *notification.Rules
	mailer     notification.Mailer
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NotificationDependencies bundles collaborators for the notification service.
type NotificationDependencies struct {
	Dispatcher events.Dispatcher
	Store      repository.Store
	Rules      *notification.Rules
	Mailer     notification.Mailer
	Logger     *zap.Logger
	Config     config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	rules := deps.Rules
	if rules == nil {
		rules = notification.EmptyRules()
	}
	mailer := deps.Mailer
	if mailer == nil {
		mailer = notification.NewLogMailer(logger)
	}
	return &NotificationService{
		dispatcher: deps.Dispatcher,
		store:      deps.Store,
		rules:      rules,
		mailer:     mailer,
		logger:     logger,
		cfg:        deps.Config,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketCreated", zap.Int64("ticket_id", event.TicketID))
	return n.notify(ctx, notification.KindCreated, event)
}

// handleTicketStatusChanged mails only on a manual close. Auto-closes arrive
// under their own event type and are not mailed.
func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok || payload.NewStatus != domain.TicketStatusClosed {
		return nil
	}
	n.logger.Info("TicketClosed", zap.Int64("ticket_id", event.TicketID))
	return n.notify(ctx, notification.KindClosed, event)
}

func (n *NotificationService) notify(ctx context.Context, kind notification.Kind, event events.Event) error {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return nil
	}
	ticket := event.Ticket

	recipients, err := n.rules.Recipients(ctx, n.store.Users(), ticket, event.SkipUserIDs)
	if err != nil {
		return fmt.Errorf("resolve recipients for ticket %d: %w", ticket.ID, err)
	}
	if len(recipients) == 0 {
		n.logger.Debug("no recipients", zap.Int64("ticket_id", ticket.ID), zap.String("kind", string(kind)))
		return nil
	}

	deptName := ""
	if dept, err := n.store.Departments().GetByID(ctx, ticket.DepartmentID); err == nil {
		deptName = dept.Name
	} else {
		n.logger.Warn("department lookup failed", zap.Int64("department_id", ticket.DepartmentID), zap.Error(err))
	}
	reporter := ""
	if ticket.CreatedBy > 0 {
		if user, err := n.store.Users().GetByID(ctx, ticket.CreatedBy); err == nil {
			reporter = user.Username
		}
	}

	msg := notification.Render(kind, ticket, deptName, reporter, n.ticketLink(ticket.ID))
	var errs []error
	for _, user := range recipients {
		mail := notification.Mail{From: n.cfg.EmailFrom, To: user.Email, Subject: msg.Subject, HTML: msg.HTML}
		if err := n.mailer.Send(ctx, mail); err != nil {
			errs = append(errs, fmt.Errorf("mail %s: %w", user.Email, err))
		}
	}
	return errors.Join(errs...)
}

func (n *NotificationService) ticketLink(ticketID int64) string {
	base := strings.TrimRight(strings.TrimSpace(n.cfg.LinkURL), "/")
	return fmt.Sprintf("%s/tickets/%d", base, ticketID)
}
