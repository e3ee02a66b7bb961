package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/deskflow/helpdesk-service/internal/domain"
	"github.com/deskflow/helpdesk-service/internal/events"
	"github.com/deskflow/helpdesk-service/internal/observability"
	"github.com/deskflow/helpdesk-service/internal/repository"
	"github.com/deskflow/helpdesk-service/internal/workflow"
)

const (
	// AutoCloseNote is stored on every transition the sweeper writes.
	AutoCloseNote = "Cierre automático después de 48 horas"
	// AutoCloseUserAgent identifies sweeper records in the audit trail.
	AutoCloseUserAgent = "auto-close"
)

var errNoLongerEligible = errors.New("ticket no longer eligible for auto-close")

// AutoCloseService closes tickets that stayed solved past the dwell time.
type AutoCloseService struct {
	store     repository.Store
	publisher *EventPublisher
	logger    *zap.Logger
	metrics   *observability.Metrics
	clock     Clock
	dwell     time.Duration
	batch     int
}

// AutoCloseDependencies bundles collaborators for the sweeper.
type AutoCloseDependencies struct {
	Store     repository.Store
	Publisher *EventPublisher
	Logger    *zap.Logger
	Metrics   *observability.Metrics
	Clock     Clock
	Dwell     time.Duration
	BatchSize int
}

// SweepReport summarizes one page of the sweep.
type SweepReport struct {
	Scanned int
	Closed  int
	Skipped int
	Failed  int
	// LastID is the cursor to pass to the next page.
	LastID int64
	// More is true when the page was full and another may follow.
	More bool
}

// NewAutoCloseService constructs the sweeper.
func NewAutoCloseService(deps AutoCloseDependencies) *AutoCloseService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	dwell := deps.Dwell
	if dwell <= 0 {
		dwell = 48 * time.Hour
	}
	batch := deps.BatchSize
	if batch <= 0 {
		batch = 100
	}
	return &AutoCloseService{
		store:     deps.Store,
		publisher: deps.Publisher,
		logger:    logger,
		metrics:   deps.Metrics,
		clock:     deps.Clock,
		dwell:     dwell,
		batch:     batch,
	}
}

// Sweep drains every eligible page, stopping early when ctx is cancelled.
func (s *AutoCloseService) Sweep(ctx context.Context) (SweepReport, error) {
	cutoff := s.clock.now().Add(-s.dwell)
	var total SweepReport
	var afterID int64
	for {
		page, err := s.SweepPage(ctx, cutoff, afterID)
		total.Scanned += page.Scanned
		total.Closed += page.Closed
		total.Skipped += page.Skipped
		total.Failed += page.Failed
		total.LastID = page.LastID
		if err != nil {
			return total, err
		}
		if !page.More {
			return total, nil
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
		afterID = page.LastID
	}
}

// SweepPage closes at most one batch of tickets solved at or before cutoff
// with ids greater than afterID. Each ticket gets its own transaction.
func (s *AutoCloseService) SweepPage(ctx context.Context, cutoff time.Time, afterID int64) (SweepReport, error) {
	report := SweepReport{LastID: afterID}
	ids, err := s.store.Tickets().ListAutoCloseCandidates(ctx, cutoff, afterID, s.batch)
	if err != nil {
		return report, fmt.Errorf("list auto-close candidates: %w", err)
	}
	report.Scanned = len(ids)
	report.More = len(ids) == s.batch

	for _, id := range ids {
		report.LastID = id
		if err := ctx.Err(); err != nil {
			report.More = false
			return report, err
		}
		switch err := s.closeOne(ctx, id, cutoff); {
		case err == nil:
			report.Closed++
		case errors.Is(err, errNoLongerEligible):
			report.Skipped++
		default:
			report.Failed++
			s.logger.Error("auto-close failed", zap.Int64("ticket_id", id), zap.Error(err))
		}
	}
	s.metrics.RecordAutoClosed(report.Closed)
	return report, nil
}

func (s *AutoCloseService) closeOne(ctx context.Context, ticketID int64, cutoff time.Time) error {
	system := domain.SystemActor()
	var closed domain.Ticket
	var now time.Time

	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		ticket, err := tx.Tickets().GetForUpdate(ctx, ticketID)
		if err != nil {
			return fmt.Errorf("lock ticket: %w", err)
		}
		// A manual transition may have won the race since the candidate query.
		if ticket.Status != domain.TicketStatusSolved || ticket.SolvedAt == nil || ticket.SolvedAt.After(cutoff) {
			return errNoLongerEligible
		}

		now = s.clock.now()
		workflow.DeriveUpdates(domain.TicketStatusSolved, domain.TicketStatusClosed, now, nil).Apply(ticket)
		ticket.Status = domain.TicketStatusClosed
		ticket.UpdatedAt = now
		if err := tx.Tickets().UpdateWorkflow(ctx, ticket); err != nil {
			return fmt.Errorf("update ticket: %w", err)
		}
		record := domain.TransitionRecord{
			TicketID:   ticket.ID,
			ActorRole:  domain.RoleSystem,
			FromStatus: domain.TicketStatusSolved,
			ToStatus:   domain.TicketStatusClosed,
			Note:       AutoCloseNote,
			UserAgent:  AutoCloseUserAgent,
			CreatedAt:  now,
		}
		if err := tx.Transitions().Append(ctx, &record); err != nil {
			return fmt.Errorf("append transition: %w", err)
		}
		closed = *ticket
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("ticket auto-closed", zap.Int64("ticket_id", ticketID), zap.Duration("dwell", s.dwell))
	s.metrics.RecordTransition(string(domain.TicketStatusSolved), string(domain.TicketStatusClosed), string(domain.RoleSystem))
	s.publisher.Publish(ctx, events.NewEvent(events.EventTicketAutoClosed, closed, system, now, events.TicketStatusChangedPayload{
		OldStatus: domain.TicketStatusSolved,
		NewStatus: domain.TicketStatusClosed,
		Label:     domain.TicketStatusClosed.Label(),
		Note:      AutoCloseNote,
	}))
	return nil
}
