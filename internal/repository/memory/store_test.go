package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/deskflow/helpdesk-service/internal/domain"
	"github.com/deskflow/helpdesk-service/internal/repository"
	"github.com/deskflow/helpdesk-service/internal/workflow"
)

var _ repository.Store = (*Store)(nil)

func TestWithinTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := New()
	ticket := store.PutTicket(domain.Ticket{Status: domain.TicketStatusOpen, DepartmentID: 1})

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(tx repository.Store) error {
		locked, err := tx.Tickets().GetForUpdate(ctx, ticket.ID)
		if err != nil {
			return err
		}
		locked.Status = domain.TicketStatusInProgress
		if err := tx.Tickets().UpdateWorkflow(ctx, locked); err != nil {
			return err
		}
		if err := tx.Transitions().Append(ctx, &domain.TransitionRecord{TicketID: ticket.ID}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithinTx err = %v, want boom", err)
	}

	got, err := store.Tickets().GetByID(ctx, ticket.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.TicketStatusOpen {
		t.Errorf("status = %s after rollback, want open", got.Status)
	}
	records, _ := store.Transitions().ListByTicket(ctx, ticket.ID)
	if len(records) != 0 {
		t.Errorf("records = %d after rollback, want 0", len(records))
	}
}

func TestWithinTxCommits(t *testing.T) {
	ctx := context.Background()
	store := New()
	ticket := store.PutTicket(domain.Ticket{Status: domain.TicketStatusOpen})

	err := store.WithinTx(ctx, func(tx repository.Store) error {
		locked, err := tx.Tickets().GetForUpdate(ctx, ticket.ID)
		if err != nil {
			return err
		}
		locked.Status = domain.TicketStatusCanceled
		return tx.Tickets().UpdateWorkflow(ctx, locked)
	})
	if err != nil {
		t.Fatal(err)
	}
	got, _ := store.Tickets().GetByID(ctx, ticket.ID)
	if got.Status != domain.TicketStatusCanceled {
		t.Fatalf("status = %s, want canceled", got.Status)
	}
}

func TestFailNextIsOneShot(t *testing.T) {
	ctx := context.Background()
	store := New()
	store.FailNext(OpTransitionAppend, errors.New("disk full"))

	if err := store.Transitions().Append(ctx, &domain.TransitionRecord{TicketID: 1}); err == nil {
		t.Fatal("expected injected failure")
	}
	if err := store.Transitions().Append(ctx, &domain.TransitionRecord{TicketID: 1}); err != nil {
		t.Fatalf("second append: %v", err)
	}
}

func TestMissingTicketReturnsNoRows(t *testing.T) {
	_, err := New().Tickets().GetByID(context.Background(), 99)
	if !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("err = %v, want pgx.ErrNoRows", err)
	}
}

func TestListScopeAndPaging(t *testing.T) {
	ctx := context.Background()
	store := New()
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		store.PutTicket(domain.Ticket{
			DepartmentID: int64(i%2 + 1),
			Status:       domain.TicketStatusOpen,
			OpenedAt:     base.Add(time.Duration(i) * time.Hour),
		})
	}

	filter := repository.TicketFilter{Scope: workflow.DepartmentIn{IDs: []int64{1}}, Limit: 2}
	page, err := store.Tickets().List(ctx, filter)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0].ID != 5 || page[1].ID != 3 {
		t.Fatalf("page = %+v, want tickets 5 and 3", page)
	}
	total, _ := store.Tickets().Count(ctx, filter)
	if total != 3 {
		t.Fatalf("total = %d, want 3", total)
	}

	filter.Offset = 10
	page, _ = store.Tickets().List(ctx, filter)
	if len(page) != 0 {
		t.Fatalf("offset past end returned %d tickets", len(page))
	}
}

func TestAutoCloseCandidates(t *testing.T) {
	ctx := context.Background()
	store := New()
	cutoff := time.Date(2026, 5, 3, 0, 0, 0, 0, time.UTC)
	old := cutoff.Add(-time.Hour)
	fresh := cutoff.Add(time.Hour)

	store.PutTicket(domain.Ticket{ID: 1, Status: domain.TicketStatusSolved, SolvedAt: &old})
	store.PutTicket(domain.Ticket{ID: 2, Status: domain.TicketStatusSolved, SolvedAt: &fresh})
	store.PutTicket(domain.Ticket{ID: 3, Status: domain.TicketStatusClosed, SolvedAt: &old})
	store.PutTicket(domain.Ticket{ID: 4, Status: domain.TicketStatusSolved, SolvedAt: &cutoff})
	store.PutTicket(domain.Ticket{ID: 5, Status: domain.TicketStatusSolved, SolvedAt: &old})

	ids, err := store.Tickets().ListAutoCloseCandidates(ctx, cutoff, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 4 {
		t.Fatalf("first page = %v, want [1 4]", ids)
	}
	ids, _ = store.Tickets().ListAutoCloseCandidates(ctx, cutoff, 4, 2)
	if len(ids) != 1 || ids[0] != 5 {
		t.Fatalf("second page = %v, want [5]", ids)
	}
}

func TestReturnedTicketsAreCopies(t *testing.T) {
	ctx := context.Background()
	store := New()
	agent := int64(3)
	ticket := store.PutTicket(domain.Ticket{AssignedTo: &agent})

	got, _ := store.Tickets().GetByID(ctx, ticket.ID)
	*got.AssignedTo = 99

	again, _ := store.Tickets().GetByID(ctx, ticket.ID)
	if *again.AssignedTo != 3 {
		t.Fatalf("stored ticket mutated through returned copy: %d", *again.AssignedTo)
	}
}
