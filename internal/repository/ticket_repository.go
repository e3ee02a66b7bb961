package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/deskflow/helpdesk-service/internal/domain"
	"github.com/deskflow/helpdesk-service/internal/workflow"
)

// TicketFilter selects tickets for list views. Scope is mandatory.
type TicketFilter struct {
	Scope    workflow.Predicate
	Statuses []domain.TicketStatus
	Limit    int
	Offset   int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	// GetForUpdate loads the ticket and locks its row until the enclosing
	// transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*domain.Ticket, error)
	Exists(ctx context.Context, id int64) (bool, error)
	// Visible reports whether the ticket matches pred. Missing and hidden
	// tickets both yield false.
	Visible(ctx context.Context, pred workflow.Predicate, id int64) (bool, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	Count(ctx context.Context, filter TicketFilter) (int, error)
	// UpdateWorkflow persists status, assignee and the audit timestamps.
	UpdateWorkflow(ctx context.Context, ticket *domain.Ticket) error
	// ListAutoCloseCandidates returns ids of solved tickets with solved_at at
	// or before the cutoff, ordered by id and starting after afterID.
	ListAutoCloseCandidates(ctx context.Context, solvedBefore time.Time, afterID int64, limit int) ([]int64, error)
}

type ticketRepository struct {
	db DBTX
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db DBTX) TicketRepository {
	return &ticketRepository{db: db}
}

const ticketColumns = `id, subject, description, category, department_id, created_by, creator_name,
               contact_phone, assigned_to, status, opened_at, updated_at, last_state_change_at,
               first_response_at, solved_at, solved_by_user_id, closed_at, closed_by_user_id,
               canceled_at, canceled_by_user_id, reopened_count`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (subject, description, category, department_id, created_by, creator_name,
            contact_phone, status, opened_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)
        RETURNING id, updated_at`
	return r.db.QueryRow(ctx, query,
		ticket.Subject,
		ticket.Description,
		ticket.Category,
		ticket.DepartmentID,
		ticket.CreatedBy,
		ticket.CreatorName,
		ticket.ContactPhone,
		ticket.Status,
		ticket.OpenedAt,
	).Scan(&ticket.ID, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return scanTicket(r.db.QueryRow(ctx, query, id))
}

func (r *ticketRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1 FOR UPDATE`
	return scanTicket(r.db.QueryRow(ctx, query, id))
}

func (r *ticketRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tickets WHERE id=$1)`, id).Scan(&exists)
	return exists, err
}

func (r *ticketRepository) Visible(ctx context.Context, pred workflow.Predicate, id int64) (bool, error) {
	args := []any{id}
	where, err := renderPredicate(pred, &args)
	if err != nil {
		return false, err
	}
	var visible bool
	query := `SELECT EXISTS (SELECT 1 FROM tickets WHERE id=$1 AND ` + where + `)`
	if err := r.db.QueryRow(ctx, query, args...).Scan(&visible); err != nil {
		return false, err
	}
	return visible, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	where, args, err := filterClause(filter)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE ` + where + ` ORDER BY opened_at DESC, id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tickets := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, *ticket)
	}
	return tickets, rows.Err()
}

func (r *ticketRepository) Count(ctx context.Context, filter TicketFilter) (int, error) {
	where, args, err := filterClause(filter)
	if err != nil {
		return 0, err
	}
	var total int
	err = r.db.QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE `+where, args...).Scan(&total)
	return total, err
}

func filterClause(filter TicketFilter) (string, []any, error) {
	if filter.Scope == nil {
		return "", nil, fmt.Errorf("ticket filter requires a scope")
	}
	args := []any{}
	scope, err := renderPredicate(filter.Scope, &args)
	if err != nil {
		return "", nil, err
	}
	clauses := []string{scope}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			statuses[i] = string(status)
		}
		args = append(args, statuses)
		clauses = append(clauses, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	return strings.Join(clauses, " AND "), args, nil
}

func (r *ticketRepository) UpdateWorkflow(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET status=$1, assigned_to=$2, last_state_change_at=$3, first_response_at=$4,
            solved_at=$5, solved_by_user_id=$6, closed_at=$7, closed_by_user_id=$8,
            canceled_at=$9, canceled_by_user_id=$10, reopened_count=$11, updated_at=$12
        WHERE id=$13`
	cmd, err := r.db.Exec(ctx, query,
		ticket.Status,
		ticket.AssignedTo,
		ticket.LastStateChangeAt,
		ticket.FirstResponseAt,
		ticket.SolvedAt,
		ticket.SolvedBy,
		ticket.ClosedAt,
		ticket.ClosedBy,
		ticket.CanceledAt,
		ticket.CanceledBy,
		ticket.ReopenedCount,
		ticket.UpdatedAt,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) ListAutoCloseCandidates(ctx context.Context, solvedBefore time.Time, afterID int64, limit int) ([]int64, error) {
	const query = `
        SELECT id FROM tickets
        WHERE status='solved' AND solved_at IS NOT NULL AND solved_at <= $1 AND id > $2
        ORDER BY id
        LIMIT $3`
	rows, err := r.db.Query(ctx, query, solvedBefore, afterID, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	var status string
	if err := row.Scan(
		&ticket.ID,
		&ticket.Subject,
		&ticket.Description,
		&ticket.Category,
		&ticket.DepartmentID,
		&ticket.CreatedBy,
		&ticket.CreatorName,
		&ticket.ContactPhone,
		&ticket.AssignedTo,
		&status,
		&ticket.OpenedAt,
		&ticket.UpdatedAt,
		&ticket.LastStateChangeAt,
		&ticket.FirstResponseAt,
		&ticket.SolvedAt,
		&ticket.SolvedBy,
		&ticket.ClosedAt,
		&ticket.ClosedBy,
		&ticket.CanceledAt,
		&ticket.CanceledBy,
		&ticket.ReopenedCount,
	); err != nil {
		return nil, err
	}
	ticket.Status = domain.TicketStatus(status)
	return &ticket, nil
}
