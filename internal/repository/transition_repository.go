package repository

import (
	"context"

	"github.com/deskflow/helpdesk-service/internal/domain"
)

// TransitionRepository stores the append-only ticket audit trail.
type TransitionRepository interface {
	Append(ctx context.Context, record *domain.TransitionRecord) error
	// ListByTicket returns records in the order their transactions committed.
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.TransitionRecord, error)
}

type transitionRepository struct {
	db DBTX
}

// NewTransitionRepository builds repository.
func NewTransitionRepository(db DBTX) TransitionRepository {
	return &transitionRepository{db: db}
}

func (r *transitionRepository) Append(ctx context.Context, record *domain.TransitionRecord) error {
	const query = `
        INSERT INTO ticket_transitions (ticket_id, actor_id, actor_role, from_status, to_status, note,
            ip_address, user_agent, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id`
	return r.db.QueryRow(ctx, query,
		record.TicketID,
		record.ActorID,
		record.ActorRole,
		record.FromStatus,
		record.ToStatus,
		record.Note,
		record.IPAddress,
		record.UserAgent,
		record.CreatedAt,
	).Scan(&record.ID)
}

func (r *transitionRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.TransitionRecord, error) {
	const query = `
        SELECT id, ticket_id, actor_id, actor_role, from_status, to_status, note, ip_address, user_agent, created_at
        FROM ticket_transitions WHERE ticket_id=$1 ORDER BY id ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.TransitionRecord{}
	for rows.Next() {
		var (
			record   domain.TransitionRecord
			role     string
			from, to string
		)
		if err := rows.Scan(
			&record.ID,
			&record.TicketID,
			&record.ActorID,
			&role,
			&from,
			&to,
			&record.Note,
			&record.IPAddress,
			&record.UserAgent,
			&record.CreatedAt,
		); err != nil {
			return nil, err
		}
		record.ActorRole = domain.NormalizeRole(role)
		record.FromStatus = domain.TicketStatus(from)
		record.ToStatus = domain.TicketStatus(to)
		result = append(result, record)
	}
	return result, rows.Err()
}
