package dto

import (
	"time"

	"github.com/deskflow/helpdesk-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Subject      string `json:"subject"`
	Description  string `json:"description"`
	DepartmentID int64  `json:"department_id"`
	CreatorName  string `json:"creator_name"`
	ContactPhone string `json:"contact_phone"`
}

// TransitionRequest payload.
type TransitionRequest struct {
	ToStatus string `json:"to_status"`
	Note     string `json:"note"`
}

// AssignRequest payload.
type AssignRequest struct {
	AgentID int64 `json:"agent_id"`
}

// ActionResponse answers transition and assign calls.
type ActionResponse struct {
	OK       bool                `json:"ok"`
	ToStatus domain.TicketStatus `json:"to_status"`
	Label    string              `json:"label"`
	Changed  *bool               `json:"changed,omitempty"`
}

// TicketSummary response.
type TicketSummary struct {
	ID           int64               `json:"id"`
	Subject      string              `json:"subject"`
	Category     string              `json:"category"`
	DepartmentID int64               `json:"department_id"`
	CreatedBy    int64               `json:"created_by"`
	AssignedTo   *int64              `json:"assigned_to"`
	Status       domain.TicketStatus `json:"status"`
	Label        string              `json:"label"`
	OpenedAt     time.Time           `json:"opened_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	Description       string                `json:"description"`
	CreatorName       string                `json:"creator_name"`
	ContactPhone      *string               `json:"contact_phone"`
	LastStateChangeAt *time.Time            `json:"last_state_change_at"`
	FirstResponseAt   *time.Time            `json:"first_response_at"`
	SolvedAt          *time.Time            `json:"solved_at"`
	SolvedBy          *int64                `json:"solved_by_user_id"`
	ClosedAt          *time.Time            `json:"closed_at"`
	ClosedBy          *int64                `json:"closed_by_user_id"`
	CanceledAt        *time.Time            `json:"canceled_at"`
	CanceledBy        *int64                `json:"canceled_by_user_id"`
	ReopenedCount     int                   `json:"reopened_count"`
	AllowedTargets    []domain.TicketStatus `json:"allowed_targets"`
}

// TicketListResponse is one page of tickets.
type TicketListResponse struct {
	OK       bool            `json:"ok"`
	View     string          `json:"view"`
	Data     []TicketSummary `json:"data"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

// TransitionRecordResponse is one audit entry.
type TransitionRecordResponse struct {
	ID         int64               `json:"id"`
	ActorID    *int64              `json:"actor_id"`
	ActorRole  domain.Role         `json:"actor_role"`
	FromStatus domain.TicketStatus `json:"from_status"`
	ToStatus   domain.TicketStatus `json:"to_status"`
	Note       string              `json:"note,omitempty"`
	IPAddress  string              `json:"ip_address,omitempty"`
	UserAgent  string              `json:"user_agent,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
}

// NewTicketSummary maps a ticket to its list representation.
func NewTicketSummary(ticket domain.Ticket) TicketSummary {
	return TicketSummary{
		ID:           ticket.ID,
		Subject:      ticket.Subject,
		Category:     ticket.Category,
		DepartmentID: ticket.DepartmentID,
		CreatedBy:    ticket.CreatedBy,
		AssignedTo:   ticket.AssignedTo,
		Status:       ticket.Status,
		Label:        ticket.Status.Label(),
		OpenedAt:     ticket.OpenedAt,
		UpdatedAt:    ticket.UpdatedAt,
	}
}

// NewTicketDetail maps a ticket and the caller's allowed targets.
func NewTicketDetail(ticket domain.Ticket, allowed []domain.TicketStatus) TicketDetailResponse {
	if allowed == nil {
		allowed = []domain.TicketStatus{}
	}
	return TicketDetailResponse{
		TicketSummary:     NewTicketSummary(ticket),
		Description:       ticket.Description,
		CreatorName:       ticket.CreatorName,
		ContactPhone:      ticket.ContactPhone,
		LastStateChangeAt: ticket.LastStateChangeAt,
		FirstResponseAt:   ticket.FirstResponseAt,
		SolvedAt:          ticket.SolvedAt,
		SolvedBy:          ticket.SolvedBy,
		ClosedAt:          ticket.ClosedAt,
		ClosedBy:          ticket.ClosedBy,
		CanceledAt:        ticket.CanceledAt,
		CanceledBy:        ticket.CanceledBy,
		ReopenedCount:     ticket.ReopenedCount,
		AllowedTargets:    allowed,
	}
}

// NewTransitionRecords maps audit entries in order.
func NewTransitionRecords(records []domain.TransitionRecord) []TransitionRecordResponse {
	out := make([]TransitionRecordResponse, 0, len(records))
	for _, r := range records {
		out = append(out, TransitionRecordResponse{
			ID:         r.ID,
			ActorID:    r.ActorID,
			ActorRole:  r.ActorRole,
			FromStatus: r.FromStatus,
			ToStatus:   r.ToStatus,
			Note:       r.Note,
			IPAddress:  r.IPAddress,
			UserAgent:  r.UserAgent,
			CreatedAt:  r.CreatedAt,
		})
	}
	return out
}
