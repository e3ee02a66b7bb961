package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/deskflow/helpdesk-service/internal/api/dto"
	"github.com/deskflow/helpdesk-service/internal/auth"
	"github.com/deskflow/helpdesk-service/internal/service"
	apperrors "github.com/deskflow/helpdesk-service/pkg/util/errorutil"
)

// TransitionsHandler serves the workflow actions.
type TransitionsHandler struct {
	service *service.TransitionService
}

// NewTransitionsHandler constructs handler.
func NewTransitionsHandler(transitionService *service.TransitionService) *TransitionsHandler {
	return &TransitionsHandler{service: transitionService}
}

// Transition POST /tickets/:id/transition.
func (h *TransitionsHandler) Transition(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	id, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.ToStatus == "" {
		return apperrors.NewValidationError("to_status is required", nil)
	}

	result, err := h.service.Transition(c.UserContext(), actor, id, req.ToStatus, req.Note, auth.RequestMetaFromContext(c))
	if err != nil {
		return err
	}
	return c.JSON(dto.ActionResponse{OK: true, ToStatus: result.To, Label: result.To.Label()})
}

// Assign POST /tickets/:id/assign.
func (h *TransitionsHandler) Assign(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	id, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	result, err := h.service.Assign(c.UserContext(), actor, id, req.AgentID, auth.RequestMetaFromContext(c))
	if err != nil {
		return err
	}
	changed := result.Changed
	status := result.Ticket.Status
	return c.JSON(dto.ActionResponse{OK: true, ToStatus: status, Label: status.Label(), Changed: &changed})
}
