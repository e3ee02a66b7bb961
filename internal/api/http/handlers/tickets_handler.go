package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/deskflow/helpdesk-service/internal/api/dto"
	"github.com/deskflow/helpdesk-service/internal/service"
	apperrors "github.com/deskflow/helpdesk-service/pkg/util/errorutil"
)

// TicketsHandler serves ticket intake and read endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), actor, service.TicketCreateInput{
		Subject:      req.Subject,
		Description:  req.Description,
		DepartmentID: req.DepartmentID,
		CreatorName:  req.CreatorName,
		ContactPhone: req.ContactPhone,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ok": true, "data": dto.NewTicketSummary(*ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	statuses, err := parseStatuses(c.Query("status"))
	if err != nil {
		return err
	}

	page, err := h.service.ListTickets(c.UserContext(), actor, service.TicketListInput{
		View:     c.Query("view"),
		Statuses: statuses,
		Page:     parseInt(c.Query("page"), 1),
		PageSize: parseInt(c.Query("page_size"), 0),
	})
	if err != nil {
		return err
	}

	items := make([]dto.TicketSummary, 0, len(page.Tickets))
	for _, ticket := range page.Tickets {
		items = append(items, dto.NewTicketSummary(ticket))
	}
	return c.JSON(dto.TicketListResponse{
		OK:       true,
		View:     page.View,
		Data:     items,
		Total:    page.Total,
		Page:     page.Page,
		PageSize: page.PageSize,
	})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	id, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	detail, err := h.service.GetTicket(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true, "data": dto.NewTicketDetail(detail.Ticket, detail.AllowedTargets)})
}

// History GET /tickets/:id/transitions.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	id, err := ticketIDParam(c)
	if err != nil {
		return err
	}
	records, err := h.service.History(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true, "data": dto.NewTransitionRecords(records)})
}
