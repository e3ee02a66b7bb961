package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/deskflow/helpdesk-service/internal/auth"
	"github.com/deskflow/helpdesk-service/internal/domain"
	apperrors "github.com/deskflow/helpdesk-service/pkg/util/errorutil"
)

func ticketIDParam(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid ticket id", nil)
	}
	return id, nil
}

func requireActor(c *fiber.Ctx) (domain.Actor, error) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return domain.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	return actor, nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func parseStatuses(raw string) ([]domain.TicketStatus, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var statuses []domain.TicketStatus
	for _, part := range strings.Split(raw, ",") {
		status, ok := domain.ParseTicketStatus(strings.TrimSpace(part))
		if !ok {
			return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": part})
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
