package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/deskflow/helpdesk-service/pkg/util/errorutil"
)

// RequireActor ensures the caller is authenticated with an interactive role.
// Per-operation role checks live in the services.
func RequireActor() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := ActorFromContext(c)
		if !ok || !actor.HasIdentity() {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !actor.Role.Interactive() {
			return apperrors.NewForbidden("role not permitted")
		}
		return c.Next()
	}
}
