package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/deskflow/helpdesk-service/internal/domain"
	"github.com/deskflow/helpdesk-service/internal/repository"
	apperrors "github.com/deskflow/helpdesk-service/pkg/util/errorutil"
)

const (
	actorKey = "auth_actor"
	metaKey  = "auth_request_meta"
)

// AuthMiddleware validates bearer tokens and builds the request actor.
type AuthMiddleware struct {
	tokens *TokenManager
	store  repository.Store
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, store repository.Store) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, store: store}
}

// Handle enforces authentication for protected routes. Role and memberships
// come from storage, not from the token, so revocations apply immediately.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	ctx := c.UserContext()
	user, err := m.store.Users().GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewUnauthorized("user not found")
		}
		return apperrors.MapError(err)
	}
	if !user.Role.Interactive() {
		return apperrors.NewForbidden("role not permitted")
	}

	departments, err := m.store.Departments().MemberIDs(ctx, user.ID)
	if err != nil {
		return apperrors.MapError(err)
	}

	c.Locals(actorKey, domain.NewActor(user.ID, user.Role, departments))
	c.Locals(metaKey, domain.RequestMeta{
		IPAddress: c.IP(),
		UserAgent: string(c.Request().Header.UserAgent()),
	})
	return c.Next()
}

// ActorFromContext retrieves the authenticated actor.
func ActorFromContext(c *fiber.Ctx) (domain.Actor, bool) {
	actor, ok := c.Locals(actorKey).(domain.Actor)
	return actor, ok
}

// RequestMetaFromContext returns caller metadata captured at authentication.
func RequestMetaFromContext(c *fiber.Ctx) domain.RequestMeta {
	if meta, ok := c.Locals(metaKey).(domain.RequestMeta); ok {
		return meta
	}
	return domain.RequestMeta{IPAddress: c.IP(), UserAgent: string(c.Request().Header.UserAgent())}
}

// SetActor stores an actor on the context. Used by tests and internal callers.
func SetActor(c *fiber.Ctx, actor domain.Actor) {
	c.Locals(actorKey, actor)
}
