package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-bot/internal/domain"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// RequireRole lets only principals holding one of allowed through. Admin
// tokens pass every check.
func RequireRole(allowed ...domain.APIRole) fiber.Handler {
	allowedSet := make(map[domain.APIRole]struct{}, len(allowed)+1)
	allowedSet[domain.APIRoleAdmin] = struct{}{}
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if _, exists := allowedSet[principal.Role]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}
